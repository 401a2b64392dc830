package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeTS(t *testing.T) {
	ts := ComposeTS(427, 3)
	assert.Equal(t, uint64(427), ts.Physical())
	assert.Equal(t, uint64(3), ts.Logical())

	// The logical counter occupies the low bits only.
	assert.True(t, ComposeTS(427, 3) < ComposeTS(428, 0))
	assert.True(t, ComposeTS(427, 3) < ComposeTS(427, 4))
}

func TestNextPrev(t *testing.T) {
	ts := ComposeTS(427, 3)
	assert.Equal(t, ts, ts.Next().Prev())
	assert.True(t, ts.Next() > ts)
	assert.True(t, ts.Prev() < ts)

	// Next never skips a value, so Physical only moves on logical overflow.
	assert.Equal(t, ts.Physical(), ts.Next().Physical())
}

func TestSentinels(t *testing.T) {
	assert.True(t, TimeStamp(0).IsZero())
	assert.False(t, TimeStamp(1).IsZero())
	assert.True(t, TsMax.IsMax())
	assert.False(t, TimeStamp(1).IsMax())
	assert.True(t, TsMax > ComposeTS(1<<40, 0))
}
