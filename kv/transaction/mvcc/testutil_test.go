package mvcc

// This file contains utility code for testing the MVCC layer against an
// in-memory storage.

import (
	"testing"

	"github.com/mistkv/mistkv/kv/storage"
	"github.com/mistkv/mistkv/kv/util/engine_util"
	"github.com/stretchr/testify/require"
)

// newTestTxn builds a transaction over mem, reading at startTs.
func newTestTxn(t *testing.T, mem *storage.MemStorage, startTs TimeStamp) *MvccTxn {
	reader, err := mem.Reader(nil)
	require.NoError(t, err)
	txn := NewTxn(reader, startTs)
	return &txn
}

// apply flushes all writes enqueued in txn into mem.
func apply(t *testing.T, mem *storage.MemStorage, txn *MvccTxn) {
	require.NoError(t, mem.Write(nil, txn.Writes()))
}

func seedLock(mem *storage.MemStorage, key []byte, lock *Lock) {
	mem.Set(engine_util.CfLock, key, lock.ToBytes())
}

func seedWrite(mem *storage.MemStorage, key []byte, commitTs TimeStamp, write *Write) {
	mem.Set(engine_util.CfWrite, EncodeKey(key, commitTs), write.ToBytes())
}

func seedValue(mem *storage.MemStorage, key []byte, startTs TimeStamp, value []byte) {
	mem.Set(engine_util.CfDefault, EncodeKey(key, startTs), value)
}

// recordingSink counts resolver decisions per kind for assertions.
type recordingSink map[string]int

func (s recordingSink) Inc(kind string) {
	s[kind]++
}
