package commands

import (
	"testing"

	"github.com/mistkv/mistkv/kv/config"
	"github.com/mistkv/mistkv/kv/storage"
	"github.com/mistkv/mistkv/kv/transaction/mvcc"
	"github.com/mistkv/mistkv/kv/util/engine_util"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBuilder runs commands through a Scheduler over an in-memory storage.
type testBuilder struct {
	t     *testing.T
	mem   *storage.MemStorage
	sched *Scheduler
}

func newBuilder(t *testing.T) *testBuilder {
	mem := storage.NewMemStorage()
	return &testBuilder{
		t:     t,
		mem:   mem,
		sched: NewScheduler(config.NewDefaultConfig(), mem, nil),
	}
}

func (b *testBuilder) run(req *kvrpcpb.CheckTxnStatusRequest) *kvrpcpb.CheckTxnStatusResponse {
	cmd := NewCheckTxnStatus(req)
	resp, err := b.sched.Run(&cmd)
	require.NoError(b.t, err)
	return resp.(*kvrpcpb.CheckTxnStatusResponse)
}

func (b *testBuilder) seedLock(key []byte, lock *mvcc.Lock) {
	b.mem.Set(engine_util.CfLock, key, lock.ToBytes())
}

func (b *testBuilder) seedWrite(key []byte, commitTs mvcc.TimeStamp, write *mvcc.Write) {
	b.mem.Set(engine_util.CfWrite, mvcc.EncodeKey(key, commitTs), write.ToBytes())
}

func request(key []byte, lockTs, callerStartTs, currentTs mvcc.TimeStamp) *kvrpcpb.CheckTxnStatusRequest {
	return &kvrpcpb.CheckTxnStatusRequest{
		PrimaryKey:         key,
		LockTs:             uint64(lockTs),
		CallerStartTs:      uint64(callerStartTs),
		CurrentTs:          uint64(currentTs),
		RollbackIfNotExist: true,
	}
}

func TestCheckTxnStatusTtlExpired(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	builder.seedLock([]byte{3}, &mvcc.Lock{
		Primary: []byte{3},
		Ts:      startTs,
		Ttl:     10,
		Kind:    mvcc.LockKindPut,
	})

	resp := builder.run(request([]byte{3}, startTs, mvcc.ComposeTS(150, 0), mvcc.ComposeTS(200, 0)))
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_TTLExpireRollback, resp.Action)
	assert.Equal(t, uint64(0), resp.CommitVersion)

	assert.Equal(t, 0, builder.mem.Len(engine_util.CfLock))
	write, err := mvcc.ParseWrite(builder.mem.Get(engine_util.CfWrite, mvcc.EncodeKey([]byte{3}, startTs)))
	assert.Nil(t, err)
	assert.Equal(t, mvcc.WriteKindRollback, write.Kind)
}

func TestCheckTxnStatusAlive(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	builder.seedLock([]byte{3}, &mvcc.Lock{
		Primary: []byte{3},
		Ts:      startTs,
		Ttl:     100000,
		Kind:    mvcc.LockKindPut,
	})

	resp := builder.run(request([]byte{3}, startTs, mvcc.ComposeTS(110, 0), mvcc.ComposeTS(120, 0)))
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_NoAction, resp.Action)
	assert.Equal(t, uint64(100000), resp.LockTtl)
	require.NotNil(t, resp.LockInfo)
	assert.Equal(t, uint64(startTs), resp.LockInfo.LockVersion)
	assert.Equal(t, 1, builder.mem.Len(engine_util.CfLock))
}

func TestCheckTxnStatusPushesMinCommitTs(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	builder.seedLock([]byte{3}, &mvcc.Lock{
		Primary:     []byte{3},
		Ts:          startTs,
		Ttl:         100000,
		Kind:        mvcc.LockKindPut,
		MinCommitTs: startTs.Next(),
	})

	currentTs := mvcc.ComposeTS(120, 0)
	resp := builder.run(request([]byte{3}, startTs, mvcc.ComposeTS(110, 0), currentTs))
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_MinCommitTSPushed, resp.Action)
	assert.Equal(t, uint64(currentTs), resp.LockInfo.MinCommitTs)

	lock, err := mvcc.ParseLock(builder.mem.Get(engine_util.CfLock, []byte{3}))
	assert.Nil(t, err)
	assert.Equal(t, currentTs, lock.MinCommitTs)
}

func TestCheckTxnStatusCommitted(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	commitTs := mvcc.ComposeTS(110, 0)
	builder.seedWrite([]byte{3}, commitTs, &mvcc.Write{StartTS: startTs, Kind: mvcc.WriteKindPut})

	resp := builder.run(request([]byte{3}, startTs, mvcc.ComposeTS(120, 0), mvcc.ComposeTS(130, 0)))
	assert.Nil(t, resp.Error)
	assert.Equal(t, uint64(commitTs), resp.CommitVersion)
	assert.Equal(t, kvrpcpb.Action_NoAction, resp.Action)
	assert.Equal(t, 0, builder.mem.Len(engine_util.CfLock))
}

func TestCheckTxnStatusTxnNotFound(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)

	req := request([]byte{3}, startTs, mvcc.ComposeTS(120, 0), mvcc.ComposeTS(130, 0))
	req.RollbackIfNotExist = false
	resp := builder.run(req)
	require.NotNil(t, resp.Error)
	require.NotNil(t, resp.Error.TxnNotFound)
	assert.Equal(t, uint64(startTs), resp.Error.TxnNotFound.StartTs)
	assert.Equal(t, []byte{3}, resp.Error.TxnNotFound.PrimaryKey)
	assert.Equal(t, 0, builder.mem.Len(engine_util.CfWrite))
}

func TestCheckTxnStatusRollbackIfNotExist(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)

	resp := builder.run(request([]byte{3}, startTs, mvcc.ComposeTS(120, 0), mvcc.ComposeTS(130, 0)))
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_LockNotExistRollback, resp.Action)

	write, err := mvcc.ParseWrite(builder.mem.Get(engine_util.CfWrite, mvcc.EncodeKey([]byte{3}, startTs)))
	assert.Nil(t, err)
	assert.Equal(t, mvcc.WriteKindRollback, write.Kind)
	assert.True(t, write.Protected)
}

func TestCheckTxnStatusResolvingPessimisticNoLock(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)

	req := request([]byte{3}, startTs, mvcc.ComposeTS(120, 0), mvcc.ComposeTS(130, 0))
	req.ResolvingPessimisticLock = true
	resp := builder.run(req)
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_LockNotExistDoNothing, resp.Action)
	assert.Equal(t, 0, builder.mem.Len(engine_util.CfWrite))
}

func TestCheckTxnStatusExpiredPessimisticLock(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	builder.seedLock([]byte{3}, &mvcc.Lock{
		Primary:     []byte{3},
		Ts:          startTs,
		Ttl:         10,
		Kind:        mvcc.LockKindPessimistic,
		ForUpdateTs: startTs.Next(),
	})

	req := request([]byte{3}, startTs, mvcc.ComposeTS(150, 0), mvcc.ComposeTS(200, 0))
	req.ResolvingPessimisticLock = true
	resp := builder.run(req)
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_TTLExpireRollback, resp.Action)

	// The pessimistic lock is released silently.
	assert.Equal(t, 0, builder.mem.Len(engine_util.CfLock))
	assert.Equal(t, 0, builder.mem.Len(engine_util.CfWrite))
}

func TestCheckTxnStatusMismatchingLock(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	otherTs := mvcc.ComposeTS(120, 0)
	builder.seedLock([]byte{3}, &mvcc.Lock{
		Primary: []byte{3},
		Ts:      otherTs,
		Ttl:     100000,
		Kind:    mvcc.LockKindPut,
	})

	resp := builder.run(request([]byte{3}, startTs, mvcc.ComposeTS(130, 0), mvcc.ComposeTS(140, 0)))
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_LockNotExistRollback, resp.Action)

	// The other transaction's lock now pins our rollback as protected.
	lock, err := mvcc.ParseLock(builder.mem.Get(engine_util.CfLock, []byte{3}))
	assert.Nil(t, err)
	assert.Equal(t, otherTs, lock.Ts)
	assert.Equal(t, []mvcc.TimeStamp{startTs}, lock.RollbackTs)
}

func TestCheckTxnStatusIdempotent(t *testing.T) {
	builder := newBuilder(t)
	startTs := mvcc.ComposeTS(100, 0)
	builder.seedLock([]byte{3}, &mvcc.Lock{
		Primary: []byte{3},
		Ts:      startTs,
		Ttl:     10,
		Kind:    mvcc.LockKindPut,
	})

	req := request([]byte{3}, startTs, mvcc.ComposeTS(150, 0), mvcc.ComposeTS(200, 0))
	resp := builder.run(req)
	assert.Equal(t, kvrpcpb.Action_TTLExpireRollback, resp.Action)

	// A duplicated probe finds the rollback record and changes nothing.
	resp = builder.run(req)
	assert.Nil(t, resp.Error)
	assert.Equal(t, kvrpcpb.Action_NoAction, resp.Action)
	assert.Equal(t, uint64(0), resp.CommitVersion)
	assert.Equal(t, 1, builder.mem.Len(engine_util.CfWrite))
}
