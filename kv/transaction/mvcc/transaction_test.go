package mvcc

import (
	"bytes"
	"testing"

	"github.com/mistkv/mistkv/kv/storage"
	"github.com/mistkv/mistkv/kv/util/engine_util"
	"github.com/stretchr/testify/assert"
)

func TestEncodeKeyOrdering(t *testing.T) {
	// Keys order ascending by user key, then descending by timestamp.
	assert.True(t, bytes.Compare(EncodeKey([]byte{42}, 40), EncodeKey([]byte{42, 0}, 5)) < 0)
	assert.True(t, bytes.Compare(EncodeKey([]byte{42}, 40), EncodeKey([]byte{42}, 5)) < 0)
	assert.True(t, bytes.Compare(EncodeKey([]byte{42}, TsMax), EncodeKey([]byte{42}, 0)) < 0)
}

func TestDecodeKey(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	encoded := EncodeKey(key, ComposeTS(430, 5))
	assert.Equal(t, key, DecodeUserKey(encoded))
	assert.Equal(t, ComposeTS(430, 5), decodeTimestamp(encoded))
}

func TestGetLock(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte{3}, Ts: 43, Ttl: 1000, Kind: LockKindPut}
	seedLock(mem, []byte{3}, lock)

	txn := newTestTxn(t, mem, 43)
	found, err := txn.GetLock([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, lock, found)

	found, err = txn.GetLock([]byte{4})
	assert.Nil(t, err)
	assert.Nil(t, found)
}

func TestPutAndUnlock(t *testing.T) {
	mem := storage.NewMemStorage()
	txn := newTestTxn(t, mem, 43)
	lock := &Lock{Primary: []byte{3}, Ts: 43, Kind: LockKindPut}
	txn.PutLock([]byte{3}, lock)
	apply(t, mem, txn)
	assert.Equal(t, 1, mem.Len(engine_util.CfLock))

	txn = newTestTxn(t, mem, 43)
	released := txn.UnlockKey([]byte{3}, false)
	assert.Equal(t, []byte{3}, released.Key)
	assert.Equal(t, TimeStamp(43), released.StartTs)
	apply(t, mem, txn)
	assert.Equal(t, 0, mem.Len(engine_util.CfLock))
}

func TestMostRecentWrite(t *testing.T) {
	mem := storage.NewMemStorage()
	seedWrite(mem, []byte{3}, 50, &Write{StartTS: 43, Kind: WriteKindPut})
	seedWrite(mem, []byte{3}, 60, &Write{StartTS: 55, Kind: WriteKindDelete})
	seedWrite(mem, []byte{4}, 70, &Write{StartTS: 65, Kind: WriteKindPut})

	txn := newTestTxn(t, mem, 100)
	write, commitTs, err := txn.MostRecentWrite([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, TimeStamp(60), commitTs)
	assert.Equal(t, WriteKindDelete, write.Kind)

	write, _, err = txn.MostRecentWrite([]byte{5})
	assert.Nil(t, err)
	assert.Nil(t, write)
}

func TestGetTxnCommitRecordSingle(t *testing.T) {
	mem := storage.NewMemStorage()
	seedWrite(mem, []byte{3}, 50, &Write{StartTS: 43, Kind: WriteKindPut})

	txn := newTestTxn(t, mem, 43)
	record, err := txn.GetTxnCommitRecord([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, CommitRecordSingle, record.Kind)
	assert.Equal(t, TimeStamp(50), record.CommitTs)
	assert.Equal(t, WriteKindPut, record.Write.Kind)
}

func TestGetTxnCommitRecordNone(t *testing.T) {
	mem := storage.NewMemStorage()
	// A different transaction's history on the same key.
	seedWrite(mem, []byte{3}, 40, &Write{StartTS: 35, Kind: WriteKindPut})
	seedWrite(mem, []byte{3}, 60, &Write{StartTS: 55, Kind: WriteKindPut})

	txn := newTestTxn(t, mem, 43)
	record, err := txn.GetTxnCommitRecord([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, CommitRecordNone, record.Kind)
	assert.Nil(t, record.OverlappedWrite)
}

func TestGetTxnCommitRecordOverlappedWrite(t *testing.T) {
	mem := storage.NewMemStorage()
	// Another transaction committed exactly at our start timestamp.
	seedWrite(mem, []byte{3}, 43, &Write{StartTS: 40, Kind: WriteKindPut})

	txn := newTestTxn(t, mem, 43)
	record, err := txn.GetTxnCommitRecord([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, CommitRecordNone, record.Kind)
	assert.NotNil(t, record.OverlappedWrite)
	assert.Equal(t, TimeStamp(40), record.OverlappedWrite.StartTS)
}

func TestGetTxnCommitRecordOverlappedRollback(t *testing.T) {
	mem := storage.NewMemStorage()
	write := &Write{StartTS: 40, Kind: WriteKindPut, HasOverlappedRollback: true}
	seedWrite(mem, []byte{3}, 43, write)

	txn := newTestTxn(t, mem, 43)
	record, err := txn.GetTxnCommitRecord([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, CommitRecordOverlappedRollback, record.Kind)
}

func TestKeyExist(t *testing.T) {
	mem := storage.NewMemStorage()
	seedWrite(mem, []byte{3}, 50, &Write{StartTS: 43, Kind: WriteKindPut})
	seedWrite(mem, []byte{3}, 60, &Write{StartTS: 55, Kind: WriteKindRollback})
	seedWrite(mem, []byte{3}, 70, &Write{StartTS: 65, Kind: WriteKindLock})
	seedWrite(mem, []byte{4}, 50, &Write{StartTS: 43, Kind: WriteKindDelete})

	txn := newTestTxn(t, mem, 100)
	// Rollback and Lock placeholders are skipped, the Put at 50 decides.
	exists, err := txn.KeyExist([]byte{3}, 100)
	assert.Nil(t, err)
	assert.True(t, exists)

	// Nothing at or below ts 40.
	exists, err = txn.KeyExist([]byte{3}, 40)
	assert.Nil(t, err)
	assert.False(t, exists)

	exists, err = txn.KeyExist([]byte{4}, 100)
	assert.Nil(t, err)
	assert.False(t, exists)

	exists, err = txn.KeyExist([]byte{5}, 100)
	assert.Nil(t, err)
	assert.False(t, exists)
}

func TestCollapsePrevRollback(t *testing.T) {
	mem := storage.NewMemStorage()
	seedWrite(mem, []byte{3}, 40, NewRollbackWrite(40, false))

	txn := newTestTxn(t, mem, 43)
	assert.Nil(t, txn.CollapsePrevRollback([]byte{3}))
	apply(t, mem, txn)
	assert.Equal(t, 0, mem.Len(engine_util.CfWrite))
}

func TestCollapsePrevRollbackKeepsProtected(t *testing.T) {
	mem := storage.NewMemStorage()
	seedWrite(mem, []byte{3}, 40, NewRollbackWrite(40, true))

	txn := newTestTxn(t, mem, 43)
	assert.Nil(t, txn.CollapsePrevRollback([]byte{3}))
	apply(t, mem, txn)
	assert.Equal(t, 1, mem.Len(engine_util.CfWrite))
}

func TestCollapsePrevRollbackSkipsCommits(t *testing.T) {
	mem := storage.NewMemStorage()
	seedWrite(mem, []byte{3}, 40, &Write{StartTS: 35, Kind: WriteKindPut})

	txn := newTestTxn(t, mem, 43)
	assert.Nil(t, txn.CollapsePrevRollback([]byte{3}))
	apply(t, mem, txn)
	assert.Equal(t, 1, mem.Len(engine_util.CfWrite))
}

func TestMarkRollbackOnMismatchingLock(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte{3}, Ts: 50, Kind: LockKindPut}
	seedLock(mem, []byte{3}, lock)

	txn := newTestTxn(t, mem, 43)
	txn.MarkRollbackOnMismatchingLock([]byte{3}, lock, true)
	apply(t, mem, txn)

	txn = newTestTxn(t, mem, 43)
	found, err := txn.GetLock([]byte{3})
	assert.Nil(t, err)
	assert.Equal(t, []TimeStamp{43}, found.RollbackTs)
}

func TestMarkRollbackOnMismatchingLockUnprotected(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte{3}, Ts: 50, Kind: LockKindPut}
	seedLock(mem, []byte{3}, lock)

	txn := newTestTxn(t, mem, 43)
	txn.MarkRollbackOnMismatchingLock([]byte{3}, lock, false)
	assert.Empty(t, txn.Writes())
}
