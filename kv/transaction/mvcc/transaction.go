package mvcc

import (
	"bytes"
	"encoding/binary"

	"github.com/mistkv/mistkv/kv/storage"
	"github.com/mistkv/mistkv/kv/util/codec"
	"github.com/mistkv/mistkv/kv/util/engine_util"
)

// RoTxn is a read-only view over the versioned key space, bound to the start
// timestamp of one transaction. The underlying reader may be shared freely
// across concurrent transactions.
type RoTxn struct {
	Reader  storage.StorageReader
	StartTS TimeStamp
}

// MvccTxn accumulates the pending mutations of a single transaction attempt:
// new write records, lock insertions and removals, value writes. It lowers
// the concepts of timestamps, writes and locks into plain keys and values but
// never writes to storage itself; an external committer applies Writes()
// atomically, once, as a whole.
type MvccTxn struct {
	RoTxn
	// CollapseRollback enables replacing the previous standalone rollback
	// record when a new rollback is written, to bound history size.
	CollapseRollback bool
	Counters         CounterSink
	writes           []storage.Modify
}

func NewTxn(reader storage.StorageReader, startTs TimeStamp) MvccTxn {
	return MvccTxn{
		RoTxn:            RoTxn{Reader: reader, StartTS: startTs},
		CollapseRollback: true,
		Counters:         NopCounterSink,
	}
}

// Writes returns all changes added to this transaction.
func (txn *MvccTxn) Writes() []storage.Modify {
	return txn.writes
}

// PutWrite records a write at key and commitTs.
func (txn *MvccTxn) PutWrite(key []byte, commitTs TimeStamp, write *Write) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   EncodeKey(key, commitTs),
			Value: write.ToBytes(),
			Cf:    engine_util.CfWrite,
		},
	})
}

// DeleteWrite removes the write at key and commitTs. Only used to collapse
// rollback records.
func (txn *MvccTxn) DeleteWrite(key []byte, commitTs TimeStamp) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Delete{
			Key: EncodeKey(key, commitTs),
			Cf:  engine_util.CfWrite,
		},
	})
}

// GetLock returns a lock if key is locked. It will return (nil, nil) if there
// is no lock on key, and (nil, err) if an error occurs during lookup.
func (txn *RoTxn) GetLock(key []byte) (*Lock, error) {
	bytes, err := txn.Reader.GetCF(engine_util.CfLock, key)
	if err != nil {
		return nil, err
	}
	if bytes == nil {
		return nil, nil
	}

	lock, err := ParseLock(bytes)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// PutLock adds a key/lock to this transaction.
func (txn *MvccTxn) PutLock(key []byte, lock *Lock) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   key,
			Value: lock.ToBytes(),
			Cf:    engine_util.CfLock,
		},
	})
}

// DeleteLock adds a delete lock to this transaction.
func (txn *MvccTxn) DeleteLock(key []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Delete{
			Key: key,
			Cf:  engine_util.CfLock,
		},
	})
}

// UnlockKey removes the lock on key and returns the released-lock fact so the
// caller can wake transactions waiting on it.
func (txn *MvccTxn) UnlockKey(key []byte, pessimistic bool) *ReleasedLock {
	txn.DeleteLock(key)
	return &ReleasedLock{Key: key, StartTs: txn.StartTS, Pessimistic: pessimistic}
}

// PutValue adds a key/value write to this transaction.
func (txn *MvccTxn) PutValue(key []byte, value []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   EncodeKey(key, txn.StartTS),
			Value: value,
			Cf:    engine_util.CfDefault,
		},
	})
}

// DeleteValue removes a key/value pair in this transaction.
func (txn *MvccTxn) DeleteValue(key []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Delete{
			Key: EncodeKey(key, txn.StartTS),
			Cf:  engine_util.CfDefault,
		},
	})
}

// MostRecentWrite finds the most recent write with the given key. It returns
// a Write from the DB and that write's commit timestamp, or an error.
func (txn *RoTxn) MostRecentWrite(key []byte) (*Write, TimeStamp, error) {
	return txn.mostRecentWriteBefore(key, TsMax)
}

// mostRecentWriteBefore finds the write with the given key and the most
// recent commit timestamp at or before ts.
// Postcondition: the returned ts is <= the ts arg.
func (txn *RoTxn) mostRecentWriteBefore(key []byte, ts TimeStamp) (*Write, TimeStamp, error) {
	iter := txn.Reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	iter.Seek(EncodeKey(key, ts))
	if !iter.Valid() {
		return nil, 0, nil
	}
	item := iter.Item()
	if !bytes.Equal(DecodeUserKey(item.Key()), key) {
		return nil, 0, nil
	}
	commitTs := decodeTimestamp(item.Key())
	value, err := item.Value()
	if err != nil {
		return nil, 0, err
	}
	write, err := ParseWrite(value)
	if err != nil {
		return nil, 0, err
	}

	return write, commitTs, nil
}

// GetTxnCommitRecord scans key's write history for the record left by this
// transaction. It finds a commit or rollback record with a matching start
// timestamp, or a rollback folded into another transaction's write, or
// nothing. In the last case the record carries the unrelated write sitting
// exactly at this transaction's start timestamp, if there is one, so a new
// rollback will not clobber it.
func (txn *RoTxn) GetTxnCommitRecord(key []byte) (TxnCommitRecord, error) {
	iter := txn.Reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	var overlapped *Write
	for iter.Seek(EncodeKey(key, TsMax)); iter.Valid(); iter.Next() {
		item := iter.Item()
		if !bytes.Equal(DecodeUserKey(item.Key()), key) {
			break
		}
		commitTs := decodeTimestamp(item.Key())
		// A transaction's commit timestamp is never below its start
		// timestamp, so the scan can stop here.
		if commitTs < txn.StartTS {
			break
		}
		value, err := item.Value()
		if err != nil {
			return TxnCommitRecord{}, err
		}
		write, err := ParseWrite(value)
		if err != nil {
			return TxnCommitRecord{}, err
		}
		if write.StartTS == txn.StartTS {
			return TxnCommitRecord{Kind: CommitRecordSingle, CommitTs: commitTs, Write: write}, nil
		}
		if commitTs == txn.StartTS {
			if write.HasOverlappedRollback {
				return TxnCommitRecord{Kind: CommitRecordOverlappedRollback}, nil
			}
			overlapped = write
		}
	}
	return TxnCommitRecord{Kind: CommitRecordNone, OverlappedWrite: overlapped}, nil
}

// KeyExist reports whether key holds a value visible at ts: the most recent
// value-bearing record at or below ts is a Put. Lock and Rollback records are
// placeholders left by transactions that did not alter the value, so the scan
// descends past them; it terminates because the iterator strictly advances
// towards older versions.
func (txn *RoTxn) KeyExist(key []byte, ts TimeStamp) (bool, error) {
	iter := txn.Reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	for iter.Seek(EncodeKey(key, ts)); iter.Valid(); iter.Next() {
		item := iter.Item()
		if !bytes.Equal(DecodeUserKey(item.Key()), key) {
			return false, nil
		}
		value, err := item.Value()
		if err != nil {
			return false, err
		}
		write, err := ParseWrite(value)
		if err != nil {
			return false, err
		}
		switch write.Kind {
		case WriteKindPut:
			return true, nil
		case WriteKindDelete:
			return false, nil
		}
	}

	return false, nil
}

// CollapsePrevRollback drops the most recent rollback record below this
// transaction's start timestamp, unless it is protected.
func (txn *MvccTxn) CollapsePrevRollback(key []byte) error {
	write, commitTs, err := txn.mostRecentWriteBefore(key, txn.StartTS)
	if err != nil {
		return err
	}
	if write != nil && write.Kind == WriteKindRollback && !write.Protected {
		txn.DeleteWrite(key, commitTs)
	}
	return nil
}

// MarkRollbackOnMismatchingLock records on a foreign lock that this
// transaction's rollback on key must stay protected while that lock exists.
func (txn *MvccTxn) MarkRollbackOnMismatchingLock(key []byte, lock *Lock, protected bool) {
	// An unprotected rollback record is ok to be overwritten, nothing to mark.
	if !protected {
		return
	}
	lock.RollbackTs = append(lock.RollbackTs, txn.StartTS)
	txn.PutLock(key, lock)
}

// CheckWriteAndRollbackLock cleans up an expired lock. If the transaction's
// outcome is already recorded, the record wins: a rollback or folded rollback
// means only the stale lock is left to remove, a commit is surfaced as a
// Committed error. Otherwise a rollback record is written (folded into an
// overlapped write if one exists) so a stale prewrite cannot resurrect the
// transaction, and the lock is released.
func (txn *MvccTxn) CheckWriteAndRollbackLock(key []byte, lock *Lock, pessimistic bool) (*ReleasedLock, error) {
	record, err := txn.GetTxnCommitRecord(key)
	if err != nil {
		return nil, err
	}
	switch record.Kind {
	case CommitRecordSingle:
		if record.Write.Kind != WriteKindRollback {
			return nil, &Committed{Key: key, CommitTs: record.CommitTs}
		}
		return txn.UnlockKey(key, pessimistic), nil
	case CommitRecordOverlappedRollback:
		return txn.UnlockKey(key, pessimistic), nil
	}

	// Only a Put prewrite without a short value spills into the default CF.
	if lock.Kind == LockKindPut && lock.ShortValue == nil {
		txn.DeleteValue(key)
	}

	// Only the primary key of a pessimistic transaction needs a protected
	// rollback.
	action := MissingLockActionRollback
	if pessimistic && bytes.Equal(key, lock.Primary) {
		action = MissingLockActionProtectedRollback
	}
	if write := action.ConstructWrite(txn.StartTS, record.OverlappedWrite); write != nil {
		txn.PutWrite(key, txn.StartTS, write)
	}
	if txn.CollapseRollback {
		if err := txn.CollapsePrevRollback(key); err != nil {
			return nil, err
		}
	}
	return txn.UnlockKey(key, pessimistic), nil
}

// EncodeKey encodes a user key and appends an encoded timestamp. Keys and
// timestamps are encoded so that timestamped keys are sorted first by key
// (ascending), then by timestamp (descending).
func EncodeKey(key []byte, ts TimeStamp) []byte {
	encodedKey := codec.EncodeBytes(key)
	newKey := append(encodedKey, make([]byte, 8)...)
	binary.BigEndian.PutUint64(newKey[len(encodedKey):], ^uint64(ts))
	return newKey
}

// DecodeUserKey takes a key + timestamp and returns the key part.
func DecodeUserKey(key []byte) []byte {
	_, userKey, err := codec.DecodeBytes(key)
	if err != nil {
		panic(err)
	}
	return userKey
}

// decodeTimestamp takes a key + timestamp and returns the timestamp part.
func decodeTimestamp(key []byte) TimeStamp {
	left, _, err := codec.DecodeBytes(key)
	if err != nil {
		panic(err)
	}
	return TimeStamp(^binary.BigEndian.Uint64(left))
}
