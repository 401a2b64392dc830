package mvcc

import (
	"fmt"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// KeyError is implemented by errors which can be converted to per-key errors
// on the wire. Only raw (user-visible) keys appear in these errors.
type KeyError interface {
	error
	KeyErrors() []*kvrpcpb.KeyError
}

// AlreadyExist means an insert-only write found a visible value at its key.
// It is surfaced to the client as a write rejection and is not retried.
type AlreadyExist struct {
	Key []byte
}

func (err *AlreadyExist) Error() string {
	return fmt.Sprintf("mvcc: key already exists: %q", err.Key)
}

func (err *AlreadyExist) KeyErrors() []*kvrpcpb.KeyError {
	var result kvrpcpb.KeyError
	result.AlreadyExist = &kvrpcpb.AlreadyExist{Key: err.Key}
	return []*kvrpcpb.KeyError{&result}
}

// TxnNotFound means the caller demanded certainty about a transaction that
// left no trace. The caller may retry the whole higher-level operation.
type TxnNotFound struct {
	StartTs TimeStamp
	Key     []byte
}

func (err *TxnNotFound) Error() string {
	return fmt.Sprintf("mvcc: txn not found, start_ts %d, primary %q", err.StartTs, err.Key)
}

func (err *TxnNotFound) KeyErrors() []*kvrpcpb.KeyError {
	var result kvrpcpb.KeyError
	result.TxnNotFound = &kvrpcpb.TxnNotFound{
		StartTs:    uint64(err.StartTs),
		PrimaryKey: err.Key,
	}
	return []*kvrpcpb.KeyError{&result}
}

// Committed means a rollback was requested for a transaction whose commit
// record already exists; the commit is authoritative.
type Committed struct {
	Key      []byte
	CommitTs TimeStamp
}

func (err *Committed) Error() string {
	return fmt.Sprintf("mvcc: key has already been committed: %q at %d", err.Key, err.CommitTs)
}

func (err *Committed) KeyErrors() []*kvrpcpb.KeyError {
	var result kvrpcpb.KeyError
	result.Abort = fmt.Sprintf("key has already been committed: %q at %d", err.Key, err.CommitTs)
	return []*kvrpcpb.KeyError{&result}
}
