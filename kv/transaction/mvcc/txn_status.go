package mvcc

// TxnStatusKind enumerates the possible outcomes of a transaction status
// check.
type TxnStatusKind int

const (
	// TxnStatusRolledBack means a rollback record for the transaction was
	// found; the transaction is definitively aborted.
	TxnStatusRolledBack TxnStatusKind = iota
	// TxnStatusCommitted means a commit record was found; CommitTs carries
	// the commit timestamp.
	TxnStatusCommitted
	// TxnStatusTtlExpire means the primary lock outlived its TTL and has been
	// rolled back by this check.
	TxnStatusTtlExpire
	// TxnStatusLockNotExist means no lock and no commit record exist; a
	// rollback record has been written to fence stale prewrites.
	TxnStatusLockNotExist
	// TxnStatusLockNotExistDoNothing means no lock and no commit record
	// exist, and nothing was written because the check resolves a pessimistic
	// lock.
	TxnStatusLockNotExistDoNothing
	// TxnStatusPessimisticRollBack means an expired pessimistic primary lock
	// was discarded without writing a rollback record.
	TxnStatusPessimisticRollBack
	// TxnStatusUncommitted means the lock is alive; Lock and
	// MinCommitTsPushed carry the details.
	TxnStatusUncommitted
)

// TxnStatus is the definitive outcome of a transaction as observed through
// its primary key. It is produced fresh by every resolver call and never
// persisted.
type TxnStatus struct {
	Kind     TxnStatusKind
	CommitTs TimeStamp
	// Lock is the (possibly updated) primary lock for an uncommitted
	// transaction.
	Lock *Lock
	// MinCommitTsPushed reports whether the caller's read can proceed past
	// the lock because its min_commit_ts is (or counts as) forwarded.
	MinCommitTsPushed bool
}

func StatusCommitted(commitTs TimeStamp) TxnStatus {
	return TxnStatus{Kind: TxnStatusCommitted, CommitTs: commitTs}
}

func StatusUncommitted(lock *Lock, minCommitTsPushed bool) TxnStatus {
	return TxnStatus{Kind: TxnStatusUncommitted, Lock: lock, MinCommitTsPushed: minCommitTsPushed}
}

// ReleasedLock describes a lock removed by a resolver, so the surrounding
// command layer can wake transactions waiting on it.
type ReleasedLock struct {
	// Key is the raw user key the lock was held on.
	Key         []byte
	StartTs     TimeStamp
	Pessimistic bool
}

// MissingLockAction tells the missing-lock resolver what to do when a
// transaction left no trace at all; it is chosen by the caller based on why
// no lock was found.
type MissingLockAction int

const (
	// MissingLockActionRollback writes an ordinary rollback record, which a
	// later write may collapse.
	MissingLockActionRollback MissingLockAction = iota
	// MissingLockActionProtectedRollback writes a rollback record which must
	// survive collapsing.
	MissingLockActionProtectedRollback
	// MissingLockActionReturnError demands proof of a known transaction and
	// fails with TxnNotFound when there is none.
	MissingLockActionReturnError
)

// ConstructWrite builds the rollback write record to persist for a missing
// lock. When another transaction's write sits exactly at startTs, the
// rollback is folded into it instead of clobbering it.
func (a MissingLockAction) ConstructWrite(startTs TimeStamp, overlapped *Write) *Write {
	if overlapped != nil {
		write := *overlapped
		write.HasOverlappedRollback = true
		return &write
	}
	return NewRollbackWrite(startTs, a == MissingLockActionProtectedRollback)
}

// TxnCommitRecordKind enumerates the shapes of a transaction's commit record
// as found in a key's write history.
type TxnCommitRecordKind int

const (
	// CommitRecordNone: the transaction left no record. OverlappedWrite may
	// carry an unrelated write sitting exactly at the transaction's start
	// timestamp, which a rollback must not clobber.
	CommitRecordNone TxnCommitRecordKind = iota
	// CommitRecordSingle: one record with a matching start timestamp was
	// found (a commit or a rollback).
	CommitRecordSingle
	// CommitRecordOverlappedRollback: the transaction's rollback was folded
	// into another transaction's write but is still authoritative.
	CommitRecordOverlappedRollback
)

// TxnCommitRecord is the result of scanning a key's write history for a
// transaction's own commit or rollback record.
type TxnCommitRecord struct {
	Kind            TxnCommitRecordKind
	CommitTs        TimeStamp
	Write           *Write
	OverlappedWrite *Write
}
