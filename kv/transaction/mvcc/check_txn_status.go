package mvcc

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// CheckTxnStatusLockExists resolves the status of the transaction owning the
// lock observed on its primary key. It decides whether the lock is exempt
// (async commit), expired (clean it up), or alive (possibly forwarding its
// min_commit_ts so blocked readers can proceed). All side effects are
// enqueued into txn; nothing reaches storage here.
func CheckTxnStatusLockExists(
	txn *MvccTxn,
	primaryKey []byte,
	lock *Lock,
	currentTs TimeStamp,
	callerStartTs TimeStamp,
	forceSyncCommit bool,
	resolvingPessimisticLock bool,
) (TxnStatus, *ReleasedLock, error) {
	// Never roll back or push forward min_commit_ts if the lock uses async
	// commit. Rollback of async-commit locks is done during explicit lock
	// resolution, not by a status probe.
	if lock.UseAsyncCommit {
		if forceSyncCommit {
			log.Info("fallback is set, check_txn_status treats it as a non-async-commit txn",
				zap.Uint64("start_ts", uint64(txn.StartTS)),
				zap.ByteString("primary_key", primaryKey))
		} else {
			return StatusUncommitted(lock, false), nil, nil
		}
	}

	isPessimisticTxn := lock.IsPessimisticTxn()
	if lock.Ts.Physical()+lock.Ttl < currentTs.Physical() {
		// The lock is expired, clean it up. If the resolving and the primary
		// key lock are both pessimistic, just unlock the key and do not write
		// a rollback record: pessimistic locks carry no committed value.
		if resolvingPessimisticLock && lock.Kind == LockKindPessimistic {
			released := txn.UnlockKey(primaryKey, isPessimisticTxn)
			txn.Counters.Inc(CounterPessimisticRollback)
			return TxnStatus{Kind: TxnStatusPessimisticRollBack}, released, nil
		}
		released, err := txn.CheckWriteAndRollbackLock(primaryKey, lock, isPessimisticTxn)
		if err != nil {
			return TxnStatus{}, nil, err
		}
		txn.Counters.Inc(CounterRollback)
		return TxnStatus{Kind: TxnStatusTtlExpire}, released, nil
	}

	// Although nothing is really pushed forward when callerStartTs is max,
	// the result still reports MinCommitTsPushed to keep backward
	// compatibility with autocommit point reads.
	minCommitTsPushed := callerStartTs.IsMax()

	// If lock.MinCommitTs is zero, the transaction is outside
	// large-transaction tracking and pushing would break commits from old
	// clients during a rolling update. If callerStartTs is max, the point
	// read can ignore the lock next time anyway, since it is not committed.
	if !lock.MinCommitTs.IsZero() &&
		!callerStartTs.IsMax() &&
		// Push forward min_commit_ts so this reader won't be blocked again.
		callerStartTs >= lock.MinCommitTs {
		lock.MinCommitTs = callerStartTs.Next()

		if lock.MinCommitTs < currentTs {
			lock.MinCommitTs = currentTs
		}

		txn.PutLock(primaryKey, lock)
		minCommitTsPushed = true
		txn.Counters.Inc(CounterUpdateTs)
	}

	return StatusUncommitted(lock, minCommitTsPushed), nil, nil
}

// CheckTxnStatusMissingLock resolves the status of a transaction whose
// primary lock was expected but not found. It makes cleanup of untraceable
// transactions idempotent and safe against stale, reordered or duplicated
// commands arriving after the real outcome is already recorded.
//
// mismatchLock is the foreign lock found on the primary key, if any. action
// is chosen by the caller based on why no lock was found.
func CheckTxnStatusMissingLock(
	txn *MvccTxn,
	primaryKey []byte,
	mismatchLock *Lock,
	action MissingLockAction,
	resolvingPessimisticLock bool,
) (TxnStatus, error) {
	txn.Counters.Inc(CounterGetCommitInfo)

	record, err := txn.GetTxnCommitRecord(primaryKey)
	if err != nil {
		return TxnStatus{}, err
	}
	switch record.Kind {
	case CommitRecordSingle:
		if record.Write.Kind == WriteKindRollback {
			return TxnStatus{Kind: TxnStatusRolledBack}, nil
		}
		return StatusCommitted(record.CommitTs), nil
	case CommitRecordOverlappedRollback:
		return TxnStatus{Kind: TxnStatusRolledBack}, nil
	}

	if action == MissingLockActionReturnError {
		return TxnStatus{}, &TxnNotFound{StartTs: txn.StartTS, Key: primaryKey}
	}
	// A pessimistic-only resolution must not fabricate history.
	if resolvingPessimisticLock {
		return TxnStatus{Kind: TxnStatusLockNotExistDoNothing}, nil
	}

	// Collapse the previous rollback record if there is one.
	if txn.CollapseRollback {
		if err := txn.CollapsePrevRollback(primaryKey); err != nil {
			return TxnStatus{}, err
		}
	}

	if mismatchLock != nil && record.OverlappedWrite == nil {
		txn.MarkRollbackOnMismatchingLock(primaryKey, mismatchLock,
			action == MissingLockActionProtectedRollback)
	}

	// Insert a rollback record into the write CF in case a stale prewrite
	// command is received after this cleanup.
	if write := action.ConstructWrite(txn.StartTS, record.OverlappedWrite); write != nil {
		txn.PutWrite(primaryKey, txn.StartTS, write)
	}
	txn.Counters.Inc(CounterRollback)

	return TxnStatus{Kind: TxnStatusLockNotExist}, nil
}
