package commands

import (
	"github.com/mistkv/mistkv/kv/transaction/mvcc"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// CheckTxnStatus probes the definitive status of a transaction through its
// primary key: committed, rolled back, expired (cleaned up as a side effect),
// or still alive. It is issued by a conflicting reader or writer that
// observed the transaction's lock, or by cleanup after the transaction's
// client went silent.
type CheckTxnStatus struct {
	CommandBase
	request *kvrpcpb.CheckTxnStatusRequest
}

func NewCheckTxnStatus(request *kvrpcpb.CheckTxnStatusRequest) CheckTxnStatus {
	return CheckTxnStatus{
		CommandBase: CommandBase{
			context: request.Context,
			startTs: mvcc.TimeStamp(request.LockTs),
		},
		request: request,
	}
}

func (c *CheckTxnStatus) WillWrite() [][]byte {
	return [][]byte{c.request.PrimaryKey}
}

func (c *CheckTxnStatus) PrepareWrites(txn *mvcc.MvccTxn) (interface{}, error) {
	key := c.request.PrimaryKey
	response := new(kvrpcpb.CheckTxnStatusResponse)

	lock, err := txn.GetLock(key)
	if err != nil {
		return nil, err
	}

	if lock != nil && lock.Ts == txn.StartTS {
		status, _, err := mvcc.CheckTxnStatusLockExists(txn, key, lock,
			mvcc.TimeStamp(c.request.CurrentTs),
			mvcc.TimeStamp(c.request.CallerStartTs),
			c.request.ForceSyncCommit,
			c.request.ResolvingPessimisticLock)
		if err != nil {
			return respondKeyError(response, err)
		}
		fillResponse(response, status, key)
		return response, nil
	}

	// The lock is missing or belongs to another transaction. RollbackIfNotExist
	// decides whether an untraceable transaction gets fenced with a rollback
	// record or reported back as unknown.
	action := mvcc.MissingLockActionReturnError
	if c.request.RollbackIfNotExist {
		action = mvcc.MissingLockActionProtectedRollback
	}
	status, err := mvcc.CheckTxnStatusMissingLock(txn, key, lock, action,
		c.request.ResolvingPessimisticLock)
	if err != nil {
		return respondKeyError(response, err)
	}
	fillResponse(response, status, key)
	return response, nil
}

func fillResponse(response *kvrpcpb.CheckTxnStatusResponse, status mvcc.TxnStatus, key []byte) {
	switch status.Kind {
	case mvcc.TxnStatusCommitted:
		response.CommitVersion = uint64(status.CommitTs)
		response.Action = kvrpcpb.Action_NoAction
	case mvcc.TxnStatusRolledBack:
		response.Action = kvrpcpb.Action_NoAction
	case mvcc.TxnStatusTtlExpire, mvcc.TxnStatusPessimisticRollBack:
		response.Action = kvrpcpb.Action_TTLExpireRollback
	case mvcc.TxnStatusLockNotExist:
		response.Action = kvrpcpb.Action_LockNotExistRollback
	case mvcc.TxnStatusLockNotExistDoNothing:
		response.Action = kvrpcpb.Action_LockNotExistDoNothing
	case mvcc.TxnStatusUncommitted:
		response.LockTtl = status.Lock.Ttl
		response.LockInfo = status.Lock.Info(key)
		if status.MinCommitTsPushed {
			response.Action = kvrpcpb.Action_MinCommitTSPushed
		} else {
			response.Action = kvrpcpb.Action_NoAction
		}
	}
}

// respondKeyError folds a per-key error into the response; any other error is
// propagated for the storage layer to surface.
func respondKeyError(response *kvrpcpb.CheckTxnStatusResponse, err error) (interface{}, error) {
	if keyErr, ok := err.(mvcc.KeyError); ok {
		response.Error = keyErr.KeyErrors()[0]
		return response, nil
	}
	return nil, err
}
