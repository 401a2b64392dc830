package commands

import (
	"github.com/mistkv/mistkv/kv/config"
	"github.com/mistkv/mistkv/kv/storage"
	"github.com/mistkv/mistkv/kv/transaction/latches"
	"github.com/mistkv/mistkv/kv/transaction/mvcc"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// Command is an abstraction which covers the process from receiving a request
// to returning a response.
type Command interface {
	Context() *kvrpcpb.Context
	StartTs() mvcc.TimeStamp
	// WillWrite returns a list of all keys that might be written by this
	// command. Return nil if the command is readonly.
	WillWrite() [][]byte
	// Read executes a readonly part of the command. Only called if WillWrite
	// returns nil. If the command needs to write to the DB it should return a
	// non-nil set of keys that the command will write.
	Read(txn *mvcc.RoTxn) (interface{}, [][]byte, error)
	// PrepareWrites is for building writes in an mvcc transaction. Commands
	// can also make non-transactional reads and writes using txn. Returning
	// without modifying txn means that no transaction will be executed.
	PrepareWrites(txn *mvcc.MvccTxn) (interface{}, error)
}

// Scheduler runs transactional commands against one storage, latching the
// keys each command might write so that concurrent commands cannot race on
// the same lock's read-modify-write.
type Scheduler struct {
	storage  storage.Storage
	latches  *latches.Latches
	counters mvcc.CounterSink
	conf     *config.Config
}

func NewScheduler(conf *config.Config, storage storage.Storage, counters mvcc.CounterSink) *Scheduler {
	if counters == nil {
		counters = mvcc.NopCounterSink
	}
	return &Scheduler{
		storage:  storage,
		latches:  latches.NewLatches(),
		counters: counters,
		conf:     conf,
	}
}

// Run runs a transactional command to completion: read phase, latched write
// phase, and the atomic application of all enqueued mutations.
func (s *Scheduler) Run(cmd Command) (interface{}, error) {
	ctxt := cmd.Context()
	var resp interface{}

	keysToWrite := cmd.WillWrite()
	if keysToWrite == nil {
		// The command is readonly or requires access to the DB to determine
		// the keys it will write.
		reader, err := s.storage.Reader(ctxt)
		if err != nil {
			return nil, err
		}
		txn := mvcc.RoTxn{Reader: reader, StartTS: cmd.StartTs()}
		resp, keysToWrite, err = cmd.Read(&txn)
		reader.Close()
		if err != nil {
			return nil, err
		}
	}

	if keysToWrite != nil {
		// The command will write to the DB.

		s.latches.WaitForLatches(keysToWrite)
		defer s.latches.ReleaseLatches(keysToWrite)

		reader, err := s.storage.Reader(ctxt)
		if err != nil {
			return nil, err
		}
		defer reader.Close()

		// Build an mvcc transaction.
		txn := mvcc.NewTxn(reader, cmd.StartTs())
		txn.CollapseRollback = s.conf.Txn.CollapseRollback
		txn.Counters = s.counters
		resp, err = cmd.PrepareWrites(&txn)
		if err != nil {
			return nil, err
		}

		s.latches.Validate(&txn, keysToWrite)

		// Building the transaction succeeded without conflict, write all
		// enqueued mutations to backing storage in one batch.
		err = s.storage.Write(ctxt, txn.Writes())
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// CommandBase provides some default function implementations for the Command
// interface.
type CommandBase struct {
	context *kvrpcpb.Context
	startTs mvcc.TimeStamp
}

func (base CommandBase) Context() *kvrpcpb.Context {
	return base.context
}

func (base CommandBase) StartTs() mvcc.TimeStamp {
	return base.startTs
}

func (base CommandBase) Read(txn *mvcc.RoTxn) (interface{}, [][]byte, error) {
	return nil, nil, nil
}
