package standalone_storage

import (
	"os"

	"github.com/Connor1996/badger"
	"github.com/mistkv/mistkv/kv/config"
	"github.com/mistkv/mistkv/kv/storage"
	"github.com/mistkv/mistkv/kv/util/engine_util"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// StandAloneStorage is a Storage for a single-node instance. It does not
// communicate with other nodes and all data is stored locally in one badger
// database shared by all column families.
type StandAloneStorage struct {
	conf *config.Config
	db   *badger.DB
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{conf: conf}
}

func (s *StandAloneStorage) Start() error {
	engineConf := &s.conf.Engine
	if err := os.MkdirAll(engineConf.DBPath, 0755); err != nil {
		return err
	}
	opts := badger.DefaultOptions
	opts.Dir = engineConf.DBPath
	opts.ValueDir = engineConf.DBPath
	opts.ValueThreshold = engineConf.ValueThreshold
	opts.MaxTableSize = engineConf.MaxTableSize
	opts.NumMemtables = engineConf.NumMemTables
	opts.NumLevelZeroTables = engineConf.NumL0Tables
	opts.ValueLogFileSize = engineConf.VlogFileSize
	opts.SyncWrites = engineConf.SyncWrite
	opts.NumCompactors = engineConf.NumCompactors

	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	s.db = db
	log.Info("standalone storage started", zap.String("path", engineConf.DBPath))
	return nil
}

func (s *StandAloneStorage) Stop() error {
	return s.db.Close()
}

func (s *StandAloneStorage) Reader(ctx *kvrpcpb.Context) (storage.StorageReader, error) {
	return &badgerReader{txn: s.db.NewTransaction(false)}, nil
}

func (s *StandAloneStorage) Write(ctx *kvrpcpb.Context, batch []storage.Modify) error {
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	return wb.WriteToDB(s.db)
}

// badgerReader is a StorageReader over one badger read transaction, giving a
// consistent snapshot for the lifetime of the reader.
type badgerReader struct {
	txn *badger.Txn
}

func (r *badgerReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(r.txn, cf, key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, err
}

func (r *badgerReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, r.txn)
}

func (r *badgerReader) Close() {
	r.txn.Discard()
}
