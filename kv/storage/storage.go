package storage

import (
	"github.com/mistkv/mistkv/kv/util/engine_util"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// Storage represents the internal-facing persistence layer. Mutations are
// applied in atomic batches of Modify operations; reads go through snapshot
// readers obtained from Reader.
type Storage interface {
	Start() error
	Stop() error
	Write(ctx *kvrpcpb.Context, batch []Modify) error
	Reader(ctx *kvrpcpb.Context) (StorageReader, error)
}

// StorageReader is a read-only snapshot over the versioned key space. Readers
// may be shared freely across concurrent transactions.
type StorageReader interface {
	// GetCF returns (nil, nil) when the key doesn't exist in the CF.
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	Close()
}
