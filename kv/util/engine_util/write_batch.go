package engine_util

import (
	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

// WriteBatch accumulates CF updates so they can be applied to badger in one
// transaction.
type WriteBatch struct {
	entries []*badger.Entry
	size    int
}

func (wb *WriteBatch) Len() int {
	return len(wb.entries)
}

func (wb *WriteBatch) SetCF(cf string, key, val []byte) {
	wb.entries = append(wb.entries, &badger.Entry{
		Key:   KeyWithCF(cf, key),
		Value: val,
	})
	wb.size += len(key) + len(val)
}

func (wb *WriteBatch) DeleteCF(cf string, key []byte) {
	wb.entries = append(wb.entries, &badger.Entry{
		Key: KeyWithCF(cf, key),
	})
	wb.size += len(key)
}

func (wb *WriteBatch) Reset() {
	wb.entries = wb.entries[:0]
	wb.size = 0
}

func (wb *WriteBatch) WriteToDB(db *badger.DB) error {
	if len(wb.entries) == 0 {
		return nil
	}
	err := db.Update(func(txn *badger.Txn) error {
		for _, entry := range wb.entries {
			var err error
			if len(entry.Value) == 0 {
				err = txn.Delete(entry.Key)
			} else {
				err = txn.SetEntry(entry)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}
