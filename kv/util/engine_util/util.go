package engine_util

import (
	"github.com/Connor1996/badger"
)

const (
	CfDefault string = "default"
	CfWrite   string = "write"
	CfLock    string = "lock"
)

// CFs lists every column family kept by the storage layer.
var CFs = [3]string{CfDefault, CfWrite, CfLock}

// KeyWithCF prefixes key with the column family tag.
func KeyWithCF(cf string, key []byte) []byte {
	return append([]byte(cf+"_"), key...)
}

func GetCF(db *badger.DB, cf string, key []byte) (val []byte, err error) {
	err = db.View(func(txn *badger.Txn) error {
		val, err = GetCFFromTxn(txn, cf, key)
		return err
	})
	return
}

func GetCFFromTxn(txn *badger.Txn, cf string, key []byte) ([]byte, error) {
	item, err := txn.Get(KeyWithCF(cf, key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func PutCF(db *badger.DB, cf string, key []byte, val []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(KeyWithCF(cf, key), val)
	})
}

func DeleteCF(db *badger.DB, cf string, key []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Delete(KeyWithCF(cf, key))
	})
}
