package mvcc

// CheckDataConstraint checks the existence of key according to shouldNotExist,
// given the most recent write found for it. If the key exists, an
// AlreadyExist error carrying the raw key is returned.
//
// write is the candidate write record and writeCommitTs its commit timestamp.
func CheckDataConstraint(txn *MvccTxn, shouldNotExist bool, write *Write, writeCommitTs TimeStamp, key []byte) error {
	if !shouldNotExist || write.Kind == WriteKindDelete {
		return nil
	}

	// The key exists under either of the following conditions:
	// 1. the candidate write is a Put;
	// 2. the candidate write is a Lock or Rollback placeholder, and an older
	//    version makes the key exist.
	if write.Kind == WriteKindPut {
		return &AlreadyExist{Key: key}
	}
	exists, err := txn.KeyExist(key, writeCommitTs.Prev())
	if err != nil {
		return err
	}
	if exists {
		return &AlreadyExist{Key: key}
	}
	return nil
}
