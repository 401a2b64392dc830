package mvcc

import (
	"encoding/binary"
	"fmt"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// LockKind is the kind of operation a lock protects.
type LockKind byte

const (
	LockKindPut         LockKind = 'P'
	LockKindDelete      LockKind = 'D'
	LockKindLock        LockKind = 'L'
	LockKindPessimistic LockKind = 'S'
)

func (lk LockKind) ToProto() kvrpcpb.Op {
	switch lk {
	case LockKindPut:
		return kvrpcpb.Op_Put
	case LockKindDelete:
		return kvrpcpb.Op_Del
	case LockKindLock:
		return kvrpcpb.Op_Lock
	case LockKindPessimistic:
		return kvrpcpb.Op_PessimisticLock
	}

	return -1
}

// Lock marks a transaction's exclusive intent on a key. At most one lock
// exists per key at any time; its presence means the owning transaction has
// neither committed nor rolled back its intent on that key. A lock is removed
// when the transaction commits, rolls back, or is cleaned up after TTL
// expiry; the only in-place mutation is forwarding MinCommitTs.
type Lock struct {
	Primary []byte
	Ts      TimeStamp
	Ttl     uint64
	Kind    LockKind
	// MinCommitTs is a floor below which the owning transaction's commit
	// timestamp must not fall. Zero means the transaction does not take part
	// in large-transaction tracking.
	MinCommitTs TimeStamp
	// ForUpdateTs is non-zero iff the owning transaction is pessimistic.
	ForUpdateTs    TimeStamp
	UseAsyncCommit bool
	ShortValue     []byte
	// RollbackTs lists start timestamps of other transactions whose rollback
	// on this key must stay protected while this lock exists.
	RollbackTs []TimeStamp
}

// IsPessimisticTxn reports whether the owning transaction is pessimistic.
func (lock *Lock) IsPessimisticTxn() bool {
	return !lock.ForUpdateTs.IsZero()
}

// Info creates a LockInfo object from a Lock object for key.
func (lock *Lock) Info(key []byte) *kvrpcpb.LockInfo {
	info := kvrpcpb.LockInfo{}
	info.Key = key
	info.LockVersion = uint64(lock.Ts)
	info.PrimaryLock = lock.Primary
	info.LockTtl = lock.Ttl
	info.LockType = lock.Kind.ToProto()
	info.LockForUpdateTs = uint64(lock.ForUpdateTs)
	info.UseAsyncCommit = lock.UseAsyncCommit
	info.MinCommitTs = uint64(lock.MinCommitTs)
	return &info
}

const (
	lockFlagAsyncCommit byte = 1 << 0
	lockFlagShortValue  byte = 1 << 1
)

func (lock *Lock) ToBytes() []byte {
	buf := make([]byte, 0, 2+len(lock.Primary)+34)
	buf = append(buf, 0, 0)
	binary.BigEndian.PutUint16(buf, uint16(len(lock.Primary)))
	buf = append(buf, lock.Primary...)
	buf = append(buf, byte(lock.Kind))
	buf = appendUint64(buf, uint64(lock.Ts))
	buf = appendUint64(buf, lock.Ttl)
	buf = appendUint64(buf, uint64(lock.MinCommitTs))
	buf = appendUint64(buf, uint64(lock.ForUpdateTs))
	var flags byte
	if lock.UseAsyncCommit {
		flags |= lockFlagAsyncCommit
	}
	if lock.ShortValue != nil {
		flags |= lockFlagShortValue
	}
	buf = append(buf, flags)
	if lock.ShortValue != nil {
		buf = append(buf, byte(len(lock.ShortValue)))
		buf = append(buf, lock.ShortValue...)
	}
	buf = append(buf, 0, 0)
	binary.BigEndian.PutUint16(buf[len(buf)-2:], uint16(len(lock.RollbackTs)))
	for _, ts := range lock.RollbackTs {
		buf = appendUint64(buf, uint64(ts))
	}
	return buf
}

// ParseLock attempts to parse a byte string into a Lock object.
func ParseLock(input []byte) (*Lock, error) {
	if len(input) < 2 {
		return nil, fmt.Errorf("mvcc: error parsing lock, not enough input, found %d bytes", len(input))
	}
	primaryLen := int(binary.BigEndian.Uint16(input))
	// primary + kind + ts + ttl + minCommitTs + forUpdateTs + flags.
	if len(input) < 2+primaryLen+34 {
		return nil, fmt.Errorf("mvcc: error parsing lock, not enough input, found %d bytes", len(input))
	}
	lock := &Lock{Primary: input[2 : 2+primaryLen]}
	rest := input[2+primaryLen:]
	lock.Kind = LockKind(rest[0])
	lock.Ts = TimeStamp(binary.BigEndian.Uint64(rest[1:]))
	lock.Ttl = binary.BigEndian.Uint64(rest[9:])
	lock.MinCommitTs = TimeStamp(binary.BigEndian.Uint64(rest[17:]))
	lock.ForUpdateTs = TimeStamp(binary.BigEndian.Uint64(rest[25:]))
	flags := rest[33]
	lock.UseAsyncCommit = flags&lockFlagAsyncCommit != 0
	rest = rest[34:]
	if flags&lockFlagShortValue != 0 {
		if len(rest) < 1 || len(rest) < 1+int(rest[0]) {
			return nil, fmt.Errorf("mvcc: error parsing lock, short value is truncated")
		}
		svLen := int(rest[0])
		lock.ShortValue = rest[1 : 1+svLen]
		rest = rest[1+svLen:]
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("mvcc: error parsing lock, rollback ts section is truncated")
	}
	count := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) != count*8 {
		return nil, fmt.Errorf("mvcc: error parsing lock, expected %d rollback timestamps, found %d bytes", count, len(rest))
	}
	for i := 0; i < count; i++ {
		lock.RollbackTs = append(lock.RollbackTs, TimeStamp(binary.BigEndian.Uint64(rest[i*8:])))
	}
	return lock, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint64(buf[len(buf)-8:], v)
	return buf
}
