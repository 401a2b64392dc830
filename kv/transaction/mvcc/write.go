package mvcc

import (
	"encoding/binary"
	"fmt"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// Write is a representation of a committed write to backing storage.
// A serialized version is stored in the write CF of the engine when a write is
// committed, keyed by the user key and the commit timestamp. That allows a
// transaction to find the status of a key at a given point in time.
type Write struct {
	StartTS TimeStamp
	Kind    WriteKind
	// Protected marks a rollback record which must not be collapsed away,
	// because a mismatching pessimistic lock depends on it staying visible.
	Protected bool
	// HasOverlappedRollback marks a write into which another transaction's
	// rollback record has been folded (the rollback's start_ts equals this
	// write's commit_ts).
	HasOverlappedRollback bool
	// ShortValue optionally inlines a small value, saving the lookup into the
	// default CF.
	ShortValue []byte
}

// NewRollbackWrite returns a rollback record for the transaction that started
// at startTs.
func NewRollbackWrite(startTs TimeStamp, protected bool) *Write {
	return &Write{
		StartTS:   startTs,
		Kind:      WriteKindRollback,
		Protected: protected,
	}
}

const (
	writeFlagProtected          byte = 1 << 0
	writeFlagOverlappedRollback byte = 1 << 1
	writeFlagShortValue         byte = 1 << 2
)

func (wr *Write) ToBytes() []byte {
	buf := append([]byte{byte(wr.Kind)}, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint64(buf[1:], uint64(wr.StartTS))
	var flags byte
	if wr.Protected {
		flags |= writeFlagProtected
	}
	if wr.HasOverlappedRollback {
		flags |= writeFlagOverlappedRollback
	}
	if wr.ShortValue != nil {
		flags |= writeFlagShortValue
	}
	buf = append(buf, flags)
	if wr.ShortValue != nil {
		buf = append(buf, byte(len(wr.ShortValue)))
		buf = append(buf, wr.ShortValue...)
	}
	return buf
}

func ParseWrite(value []byte) (*Write, error) {
	if value == nil {
		return nil, nil
	}
	if len(value) < 10 {
		return nil, fmt.Errorf("mvcc: write value is too short, expected at least 10 bytes, found %d", len(value))
	}
	write := &Write{
		Kind:    WriteKind(value[0]),
		StartTS: TimeStamp(binary.BigEndian.Uint64(value[1:])),
	}
	flags := value[9]
	write.Protected = flags&writeFlagProtected != 0
	write.HasOverlappedRollback = flags&writeFlagOverlappedRollback != 0
	if flags&writeFlagShortValue != 0 {
		if len(value) < 11 {
			return nil, fmt.Errorf("mvcc: write value is missing its short value length")
		}
		svLen := int(value[10])
		if len(value) != 11+svLen {
			return nil, fmt.Errorf("mvcc: write short value is incorrect length, expected %d, found %d", svLen, len(value)-11)
		}
		write.ShortValue = value[11:]
	}
	return write, nil
}

type WriteKind int

const (
	WriteKindPut      WriteKind = 1
	WriteKindDelete   WriteKind = 2
	WriteKindLock     WriteKind = 3
	WriteKindRollback WriteKind = 4
)

func (wk WriteKind) ToProto() kvrpcpb.Op {
	switch wk {
	case WriteKindPut:
		return kvrpcpb.Op_Put
	case WriteKindDelete:
		return kvrpcpb.Op_Del
	case WriteKindLock:
		return kvrpcpb.Op_Lock
	case WriteKindRollback:
		return kvrpcpb.Op_Rollback
	}

	return -1
}

func WriteKindFromProto(op kvrpcpb.Op) WriteKind {
	switch op {
	case kvrpcpb.Op_Put:
		return WriteKindPut
	case kvrpcpb.Op_Del:
		return WriteKindDelete
	case kvrpcpb.Op_Lock:
		return WriteKindLock
	case kvrpcpb.Op_Rollback:
		return WriteKindRollback
	default:
		panic("unsupported type")
	}
}
