package mvcc

// physicalShiftBits is the number of bits reserved for the logical counter in
// a timestamp handed out by the timestamp oracle.
const physicalShiftBits = 18

// TsMax is a sentinel meaning "effectively infinite". It is used by
// autocommit point reads and must never be persisted into a lock or write
// record.
const TsMax TimeStamp = ^TimeStamp(0)

// TimeStamp is a logical clock value combining a physical millisecond
// component with a logical counter in the low bits. Timestamps are totally
// ordered and immutable.
type TimeStamp uint64

// ComposeTS builds a timestamp from a physical millisecond value and a
// logical counter.
func ComposeTS(physical, logical int64) TimeStamp {
	return TimeStamp((physical << physicalShiftBits) + logical)
}

// Physical returns the physical millisecond component.
func (ts TimeStamp) Physical() uint64 {
	return uint64(ts) >> physicalShiftBits
}

// Logical returns the logical counter component.
func (ts TimeStamp) Logical() uint64 {
	return uint64(ts) & ((1 << physicalShiftBits) - 1)
}

// Next returns the smallest timestamp greater than ts. Must not be called on
// TsMax.
func (ts TimeStamp) Next() TimeStamp {
	return ts + 1
}

// Prev returns the largest timestamp smaller than ts. Must not be called on
// zero.
func (ts TimeStamp) Prev() TimeStamp {
	return ts - 1
}

func (ts TimeStamp) IsZero() bool {
	return ts == 0
}

func (ts TimeStamp) IsMax() bool {
	return ts == TsMax
}
