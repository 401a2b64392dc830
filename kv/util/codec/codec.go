package codec

import (
	"github.com/pingcap/errors"
)

const (
	groupSize = 8
	marker    = byte(0xFF)
	pad       = byte(0x0)
)

var padding = make([]byte, groupSize)

// EncodeBytes encodes a byte slice into a memcomparable form: the encoded
// values sort in the same order as the raw values, even when one key is a
// prefix of another. The input is cut into groups of 8 bytes, the last group
// zero-padded, and each group is followed by a marker byte of 0xFF minus the
// pad count:
//
//	[]            -> [0 0 0 0 0 0 0 0 247]
//	[1 2 3]       -> [1 2 3 0 0 0 0 0 250]
//	[1 2 3 0]     -> [1 2 3 0 0 0 0 0 251]
//	[1 ... 8]     -> [1 2 3 4 5 6 7 8 255 0 0 0 0 0 0 0 0 247]
//
// This is the MyRocks memcomparable format.
func EncodeBytes(data []byte) []byte {
	dLen := len(data)
	// Reserve room for the encoding plus an 8 byte timestamp suffix, which
	// callers usually append.
	result := make([]byte, 0, (dLen/groupSize+1)*(groupSize+1)+8)
	for idx := 0; idx <= dLen; idx += groupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= groupSize {
			result = append(result, data[idx:idx+groupSize]...)
		} else {
			padCount = groupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, padding[:padCount]...)
		}
		result = append(result, marker-byte(padCount))
	}
	return result
}

// DecodeBytes reverses EncodeBytes, returning the remaining bytes after the
// encoded section and the decoded value.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < groupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}

		group := b[:groupSize]
		padCount := marker - b[groupSize]
		if padCount > groupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", b[:groupSize+1])
		}

		realGroupSize := groupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[groupSize+1:]

		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != pad {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", group)
				}
			}
			break
		}
	}
	return b, data, nil
}
