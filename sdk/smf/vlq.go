package smf

import "errors"

var (
	// ErrTruncatedVLQ is returned when the input ends before the final VLQ group.
	ErrTruncatedVLQ = errors.New("truncated variable-length quantity")
	// ErrVLQOverflow is returned when a VLQ does not fit in 64 bits.
	ErrVLQOverflow = errors.New("variable-length quantity overflows uint64")
)

// maxVLQLen is the number of 7-bit groups needed for a uint64.
const maxVLQLen = 10

// AppendVLQ appends the MIDI variable-length quantity encoding of v to dst.
// Groups are big-endian base-128; every group but the last has its top bit set.
func AppendVLQ(dst []byte, v uint64) []byte {
	var groups [maxVLQLen]byte
	i := len(groups) - 1
	groups[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		groups[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, groups[i:]...)
}

// EncodeVLQ returns the variable-length quantity encoding of v.
func EncodeVLQ(v uint64) []byte {
	return AppendVLQ(nil, v)
}

// DecodeVLQ reads one variable-length quantity from the start of b and returns
// its value together with the number of bytes consumed.
func DecodeVLQ(b []byte) (uint64, int, error) {
	var v uint64
	for i, c := range b {
		if i == maxVLQLen || v > (^uint64(0))>>7 {
			return 0, 0, ErrVLQOverflow
		}
		v = v<<7 | uint64(c&0x7F)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrTruncatedVLQ
}
