// Package leb128 implements the variable-length integer encoding used
// throughout the WebAssembly binary format: LEB128, in both its
// unsigned and signed (sign-extended) forms.
package leb128

import (
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = 5
	maxVarintLen64 = 10
)

// DecodeUint32 reads an unsigned LEB128-encoded value of at most 32 bits
// from r. It returns the decoded value and the number of bytes consumed.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	ret, n, err := decodeUvarint(r, 32)
	return uint32(ret), n, err
}

// DecodeUint64 reads an unsigned LEB128-encoded value of at most 64 bits
// from r. It returns the decoded value and the number of bytes consumed.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUvarint(r, 64)
}

func decodeUvarint(r io.ByteReader, bitSize int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var read uint64
	maxLen := uint64((bitSize + 6) / 7)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		read++
		if read > maxLen {
			return 0, 0, fmt.Errorf("overflow for uint%d", bitSize)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, read, nil
}

// DecodeInt32 reads a signed LEB128-encoded value of at most 32 bits
// from r. It returns the decoded value and the number of bytes consumed.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	ret, n, err := decodeVarint(r, 32)
	return int32(ret), n, err
}

// DecodeInt33AsInt64 reads a signed LEB128-encoded value of at most 33
// bits from r, used exclusively for WebAssembly's blocktype immediate
// (which is either a value type or a signed type-index). It returns
// the decoded value sign-extended to 64 bits, and the number of bytes
// consumed.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeVarint(r, 33)
}

// DecodeInt64 reads a signed LEB128-encoded value of at most 64 bits
// from r. It returns the decoded value and the number of bytes consumed.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeVarint(r, 64)
}

func decodeVarint(r io.ByteReader, bitSize int) (int64, uint64, error) {
	var result int64
	var shift uint
	var read uint64
	var b byte
	var err error
	maxLen := uint64((bitSize + 6) / 7)
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		read++
		if read > maxLen {
			return 0, 0, fmt.Errorf("overflow for int%d", bitSize)
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign extend if the sign bit of the last read byte is set and we
	// haven't consumed the full width.
	if shift < uint(bitSize) && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, read, nil
}

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return encodeUvarint(uint64(v))
}

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	return encodeUvarint(v)
}

func encodeUvarint(v uint64) []byte {
	out := make([]byte, 0, maxVarintLen64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte {
	return encodeVarint(int64(v))
}

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte {
	return encodeVarint(v)
}

func encodeVarint(v int64) []byte {
	out := make([]byte, 0, maxVarintLen64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}
