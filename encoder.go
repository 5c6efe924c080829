package hashlink

import (
	"encoding/binary"
	"math"
)

type (
	// LowEncoder appends primitives in the form LowDecoder reads.
	LowEncoder struct{}
)

// StringBlock writes the block size, zero terminated strings, and their lengths.
func (e *LowEncoder) StringBlock(b []byte, s []string) []byte {
	size := 0
	for _, x := range s {
		size += len(x) + 1
	}

	b = e.Int32(b, int32(size))

	for _, x := range s {
		b = append(b, x...)
		b = append(b, 0)
	}

	for _, x := range s {
		b = e.UIndex(b, len(x))
	}

	return b
}

// ByteBlock writes the block size, zero terminated blobs, and their offsets.
// Blobs must not contain zero bytes.
func (e *LowEncoder) ByteBlock(b []byte, s [][]byte) []byte {
	size := 0
	for _, x := range s {
		size += len(x) + 1
	}

	b = e.Int32(b, int32(size))

	for _, x := range s {
		b = append(b, x...)
		b = append(b, 0)
	}

	off := 0

	for _, x := range s {
		b = e.UIndex(b, off)
		off += len(x) + 1
	}

	return b
}

func (e *LowEncoder) Byte(b []byte, v byte) []byte {
	return append(b, v)
}

func (e *LowEncoder) Int32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func (e *LowEncoder) Float64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

// Index writes v in the shortest form. |v| must fit in 29 bits.
func (e *LowEncoder) Index(b []byte, v int32) []byte {
	if v >= 0 && v < 0x80 {
		return append(b, byte(v))
	}

	var s byte
	if v < 0 {
		s = 0x20
		v = -v
	}

	if v < 0x2000 {
		return append(b, 0x80|s|byte(v>>8), byte(v))
	}

	return append(b, 0xc0|s|byte(v>>24)&0x1f, byte(v>>16), byte(v>>8), byte(v))
}

func (e *LowEncoder) UIndex(b []byte, v int) []byte {
	return e.Index(b, int32(v))
}
