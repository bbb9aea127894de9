package extract

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
)

// Buffer holds the scratch arrays used by the compression methods so that
// repeated calls don't allocate.
type Buffer struct {
	b, bZStd []byte
	q        []int64
	f64      []float64
	rng      *RNG
}

// NewBuffer creates a new, resizable Buffer. seed initializes the RNG used
// to dither quantized values.
func NewBuffer(seed uint64) *Buffer {
	return &Buffer{rng: NewRNG(seed)}
}

// Resize resizes the buffer's arrays to length n.
func (buf *Buffer) Resize(n int) {
	buf.b = resizeBytes(buf.b, n)
	if cap(buf.q) >= n {
		buf.q = buf.q[:n]
	} else {
		buf.q = make([]int64, n)
	}
	if cap(buf.f64) >= n {
		buf.f64 = buf.f64[:n]
	} else {
		buf.f64 = make([]float64, n)
	}
}

func resizeBytes(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	b = b[:cap(b)]
	return append(b, make([]byte, n-len(b))...)
}

// intToByte copies one byte "column" of q into b. Columns are indexed from
// least to most significant.
func intToByte(q []int64, b []byte, col int) {
	for i := range q {
		b[i] = byte((uint64(q[i]) >> uint(8*col)) & 0xff)
	}
}

// byteToInt adds one byte column back into q.
func byteToInt(b []byte, q []int64, col int) {
	for i := range q {
		q[i] |= int64(uint64(b[i]) << uint(8*col))
	}
}

// WriteCompressedIntsZStd writes q to wr as eight column-ordered zstd
// blocks, each preceded by its int64 length. b must have the same length as
// q and buf is scratch space which is returned for reuse.
//
// Each byte column gets its own block, so the high-significance columns of
// slowly varying data compress to almost nothing. Nothing is written for an
// empty array.
func WriteCompressedIntsZStd(
	q []int64, b, buf []byte, wr io.Writer, order binary.ByteOrder,
) ([]byte, error) {
	if len(q) != len(b) {
		panic(fmt.Sprintf("Internal error: output byte buffer has length %d,"+
			" but quantized int array had length %d.", len(b), len(q)))
	}
	if len(q) == 0 {
		return buf, nil
	}

	for i := 0; i < 8; i++ {
		intToByte(q, b, i)

		var err error
		buf, err = zstd.CompressLevel(buf, b, 1)
		if err != nil {
			return nil, err
		}
		if err = binary.Write(wr, order, int64(len(buf))); err != nil {
			return nil, err
		}
		if _, err = wr.Write(buf); err != nil {
			return nil, err
		}
	}

	return buf[:0], nil
}

// ReadCompressedIntsZStd reads an array written by WriteCompressedIntsZStd
// into q, which must already have the correct length. b and buf are scratch
// space which is returned for reuse.
func ReadCompressedIntsZStd(
	rd io.Reader, b, buf []byte, q []int64, order binary.ByteOrder,
) (bOut, bufOut []byte, err error) {
	if len(q) == 0 {
		return b, buf, nil
	}
	for i := range q {
		q[i] = 0
	}

	for i := 0; i < 8; i++ {
		nBuf := int64(0)
		if err := binary.Read(rd, order, &nBuf); err != nil {
			return nil, nil, err
		}
		if nBuf < 0 {
			return nil, nil, fmt.Errorf("A zstd block claims to be %d "+
				"bytes long.", nBuf)
		}

		buf = resizeBytes(buf, int(nBuf))
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, nil, err
		}

		b, err = zstd.Decompress(b[:cap(b)], buf)
		if err != nil {
			return nil, nil, err
		}
		if len(b) != len(q) {
			return nil, nil, fmt.Errorf("A zstd block decompressed to %d "+
				"bytes, but %d values were expected.", len(b), len(q))
		}

		byteToInt(b, q, i)
	}

	return b[:0], buf[:0], nil
}
