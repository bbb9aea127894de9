package extract

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MethodFlag identifies the method used to compress a field.
type MethodFlag uint32

const (
	LosslessFlag MethodFlag = iota
	QuantizedFlag
)

// Method is a compression method for one field.
type Method interface {
	// MethodFlag returns the flag written to the file for this method.
	MethodFlag() MethodFlag

	// WriteInfo writes the method's parameters to wr.
	WriteInfo(wr io.Writer, order binary.ByteOrder) error
	// ReadInfo reads the parameters written by WriteInfo.
	ReadInfo(rd io.Reader, order binary.ByteOrder) error

	// Compress compresses x and writes it to wr, using buf for intermediate
	// allocations.
	Compress(x []float64, buf *Buffer, wr io.Writer, order binary.ByteOrder) error
	// Decompress reads n values from rd. The returned array is newly
	// allocated.
	Decompress(
		buf *Buffer, rd io.Reader, order binary.ByteOrder, n int,
	) ([]float64, error)
}

func selectMethod(flag MethodFlag) (Method, error) {
	switch flag {
	case LosslessFlag:
		return &Lossless{}, nil
	case QuantizedFlag:
		return &Quantized{}, nil
	}
	return nil, fmt.Errorf("The method flag %d isn't recognized. The file "+
		"was probably written by a newer version of amrio, or one of its "+
		"offsets is being read incorrectly.", flag)
}

func checkFlag(rd io.Reader, order binary.ByteOrder, exp MethodFlag) error {
	var flag MethodFlag
	if err := binary.Read(rd, order, &flag); err != nil {
		return err
	}
	if flag != exp {
		return fmt.Errorf("Mismatch between the method used to decompress "+
			"a block (flag = %d) and the method used to compress it "+
			"(flag = %d).", exp, flag)
	}
	return nil
}

// Lossless stores the bit pattern of each value. The sign and exponent
// bytes of cell data vary slowly, so most columns compress well.
type Lossless struct{}

func (m *Lossless) MethodFlag() MethodFlag { return LosslessFlag }

func (m *Lossless) WriteInfo(wr io.Writer, order binary.ByteOrder) error {
	return binary.Write(wr, order, LosslessFlag)
}

func (m *Lossless) ReadInfo(rd io.Reader, order binary.ByteOrder) error {
	return checkFlag(rd, order, LosslessFlag)
}

func (m *Lossless) Compress(
	x []float64, buf *Buffer, wr io.Writer, order binary.ByteOrder,
) error {
	buf.Resize(len(x))
	for i := range x {
		buf.q[i] = int64(math.Float64bits(x[i]))
	}
	var err error
	buf.bZStd, err = WriteCompressedIntsZStd(buf.q, buf.b, buf.bZStd, wr, order)
	return err
}

func (m *Lossless) Decompress(
	buf *Buffer, rd io.Reader, order binary.ByteOrder, n int,
) ([]float64, error) {
	buf.Resize(n)
	var err error
	buf.b, buf.bZStd, err = ReadCompressedIntsZStd(rd, buf.b, buf.bZStd, buf.q, order)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(uint64(buf.q[i]))
	}
	return out, nil
}

// Quantized stores each value to an accuracy of Delta. Values are quantized
// to integers, delta encoded along the cell order, and the deltas are
// stored. Decompressed values are dithered uniformly within their
// quantization bin, so |x - x'| < Delta.
type Quantized struct {
	Delta float64
}

func (m *Quantized) MethodFlag() MethodFlag { return QuantizedFlag }

func (m *Quantized) WriteInfo(wr io.Writer, order binary.ByteOrder) error {
	if err := binary.Write(wr, order, QuantizedFlag); err != nil {
		return err
	}
	return binary.Write(wr, order, m.Delta)
}

func (m *Quantized) ReadInfo(rd io.Reader, order binary.ByteOrder) error {
	if err := checkFlag(rd, order, QuantizedFlag); err != nil {
		return err
	}
	return binary.Read(rd, order, &m.Delta)
}

func (m *Quantized) Compress(
	x []float64, buf *Buffer, wr io.Writer, order binary.ByteOrder,
) error {
	if m.Delta <= 0 || math.IsNaN(m.Delta) {
		return fmt.Errorf("Quantization accuracy was set to %g, but must "+
			"be positive.", m.Delta)
	}
	for i := range x {
		if q := x[i] / m.Delta; math.IsNaN(q) || math.Abs(q) > 1<<62 {
			return fmt.Errorf("The value %g cannot be stored to an "+
				"accuracy of %g.", x[i], m.Delta)
		}
	}

	buf.Resize(len(x))
	Quantize(x, m.Delta, buf.q)
	DeltaEncode(0, buf.q, buf.q)
	ZigZagEncode(buf.q)

	var err error
	buf.bZStd, err = WriteCompressedIntsZStd(buf.q, buf.b, buf.bZStd, wr, order)
	return err
}

func (m *Quantized) Decompress(
	buf *Buffer, rd io.Reader, order binary.ByteOrder, n int,
) ([]float64, error) {
	buf.Resize(n)
	var err error
	buf.b, buf.bZStd, err = ReadCompressedIntsZStd(rd, buf.b, buf.bZStd, buf.q, order)
	if err != nil {
		return nil, err
	}

	ZigZagDecode(buf.q)
	DeltaDecode(0, buf.q, buf.q)
	out := make([]float64, n)
	Dequantize(buf.q, m.Delta, buf.rng, out)
	return out, nil
}

// Quantize writes floor(x/delta) to out.
func Quantize(x []float64, delta float64, out []int64) {
	for i := range x {
		out[i] = int64(math.Floor(x[i] / delta))
	}
}

// Dequantize writes delta*(q + u) to out, where u is uniform in [0, 1).
func Dequantize(q []int64, delta float64, rng *RNG, out []float64) {
	rng.UniformSequence(out)
	for i := range out {
		out[i] = delta * (float64(q[i]) + out[i])
	}
}

// DeltaEncode delta encodes x into out. The element before x[0] is taken to
// be offset. x and out may be the same array.
func DeltaEncode(offset int64, x, out []int64) {
	if len(x) != len(out) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(out) = "+
			"%d in DeltaEncode", len(x), len(out)))
	}
	if len(x) == 0 {
		return
	}

	prev := x[0]
	out[0] = prev - offset
	for i := 1; i < len(x); i++ {
		next := x[i]
		out[i] = next - prev
		prev = next
	}
}

// DeltaDecode decodes an array encoded with DeltaEncode.
func DeltaDecode(offset int64, x, out []int64) {
	if len(x) != len(out) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(out) = "+
			"%d in DeltaDecode", len(x), len(out)))
	}
	if len(x) == 0 {
		return
	}

	out[0] = offset + x[0]
	for i := 1; i < len(out); i++ {
		out[i] = out[i-1] + x[i]
	}
}

// ZigZagEncode maps small negative numbers to small positive ones in place,
// so that the high byte columns of the deltas are zero.
func ZigZagEncode(x []int64) {
	for i := range x {
		x[i] = int64(uint64(x[i]<<1) ^ uint64(x[i]>>63))
	}
}

// ZigZagDecode inverts ZigZagEncode in place.
func ZigZagDecode(x []int64) {
	for i := range x {
		u := uint64(x[i])
		x[i] = int64(u>>1) ^ -int64(u&1)
	}
}
