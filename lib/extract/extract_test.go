package extract

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/phil-mansfield/amrio/lib/eq"
)

func testFields() ([]string, map[string][]float64) {
	n := 1000
	rho, vx, pos := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		rho[i] = math.Exp(math.Sin(float64(i) / 10))
		vx[i] = -300 + float64(i%17)
		pos[i] = float64(i) / float64(n)
	}
	return []string{"ramses:Density", "ramses:x-velocity", "x"},
		map[string][]float64{
			"ramses:Density": rho, "ramses:x-velocity": vx, "x": pos,
		}
}

func TestRoundTrip(t *testing.T) {
	names, data := testFields()
	hd := FixedWidthHeader{N: 1000, Output: 42, NDim: 3, Redshift: 1.5, BoxLen: 1}

	for i, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		buf := &bytes.Buffer{}
		if err := Write(buf, hd, names, data, order); err != nil {
			t.Fatalf("%d) Write() returned error: %v", i, err)
		}

		rdHd, out, err := Read(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("%d) Read() returned error: %v", i, err)
		}
		if rdHd.FixedWidthHeader != hd {
			t.Errorf("%d) Expected header %+v, got %+v.", i, hd, rdHd.FixedWidthHeader)
		}
		if !eq.Strings(rdHd.Names, names) {
			t.Errorf("%d) Expected names %s, got %s.", i, names, rdHd.Names)
		}
		for _, name := range names {
			if !eq.Float64s(out[name], data[name]) {
				t.Errorf("%d) Field %s did not survive the round trip.", i, name)
			}
		}
	}
}

func TestQuantized(t *testing.T) {
	names, data := testFields()
	hd := FixedWidthHeader{N: 1000}
	deltas := []float64{1e-3, 0.5, 10}

	wr := NewWriter(hd, binary.LittleEndian)
	for i, name := range names {
		if err := wr.AddField(name, data[name], &Quantized{deltas[i]}); err != nil {
			t.Fatalf("%d) AddField() returned error: %v", i, err)
		}
	}
	buf := &bytes.Buffer{}
	if err := wr.Flush(buf); err != nil {
		t.Fatalf("Flush() returned error: %v", err)
	}

	rd, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader() returned error: %v", err)
	}
	// Read out of order to check the navigation offsets.
	for _, i := range []int{2, 0, 1} {
		x, err := rd.ReadField(names[i])
		if err != nil {
			t.Fatalf("%d) ReadField() returned error: %v", i, err)
		}
		if !eq.Float64sEps(x, data[names[i]], deltas[i]) {
			t.Errorf("%d) Expected %s to be within %g of the input.",
				i, names[i], deltas[i])
		}
	}
}

func TestWriterErrors(t *testing.T) {
	wr := NewWriter(FixedWidthHeader{N: 3}, binary.LittleEndian)
	if err := wr.AddField("a", []float64{1, 2}, &Lossless{}); err == nil {
		t.Errorf("Expected an error for a field of the wrong length.")
	}
	if err := wr.AddField("a", []float64{1, 2, 3}, &Lossless{}); err != nil {
		t.Errorf("Expected no error, got %v.", err)
	}
	if err := wr.AddField("a", []float64{1, 2, 3}, &Lossless{}); err == nil {
		t.Errorf("Expected an error for a duplicate field.")
	}
	if err := wr.AddField("b", []float64{1, 2, 3}, &Quantized{0}); err == nil {
		t.Errorf("Expected an error for a zero accuracy.")
	}
	if err := wr.AddField("c", []float64{1, math.NaN(), 3}, &Quantized{1}); err == nil {
		t.Errorf("Expected an error for a NaN value.")
	}

	err := Write(&bytes.Buffer{}, FixedWidthHeader{N: 3}, []string{"a"},
		map[string][]float64{}, binary.LittleEndian)
	if err == nil {
		t.Errorf("Expected an error for a missing field.")
	}
}

func TestReaderErrors(t *testing.T) {
	if _, err := NewReader(bytes.NewReader([]byte("not an extract file"))); err == nil {
		t.Errorf("Expected an error for a bad magic number.")
	}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, uint32(MagicNumber))
	binary.Write(buf, binary.LittleEndian, uint32(Version+1))
	if _, err := NewReader(bytes.NewReader(buf.Bytes())); err == nil {
		t.Errorf("Expected an error for a newer version.")
	}

	buf = &bytes.Buffer{}
	err := Write(buf, FixedWidthHeader{N: 2}, []string{"a"},
		map[string][]float64{"a": {1, 2}}, binary.LittleEndian)
	if err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	rd, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader() returned error: %v", err)
	}
	if _, err := rd.ReadField("b"); err == nil {
		t.Errorf("Expected an error for a missing field.")
	}

	b := buf.Bytes()
	if _, _, err := Read(bytes.NewReader(b[:len(b)-4])); err == nil {
		t.Errorf("Expected an error for a truncated file.")
	}
}

func TestEmptyFile(t *testing.T) {
	buf := &bytes.Buffer{}
	err := Write(buf, FixedWidthHeader{N: 0}, []string{"a"},
		map[string][]float64{"a": {}}, binary.LittleEndian)
	if err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	_, out, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read() returned error: %v", err)
	}
	if x, ok := out["a"]; !ok || len(x) != 0 {
		t.Errorf("Expected an empty field, got %g.", x)
	}
}

func TestDeltaEncode(t *testing.T) {
	tests := []struct {
		offset int64
		x, exp []int64
	}{
		{0, []int64{}, []int64{}},
		{0, []int64{5}, []int64{5}},
		{3, []int64{5, 4, 10, -2}, []int64{2, -1, 6, -12}},
	}

	for i := range tests {
		out := make([]int64, len(tests[i].x))
		DeltaEncode(tests[i].offset, tests[i].x, out)
		if !eq.Int64s(out, tests[i].exp) {
			t.Errorf("%d) Expected %d, got %d.", i, tests[i].exp, out)
		}
		DeltaDecode(tests[i].offset, out, out)
		if !eq.Int64s(out, tests[i].x) {
			t.Errorf("%d) Expected decoding to give %d, got %d.",
				i, tests[i].x, out)
		}
	}
}

func TestZigZag(t *testing.T) {
	x := []int64{0, -1, 1, -2, 2, math.MaxInt64, math.MinInt64}
	exp := []int64{0, 1, 2, 3, 4, -2, -1}

	y := append([]int64{}, x...)
	ZigZagEncode(y)
	if !eq.Int64s(y, exp) {
		t.Errorf("Expected %d, got %d.", exp, y)
	}
	ZigZagDecode(y)
	if !eq.Int64s(y, x) {
		t.Errorf("Expected %d, got %d.", x, y)
	}
}

func TestRNG(t *testing.T) {
	rng := NewRNG(7)
	x := make([]float64, 1000)
	rng.UniformSequence(x)
	for i := range x {
		if x[i] < 0 || x[i] >= 1 {
			t.Fatalf("%d) Expected a value in [0, 1), got %g.", i, x[i])
		}
	}
}
