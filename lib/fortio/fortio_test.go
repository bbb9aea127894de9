package fortio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/phil-mansfield/amrio/lib/eq"
)

func writeRecords(t *testing.T, order binary.ByteOrder, xs ...interface{}) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := NewWriter(buf, order)
	if err := w.WriteVectors(xs...); err != nil {
		t.Fatalf("WriteVectors failed: %v", err)
	}
	return buf.Bytes()
}

func TestReadVector(t *testing.T) {
	tests := []struct {
		x     interface{}
		t     Type
		ints  []int64
		flts  []float64
		str   string
		order binary.ByteOrder
	}{
		{[]int32{1, -2, 3}, Int32, []int64{1, -2, 3}, nil, "", binary.LittleEndian},
		{[]int32{1, -2, 3}, Int32, []int64{1, -2, 3}, nil, "", binary.BigEndian},
		{[]uint32{7, 1 << 31}, Uint32, []int64{7, 1 << 31}, nil, "", binary.LittleEndian},
		{[]int64{-1, 1 << 40}, Int64, []int64{-1, 1 << 40}, nil, "", binary.LittleEndian},
		{[]float32{0.5, -2}, Float32, nil, []float64{0.5, -2}, "", binary.LittleEndian},
		{[]float64{0.125, 3, 1e10}, Float64, nil, []float64{0.125, 3, 1e10}, "", binary.BigEndian},
		{"hilbert", Char, nil, nil, "hilbert", binary.LittleEndian},
		{[]float64{}, Float64, nil, []float64{}, "", binary.LittleEndian},
	}

	for i := range tests {
		b := writeRecords(t, tests[i].order, tests[i].x)
		r := NewReader(bytes.NewReader(b), tests[i].order)
		v, err := r.ReadVector(tests[i].t)
		if err != nil {
			t.Errorf("%d) Expected no error, got '%s'.", i, err.Error())
			continue
		}

		switch {
		case tests[i].t == Char:
			if v.Str != tests[i].str {
				t.Errorf("%d) Expected string '%s', got '%s'.", i, tests[i].str, v.Str)
			}
		case tests[i].t.IsFloat():
			if !eq.Float64s(v.Floats, tests[i].flts) {
				t.Errorf("%d) Expected %g, got %g.", i, tests[i].flts, v.Floats)
			}
		default:
			if !eq.Int64s(v.Ints, tests[i].ints) {
				t.Errorf("%d) Expected %d, got %d.", i, tests[i].ints, v.Ints)
			}
		}

		if r.Tell() != int64(len(b)) {
			t.Errorf("%d) Expected Tell() = %d after read, got %d.",
				i, len(b), r.Tell())
		}
	}
}

func TestReadAttrs(t *testing.T) {
	b := writeRecords(t, binary.LittleEndian,
		[]int32{4}, []int32{3, 1, 1}, []float64{1.4},
	)
	schema := []Attr{{"ncpu", 1, Int32}, {"nx", 3, Int32}, {"gamma", 1, Float64}}

	r := NewReader(bytes.NewReader(b), nil)
	attrs, err := r.ReadAttrs(schema)
	if err != nil {
		t.Fatalf("ReadAttrs failed: %v", err)
	}

	if !eq.Strings(attrs.Names(), []string{"ncpu", "nx", "gamma"}) {
		t.Errorf("Expected names in schema order, got %s.", attrs.Names())
	}
	if attrs.Int("ncpu") != 4 {
		t.Errorf("Expected ncpu = 4, got %d.", attrs.Int("ncpu"))
	}
	if !eq.Ints(attrs.Ints("nx"), []int{3, 1, 1}) {
		t.Errorf("Expected nx = [3 1 1], got %d.", attrs.Ints("nx"))
	}
	if attrs.Float("gamma") != 1.4 {
		t.Errorf("Expected gamma = 1.4, got %g.", attrs.Float("gamma"))
	}
	if attrs.Int("missing") != 0 || attrs.Has("missing") {
		t.Errorf("Expected missing attribute to read as zero.")
	}
}

func TestReadAttrsCountMismatch(t *testing.T) {
	b := writeRecords(t, binary.LittleEndian, []int32{3, 1})
	r := NewReader(bytes.NewReader(b), nil)
	_, err := r.ReadAttrs([]Attr{{"nx", 3, Int32}})

	cerr := &CorruptRecordError{}
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected CorruptRecordError, got %v.", err)
	}
	if cerr.Offset != 0 {
		t.Errorf("Expected offset 0, got %d.", cerr.Offset)
	}
}

func TestSkipMatchesRead(t *testing.T) {
	xs := []interface{}{
		[]int32{1, 2, 3}, []float64{1, 2}, "abc", []float64{}, []int64{9},
	}
	types := []Type{Int32, Float64, Char, Float64, Int64}
	b := writeRecords(t, binary.LittleEndian, xs...)

	for n := 0; n <= len(xs); n++ {
		rRead := NewReader(bytes.NewReader(b), nil)
		for i := 0; i < n; i++ {
			if _, err := rRead.ReadVector(types[i]); err != nil {
				t.Fatalf("%d) ReadVector failed: %v", n, err)
			}
		}

		rSkip := NewReader(bytes.NewReader(b), nil)
		if err := rSkip.Skip(n); err != nil {
			t.Fatalf("%d) Skip failed: %v", n, err)
		}

		if rRead.Tell() != rSkip.Tell() {
			t.Errorf("%d) Reading ended at %d, but skipping ended at %d.",
				n, rRead.Tell(), rSkip.Tell())
		}
	}
}

func TestSeek(t *testing.T) {
	b := writeRecords(t, binary.LittleEndian, []int32{1}, []int32{2}, []int32{3})
	r := NewReader(bytes.NewReader(b), nil)

	if err := r.Skip(1); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	mark := r.Tell()
	if err := r.Skip(2); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if err := r.Seek(mark); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	v, err := r.ReadVector(Int32)
	if err != nil {
		t.Fatalf("ReadVector failed: %v", err)
	}
	if !eq.Int64s(v.Ints, []int64{2}) {
		t.Errorf("Expected to read [2] after seeking back, got %d.", v.Ints)
	}
}

func TestCorruptRecords(t *testing.T) {
	good := writeRecords(t, binary.LittleEndian, []int32{1, 2}, []float64{3})

	mismatch := append([]byte{}, good...)
	// Trailing marker of the first record.
	binary.LittleEndian.PutUint32(mismatch[12:], 7)

	oddWidth := writeRecords(t, binary.LittleEndian, []byte{1, 2, 3, 4, 5})

	// A damaged leading marker claiming a ~4 GB payload.
	huge := make([]byte, 8)
	binary.LittleEndian.PutUint32(huge, 0xFFFFFFF0)

	tests := []struct {
		b        []byte
		t        Type
		skip     bool
		offset   int64
		wrapsEOF bool
	}{
		{mismatch, Int32, false, 0, false},
		{mismatch, Int32, true, 0, false},
		{good[:10], Int32, false, 0, true},
		{good[:10], Int32, true, 0, true},
		{good[:2], Int32, false, 0, true},
		{oddWidth, Int32, false, 0, false},
		{huge, Float64, false, 0, true},
		{huge, Float64, true, 0, true},
	}

	for i := range tests {
		r := NewReader(bytes.NewReader(tests[i].b), nil)
		var err error
		if tests[i].skip {
			err = r.Skip(2)
		} else {
			_, err = r.ReadVector(tests[i].t)
		}

		cerr := &CorruptRecordError{}
		if !errors.As(err, &cerr) {
			t.Errorf("%d) Expected CorruptRecordError, got %v.", i, err)
			continue
		}
		if cerr.Offset != tests[i].offset {
			t.Errorf("%d) Expected offset %d, got %d.", i, tests[i].offset, cerr.Offset)
		}
		if tests[i].wrapsEOF && cerr.Unwrap() == nil {
			t.Errorf("%d) Expected truncation to wrap the I/O error.", i)
		}
	}
}

func TestHugeMarkerIsNotAllocated(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, 0xFFFFFFF0)

	r := NewReader(bytes.NewReader(b), nil)
	_, err := r.ReadRecord()
	cerr := &CorruptRecordError{}
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected CorruptRecordError, got %v.", err)
	}
	if cerr.Head != 0xFFFFFFF0 {
		t.Errorf("Expected the leading marker to be reported, got %d.", cerr.Head)
	}
	if cap(r.buf) != 0 {
		t.Errorf("Expected no payload buffer to be allocated, got capacity "+
			"%d.", cap(r.buf))
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected the error to wrap io.ErrUnexpectedEOF.")
	}
}

func TestCorruptRecordOnLaterBlock(t *testing.T) {
	b := writeRecords(t, binary.LittleEndian, []int32{1}, []int32{2}, []int32{3})
	// Each record is 12 bytes; break the leading marker of the third.
	binary.LittleEndian.PutUint32(b[24:], 8)

	r := NewReader(bytes.NewReader(b), nil)
	err := r.Skip(3)
	cerr := &CorruptRecordError{}
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected CorruptRecordError, got %v.", err)
	}
	if cerr.Offset != 24 {
		t.Errorf("Expected offset 24, got %d.", cerr.Offset)
	}
}

func TestWriteVectorRejectsInt(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, nil)
	if err := w.WriteVector(3); err == nil {
		t.Errorf("Expected an error for an untyped int.")
	}
}
