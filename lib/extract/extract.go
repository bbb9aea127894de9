/*package extract reads and writes compressed files holding the cell fields
extracted from a RAMSES output.

An extract file starts with a magic number and a version, followed by a
fixed-width header, the field names, and navigation information: one
method flag per field and the byte offset of every field's method
parameters and compressed data. Each field is compressed independently, so
a single field can be read without decompressing the others.
*/
package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// MagicNumber is an arbitrary number at the start of every extract file.
	MagicNumber = 0xa3f1e1d0
	// ReverseMagicNumber is the magic number read with the wrong byte order.
	ReverseMagicNumber = 0xd0e1f1a3
	Version            = 1
)

// FixedWidthHeader describes the cells stored in a file.
type FixedWidthHeader struct {
	// N is the number of cells in every field.
	N int64
	// Output is the RAMSES output number and NDim its dimension.
	Output, NDim int64
	// Time, Redshift, and BoxLen are copied from the info file.
	Time, Redshift, BoxLen float64
}

// Header is everything in a file except the field data.
type Header struct {
	FixedWidthHeader
	Names []string
}

func (hd *Header) write(wr io.Writer, order binary.ByteOrder) error {
	if err := binary.Write(wr, order, &hd.FixedWidthHeader); err != nil {
		return err
	}

	nNames := make([]uint32, len(hd.Names))
	for i := range nNames {
		nNames[i] = uint32(len(hd.Names[i]))
	}
	if err := binary.Write(wr, order, uint32(len(hd.Names))); err != nil {
		return err
	}
	if err := binary.Write(wr, order, nNames); err != nil {
		return err
	}
	for i := range hd.Names {
		if _, err := io.WriteString(wr, hd.Names[i]); err != nil {
			return err
		}
	}
	return nil
}

func (hd *Header) read(rd io.Reader, order binary.ByteOrder) error {
	if err := binary.Read(rd, order, &hd.FixedWidthHeader); err != nil {
		return err
	}
	if hd.N < 0 {
		return fmt.Errorf("The header claims to hold %d cells.", hd.N)
	}

	var nFields uint32
	if err := binary.Read(rd, order, &nFields); err != nil {
		return err
	}
	nNames := make([]uint32, nFields)
	if err := binary.Read(rd, order, nNames); err != nil {
		return err
	}
	hd.Names = make([]string, nFields)
	for i := range nNames {
		b := make([]byte, nNames[i])
		if _, err := io.ReadFull(rd, b); err != nil {
			return err
		}
		hd.Names[i] = string(b)
	}
	return nil
}

// Writer accumulates compressed fields in memory. Create one with
// NewWriter, add fields with AddField, and call Flush to write the file.
type Writer struct {
	Header
	buf         *Buffer
	order       binary.ByteOrder
	methodFlags []MethodFlag
	// Edges are relative to the start of the info and data sections until
	// Flush makes them absolute.
	infoEdges, dataEdges []int64
	info, data           *bytes.Buffer
}

// NewWriter creates a Writer for files with the given header. hd.Names is
// ignored; names are added by AddField.
func NewWriter(hd FixedWidthHeader, order binary.ByteOrder) *Writer {
	return &Writer{
		Header:    Header{FixedWidthHeader: hd},
		buf:       NewBuffer(0),
		order:     order,
		infoEdges: []int64{0},
		dataEdges: []int64{0},
		info:      &bytes.Buffer{},
		data:      &bytes.Buffer{},
	}
}

// AddField compresses a field with a given method and adds it to the file.
func (wr *Writer) AddField(name string, x []float64, method Method) error {
	if int64(len(x)) != wr.N {
		return fmt.Errorf("The file stores %d cells, but was given a new "+
			"field, %s, with %d cells.", wr.N, name, len(x))
	}
	if findString(wr.Names, name) != -1 {
		return fmt.Errorf("The field %s was added twice.", name)
	}

	if err := method.WriteInfo(wr.info, wr.order); err != nil {
		return err
	}
	if err := method.Compress(x, wr.buf, wr.data, wr.order); err != nil {
		return fmt.Errorf("Could not compress the field %s: %w", name, err)
	}

	wr.infoEdges = append(wr.infoEdges, int64(wr.info.Len()))
	wr.dataEdges = append(wr.dataEdges, int64(wr.data.Len()))
	wr.methodFlags = append(wr.methodFlags, method.MethodFlag())
	wr.Names = append(wr.Names, name)
	return nil
}

// Flush writes the file to w.
func (wr *Writer) Flush(w io.Writer) error {
	hdBuf := &bytes.Buffer{}
	if err := binary.Write(hdBuf, wr.order, uint32(MagicNumber)); err != nil {
		return err
	}
	if err := binary.Write(hdBuf, wr.order, uint32(Version)); err != nil {
		return err
	}
	if err := wr.Header.write(hdBuf, wr.order); err != nil {
		return err
	}

	// The navigation arrays come next, so their size is part of the offset.
	nHd := int64(hdBuf.Len()) + 4*int64(len(wr.methodFlags)) +
		8*int64(len(wr.infoEdges)) + 8*int64(len(wr.dataEdges))
	infoOffset := nHd
	dataOffset := nHd + int64(wr.info.Len())

	infoEdges := make([]int64, len(wr.infoEdges))
	dataEdges := make([]int64, len(wr.dataEdges))
	for i := range infoEdges {
		infoEdges[i] = wr.infoEdges[i] + infoOffset
		dataEdges[i] = wr.dataEdges[i] + dataOffset
	}

	for _, x := range []interface{}{wr.methodFlags, infoEdges, dataEdges} {
		if err := binary.Write(hdBuf, wr.order, x); err != nil {
			return err
		}
	}

	for _, b := range [][]byte{hdBuf.Bytes(), wr.info.Bytes(), wr.data.Bytes()} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Reader reads fields from an extract file.
type Reader struct {
	Header
	rs                   io.ReadSeeker
	order                binary.ByteOrder
	methodFlags          []MethodFlag
	infoEdges, dataEdges []int64
	buf                  *Buffer
	midBuf               []byte
}

// NewReader reads the header of an extract file. The byte order is
// detected from the magic number.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	order, err := checkFile(rs)
	if err != nil {
		return nil, err
	}

	rd := &Reader{rs: rs, order: order, buf: NewBuffer(0)}
	if err := rd.Header.read(rs, order); err != nil {
		return nil, err
	}

	nFields := len(rd.Names)
	rd.methodFlags = make([]MethodFlag, nFields)
	rd.infoEdges = make([]int64, nFields+1)
	rd.dataEdges = make([]int64, nFields+1)
	for _, x := range []interface{}{rd.methodFlags, rd.infoEdges, rd.dataEdges} {
		if err := binary.Read(rs, order, x); err != nil {
			return nil, err
		}
	}

	return rd, nil
}

// ByteOrder returns the byte order the file was written with.
func (rd *Reader) ByteOrder() binary.ByteOrder { return rd.order }

// ReadField decompresses the field with the given name.
func (rd *Reader) ReadField(name string) ([]float64, error) {
	i := findString(rd.Names, name)
	if i == -1 {
		return nil, fmt.Errorf("The field '%s' is not in the extract "+
			"file. It only contains the fields %s.", name, rd.Names)
	}

	method, err := selectMethod(rd.methodFlags[i])
	if err != nil {
		return nil, err
	}
	if _, err := rd.rs.Seek(rd.infoEdges[i], io.SeekStart); err != nil {
		return nil, err
	}
	if err := method.ReadInfo(rd.rs, rd.order); err != nil {
		return nil, err
	}

	n := rd.dataEdges[i+1] - rd.dataEdges[i]
	if n < 0 {
		return nil, fmt.Errorf("The field '%s' has a negative size.", name)
	}
	if _, err := rd.rs.Seek(rd.dataEdges[i], io.SeekStart); err != nil {
		return nil, err
	}
	rd.midBuf = resizeBytes(rd.midBuf, int(n))
	if _, err := io.ReadFull(rd.rs, rd.midBuf); err != nil {
		return nil, err
	}

	x, err := method.Decompress(rd.buf, bytes.NewReader(rd.midBuf),
		rd.order, int(rd.N))
	if err != nil {
		return nil, fmt.Errorf("Could not decompress the field '%s': %w",
			name, err)
	}
	return x, nil
}

// Write writes every named field to w without loss.
func Write(
	w io.Writer, hd FixedWidthHeader, names []string,
	data map[string][]float64, order binary.ByteOrder,
) error {
	wr := NewWriter(hd, order)
	for _, name := range names {
		x, ok := data[name]
		if !ok {
			return fmt.Errorf("No data was given for the field %s.", name)
		}
		if err := wr.AddField(name, x, &Lossless{}); err != nil {
			return err
		}
	}
	return wr.Flush(w)
}

// Read reads every field of an extract file.
func Read(rs io.ReadSeeker) (*Header, map[string][]float64, error) {
	rd, err := NewReader(rs)
	if err != nil {
		return nil, nil, err
	}
	out := map[string][]float64{}
	for _, name := range rd.Names {
		if out[name], err = rd.ReadField(name); err != nil {
			return nil, nil, err
		}
	}
	return &rd.Header, out, nil
}

func findString(x []string, target string) int {
	for i := range x {
		if x[i] == target {
			return i
		}
	}
	return -1
}

// checkFile reads the magic number and version and returns the file's byte
// order.
func checkFile(rd io.Reader) (binary.ByteOrder, error) {
	var magicNumber, version uint32

	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Read(rd, order, &magicNumber); err != nil {
		return nil, err
	}

	switch magicNumber {
	case MagicNumber:
	case ReverseMagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("This is not an amrio extract file. All "+
			"extract files begin with either the 32-bit integer %x or %x, "+
			"but this file begins with %x.",
			MagicNumber, ReverseMagicNumber, magicNumber)
	}

	if err := binary.Read(rd, order, &version); err != nil {
		return nil, err
	}
	if version > Version {
		return nil, fmt.Errorf("The file was created with extract version "+
			"%d, but this is version %d. Upgrade amrio to read it.",
			version, Version)
	}
	return order, nil
}
