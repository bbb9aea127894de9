/*package fortio reads and writes the length-framed binary records that
Fortran's unformatted sequential I/O produces. Every record on disk is a
uint32 byte count, the payload, and the same uint32 byte count again. RAMSES
writes all of its outputs this way, and so does Gadget-2.

The Reader tracks its own position so that callers can remember offsets
(e.g. the start of a level's field block) and Seek back to them later without
asking the operating system.
*/
package fortio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const markerSize = 4

// Type is a single-character element type code. The codes follow the
// conventions used in RAMSES header descriptions.
type Type byte

const (
	Int32   Type = 'i'
	Uint32  Type = 'I'
	Int64   Type = 'q'
	Float32 Type = 'f'
	Float64 Type = 'd'
	Char    Type = 'c'
)

// Size returns the width of a single element in bytes, or -1 if the type is
// not recognized.
func (t Type) Size() int {
	switch t {
	case Char:
		return 1
	case Int32, Uint32, Float32:
		return 4
	case Int64, Float64:
		return 8
	}
	return -1
}

// IsFloat returns true if values of this type are stored in Value.Floats.
func (t Type) IsFloat() bool { return t == Float32 || t == Float64 }

func (t Type) String() string { return string(rune(t)) }

// Attr is one entry in a header schema: a record holding Count elements of
// type Type, which will be stored under Name.
type Attr struct {
	Name  string
	Count int
	Type  Type
}

// Value is a decoded record. Integer types are widened into Ints, floating
// point types into Floats and character records into Str.
type Value struct {
	Type   Type
	Ints   []int64
	Floats []float64
	Str    string
}

// Len returns the number of elements in the value.
func (v Value) Len() int {
	switch {
	case v.Type == Char:
		return len(v.Str)
	case v.Type.IsFloat():
		return len(v.Floats)
	default:
		return len(v.Ints)
	}
}

// Reader decodes records from an io.ReadSeeker.
type Reader struct {
	rs    io.ReadSeeker
	order binary.ByteOrder
	pos   int64
	// size is the length of the stream, or -1 if it could not be found.
	size int64
	buf  []byte
}

// NewReader creates a Reader positioned at the current start of rs. rs is
// assumed to be at offset zero.
func NewReader(rs io.ReadSeeker, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.LittleEndian
	}
	r := &Reader{rs: rs, order: order, size: -1}
	if end, err := rs.Seek(0, io.SeekEnd); err == nil {
		if _, err := rs.Seek(0, io.SeekStart); err == nil {
			r.size = end
		}
	}
	return r
}

// Tell returns the byte offset of the next record.
func (r *Reader) Tell() int64 { return r.pos }

// Seek moves the reader to an absolute byte offset. The offset should be one
// that was previously returned by Tell().
func (r *Reader) Seek(offset int64) error {
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.pos = offset
	return nil
}

// ByteOrder returns the byte order the Reader decodes with.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }

func (r *Reader) readMarker(start int64, what string) (uint32, error) {
	var b [markerSize]byte
	if _, err := io.ReadFull(r.rs, b[:]); err != nil {
		return 0, &CorruptRecordError{
			Offset: start, Reason: "truncated " + what + " marker", Err: err,
		}
	}
	r.pos += markerSize
	return r.order.Uint32(b[:]), nil
}

// checkPayload makes sure that a payload of head bytes starting at the
// current position fits inside the stream. Markers are read from disk, so a
// damaged one must be caught before it is used as an allocation size.
func (r *Reader) checkPayload(start int64, head uint32) error {
	if r.size >= 0 && int64(head) > r.size-r.pos {
		return &CorruptRecordError{
			Offset: start, Head: head,
			Reason: fmt.Sprintf("payload extends past end of file (%d bytes "+
				"remain)", r.size-r.pos),
			Err: io.ErrUnexpectedEOF,
		}
	}
	return nil
}

// ReadRecord reads the next record and returns its payload. The returned
// slice is reused by later calls.
func (r *Reader) ReadRecord() ([]byte, error) {
	start := r.pos
	head, err := r.readMarker(start, "leading")
	if err != nil {
		return nil, err
	}
	if err := r.checkPayload(start, head); err != nil {
		return nil, err
	}

	if cap(r.buf) < int(head) {
		r.buf = make([]byte, head)
	}
	payload := r.buf[:head]
	if _, err := io.ReadFull(r.rs, payload); err != nil {
		return nil, &CorruptRecordError{
			Offset: start, Head: head, Reason: "truncated payload", Err: err,
		}
	}
	r.pos += int64(head)

	tail, err := r.readMarker(start, "trailing")
	if err != nil {
		return nil, err
	}
	if head != tail {
		return nil, &CorruptRecordError{
			Offset: start, Head: head, Tail: tail,
			Reason: "leading and trailing markers disagree",
		}
	}
	return payload, nil
}

// Skip advances past n records without reading their payloads. Both markers
// of every record are still read and compared.
func (r *Reader) Skip(n int) error {
	for i := 0; i < n; i++ {
		start := r.pos
		head, err := r.readMarker(start, "leading")
		if err != nil {
			return err
		}
		if err := r.checkPayload(start, head); err != nil {
			return err
		}
		if _, err := r.rs.Seek(int64(head), io.SeekCurrent); err != nil {
			return &CorruptRecordError{
				Offset: start, Head: head, Reason: "cannot seek past payload",
				Err: err,
			}
		}
		r.pos += int64(head)
		tail, err := r.readMarker(start, "trailing")
		if err != nil {
			return err
		}
		if head != tail {
			return &CorruptRecordError{
				Offset: start, Head: head, Tail: tail,
				Reason: "leading and trailing markers disagree",
			}
		}
	}
	return nil
}

// ReadVector reads the next record as a flat array of elements of type t.
// The number of elements is determined by the record's own byte count.
func (r *Reader) ReadVector(t Type) (Value, error) {
	size := t.Size()
	if size < 0 {
		return Value{}, fmt.Errorf("'%c' is not a recognized record type. "+
			"Only 'i', 'I', 'q', 'f', 'd', and 'c' are supported.", byte(t))
	}

	start := r.pos
	payload, err := r.ReadRecord()
	if err != nil {
		return Value{}, err
	}
	if len(payload)%size != 0 {
		return Value{}, &CorruptRecordError{
			Offset: start, Head: uint32(len(payload)), Tail: uint32(len(payload)),
			Reason: fmt.Sprintf("payload is not a whole number of %d-byte "+
				"'%c' elements", size, byte(t)),
		}
	}
	return r.decode(t, payload), nil
}

// ReadFloat64s reads the next record as an array of float64 values.
func (r *Reader) ReadFloat64s() ([]float64, error) {
	v, err := r.ReadVector(Float64)
	if err != nil {
		return nil, err
	}
	return v.Floats, nil
}

// ReadAttrs reads one record per schema entry and returns the decoded
// values in schema order. Each record must hold exactly Count elements.
func (r *Reader) ReadAttrs(schema []Attr) (*Attrs, error) {
	out := NewAttrs()
	for _, attr := range schema {
		start := r.pos
		v, err := r.ReadVector(attr.Type)
		if err != nil {
			return nil, fmt.Errorf("Reading header attribute '%s': %w",
				attr.Name, err)
		}
		if v.Len() != attr.Count {
			n := uint32(v.Len() * attr.Type.Size())
			return nil, &CorruptRecordError{
				Offset: start, Head: n, Tail: n,
				Reason: fmt.Sprintf("attribute '%s' should hold %d '%c' "+
					"elements but holds %d", attr.Name, attr.Count,
					byte(attr.Type), v.Len()),
			}
		}
		out.Set(attr.Name, v)
	}
	return out, nil
}

func (r *Reader) decode(t Type, b []byte) Value {
	size := t.Size()
	n := len(b) / size
	v := Value{Type: t}

	switch t {
	case Char:
		v.Str = string(b)
	case Int32:
		v.Ints = make([]int64, n)
		for i := range v.Ints {
			v.Ints[i] = int64(int32(r.order.Uint32(b[i*size:])))
		}
	case Uint32:
		v.Ints = make([]int64, n)
		for i := range v.Ints {
			v.Ints[i] = int64(r.order.Uint32(b[i*size:]))
		}
	case Int64:
		v.Ints = make([]int64, n)
		for i := range v.Ints {
			v.Ints[i] = int64(r.order.Uint64(b[i*size:]))
		}
	case Float32:
		v.Floats = make([]float64, n)
		for i := range v.Floats {
			v.Floats[i] = float64(math.Float32frombits(r.order.Uint32(b[i*size:])))
		}
	case Float64:
		v.Floats = make([]float64, n)
		for i := range v.Floats {
			v.Floats[i] = math.Float64frombits(r.order.Uint64(b[i*size:]))
		}
	}
	return v
}
