package fortio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer encodes framed records. amrio never writes simulation outputs; the
// Writer exists so that test fixtures and tools can produce files with the
// same framing the Reader expects.
type Writer struct {
	w     io.Writer
	order binary.ByteOrder
	buf   *bytes.Buffer
}

// NewWriter creates a Writer targeting w.
func NewWriter(w io.Writer, order binary.ByteOrder) *Writer {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Writer{w: w, order: order, buf: &bytes.Buffer{}}
}

// WriteRecord writes a single framed record with the given payload.
func (w *Writer) WriteRecord(payload []byte) error {
	n := uint32(len(payload))
	if err := binary.Write(w.w, w.order, n); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	return binary.Write(w.w, w.order, n)
}

// WriteVector writes x as a single record. x may be any fixed-size value or
// slice accepted by binary.Write (e.g. []int32, []float64, int32) or a
// string, which is written as a character record.
func (w *Writer) WriteVector(x interface{}) error {
	w.buf.Reset()
	switch xx := x.(type) {
	case string:
		w.buf.WriteString(xx)
	case int:
		return fmt.Errorf("int has no fixed on-disk width, use int32 or int64")
	default:
		if err := binary.Write(w.buf, w.order, x); err != nil {
			return err
		}
	}
	return w.WriteRecord(w.buf.Bytes())
}

// WriteVectors writes each element of xs as its own record.
func (w *Writer) WriteVectors(xs ...interface{}) error {
	for _, x := range xs {
		if err := w.WriteVector(x); err != nil {
			return err
		}
	}
	return nil
}
