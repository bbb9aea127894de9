package fortio

import "fmt"

// CorruptRecordError is returned when a record's framing cannot be trusted:
// the leading and trailing byte counts disagree, the file ends partway
// through a record, or the payload does not have the shape the caller
// expected. A file that produces this error should be considered unusable.
type CorruptRecordError struct {
	// Offset is the byte offset of the record's leading marker.
	Offset int64
	// Head and Tail are the leading and trailing byte counts, where known.
	Head, Tail uint32
	Reason     string
	Err        error
}

func (e *CorruptRecordError) Error() string {
	msg := fmt.Sprintf("Corrupt record at byte %d (leading marker %d, "+
		"trailing marker %d): %s.", e.Offset, e.Head, e.Tail, e.Reason)
	if e.Err != nil {
		msg += " Underlying error: " + e.Err.Error()
	}
	return msg
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }
