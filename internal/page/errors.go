// Package page implements the table page (C2): a single page-sized buffer
// managed as a fixed-position record store over a known schema. It follows
// the teacher's binary-layout idiom — explicit offset constants,
// encoding/binary LittleEndian helpers, a Wrap/Init constructor pair over a
// raw []byte — but without the teacher's slot-directory indirection: records
// here sit at fixed positions derived from record width.
package page

import "fmt"

// FormatError reports a corrupted header, bad magic, or a field whose
// declared type disagrees with the schema column.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return fmt.Sprintf("page: format error: %s", e.Reason) }

// RangeError reports an out-of-range slot index.
type RangeError struct {
	Position int
	Count    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("page: slot %d out of range [0,%d)", e.Position, e.Count)
}

// ExpiredError reports access to a page whose wrapper has been marked expired.
type ExpiredError struct {
	PageNumber uint32
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("page: page %d is expired", e.PageNumber)
}

// There is no sentinel error for "not present" (tombstoned or filtered out):
// GetTuple and GetTupleFiltered report it through their bool result, as a
// (Tuple, bool) pair, matching the spec's "not present" return.
