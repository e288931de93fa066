// Package outcome describes the result of a persistence operation.
//
// Storage faults never surface as errors to UI-facing callers. Every fallible
// operation instead reports an Outcome that callers may inspect or ignore.
package outcome

import (
	"errors"
	"fmt"
)

// Error classes. Wrapped errors match these with errors.Is.
var (
	// ErrDecode means the stored bytes are not a valid document.
	// The whole record is treated as absent.
	ErrDecode = errors.New("decode error")

	// ErrFieldCorruption means a single field is outside its valid domain.
	// The field is reset; the rest of the record is kept.
	ErrFieldCorruption = errors.New("field corruption")

	// ErrIO means the underlying storage could not be read or written.
	ErrIO = errors.New("io failure")
)

// Status tags an Outcome.
type Status int

const (
	// OK means the operation completed and state is durable.
	OK Status = iota
	// Noop means nothing changed, so nothing was written.
	Noop
	// Defaulted means stored data was missing or unusable and defaults apply.
	Defaulted
	// Failed means the operation could not complete. In-memory state, if
	// any, remains authoritative until the next successful write.
	Failed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Noop:
		return "noop"
	case Defaulted:
		return "defaulted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the tagged result of a persistence operation.
// Err carries the cause for Defaulted and Failed outcomes and may be nil.
type Outcome struct {
	Status Status
	Err    error
}

func Success() Outcome            { return Outcome{Status: OK} }
func Unchanged() Outcome          { return Outcome{Status: Noop} }
func Default(err error) Outcome   { return Outcome{Status: Defaulted, Err: err} }
func Failure(err error) Outcome   { return Outcome{Status: Failed, Err: err} }
func (o Outcome) OK() bool        { return o.Status == OK || o.Status == Noop }
func (o Outcome) Failed() bool    { return o.Status == Failed }
func (o Outcome) Defaulted() bool { return o.Status == Defaulted }

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	}
	return o.Status.String()
}

// Worst returns the most severe of the given outcomes, keeping the first
// error seen at that severity.
func Worst(outs ...Outcome) Outcome {
	var worst Outcome
	worst.Status = Noop
	for _, o := range outs {
		if rank(o.Status) > rank(worst.Status) {
			worst = o
		}
	}
	return worst
}

func rank(s Status) int {
	switch s {
	case Noop:
		return 0
	case OK:
		return 1
	case Defaulted:
		return 2
	case Failed:
		return 3
	}
	return 0
}
