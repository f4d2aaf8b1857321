package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDate is wrapped when a date string does not parse as YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrStartAfterEnd is wrapped when an interval's start is later than its end.
	ErrStartAfterEnd = errors.New("start date is after end date")
	// ErrInvalidExpansion is wrapped when expansion knobs are out of range.
	ErrInvalidExpansion = errors.New("invalid interval expansion")
	// ErrInvalidRecord is wrapped when a leg record has a missing or malformed field.
	ErrInvalidRecord = errors.New("invalid leg record")
)

// ValidationError reports rejected input along with the values that caused it,
// so a human can find and fix the offending source row.
type ValidationError struct {
	Leg   string // empty when the input is not tied to a leg
	Row   int    // 1-based data row in the source file, 0 when unknown
	Start string
	End   string
	Err   error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Leg != "" {
		fmt.Fprintf(&b, "leg %q: ", e.Leg)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	b.WriteString(e.Err.Error())
	if e.Start != "" || e.End != "" {
		fmt.Fprintf(&b, " (start=%s end=%s)", e.Start, e.End)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ForLeg returns a copy of e attributed to the named leg.
func (e *ValidationError) ForLeg(name string, row int) *ValidationError {
	c := *e
	c.Leg = name
	c.Row = row
	return &c
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
