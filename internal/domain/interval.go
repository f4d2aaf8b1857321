package domain

import (
	"fmt"
	"math"
)

// Interval is an inclusive date range with Start <= End.
type Interval struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewInterval validates the ordering of start and end.
func NewInterval(start, end Date) (Interval, error) {
	if start.After(end) {
		return Interval{}, &ValidationError{Start: start.String(), End: end.String(), Err: ErrStartAfterEnd}
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval parses two YYYY-MM-DD strings into an Interval.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Interval{}, &ValidationError{Start: start, End: end, Err: fmt.Errorf("%w: %w", ErrInvalidDate, err)}
	}
	e, err := ParseDate(end)
	if err != nil {
		return Interval{}, &ValidationError{Start: start, End: end, Err: fmt.Errorf("%w: %w", ErrInvalidDate, err)}
	}
	return NewInterval(s, e)
}

func (iv Interval) String() string {
	return iv.Start.String() + ".." + iv.End.String()
}

// Days returns the whole number of days between Start and End.
func (iv Interval) Days() int {
	return iv.Start.DaysUntil(iv.End)
}

// Expansion holds the knobs applied by Interval.Expand.
type Expansion struct {
	// PercentageToChange scales the duration; -100 shrinks it to zero and
	// lower values reverse it, which padding may still absorb.
	PercentageToChange float64
	// DaysEitherEnd pads the window symmetrically, in calendar days.
	DaysEitherEnd int
	// YearShift moves the window by whole years, usually into the past.
	YearShift int
}

// Validate rejects negative padding. The percentage is unbounded; whether it
// yields a usable window depends on the interval, so Expand checks that.
func (x Expansion) Validate() error {
	if x.DaysEitherEnd < 0 {
		return &ValidationError{Err: fmt.Errorf("%w: days either end %d is negative", ErrInvalidExpansion, x.DaysEitherEnd)}
	}
	return nil
}

// Expand shifts the interval by YearShift years, rescales its duration and
// pads both ends. Shrinking rounds the scaled duration down and growing
// rounds it up, so the result leans towards the wider window. A window whose
// end falls before its start is rejected with ErrInvalidExpansion.
func (iv Interval) Expand(x Expansion) (Interval, error) {
	if err := x.Validate(); err != nil {
		return Interval{}, err
	}

	start := iv.Start.AddYears(x.YearShift)
	end := iv.End.AddYears(x.YearShift)

	duration := float64(start.DaysUntil(end))
	changeFactor := 1.0 + x.PercentageToChange/100

	var newDuration int
	if changeFactor < 1 {
		newDuration = int(math.Floor(duration * changeFactor))
	} else {
		newDuration = int(math.Ceil(duration * changeFactor))
	}

	out := Interval{
		Start: start.AddDays(-x.DaysEitherEnd),
		End:   start.AddDays(newDuration + x.DaysEitherEnd),
	}
	if out.Start.After(out.End) {
		return Interval{}, &ValidationError{
			Start: iv.Start.String(),
			End:   iv.End.String(),
			Err: fmt.Errorf("%w: percentage to change %g with %d days either end gives %s..%s",
				ErrInvalidExpansion, x.PercentageToChange, x.DaysEitherEnd, out.Start, out.End),
		}
	}
	return out, nil
}

// Expand is the string form of Interval.Expand. The start/end ordering is
// checked on the input dates, before the year shift is applied.
func Expand(startDate, endDate string, percentageToChange float64, daysEitherEnd, yearShift int) (string, string, error) {
	iv, err := ParseInterval(startDate, endDate)
	if err != nil {
		return "", "", err
	}
	out, err := iv.Expand(Expansion{
		PercentageToChange: percentageToChange,
		DaysEitherEnd:      daysEitherEnd,
		YearShift:          yearShift,
	})
	if err != nil {
		return "", "", err
	}
	return out.Start.String(), out.End.String(), nil
}
