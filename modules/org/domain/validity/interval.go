// Package validity models the half-open validity window of an assignment.
package validity

import (
	"errors"
	"fmt"
	"time"
)

// EndOfTime stands in for an open-ended window. Comparisons against it behave
// like comparisons against an unbounded future while staying representable.
var EndOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Interval is [Start, End). A nil End means open-ended.
type Interval struct {
	Start time.Time
	End   *time.Time
}

func New(start time.Time, end *time.Time) Interval {
	return Interval{Start: start, End: end}
}

// UpperBound returns End, or EndOfTime when the window is open.
func (i Interval) UpperBound() time.Time {
	if i.End == nil {
		return EndOfTime
	}
	return *i.End
}

func (i Interval) IsOpen() bool {
	return i.End == nil
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.UpperBound())
}

// Overlaps is symmetric: a.Start < b.end && b.Start < a.end.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.UpperBound()) && b.Start.Before(a.UpperBound())
}

// Policy bounds how far a proposed window may reach.
type Policy struct {
	MaxBackdate Span
	MaxSpan     Span
}

// Span is a calendar length; calendar arithmetic keeps "5 years" exact
// across leap years.
type Span struct {
	Years  int
	Months int
	Days   int
}

func (s Span) AddTo(t time.Time) time.Time {
	return t.AddDate(s.Years, s.Months, s.Days)
}

func (s Span) SubtractFrom(t time.Time) time.Time {
	return t.AddDate(-s.Years, -s.Months, -s.Days)
}

func (s Span) String() string {
	switch {
	case s.Years != 0 && s.Months == 0 && s.Days == 0:
		return fmt.Sprintf("%d years", s.Years)
	case s.Years == 0 && s.Months != 0 && s.Days == 0:
		return fmt.Sprintf("%d months", s.Months)
	default:
		return fmt.Sprintf("%dy%dm%dd", s.Years, s.Months, s.Days)
	}
}

func DefaultPolicy() Policy {
	return Policy{
		MaxBackdate: Span{Years: 1},
		MaxSpan:     Span{Years: 5},
	}
}

var (
	ErrStartTooFarInPast = errors.New("start date is more than the allowed backdate window in the past")
	ErrEndNotAfterStart  = errors.New("end date must be after start date")
	ErrSpanTooLong       = errors.New("interval exceeds the maximum allowed span")
)

// Validate applies the policy to a proposed interval relative to now.
func (p Policy) Validate(i Interval, now time.Time) error {
	if i.Start.Before(p.MaxBackdate.SubtractFrom(now)) {
		return ErrStartTooFarInPast
	}
	if i.End == nil {
		return nil
	}
	if !i.End.After(i.Start) {
		return ErrEndNotAfterStart
	}
	if i.End.After(p.MaxSpan.AddTo(i.Start)) {
		return fmt.Errorf("%w (%s)", ErrSpanTooLong, p.MaxSpan)
	}
	return nil
}
