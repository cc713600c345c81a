package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used by the archive.
const DateLayout = "2006-01-02"

// DefaultRangeDays is how far back the default range starts from today.
const DefaultRangeDays = 9

// ArchiveEpoch is the first day covered by the archive.
var ArchiveEpoch = time.Date(1995, time.June, 16, 0, 0, 0, 0, time.UTC)

var (
	// ErrMissingDate is returned when start or end is empty.
	ErrMissingDate = errors.New("missing date")
	// ErrInvalidDate is returned when a date does not parse as YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrReversedRange is returned when start is after end.
	ErrReversedRange = errors.New("start date is after end date")
	// ErrOutOfRange is returned when a date falls outside the archive coverage.
	ErrOutOfRange = errors.New("date outside archive coverage")
)

// DateRange is an inclusive interval of calendar days, both ends at UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange validates raw start/end values against the archive coverage window
// [ArchiveEpoch, today]. now determines "today".
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return DateRange{}, ErrMissingDate
	}
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidDate, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidDate, end)
	}
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: %s > %s", ErrReversedRange, start, end)
	}
	today := Day(now)
	if s.Before(ArchiveEpoch) || e.After(today) {
		return DateRange{}, fmt.Errorf("%w: must be within %s..%s",
			ErrOutOfRange, ArchiveEpoch.Format(DateLayout), today.Format(DateLayout))
	}
	return DateRange{Start: s, End: e}, nil
}

// DefaultDateRange returns the range from DefaultRangeDays ago through today,
// never starting before ArchiveEpoch.
func DefaultDateRange(now time.Time) DateRange {
	end := Day(now)
	start := end.AddDate(0, 0, -DefaultRangeDays)
	if start.Before(ArchiveEpoch) {
		start = ArchiveEpoch
	}
	return DateRange{Start: start, End: end}
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartString formats the start date as YYYY-MM-DD.
func (r DateRange) StartString() string { return r.Start.Format(DateLayout) }

// EndString formats the end date as YYYY-MM-DD.
func (r DateRange) EndString() string { return r.End.Format(DateLayout) }

// Days returns the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.StartString() + ".." + r.EndString()
}
