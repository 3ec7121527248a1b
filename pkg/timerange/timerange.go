// Package timerange models half-open [start, end) time intervals anchored
// to a single calendar day in the clinic's timezone.
//
// Wall-clock input (a date plus "HH:MM" times) is interpreted in the clinic
// location and stored as UTC instants truncated to the minute.
package timerange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smiledesk/dental/pkg/apperr"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" or "HH:MM:SS". Seconds are discarded.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, apperr.Newf(apperr.KindInvalidRange, "invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, apperr.Newf(apperr.KindInvalidRange, "invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, apperr.Newf(apperr.KindInvalidRange, "invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return Clock{}, apperr.Newf(apperr.KindInvalidRange, "invalid second in %q", s)
		}
	}
	return Clock{Hour: h, Minute: m}, nil
}

// MustClock is ParseClock for constants; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock time of t in loc.
func ClockOf(t time.Time, loc *time.Location) Clock {
	t = t.In(loc)
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// Before reports whether c is earlier in the day than o.
func (c Clock) Before(o Clock) bool { return c.Minutes() < o.Minutes() }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ValidateClocks checks start < end for a wall-clock pair.
func ValidateClocks(start, end Clock) error {
	if !start.Before(end) {
		return apperr.Newf(apperr.KindInvalidRange, "start time %s must be before end time %s", start, end)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date and returns midnight of that day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperr.Newf(apperr.KindInvalidRange, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DateOf returns midnight in loc of the calendar day containing t.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SameDate reports whether a and b fall on the same calendar day in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// TimeRange is a half-open interval [Start, End) stored in UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a range on date (any instant on the intended day in loc) from
// two wall-clock times.
func New(date time.Time, start, end Clock, loc *time.Location) (TimeRange, error) {
	if err := ValidateClocks(start, end); err != nil {
		return TimeRange{}, err
	}
	y, m, d := date.In(loc).Date()
	s := time.Date(y, m, d, start.Hour, start.Minute, 0, 0, loc)
	e := time.Date(y, m, d, end.Hour, end.Minute, 0, 0, loc)
	return TimeRange{Start: s.UTC(), End: e.UTC()}, nil
}

// Parse builds a range from wire strings: a YYYY-MM-DD date and HH:MM times.
func Parse(date, start, end string, loc *time.Location) (TimeRange, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return TimeRange{}, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeRange{}, err
	}
	return New(d, s, e, loc)
}

// FromInstants normalizes two instants to minute precision and checks that
// they form a non-empty range within one calendar day in loc.
func FromInstants(start, end time.Time, loc *time.Location) (TimeRange, error) {
	s := start.Truncate(time.Minute).UTC()
	e := end.Truncate(time.Minute).UTC()
	if !s.Before(e) {
		return TimeRange{}, apperr.New(apperr.KindInvalidRange, "start must be before end")
	}
	if !SameDate(s, e, loc) {
		return TimeRange{}, apperr.New(apperr.KindInvalidRange, "start and end must fall on the same day")
	}
	return TimeRange{Start: s, End: e}, nil
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps reports whether r and o share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool { return Overlaps(r, o) }

// Contains reports whether o lies entirely inside r.
func (r TimeRange) Contains(o TimeRange) bool {
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// Clocks returns the wall-clock start and end of r in loc.
func (r TimeRange) Clocks(loc *time.Location) (Clock, Clock) {
	return ClockOf(r.Start, loc), ClockOf(r.End, loc)
}

// Sort orders ranges by start, then end.
func Sort(rs []TimeRange) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Start.Equal(rs[j].Start) {
			return rs[i].End.Before(rs[j].End)
		}
		return rs[i].Start.Before(rs[j].Start)
	})
}

// AnyContains reports whether some window fully contains r.
func AnyContains(windows []TimeRange, r TimeRange) bool {
	for _, w := range windows {
		if w.Contains(r) {
			return true
		}
	}
	return false
}

// Subtract removes every busy interval from windows and returns the free
// remainder, ordered by start.
func Subtract(windows, busy []TimeRange) []TimeRange {
	free := make([]TimeRange, 0, len(windows))
	for _, w := range windows {
		pieces := []TimeRange{w}
		for _, b := range busy {
			var next []TimeRange
			for _, p := range pieces {
				if !Overlaps(p, b) {
					next = append(next, p)
					continue
				}
				if p.Start.Before(b.Start) {
					next = append(next, TimeRange{Start: p.Start, End: b.Start})
				}
				if b.End.Before(p.End) {
					next = append(next, TimeRange{Start: b.End, End: p.End})
				}
			}
			pieces = next
		}
		free = append(free, pieces...)
	}
	Sort(free)
	return free
}

// Split cuts r into consecutive pieces of length step. A trailing piece
// shorter than step is dropped.
func Split(r TimeRange, step time.Duration) []TimeRange {
	if step <= 0 {
		return nil
	}
	var out []TimeRange
	for s := r.Start; !s.Add(step).After(r.End); s = s.Add(step) {
		out = append(out, TimeRange{Start: s, End: s.Add(step)})
	}
	return out
}
