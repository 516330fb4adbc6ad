package domain

import (
	"fmt"
	"sort"
	"time"
)

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange builds a range and rejects zero-length or inverted input.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	r := TimeRange{Start: start.UTC(), End: end.UTC()}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}

	return r, nil
}

func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: missing bound", ErrInvalidRange)
	}

	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidRange, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}

	return nil
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether r and other share at least one instant.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return Overlaps(r, other)
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) Shift(d time.Duration) TimeRange {
	return TimeRange{Start: r.Start.Add(d), End: r.End.Add(d)}
}

func (r TimeRange) Equal(other TimeRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Overlaps is the standard half-open interval test.
// Touching ranges ([a,b) and [b,c)) do not overlap.
func Overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// AnyOverlap reports whether any range of as overlaps any range of bs.
func AnyOverlap(as, bs []TimeRange) bool {
	for _, a := range as {
		for _, b := range bs {
			if Overlaps(a, b) {
				return true
			}
		}
	}

	return false
}

// NormalizeRanges validates explicit ranges and returns them sorted by start.
// Exact duplicates are collapsed. Adjacent ranges are never merged; ranges that
// overlap each other are rejected.
func NormalizeRanges(rs []TimeRange) ([]TimeRange, error) {
	if len(rs) == 0 {
		return nil, ErrNoRanges
	}

	out := make([]TimeRange, 0, len(rs))
	for _, r := range rs {
		r = TimeRange{Start: r.Start.UTC(), End: r.End.UTC()}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})

	dedup := out[:1]
	for _, r := range out[1:] {
		prev := dedup[len(dedup)-1]
		if r.Equal(prev) {
			continue
		}
		if Overlaps(prev, r) {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingRanges, prev, r)
		}
		dedup = append(dedup, r)
	}

	return dedup, nil
}

// NormalizeDays maps a set of calendar days to one discrete range per day
// using the session bounds in loc. Days are deduplicated by their calendar date
// in loc and returned in ascending order.
func NormalizeDays(days []time.Time, session Session, loc *time.Location) ([]TimeRange, error) {
	if len(days) == 0 {
		return nil, ErrNoRanges
	}

	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[string]struct{}, len(days))
	out := make([]TimeRange, 0, len(days))
	for _, d := range days {
		if d.IsZero() {
			return nil, fmt.Errorf("%w: zero date", ErrInvalidRange)
		}

		d = d.In(loc)
		key := d.Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		r, err := session.Range(d, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return NormalizeRanges(out)
}

// Envelope returns the smallest range covering every range in rs.
// rs must not be empty.
func Envelope(rs []TimeRange) TimeRange {
	env := rs[0]
	for _, r := range rs[1:] {
		if r.Start.Before(env.Start) {
			env.Start = r.Start
		}
		if r.End.After(env.End) {
			env.End = r.End
		}
	}

	return env
}
