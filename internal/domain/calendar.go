package domain

import (
	"fmt"
	"sort"
	"time"
)

const monthLayout = "2006-01"

// MonthWindow returns the half-open range covering month (YYYY-MM) in loc.
func MonthWindow(month string, loc *time.Location) (TimeRange, error) {
	if loc == nil {
		loc = time.UTC
	}

	first, err := time.ParseInLocation(monthLayout, month, loc)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: month must be YYYY-MM", ErrValidation)
	}

	return NewTimeRange(first, first.AddDate(0, 1, 0))
}

// MonthsCovering lists, sorted, the YYYY-MM months in loc that rs touch.
func MonthsCovering(rs []TimeRange, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[string]struct{})
	var out []string
	for _, r := range rs {
		last := r.End.Add(-time.Nanosecond).In(loc)
		cur := r.Start.In(loc)
		cur = time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, loc)
		for !cur.After(last) {
			m := cur.Format(monthLayout)
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				out = append(out, m)
			}
			cur = cur.AddDate(0, 1, 0)
		}
	}

	sort.Strings(out)
	return out
}
