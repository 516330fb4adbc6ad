package domain

import (
	"fmt"
	"strings"
	"time"
)

// Session is a named slot of a calendar day a venue can be booked for.
type Session string

const (
	SessionFullDay Session = "full_day"
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

type sessionBounds struct {
	startHour int
	// hours after startHour; may run past midnight
	length int
}

var sessions = map[Session]sessionBounds{
	SessionFullDay: {startHour: 0, length: 24},
	SessionMorning: {startHour: 8, length: 6},
	SessionEvening: {startHour: 17, length: 8},
}

func ParseSession(s string) (Session, error) {
	if s == "" {
		return SessionFullDay, nil
	}

	sess := Session(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sessions[sess]; !ok {
		return "", fmt.Errorf("%w: unknown session %q", ErrValidation, s)
	}

	return sess, nil
}

// Range returns the session's interval on the calendar day of day in loc.
// Sessions running past midnight end on the following calendar day.
func (s Session) Range(day time.Time, loc *time.Location) (TimeRange, error) {
	b, ok := sessions[s]
	if !ok {
		return TimeRange{}, fmt.Errorf("%w: unknown session %q", ErrValidation, s)
	}

	if loc == nil {
		loc = time.UTC
	}

	day = day.In(loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), b.startHour, 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), b.startHour+b.length, 0, 0, 0, loc)

	return NewTimeRange(start, end)
}
