package domain

import (
	"errors"
	"time"
)

var (
	ErrHabitNotFound   = errors.New("habit not found")
	ErrPartnerNotFound = errors.New("partner not found")
	ErrInvalidDateKey  = errors.New("invalid date key (must be YYYY-MM-DD)")
	ErrToggleInFlight  = errors.New("a toggle for this habit and date is already in flight")
)

// DateLayout is the calendar-day key format used for completion maps.
// Keys are UTC-normalized.
const DateLayout = "2006-01-02"

// Habit is the client-side view of a habit record as the server returns
// it. Completions is the sparse per-day record; StreakCount and
// LastCompleted are advisory server caches, the client derives its own
// streak from Completions.
type Habit struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Colour        string        `json:"colour"`
	Frequency     int           `json:"frequency"`
	Completions   CompletionMap `json:"completions"`
	StreakCount   int           `json:"streak_count"`
	LastCompleted *string       `json:"last_completed,omitempty"`
}

// CompletionMap is a sparse YYYY-MM-DD → completed record. A missing
// key and a key holding false read the same; false entries only occur
// transiently around optimistic rollback.
type CompletionMap map[string]bool

// DayKey normalizes a point in time to its UTC calendar-day key.
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDay parses a YYYY-MM-DD key back into a UTC midnight time.
func ParseDay(key string) (time.Time, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, ErrInvalidDateKey
	}
	return t, nil
}

// Completed reports whether the given day key is marked done.
func (m CompletionMap) Completed(key string) bool {
	return m[key]
}

// Clone returns an independent copy. A nil map clones to an empty one
// so callers can always write to the result.
func (m CompletionMap) Clone() CompletionMap {
	out := make(CompletionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal compares two maps treating absent keys and false values as the
// same state.
func (m CompletionMap) Equal(other CompletionMap) bool {
	for k, v := range m {
		if v && !other[k] {
			return false
		}
	}
	for k, v := range other {
		if v && !m[k] {
			return false
		}
	}
	return true
}
