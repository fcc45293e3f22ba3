package domain

import (
	"sort"
	"time"
)

// Streak computes the current consecutive-day streak from a completion
// map. The caller supplies "today" so the result is reproducible in
// tests and across midnight.
//
// A completion on today or yesterday keeps the streak alive; if the
// most recent completion is older than yesterday the streak is 0. A
// user who completed yesterday but has not acted yet today still has
// their full streak. Starting the walk from today instead would
// silently zero active streaks, so the yesterday grace is load-bearing.
func Streak(completions CompletionMap, today time.Time) int {
	var days []time.Time
	for key, done := range completions {
		if !done {
			continue
		}
		d, err := ParseDay(key)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return 0
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})

	day := today.UTC().Truncate(24 * time.Hour)
	yesterday := day.AddDate(0, 0, -1)

	mostRecent := days[0]
	if mostRecent.Before(yesterday) {
		return 0
	}

	streak := 1
	expected := mostRecent.AddDate(0, 0, -1)

	for _, d := range days[1:] {
		switch {
		case d.Equal(expected):
			streak++
			expected = expected.AddDate(0, 0, -1)
		case d.Before(expected):
			return streak
		}
	}

	return streak
}
