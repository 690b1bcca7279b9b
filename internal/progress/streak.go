package progress

import "time"

// nextStreak returns the streak after a passing attempt at now, given the
// previous streak and the time of the previous passing attempt. Days are
// compared in UTC.
func nextStreak(streak int, lastSolved, now time.Time) int {
	if lastSolved.IsZero() || streak <= 0 {
		return 1
	}

	switch days := daysBetween(lastSolved, now); {
	case days <= 0:
		return streak
	case days == 1:
		return streak + 1
	default:
		return 1
	}
}

// currentStreak reports the streak as seen at now: a streak whose last
// passing day is older than yesterday has lapsed.
func currentStreak(streak int, lastSolved, now time.Time) int {
	if lastSolved.IsZero() || daysBetween(lastSolved, now) > 1 {
		return 0
	}
	return streak
}

func daysBetween(from, to time.Time) int {
	f := from.UTC()
	t := to.UTC()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}
