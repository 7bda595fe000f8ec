// Package quota implements the per-user daily animation allowance.
package quota

import (
	"time"

	"animator/internal/domain"
)

// DefaultDailyLimit applies when no limit is configured.
const DefaultDailyLimit = 50

// Today returns the calendar day of now in now's own location, encoded as
// midnight UTC so it compares equal to a Postgres date read back by pgx.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// calendarDay strips any time and zone from a stored date.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsNewDay reports whether rec's counter belongs to an earlier day than now.
func IsNewDay(rec domain.QuotaRecord, now time.Time) bool {
	if rec.LastAnimationDate == nil {
		return true
	}
	return calendarDay(*rec.LastAnimationDate).Before(Today(now))
}

// EffectiveCount is the count that decisions use: zero on a new day.
func EffectiveCount(rec domain.QuotaRecord, now time.Time) int {
	if IsNewDay(rec, now) {
		return 0
	}
	return rec.DailyCount
}

// Consume returns the record as it must be written after admitting one more
// job, or a *domain.QuotaError if the limit is already reached.
func Consume(rec domain.QuotaRecord, now time.Time, limit int) (domain.QuotaRecord, error) {
	effective := EffectiveCount(rec, now)
	if effective >= limit {
		return rec, &domain.QuotaError{Limit: limit}
	}
	today := Today(now)
	rec.DailyCount = effective + 1
	rec.LastAnimationDate = &today
	return rec, nil
}
