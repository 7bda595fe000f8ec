package domain

import "time"

// QuotaRecord is the per-user daily usage counter. LastAnimationDate holds a
// calendar day (midnight, no meaningful time component) or nil if the user
// never submitted.
type QuotaRecord struct {
	UserID            string
	DailyCount        int
	LastAnimationDate *time.Time
}
