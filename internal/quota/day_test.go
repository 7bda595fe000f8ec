package quota

import (
	"errors"
	"testing"
	"time"

	"animator/internal/domain"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestIsNewDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	tests := []struct {
		name string
		last *time.Time
		now  time.Time
		want bool
	}{
		{name: "never submitted", last: nil, now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), want: true},
		{name: "same day", last: day(2026, 10, 18), now: time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC), want: false},
		{name: "previous day", last: day(2026, 10, 17), now: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), want: true},
		{name: "local midnight already passed", last: day(2026, 10, 17), now: time.Date(2026, 10, 18, 0, 30, 0, 0, loc), want: true},
		{name: "local day still running", last: day(2026, 10, 18), now: time.Date(2026, 10, 18, 23, 30, 0, 0, loc), want: false},
		{name: "stored date in the future", last: day(2026, 10, 19), now: time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := domain.QuotaRecord{UserID: "u", DailyCount: 7, LastAnimationDate: tt.last}
			if got := IsNewDay(rec, tt.now); got != tt.want {
				t.Fatalf("IsNewDay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveCountResetsAcrossDayBoundary(t *testing.T) {
	rec := domain.QuotaRecord{UserID: "u", DailyCount: 50, LastAnimationDate: day(2026, 10, 17)}
	if got := EffectiveCount(rec, time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC)); got != 50 {
		t.Fatalf("before midnight: got %d want 50", got)
	}
	if got := EffectiveCount(rec, time.Date(2026, 10, 18, 0, 0, 1, 0, time.UTC)); got != 0 {
		t.Fatalf("after midnight: got %d want 0", got)
	}
}

func TestConsume(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	t.Run("increments today", func(t *testing.T) {
		rec, err := Consume(domain.QuotaRecord{UserID: "u", DailyCount: 49, LastAnimationDate: day(2026, 10, 18)}, now, 50)
		if err != nil {
			t.Fatalf("Consume error: %v", err)
		}
		if rec.DailyCount != 50 || !rec.LastAnimationDate.Equal(Today(now)) {
			t.Fatalf("unexpected record: %+v", rec)
		}
	})

	t.Run("new day starts from one", func(t *testing.T) {
		rec, err := Consume(domain.QuotaRecord{UserID: "u", DailyCount: 50, LastAnimationDate: day(2026, 10, 17)}, now, 50)
		if err != nil {
			t.Fatalf("Consume error: %v", err)
		}
		if rec.DailyCount != 1 {
			t.Fatalf("DailyCount = %d, want 1", rec.DailyCount)
		}
	})

	t.Run("limit reached", func(t *testing.T) {
		_, err := Consume(domain.QuotaRecord{UserID: "u", DailyCount: 50, LastAnimationDate: day(2026, 10, 18)}, now, 50)
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}
	})
}
