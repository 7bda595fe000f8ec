package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"animator/internal/domain"
	"animator/internal/testsupport/memstore"
)

type failingReader struct{ err error }

func (f failingReader) GetQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	return nil, f.err
}

func TestControllerAdmit(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	store := memstore.New()
	store.AddUser("fresh", 0, nil)
	store.AddUser("busy", 49, day(2026, 10, 18))
	store.AddUser("full", 50, day(2026, 10, 18))
	store.AddUser("yesterday", 50, day(2026, 10, 17))

	ctrl := NewController(store, 50, WithClock(func() time.Time { return now }))

	tests := []struct {
		name    string
		userID  string
		wantErr error
	}{
		{name: "missing identity", userID: "  ", wantErr: domain.ErrMissingIdentity},
		{name: "unknown user", userID: "ghost", wantErr: domain.ErrUserNotFound},
		{name: "never submitted", userID: "fresh"},
		{name: "one slot left", userID: "busy"},
		{name: "limit reached", userID: "full", wantErr: domain.ErrQuotaExceeded},
		{name: "stale counter resets", userID: "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ctrl.Admit(context.Background(), tt.userID)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestControllerAdmitWrapsReadFailures(t *testing.T) {
	ctrl := NewController(failingReader{err: errors.New("connection refused")}, 0)
	if ctrl.Limit() != DefaultDailyLimit {
		t.Fatalf("expected default limit, got %d", ctrl.Limit())
	}
	err := ctrl.Admit(context.Background(), "u1")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
