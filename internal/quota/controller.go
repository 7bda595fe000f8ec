package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"animator/internal/domain"
)

// Controller is the pre-flight admission check. It reads outside any
// transaction, so a nil result is advisory; submission re-checks atomically.
type Controller struct {
	users  domain.QuotaReader
	limit  int
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func NewController(users domain.QuotaReader, limit int, opts ...Option) *Controller {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	c := &Controller{users: users, limit: limit, now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limit returns the configured daily limit.
func (c *Controller) Limit() int { return c.limit }

// Admit returns nil to allow the submission, or one of ErrMissingIdentity,
// ErrUserNotFound, or a *domain.QuotaError.
func (c *Controller) Admit(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingIdentity
	}
	rec, err := c.users.GetQuota(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: read quota: %v", domain.ErrPersistence, err)
	}
	effective := EffectiveCount(*rec, c.now())
	if effective >= c.limit {
		c.logger.Info().Str("user_id", userID).Int("count", effective).Int("limit", c.limit).Msg("quota: pre-flight denied")
		return &domain.QuotaError{Limit: c.limit}
	}
	return nil
}
