// Package submission records a new animation request: quota update, message
// and pending job are written in one transaction.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"animator/internal/domain"
	"animator/internal/quota"
)

type Request struct {
	UserID         string `json:"userId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	Prompt         string `json:"prompt" validate:"required,max=4000"`
}

type Result struct {
	Message domain.Message `json:"message"`
	Job     domain.Job     `json:"job"`
}

type Service struct {
	store  domain.SubmissionStore
	limit  int
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store domain.SubmissionStore, limit int, opts ...Option) *Service {
	if limit <= 0 {
		limit = quota.DefaultDailyLimit
	}
	s := &Service{
		store:  store,
		limit:  limit,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit is the authoritative quota check. Quota and identity errors are
// returned as-is; every other failure is wrapped in domain.ErrPersistence.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.UserID == "" {
		return nil, domain.ErrMissingIdentity
	}
	if req.ConversationID == "" || req.Prompt == "" {
		return nil, fmt.Errorf("%w: conversationId and prompt are required", domain.ErrInvalidInput)
	}

	var result Result
	err := s.store.WithinTx(ctx, func(tx domain.SubmissionTx) error {
		rec, err := tx.LockQuota(ctx, req.UserID)
		if err != nil {
			return err
		}
		updated, err := quota.Consume(*rec, s.now(), s.limit)
		if err != nil {
			return err
		}
		if err := tx.SaveQuota(ctx, updated); err != nil {
			return err
		}

		msg := domain.Message{
			ID:             s.newID(),
			ConversationID: req.ConversationID,
			Role:           domain.RoleUser,
			Content:        req.Prompt,
		}
		if err := tx.InsertMessage(ctx, req.UserID, &msg); err != nil {
			return err
		}
		job := domain.Job{
			ID:        s.newID(),
			MessageID: msg.ID,
			Status:    domain.JobStatusPending,
		}
		if err := tx.InsertJob(ctx, &job); err != nil {
			return err
		}
		result = Result{Message: msg, Job: job}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info().
		Str("user_id", req.UserID).
		Str("conversation_id", req.ConversationID).
		Str("job_id", result.Job.ID).
		Msg("submission: job created")
	return &result, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrPersistence):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
}
