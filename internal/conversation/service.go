// Package conversation manages the threads that group a user's submissions,
// including teardown of their rendered videos.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"animator/internal/domain"
	"animator/internal/storage"
)

// DefaultTitle is used when a conversation is created without one.
const DefaultTitle = "New animation"

const maxTitleLen = 120

type CreateRequest struct {
	UserID string `json:"userId" validate:"required"`
	Title  string `json:"title" validate:"omitempty,max=200"`
}

// Detail is a conversation together with its transcript.
type Detail struct {
	domain.Conversation
	Messages []domain.MessageWithJob `json:"messages"`
}

type Service struct {
	repo    domain.ConversationRepository
	storage storage.Storage
	logger  zerolog.Logger
	newID   func() string
}

func NewService(repo domain.ConversationRepository, store storage.Storage, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		storage: store,
		logger:  logger.With().Str("component", "conversation").Logger(),
		newID:   func() string { return uuid.NewString() },
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Conversation, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	conv := &domain.Conversation{
		ID:     s.newID(),
		UserID: userID,
		Title:  NormalizeTitle(req.Title),
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return conv, nil
}

// Get returns the conversation only when userID owns it; otherwise it is
// reported as not found.
func (s *Service) Get(ctx context.Context, id, userID string) (*Detail, error) {
	conv, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", domain.ErrPersistence, err)
	}
	if msgs == nil {
		msgs = []domain.MessageWithJob{}
	}
	return &Detail{Conversation: *conv, Messages: msgs}, nil
}

// Delete removes every video referenced by the conversation's jobs, then the
// conversation itself. Storage failures are reported, never fatal.
func (s *Service) Delete(ctx context.Context, id, userID string) (storage.DeleteReport, error) {
	empty := storage.DeleteReport{Succeeded: []string{}, Failed: []string{}}
	conv, err := s.owned(ctx, id, userID)
	if err != nil {
		return empty, err
	}
	urls, err := s.repo.ListVideoURLs(ctx, conv.ID)
	if err != nil {
		return empty, fmt.Errorf("%w: list videos: %v", domain.ErrPersistence, err)
	}

	report := empty
	if len(urls) > 0 && s.storage != nil {
		report = storage.DeleteMany(ctx, s.storage, urls, s.logger)
	}
	if len(report.Failed) > 0 {
		s.logger.Warn().
			Str("conversation_id", conv.ID).
			Int("failed", len(report.Failed)).
			Msg("some videos could not be deleted")
	}

	if err := s.repo.Delete(ctx, conv.ID); err != nil {
		return report, fmt.Errorf("%w: delete conversation: %v", domain.ErrPersistence, err)
	}
	s.logger.Info().
		Str("conversation_id", conv.ID).
		Int("videos_deleted", len(report.Succeeded)).
		Msg("conversation deleted")
	return report, nil
}

func (s *Service) owned(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrConversationNotFound
	}
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if conv.UserID != userID {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

// NormalizeTitle trims, collapses whitespace and title-cases a title.
func NormalizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return DefaultTitle
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	// Casers hold state and must not be shared across goroutines.
	return cases.Title(language.English).String(title)
}
