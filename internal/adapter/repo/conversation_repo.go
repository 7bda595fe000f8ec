package repo

import (
	"context"
	"fmt"
	"time"

	"animator/internal/domain"
	"animator/internal/infra"
	"animator/internal/sqlinline"
)

// ConversationRepositoryPG implements domain.ConversationRepository.
type ConversationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewConversationRepository(sql infra.SQLExecutor) *ConversationRepositoryPG {
	return &ConversationRepositoryPG{sql: sql}
}

func (r *ConversationRepositoryPG) Create(ctx context.Context, conv *domain.Conversation) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertConversation, conv.ID, conv.UserID, conv.Title)
	if err := row.Scan(&conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if infra.IsForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepositoryPG) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	row := r.sql.QueryRow(ctx, sqlinline.QSelectConversation, id)
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepositoryPG) ListMessages(ctx context.Context, conversationID string) ([]domain.MessageWithJob, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListConversationMessages, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MessageWithJob
	for rows.Next() {
		var (
			entry     domain.MessageWithJob
			jobID     *string
			messageID *string
			status    *string
			script    *string
			videoURL  *string
			jobErr    *string
			created   *time.Time
			updated   *time.Time
		)
		dest := append(messageDest(&entry.Message), &jobID, &messageID, &status, &script, &videoURL, &jobErr, &created, &updated)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if jobID != nil {
			entry.Job = &domain.Job{
				ID:        *jobID,
				MessageID: deref(messageID),
				Status:    domain.JobStatus(deref(status)),
				Script:    script,
				VideoURL:  videoURL,
				Error:     jobErr,
				CreatedAt: derefTime(created),
				UpdatedAt: derefTime(updated),
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *ConversationRepositoryPG) ListVideoURLs(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListConversationVideoURLs, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (r *ConversationRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteConversation, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

var _ domain.ConversationRepository = (*ConversationRepositoryPG)(nil)
