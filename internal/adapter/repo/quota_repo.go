package repo

import (
	"context"
	"fmt"

	"animator/internal/domain"
	"animator/internal/infra"
	"animator/internal/sqlinline"
)

// QuotaRepositoryPG reads and resets per-user quota rows.
type QuotaRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewQuotaRepository(sql infra.SQLExecutor) *QuotaRepositoryPG {
	return &QuotaRepositoryPG{sql: sql}
}

func (r *QuotaRepositoryPG) GetQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	return scanQuota(r.sql.QueryRow(ctx, sqlinline.QSelectUserQuota, userID))
}

// ResetQuota clears a user's counter; used by operators.
func (r *QuotaRepositoryPG) ResetQuota(ctx context.Context, userID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QResetUserQuota, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuota(row rowScanner) (*domain.QuotaRecord, error) {
	var rec domain.QuotaRecord
	if err := row.Scan(&rec.UserID, &rec.DailyCount, &rec.LastAnimationDate); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan quota: %w", err)
	}
	return &rec, nil
}

// SubmissionStorePG runs submissions inside a pgx transaction. The quota row
// is read with FOR UPDATE so concurrent submissions by one user serialise.
type SubmissionStorePG struct {
	tx infra.Transactor
}

func NewSubmissionStore(tx infra.Transactor) *SubmissionStorePG {
	return &SubmissionStorePG{tx: tx}
}

func (s *SubmissionStorePG) WithinTx(ctx context.Context, fn func(tx domain.SubmissionTx) error) error {
	return s.tx.InTx(ctx, func(exec infra.SQLExecutor) error {
		return fn(&submissionTx{sql: exec})
	})
}

type submissionTx struct {
	sql infra.SQLExecutor
}

func (t *submissionTx) LockQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	return scanQuota(t.sql.QueryRow(ctx, sqlinline.QLockUserQuota, userID))
}

func (t *submissionTx) SaveQuota(ctx context.Context, rec domain.QuotaRecord) error {
	_, err := t.sql.Exec(ctx, sqlinline.QUpdateUserQuota, rec.UserID, rec.DailyCount, rec.LastAnimationDate)
	return err
}

// InsertMessage only inserts into a conversation owned by userID; a missing
// or foreign conversation selects no row.
func (t *submissionTx) InsertMessage(ctx context.Context, userID string, msg *domain.Message) error {
	row := t.sql.QueryRow(ctx, sqlinline.QInsertMessage, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, userID)
	if err := row.Scan(&msg.CreatedAt, &msg.UpdatedAt); err != nil {
		if infra.IsNoRows(err) || infra.IsForeignKeyViolation(err) {
			return domain.ErrConversationNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *submissionTx) InsertJob(ctx context.Context, job *domain.Job) error {
	row := t.sql.QueryRow(ctx, sqlinline.QInsertJob, job.ID, job.MessageID)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	job.Status = domain.JobStatusPending
	return nil
}

var (
	_ domain.QuotaReader     = (*QuotaRepositoryPG)(nil)
	_ domain.SubmissionStore = (*SubmissionStorePG)(nil)
)
