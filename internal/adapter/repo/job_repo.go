package repo

import (
	"context"
	"fmt"
	"time"

	"animator/internal/domain"
	"animator/internal/infra"
	"animator/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository. Status writes are guarded
// in SQL so terminal rows are never modified.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJob, jobID)
	if err := row.Scan(jobDest(&job)...); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

func (r *JobRepositoryPG) GetWithMessage(ctx context.Context, jobID string) (*domain.Job, *domain.Message, error) {
	var (
		job domain.Job
		msg domain.Message
	)
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJobWithMessage, jobID)
	dest := append(jobDest(&job), messageDest(&msg)...)
	if err := row.Scan(dest...); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get job with message: %w", err)
	}
	return &job, &msg, nil
}

func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkJobProcessing, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepositoryPG) SaveScript(ctx context.Context, jobID, script string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSaveJobScript, jobID, script)
	return err
}

func (r *JobRepositoryPG) MarkComplete(ctx context.Context, jobID, videoURL string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkJobComplete, jobID, videoURL)
	return err
}

func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkJobFailed, jobID, errMsg)
	return err
}

// PendingJob is a job still waiting for a worker, with everything needed to
// publish it again.
type PendingJob struct {
	JobID          string
	UserID         string
	ConversationID string
	Prompt         string
}

// ListStalePending returns pending jobs older than olderThan, oldest first.
func (r *JobRepositoryPG) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]PendingJob, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectStalePendingJobs, int(olderThan.Seconds()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingJob
	for rows.Next() {
		var p PendingJob
		if err := rows.Scan(&p.JobID, &p.UserID, &p.ConversationID, &p.Prompt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// jobDest lists scan targets in the column order used by every job select.
func jobDest(job *domain.Job) []any {
	return []any{&job.ID, &job.MessageID, (*string)(&job.Status), &job.Script, &job.VideoURL, &job.Error, &job.CreatedAt, &job.UpdatedAt}
}

func messageDest(msg *domain.Message) []any {
	return []any{&msg.ID, &msg.ConversationID, (*string)(&msg.Role), &msg.Content, &msg.CreatedAt, &msg.UpdatedAt}
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
