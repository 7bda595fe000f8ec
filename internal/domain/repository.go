package domain

import "context"

// QuotaReader serves the non-transactional pre-flight read.
type QuotaReader interface {
	GetQuota(ctx context.Context, userID string) (*QuotaRecord, error)
}

// SubmissionTx is the set of writes performed atomically for one submission.
// LockQuota must hold the user's row until the transaction ends.
type SubmissionTx interface {
	LockQuota(ctx context.Context, userID string) (*QuotaRecord, error)
	SaveQuota(ctx context.Context, rec QuotaRecord) error
	// InsertMessage fails with ErrConversationNotFound unless userID owns
	// msg.ConversationID.
	InsertMessage(ctx context.Context, userID string, msg *Message) error
	InsertJob(ctx context.Context, job *Job) error
}

// SubmissionStore runs fn atomically; any error from fn discards every write.
type SubmissionStore interface {
	WithinTx(ctx context.Context, fn func(tx SubmissionTx) error) error
}

// JobRepository persists job state transitions. Terminal writes are no-ops
// for jobs that already reached a terminal status.
type JobRepository interface {
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetWithMessage(ctx context.Context, jobID string) (*Job, *Message, error)
	// MarkProcessing reports false when the job is already terminal.
	MarkProcessing(ctx context.Context, jobID string) (bool, error)
	SaveScript(ctx context.Context, jobID, script string) error
	MarkComplete(ctx context.Context, jobID, videoURL string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
}

// ConversationRepository covers conversation lifecycle outside of submission.
type ConversationRepository interface {
	Create(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]MessageWithJob, error)
	ListVideoURLs(ctx context.Context, conversationID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}
