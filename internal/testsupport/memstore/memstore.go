// Package memstore is an in-memory implementation of the domain repositories
// for package tests. WithinTx holds a store-wide lock for the duration of the
// callback, standing in for the row lock Postgres takes on the user record.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"animator/internal/domain"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users         map[string]domain.QuotaRecord
	conversations map[string]domain.Conversation
	messages      map[string]domain.Message
	jobs          map[string]domain.Job
	clock         time.Time

	// FailInsertJob, when set, is returned by every InsertJob call.
	FailInsertJob error
	// FailMarkFailed, when set, is returned by every MarkFailed call.
	FailMarkFailed error
	// FailGetJob, when set, is returned by every GetWithMessage call.
	FailGetJob error
	// TxDelay is slept inside WithinTx after LockQuota to widen race windows.
	TxDelay time.Duration
}

func New() *Store {
	return &Store{
		users:         map[string]domain.QuotaRecord{},
		conversations: map[string]domain.Conversation{},
		messages:      map[string]domain.Message{},
		jobs:          map[string]domain.Job{},
		clock:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) AddUser(id string, count int, last *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = domain.QuotaRecord{UserID: id, DailyCount: count, LastAnimationDate: last}
}

func (s *Store) AddConversation(id, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	s.conversations[id] = domain.Conversation{ID: id, UserID: userID, Title: "New animation", CreatedAt: now, UpdatedAt: now}
}

// AddJob inserts a message and its job directly, bypassing submission.
func (s *Store) AddJob(conversationID, messageID, jobID, prompt string, status domain.JobStatus, videoURL *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	s.messages[messageID] = domain.Message{ID: messageID, ConversationID: conversationID, Role: domain.RoleUser, Content: prompt, CreatedAt: now, UpdatedAt: now}
	s.jobs[jobID] = domain.Job{ID: jobID, MessageID: messageID, Status: status, VideoURL: videoURL, CreatedAt: now, UpdatedAt: now}
}

func (s *Store) Quota(userID string) (domain.QuotaRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	return rec, ok
}

func (s *Store) Job(jobID string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

func (s *Store) HasConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[id]
	return ok
}

// Counts returns the number of stored messages and jobs.
func (s *Store) Counts() (messages, jobs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), len(s.jobs)
}

func (s *Store) GetQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &rec, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.SubmissionTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.quota != nil {
		s.users[tx.quota.UserID] = *tx.quota
	}
	for _, m := range tx.messages {
		s.messages[m.ID] = m
	}
	for _, j := range tx.jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

type memTx struct {
	store    *Store
	quota    *domain.QuotaRecord
	messages []domain.Message
	jobs     []domain.Job
}

func (t *memTx) LockQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	rec, err := t.store.GetQuota(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t.store.TxDelay > 0 {
		time.Sleep(t.store.TxDelay)
	}
	return rec, nil
}

func (t *memTx) SaveQuota(ctx context.Context, rec domain.QuotaRecord) error {
	t.quota = &rec
	return nil
}

func (t *memTx) InsertMessage(ctx context.Context, userID string, msg *domain.Message) error {
	t.store.mu.Lock()
	conv, ok := t.store.conversations[msg.ConversationID]
	now := t.store.tick()
	t.store.mu.Unlock()
	if !ok || conv.UserID != userID {
		return domain.ErrConversationNotFound
	}
	msg.CreatedAt, msg.UpdatedAt = now, now
	t.messages = append(t.messages, *msg)
	return nil
}

func (t *memTx) InsertJob(ctx context.Context, job *domain.Job) error {
	if t.store.FailInsertJob != nil {
		return t.store.FailInsertJob
	}
	t.store.mu.Lock()
	now := t.store.tick()
	t.store.mu.Unlock()
	job.Status = domain.JobStatusPending
	job.CreatedAt, job.UpdatedAt = now, now
	t.jobs = append(t.jobs, *job)
	return nil
}

func (s *Store) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (s *Store) GetWithMessage(ctx context.Context, jobID string) (*domain.Job, *domain.Message, error) {
	if s.FailGetJob != nil {
		return nil, nil, s.FailGetJob
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	msg, ok := s.messages[job.MessageID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	return &job, &msg, nil
}

// apply runs fn on a non-terminal job, mirroring the SQL guards, and
// reports whether the job changed.
func (s *Store) apply(jobID string, fn func(*domain.Job)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return false, nil
	}
	fn(&job)
	job.UpdatedAt = s.tick()
	s.jobs[jobID] = job
	return true, nil
}

func (s *Store) update(jobID string, fn func(*domain.Job)) error {
	_, err := s.apply(jobID, fn)
	return err
}

func (s *Store) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	return s.apply(jobID, func(j *domain.Job) {
		j.Status = domain.JobStatusProcessing
		j.Error = nil
	})
}

func (s *Store) SaveScript(ctx context.Context, jobID, script string) error {
	return s.update(jobID, func(j *domain.Job) { j.Script = &script })
}

func (s *Store) MarkComplete(ctx context.Context, jobID, videoURL string) error {
	return s.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobStatusComplete
		j.VideoURL = &videoURL
		j.Error = nil
	})
}

func (s *Store) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	if s.FailMarkFailed != nil {
		return s.FailMarkFailed
	}
	return s.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.Error = &errMsg
	})
}

func (s *Store) Create(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[conv.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	now := s.tick()
	conv.CreatedAt, conv.UpdatedAt = now, now
	s.conversations[conv.ID] = *conv
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return &conv, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]domain.MessageWithJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MessageWithJob
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		entry := domain.MessageWithJob{Message: m}
		for _, j := range s.jobs {
			if j.MessageID == m.ID {
				job := j
				entry.Job = &job
				break
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (s *Store) ListVideoURLs(ctx context.Context, conversationID string) ([]string, error) {
	entries, err := s.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, e := range entries {
		if e.Job != nil && e.Job.VideoURL != nil {
			urls = append(urls, *e.Job.VideoURL)
		}
	}
	return urls, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return domain.ErrConversationNotFound
	}
	delete(s.conversations, id)
	for mid, m := range s.messages {
		if m.ConversationID != id {
			continue
		}
		delete(s.messages, mid)
		for jid, j := range s.jobs {
			if j.MessageID == mid {
				delete(s.jobs, jid)
			}
		}
	}
	return nil
}

var (
	_ domain.QuotaReader            = (*Store)(nil)
	_ domain.SubmissionStore        = (*Store)(nil)
	_ domain.JobRepository          = (*Store)(nil)
	_ domain.ConversationRepository = (*Store)(nil)
)
