package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// Job tracks one animation request from submission to terminal outcome.
// Exactly one job exists per message.
type Job struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	Status    JobStatus `json:"status"`
	Script    *string   `json:"script,omitempty"`
	VideoURL  *string   `json:"videoUrl"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VideoName is the storage object name for a job's rendered artifact.
func VideoName(jobID string) string {
	return "animation_" + jobID + ".mp4"
}
