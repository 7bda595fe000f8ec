package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"animator/internal/domain"
	"animator/internal/queue"
	"animator/internal/submission"
)

// SubmitJob admits, records and enqueues one animation request.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submission.Request
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Admission.Admit(r.Context(), req.UserID); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Submissions.Submit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	payload := queue.Payload{
		JobID:          res.Job.ID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Prompt:         res.Message.Content,
	}
	if err := a.Publisher.Publish(r.Context(), payload); err != nil {
		// The job stays pending; quotactl requeue picks it up.
		a.logger(r).Error().Err(err).Str("job_id", res.Job.ID).Msg("publish failed after commit")
	}
	a.json(w, http.StatusCreated, res)
}

// JobStatus is the polling read. It has no side effects.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}
