// Package worker drives one queued job through code generation, rendering
// and upload, persisting every transition on the job row.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"animator/internal/domain"
	"animator/internal/lease"
	"animator/internal/queue"
	"animator/internal/render"
	"animator/internal/storage"
)

// ScriptGenerator produces renderer source for a prompt.
type ScriptGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Jobs      domain.JobRepository
	Generator ScriptGenerator
	Renderer  render.Renderer
	Storage   storage.Storage
	Locker    lease.Locker
	Logger    zerolog.Logger

	// WorkspaceRoot is where per-job directories are created; empty means
	// the system temp dir.
	WorkspaceRoot string
	Quality       render.Quality
	// PersistTimeout bounds the failure write, which runs detached from the
	// delivery context.
	PersistTimeout time.Duration
	// RetryDelay is waited before a delivery is requeued, so an outage does
	// not turn into a tight redelivery loop.
	RetryDelay time.Duration
}

type Processor struct {
	jobs           domain.JobRepository
	generator      ScriptGenerator
	renderer       render.Renderer
	storage        storage.Storage
	locker         lease.Locker
	logger         zerolog.Logger
	workspaceRoot  string
	quality        render.Quality
	persistTimeout time.Duration
	retryDelay     time.Duration
}

func NewProcessor(opts Options) (*Processor, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("worker: job repository is required")
	case opts.Generator == nil:
		return nil, errors.New("worker: script generator is required")
	case opts.Renderer == nil:
		return nil, errors.New("worker: renderer is required")
	case opts.Storage == nil:
		return nil, errors.New("worker: storage is required")
	}
	locker := opts.Locker
	if locker == nil {
		locker = lease.Noop{}
	}
	quality := opts.Quality
	if quality == "" {
		quality = render.QualityLow
	}
	persistTimeout := opts.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = 10 * time.Second
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &Processor{
		jobs:           opts.Jobs,
		generator:      opts.Generator,
		renderer:       opts.Renderer,
		storage:        opts.Storage,
		locker:         locker,
		logger:         opts.Logger.With().Str("component", "worker").Logger(),
		workspaceRoot:  opts.WorkspaceRoot,
		quality:        quality,
		persistTimeout: persistTimeout,
		retryDelay:     retryDelay,
	}, nil
}

// Handle is a queue.Handler. Stage failures end in a failed job and an ack;
// only problems that left the job untouched are reported to the consumer.
func (p *Processor) Handle(ctx context.Context, payload queue.Payload) (err error) {
	logger := p.logger.With().
		Str("job_id", payload.JobID).
		Str("user_id", payload.UserID).
		Str("conversation_id", payload.ConversationID).
		Logger()

	job, msg, err := p.jobs.GetWithMessage(ctx, payload.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn().Msg("job or message missing, dropping delivery")
		return queue.Drop(fmt.Errorf("job %s: %w", payload.JobID, err))
	}
	if err != nil {
		return p.retry(ctx, logger, fmt.Errorf("load job %s: %w", payload.JobID, err))
	}
	if job.Status.Terminal() {
		logger.Info().Str("status", string(job.Status)).Msg("job already terminal, skipping redelivery")
		return nil
	}

	held, err := p.locker.Acquire(ctx, job.ID)
	if errors.Is(err, lease.ErrHeld) {
		logger.Info().Msg("job is being processed elsewhere, dropping delivery")
		return nil
	}
	if err != nil {
		logger.Warn().Err(err).Msg("lease unavailable, continuing without it")
		held = nil
	}
	if held != nil {
		defer func() {
			if rerr := held.Release(context.WithoutCancel(ctx)); rerr != nil {
				logger.Warn().Err(rerr).Msg("lease release failed")
			}
		}()
	}

	claimed, err := p.jobs.MarkProcessing(ctx, job.ID)
	if err != nil {
		return p.retry(ctx, logger, fmt.Errorf("mark processing %s: %w", job.ID, err))
	}
	if !claimed {
		logger.Info().Msg("job became terminal before processing, skipping")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			logger.Error().Err(perr).Msg("worker panic")
			err = p.fail(ctx, logger, job.ID, perr)
		}
	}()

	prompt := msg.Content
	if prompt == "" {
		prompt = payload.Prompt
	}

	start := time.Now()
	url, err := p.run(ctx, logger, job.ID, prompt)
	if err != nil {
		return p.fail(ctx, logger, job.ID, err)
	}
	if err := p.jobs.MarkComplete(ctx, job.ID, url); err != nil {
		return p.fail(ctx, logger, job.ID, fmt.Errorf("%w: mark complete: %v", domain.ErrPersistence, err))
	}
	logger.Info().Str("status", string(domain.JobStatusComplete)).Dur("duration", time.Since(start)).Msg("job complete")
	return nil
}

// run executes the generation, render and upload stages and returns the
// artifact URL.
func (p *Processor) run(ctx context.Context, logger zerolog.Logger, jobID, prompt string) (string, error) {
	logger.Info().Str("stage", "generate").Msg("generating script")
	script, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := p.jobs.SaveScript(ctx, jobID, script); err != nil {
		return "", fmt.Errorf("%w: save script: %v", domain.ErrPersistence, err)
	}

	ws, err := render.NewWorkspace(p.workspaceRoot, jobID, logger)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	defer ws.Remove()

	file, err := ws.WriteScript(script)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	scene := render.SceneName(script)
	if scene == render.FallbackScene {
		logger.Warn().Msg("no scene class found, using fallback name")
	}

	logger.Info().Str("stage", "render").Str("scene", scene).Msg("rendering")
	result, err := p.renderer.Render(ctx, render.Request{
		Workspace:  ws.Dir,
		ScriptFile: file,
		SceneName:  scene,
		OutputName: domain.VideoName(jobID),
		Quality:    p.quality,
	})
	if err != nil {
		var rerr *render.Error
		if errors.As(err, &rerr) && rerr.Stderr != "" {
			logger.Debug().Str("stderr", rerr.Stderr).Msg("renderer output")
		}
		return "", err
	}

	logger.Info().Str("stage", "upload").Msg("uploading video")
	url, err := p.storage.Upload(ctx, domain.VideoName(jobID), result.VideoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return url, nil
}

// retry waits retryDelay, or until ctx ends, before asking for a requeue.
func (p *Processor) retry(ctx context.Context, logger zerolog.Logger, cause error) error {
	logger.Warn().Err(cause).Dur("delay", p.retryDelay).Msg("transient failure, requeueing")
	t := time.NewTimer(p.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return queue.Retry(cause)
}

// fail persists the failed status on a context that outlives the delivery.
// When that write also fails the job stays in processing and the delivery
// is dead-lettered.
func (p *Processor) fail(ctx context.Context, logger zerolog.Logger, jobID string, cause error) error {
	summary := domain.PublicError(cause)
	logger.Error().Err(cause).Str("status", string(domain.JobStatusFailed)).Str("summary", summary).Msg("job failed")

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.persistTimeout)
	defer cancel()
	if err := p.jobs.MarkFailed(wctx, jobID, summary); err != nil {
		logger.Error().Err(err).Msg("could not persist failed status")
		return queue.Drop(fmt.Errorf("%w: mark failed: %v", domain.ErrPersistence, err))
	}
	return nil
}
