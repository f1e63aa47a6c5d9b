// Package dbqueue implements the durable deployment shape: pending import
// jobs live in the database, and a worker process claims and executes them.
// A job survives API-server restarts because the row, including the uploaded
// file content, is the queue entry.
package dbqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs"
)

// Config tunes the worker loop.
type Config struct {
	// PollInterval is how long the worker sleeps when the queue is empty.
	PollInterval time.Duration
	// JobTimeout bounds one execution attempt's wall clock.
	JobTimeout time.Duration
	// MaxAttempts caps claim attempts per job before it is failed outright.
	MaxAttempts int
	// RetryBackoff is the base delay; attempt n waits RetryBackoff << (n-1).
	RetryBackoff time.Duration
}

// DefaultConfig mirrors the queue settings the API assumes: three attempts
// with exponential backoff and a ten-minute per-job timeout.
var DefaultConfig = Config{
	PollInterval: 2 * time.Second,
	JobTimeout:   10 * time.Minute,
	MaxAttempts:  3,
	RetryBackoff: 5 * time.Second,
}

// Worker claims pending jobs and runs the handler against each.
type Worker struct {
	queue   repository.JobQueue
	handler jobs.Handler
	cfg     Config
	logger  *slog.Logger
}

// NewWorker creates a worker. Zero config fields fall back to DefaultConfig.
func NewWorker(queue repository.JobQueue, handler jobs.Handler, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig.JobTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig.RetryBackoff
	}
	return &Worker{queue: queue, handler: handler, cfg: cfg, logger: logger}
}

// Run consumes jobs until the context is cancelled. Jobs are processed one at
// a time per worker; ordering within a job is the processor's concern.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain claims and processes jobs until the queue is empty.
func (w *Worker) drain(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		job, err := w.queue.ClaimNextPendingJob(ctx)
		if err != nil {
			w.logger.Error("failed to claim import job", "error", err)
			return nil
		}
		if job == nil {
			return nil
		}
		w.processClaimed(ctx, job)
	}
}

func (w *Worker) processClaimed(ctx context.Context, job *repository.ImportJob) {
	w.logger.Info("claimed import job", "job_id", job.ID, "attempt", job.Attempts)

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err := w.runHandler(jobCtx, job.ID)
	cancel()
	if err == nil {
		return
	}

	// The processor records its own terminal outcomes; only infra-level
	// failures (timeout, DB unavailable, panic) leave the job non-terminal.
	current, getErr := w.queue.GetImportJobByID(ctx, job.ID)
	if getErr != nil {
		w.logger.Error("failed to reload import job after error", "job_id", job.ID, "error", getErr)
		return
	}
	if current.Terminal() {
		w.logger.Info("import job reached terminal state", "job_id", job.ID, "status", current.Status, "error", err)
		return
	}

	if current.Attempts >= w.cfg.MaxAttempts {
		msg := fmt.Sprintf("import failed after %d attempts: %v", current.Attempts, err)
		if finishErr := w.queue.FinishImportJob(ctx, job.ID, repository.JobStatusFailed, current.Progress, &msg, current.Result); finishErr != nil {
			w.logger.Error("failed to mark import job failed", "job_id", job.ID, "error", finishErr)
		}
		w.logger.Error("import job exhausted retries", "job_id", job.ID, "attempts", current.Attempts, "error", err)
		return
	}

	backoff := w.cfg.RetryBackoff << (current.Attempts - 1)
	if releaseErr := w.queue.ReleaseJobForRetry(ctx, job.ID, backoff); releaseErr != nil {
		w.logger.Error("failed to release import job for retry", "job_id", job.ID, "error", releaseErr)
		return
	}
	w.logger.Warn("import job released for retry", "job_id", job.ID, "attempt", current.Attempts, "backoff", backoff, "error", err)
}

func (w *Worker) runHandler(ctx context.Context, jobID uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import job panicked: %v", r)
		}
	}()
	return w.handler(ctx, jobID)
}

// Dispatcher is the API-side half of the durable shape: the pending row
// created at intake is the queue entry, so dispatching is a no-op beyond
// logging. A worker process picks the job up.
type Dispatcher struct {
	logger *slog.Logger
}

// NewDispatcher creates a queue dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Dispatch leaves the job on the database queue for a worker to claim.
func (d *Dispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	d.logger.Info("import job queued for worker", "job_id", jobID)
	return nil
}

var _ jobs.Dispatcher = (*Dispatcher)(nil)
