// Package inline runs import jobs on a goroutine in the API process, right
// after the upload response is sent. There is no isolation from the server
// process: a restart loses in-flight jobs with no resumption.
package inline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs"
)

// Dispatcher invokes the handler on a detached goroutine.
type Dispatcher struct {
	handler jobs.Handler
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New creates an inline dispatcher. timeout bounds each job's wall clock.
func New(handler jobs.Handler, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{handler: handler, timeout: timeout, logger: logger}
}

// Dispatch schedules the job and returns immediately. The job runs on a
// fresh context so it outlives the originating HTTP request.
func (d *Dispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("import job panicked", "job_id", jobID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.handler(ctx, jobID); err != nil {
			d.logger.Error("import job failed", "job_id", jobID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until all dispatched jobs finish, for graceful shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

var _ jobs.Dispatcher = (*Dispatcher)(nil)
