// Package jobs decouples how import work is scheduled from what the work does.
// The processor is exposed as a Handler; adapters decide whether it runs on an
// in-process goroutine or on a separate worker consuming a durable queue.
package jobs

import (
	"context"

	"github.com/google/uuid"
)

// Handler processes one import job to a terminal state.
type Handler func(ctx context.Context, jobID uuid.UUID) error

// Dispatcher schedules background execution of an accepted job. Dispatch
// returns as soon as the job is scheduled, not when it finishes.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}
