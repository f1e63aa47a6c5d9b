// Package notify emits user-facing status notifications for import jobs.
// Delivery is best-effort: a failed insert is logged and swallowed, and never
// flips a job's outcome.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
)

const relatedTo = "statement_import"

// Notifier writes notification rows as a job transitions state.
type Notifier struct {
	store  repository.NotificationStore
	logger *slog.Logger
}

// New creates a notifier.
func New(store repository.NotificationStore, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, logger: logger}
}

// JobStarted announces that processing has begun.
func (n *Notifier) JobStarted(ctx context.Context, userID, jobID uuid.UUID, fileName string) {
	n.create(ctx, &repository.Notification{
		UserID:    userID,
		Title:     "Statement import started",
		Message:   fmt.Sprintf("Processing %s", fileName),
		Type:      "info",
		RelatedTo: relatedTo,
		Data:      map[string]any{"jobId": jobID.String()},
	})
}

// JobProgress reports a progress milestone.
func (n *Notifier) JobProgress(ctx context.Context, userID, jobID uuid.UUID, transactionsCreated, progress int) {
	n.create(ctx, &repository.Notification{
		UserID:    userID,
		Title:     "Statement import in progress",
		Message:   fmt.Sprintf("Imported %d transactions (%d%%)", transactionsCreated, progress),
		Type:      "info",
		RelatedTo: relatedTo,
		Data:      map[string]any{"jobId": jobID.String(), "transactionsCreated": transactionsCreated},
	})
}

// JobCompleted announces full success, including the reconciled balance.
func (n *Notifier) JobCompleted(ctx context.Context, userID, jobID uuid.UUID, transactionsCreated int, finalBalance decimal.Decimal) {
	n.create(ctx, &repository.Notification{
		UserID:    userID,
		Title:     "Statement import completed",
		Message:   fmt.Sprintf("Imported %d transactions, account balance is now %s", transactionsCreated, finalBalance.StringFixed(2)),
		Type:      "success",
		RelatedTo: relatedTo,
		Data:      map[string]any{"jobId": jobID.String(), "transactionsCreated": transactionsCreated},
	})
}

// JobPartiallyCompleted announces that transactions were imported but the
// account balance update failed and is known stale.
func (n *Notifier) JobPartiallyCompleted(ctx context.Context, userID, jobID uuid.UUID, transactionsCreated int) {
	n.create(ctx, &repository.Notification{
		UserID:    userID,
		Title:     "Statement import partially completed",
		Message:   fmt.Sprintf("Imported %d transactions but the account balance could not be updated", transactionsCreated),
		Type:      "warning",
		RelatedTo: relatedTo,
		Data:      map[string]any{"jobId": jobID.String(), "transactionsCreated": transactionsCreated},
	})
}

// JobFailed announces a terminal failure.
func (n *Notifier) JobFailed(ctx context.Context, userID, jobID uuid.UUID, reason string) {
	n.create(ctx, &repository.Notification{
		UserID:    userID,
		Title:     "Statement import failed",
		Message:   reason,
		Type:      "error",
		RelatedTo: relatedTo,
		Data:      map[string]any{"jobId": jobID.String()},
	})
}

func (n *Notifier) create(ctx context.Context, notification *repository.Notification) {
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		n.logger.Warn("failed to create notification",
			"user_id", notification.UserID, "title", notification.Title, "error", err)
	}
}
