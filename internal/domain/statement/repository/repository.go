// Package repository provides data access for the statement import pipeline.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/parser"
)

// Import job lifecycle states. A job is created pending, moves to processing
// exactly once, and ends in completed or failed. Terminal states never change.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Account is a user ledger account carrying a cached balance aggregate.
type Account struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"userId"`
	Name      string          `db:"name" json:"name"`
	Type      string          `db:"type" json:"type"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// JobResult is the JSON blob stored on an import job. The populated fields
// depend on the phase: a stub at creation, counts and balance at completion.
type JobResult struct {
	FileName              string           `json:"fileName,omitempty"`
	AccountID             string           `json:"accountId,omitempty"`
	TotalLines            int              `json:"totalLines,omitempty"`
	TransactionsCreated   int              `json:"transactionsCreated,omitempty"`
	AccountBalanceUpdated bool             `json:"accountBalanceUpdated,omitempty"`
	AccountUpdateFailed   bool             `json:"accountUpdateFailed,omitempty"`
	FinalBalance          *decimal.Decimal `json:"finalBalance,omitempty"`
}

// ImportJob tracks one asynchronous statement import. Content holds the raw
// uploaded CSV so a worker in another process can pick the job up.
type ImportJob struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"userId"`
	AccountID uuid.UUID  `db:"account_id" json:"accountId"`
	FileName  string     `db:"file_name" json:"fileName"`
	Content   []byte     `db:"content" json:"-"`
	Status    string     `db:"status" json:"status"`
	Progress  int        `db:"progress" json:"progress"`
	Attempts  int        `db:"attempts" json:"attempts"`
	Error     *string    `db:"error" json:"error,omitempty"`
	Result    *JobResult `db:"result" json:"result,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// Terminal reports whether the job has reached a final state.
func (j *ImportJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Transaction is a persisted ledger entry. Amount is always positive; Type
// determines the sign of its contribution to the account balance.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"userId"`
	AccountID   uuid.UUID       `db:"account_id" json:"accountId"`
	OccurredAt  time.Time       `db:"occurred_at" json:"occurredAt"`
	Description string          `db:"description" json:"description"`
	Category    string          `db:"category" json:"category"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        string          `db:"type" json:"type"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	ImportJobID *uuid.UUID      `db:"import_job_id" json:"importJobId,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Notification is a fire-and-forget user-facing status message. The pipeline
// only writes them; nothing in the pipeline reads them back.
type Notification struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	UserID    uuid.UUID      `db:"user_id" json:"userId"`
	Title     string         `db:"title" json:"title"`
	Message   string         `db:"message" json:"message"`
	Type      string         `db:"type" json:"type"`
	RelatedTo string         `db:"related_to" json:"relatedTo"`
	Data      map[string]any `db:"data" json:"data,omitempty"`
	Read      bool           `db:"read" json:"read"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// StatementRepository defines the persistence operations the import pipeline
// needs. The processor receives it explicitly so it stays testable without a
// live database.
type StatementRepository interface {
	// Accounts
	GetDefaultAccount(ctx context.Context, userID uuid.UUID) (*Account, error)
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	UpdateAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error

	// Import jobs
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	GetImportJob(ctx context.Context, userID, id uuid.UUID) (*ImportJob, error)
	ListImportJobs(ctx context.Context, userID uuid.UUID) ([]*ImportJob, error)
	UpdateImportJobProgress(ctx context.Context, id uuid.UUID, status string, progress int) error
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, progress int, errorMessage *string, result *JobResult) error

	// Ledger writes: one atomic transaction per batch
	InsertTransactionBatch(ctx context.Context, userID, accountID, jobID uuid.UUID, records []parser.Record) (int, error)
}

// JobQueue defines the claim/retry operations used by the durable worker.
type JobQueue interface {
	ClaimNextPendingJob(ctx context.Context) (*ImportJob, error)
	ReleaseJobForRetry(ctx context.Context, id uuid.UUID, delay time.Duration) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, progress int, errorMessage *string, result *JobResult) error
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)
}
