package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/common"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/parser"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// BatchTxConfig bounds each batch transaction: WaitTimeout caps how long the
// transaction may wait to acquire locks, ExecTimeout caps its total runtime.
type BatchTxConfig struct {
	WaitTimeout time.Duration
	ExecTimeout time.Duration
}

// DefaultBatchTxConfig mirrors the import pipeline defaults.
var DefaultBatchTxConfig = BatchTxConfig{
	WaitTimeout: 5 * time.Second,
	ExecTimeout: 10 * time.Second,
}

// PostgresStatementRepository implements StatementRepository, JobQueue and
// NotificationStore against PostgreSQL.
type PostgresStatementRepository struct {
	pgpool  PgxPool
	batchTx BatchTxConfig
}

// NewPostgresStatementRepository creates a new PostgreSQL-backed repository.
func NewPostgresStatementRepository(pgpool PgxPool, batchTx BatchTxConfig) *PostgresStatementRepository {
	if batchTx.WaitTimeout <= 0 {
		batchTx.WaitTimeout = DefaultBatchTxConfig.WaitTimeout
	}
	if batchTx.ExecTimeout <= 0 {
		batchTx.ExecTimeout = DefaultBatchTxConfig.ExecTimeout
	}
	return &PostgresStatementRepository{pgpool: pgpool, batchTx: batchTx}
}

const getDefaultAccountQuery = `
	SELECT id, user_id, name, type, balance, created_at, updated_at
	FROM accounts
	WHERE user_id = $1
	ORDER BY created_at
	LIMIT 1
`

// GetDefaultAccount returns the user's first account, the import target when
// the upload names none.
func (r *PostgresStatementRepository) GetDefaultAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	var account Account
	err := r.pgpool.QueryRow(ctx, getDefaultAccountQuery, userID).Scan(
		&account.ID, &account.UserID, &account.Name, &account.Type,
		&account.Balance, &account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default account: %w", err)
	}
	return &account, nil
}

const getAccountBalanceQuery = `SELECT balance FROM accounts WHERE id = $1`

// GetAccountBalance fetches the cached balance aggregate once, before any
// batch runs, to seed the processor's running balance.
func (r *PostgresStatementRepository) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pgpool.QueryRow(ctx, getAccountBalanceQuery, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, common.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account balance: %w", err)
	}
	return balance, nil
}

const updateAccountBalanceQuery = `UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`

// UpdateAccountBalance writes the final running balance in a single update,
// outside any batch transaction.
func (r *PostgresStatementRepository) UpdateAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	tag, err := r.pgpool.Exec(ctx, updateAccountBalanceQuery, accountID, balance)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

const createImportJobQuery = `
	INSERT INTO import_jobs (id, user_id, account_id, file_name, content, status, progress, attempts, result)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
`

// CreateImportJob persists a new job row. The caller sets status and the
// creation result stub; IDs are generated here when absent.
func (r *PostgresStatementRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}

	err = r.pgpool.QueryRow(ctx, createImportJobQuery,
		job.ID, job.UserID, job.AccountID, job.FileName, job.Content,
		job.Status, job.Progress, job.Attempts, result,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

const importJobColumns = `id, user_id, account_id, file_name, content, status, progress, attempts, error, result, created_at, updated_at`

const getImportJobByIDQuery = `SELECT ` + importJobColumns + ` FROM import_jobs WHERE id = $1`

// GetImportJobByID retrieves a job without user scoping, for background workers.
func (r *PostgresStatementRepository) GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	return r.scanImportJob(r.pgpool.QueryRow(ctx, getImportJobByIDQuery, id))
}

const getImportJobQuery = `SELECT ` + importJobColumns + ` FROM import_jobs WHERE user_id = $1 AND id = $2`

// GetImportJob retrieves a job owned by the given user.
func (r *PostgresStatementRepository) GetImportJob(ctx context.Context, userID, id uuid.UUID) (*ImportJob, error) {
	return r.scanImportJob(r.pgpool.QueryRow(ctx, getImportJobQuery, userID, id))
}

const listImportJobsQuery = `SELECT ` + importJobColumns + ` FROM import_jobs WHERE user_id = $1 ORDER BY created_at DESC`

// ListImportJobs returns the user's jobs newest-first.
func (r *PostgresStatementRepository) ListImportJobs(ctx context.Context, userID uuid.UUID) ([]*ImportJob, error) {
	rows, err := r.pgpool.Query(ctx, listImportJobsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ImportJob
	for rows.Next() {
		job, err := r.scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	return jobs, nil
}

const updateImportJobProgressQuery = `
	UPDATE import_jobs
	SET status = $2, progress = GREATEST(progress, $3), updated_at = NOW()
	WHERE id = $1
`

// UpdateImportJobProgress advances a job's status and progress. GREATEST keeps
// progress monotonically non-decreasing even on queue retries.
func (r *PostgresStatementRepository) UpdateImportJobProgress(ctx context.Context, id uuid.UUID, status string, progress int) error {
	_, err := r.pgpool.Exec(ctx, updateImportJobProgressQuery, id, status, progress)
	if err != nil {
		return fmt.Errorf("failed to update import job progress: %w", err)
	}
	return nil
}

const finishImportJobQuery = `
	UPDATE import_jobs
	SET status = $2, progress = GREATEST(progress, $3), error = $4, result = $5, updated_at = NOW()
	WHERE id = $1
`

// FinishImportJob writes a job's terminal state, error and result payload.
func (r *PostgresStatementRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, progress int, errorMessage *string, result *JobResult) error {
	resultJSON, err := marshalResult(result)
	if err != nil {
		return err
	}
	_, err = r.pgpool.Exec(ctx, finishImportJobQuery, id, status, progress, errorMessage, resultJSON)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

const claimNextPendingJobQuery = `
	UPDATE import_jobs
	SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
	WHERE id = (
		SELECT id FROM import_jobs
		WHERE status = 'pending' AND next_attempt_at <= NOW()
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + importJobColumns

// ClaimNextPendingJob atomically claims the oldest runnable pending job.
// The claiming UPDATE flips the row to processing, so once it commits the
// row no longer matches the pending predicate; SKIP LOCKED only covers
// claims racing before that commit. ReleaseJobForRetry is the only path
// back to pending. Returns nil when the queue is empty.
func (r *PostgresStatementRepository) ClaimNextPendingJob(ctx context.Context) (*ImportJob, error) {
	job, err := r.scanImportJob(r.pgpool.QueryRow(ctx, claimNextPendingJobQuery))
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return job, err
}

const releaseJobForRetryQuery = `
	UPDATE import_jobs
	SET status = 'pending', next_attempt_at = NOW() + make_interval(secs => $2), updated_at = NOW()
	WHERE id = $1
`

// ReleaseJobForRetry puts a claimed job back on the queue after a backoff delay.
func (r *PostgresStatementRepository) ReleaseJobForRetry(ctx context.Context, id uuid.UUID, delay time.Duration) error {
	_, err := r.pgpool.Exec(ctx, releaseJobForRetryQuery, id, delay.Seconds())
	if err != nil {
		return fmt.Errorf("failed to release import job for retry: %w", err)
	}
	return nil
}

var transactionCopyColumns = []string{
	"id", "user_id", "account_id", "occurred_at", "description",
	"category", "amount", "type", "notes", "import_job_id",
}

// InsertTransactionBatch commits one batch of parsed records as a single
// atomic database transaction at read-committed isolation. The transaction
// has a bounded lock wait and a bounded execution time; either limit failing
// fails the whole batch and nothing from it is persisted.
func (r *PostgresStatementRepository) InsertTransactionBatch(ctx context.Context, userID, accountID, jobID uuid.UUID, records []parser.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.batchTx.ExecTimeout)
	defer cancel()

	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, r.lockTimeoutStatement()); err != nil {
		return 0, fmt.Errorf("failed to set batch lock timeout: %w", err)
	}

	copyCount, err := tx.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		transactionCopyColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			var notes *string
			if rec.Notes != "" {
				notes = &rec.Notes
			}
			return []any{
				uuid.New(), userID, accountID, rec.Date, rec.Description,
				rec.Category, rec.Amount, string(rec.Kind), notes, jobID,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction batch: %w", err)
	}
	return int(copyCount), nil
}

func (r *PostgresStatementRepository) lockTimeoutStatement() string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.batchTx.WaitTimeout.Milliseconds())
}

const createNotificationQuery = `
	INSERT INTO notifications (id, user_id, title, message, type, related_to, data)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// CreateNotification inserts a notification row.
func (r *PostgresStatementRepository) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	_, err = r.pgpool.Exec(ctx, createNotificationQuery,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.RelatedTo, data,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

const listNotificationsQuery = `
	SELECT id, user_id, title, message, type, related_to, data, read, created_at
	FROM notifications
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
`

// ListNotifications returns the user's notifications newest-first.
func (r *PostgresStatementRepository) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error) {
	rows, err := r.pgpool.Query(ctx, listNotificationsQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		var data []byte
		err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.RelatedTo, &data, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *PostgresStatementRepository) scanImportJob(row pgx.Row) (*ImportJob, error) {
	var job ImportJob
	var result []byte
	err := row.Scan(
		&job.ID, &job.UserID, &job.AccountID, &job.FileName, &job.Content,
		&job.Status, &job.Progress, &job.Attempts, &job.Error, &result,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}
	if len(result) > 0 {
		job.Result = &JobResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal import job result: %w", err)
		}
	}
	return &job, nil
}

func marshalResult(result *JobResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import job result: %w", err)
	}
	return data, nil
}

var (
	_ StatementRepository = (*PostgresStatementRepository)(nil)
	_ JobQueue            = (*PostgresStatementRepository)(nil)
	_ NotificationStore   = (*PostgresStatementRepository)(nil)
)
