package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/parser"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/observability"
)

// Notifier is the side channel for user-facing job status messages. All
// methods are best-effort and must never fail the job.
type Notifier interface {
	JobStarted(ctx context.Context, userID, jobID uuid.UUID, fileName string)
	JobProgress(ctx context.Context, userID, jobID uuid.UUID, transactionsCreated, progress int)
	JobCompleted(ctx context.Context, userID, jobID uuid.UUID, transactionsCreated int, finalBalance decimal.Decimal)
	JobPartiallyCompleted(ctx context.Context, userID, jobID uuid.UUID, transactionsCreated int)
	JobFailed(ctx context.Context, userID, jobID uuid.UUID, reason string)
}

const (
	// importBatchSize is how many parsed records each atomic ledger write holds.
	importBatchSize = 50

	// progressNotifyEvery: a progress notification goes out on the first
	// batch, every fifth batch, and the last batch.
	progressNotifyEvery = 5

	progressProcessing     = 10
	progressParsed         = 20
	progressBatchFloor     = 30
	progressBatchCeil      = 90
	progressBalancePending = 95
	progressDone           = 100
)

// Processor executes one import job to a terminal state: parse the stored
// file, commit fixed-size batches sequentially, reconcile the account balance
// once at the end. It is invoked identically by the inline dispatcher and the
// queue worker.
type Processor struct {
	repo     repository.StatementRepository
	notifier Notifier
	parser   *parser.Parser
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewProcessor creates a processor.
func NewProcessor(repo repository.StatementRepository, notifier Notifier, p *parser.Parser, logger *slog.Logger) *Processor {
	return &Processor{
		repo:     repo,
		notifier: notifier,
		parser:   p,
		logger:   logger,
		tracer:   otel.Tracer("smartkosh/import"),
	}
}

// Process runs the job state machine: pending → processing → completed|failed.
// Batches commit in strict sequential order, never concurrently, so the
// running balance only has to be correct for a single pass. Already-committed
// batches are not rolled back when a later batch fails.
func (p *Processor) Process(ctx context.Context, jobID uuid.UUID) (err error) {
	ctx, span := p.tracer.Start(ctx, "statement.import",
		trace.WithAttributes(attribute.String("import.job_id", jobID.String())))
	defer span.End()

	job, err := p.repo.GetImportJobByID(ctx, jobID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to load import job: %w", err)
	}
	if job.Terminal() {
		p.logger.Info("import job already terminal, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = p.fail(ctx, span, job, fmt.Errorf("unexpected error: %v", r))
		}
	}()

	start := time.Now()
	if err := p.run(ctx, span, job); err != nil {
		return p.fail(ctx, span, job, err)
	}
	observability.ImportJobDuration.Observe(time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "ok")
	return nil
}

func (p *Processor) run(ctx context.Context, span trace.Span, job *repository.ImportJob) error {
	if err := p.advance(ctx, job, progressProcessing); err != nil {
		return err
	}
	p.notifier.JobStarted(ctx, job.UserID, job.ID, job.FileName)

	records, err := p.parser.Parse(job.Content)
	if err != nil {
		return fmt.Errorf("failed to parse statement: %w", err)
	}
	if err := p.advance(ctx, job, progressParsed); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("import.records", len(records)))

	balance, err := p.repo.GetAccountBalance(ctx, job.AccountID)
	if err != nil {
		return fmt.Errorf("failed to read account balance: %w", err)
	}

	batches := chunkRecords(records, importBatchSize)
	created := 0
	for i, batch := range batches {
		batchStart := time.Now()
		count, err := p.repo.InsertTransactionBatch(ctx, job.UserID, job.AccountID, job.ID, batch)
		if err != nil {
			// Batches 1..i are already durable; they stay in the ledger.
			return fmt.Errorf("batch %d of %d failed: %w", i+1, len(batches), err)
		}
		observability.ImportBatchDuration.Observe(time.Since(batchStart).Seconds())
		created += count

		for _, rec := range batch {
			if rec.Kind == parser.KindIncome {
				balance = balance.Add(rec.Amount)
			} else {
				balance = balance.Sub(rec.Amount)
			}
		}

		progress := progressBatchFloor + (progressBatchCeil-progressBatchFloor)*(i+1)/len(batches)
		if err := p.advance(ctx, job, progress); err != nil {
			return err
		}
		if i == 0 || (i+1)%progressNotifyEvery == 0 || i == len(batches)-1 {
			p.notifier.JobProgress(ctx, job.UserID, job.ID, created, progress)
		}
	}
	observability.ImportedTransactionsTotal.Add(float64(created))

	// Balance reconciliation happens once, outside any batch transaction.
	// The ledger rows are authoritative; if this write fails the job still
	// completes, flagged so the stale aggregate is visible.
	if err := p.repo.UpdateAccountBalance(ctx, job.AccountID, balance); err != nil {
		p.logger.Error("account balance update failed after import",
			"job_id", job.ID, "account_id", job.AccountID, "error", err)
		msg := fmt.Sprintf("account balance update failed: %v", err)
		result := &repository.JobResult{
			TransactionsCreated: created,
			AccountUpdateFailed: true,
		}
		if err := p.repo.FinishImportJob(ctx, job.ID, repository.JobStatusCompleted, progressBalancePending, &msg, result); err != nil {
			return fmt.Errorf("failed to record partial completion: %w", err)
		}
		p.notifier.JobPartiallyCompleted(ctx, job.UserID, job.ID, created)
		observability.ImportJobsTotal.WithLabelValues("partial").Inc()
		return nil
	}

	result := &repository.JobResult{
		TransactionsCreated:   created,
		AccountBalanceUpdated: true,
		FinalBalance:          &balance,
	}
	if err := p.repo.FinishImportJob(ctx, job.ID, repository.JobStatusCompleted, progressDone, nil, result); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	p.notifier.JobCompleted(ctx, job.UserID, job.ID, created, balance)
	observability.ImportJobsTotal.WithLabelValues("completed").Inc()
	p.logger.Info("import job completed",
		"job_id", job.ID, "transactions", created, "final_balance", balance.StringFixed(2))
	return nil
}

// fail records the terminal failure and returns the cause so queue adapters
// see the error path.
func (p *Processor) fail(ctx context.Context, span trace.Span, job *repository.ImportJob, cause error) error {
	msg := cause.Error()
	if err := p.repo.FinishImportJob(ctx, job.ID, repository.JobStatusFailed, job.Progress, &msg, job.Result); err != nil {
		p.logger.Error("failed to mark import job failed", "job_id", job.ID, "error", err)
	}
	p.notifier.JobFailed(ctx, job.UserID, job.ID, msg)
	observability.ImportJobsTotal.WithLabelValues("failed").Inc()
	span.RecordError(cause)
	span.SetStatus(codes.Error, msg)
	p.logger.Error("import job failed", "job_id", job.ID, "error", cause)
	return cause
}

func (p *Processor) advance(ctx context.Context, job *repository.ImportJob, progress int) error {
	if err := p.repo.UpdateImportJobProgress(ctx, job.ID, repository.JobStatusProcessing, progress); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	job.Status = repository.JobStatusProcessing
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func chunkRecords(records []parser.Record, size int) [][]parser.Record {
	if len(records) == 0 {
		return nil
	}
	batches := make([][]parser.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// Handler adapts the processor to the jobs.Handler signature used by both
// scheduling shapes.
func (p *Processor) Handler() func(ctx context.Context, jobID uuid.UUID) error {
	return p.Process
}
