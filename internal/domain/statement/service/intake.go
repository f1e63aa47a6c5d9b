// Package service orchestrates statement import: intake of uploads and the
// background batch processor.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/common"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/parser"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs"
)

// IntakeService accepts uploaded statements and schedules their processing.
type IntakeService interface {
	// Accept validates the upload, persists a pending import job, schedules
	// background execution and returns the job without waiting for it.
	Accept(ctx context.Context, userID uuid.UUID, fileName string, content []byte) (*repository.ImportJob, error)
}

type intakeService struct {
	repo       repository.StatementRepository
	parser     *parser.Parser
	dispatcher jobs.Dispatcher
	logger     *slog.Logger
}

// NewIntakeService creates the intake service.
func NewIntakeService(repo repository.StatementRepository, p *parser.Parser, dispatcher jobs.Dispatcher, logger *slog.Logger) IntakeService {
	return &intakeService{repo: repo, parser: p, dispatcher: dispatcher, logger: logger}
}

func (s *intakeService) Accept(ctx context.Context, userID uuid.UUID, fileName string, content []byte) (*repository.ImportJob, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", common.ErrInvalidFile)
	}

	account, err := s.repo.GetDefaultAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Structural validation of the leading sample only; the full file is
	// parsed again by the processor. A bad sample means no job row at all.
	if _, err := s.parser.Parse(parser.Sample(content, parser.SampleRows)); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFile, err)
	}

	job := &repository.ImportJob{
		UserID:    userID,
		AccountID: account.ID,
		FileName:  fileName,
		Content:   content,
		Status:    repository.JobStatusPending,
		Progress:  0,
		Result: &repository.JobResult{
			FileName:   fileName,
			AccountID:  account.ID.String(),
			TotalLines: parser.CountDataLines(content),
		},
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, err
	}

	// The job row is durable; if dispatch fails a queue worker can still
	// pick the pending job up, so the upload is not rejected.
	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		s.logger.Warn("failed to dispatch import job", "job_id", job.ID, "error", err)
	}

	s.logger.Info("statement upload accepted",
		"job_id", job.ID, "user_id", userID, "account_id", account.ID, "file", fileName)
	return job, nil
}
