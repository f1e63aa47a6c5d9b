package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/common"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	jobIDs   []uuid.UUID
	dispatch error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobIDs = append(d.jobIDs, jobID)
	return d.dispatch
}

func (d *fakeDispatcher) dispatched() []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uuid.UUID, len(d.jobIDs))
	copy(ids, d.jobIDs)
	return ids
}

func validStatement() []byte {
	return []byte(strings.Join([]string{
		"Date,Description,Category,Withdrawal Amount,Deposit Amount",
		"01/15/2026,Coffee Shop,Dining,4.50,",
		"01/16/2026,Paycheck,,,2000.00",
	}, "\n"))
}

func TestAccept_CreatesPendingJobAndDispatches(t *testing.T) {
	repo := &fakeStatementRepo{jobs: map[uuid.UUID]*repository.ImportJob{}}
	dispatcher := &fakeDispatcher{}
	svc := NewIntakeService(repo, testParser(), dispatcher, testLogger())

	userID := uuid.New()
	content := validStatement()
	job, err := svc.Accept(context.Background(), userID, "statement.csv", content)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if job.Status != repository.JobStatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}
	if job.Progress != 0 {
		t.Fatalf("expected 0 progress, got %d", job.Progress)
	}
	if string(job.Content) != string(content) {
		t.Fatal("job must carry the raw upload")
	}
	if job.Result == nil || job.Result.TotalLines != 2 {
		t.Fatalf("unexpected result stub: %+v", job.Result)
	}

	dispatched := dispatcher.dispatched()
	if len(dispatched) != 1 || dispatched[0] != job.ID {
		t.Fatalf("expected dispatch of %s, got %v", job.ID, dispatched)
	}
}

func TestAccept_EmptyFile(t *testing.T) {
	repo := &fakeStatementRepo{jobs: map[uuid.UUID]*repository.ImportJob{}}
	svc := NewIntakeService(repo, testParser(), &fakeDispatcher{}, testLogger())

	_, err := svc.Accept(context.Background(), uuid.New(), "statement.csv", []byte("   \n"))
	if !errors.Is(err, common.ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
	if len(repo.jobs) != 0 {
		t.Fatal("no job row expected for a rejected upload")
	}
}

func TestAccept_NoAccount(t *testing.T) {
	repo := &fakeStatementRepo{jobs: map[uuid.UUID]*repository.ImportJob{}, accountErr: common.ErrNoAccount}
	svc := NewIntakeService(repo, testParser(), &fakeDispatcher{}, testLogger())

	_, err := svc.Accept(context.Background(), uuid.New(), "statement.csv", validStatement())
	if !errors.Is(err, common.ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
}

func TestAccept_BadSampleRejectsUpload(t *testing.T) {
	repo := &fakeStatementRepo{jobs: map[uuid.UUID]*repository.ImportJob{}}
	dispatcher := &fakeDispatcher{}
	svc := NewIntakeService(repo, testParser(), dispatcher, testLogger())

	data := strings.Join([]string{
		"Date,Description,Category,Withdrawal Amount,Deposit Amount",
		"01/15/2026,Coffee,,4.50,10.00", // both amounts set
	}, "\n")

	_, err := svc.Accept(context.Background(), uuid.New(), "statement.csv", []byte(data))
	if !errors.Is(err, common.ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
	if len(repo.jobs) != 0 {
		t.Fatal("no job row expected for a rejected upload")
	}
	if len(dispatcher.dispatched()) != 0 {
		t.Fatal("nothing should be dispatched for a rejected upload")
	}
}

func TestAccept_BadRowBeyondSampleStillAccepted(t *testing.T) {
	repo := &fakeStatementRepo{jobs: map[uuid.UUID]*repository.ImportJob{}}
	svc := NewIntakeService(repo, testParser(), &fakeDispatcher{}, testLogger())

	lines := []string{"Date,Description,Category,Withdrawal Amount,Deposit Amount"}
	for i := 0; i < 6; i++ {
		lines = append(lines, "01/15/2026,Good Row,,1.00,")
	}
	lines = append(lines, "01/15/2026,Bad Row,,,") // beyond the 5-row sample

	job, err := svc.Accept(context.Background(), uuid.New(), "statement.csv", []byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if job.Status != repository.JobStatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}
}

func TestAccept_DispatchFailureStillAcceptsUpload(t *testing.T) {
	repo := &fakeStatementRepo{jobs: map[uuid.UUID]*repository.ImportJob{}}
	dispatcher := &fakeDispatcher{dispatch: errors.New("scheduler down")}
	svc := NewIntakeService(repo, testParser(), dispatcher, testLogger())

	job, err := svc.Accept(context.Background(), uuid.New(), "statement.csv", validStatement())
	if err != nil {
		t.Fatalf("Accept must not fail when dispatch fails: %v", err)
	}
	if job.Status != repository.JobStatusPending {
		t.Fatalf("job must stay pending for a worker to claim, got %s", job.Status)
	}
}
