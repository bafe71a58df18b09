package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
	"github.com/NikolaiGurianov/BankingApp/internal/store"
)

type accrualRepoStub struct {
	store.Repository

	ids        []uuid.UUID
	listErr    error
	failFor    map[uuid.UUID]error
	skipFor    map[uuid.UUID]bool
	accrualFor []uuid.UUID
}

func (s *accrualRepoStub) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids, s.listErr
}

func (s *accrualRepoStub) ApplyAccrual(ctx context.Context, accountID uuid.UUID, rate, capFactor decimal.Decimal) (bool, error) {
	s.accrualFor = append(s.accrualFor, accountID)
	if err, ok := s.failFor[accountID]; ok {
		return false, err
	}
	if s.skipFor[accountID] {
		return false, nil
	}
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAccrualRun_ContinuesPastPerAccountFailures(t *testing.T) {
	good := uuid.New()
	broken := uuid.New()
	saturated := uuid.New()
	repo := &accrualRepoStub{
		ids:     []uuid.UUID{good, broken, saturated},
		failFor: map[uuid.UUID]error{broken: errors.New("deadlock detected")},
		skipFor: map[uuid.UUID]bool{saturated: true},
	}
	events := &publisherStub{}
	job := NewAccrualJob(repo, events, testLogger(), decimal.RequireFromString("0.05"), decimal.RequireFromString("2.07"))

	job.Run()

	if len(repo.accrualFor) != 3 {
		t.Fatalf("expected all 3 accounts to be visited, got %d", len(repo.accrualFor))
	}
	if !events.published {
		t.Fatal("expected an accrual run event")
	}
	event, ok := events.lastPayload.(domain.AccrualRunEvent)
	if !ok {
		t.Fatalf("expected AccrualRunEvent payload, got %T", events.lastPayload)
	}
	if event.AccountsVisited != 3 {
		t.Fatalf("expected 3 accounts visited, got %d", event.AccountsVisited)
	}
	if event.AccountsUpdated != 1 {
		t.Fatalf("expected 1 account updated, got %d", event.AccountsUpdated)
	}
	if events.routingKey != "accrual.completed" {
		t.Fatalf("expected routing key accrual.completed, got %s", events.routingKey)
	}
}

func TestAccrualRun_ListFailureAbortsPass(t *testing.T) {
	repo := &accrualRepoStub{listErr: errors.New("connection refused")}
	events := &publisherStub{}
	job := NewAccrualJob(repo, events, testLogger(), decimal.RequireFromString("0.05"), decimal.RequireFromString("2.07"))

	job.Run()

	if len(repo.accrualFor) != 0 {
		t.Fatal("expected no accruals when listing fails")
	}
	if events.published {
		t.Fatal("expected no event for an aborted pass")
	}
}

func TestAccrualRun_NilPublisher(t *testing.T) {
	repo := &accrualRepoStub{ids: []uuid.UUID{uuid.New()}}
	job := NewAccrualJob(repo, nil, testLogger(), decimal.RequireFromString("0.05"), decimal.RequireFromString("2.07"))

	// Must not panic with eventing disabled.
	job.Run()

	if len(repo.accrualFor) != 1 {
		t.Fatalf("expected 1 account visited, got %d", len(repo.accrualFor))
	}
}

func TestAccrualRun_WholeBalanceSemanticsOnMemoryStore(t *testing.T) {
	repo := store.NewMemoryRepository()
	ctx := context.Background()
	account := &domain.Account{
		ID:           uuid.New(),
		Login:        "accrual-subject",
		Balance:      decimal.RequireFromString("200.00"),
		StartDeposit: decimal.RequireFromString("200.00"),
	}
	if err := repo.CreateAccount(ctx, account, "+79008880001", "accrual@example.com"); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}

	job := NewAccrualJob(repo, nil, testLogger(), decimal.RequireFromString("0.05"), decimal.RequireFromString("2.07"))
	job.Run()

	got, err := repo.FindAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("FindAccountByID returned error: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("210.00")) {
		t.Fatalf("expected balance 210.00 after one pass, got %s", got.Balance)
	}
}
