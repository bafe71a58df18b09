package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
)

func seedAccount(t *testing.T, repo *MemoryRepository, balance string) *domain.Account {
	t.Helper()

	id := uuid.New()
	account := &domain.Account{
		ID:           id,
		FullName:     "Ivanov Ivan Ivanovich",
		BirthDate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Login:        "login-" + id.String(),
		PasswordHash: "hash",
		Balance:      decimal.RequireFromString(balance),
		StartDeposit: decimal.RequireFromString(balance),
	}
	phone := "+7900" + id.String()[:8]
	email := id.String()[:8] + "@example.com"
	if err := repo.CreateAccount(context.Background(), account, phone, email); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	return account
}

func accountBalance(t *testing.T, repo *MemoryRepository, id uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := repo.FindAccountByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindAccountByID returned error: %v", err)
	}
	return account.Balance
}

func TestCreateAccount_RejectsDuplicateLoginAndContacts(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := &domain.Account{ID: uuid.New(), Login: "alice", Balance: decimal.New(100, 0)}
	if err := repo.CreateAccount(ctx, first, "+79001110001", "alice@example.com"); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}

	sameLogin := &domain.Account{ID: uuid.New(), Login: "alice"}
	if err := repo.CreateAccount(ctx, sameLogin, "+79001110002", "alice2@example.com"); !errors.Is(err, ErrLoginTaken) {
		t.Fatalf("expected ErrLoginTaken, got %v", err)
	}

	samePhone := &domain.Account{ID: uuid.New(), Login: "bob"}
	if err := repo.CreateAccount(ctx, samePhone, "+79001110001", "bob@example.com"); !errors.Is(err, ErrContactTaken) {
		t.Fatalf("expected ErrContactTaken for reused phone, got %v", err)
	}

	sameEmail := &domain.Account{ID: uuid.New(), Login: "carol"}
	if err := repo.CreateAccount(ctx, sameEmail, "+79001110003", "alice@example.com"); !errors.Is(err, ErrContactTaken) {
		t.Fatalf("expected ErrContactTaken for reused email, got %v", err)
	}
}

func TestTransferBalance_MovesMoneyAndConservesTotal(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sender := seedAccount(t, repo, "100.00")
	receiver := seedAccount(t, repo, "50.00")

	updated, err := repo.TransferBalance(ctx, sender.ID, receiver.ID, decimal.RequireFromString("30.00"))
	if err != nil {
		t.Fatalf("TransferBalance returned error: %v", err)
	}

	if !updated.Balance.Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("expected sender balance 70.00, got %s", updated.Balance)
	}
	if got := accountBalance(t, repo, receiver.ID); !got.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("expected receiver balance 80.00, got %s", got)
	}

	total := accountBalance(t, repo, sender.ID).Add(accountBalance(t, repo, receiver.ID))
	if !total.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("expected conserved total 150.00, got %s", total)
	}
}

func TestTransferBalance_ExactBalanceIsRefused(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sender := seedAccount(t, repo, "100.00")
	receiver := seedAccount(t, repo, "0")

	// The balance floor is strict: spending down to exactly zero is refused.
	_, err := repo.TransferBalance(ctx, sender.ID, receiver.ID, decimal.RequireFromString("100.00"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds for exact-balance transfer, got %v", err)
	}

	_, err = repo.TransferBalance(ctx, sender.ID, receiver.ID, decimal.RequireFromString("99.99"))
	if err != nil {
		t.Fatalf("expected transfer leaving 0.01 to succeed, got %v", err)
	}
}

func TestTransferBalance_FailureLeavesBalancesUntouched(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sender := seedAccount(t, repo, "10.00")
	receiver := seedAccount(t, repo, "5.00")

	if _, err := repo.TransferBalance(ctx, sender.ID, receiver.ID, decimal.RequireFromString("500.00")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := accountBalance(t, repo, sender.ID); !got.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected sender balance unchanged at 10.00, got %s", got)
	}
	if got := accountBalance(t, repo, receiver.ID); !got.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected receiver balance unchanged at 5.00, got %s", got)
	}
}

func TestTransferBalance_ErrorPrecedence(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sender := seedAccount(t, repo, "10.00")
	amount := decimal.New(1, 0)

	missing := uuid.New()
	if _, err := repo.TransferBalance(ctx, missing, missing, amount); !errors.Is(err, ErrSenderNotFound) {
		t.Fatalf("expected missing self-transfer to report ErrSenderNotFound, got %v", err)
	}

	if _, err := repo.TransferBalance(ctx, sender.ID, sender.ID, amount); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}

	if _, err := repo.TransferBalance(ctx, missing, sender.ID, amount); !errors.Is(err, ErrSenderNotFound) {
		t.Fatalf("expected ErrSenderNotFound, got %v", err)
	}

	if _, err := repo.TransferBalance(ctx, sender.ID, missing, amount); !errors.Is(err, ErrReceiverNotFound) {
		t.Fatalf("expected ErrReceiverNotFound, got %v", err)
	}
}

func TestTransferBalance_ConcurrentTransfersKeepTotals(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sender := seedAccount(t, repo, "1000")
	receiver := seedAccount(t, repo, "0")

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := repo.TransferBalance(ctx, sender.ID, receiver.ID, decimal.New(1, 0)); err != nil {
				t.Errorf("concurrent transfer failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := accountBalance(t, repo, sender.ID); !got.Equal(decimal.New(1000-workers, 0)) {
		t.Fatalf("expected sender balance %d, got %s", 1000-workers, got)
	}
	if got := accountBalance(t, repo, receiver.ID); !got.Equal(decimal.New(workers, 0)) {
		t.Fatalf("expected receiver balance %d, got %s", workers, got)
	}
}

func TestApplyAccrual_GrowsBalanceUpToCap(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	account := seedAccount(t, repo, "100")
	rate := decimal.RequireFromString("0.05")
	capFactor := decimal.RequireFromString("2.07")

	applied, err := repo.ApplyAccrual(ctx, account.ID, rate, capFactor)
	if err != nil {
		t.Fatalf("ApplyAccrual returned error: %v", err)
	}
	if !applied {
		t.Fatal("expected first accrual to apply")
	}
	if got := accountBalance(t, repo, account.ID); !got.Equal(decimal.RequireFromString("105")) {
		t.Fatalf("expected balance 105 after one accrual, got %s", got)
	}

	// Repeated accruals compound until one more step would cross
	// start_deposit * cap_factor, then stop applying.
	for i := 0; i < 100; i++ {
		if _, err := repo.ApplyAccrual(ctx, account.ID, rate, capFactor); err != nil {
			t.Fatalf("ApplyAccrual returned error on pass %d: %v", i, err)
		}
	}

	capAmount := decimal.RequireFromString("207")
	final := accountBalance(t, repo, account.ID)
	if final.GreaterThan(capAmount) {
		t.Fatalf("expected balance to stay at or below the cap 207, got %s", final)
	}
	if final.Mul(rate).Add(final).LessThanOrEqual(capAmount) {
		t.Fatalf("expected balance to be saturated below the cap, got %s", final)
	}

	applied, err = repo.ApplyAccrual(ctx, account.ID, rate, capFactor)
	if err != nil {
		t.Fatalf("ApplyAccrual returned error: %v", err)
	}
	if applied {
		t.Fatal("expected saturated account to skip accrual")
	}
}

func TestApplyAccrual_SkipsNonPositiveBalance(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	account := seedAccount(t, repo, "0")

	applied, err := repo.ApplyAccrual(ctx, account.ID, decimal.RequireFromString("0.05"), decimal.RequireFromString("2.07"))
	if err != nil {
		t.Fatalf("ApplyAccrual returned error: %v", err)
	}
	if applied {
		t.Fatal("expected zero balance to be skipped")
	}
}

func TestApplyAccrual_MissingAccount(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.ApplyAccrual(context.Background(), uuid.New(), decimal.RequireFromString("0.05"), decimal.RequireFromString("2.07"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAddContact_RejectsValueHeldByAnotherAccount(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	owner := seedAccount(t, repo, "10")
	other := seedAccount(t, repo, "10")

	handle := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindPhone, Value: "+79005550001", OwnerID: owner.ID}
	if err := repo.AddContact(ctx, handle); err != nil {
		t.Fatalf("AddContact returned error: %v", err)
	}

	dup := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindPhone, Value: "+79005550001", OwnerID: other.ID}
	if err := repo.AddContact(ctx, dup); !errors.Is(err, ErrContactTaken) {
		t.Fatalf("expected ErrContactTaken, got %v", err)
	}

	// The same digits as an email value belong to a different namespace.
	emailDup := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindEmail, Value: "+79005550001", OwnerID: other.ID}
	if err := repo.AddContact(ctx, emailDup); err != nil {
		t.Fatalf("expected cross-kind value to be allowed, got %v", err)
	}
}

func TestReplaceContact_FreesOldValueGlobally(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	owner := seedAccount(t, repo, "10")
	other := seedAccount(t, repo, "10")

	old := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindPhone, Value: "+79005550010", OwnerID: owner.ID}
	if err := repo.AddContact(ctx, old); err != nil {
		t.Fatalf("AddContact returned error: %v", err)
	}

	if _, err := repo.ReplaceContact(ctx, owner.ID, domain.ContactKindPhone, "+79005550010", "+79005550011"); err != nil {
		t.Fatalf("ReplaceContact returned error: %v", err)
	}
	if _, err := repo.FindContactByValue(ctx, domain.ContactKindPhone, "+79005550010"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected replaced value to be released, got %v", err)
	}

	// The released value is immediately claimable by another account.
	claim := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindPhone, Value: "+79005550010", OwnerID: other.ID}
	if err := repo.AddContact(ctx, claim); err != nil {
		t.Fatalf("expected released value to be claimable, got %v", err)
	}
}

func TestReplaceContact_NewValueMustBeFree(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	owner := seedAccount(t, repo, "10")
	other := seedAccount(t, repo, "10")

	taken := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindPhone, Value: "+79005550020", OwnerID: other.ID}
	if err := repo.AddContact(ctx, taken); err != nil {
		t.Fatalf("AddContact returned error: %v", err)
	}

	if _, err := repo.ReplaceContact(ctx, owner.ID, domain.ContactKindPhone, "", "+79005550020"); !errors.Is(err, ErrContactTaken) {
		t.Fatalf("expected ErrContactTaken, got %v", err)
	}
}

func TestRemoveContact_RefusesLastHandleOfKind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	owner := seedAccount(t, repo, "10")

	handles, err := repo.FindContactsByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("FindContactsByOwner returned error: %v", err)
	}
	var phone string
	for _, h := range handles {
		if h.Kind == domain.ContactKindPhone {
			phone = h.Value
		}
	}

	// Registration seeded exactly one phone; removing it must be refused even
	// though an email handle still exists.
	if err := repo.RemoveContact(ctx, owner.ID, domain.ContactKindPhone, phone); !errors.Is(err, ErrLastContact) {
		t.Fatalf("expected ErrLastContact, got %v", err)
	}

	second := &domain.ContactHandle{ID: uuid.New(), Kind: domain.ContactKindPhone, Value: "+79005550030", OwnerID: owner.ID}
	if err := repo.AddContact(ctx, second); err != nil {
		t.Fatalf("AddContact returned error: %v", err)
	}
	if err := repo.RemoveContact(ctx, owner.ID, domain.ContactKindPhone, phone); err != nil {
		t.Fatalf("expected removal with a second handle to succeed, got %v", err)
	}
	if _, err := repo.FindContactByValue(ctx, domain.ContactKindPhone, phone); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected removed value to be gone, got %v", err)
	}
}

func TestSearchAccounts_FiltersAndPaginates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := uuid.New()
		account := &domain.Account{
			ID:        id,
			FullName:  "Petrov Petr Petrovich",
			BirthDate: time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC),
			Login:     fmt.Sprintf("petrov-%d-%s", i, id.String()[:8]),
			Balance:   decimal.New(10, 0),
		}
		phone := fmt.Sprintf("+7911000000%d", i)
		email := fmt.Sprintf("petrov%d@example.com", i)
		if err := repo.CreateAccount(ctx, account, phone, email); err != nil {
			t.Fatalf("CreateAccount returned error: %v", err)
		}
	}

	byPhone, err := repo.SearchAccounts(ctx, domain.AccountFilter{Phone: "+79110000002"})
	if err != nil {
		t.Fatalf("SearchAccounts returned error: %v", err)
	}
	if len(byPhone) != 1 {
		t.Fatalf("expected exactly one match by phone, got %d", len(byPhone))
	}

	bd := time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)
	page, err := repo.SearchAccounts(ctx, domain.AccountFilter{BirthDate: &bd, Surname: "Petrov", From: 2, Size: 2})
	if err != nil {
		t.Fatalf("SearchAccounts returned error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected a page of 2, got %d", len(page))
	}

	empty, err := repo.SearchAccounts(ctx, domain.AccountFilter{Surname: "Nobody"})
	if err != nil {
		t.Fatalf("SearchAccounts returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no matches, got %d", len(empty))
	}
}
