/**
 * @description
 * This file defines the storage contract consumed by the application layer,
 * together with the sentinel errors every implementation must return. Each
 * method that touches more than one row is a single atomic unit of work: the
 * implementation either applies all contained reads/writes or none, and no
 * other caller may observe an intermediate state.
 *
 * @notes
 * - Two implementations exist: PostgresRepository (production) and
 *   MemoryRepository (tests, dev mode).
 */
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrSenderNotFound    = errors.New("sender not found")
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrSameAccount       = errors.New("sender and receiver are the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLoginTaken        = errors.New("login already registered")
	ErrContactTaken      = errors.New("contact value already registered")
	ErrLastContact       = errors.New("cannot remove the last contact handle of this kind")
	ErrContactNotFound   = errors.New("contact handle not found")
)

// Repository is the durable storage contract for accounts and contact handles.
type Repository interface {
	// CreateAccount persists a new account together with its initial phone and
	// email handles in one atomic unit. Returns ErrLoginTaken or
	// ErrContactTaken on a uniqueness violation.
	CreateAccount(ctx context.Context, account *domain.Account, phone, email string) error

	FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindAccountByLogin(ctx context.Context, login string) (*domain.Account, error)

	// SearchAccounts is a read-only lookup with optional filters and
	// pagination, ordered by id ascending.
	SearchAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)

	// ListAccountIDs returns the ids of every account, for the accrual pass.
	ListAccountIDs(ctx context.Context) ([]uuid.UUID, error)

	// TransferBalance atomically debits the sender and credits the receiver.
	// Both rows are locked in ascending id order. The transfer aborts with
	// ErrInsufficientFunds unless the sender's post-transfer balance is
	// strictly positive. On success the sender's post-transfer state is
	// returned.
	TransferBalance(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)

	// ApplyAccrual grows one account's positive balance by rate, unless the
	// grown balance would exceed startDeposit*capFactor. The read-modify-write
	// is atomic with respect to concurrent transfers on the same account.
	// Reports whether the balance changed.
	ApplyAccrual(ctx context.Context, accountID uuid.UUID, rate, capFactor decimal.Decimal) (bool, error)

	FindContactByValue(ctx context.Context, kind domain.ContactKind, value string) (*domain.ContactHandle, error)
	FindContactsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ContactHandle, error)

	// AddContact inserts a handle if its value is absent for that kind, as one
	// atomic step backed by the store's uniqueness constraint. Returns
	// ErrContactTaken when the value is already registered.
	AddContact(ctx context.Context, handle *domain.ContactHandle) error

	// ReplaceContact deletes every handle of the kind carrying oldValue and
	// inserts a new handle with newValue owned by ownerID, atomically. The
	// uniqueness check on newValue is part of the same step.
	ReplaceContact(ctx context.Context, ownerID uuid.UUID, kind domain.ContactKind, oldValue, newValue string) (*domain.ContactHandle, error)

	// RemoveContact deletes the owner's handles of the kind whose value
	// matches. When the owner holds one handle of that kind or fewer the call
	// refuses with ErrLastContact and deletes nothing.
	RemoveContact(ctx context.Context, ownerID uuid.UUID, kind domain.ContactKind, value string) error
}
