/**
 * @description
 * In-memory implementation of the Repository interface, used by tests and by
 * dev-mode boot when no database is configured. A single mutex serializes
 * every operation, so each method body is one atomic unit of work and no lock
 * ordering question arises.
 */
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
)

// MemoryRepository keeps accounts and contact handles in maps guarded by one
// mutex.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	contacts map[uuid.UUID]*domain.ContactHandle
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[uuid.UUID]*domain.Account),
		contacts: make(map[uuid.UUID]*domain.ContactHandle),
	}
}

func (r *MemoryRepository) contactByValueLocked(kind domain.ContactKind, value string) *domain.ContactHandle {
	for _, handle := range r.contacts {
		if handle.Kind == kind && handle.Value == value {
			return handle
		}
	}
	return nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account, phone, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Login == account.Login {
			return ErrLoginTaken
		}
	}
	if r.contactByValueLocked(domain.ContactKindPhone, phone) != nil ||
		r.contactByValueLocked(domain.ContactKindEmail, email) != nil {
		return ErrContactTaken
	}

	now := time.Now()
	stored := *account
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.accounts[stored.ID] = &stored

	for kind, value := range map[domain.ContactKind]string{
		domain.ContactKindPhone: phone,
		domain.ContactKindEmail: email,
	} {
		handle := &domain.ContactHandle{ID: uuid.New(), Kind: kind, Value: value, OwnerID: stored.ID, CreatedAt: now}
		r.contacts[handle.ID] = handle
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *MemoryRepository) FindAccountByLogin(ctx context.Context, login string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.Login == login {
			cp := *account
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryRepository) SearchAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := filter.Size
	if size <= 0 {
		size = 20
	}
	from := filter.From
	if from < 0 {
		from = 0
	}

	var matched []domain.Account
	for _, account := range r.accounts {
		if filter.BirthDate != nil && !account.BirthDate.Equal(*filter.BirthDate) {
			continue
		}
		if !r.matchesContactLocked(account.ID, domain.ContactKindPhone, filter.Phone) {
			continue
		}
		if !r.matchesContactLocked(account.ID, domain.ContactKindEmail, filter.Email) {
			continue
		}
		if !matchesNameParts(account.FullName, filter.Surname, filter.Name, filter.Patronymic) {
			continue
		}
		matched = append(matched, *account)
	}

	// Stable order by id, like the SQL implementation.
	for i := 1; i < len(matched); i++ {
		for j := i; j > 0 && matched[j].ID.String() < matched[j-1].ID.String(); j-- {
			matched[j], matched[j-1] = matched[j-1], matched[j]
		}
	}

	if from >= len(matched) {
		return nil, nil
	}
	end := from + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[from:end], nil
}

func (r *MemoryRepository) matchesContactLocked(ownerID uuid.UUID, kind domain.ContactKind, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	for _, handle := range r.contacts {
		if handle.OwnerID == ownerID && handle.Kind == kind && handle.Value == value {
			return true
		}
	}
	return false
}

func matchesNameParts(fullName string, parts ...string) bool {
	lowered := strings.ToLower(fullName)
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" && !strings.Contains(lowered, part) {
			return false
		}
	}
	return true
}

func (r *MemoryRepository) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *MemoryRepository) TransferBalance(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.accounts[senderID]
	if !ok {
		return nil, ErrSenderNotFound
	}
	if senderID == receiverID {
		return nil, ErrSameAccount
	}
	receiver, ok := r.accounts[receiverID]
	if !ok {
		return nil, ErrReceiverNotFound
	}

	newSenderBalance := sender.Balance.Sub(amount)
	if !newSenderBalance.IsPositive() {
		return nil, ErrInsufficientFunds
	}

	now := time.Now()
	sender.Balance = newSenderBalance
	sender.UpdatedAt = now
	receiver.Balance = receiver.Balance.Add(amount)
	receiver.UpdatedAt = now

	cp := *sender
	return &cp, nil
}

func (r *MemoryRepository) ApplyAccrual(ctx context.Context, accountID uuid.UUID, rate, capFactor decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	if !account.Balance.IsPositive() {
		return false, nil
	}

	increase := account.Balance.Mul(rate)
	grown := account.Balance.Add(increase)
	if grown.GreaterThan(account.StartDeposit.Mul(capFactor)) {
		return false, nil
	}

	account.Balance = grown
	account.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepository) FindContactByValue(ctx context.Context, kind domain.ContactKind, value string) (*domain.ContactHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle := r.contactByValueLocked(kind, value); handle != nil {
		cp := *handle
		return &cp, nil
	}
	return nil, ErrContactNotFound
}

func (r *MemoryRepository) FindContactsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ContactHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var handles []domain.ContactHandle
	for _, handle := range r.contacts {
		if handle.OwnerID == ownerID {
			handles = append(handles, *handle)
		}
	}
	return handles, nil
}

func (r *MemoryRepository) AddContact(ctx context.Context, handle *domain.ContactHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.contactByValueLocked(handle.Kind, handle.Value) != nil {
		return ErrContactTaken
	}

	stored := *handle
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.contacts[stored.ID] = &stored
	handle.CreatedAt = stored.CreatedAt
	return nil
}

func (r *MemoryRepository) ReplaceContact(ctx context.Context, ownerID uuid.UUID, kind domain.ContactKind, oldValue, newValue string) (*domain.ContactHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.contactByValueLocked(kind, newValue) != nil {
		return nil, ErrContactTaken
	}

	if oldValue != "" {
		for id, handle := range r.contacts {
			if handle.Kind == kind && handle.Value == oldValue {
				delete(r.contacts, id)
			}
		}
	}

	handle := &domain.ContactHandle{ID: uuid.New(), Kind: kind, Value: newValue, OwnerID: ownerID, CreatedAt: time.Now()}
	r.contacts[handle.ID] = handle
	cp := *handle
	return &cp, nil
}

func (r *MemoryRepository) RemoveContact(ctx context.Context, ownerID uuid.UUID, kind domain.ContactKind, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owned []uuid.UUID
	for id, handle := range r.contacts {
		if handle.OwnerID == ownerID && handle.Kind == kind {
			owned = append(owned, id)
		}
	}
	if len(owned) <= 1 {
		return ErrLastContact
	}

	for _, id := range owned {
		if r.contacts[id].Value == value {
			delete(r.contacts, id)
		}
	}
	return nil
}
