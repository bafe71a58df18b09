/**
 * @description
 * Core application service for the ledger: balance transfers, contact-handle
 * mutations, registration, login and account search. Handlers call into this
 * layer; it validates input, delegates atomic state changes to the repository
 * and publishes events after successful mutations.
 *
 * @dependencies
 * - internal/store: Repository contract and sentinel errors.
 * - internal/domain: Domain models and the tagged contact update.
 * - golang.org/x/crypto/bcrypt, github.com/golang-jwt/jwt/v5: Credentials.
 */
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
	"github.com/NikolaiGurianov/BankingApp/internal/store"
)

var (
	ErrInvalidCredentials  = errors.New("invalid login or password")
	ErrTransferRateLimited = errors.New("transfer rate limit exceeded")
)

// LedgerEventExchange is the durable topic exchange all ledger events go to.
const LedgerEventExchange = "ledger.events"

// EventPublisher abstracts the broker producer. A nil publisher disables
// eventing; publish failures never fail the business operation.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RateLimiter is the distributed fixed-window limiter contract.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Claims is the JWT payload issued at login.
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Service wires the repository, the optional event producer and the optional
// rate limiter together with the auth settings.
type Service struct {
	repo                 store.Repository
	events               EventPublisher
	limiter              RateLimiter
	jwtSecret            []byte
	tokenTTL             time.Duration
	transfersPerMinLimit int
}

// NewService creates the application service.
func NewService(repo store.Repository, events EventPublisher, jwtSecret []byte, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		events:    events,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// SetTransferRateLimiter enables per-sender transfer rate limiting.
func (s *Service) SetTransferRateLimiter(limiter RateLimiter, perMinute int) {
	s.limiter = limiter
	s.transfersPerMinLimit = perMinute
}

// Register creates an account with its initial phone and email handles. The
// account starts with balance equal to the start deposit.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	if strings.TrimSpace(req.Login) == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, domain.NewValidationError("login and full name are required")
	}
	if req.Password == "" || req.Password != req.ConfirmPassword {
		return nil, domain.NewValidationError("passwords do not match")
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, domain.NewValidationError("an initial phone and email are required")
	}
	if req.StartDeposit.IsNegative() {
		return nil, domain.NewValidationError("start deposit cannot be negative")
	}

	if _, err := s.repo.FindAccountByLogin(ctx, req.Login); err == nil {
		return nil, domain.NewValidationError("an account with this login already exists")
	} else if !errors.Is(err, store.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(req.FullName),
		BirthDate:    req.BirthDate,
		Login:        strings.TrimSpace(req.Login),
		PasswordHash: string(hash),
		Balance:      req.StartDeposit,
		StartDeposit: req.StartDeposit,
	}

	if err := s.repo.CreateAccount(ctx, account, strings.TrimSpace(req.Phone), strings.TrimSpace(req.Email)); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"account registered\" account_id=%s login=%s", account.ID, account.Login)
	return account, nil
}

// Login verifies the credentials and returns a signed HS256 token.
func (s *Service) Login(ctx context.Context, login, password string) (string, error) {
	account, err := s.repo.FindAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		AccountID: account.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// GetAccount is the thin existence/lookup wrapper over the account store.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, id)
}

// GetContacts lists the contact handles owned by an account.
func (s *Service) GetContacts(ctx context.Context, accountID uuid.UUID) ([]domain.ContactHandle, error) {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.FindContactsByOwner(ctx, accountID)
}

// Search runs the read-only account search. The full name filter is split into
// up to three parts (surname, name, patronymic).
func (s *Service) Search(ctx context.Context, birthDate *time.Time, phone, fullName, email string, from, size int) ([]domain.Account, error) {
	filter := domain.AccountFilter{
		BirthDate: birthDate,
		Phone:     phone,
		Email:     email,
		From:      from,
		Size:      size,
	}
	parts := strings.Fields(fullName)
	if len(parts) > 0 {
		filter.Surname = parts[0]
	}
	if len(parts) > 1 {
		filter.Name = parts[1]
	}
	if len(parts) > 2 {
		filter.Patronymic = parts[2]
	}
	return s.repo.SearchAccounts(ctx, filter)
}

// Transfer moves amount from sender to receiver and returns the sender's
// post-transfer state. Amount validation happens before any store access; the
// debit/credit pair itself is one atomic unit inside the repository.
func (s *Service) Transfer(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("transfer amount must be positive")
	}

	if s.limiter != nil && s.transfersPerMinLimit > 0 {
		count, _, err := s.limiter.ConsumeRateLimit(ctx, "transfer", senderID.String(), s.transfersPerMinLimit, time.Minute)
		if err != nil {
			log.Printf("level=warn component=app msg=\"rate limiter unavailable; allowing transfer\" sender_id=%s err=%v", senderID, err)
		} else if count > s.transfersPerMinLimit {
			return nil, ErrTransferRateLimited
		}
	}

	sender, err := s.repo.TransferBalance(ctx, senderID, receiverID, amount)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"transfer completed\" sender_id=%s receiver_id=%s amount=%s sender_balance=%s",
		senderID, receiverID, amount, sender.Balance)

	if s.events != nil {
		event := domain.TransferCompletedEvent{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Amount:     amount,
			Timestamp:  time.Now(),
		}
		if err := s.events.Publish(ctx, LedgerEventExchange, "transfer.completed", event); err != nil {
			log.Printf("level=warn component=app msg=\"transfer event publish failed\" sender_id=%s err=%v", senderID, err)
		}
	}

	return sender, nil
}

// UpdateContactInfo dispatches one tagged contact mutation to the matching
// operation and returns the account's handles afterwards.
func (s *Service) UpdateContactInfo(ctx context.Context, accountID uuid.UUID, req domain.ContactUpdate) ([]domain.ContactHandle, error) {
	var err error
	switch req.Op {
	case domain.ContactOpAdd:
		err = s.AddContact(ctx, accountID, req.Phone, req.Email)
	case domain.ContactOpReplace:
		err = s.ReplaceContact(ctx, accountID, req.OldPhone, req.NewPhone, req.OldEmail, req.NewEmail)
	case domain.ContactOpRemove:
		err = s.RemoveContact(ctx, accountID, req.Phone, req.Email)
	default:
		err = domain.NewValidationError("unknown contact operation")
	}
	if err != nil {
		return nil, err
	}
	return s.repo.FindContactsByOwner(ctx, accountID)
}

// AddContact inserts a new handle for each non-nil field. The value lookup is
// only a pre-check for a friendlier error; the store's uniqueness constraint
// decides races.
func (s *Service) AddContact(ctx context.Context, accountID uuid.UUID, phone, email *string) error {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return err
	}

	if phone != nil {
		if err := s.insertHandle(ctx, accountID, domain.ContactKindPhone, *phone); err != nil {
			return err
		}
	}
	if email != nil {
		if err := s.insertHandle(ctx, accountID, domain.ContactKindEmail, *email); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) insertHandle(ctx context.Context, accountID uuid.UUID, kind domain.ContactKind, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError("contact value cannot be empty")
	}
	if _, err := s.repo.FindContactByValue(ctx, kind, value); err == nil {
		return store.ErrContactTaken
	} else if !errors.Is(err, store.ErrContactNotFound) {
		return err
	}

	handle := &domain.ContactHandle{ID: uuid.New(), Kind: kind, Value: value, OwnerID: accountID}
	if err := s.repo.AddContact(ctx, handle); err != nil {
		return err
	}
	log.Printf("level=info component=app msg=\"contact added\" account_id=%s kind=%s", accountID, kind)
	return nil
}

// ReplaceContact swaps the old value for the new one per kind. Each pair acts
// only when the new value is present; the delete and insert are one atomic
// step in the repository.
func (s *Service) ReplaceContact(ctx context.Context, accountID uuid.UUID, oldPhone, newPhone, oldEmail, newEmail *string) error {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return err
	}

	if newPhone != nil {
		if err := s.replaceHandle(ctx, accountID, domain.ContactKindPhone, deref(oldPhone), *newPhone); err != nil {
			return err
		}
	}
	if newEmail != nil {
		if err := s.replaceHandle(ctx, accountID, domain.ContactKindEmail, deref(oldEmail), *newEmail); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) replaceHandle(ctx context.Context, accountID uuid.UUID, kind domain.ContactKind, oldValue, newValue string) error {
	if strings.TrimSpace(newValue) == "" {
		return domain.NewValidationError("contact value cannot be empty")
	}
	if _, err := s.repo.FindContactByValue(ctx, kind, newValue); err == nil {
		return store.ErrContactTaken
	} else if !errors.Is(err, store.ErrContactNotFound) {
		return err
	}

	if _, err := s.repo.ReplaceContact(ctx, accountID, kind, oldValue, newValue); err != nil {
		return err
	}
	log.Printf("level=info component=app msg=\"contact replaced\" account_id=%s kind=%s", accountID, kind)
	return nil
}

// RemoveContact deletes the handles matching each non-nil field. Removing the
// last handle of a kind is refused; kinds are independent of each other.
func (s *Service) RemoveContact(ctx context.Context, accountID uuid.UUID, phone, email *string) error {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return err
	}

	if phone != nil {
		if err := s.repo.RemoveContact(ctx, accountID, domain.ContactKindPhone, *phone); err != nil {
			return err
		}
		log.Printf("level=info component=app msg=\"phone removed\" account_id=%s", accountID)
	}
	if email != nil {
		if err := s.repo.RemoveContact(ctx, accountID, domain.ContactKindEmail, *email); err != nil {
			return err
		}
		log.Printf("level=info component=app msg=\"email removed\" account_id=%s", accountID)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
