/**
 * @description
 * Domain models for the ledger core: customer accounts and the requests that
 * mutate them. Balances are decimals, never floats, so transfer and accrual
 * arithmetic stays exact.
 *
 * @dependencies
 * - github.com/google/uuid: Account identifiers.
 * - github.com/shopspring/decimal: Monetary amounts.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the ledger entity: identity, credentials, balance and the start
// deposit that fixes the accrual cap at creation time.
type Account struct {
	ID           uuid.UUID       `json:"id"`
	FullName     string          `json:"full_name"`
	BirthDate    time.Time       `json:"birth_date"`
	Login        string          `json:"login"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	StartDeposit decimal.Decimal `json:"start_deposit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RegisterRequest carries the payload for creating a new account. Every new
// account starts with one phone and one email handle.
type RegisterRequest struct {
	FullName        string          `json:"full_name"`
	BirthDate       time.Time       `json:"birth_date"`
	Login           string          `json:"login"`
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirm_password"`
	StartDeposit    decimal.Decimal `json:"start_deposit"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
}

// TransferRequest is the inbound payload for a balance transfer. The sender is
// the authenticated account.
type TransferRequest struct {
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// AccountFilter holds the optional search criteria and pagination for the
// read-only account search.
type AccountFilter struct {
	BirthDate  *time.Time
	Phone      string
	Email      string
	Surname    string
	Name       string
	Patronymic string
	From       int
	Size       int
}
