package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferCompletedEvent is published after a successful balance transfer.
type TransferCompletedEvent struct {
	SenderID   uuid.UUID       `json:"sender_id"`
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AccrualRunEvent summarizes one completed accrual pass.
type AccrualRunEvent struct {
	AccountsVisited int       `json:"accounts_visited"`
	AccountsUpdated int       `json:"accounts_updated"`
	Timestamp       time.Time `json:"timestamp"`
}
