/**
 * @description
 * Scheduled accrual job: grows every positive balance by a fixed rate until
 * the account's cap (start deposit times the cap factor) would be crossed.
 * Each account is one independent atomic step; a failure on one account is
 * logged and the pass continues with the rest.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
	"github.com/NikolaiGurianov/BankingApp/internal/store"
)

// AccrualJob holds the accrual pass over all accounts.
type AccrualJob struct {
	repo      store.Repository
	events    EventPublisher
	logger    *slog.Logger
	rate      decimal.Decimal
	capFactor decimal.Decimal
}

// NewAccrualJob creates the job with the growth rate and cap factor.
func NewAccrualJob(repo store.Repository, events EventPublisher, logger *slog.Logger, rate, capFactor decimal.Decimal) *AccrualJob {
	return &AccrualJob{
		repo:      repo,
		events:    events,
		logger:    logger,
		rate:      rate,
		capFactor: capFactor,
	}
}

// Run executes one accrual pass. Per-account persistence failures do not abort
// the remaining accounts.
func (j *AccrualJob) Run() {
	j.logger.Info("starting balance accrual pass")
	ctx := context.Background()

	ids, err := j.repo.ListAccountIDs(ctx)
	if err != nil {
		j.logger.Error("failed to list accounts for accrual", "error", err)
		return
	}

	updated := 0
	for _, id := range ids {
		applied, err := j.repo.ApplyAccrual(ctx, id, j.rate, j.capFactor)
		if err != nil {
			j.logger.Error("failed to accrue balance", "account_id", id, "error", err)
			continue
		}
		if applied {
			updated++
			j.logger.Info("balance increased", "account_id", id)
		} else {
			j.logger.Debug("accrual skipped", "account_id", id)
		}
	}

	if j.events != nil {
		event := domain.AccrualRunEvent{
			AccountsVisited: len(ids),
			AccountsUpdated: updated,
			Timestamp:       time.Now(),
		}
		if err := j.events.Publish(ctx, LedgerEventExchange, "accrual.completed", event); err != nil {
			j.logger.Warn("accrual event publish failed", "error", err)
		}
	}

	j.logger.Info("balance accrual pass finished", "visited", len(ids), "updated", updated)
}
