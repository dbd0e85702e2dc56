package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// RecurringProcessor materializes due recurring transactions: each
// template whose next occurrence date has arrived gets a fresh
// non-recurring instance (balance applied through the usual atomic
// unit) and its next date advanced by one interval.
type RecurringProcessor struct {
	store Store
}

func NewRecurringProcessor(store Store) *RecurringProcessor {
	return &RecurringProcessor{store: store}
}

// ProcessDue creates instances for every due recurring transaction.
// Per-item failures are logged and skipped so one broken template
// cannot stall the rest; each materialization is itself atomic.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	due, err := p.store.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Processing due recurring transactions",
		"due", len(due),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, tmpl := range due {
		next, err := core.NextRecurringDate(tmpl.NextRecurringDate, tmpl.RecurringInterval)
		if err != nil {
			slog.ErrorContext(ctx, "Recurring template has invalid interval",
				"template_id", tmpl.ID, "interval", string(tmpl.RecurringInterval), "error", err)
			continue
		}

		instance := &core.Transaction{
			ID:          uuid.NewString(),
			UserID:      tmpl.UserID,
			AccountID:   tmpl.AccountID,
			Type:        tmpl.Type,
			Amount:      tmpl.Amount,
			Description: tmpl.Description,
			Category:    tmpl.Category,
			Date:        tmpl.NextRecurringDate,
		}

		if err := p.store.MaterializeRecurring(ctx, instance, tmpl.ID, next); err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring transaction",
				"template_id", tmpl.ID, "error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"total_due", len(due))
	return processed, nil
}
