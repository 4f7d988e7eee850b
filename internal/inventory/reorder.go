package inventory

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// ReorderState is the low stock flag of an item before and after re-evaluation.
type ReorderState struct {
	ItemID       int64
	Quantity     decimal.Decimal
	ReorderPoint decimal.Decimal
	WasLow       bool
	IsLow        bool
}

// ReorderStore recomputes low stock flags.
type ReorderStore interface {
	RefreshLowStock(ctx context.Context, itemID int64) (ReorderState, error)
}

// ReorderEvaluator re-checks reorder thresholds after stock changes.
type ReorderEvaluator interface {
	Reevaluate(ctx context.Context, itemID int64) (ReorderState, error)
}

// ThresholdEvaluator flags items at or below their reorder point.
type ThresholdEvaluator struct {
	store  ReorderStore
	logger *slog.Logger
}

// NewThresholdEvaluator constructs the evaluator.
func NewThresholdEvaluator(store ReorderStore, logger *slog.Logger) *ThresholdEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThresholdEvaluator{store: store, logger: logger}
}

// Reevaluate refreshes the flag and logs when it clears.
func (e *ThresholdEvaluator) Reevaluate(ctx context.Context, itemID int64) (ReorderState, error) {
	state, err := e.store.RefreshLowStock(ctx, itemID)
	if err != nil {
		return ReorderState{}, err
	}
	if state.WasLow && !state.IsLow {
		e.logger.Info("inventory item restocked above reorder point",
			slog.Int64("item_id", itemID),
			slog.String("quantity", state.Quantity.String()),
			slog.String("reorder_point", state.ReorderPoint.String()))
	}
	return state, nil
}
