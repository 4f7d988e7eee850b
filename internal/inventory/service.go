package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, itemID int64) (Balance, error)
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error)
	PendingMovements(ctx context.Context, receiptID int64) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives gateway outcomes.
type MetricsPort interface {
	MovementsApplied(applied, duplicates int)
}

// ActionReceiptApplied is the audit action of an applied purchase receipt movement.
const ActionReceiptApplied = "inventory.receipt_applied"

// Service is the inventory reconciliation gateway.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	reorder       ReorderEvaluator
	metrics       MetricsPort
	logger        *slog.Logger
	costPrecision int32
	now           func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// CostPrecision is the number of decimal places kept on moving average cost.
	CostPrecision int32
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, reorder ReorderEvaluator, metrics MetricsPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CostPrecision <= 0 {
		cfg.CostPrecision = 6
	}
	return &Service{
		repo:          repo,
		audit:         audit,
		reorder:       reorder,
		metrics:       metrics,
		logger:        logger,
		costPrecision: cfg.CostPrecision,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Apply increases stock for each movement exactly once. Movements already applied
// are counted as duplicates. Each movement commits independently, so a failure
// leaves earlier movements applied and the call can be repeated safely.
func (s *Service) Apply(ctx context.Context, movements []Movement) (ApplyResult, error) {
	var result ApplyResult
	defer func() {
		if s.metrics != nil {
			s.metrics.MovementsApplied(result.Applied, result.Duplicates)
		}
	}()
	for _, m := range movements {
		if err := m.Validate(); err != nil {
			return result, fmt.Errorf("receipt line %d: %w", m.ReceiptLineID, err)
		}
		entry, err := s.applyOne(ctx, m)
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			result.Duplicates++
			s.logger.Debug("inventory movement already applied", slog.Int64("receipt_line_id", m.ReceiptLineID))
			continue
		}
		if err != nil {
			return result, fmt.Errorf("inventory: apply receipt line %d: %w", m.ReceiptLineID, err)
		}
		result.Applied++
		result.Entries = append(result.Entries, entry)
		s.afterApply(ctx, m, entry)
	}
	return result, nil
}

// ApplyPending re-applies movements of a receipt that have not been marked applied.
func (s *Service) ApplyPending(ctx context.Context, receiptID int64) (ApplyResult, error) {
	pending, err := s.repo.PendingMovements(ctx, receiptID)
	if err != nil {
		return ApplyResult{}, err
	}
	return s.Apply(ctx, pending)
}

// Balance returns the current balance of an item.
func (s *Service) Balance(ctx context.Context, itemID int64) (Balance, error) {
	if itemID <= 0 {
		return Balance{}, ErrItemNotFound
	}
	return s.repo.GetBalance(ctx, itemID)
}

// StockCard lists stock card entries of an item.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error) {
	if filter.ItemID <= 0 {
		return nil, ErrItemNotFound
	}
	return s.repo.GetStockCard(ctx, filter)
}

func (s *Service) applyOne(ctx context.Context, m Movement) (StockCardEntry, error) {
	var card StockCardEntry
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClaimKey(ctx, m.IdempotencyKey()); err != nil {
			return err
		}
		balance, err := tx.GetBalanceForUpdate(ctx, m.ItemID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{ItemID: m.ItemID}
		}
		newQty := balance.Quantity.Add(m.Quantity)
		newAvg := decimal.Zero
		if newQty.IsPositive() {
			totalCost := balance.Quantity.Mul(balance.AvgCost).Add(m.Quantity.Mul(m.UnitCost))
			newAvg = totalCost.DivRound(newQty, s.costPrecision)
		}
		balance.Quantity = newQty
		balance.AvgCost = newAvg
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		card = StockCardEntry{
			ItemID:      m.ItemID,
			MovementID:  m.ID,
			RefKey:      m.IdempotencyKey(),
			Reference:   m.Reference,
			POID:        m.POID,
			ReceiptID:   m.ReceiptID,
			QtyIn:       m.Quantity,
			QtyOut:      decimal.Zero,
			BalanceQty:  newQty,
			UnitCost:    m.UnitCost,
			BalanceCost: newAvg,
			Note:        fmt.Sprintf("Goods receipt %s", m.Reference),
			PostedAt:    now,
		}
		id, err := tx.InsertCardEntry(ctx, card)
		if err != nil {
			return err
		}
		card.ID = id
		return tx.MarkApplied(ctx, m.ReceiptLineID, now)
	})
	if err != nil {
		return StockCardEntry{}, err
	}
	return card, nil
}

func (s *Service) afterApply(ctx context.Context, m Movement, entry StockCardEntry) {
	if s.reorder != nil {
		if _, err := s.reorder.Reevaluate(ctx, m.ItemID); err != nil {
			s.logger.Warn("reorder evaluation failed", slog.Int64("item_id", m.ItemID), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  m.ActorID,
		Action:   ActionReceiptApplied,
		Entity:   shared.AuditEntityInventoryItem,
		EntityID: fmt.Sprintf("%d", m.ItemID),
		After:    map[string]any{"quantity_on_hand": entry.BalanceQty, "average_cost": entry.BalanceCost},
		Meta: map[string]any{
			"receipt_line_id": m.ReceiptLineID,
			"receipt_id":      m.ReceiptID,
			"po_id":           m.POID,
			"quantity":        m.Quantity,
			"unit_cost":       m.UnitCost,
			"reference":       m.Reference,
		},
	})
	if err != nil {
		s.logger.Warn("inventory audit failed", slog.Int64("item_id", m.ItemID), slog.Any("error", err))
	}
}
