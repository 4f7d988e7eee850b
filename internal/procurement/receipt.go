package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/money"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// DeriveInspectionStatus returns passed when every line is good and partial otherwise.
// Failed is only reachable through an explicit override.
func DeriveInspectionStatus(lines []ReceiptLine) InspectionStatus {
	for _, line := range lines {
		if line.QualityStatus != QualityGood {
			return InspectionPartial
		}
	}
	return InspectionPassed
}

// SubmitReceipt records a goods receipt against a sent purchase order. The receipt,
// its pending inventory movements and the PO status change commit together; the
// movements are applied to stock after commit.
func (s *Service) SubmitReceipt(ctx context.Context, poID int64, input ReceiveInput, actorID int64) (ReceiptResult, error) {
	if actorID <= 0 {
		return ReceiptResult{}, ErrActorRequired
	}
	if err := validateReceiveInput(input); err != nil {
		return ReceiptResult{}, err
	}
	unlock, err := s.lockPO(ctx, poID)
	if err != nil {
		return ReceiptResult{}, err
	}
	defer unlock()

	var result ReceiptResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if !po.Status.CanReceive() {
			return ErrCannotReceive.WithMessage("cannot receive goods for purchase order %s in status %s", po.Number, po.Status)
		}
		before := summary(po)
		version := po.Version

		lines := make([]ReceiptLine, 0, len(input.Lines))
		for idx, in := range input.Lines {
			n := idx + 1
			item, ok := po.item(in.POItemID)
			if !ok {
				return ErrUnknownPOItem.WithMessage("line %d: item %d does not belong to purchase order %s", n, in.POItemID, po.Number)
			}
			if remaining := item.Remaining(); in.QuantityReceived.GreaterThan(remaining) {
				return ErrOverReceipt.WithMessage("line %d: quantity %s exceeds remaining %s for item %d", n, in.QuantityReceived, remaining, in.POItemID)
			}
			item.addDisposition(in.QualityStatus, in.QuantityReceived)
			lines = append(lines, ReceiptLine{
				POItemID:         in.POItemID,
				QuantityReceived: in.QuantityReceived,
				QualityStatus:    in.QualityStatus,
				Notes:            strings.TrimSpace(in.Notes),
			})
		}

		now := s.now().UTC()
		receipt := GoodsReceipt{
			POID:             po.ID,
			InspectionStatus: DeriveInspectionStatus(lines),
			QualityNotes:     strings.TrimSpace(input.QualityNotes),
			GeneralNotes:     strings.TrimSpace(input.Notes),
			ReceivedBy:       actorID,
			ReceivedAt:       now,
			Lines:            lines,
		}
		if input.InspectionStatus != nil {
			receipt.InspectionStatus = *input.InspectionStatus
			receipt.InspectionOverridden = true
		}
		receipt.Number, err = tx.NextGRNNumber(ctx, now)
		if err != nil {
			return fmt.Errorf("procurement: next grn number: %w", err)
		}
		receipt, err = tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return fmt.Errorf("procurement: insert receipt: %w", err)
		}

		movements := buildMovements(po, receipt, actorID)
		if len(movements) > 0 {
			movements, err = tx.StageMovements(ctx, movements)
			if err != nil {
				return fmt.Errorf("procurement: stage movements: %w", err)
			}
		}

		action := ActionPartiallyReceived
		po.Status = StatusPartiallyReceived
		if po.FullyReceived() {
			action = ActionReceived
			po.Status = StatusReceived
		}
		updated, err := tx.UpdatePO(ctx, po, version)
		if err != nil {
			return err
		}
		updated.Items = po.Items

		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   ActionReceiptCreated,
			Entity:   shared.AuditEntityGoodsReceipt,
			EntityID: fmt.Sprintf("%d", receipt.ID),
			After:    receipt,
			Meta:     map[string]any{"po_id": po.ID, "movements": len(movements)},
			At:       now,
		}); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, s.auditEntry(actorID, action, po.ID, before, summary(updated), map[string]any{"receipt_id": receipt.ID, "grn_number": receipt.Number})); err != nil {
			return err
		}

		result = ReceiptResult{Receipt: receipt, PurchaseOrder: updated, Movements: movements}
		return nil
	})
	if err != nil {
		return ReceiptResult{}, err
	}

	s.transitioned(result.PurchaseOrder, result.PurchaseOrder.Status)
	if s.metrics != nil {
		s.metrics.ReceiptSubmitted(string(result.Receipt.InspectionStatus))
	}
	s.logger.Info("goods receipt submitted",
		slog.Int64("po_id", poID),
		slog.Int64("receipt_id", result.Receipt.ID),
		slog.String("grn_number", result.Receipt.Number),
		slog.String("inspection_status", string(result.Receipt.InspectionStatus)),
		slog.Int("movements", len(result.Movements)))

	afterCtx := context.WithoutCancel(ctx)
	result.Inventory, result.ReconcilePending = s.applyMovements(afterCtx, poID, result.Receipt.ID, result.Movements)
	if result.PurchaseOrder.Status == StatusReceived && s.notifier != nil {
		if err := s.notifier.ReceiptCompleted(afterCtx, result.PurchaseOrder, result.Receipt); err != nil {
			s.logger.Warn("receipt completed notification not queued", slog.Int64("po_id", poID), slog.Any("error", err))
		}
	}
	return result, nil
}

// ReconcileReceipt re-applies the pending movements of a committed receipt.
func (s *Service) ReconcileReceipt(ctx context.Context, poID, receiptID int64) (inventory.ApplyResult, error) {
	if s.inventory == nil {
		return inventory.ApplyResult{}, errors.New("procurement: inventory gateway not configured")
	}
	if _, err := s.repo.GetReceipt(ctx, poID, receiptID); err != nil {
		return inventory.ApplyResult{}, err
	}
	res, err := s.inventory.ApplyPending(ctx, receiptID)
	if err != nil {
		return res, fmt.Errorf("procurement: reconcile receipt %d: %w", receiptID, err)
	}
	s.logger.Info("goods receipt reconciled",
		slog.Int64("po_id", poID),
		slog.Int64("receipt_id", receiptID),
		slog.Int("applied", res.Applied),
		slog.Int("duplicates", res.Duplicates))
	return res, nil
}

func (s *Service) applyMovements(ctx context.Context, poID, receiptID int64, movements []inventory.Movement) (inventory.ApplyResult, bool) {
	if len(movements) == 0 {
		return inventory.ApplyResult{}, false
	}
	var (
		res inventory.ApplyResult
		err error
	)
	if s.inventory == nil {
		err = errors.New("procurement: inventory gateway not configured")
	} else {
		res, err = s.inventory.Apply(ctx, movements)
	}
	if err == nil {
		return res, false
	}
	s.logger.Error("inventory apply failed; scheduling reconcile",
		slog.Int64("po_id", poID),
		slog.Int64("receipt_id", receiptID),
		slog.Any("error", err))
	if s.reconciler != nil {
		if qerr := s.reconciler.EnqueueReconcile(ctx, poID, receiptID); qerr != nil {
			s.logger.Error("reconcile task not queued", slog.Int64("receipt_id", receiptID), slog.Any("error", qerr))
		}
	}
	return res, true
}

func validateReceiveInput(input ReceiveInput) error {
	if len(input.Lines) == 0 {
		return ErrEmptyReceipt
	}
	if err := shared.ValidateStruct(input); err != nil {
		return err
	}
	if input.InspectionStatus != nil && !input.InspectionStatus.Valid() {
		return ErrInvalidInspectionStatus
	}
	total := decimal.Zero
	for idx, line := range input.Lines {
		if line.QuantityReceived.IsNegative() {
			return ErrInvalidQuantity.WithMessage("line %d: quantity_received must not be negative", idx+1)
		}
		if err := money.Representable(line.QuantityReceived); err != nil {
			return ErrInvalidQuantity.WithMessage("line %d: quantity_received: %s", idx+1, strings.TrimPrefix(err.Error(), "money: "))
		}
		if !line.QualityStatus.Valid() {
			return ErrInvalidQualityStatus.WithMessage("line %d: quality status %q must be good, damaged or rejected", idx+1, line.QualityStatus)
		}
		total = total.Add(line.QuantityReceived)
	}
	if !total.IsPositive() {
		return ErrEmptyReceipt
	}
	return nil
}

func buildMovements(po PurchaseOrder, receipt GoodsReceipt, actorID int64) []inventory.Movement {
	var movements []inventory.Movement
	for _, line := range receipt.Lines {
		if line.QualityStatus != QualityGood || !line.QuantityReceived.IsPositive() {
			continue
		}
		item, _ := po.item(line.POItemID)
		movements = append(movements, inventory.Movement{
			ReceiptLineID: line.ID,
			ReceiptID:     receipt.ID,
			POID:          po.ID,
			ItemID:        item.InventoryItemID,
			Quantity:      line.QuantityReceived,
			UnitCost:      item.UnitCost,
			Type:          inventory.MovementTypeIn,
			Reason:        inventory.ReasonPurchaseReceipt,
			Reference:     receipt.Number,
			ActorID:       actorID,
		})
	}
	return movements
}
