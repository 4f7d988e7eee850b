package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/money"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Audit actions written by the purchase order aggregate.
const (
	ActionCreated           = "po.created"
	ActionUpdated           = "po.updated"
	ActionDeleted           = "po.deleted"
	ActionApproved          = "po.approved"
	ActionSent              = "po.sent"
	ActionCancelled         = "po.cancelled"
	ActionPaymentStatus     = "po.payment_status"
	ActionPartiallyReceived = "po.partially_received"
	ActionReceived          = "po.received"
	ActionReceiptCreated    = "receipt.created"
)

// Options carries optional collaborators of Service.
type Options struct {
	Locker     shared.Locker
	LockTTL    time.Duration
	Notifier   Notifier
	Reconciler Reconciler
	Metrics    MetricsPort
	Logger     *slog.Logger
}

// Service orchestrates purchase order and goods receipt flows.
type Service struct {
	repo       RepositoryPort
	suppliers  SupplierPort
	inventory  InventoryGateway
	locker     shared.Locker
	lockTTL    time.Duration
	notifier   Notifier
	reconciler Reconciler
	metrics    MetricsPort
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, suppliers SupplierPort, inventory InventoryGateway, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &Service{
		repo:       repo,
		suppliers:  suppliers,
		inventory:  inventory,
		locker:     opts.Locker,
		lockTTL:    opts.LockTTL,
		notifier:   opts.Notifier,
		reconciler: opts.Reconciler,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Create validates input and persists a draft purchase order.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (PurchaseOrder, error) {
	if actorID <= 0 {
		return PurchaseOrder{}, ErrActorRequired
	}
	po, err := s.draftFromInput(ctx, input)
	if err != nil {
		return PurchaseOrder{}, err
	}
	now := s.now().UTC()
	po.OrderDate = now
	po.Status = StatusDraft
	po.PaymentStatus = PaymentPending
	po.CreatedBy = actorID

	var created PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextPONumber(ctx, now)
		if err != nil {
			return fmt.Errorf("procurement: next po number: %w", err)
		}
		po.Number = number
		created, err = tx.InsertPO(ctx, po)
		if err != nil {
			return fmt.Errorf("procurement: insert po: %w", err)
		}
		created.Items, err = tx.ReplaceItems(ctx, created.ID, po.Items)
		if err != nil {
			return fmt.Errorf("procurement: insert items: %w", err)
		}
		return tx.RecordAudit(ctx, s.auditEntry(actorID, ActionCreated, created.ID, nil, created, nil))
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.transitioned(created, StatusDraft)
	return created, nil
}

// UpdateDraft replaces supplier, dates, money fields and items of a draft.
func (s *Service) UpdateDraft(ctx context.Context, id int64, input UpdateInput, actorID int64) (PurchaseOrder, error) {
	next, err := s.draftFromInput(ctx, input.CreateInput)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.mutate(ctx, id, actorID, ActionUpdated, func(ctx context.Context, tx TxRepository, po *PurchaseOrder) error {
		if po.Status != StatusDraft {
			return ErrCannotEdit.WithMessage("purchase order %s is %s; only drafts can be edited", po.Number, po.Status)
		}
		if input.Version != nil && *input.Version != po.Version {
			return ErrVersionConflict
		}
		po.SupplierID = next.SupplierID
		po.ExpectedDeliveryDate = next.ExpectedDeliveryDate
		po.PaymentDueDate = next.PaymentDueDate
		po.TaxAmount = next.TaxAmount
		po.ShippingCost = next.ShippingCost
		po.DiscountAmount = next.DiscountAmount
		po.Notes = next.Notes
		po.Terms = next.Terms
		po.Subtotal = next.Subtotal
		po.Total = next.Total
		items, err := tx.ReplaceItems(ctx, po.ID, next.Items)
		if err != nil {
			return fmt.Errorf("procurement: replace items: %w", err)
		}
		po.Items = items
		return nil
	})
}

// DeleteDraft removes a draft purchase order and its items.
func (s *Service) DeleteDraft(ctx context.Context, id int64, actorID int64) error {
	if actorID <= 0 {
		return ErrActorRequired
	}
	unlock, err := s.lockPO(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != StatusDraft {
			return ErrCannotEdit.WithMessage("purchase order %s is %s; only drafts can be deleted", po.Number, po.Status)
		}
		if err := tx.DeletePO(ctx, id, po.Version); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, s.auditEntry(actorID, ActionDeleted, id, summary(po), nil, nil))
	})
}

// Approve moves a draft to approved after recomputing totals.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, actorID, ActionApproved, func(ctx context.Context, tx TxRepository, po *PurchaseOrder) error {
		if !po.Status.CanTransitionTo(StatusApproved) {
			return ErrCannotApprove.WithMessage("cannot approve purchase order %s in status %s", po.Number, po.Status)
		}
		if err := po.Recalculate(); err != nil {
			return mapMoneyError(err)
		}
		now := s.now().UTC()
		po.Status = StatusApproved
		po.ApprovedBy = &actorID
		po.ApprovedAt = &now
		return nil
	})
}

// Send marks an approved purchase order as sent and requests the supplier notification.
func (s *Service) Send(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.mutate(ctx, id, actorID, ActionSent, func(ctx context.Context, tx TxRepository, po *PurchaseOrder) error {
		if !po.Status.CanTransitionTo(StatusSent) {
			return ErrCannotSend.WithMessage("cannot send purchase order %s in status %s", po.Number, po.Status)
		}
		now := s.now().UTC()
		po.Status = StatusSent
		po.SentBy = &actorID
		po.SentAt = &now
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.PurchaseOrderSent(context.WithoutCancel(ctx), po); err != nil {
			s.logger.Warn("po sent notification not queued", slog.Int64("po_id", po.ID), slog.Any("error", err))
		}
	}
	return po, nil
}

// Cancel terminates a draft or approved purchase order.
func (s *Service) Cancel(ctx context.Context, id int64, reason string, actorID int64) (PurchaseOrder, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return PurchaseOrder{}, ErrCancelReasonRequired
	}
	return s.mutate(ctx, id, actorID, ActionCancelled, func(ctx context.Context, tx TxRepository, po *PurchaseOrder) error {
		if !po.Status.CanTransitionTo(StatusCancelled) {
			return ErrCannotCancel.WithMessage("cannot cancel purchase order %s in status %s", po.Number, po.Status)
		}
		now := s.now().UTC()
		po.Status = StatusCancelled
		po.CancelReason = reason
		po.CancelledBy = &actorID
		po.CancelledAt = &now
		return nil
	})
}

// UpdatePaymentStatus records the payment collaborator's view of the order.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus, actorID int64) (PurchaseOrder, error) {
	if !status.Valid() {
		return PurchaseOrder{}, ErrInvalidPaymentStatus
	}
	return s.mutate(ctx, id, actorID, ActionPaymentStatus, func(ctx context.Context, tx TxRepository, po *PurchaseOrder) error {
		if po.Status == StatusDraft || po.Status == StatusCancelled {
			return ErrCannotChangePayment.WithMessage("cannot change payment status of purchase order %s in status %s", po.Number, po.Status)
		}
		po.PaymentStatus = status
		return nil
	})
}

// Get loads a purchase order with items, received totals and receipts.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, ErrNotFound
	}
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	receipts, err := s.repo.ListReceipts(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Receipts = receipts
	return po, nil
}

// List returns purchase order headers matching filters and the total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, shared.NewDomainError(shared.ErrValidation, "INVALID_STATUS", fmt.Sprintf("unknown status %q", filters.Status))
	}
	if filters.From != nil && filters.To != nil && !filters.From.Before(*filters.To) {
		return nil, 0, ErrInvalidFilter.WithFields(map[string]string{"from": "must not be after to"})
	}
	norm := shared.ListFilters{Page: filters.Page, Limit: filters.Limit, SortDir: filters.SortDir}.Normalize()
	filters.Page, filters.Limit, filters.SortDir = norm.Page, norm.Limit, norm.SortDir
	return s.repo.ListPOs(ctx, filters)
}

// mutate runs fn against the locked purchase order and persists the header with a
// version check, writing one audit entry.
func (s *Service) mutate(ctx context.Context, id, actorID int64, action string, fn func(context.Context, TxRepository, *PurchaseOrder) error) (PurchaseOrder, error) {
	if actorID <= 0 {
		return PurchaseOrder{}, ErrActorRequired
	}
	unlock, err := s.lockPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer unlock()

	var updated PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := summary(po)
		version := po.Version
		if err := fn(ctx, tx, &po); err != nil {
			return err
		}
		updated, err = tx.UpdatePO(ctx, po, version)
		if err != nil {
			return err
		}
		updated.Items = po.Items
		var meta map[string]any
		if po.CancelReason != "" && action == ActionCancelled {
			meta = map[string]any{"reason": po.CancelReason}
		}
		return tx.RecordAudit(ctx, s.auditEntry(actorID, action, id, before, summary(updated), meta))
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.transitioned(updated, updated.Status)
	return updated, nil
}

func (s *Service) draftFromInput(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return PurchaseOrder{}, ErrEmptyItems
	}
	if err := shared.ValidateStruct(input); err != nil {
		return PurchaseOrder{}, err
	}
	for _, field := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"tax_amount", input.TaxAmount},
		{"shipping_cost", input.ShippingCost},
		{"discount_amount", input.DiscountAmount},
	} {
		if field.value.IsNegative() {
			return PurchaseOrder{}, ErrInvalidAmount.WithMessage("%s must not be negative", field.name)
		}
		if err := money.Representable(field.value); err != nil {
			return PurchaseOrder{}, ErrInvalidAmount.WithMessage("%s: %s", field.name, strings.TrimPrefix(err.Error(), "money: "))
		}
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.checkSupplier(ctx, input.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}
	po := PurchaseOrder{
		SupplierID:           input.SupplierID,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		PaymentDueDate:       input.PaymentDueDate,
		TaxAmount:            input.TaxAmount,
		ShippingCost:         input.ShippingCost,
		DiscountAmount:       input.DiscountAmount,
		Notes:                strings.TrimSpace(input.Notes),
		Terms:                strings.TrimSpace(input.Terms),
		Items:                items,
	}
	if err := po.Recalculate(); err != nil {
		return PurchaseOrder{}, mapMoneyError(err)
	}
	return po, nil
}

func buildItems(inputs []ItemInput) ([]Item, error) {
	items := make([]Item, 0, len(inputs))
	for idx, in := range inputs {
		n := idx + 1
		if !in.QuantityOrdered.IsPositive() {
			return nil, ErrInvalidQuantity.WithMessage("item %d: quantity_ordered must be greater than zero", n)
		}
		if err := money.Representable(in.QuantityOrdered); err != nil {
			return nil, ErrInvalidQuantity.WithMessage("item %d: quantity_ordered: %s", n, strings.TrimPrefix(err.Error(), "money: "))
		}
		if in.UnitCost.IsNegative() {
			return nil, ErrInvalidAmount.WithMessage("item %d: unit_cost must not be negative", n)
		}
		item := Item{
			LineNo:             n,
			InventoryItemID:    in.InventoryItemID,
			QuantityOrdered:    in.QuantityOrdered,
			UnitCost:           in.UnitCost,
			DiscountPercentage: in.DiscountPercentage,
			Notes:              strings.TrimSpace(in.Notes),
		}
		if in.DiscountPercentage == nil && in.DiscountAmount != nil {
			item.DiscountAmount = *in.DiscountAmount
		}
		if err := item.moneyLine().Validate(); err != nil {
			return nil, ErrInvalidAmount.WithMessage("item %d: %s", n, strings.TrimPrefix(err.Error(), "money: "))
		}
		item.QuantityRemaining = item.QuantityOrdered
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) checkSupplier(ctx context.Context, supplierID int64) error {
	if s.suppliers == nil {
		return errors.New("procurement: supplier registry not configured")
	}
	supplier, err := s.suppliers.Get(ctx, supplierID)
	if errors.Is(err, shared.ErrNotFound) {
		return ErrUnknownSupplier.WithMessage("supplier %d does not exist", supplierID)
	}
	if err != nil {
		return err
	}
	if !supplier.CanSupply() {
		return ErrSupplierBlocked.WithMessage("supplier %s is blocked", supplier.Code)
	}
	return nil
}

func (s *Service) lockPO(ctx context.Context, id int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lock, err := s.locker.Obtain(ctx, shared.PurchaseOrderLockKey(id), s.lockTTL)
	if errors.Is(err, shared.ErrLockNotObtained) {
		if s.metrics != nil {
			s.metrics.LockFailed()
		}
		return nil, ErrPOLocked
	}
	if err != nil {
		return nil, fmt.Errorf("procurement: obtain po lock: %w", err)
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Debug("po lock release failed", slog.Int64("po_id", id), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) transitioned(po PurchaseOrder, status Status) {
	if s.metrics != nil {
		s.metrics.POTransition(string(status))
	}
	s.logger.Info("purchase order updated",
		slog.Int64("po_id", po.ID),
		slog.String("po_number", po.Number),
		slog.String("status", string(status)),
		slog.Int64("version", po.Version))
}

func (s *Service) auditEntry(actorID int64, action string, poID int64, before, after any, meta map[string]any) shared.AuditLog {
	return shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.AuditEntityPurchaseOrder,
		EntityID: fmt.Sprintf("%d", poID),
		Before:   before,
		After:    after,
		Meta:     meta,
		At:       s.now().UTC(),
	}
}

// summary is the header snapshot written to audit entries.
func summary(po PurchaseOrder) map[string]any {
	return map[string]any{
		"po_number":      po.Number,
		"supplier_id":    po.SupplierID,
		"status":         po.Status,
		"payment_status": po.PaymentStatus,
		"subtotal":       po.Subtotal,
		"total":          po.Total,
		"items":          len(po.Items),
		"version":        po.Version,
	}
}

func mapMoneyError(err error) error {
	switch {
	case errors.Is(err, money.ErrNegativeTotal):
		return ErrNegativeTotal
	case errors.Is(err, money.ErrNegativeAmount), errors.Is(err, money.ErrPercentageRange),
		errors.Is(err, money.ErrTooPrecise), errors.Is(err, money.ErrOutOfRange):
		return ErrInvalidAmount.WithMessage("%s", strings.TrimPrefix(err.Error(), "money: "))
	default:
		return err
	}
}
