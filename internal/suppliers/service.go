package suppliers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Audit actions recorded by the registry.
const (
	ActionCreated       = "supplier.created"
	ActionUpdated       = "supplier.updated"
	ActionStatusChanged = "supplier.status_changed"
)

// Service manages the supplier registry.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns suppliers matching filters and the total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	norm := shared.ListFilters{Page: filters.Page, Limit: filters.Limit, SortDir: filters.SortDir}.Normalize()
	filters.Page, filters.Limit, filters.SortDir = norm.Page, norm.Limit, norm.SortDir
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.List(ctx, filters)
}

// Get loads a supplier.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Create registers a supplier with a generated code.
func (s *Service) Create(ctx context.Context, input Input, actorID int64) (Supplier, error) {
	if err := s.validate(&input); err != nil {
		return Supplier{}, err
	}
	if input.Status == "" {
		input.Status = StatusActive
	}
	var created Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.NextCode(ctx)
		if err != nil {
			return fmt.Errorf("suppliers: next code: %w", err)
		}
		created, err = tx.Insert(ctx, apply(Supplier{Code: code}, input))
		if err != nil {
			return fmt.Errorf("suppliers: insert: %w", err)
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   ActionCreated,
			Entity:   shared.AuditEntitySupplier,
			EntityID: fmt.Sprintf("%d", created.ID),
			After:    created,
		})
	})
	if err != nil {
		return Supplier{}, err
	}
	s.logger.Info("supplier created", slog.Int64("supplier_id", created.ID), slog.String("code", created.Code))
	return created, nil
}

// Update replaces the editable fields of a supplier.
func (s *Service) Update(ctx context.Context, id int64, input Input, actorID int64) (Supplier, error) {
	if err := s.validate(&input); err != nil {
		return Supplier{}, err
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := apply(before, input)
		if input.Status == "" {
			next.Status = before.Status
		}
		updated, err = tx.Update(ctx, next)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   ActionUpdated,
			Entity:   shared.AuditEntitySupplier,
			EntityID: fmt.Sprintf("%d", id),
			Before:   before,
			After:    updated,
		})
	})
	if err != nil {
		return Supplier{}, err
	}
	return updated, nil
}

// SetStatus changes the status. Existing purchase orders are unaffected.
func (s *Service) SetStatus(ctx context.Context, id int64, input StatusInput, actorID int64) (Supplier, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Supplier{}, err
	}
	var updated Supplier
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if before.Status == input.Status {
			updated = before
			return nil
		}
		next := before
		next.Status = input.Status
		updated, err = tx.Update(ctx, next)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   ActionStatusChanged,
			Entity:   shared.AuditEntitySupplier,
			EntityID: fmt.Sprintf("%d", id),
			Before:   map[string]any{"status": before.Status},
			After:    map[string]any{"status": updated.Status},
			Meta:     map[string]any{"reason": strings.TrimSpace(input.Reason)},
		})
	})
	if err != nil {
		return Supplier{}, err
	}
	if input.Status == StatusBlocked {
		s.logger.Warn("supplier blocked", slog.Int64("supplier_id", id), slog.Int64("actor_id", actorID))
	}
	return updated, nil
}

func apply(s Supplier, in Input) Supplier {
	s.Name = in.Name
	s.ContactName = strings.TrimSpace(in.ContactName)
	s.Email = in.Email
	s.Phone = strings.TrimSpace(in.Phone)
	s.Address = strings.TrimSpace(in.Address)
	s.PaymentTerms = in.PaymentTerms
	s.CreditLimit = in.CreditLimit
	s.Rating = in.Rating
	if in.Status != "" {
		s.Status = in.Status
	}
	return s
}
