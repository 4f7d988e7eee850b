package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Before   any
	After    any
	Meta     map[string]any
	At       time.Time
}

// Audit entity names.
const (
	AuditEntityPurchaseOrder = "purchase_order"
	AuditEntityGoodsReceipt  = "goods_receipt"
	AuditEntitySupplier      = "supplier"
	AuditEntityInventoryItem = "inventory_item"
)

// AuditLogger appends records into audit_logs. Rows are never updated or deleted.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger writing through db, which may be a transaction.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	beforeJSON, err := snapshot(log.Before)
	if err != nil {
		return err
	}
	afterJSON, err := snapshot(log.After)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, before_state, after_state, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		log.ActorID, log.Action, log.Entity, log.EntityID, beforeJSON, afterJSON, metaJSON, at)
	return err
}

func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
