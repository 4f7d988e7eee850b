package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/purchasing/internal/platform/db"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ClaimKey(ctx context.Context, key string) error
	GetBalanceForUpdate(ctx context.Context, itemID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertCardEntry(ctx context.Context, card StockCardEntry) (int64, error)
	MarkApplied(ctx context.Context, receiptLineID int64, at time.Time) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const movementColumns = `id, receipt_line_id, receipt_id, po_id, item_id, quantity, unit_cost, movement_type, reason, reference, actor_id, created_at, applied_at`

// StageMovements inserts pending movements through tx. Callers use it to write the
// outbox in the same transaction as the goods receipt.
func StageMovements(ctx context.Context, tx pgx.Tx, movements []Movement) ([]Movement, error) {
	staged := make([]Movement, 0, len(movements))
	for _, m := range movements {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if m.Type == "" {
			m.Type = MovementTypeIn
		}
		if m.Reason == "" {
			m.Reason = ReasonPurchaseReceipt
		}
		row := tx.QueryRow(ctx, `INSERT INTO inventory_movements (receipt_line_id, receipt_id, po_id, item_id, quantity, unit_cost, movement_type, reason, reference, actor_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`,
			m.ReceiptLineID, m.ReceiptID, m.POID, m.ItemID, m.Quantity, m.UnitCost, string(m.Type), m.Reason, m.Reference, m.ActorID)
		if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("inventory: stage movement for receipt line %d: %w", m.ReceiptLineID, err)
		}
		staged = append(staged, m)
	}
	return staged, nil
}

// PendingMovements lists movements of a receipt not yet applied.
func (r *Repository) PendingMovements(ctx context.Context, receiptID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE receipt_id = $1 AND applied_at IS NULL ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.ReceiptLineID, &m.ReceiptID, &m.POID, &m.ItemID, &m.Quantity, &m.UnitCost,
			&kind, &m.Reason, &m.Reference, &m.ActorID, &m.CreatedAt, &m.AppliedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetBalance reads the balance of an item.
func (r *Repository) GetBalance(ctx context.Context, itemID int64) (Balance, error) {
	b, err := scanBalance(r.pool.QueryRow(ctx, `SELECT item_id, quantity, avg_cost, reorder_point, low_stock, updated_at
FROM inventory_balances WHERE item_id = $1`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrItemNotFound
	}
	return b, err
}

// GetStockCard lists stock card entries, newest first.
func (r *Repository) GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var from, to *time.Time
	if !filter.From.IsZero() {
		from = &filter.From
	}
	if !filter.To.IsZero() {
		to = &filter.To
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, movement_id, ref_key, reference, po_id, receipt_id, qty_in, qty_out,
balance_qty, unit_cost, balance_cost, note, posted_at
FROM inventory_stock_cards
WHERE item_id = $1
  AND ($2::timestamptz IS NULL OR posted_at >= $2)
  AND ($3::timestamptz IS NULL OR posted_at <= $3)
ORDER BY posted_at DESC, id DESC
LIMIT $4`, filter.ItemID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []StockCardEntry
	for rows.Next() {
		var e StockCardEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.MovementID, &e.RefKey, &e.Reference, &e.POID, &e.ReceiptID,
			&e.QtyIn, &e.QtyOut, &e.BalanceQty, &e.UnitCost, &e.BalanceCost, &e.Note, &e.PostedAt); err != nil {
			return nil, err
		}
		cards = append(cards, e)
	}
	return cards, rows.Err()
}

// RefreshLowStock recomputes the low stock flag of an item.
func (r *Repository) RefreshLowStock(ctx context.Context, itemID int64) (ReorderState, error) {
	var state ReorderState
	err := r.pool.QueryRow(ctx, `WITH prev AS (SELECT low_stock FROM inventory_balances WHERE item_id = $1)
UPDATE inventory_balances b SET low_stock = (b.quantity <= b.reorder_point AND b.reorder_point > 0)
FROM prev WHERE b.item_id = $1
RETURNING b.item_id, b.quantity, b.reorder_point, prev.low_stock, b.low_stock`, itemID).
		Scan(&state.ItemID, &state.Quantity, &state.ReorderPoint, &state.WasLow, &state.IsLow)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReorderState{}, ErrItemNotFound
	}
	return state, err
}

func (t *txRepo) ClaimKey(ctx context.Context, key string) error {
	return shared.NewIdempotencyStore(t.tx).CheckAndInsert(ctx, key, "inventory.purchase_receipt")
}

func (t *txRepo) GetBalanceForUpdate(ctx context.Context, itemID int64) (Balance, error) {
	b, err := scanBalance(t.tx.QueryRow(ctx, `SELECT item_id, quantity, avg_cost, reorder_point, low_stock, updated_at
FROM inventory_balances WHERE item_id = $1 FOR UPDATE`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{ItemID: itemID}, ErrBalanceNotFound
	}
	return b, err
}

func (t *txRepo) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_balances (item_id, quantity, avg_cost, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (item_id) DO UPDATE SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost, updated_at = NOW()`,
		b.ItemID, b.Quantity, b.AvgCost)
	return err
}

func (t *txRepo) InsertCardEntry(ctx context.Context, card StockCardEntry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_stock_cards (item_id, movement_id, ref_key, reference, po_id, receipt_id,
qty_in, qty_out, balance_qty, unit_cost, balance_cost, note, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`,
		card.ItemID, card.MovementID, card.RefKey, card.Reference, card.POID, card.ReceiptID,
		card.QtyIn, card.QtyOut, card.BalanceQty, card.UnitCost, card.BalanceCost, card.Note, card.PostedAt).Scan(&id)
	return id, err
}

func (t *txRepo) MarkApplied(ctx context.Context, receiptLineID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory_movements SET applied_at = $2 WHERE receipt_line_id = $1 AND applied_at IS NULL`, receiptLineID, at)
	return err
}

func scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	err := row.Scan(&b.ItemID, &b.Quantity, &b.AvgCost, &b.ReorderPoint, &b.LowStock, &b.UpdatedAt)
	return b, err
}
