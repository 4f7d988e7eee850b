package procurement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/platform/db"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const poColumns = `id, po_number, supplier_id, order_date, expected_delivery_date, payment_due_date, status, payment_status,
tax_amount, shipping_cost, discount_amount, subtotal, total, notes, terms, cancel_reason, created_by,
approved_by, approved_at, sent_by, sent_at, cancelled_by, cancelled_at, version, created_at, updated_at`

// GetPO returns the purchase order with items and received totals.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return loadPO(ctx, r.pool, id, false)
}

// ListPOs returns purchase order headers.
func (r *Repository) ListPOs(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.SupplierID > 0 {
		args = append(args, filters.SupplierID)
		where = append(where, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = append(where, fmt.Sprintf("po_number ILIKE $%d", len(args)))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		where = append(where, fmt.Sprintf("order_date >= $%d", len(args)))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		where = append(where, fmt.Sprintf("order_date < $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE ` + clause + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, po)
	}
	return out, total, rows.Err()
}

// ListReceipts returns receipts of a purchase order with lines, oldest first.
func (r *Repository) ListReceipts(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, grn_number, po_id, inspection_status, inspection_overridden, quality_notes,
general_notes, received_by, received_at
FROM goods_receipts WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	var receipts []GoodsReceipt
	index := map[int64]int{}
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[rc.ID] = len(receipts)
		receipts = append(receipts, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	lineRows, err := r.pool.Query(ctx, `SELECT l.id, l.receipt_id, l.po_item_id, l.quantity_received, l.quality_status, l.notes
FROM goods_receipt_lines l JOIN goods_receipts g ON g.id = l.receipt_id
WHERE g.po_id = $1 ORDER BY l.id`, poID)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		line, err := scanReceiptLine(lineRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[line.ReceiptID]; ok {
			receipts[i].Lines = append(receipts[i].Lines, line)
		}
	}
	return receipts, lineRows.Err()
}

// GetReceipt loads a receipt header scoped to its purchase order.
func (r *Repository) GetReceipt(ctx context.Context, poID, receiptID int64) (GoodsReceipt, error) {
	rc, err := scanReceipt(r.pool.QueryRow(ctx, `SELECT id, grn_number, po_id, inspection_status, inspection_overridden, quality_notes,
general_notes, received_by, received_at
FROM goods_receipts WHERE id = $1 AND po_id = $2`, receiptID, poID))
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, ErrReceiptNotFound
	}
	return rc, err
}

func (t *txRepo) NextPONumber(ctx context.Context, at time.Time) (string, error) {
	return nextNumber(ctx, t.tx, "purchase_order_number_seq", "PO", at)
}

func (t *txRepo) NextGRNNumber(ctx context.Context, at time.Time) (string, error) {
	return nextNumber(ctx, t.tx, "goods_receipt_number_seq", "GRN", at)
}

func (t *txRepo) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return loadPO(ctx, t.tx, id, true)
}

func (t *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (po_number, supplier_id, order_date, expected_delivery_date, payment_due_date,
status, payment_status, tax_amount, shipping_cost, discount_amount, subtotal, total, notes, terms, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING `+poColumns,
		po.Number, po.SupplierID, po.OrderDate, po.ExpectedDeliveryDate, po.PaymentDueDate,
		string(po.Status), string(po.PaymentStatus), po.TaxAmount, po.ShippingCost, po.DiscountAmount,
		po.Subtotal, po.Total, po.Notes, po.Terms, po.CreatedBy)
	return scanPO(row)
}

func (t *txRepo) ReplaceItems(ctx context.Context, poID int64, items []Item) ([]Item, error) {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE po_id = $1`, poID); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		item.POID = poID
		err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (po_id, line_no, inventory_item_id, quantity_ordered, unit_cost,
discount_percentage, discount_amount, line_total, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
			poID, item.LineNo, item.InventoryItemID, item.QuantityOrdered, item.UnitCost,
			item.DiscountPercentage, item.DiscountAmount, item.LineTotal, item.Notes).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (t *txRepo) UpdatePO(ctx context.Context, po PurchaseOrder, expectedVersion int64) (PurchaseOrder, error) {
	row := t.tx.QueryRow(ctx, `UPDATE purchase_orders SET supplier_id = $1, expected_delivery_date = $2, payment_due_date = $3,
status = $4, payment_status = $5, tax_amount = $6, shipping_cost = $7, discount_amount = $8, subtotal = $9, total = $10,
notes = $11, terms = $12, cancel_reason = $13, approved_by = $14, approved_at = $15, sent_by = $16, sent_at = $17,
cancelled_by = $18, cancelled_at = $19, version = version + 1, updated_at = NOW()
WHERE id = $20 AND version = $21
RETURNING `+poColumns,
		po.SupplierID, po.ExpectedDeliveryDate, po.PaymentDueDate, string(po.Status), string(po.PaymentStatus),
		po.TaxAmount, po.ShippingCost, po.DiscountAmount, po.Subtotal, po.Total, po.Notes, po.Terms, po.CancelReason,
		po.ApprovedBy, po.ApprovedAt, po.SentBy, po.SentAt, po.CancelledBy, po.CancelledAt, po.ID, expectedVersion)
	updated, err := scanPO(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrVersionConflict
	}
	return updated, err
}

func (t *txRepo) DeletePO(ctx context.Context, id int64, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1 AND version = $2 AND status = 'draft'`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (t *txRepo) InsertReceipt(ctx context.Context, rc GoodsReceipt) (GoodsReceipt, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO goods_receipts (grn_number, po_id, inspection_status, inspection_overridden, quality_notes,
general_notes, received_by, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		rc.Number, rc.POID, string(rc.InspectionStatus), rc.InspectionOverridden, rc.QualityNotes,
		rc.GeneralNotes, rc.ReceivedBy, rc.ReceivedAt).Scan(&rc.ID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	for i := range rc.Lines {
		line := &rc.Lines[i]
		line.ReceiptID = rc.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO goods_receipt_lines (receipt_id, po_item_id, quantity_received, quality_status, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
			rc.ID, line.POItemID, line.QuantityReceived, string(line.QualityStatus), line.Notes).Scan(&line.ID)
		if err != nil {
			return GoodsReceipt{}, err
		}
	}
	return rc, nil
}

func (t *txRepo) StageMovements(ctx context.Context, movements []inventory.Movement) ([]inventory.Movement, error) {
	return inventory.StageMovements(ctx, t.tx, movements)
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(t.tx).Record(ctx, log)
}

func loadPO(ctx context.Context, q querier, id int64, forUpdate bool) (PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	po, err := scanPO(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	rows, err := q.Query(ctx, `SELECT i.id, i.po_id, i.line_no, i.inventory_item_id, i.quantity_ordered, i.unit_cost,
i.discount_percentage, i.discount_amount, i.line_total, i.notes,
COALESCE(SUM(l.quantity_received) FILTER (WHERE l.quality_status = 'good'), 0),
COALESCE(SUM(l.quantity_received) FILTER (WHERE l.quality_status = 'damaged'), 0),
COALESCE(SUM(l.quantity_received) FILTER (WHERE l.quality_status = 'rejected'), 0)
FROM purchase_order_items i
LEFT JOIN goods_receipt_lines l ON l.po_item_id = i.id
WHERE i.po_id = $1
GROUP BY i.id
ORDER BY i.line_no, i.id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.POID, &item.LineNo, &item.InventoryItemID, &item.QuantityOrdered, &item.UnitCost,
			&item.DiscountPercentage, &item.DiscountAmount, &item.LineTotal, &item.Notes,
			&item.QuantityGood, &item.QuantityDamaged, &item.QuantityRejected); err != nil {
			return PurchaseOrder{}, err
		}
		item.QuantityRemaining = item.Remaining()
		po.Items = append(po.Items, item)
	}
	return po, rows.Err()
}

func nextNumber(ctx context.Context, tx pgx.Tx, sequence, prefix string, at time.Time) (string, error) {
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('`+sequence+`')`).Scan(&seq); err != nil {
		return "", err
	}
	return FormatNumber(prefix, at, seq), nil
}

// FormatNumber renders document numbers such as PO-2026-000042.
func FormatNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, at.Year(), seq)
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status, payment string
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.OrderDate, &po.ExpectedDeliveryDate, &po.PaymentDueDate,
		&status, &payment, &po.TaxAmount, &po.ShippingCost, &po.DiscountAmount, &po.Subtotal, &po.Total,
		&po.Notes, &po.Terms, &po.CancelReason, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt, &po.SentBy, &po.SentAt,
		&po.CancelledBy, &po.CancelledAt, &po.Version, &po.CreatedAt, &po.UpdatedAt)
	po.Status = Status(status)
	po.PaymentStatus = PaymentStatus(payment)
	return po, err
}

func scanReceipt(row pgx.Row) (GoodsReceipt, error) {
	var rc GoodsReceipt
	var inspection string
	err := row.Scan(&rc.ID, &rc.Number, &rc.POID, &inspection, &rc.InspectionOverridden, &rc.QualityNotes,
		&rc.GeneralNotes, &rc.ReceivedBy, &rc.ReceivedAt)
	rc.InspectionStatus = InspectionStatus(inspection)
	return rc, err
}

func scanReceiptLine(row pgx.Row) (ReceiptLine, error) {
	var line ReceiptLine
	var quality string
	err := row.Scan(&line.ID, &line.ReceiptID, &line.POItemID, &line.QuantityReceived, &quality, &line.Notes)
	line.QualityStatus = QualityStatus(quality)
	return line, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "po_number":
		return "po_number " + dir
	case "total":
		return "total " + dir + ", id " + dir
	case "status":
		return "status " + dir + ", id " + dir
	default:
		return "order_date " + dir + ", id " + dir
	}
}
