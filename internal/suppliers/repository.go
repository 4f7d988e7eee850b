package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/purchasing/internal/platform/db"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Repository describes supplier persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
}

// TxRepository exposes transactional writes.
type TxRepository interface {
	NextCode(ctx context.Context) (string, error)
	GetForUpdate(ctx context.Context, id int64) (Supplier, error)
	Insert(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

const supplierColumns = `id, code, name, contact_name, email, phone, address, payment_terms, credit_limit, rating, status, created_at, updated_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args), len(args)))
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE ` + clause + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return getSupplier(ctx, r.pool, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id)
}

func (t *txRepo) NextCode(ctx context.Context) (string, error) {
	var seq int64
	if err := t.tx.QueryRow(ctx, `SELECT nextval('supplier_code_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return FormatCode(seq), nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Supplier, error) {
	return getSupplier(ctx, t.tx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 FOR UPDATE`, id)
}

func (t *txRepo) Insert(ctx context.Context, s Supplier) (Supplier, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO suppliers (code, name, contact_name, email, phone, address, payment_terms, credit_limit, rating, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+supplierColumns,
		s.Code, s.Name, s.ContactName, s.Email, s.Phone, s.Address, s.PaymentTerms, s.CreditLimit, s.Rating, string(s.Status))
	return scanSupplier(row)
}

func (t *txRepo) Update(ctx context.Context, s Supplier) (Supplier, error) {
	row := t.tx.QueryRow(ctx, `UPDATE suppliers SET name = $1, contact_name = $2, email = $3, phone = $4, address = $5,
payment_terms = $6, credit_limit = $7, rating = $8, status = $9, updated_at = NOW()
WHERE id = $10
RETURNING `+supplierColumns,
		s.Name, s.ContactName, s.Email, s.Phone, s.Address, s.PaymentTerms, s.CreditLimit, s.Rating, string(s.Status), s.ID)
	updated, err := scanSupplier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return updated, err
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(t.tx).Record(ctx, log)
}

func getSupplier(ctx context.Context, q querier, query string, id int64) (Supplier, error) {
	s, err := scanSupplier(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	var status string
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.ContactName, &s.Email, &s.Phone, &s.Address, &s.PaymentTerms,
		&s.CreditLimit, &s.Rating, &status, &s.CreatedAt, &s.UpdatedAt)
	s.Status = Status(status)
	return s, err
}

// FormatCode renders a supplier code from its sequence value.
func FormatCode(seq int64) string {
	return fmt.Sprintf("SUP-%06d", seq)
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "rating":
		return "rating " + dir + " NULLS LAST"
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
