package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository membaca audit_logs langsung dari PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository membuat repository audit.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Window mengambil satu jendela timeline, terbaru lebih dulu.
func (r *PgRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := filterClause(filters)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		selectTimeline, where, len(args)-1, len(args))
	return r.query(ctx, query, args...)
}

// All mengambil seluruh baris yang cocok tanpa paging.
func (r *PgRepository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := filterClause(filters)
	return r.query(ctx, selectTimeline+` WHERE `+where+` ORDER BY occurred_at DESC, id DESC`, args...)
}

const selectTimeline = `SELECT id, occurred_at, actor_id, action, entity, entity_id, before_state, after_state, meta FROM audit_logs`

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var out TimelineRow
		var before, after, meta []byte
		err := row.Scan(&out.ID, &out.At, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &before, &after, &meta)
		out.Before, out.After, out.Meta = before, after, meta
		return out, err
	})
}

func filterClause(filters TimelineFilters) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To)
	}
	if filters.ActorID > 0 {
		add("actor_id = $%d", filters.ActorID)
	}
	if filters.Entity != "" {
		add("entity = $%d", filters.Entity)
	}
	if filters.EntityID != "" {
		add("entity_id = $%d", filters.EntityID)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	return strings.Join(clauses, " AND "), args
}
