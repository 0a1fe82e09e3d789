// Package dao maps domain entities to relational storage through one generic
// find/save/delete template. Each entity type plugs in a small set of hooks;
// nothing else differs between the concrete DAOs.
package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Entity is what the template needs from a persisted type: readable identity
// and a way to capture the store-generated one on first insert.
type Entity interface {
	EntityID() int64
	SetEntityID(int64)
}

// Scanner abstracts *sql.Row and *sql.Rows for the row-mapping hook.
type Scanner interface {
	Scan(dest ...any) error
}

// execer abstracts *sql.DB and *sql.Tx so every template operation can run
// inside or outside a caller-owned transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Hooks are the per-type mapping operations a concrete DAO supplies. The
// template implements everything else exactly once.
type Hooks[T Entity] struct {
	// Table is the storage-location identifier.
	Table string
	// SelectSQL is "SELECT <columns> FROM <table>" with no WHERE clause;
	// the template appends its own filters and ordering.
	SelectSQL string
	// InsertSQL and UpdateSQL are full statements; UpdateSQL ends with
	// "WHERE id=?".
	InsertSQL string
	UpdateSQL string
	// InsertArgs and UpdateArgs bind an entity to the statements above.
	// UpdateArgs must not include the trailing id.
	InsertArgs func(T) []any
	UpdateArgs func(T) []any
	// ScanRow maps one row from SelectSQL's column list to an entity.
	ScanRow func(Scanner) (T, error)
}

// DAO is the generic persistence template over one entity type.
type DAO[T Entity] struct {
	db    *sql.DB
	hooks Hooks[T]
}

func New[T Entity](db *sql.DB, hooks Hooks[T]) *DAO[T] {
	return &DAO[T]{db: db, hooks: hooks}
}

// DB exposes the underlying handle for callers that coordinate a
// transaction across the entity and its history.
func (d *DAO[T]) DB() *sql.DB { return d.db }

func (d *DAO[T]) FindByID(ctx context.Context, id int64) (T, error) {
	row := d.db.QueryRowContext(ctx, d.hooks.SelectSQL+` WHERE id=?`, id)
	e, err := d.hooks.ScanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("find %s %d: %w", d.hooks.Table, id, err)
	}
	return e, nil
}

// FindAll returns every row, newest first.
func (d *DAO[T]) FindAll(ctx context.Context) ([]T, error) {
	return d.query(ctx, d.hooks.SelectSQL+` ORDER BY created_at DESC, id DESC`)
}

func (d *DAO[T]) query(ctx context.Context, q string, args ...any) ([]T, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", d.hooks.Table, err)
	}
	defer rows.Close()
	var res []T
	for rows.Next() {
		e, err := d.hooks.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.hooks.Table, err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Save inserts when the identity is unset and updates otherwise. This is the
// template's only control-flow decision; concrete types never repeat it.
func (d *DAO[T]) Save(ctx context.Context, e T) error {
	return d.save(ctx, d.db, e)
}

// SaveTx is Save inside a caller-owned transaction.
func (d *DAO[T]) SaveTx(ctx context.Context, tx *sql.Tx, e T) error {
	return d.save(ctx, tx, e)
}

func (d *DAO[T]) save(ctx context.Context, ex execer, e T) error {
	if e.EntityID() == 0 {
		res, err := ex.ExecContext(ctx, d.hooks.InsertSQL, d.hooks.InsertArgs(e)...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", d.hooks.Table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert %s: read generated id: %w", d.hooks.Table, err)
		}
		e.SetEntityID(id)
		return nil
	}
	args := append(d.hooks.UpdateArgs(e), e.EntityID())
	res, err := ex.ExecContext(ctx, d.hooks.UpdateSQL, args...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", d.hooks.Table, e.EntityID(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DAO[T]) DeleteByID(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM `+d.hooks.Table+` WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", d.hooks.Table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DAO[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM `+d.hooks.Table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", d.hooks.Table, err)
	}
	return n, nil
}

// --- shared column helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	ts, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}
