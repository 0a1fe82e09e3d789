package dao

import (
	"context"
	"database/sql"
	"fmt"

	"taskman/internal/domain"
)

const historyColumns = `SELECT id,entity_kind,entity_id,event,COALESCE(old_status,''),COALESCE(new_status,''),COALESCE(actor_id,0),COALESCE(note,''),created_at FROM status_history`

// HistoryDAO persists the append-only audit trail. Entries are never
// updated or deleted; the generic template does not apply here.
type HistoryDAO struct {
	db *sql.DB
}

func NewHistoryDAO(db *sql.DB) *HistoryDAO {
	return &HistoryDAO{db: db}
}

const historyInsert = `INSERT INTO status_history(entity_kind,entity_id,event,old_status,new_status,actor_id,note,created_at) VALUES (?,?,?,?,?,?,?,?)`

func (d *HistoryDAO) Append(ctx context.Context, e *domain.HistoryEntry) error {
	return d.append(ctx, d.db, e)
}

// AppendTx is Append inside a caller-owned transaction, so an entity and its
// new history land or roll back together.
func (d *HistoryDAO) AppendTx(ctx context.Context, tx *sql.Tx, e *domain.HistoryEntry) error {
	return d.append(ctx, tx, e)
}

func (d *HistoryDAO) append(ctx context.Context, ex execer, e *domain.HistoryEntry) error {
	res, err := ex.ExecContext(ctx, historyInsert,
		e.EntityKind, e.EntityID, e.Event,
		nullable(string(e.OldStatus)), nullable(string(e.NewStatus)),
		nullableID(e.ActorID), nullable(e.Note), formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("append history: read generated id: %w", err)
	}
	return nil
}

// ListByEntity returns an entity's full trail, oldest first.
func (d *HistoryDAO) ListByEntity(ctx context.Context, kind string, id int64) ([]domain.HistoryEntry, error) {
	rows, err := d.db.QueryContext(ctx, historyColumns+` WHERE entity_kind=? AND entity_id=? ORDER BY id ASC`, kind, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var old, new_, createdAt string
		if err := rows.Scan(&e.ID, &e.EntityKind, &e.EntityID, &e.Event, &old, &new_, &e.ActorID, &e.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.OldStatus = domain.Status(old)
		e.NewStatus = domain.Status(new_)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("status_history.created_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
