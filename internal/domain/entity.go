package domain

import "time"

// Entity carries the identity and timestamps shared by every persisted type.
// ID is zero until the first save; the persistence layer assigns it once and
// never rewrites it.
type Entity struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newEntity(now time.Time) Entity {
	return Entity{CreatedAt: now, UpdatedAt: now}
}

func (e *Entity) EntityID() int64 { return e.ID }

// SetEntityID records the store-assigned identity. Only the persistence
// layer calls this, and only on the insert path.
func (e *Entity) SetEntityID(id int64) { e.ID = id }

func (e *Entity) IsPersisted() bool { return e.ID != 0 }

// Touch advances the last-update timestamp. Every mutating operation on a
// concrete entity calls it.
func (e *Entity) Touch() { e.UpdatedAt = time.Now().UTC() }
