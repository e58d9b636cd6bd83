package types

import "time"

// Entity carries creation and update timestamps. Embed it in domain types.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped with t in UTC.
func NewEntity(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch sets UpdatedAt to t in UTC.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}
