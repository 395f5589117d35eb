package types

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the optional urgency level of a card.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Card is a single task within a list. Position is a dense
// zero-based ordinal among the cards of its list.
type Card struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description,omitempty" db:"description"`
	Position     int        `json:"position" db:"position"`
	ListID       uuid.UUID  `json:"list_id" db:"list_id"`
	AssignedToID *uuid.UUID `json:"assigned_to_id,omitempty" db:"assigned_to_id"`
	DueDate      *time.Time `json:"due_date,omitempty" db:"due_date"`
	Priority     *Priority  `json:"priority,omitempty" db:"priority"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
