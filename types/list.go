package types

import (
	"time"

	"github.com/google/uuid"
)

// List is an ordered column of cards within a board.
// Position is a dense zero-based ordinal: the lists of one board
// always occupy positions 0..n-1 with no gaps or duplicates.
type List struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Position  int       `json:"position" db:"position"`
	BoardID   uuid.UUID `json:"board_id" db:"board_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ListDetail is a list with its cards nested in position order.
type ListDetail struct {
	List
	Cards []Card `json:"cards"`
}
