package types

import (
	"time"

	"github.com/google/uuid"
)

// Board is the top-level container of the task hierarchy.
// A board belongs to exactly one owner, who is the only user
// allowed to read or mutate it and everything beneath it.
type Board struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BoardDetail is a board with its lists and their cards nested
// in position order.
type BoardDetail struct {
	Board
	Lists []ListDetail `json:"lists"`
}
