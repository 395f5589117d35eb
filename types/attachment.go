package types

import (
	"time"

	"github.com/google/uuid"
)

// Attachment is a file uploaded to a card. The bytes live in object
// storage under ObjectKey; only metadata is persisted in the database.
type Attachment struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CardID      uuid.UUID `json:"card_id" db:"card_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	ObjectKey   string    `json:"-" db:"object_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
