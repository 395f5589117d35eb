package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/storage"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// ErrStorageDisabled is returned when no object storage backend is
// configured.
var ErrStorageDisabled = errors.New("attachment storage is not configured")

// AttachmentRepository defines persistence operations for attachment
// metadata.
type AttachmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Attachment, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]types.Attachment, error)
	Create(ctx context.Context, att types.Attachment) (types.Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AttachmentService stores card attachments: bytes in object storage,
// metadata in the attachment repository. Access follows the card's
// ownership chain.
type AttachmentService struct {
	attachments AttachmentRepository
	cards       CardRepository
	lists       ListRepository
	boards      BoardRepository
	storage     *storage.Storage
}

func NewAttachmentService(
	attachments AttachmentRepository,
	cards CardRepository,
	lists ListRepository,
	boards BoardRepository,
	objectStorage *storage.Storage,
) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		cards:       cards,
		lists:       lists,
		boards:      boards,
		storage:     objectStorage,
	}
}

// authorizeCard walks the card's ownership chain for the actor.
func (s *AttachmentService) authorizeCard(ctx context.Context, actorID, cardID uuid.UUID) (types.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return types.Card{}, err
	}
	list, err := s.lists.GetByID(ctx, card.ListID)
	if err != nil {
		return types.Card{}, err
	}
	board, err := s.boards.GetByID(ctx, list.BoardID)
	if err != nil {
		return types.Card{}, err
	}
	if board.OwnerID != actorID {
		return types.Card{}, store.ErrNotFound
	}
	return card, nil
}

// Upload stores the file bytes and records the attachment. The object
// is removed again if the metadata insert fails.
func (s *AttachmentService) Upload(ctx context.Context, actorID, cardID uuid.UUID, filename, contentType string, size int64, r io.Reader) (types.Attachment, error) {
	if s.storage == nil {
		return types.Attachment{}, ErrStorageDisabled
	}
	if _, err := s.authorizeCard(ctx, actorID, cardID); err != nil {
		return types.Attachment{}, err
	}

	key := fmt.Sprintf("cards/%s/%s/%s", cardID, uuid.New(), filename)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Attachment{}, err
	}

	att, err := s.attachments.Create(ctx, types.Attachment{
		CardID:      cardID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		ObjectKey:   key,
	})
	if err != nil {
		if cleanupErr := s.storage.Delete(ctx, key); cleanupErr != nil {
			log.Printf("storage: orphaned object %s: %v", key, cleanupErr)
		}
		return types.Attachment{}, err
	}
	return att, nil
}

func (s *AttachmentService) ListByCard(ctx context.Context, actorID, cardID uuid.UUID) ([]types.Attachment, error) {
	if _, err := s.authorizeCard(ctx, actorID, cardID); err != nil {
		return nil, err
	}
	return s.attachments.ListByCard(ctx, cardID)
}

// Open returns the attachment metadata and a reader over its bytes.
// The caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, actorID, id uuid.UUID) (types.Attachment, io.ReadCloser, error) {
	if s.storage == nil {
		return types.Attachment{}, nil, ErrStorageDisabled
	}
	att, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	if _, err := s.authorizeCard(ctx, actorID, att.CardID); err != nil {
		return types.Attachment{}, nil, err
	}
	r, err := s.storage.Get(ctx, att.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return att, r, nil
}

// Delete removes the metadata row first, then the object bytes
// best-effort.
func (s *AttachmentService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	att, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authorizeCard(ctx, actorID, att.CardID); err != nil {
		return err
	}
	if err := s.attachments.Delete(ctx, id); err != nil {
		return err
	}
	if s.storage != nil {
		if err := s.storage.Delete(ctx, att.ObjectKey); err != nil {
			log.Printf("storage: orphaned object %s: %v", att.ObjectKey, err)
		}
	}
	return nil
}
