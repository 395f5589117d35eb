package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/events"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// ErrDifferentBoard is returned when a card move names a target list
// on another board.
var ErrDifferentBoard = errors.New("target list belongs to a different board")

// CardRepository defines persistence operations for cards.
type CardRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Card, error)
	ListByList(ctx context.Context, listID uuid.UUID) ([]types.Card, error)
	Create(ctx context.Context, card types.Card) (types.Card, error)
	Update(ctx context.Context, card types.Card) (types.Card, error)
	Reorder(ctx context.Context, id uuid.UUID, newPosition int) (types.Card, error)
	Move(ctx context.Context, id, targetListID uuid.UUID, newPosition int) (types.Card, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CardService encapsulates card use-cases. The ownership chain runs
// card -> list -> board -> owner; any break reads as absent to the
// caller. Notification events go out after the mutation commits and
// never fail the operation.
type CardService struct {
	cards     CardRepository
	lists     ListRepository
	boards    BoardRepository
	publisher *events.Publisher
}

func NewCardService(cards CardRepository, lists ListRepository, boards BoardRepository, publisher *events.Publisher) *CardService {
	return &CardService{cards: cards, lists: lists, boards: boards, publisher: publisher}
}

// authorize loads a card and walks its ownership chain.
func (s *CardService) authorize(ctx context.Context, actorID, cardID uuid.UUID) (types.Card, types.Board, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return types.Card{}, types.Board{}, err
	}
	list, err := s.lists.GetByID(ctx, card.ListID)
	if err != nil {
		return types.Card{}, types.Board{}, err
	}
	board, err := s.boards.GetByID(ctx, list.BoardID)
	if err != nil {
		return types.Card{}, types.Board{}, err
	}
	if board.OwnerID != actorID {
		return types.Card{}, types.Board{}, store.ErrNotFound
	}
	return card, board, nil
}

// Create appends a new card at the end of the list's ordering.
func (s *CardService) Create(ctx context.Context, actorID, listID uuid.UUID, card types.Card) (types.Card, error) {
	list, err := s.lists.GetByID(ctx, listID)
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

	card.ListID = listID
	created, err := s.cards.Create(ctx, card)
	if err != nil {
		return types.Card{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeCardCreated,
		BoardID:    board.ID,
		ListID:     created.ListID,
		CardID:     created.ID,
		ActorID:    actorID,
		AssigneeID: created.AssignedToID,
	})
	return created, nil
}

func (s *CardService) Get(ctx context.Context, actorID, id uuid.UUID) (types.Card, error) {
	card, _, err := s.authorize(ctx, actorID, id)
	return card, err
}

func (s *CardService) Update(ctx context.Context, actorID uuid.UUID, card types.Card) (types.Card, error) {
	existing, board, err := s.authorize(ctx, actorID, card.ID)
	if err != nil {
		return types.Card{}, err
	}

	assigneeChanged := card.AssignedToID != nil &&
		(existing.AssignedToID == nil || *existing.AssignedToID != *card.AssignedToID)

	existing.Title = card.Title
	existing.Description = card.Description
	existing.AssignedToID = card.AssignedToID
	existing.DueDate = card.DueDate
	existing.Priority = card.Priority
	updated, err := s.cards.Update(ctx, existing)
	if err != nil {
		return types.Card{}, err
	}

	if assigneeChanged {
		s.publish(ctx, events.Event{
			Type:       events.TypeCardAssigned,
			BoardID:    board.ID,
			ListID:     updated.ListID,
			CardID:     updated.ID,
			ActorID:    actorID,
			AssigneeID: updated.AssignedToID,
		})
	}
	return updated, nil
}

// Reorder moves a card to newPosition within its current list.
func (s *CardService) Reorder(ctx context.Context, actorID, id uuid.UUID, newPosition int) (types.Card, error) {
	if _, _, err := s.authorize(ctx, actorID, id); err != nil {
		return types.Card{}, err
	}
	return s.cards.Reorder(ctx, id, newPosition)
}

// Move transfers a card to another list on the same board. Moving
// within the current list degenerates to a reorder.
func (s *CardService) Move(ctx context.Context, actorID, id, targetListID uuid.UUID, newPosition int) (types.Card, error) {
	card, board, err := s.authorize(ctx, actorID, id)
	if err != nil {
		return types.Card{}, err
	}

	target, err := s.lists.GetByID(ctx, targetListID)
	if err != nil {
		return types.Card{}, err
	}
	if target.BoardID != board.ID {
		// A list the caller cannot see must read as absent, not as a
		// cross-board rejection.
		targetBoard, err := s.boards.GetByID(ctx, target.BoardID)
		if err != nil {
			return types.Card{}, err
		}
		if targetBoard.OwnerID != actorID {
			return types.Card{}, store.ErrNotFound
		}
		return types.Card{}, ErrDifferentBoard
	}

	moved, err := s.cards.Move(ctx, id, targetListID, newPosition)
	if err != nil {
		return types.Card{}, err
	}

	if moved.ListID != card.ListID {
		s.publish(ctx, events.Event{
			Type:    events.TypeCardMoved,
			BoardID: board.ID,
			ListID:  moved.ListID,
			CardID:  moved.ID,
			ActorID: actorID,
		})
	}
	return moved, nil
}

// Delete removes the card and compacts its list's positions.
func (s *CardService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if _, _, err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}
	return s.cards.Delete(ctx, id)
}

func (s *CardService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("events: publish %s failed: %v", event.Type, err)
	}
}
