package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// ListRepository defines persistence operations for lists.
type ListRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.List, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]types.List, error)
	Create(ctx context.Context, list types.List) (types.List, error)
	Update(ctx context.Context, list types.List) (types.List, error)
	Reorder(ctx context.Context, id uuid.UUID, newPosition int) (types.List, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListService encapsulates list use-cases. Ownership resolves through
// the parent board; anything the caller does not own reads as absent.
type ListService struct {
	lists  ListRepository
	boards BoardRepository
}

func NewListService(lists ListRepository, boards BoardRepository) *ListService {
	return &ListService{lists: lists, boards: boards}
}

// authorize loads a list and checks the caller owns its board.
func (s *ListService) authorize(ctx context.Context, actorID, listID uuid.UUID) (types.List, error) {
	list, err := s.lists.GetByID(ctx, listID)
	if err != nil {
		return types.List{}, err
	}
	board, err := s.boards.GetByID(ctx, list.BoardID)
	if err != nil {
		return types.List{}, err
	}
	if board.OwnerID != actorID {
		return types.List{}, store.ErrNotFound
	}
	return list, nil
}

// Create appends a new list at the end of the board's ordering.
func (s *ListService) Create(ctx context.Context, actorID, boardID uuid.UUID, list types.List) (types.List, error) {
	board, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return types.List{}, err
	}
	if board.OwnerID != actorID {
		return types.List{}, store.ErrNotFound
	}
	list.BoardID = boardID
	return s.lists.Create(ctx, list)
}

func (s *ListService) Get(ctx context.Context, actorID, id uuid.UUID) (types.List, error) {
	return s.authorize(ctx, actorID, id)
}

func (s *ListService) Update(ctx context.Context, actorID uuid.UUID, list types.List) (types.List, error) {
	existing, err := s.authorize(ctx, actorID, list.ID)
	if err != nil {
		return types.List{}, err
	}
	existing.Title = list.Title
	return s.lists.Update(ctx, existing)
}

// Reorder moves a list to newPosition within its board. Out-of-range
// positions clamp; reordering to the current position succeeds without
// changing anything.
func (s *ListService) Reorder(ctx context.Context, actorID, id uuid.UUID, newPosition int) (types.List, error) {
	if _, err := s.authorize(ctx, actorID, id); err != nil {
		return types.List{}, err
	}
	return s.lists.Reorder(ctx, id, newPosition)
}

// Delete removes the list and its cards, closing the position gap in
// the board.
func (s *ListService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if _, err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}
	return s.lists.Delete(ctx, id)
}
