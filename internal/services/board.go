package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// BoardRepository defines persistence operations for boards.
type BoardRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Board, error)
	GetDetail(ctx context.Context, id uuid.UUID) (types.BoardDetail, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Board, error)
	Create(ctx context.Context, board types.Board) (types.Board, error)
	Update(ctx context.Context, board types.Board) (types.Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BoardService encapsulates board use-cases. Every operation that
// names an existing board checks the caller owns it; failures come
// back as store.ErrNotFound so an outsider cannot tell a foreign
// board from a missing one.
type BoardService struct {
	repo BoardRepository
}

func NewBoardService(repo BoardRepository) *BoardService {
	return &BoardService{repo: repo}
}

// authorize resolves the board and checks actorID owns it. It is the
// single ownership gate every board-rooted operation goes through.
func (s *BoardService) authorize(ctx context.Context, actorID, boardID uuid.UUID) (types.Board, error) {
	board, err := s.repo.GetByID(ctx, boardID)
	if err != nil {
		return types.Board{}, err
	}
	if board.OwnerID != actorID {
		return types.Board{}, store.ErrNotFound
	}
	return board, nil
}

func (s *BoardService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Board, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *BoardService) Create(ctx context.Context, ownerID uuid.UUID, board types.Board) (types.Board, error) {
	board.OwnerID = ownerID
	return s.repo.Create(ctx, board)
}

func (s *BoardService) Get(ctx context.Context, actorID, id uuid.UUID) (types.Board, error) {
	return s.authorize(ctx, actorID, id)
}

// GetDetail returns the board with lists and cards nested in position
// order.
func (s *BoardService) GetDetail(ctx context.Context, actorID, id uuid.UUID) (types.BoardDetail, error) {
	if _, err := s.authorize(ctx, actorID, id); err != nil {
		return types.BoardDetail{}, err
	}
	return s.repo.GetDetail(ctx, id)
}

func (s *BoardService) Update(ctx context.Context, actorID uuid.UUID, board types.Board) (types.Board, error) {
	existing, err := s.authorize(ctx, actorID, board.ID)
	if err != nil {
		return types.Board{}, err
	}
	existing.Title = board.Title
	existing.Description = board.Description
	return s.repo.Update(ctx, existing)
}

func (s *BoardService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if _, err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
