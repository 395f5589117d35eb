package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/types"
)

// BoardRepository handles persistence for boards.
type BoardRepository struct {
	db *sql.DB
}

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

const boardColumns = `id, title, description, owner_id, created_at, updated_at`

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Board, error) {
	const query = `
		SELECT ` + boardColumns + `
		FROM boards
		WHERE id = $1`
	var board types.Board
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&board.ID,
		&board.Title,
		&board.Description,
		&board.OwnerID,
		&board.CreatedAt,
		&board.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Board{}, ErrNotFound
		}
		return types.Board{}, err
	}
	return board, nil
}

func (r *BoardRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Board, error) {
	const query = `
		SELECT ` + boardColumns + `
		FROM boards
		WHERE owner_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	boards := make([]types.Board, 0)
	for rows.Next() {
		var board types.Board
		if err := rows.Scan(
			&board.ID,
			&board.Title,
			&board.Description,
			&board.OwnerID,
			&board.CreatedAt,
			&board.UpdatedAt,
		); err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

// GetDetail loads a board with its lists and their cards nested in
// position order. This is the single composite read the API exposes.
func (r *BoardRepository) GetDetail(ctx context.Context, id uuid.UUID) (types.BoardDetail, error) {
	board, err := r.GetByID(ctx, id)
	if err != nil {
		return types.BoardDetail{}, err
	}

	const listQuery = `
		SELECT id, title, position, board_id, created_at, updated_at
		FROM lists
		WHERE board_id = $1
		ORDER BY position`
	rows, err := r.db.QueryContext(ctx, listQuery, id)
	if err != nil {
		return types.BoardDetail{}, err
	}
	defer rows.Close()

	detail := types.BoardDetail{Board: board, Lists: make([]types.ListDetail, 0)}
	listIndex := make(map[uuid.UUID]int)
	for rows.Next() {
		var list types.List
		if err := rows.Scan(
			&list.ID,
			&list.Title,
			&list.Position,
			&list.BoardID,
			&list.CreatedAt,
			&list.UpdatedAt,
		); err != nil {
			return types.BoardDetail{}, err
		}
		listIndex[list.ID] = len(detail.Lists)
		detail.Lists = append(detail.Lists, types.ListDetail{List: list, Cards: make([]types.Card, 0)})
	}
	if err := rows.Err(); err != nil {
		return types.BoardDetail{}, err
	}

	const cardQuery = `
		SELECT c.id, c.title, c.description, c.position, c.list_id, c.assigned_to_id, c.due_date, c.priority, c.created_at, c.updated_at
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id = $1
		ORDER BY c.list_id, c.position`
	cardRows, err := r.db.QueryContext(ctx, cardQuery, id)
	if err != nil {
		return types.BoardDetail{}, err
	}
	defer cardRows.Close()

	for cardRows.Next() {
		card, err := scanCardRow(cardRows)
		if err != nil {
			return types.BoardDetail{}, err
		}
		if idx, ok := listIndex[card.ListID]; ok {
			detail.Lists[idx].Cards = append(detail.Lists[idx].Cards, card)
		}
	}
	if err := cardRows.Err(); err != nil {
		return types.BoardDetail{}, err
	}

	return detail, nil
}

func (r *BoardRepository) Create(ctx context.Context, board types.Board) (types.Board, error) {
	now := time.Now()
	board.ID = uuid.New()
	board.CreatedAt = now
	board.UpdatedAt = now

	const query = `
		INSERT INTO boards (id, title, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		board.ID,
		board.Title,
		board.Description,
		board.OwnerID,
		board.CreatedAt,
		board.UpdatedAt,
	); err != nil {
		return types.Board{}, err
	}
	return board, nil
}

func (r *BoardRepository) Update(ctx context.Context, board types.Board) (types.Board, error) {
	board.UpdatedAt = time.Now()

	const query = `
		UPDATE boards
		SET title = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, board.Title, board.Description, board.UpdatedAt, board.ID)
	if err != nil {
		return types.Board{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Board{}, err
	}
	if affected == 0 {
		return types.Board{}, ErrNotFound
	}
	return board, nil
}

// Delete removes a board and all of its lists and cards in one
// transaction. Children go first so the cascade is never partial.
func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The board lock keeps concurrent list creates and reorders out of
	// the cascade.
	if err := lockBoard(ctx, tx, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM attachments
		WHERE card_id IN (
			SELECT c.id FROM cards c
			JOIN lists l ON l.id = c.list_id
			WHERE l.board_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cards
		WHERE list_id IN (SELECT id FROM lists WHERE board_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE board_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
