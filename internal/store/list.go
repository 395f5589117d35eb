package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/types"
)

// ListRepository handles persistence for lists, including the dense
// position sequence the lists of one board share. Every mutation that
// touches positions runs in a transaction that takes the board row
// lock first, so mutations of one board's ordering serialize even
// under READ COMMITTED; a deferred unique constraint on
// (board_id, position) backstops the invariant.
type ListRepository struct {
	db *sql.DB
}

func NewListRepository(db *sql.DB) *ListRepository {
	return &ListRepository{db: db}
}

const listColumns = `id, title, position, board_id, created_at, updated_at`

// lockBoard takes the board row lock that serializes every mutation of
// the board's list ordering.
func lockBoard(ctx context.Context, tx *sql.Tx, boardID uuid.UUID) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM boards WHERE id = $1 FOR UPDATE`, boardID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanList(row rowScanner) (types.List, error) {
	var list types.List
	err := row.Scan(
		&list.ID,
		&list.Title,
		&list.Position,
		&list.BoardID,
		&list.CreatedAt,
		&list.UpdatedAt,
	)
	if err != nil {
		return types.List{}, err
	}
	return list, nil
}

func (r *ListRepository) GetByID(ctx context.Context, id uuid.UUID) (types.List, error) {
	const query = `
		SELECT ` + listColumns + `
		FROM lists
		WHERE id = $1`
	list, err := scanList(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.List{}, ErrNotFound
		}
		return types.List{}, err
	}
	return list, nil
}

func (r *ListRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]types.List, error) {
	const query = `
		SELECT ` + listColumns + `
		FROM lists
		WHERE board_id = $1
		ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := make([]types.List, 0)
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lists, nil
}

// Create appends a list at the end of its board's ordering. The count
// is read under the board lock, so two concurrent creates on the same
// board cannot both claim the same slot.
func (r *ListRepository) Create(ctx context.Context, list types.List) (types.List, error) {
	now := time.Now()
	list.ID = uuid.New()
	list.CreatedAt = now
	list.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.List{}, err
	}
	defer tx.Rollback()

	if err := lockBoard(ctx, tx, list.BoardID); err != nil {
		return types.List{}, err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lists WHERE board_id = $1`, list.BoardID).Scan(&list.Position); err != nil {
		return types.List{}, err
	}

	const query = `
		INSERT INTO lists (id, title, position, board_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(
		ctx,
		query,
		list.ID,
		list.Title,
		list.Position,
		list.BoardID,
		list.CreatedAt,
		list.UpdatedAt,
	); err != nil {
		return types.List{}, err
	}
	return list, tx.Commit()
}

func (r *ListRepository) Update(ctx context.Context, list types.List) (types.List, error) {
	list.UpdatedAt = time.Now()

	const query = `
		UPDATE lists
		SET title = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, list.Title, list.UpdatedAt, list.ID)
	if err != nil {
		return types.List{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.List{}, err
	}
	if affected == 0 {
		return types.List{}, ErrNotFound
	}
	return list, nil
}

// Reorder moves a list to newPosition within its board, shifting the
// lists between the old and new slots by one. newPosition is clamped
// to [0, n-1]; moving to the current position is a successful no-op.
func (r *ListRepository) Reorder(ctx context.Context, id uuid.UUID, newPosition int) (types.List, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.List{}, err
	}
	defer tx.Rollback()

	var boardID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT board_id FROM lists WHERE id = $1`, id).Scan(&boardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.List{}, ErrNotFound
		}
		return types.List{}, err
	}
	if err := lockBoard(ctx, tx, boardID); err != nil {
		return types.List{}, err
	}

	// Re-read under the board lock; the position may have shifted
	// while the lock was being acquired.
	list, err := scanList(tx.QueryRowContext(ctx, `
		SELECT `+listColumns+`
		FROM lists
		WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.List{}, ErrNotFound
		}
		return types.List{}, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lists WHERE board_id = $1`, list.BoardID).Scan(&count); err != nil {
		return types.List{}, err
	}

	newPosition = clampPosition(newPosition, count-1)
	if newPosition == list.Position {
		return list, tx.Commit()
	}

	if newPosition < list.Position {
		_, err = tx.ExecContext(ctx, `
			UPDATE lists
			SET position = position + 1
			WHERE board_id = $1 AND position >= $2 AND position < $3`,
			list.BoardID, newPosition, list.Position)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE lists
			SET position = position - 1
			WHERE board_id = $1 AND position > $2 AND position <= $3`,
			list.BoardID, list.Position, newPosition)
	}
	if err != nil {
		return types.List{}, err
	}

	list.Position = newPosition
	list.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE lists
		SET position = $1, updated_at = $2
		WHERE id = $3`, list.Position, list.UpdatedAt, list.ID); err != nil {
		return types.List{}, err
	}

	return list, tx.Commit()
}

// Delete removes a list with its cards and closes the gap it leaves in
// the board's ordering, all under the board lock.
func (r *ListRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var boardID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT board_id FROM lists WHERE id = $1`, id).Scan(&boardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := lockBoard(ctx, tx, boardID); err != nil {
		return err
	}

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT position FROM lists WHERE id = $1 FOR UPDATE`, id).Scan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM attachments
		WHERE card_id IN (SELECT id FROM cards WHERE list_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE list_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE lists
		SET position = position - 1
		WHERE board_id = $1 AND position > $2`, boardID, position); err != nil {
		return err
	}

	return tx.Commit()
}

// clampPosition bounds a requested position to [0, max]. A negative
// max (empty sibling group) clamps to zero.
func clampPosition(position, max int) int {
	if position < 0 {
		return 0
	}
	if max < 0 {
		return 0
	}
	if position > max {
		return max
	}
	return position
}
