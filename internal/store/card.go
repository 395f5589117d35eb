package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/types"
)

// CardRepository handles persistence for cards, including the dense
// position sequence the cards of one list share. Every mutation that
// touches positions runs in a transaction that locks the owning list
// row(s) first, so mutations of one list's ordering serialize even
// under READ COMMITTED; a deferred unique constraint on
// (list_id, position) backstops the invariant.
type CardRepository struct {
	db *sql.DB
}

// A card can migrate to another list between reading its list_id and
// taking the list lock. Mutations re-check after locking and retry
// with fresh locks, bounded to avoid spinning.
const lockRetryLimit = 5

var errListChanged = errors.New("card changed lists while locking")

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, title, description, position, list_id, assigned_to_id, due_date, priority, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCardRow(row rowScanner) (types.Card, error) {
	var card types.Card
	var assignedTo uuid.NullUUID
	var dueDate sql.NullTime
	var priority sql.NullString
	err := row.Scan(
		&card.ID,
		&card.Title,
		&card.Description,
		&card.Position,
		&card.ListID,
		&assignedTo,
		&dueDate,
		&priority,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return types.Card{}, err
	}
	if assignedTo.Valid {
		card.AssignedToID = &assignedTo.UUID
	}
	if dueDate.Valid {
		card.DueDate = &dueDate.Time
	}
	if priority.Valid {
		p := types.Priority(priority.String)
		card.Priority = &p
	}
	return card, nil
}

func nullPriority(p *types.Priority) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Card, error) {
	const query = `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE id = $1`
	card, err := scanCardRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Card{}, ErrNotFound
		}
		return types.Card{}, err
	}
	return card, nil
}

func (r *CardRepository) ListByList(ctx context.Context, listID uuid.UUID) ([]types.Card, error) {
	const query = `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE list_id = $1
		ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]types.Card, 0)
	for rows.Next() {
		card, err := scanCardRow(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

// Create appends a card at the end of its list's ordering. The count
// is read under the list lock, so two concurrent creates on the same
// list cannot both claim the same slot.
func (r *CardRepository) Create(ctx context.Context, card types.Card) (types.Card, error) {
	now := time.Now()
	card.ID = uuid.New()
	card.CreatedAt = now
	card.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Card{}, err
	}
	defer tx.Rollback()

	if err := lockList(ctx, tx, card.ListID); err != nil {
		return types.Card{}, err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE list_id = $1`, card.ListID).Scan(&card.Position); err != nil {
		return types.Card{}, err
	}

	const query = `
		INSERT INTO cards (id, title, description, position, list_id, assigned_to_id, due_date, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.ExecContext(
		ctx,
		query,
		card.ID,
		card.Title,
		card.Description,
		card.Position,
		card.ListID,
		nullUUID(card.AssignedToID),
		nullTime(card.DueDate),
		nullPriority(card.Priority),
		card.CreatedAt,
		card.UpdatedAt,
	); err != nil {
		return types.Card{}, err
	}
	return card, tx.Commit()
}

// Update rewrites a card's fields. Position and list are untouched:
// those change only through Reorder and Move.
func (r *CardRepository) Update(ctx context.Context, card types.Card) (types.Card, error) {
	card.UpdatedAt = time.Now()

	const query = `
		UPDATE cards
		SET title = $1,
			description = $2,
			assigned_to_id = $3,
			due_date = $4,
			priority = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		card.Title,
		card.Description,
		nullUUID(card.AssignedToID),
		nullTime(card.DueDate),
		nullPriority(card.Priority),
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		return types.Card{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Card{}, err
	}
	if affected == 0 {
		return types.Card{}, ErrNotFound
	}
	return card, nil
}

// Reorder moves a card to newPosition within its current list.
func (r *CardRepository) Reorder(ctx context.Context, id uuid.UUID, newPosition int) (types.Card, error) {
	for attempt := 0; attempt < lockRetryLimit; attempt++ {
		card, err := r.reorderOnce(ctx, id, newPosition)
		if errors.Is(err, errListChanged) {
			continue
		}
		return card, err
	}
	return types.Card{}, errListChanged
}

func (r *CardRepository) reorderOnce(ctx context.Context, id uuid.UUID, newPosition int) (types.Card, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Card{}, err
	}
	defer tx.Rollback()

	listID, err := cardListID(ctx, tx, id)
	if err != nil {
		return types.Card{}, err
	}
	if err := lockList(ctx, tx, listID); err != nil {
		return types.Card{}, err
	}

	card, err := cardInTx(ctx, tx, id)
	if err != nil {
		return types.Card{}, err
	}
	if card.ListID != listID {
		return types.Card{}, errListChanged
	}

	card, err = reorderInTx(ctx, tx, card, newPosition)
	if err != nil {
		return types.Card{}, err
	}
	return card, tx.Commit()
}

// Move transfers a card to targetListID at newPosition. The gap left
// in the source list closes and the target list opens a slot, both in
// the same transaction holding both list locks. Moving within the
// current list degenerates to a reorder.
func (r *CardRepository) Move(ctx context.Context, id, targetListID uuid.UUID, newPosition int) (types.Card, error) {
	for attempt := 0; attempt < lockRetryLimit; attempt++ {
		card, err := r.moveOnce(ctx, id, targetListID, newPosition)
		if errors.Is(err, errListChanged) {
			continue
		}
		return card, err
	}
	return types.Card{}, errListChanged
}

func (r *CardRepository) moveOnce(ctx context.Context, id, targetListID uuid.UUID, newPosition int) (types.Card, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Card{}, err
	}
	defer tx.Rollback()

	sourceListID, err := cardListID(ctx, tx, id)
	if err != nil {
		return types.Card{}, err
	}
	if err := lockListPair(ctx, tx, sourceListID, targetListID); err != nil {
		return types.Card{}, err
	}

	card, err := cardInTx(ctx, tx, id)
	if err != nil {
		return types.Card{}, err
	}
	if card.ListID != sourceListID && card.ListID != targetListID {
		return types.Card{}, errListChanged
	}

	if card.ListID == targetListID {
		card, err = reorderInTx(ctx, tx, card, newPosition)
		if err != nil {
			return types.Card{}, err
		}
		return card, tx.Commit()
	}

	// Close the gap in the source list.
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET position = position - 1
		WHERE list_id = $1 AND position > $2`, card.ListID, card.Position); err != nil {
		return types.Card{}, err
	}

	var targetCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE list_id = $1`, targetListID).Scan(&targetCount); err != nil {
		return types.Card{}, err
	}

	newPosition = clampPosition(newPosition, targetCount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET position = position + 1
		WHERE list_id = $1 AND position >= $2`, targetListID, newPosition); err != nil {
		return types.Card{}, err
	}

	card.ListID = targetListID
	card.Position = newPosition
	card.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET list_id = $1, position = $2, updated_at = $3
		WHERE id = $4`, card.ListID, card.Position, card.UpdatedAt, card.ID); err != nil {
		return types.Card{}, err
	}

	return card, tx.Commit()
}

// Delete removes a card and compacts the positions of its surviving
// siblings under the list lock.
func (r *CardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	for attempt := 0; attempt < lockRetryLimit; attempt++ {
		err := r.deleteOnce(ctx, id)
		if errors.Is(err, errListChanged) {
			continue
		}
		return err
	}
	return errListChanged
}

func (r *CardRepository) deleteOnce(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	listID, err := cardListID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := lockList(ctx, tx, listID); err != nil {
		return err
	}

	var currentListID uuid.UUID
	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT list_id, position FROM cards WHERE id = $1`, id).Scan(&currentListID, &position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if currentListID != listID {
		return errListChanged
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE card_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET position = position - 1
		WHERE list_id = $1 AND position > $2`, listID, position); err != nil {
		return err
	}

	return tx.Commit()
}

// lockList takes the list row lock that serializes every mutation of
// the list's card ordering.
func lockList(ctx context.Context, tx *sql.Tx, listID uuid.UUID) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM lists WHERE id = $1 FOR UPDATE`, listID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// lockListPair locks both lists of a move in a stable order so two
// opposing moves cannot deadlock.
func lockListPair(ctx context.Context, tx *sql.Tx, a, b uuid.UUID) error {
	if a == b {
		return lockList(ctx, tx, a)
	}
	if b.String() < a.String() {
		a, b = b, a
	}
	if err := lockList(ctx, tx, a); err != nil {
		return err
	}
	return lockList(ctx, tx, b)
}

func cardListID(ctx context.Context, tx *sql.Tx, id uuid.UUID) (uuid.UUID, error) {
	var listID uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT list_id FROM cards WHERE id = $1`, id).Scan(&listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.UUID{}, ErrNotFound
		}
		return uuid.UUID{}, err
	}
	return listID, nil
}

func cardInTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (types.Card, error) {
	card, err := scanCardRow(tx.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Card{}, ErrNotFound
		}
		return types.Card{}, err
	}
	return card, nil
}

func reorderInTx(ctx context.Context, tx *sql.Tx, card types.Card, newPosition int) (types.Card, error) {
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE list_id = $1`, card.ListID).Scan(&count); err != nil {
		return types.Card{}, err
	}

	newPosition = clampPosition(newPosition, count-1)
	if newPosition == card.Position {
		return card, nil
	}

	var err error
	if newPosition < card.Position {
		_, err = tx.ExecContext(ctx, `
			UPDATE cards
			SET position = position + 1
			WHERE list_id = $1 AND position >= $2 AND position < $3`,
			card.ListID, newPosition, card.Position)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE cards
			SET position = position - 1
			WHERE list_id = $1 AND position > $2 AND position <= $3`,
			card.ListID, card.Position, newPosition)
	}
	if err != nil {
		return types.Card{}, err
	}

	card.Position = newPosition
	card.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET position = $1, updated_at = $2
		WHERE id = $3`, card.Position, card.UpdatedAt, card.ID); err != nil {
		return types.Card{}, err
	}
	return card, nil
}
