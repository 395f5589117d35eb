package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/types"
)

// AttachmentRepository handles persistence for attachment metadata.
// The file bytes themselves live in object storage.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, card_id, filename, content_type, size, object_key, created_at`

func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE id = $1`
	var att types.Attachment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&att.ID,
		&att.CardID,
		&att.Filename,
		&att.ContentType,
		&att.Size,
		&att.ObjectKey,
		&att.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return att, nil
}

func (r *AttachmentRepository) ListByCard(ctx context.Context, cardID uuid.UUID) ([]types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE card_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		var att types.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.CardID,
			&att.Filename,
			&att.ContentType,
			&att.Size,
			&att.ObjectKey,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, att types.Attachment) (types.Attachment, error) {
	att.ID = uuid.New()
	att.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (id, card_id, filename, content_type, size, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		att.ID,
		att.CardID,
		att.Filename,
		att.ContentType,
		att.Size,
		att.ObjectKey,
		att.CreatedAt,
	); err != nil {
		return types.Attachment{}, err
	}
	return att, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM attachments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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
	return nil
}
