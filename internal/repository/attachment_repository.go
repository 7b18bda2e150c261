package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-case-service/internal/domain"
)

// AttachmentRepository persists attachment metadata. File bytes are stored
// elsewhere; the workflow only reads counts.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.AttachmentReference) error
	GetByID(ctx context.Context, caseID, attachmentID string) (*domain.AttachmentReference, error)
	Delete(ctx context.Context, caseID, attachmentID string) error
	Count(ctx context.Context, caseID string, stage domain.Stage, attachmentType domain.AttachmentType) (int, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.AttachmentReference) error {
	const query = `
        INSERT INTO case_attachments (case_id, stage, attachment_type, storage_key, file_name, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		attachment.CaseID,
		int(attachment.Stage),
		attachment.Type,
		attachment.StorageKey,
		attachment.FileName,
		attachment.MimeType,
		attachment.SizeBytes,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, caseID, attachmentID string) (*domain.AttachmentReference, error) {
	const query = `
        SELECT id, case_id, stage, attachment_type, storage_key, file_name, mime_type, size_bytes, created_at
        FROM case_attachments WHERE id=$1 AND case_id=$2`
	var (
		att   domain.AttachmentReference
		stage int
	)
	if err := r.pool.QueryRow(ctx, query, attachmentID, caseID).Scan(
		&att.ID,
		&att.CaseID,
		&stage,
		&att.Type,
		&att.StorageKey,
		&att.FileName,
		&att.MimeType,
		&att.SizeBytes,
		&att.CreatedAt,
	); err != nil {
		return nil, err
	}
	att.Stage = domain.Stage(stage)
	return &att, nil
}

func (r *attachmentRepository) Delete(ctx context.Context, caseID, attachmentID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM case_attachments WHERE id=$1 AND case_id=$2`, attachmentID, caseID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *attachmentRepository) Count(ctx context.Context, caseID string, stage domain.Stage, attachmentType domain.AttachmentType) (int, error) {
	const query = `
        SELECT COUNT(*) FROM case_attachments
        WHERE case_id=$1 AND stage=$2 AND attachment_type=$3`
	var count int
	if err := r.pool.QueryRow(ctx, query, caseID, int(stage), attachmentType).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
