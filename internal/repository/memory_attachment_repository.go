package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-case-service/internal/domain"
)

// MemoryAttachmentRepository keeps attachment metadata in process memory.
type MemoryAttachmentRepository struct {
	mu          sync.RWMutex
	attachments map[string]domain.AttachmentReference
}

// NewMemoryAttachmentRepository creates an empty repository.
func NewMemoryAttachmentRepository() *MemoryAttachmentRepository {
	return &MemoryAttachmentRepository{attachments: make(map[string]domain.AttachmentReference)}
}

func (r *MemoryAttachmentRepository) Create(_ context.Context, attachment *domain.AttachmentReference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attachment.ID = uuid.NewString()
	attachment.CreatedAt = time.Now().UTC()
	r.attachments[attachment.ID] = *attachment
	return nil
}

func (r *MemoryAttachmentRepository) GetByID(_ context.Context, caseID, attachmentID string) (*domain.AttachmentReference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	att, ok := r.attachments[attachmentID]
	if !ok || att.CaseID != caseID {
		return nil, pgx.ErrNoRows
	}
	return &att, nil
}

func (r *MemoryAttachmentRepository) Delete(_ context.Context, caseID, attachmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.attachments[attachmentID]
	if !ok || existing.CaseID != caseID {
		return pgx.ErrNoRows
	}
	delete(r.attachments, attachmentID)
	return nil
}

func (r *MemoryAttachmentRepository) Count(_ context.Context, caseID string, stage domain.Stage, attachmentType domain.AttachmentType) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, att := range r.attachments {
		if att.CaseID == caseID && att.Stage == stage && att.Type == attachmentType {
			count++
		}
	}
	return count, nil
}
