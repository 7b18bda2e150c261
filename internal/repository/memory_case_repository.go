package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-case-service/internal/domain"
)

// MemoryCaseRepository keeps cases in process memory. It is used when no
// Postgres DSN is configured and in tests. Like the SQL repository it applies
// last-write-wins: the mutex guards the map, not a caller's read-modify-write.
type MemoryCaseRepository struct {
	mu    sync.RWMutex
	cases map[string]domain.Case
}

// NewMemoryCaseRepository creates an empty repository.
func NewMemoryCaseRepository() *MemoryCaseRepository {
	return &MemoryCaseRepository{cases: make(map[string]domain.Case)}
}

func (r *MemoryCaseRepository) Create(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.cases[c.ID] = *c
	return nil
}

func (r *MemoryCaseRepository) Update(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cases[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	c.UpdatedAt = time.Now().UTC()
	r.cases[c.ID] = *c
	return nil
}

func (r *MemoryCaseRepository) GetByID(_ context.Context, id string) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r *MemoryCaseRepository) List(_ context.Context, filter CaseFilter) ([]domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Case, 0, len(r.cases))
	for _, c := range r.cases {
		if filter.AssignedTo != nil && !c.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, c.Status) {
			continue
		}
		if len(filter.Stages) > 0 && !containsStage(filter.Stages, c.CurrentStage) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(result) {
		return []domain.Case{}, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func containsStatus(statuses []domain.CaseStatus, status domain.CaseStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsStage(stages []domain.Stage, stage domain.Stage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}
