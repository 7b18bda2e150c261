package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/repair-case-service/internal/workflow"
)

// CostSnapshotRepository remembers the last-saved cost evidence per case so
// a Stage 3 save can be told apart from a resubmission.
type CostSnapshotRepository interface {
	Get(ctx context.Context, caseID string) (workflow.CostSnapshot, bool, error)
	Save(ctx context.Context, caseID string, snapshot workflow.CostSnapshot) error
	Delete(ctx context.Context, caseID string) error
}

type redisCostSnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCostSnapshotRepository stores snapshots as JSON values. A zero
// ttl keeps them without expiry.
func NewRedisCostSnapshotRepository(client *redis.Client, ttl time.Duration) CostSnapshotRepository {
	return &redisCostSnapshotRepository{client: client, ttl: ttl}
}

func costSnapshotKey(caseID string) string {
	return fmt.Sprintf("case:%s:cost_snapshot", caseID)
}

func (r *redisCostSnapshotRepository) Get(ctx context.Context, caseID string) (workflow.CostSnapshot, bool, error) {
	raw, err := r.client.Get(ctx, costSnapshotKey(caseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return workflow.CostSnapshot{}, false, nil
	}
	if err != nil {
		return workflow.CostSnapshot{}, false, err
	}
	var snapshot workflow.CostSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return workflow.CostSnapshot{}, false, fmt.Errorf("decode cost snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (r *redisCostSnapshotRepository) Save(ctx context.Context, caseID string, snapshot workflow.CostSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode cost snapshot: %w", err)
	}
	return r.client.Set(ctx, costSnapshotKey(caseID), raw, r.ttl).Err()
}

func (r *redisCostSnapshotRepository) Delete(ctx context.Context, caseID string) error {
	return r.client.Del(ctx, costSnapshotKey(caseID)).Err()
}

// MemoryCostSnapshotRepository keeps snapshots in process memory.
type MemoryCostSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]workflow.CostSnapshot
}

// NewMemoryCostSnapshotRepository creates an empty repository.
func NewMemoryCostSnapshotRepository() *MemoryCostSnapshotRepository {
	return &MemoryCostSnapshotRepository{snapshots: make(map[string]workflow.CostSnapshot)}
}

func (r *MemoryCostSnapshotRepository) Get(_ context.Context, caseID string) (workflow.CostSnapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[caseID]
	return snapshot, ok, nil
}

func (r *MemoryCostSnapshotRepository) Save(_ context.Context, caseID string, snapshot workflow.CostSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[caseID] = snapshot
	return nil
}

func (r *MemoryCostSnapshotRepository) Delete(_ context.Context, caseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, caseID)
	return nil
}
