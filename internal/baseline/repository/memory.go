package repository

import (
	"context"
	"sync"

	"continuous-auth/backend/internal/behavior/domain"
)

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]domain.Baseline
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory baseline store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.Baseline)}
}

// Save stores b for userID.
func (r *MemoryRepository) Save(_ context.Context, userID string, b domain.Baseline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[userID] = b
	return nil
}

// Load returns a copy of the stored baseline, or nil if absent.
func (r *MemoryRepository) Load(_ context.Context, userID string) (*domain.Baseline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.m[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}
