// Package repository persists one enrolled behavioral baseline per user.
package repository

import (
	"context"

	"continuous-auth/backend/internal/behavior/domain"
)

// Repository defines persistence for baselines.
type Repository interface {
	// Save upserts the baseline for userID; the last write wins.
	Save(ctx context.Context, userID string, b domain.Baseline) error
	// Load returns the baseline for userID, or nil if the user never enrolled.
	// It returns an error only for backend failures, not for missing baselines.
	Load(ctx context.Context, userID string) (*domain.Baseline, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
