package usecase

import (
	"context"

	"github.com/fastygo/aurano/domain"
)

// SnapshotBuffer keeps the latest user data snapshot that could not be written to the primary backend.
// Use cases stay storage-agnostic and only talk to this port.
type SnapshotBuffer interface {
	Stash(ctx context.Context, userID string, data *domain.UserData) error
	Pending(ctx context.Context, userID string) (*domain.UserData, bool, error)
	Discard(ctx context.Context, userID string) error
}
