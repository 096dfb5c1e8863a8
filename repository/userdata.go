package repository

import (
	"context"

	"github.com/fastygo/aurano/domain"
)

// UserDataRepository persists one UserData aggregate per user identity.
// Load returns domain.ErrUserDataNotFound when nothing was stored for the user yet.
type UserDataRepository interface {
	Load(ctx context.Context, userID string) (*domain.UserData, error)
	Save(ctx context.Context, userID string, data *domain.UserData) error
}
