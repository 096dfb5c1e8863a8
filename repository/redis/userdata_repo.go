package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/repository"
)

type userDataRepository struct {
	client *redislib.Client
	prefix string
}

// NewUserDataRepository creates a Redis-backed user data repository. Keys never expire.
func NewUserDataRepository(client *redislib.Client) repository.UserDataRepository {
	return &userDataRepository{
		client: client,
		prefix: "userdata:",
	}
}

func (r *userDataRepository) Load(ctx context.Context, userID string) (*domain.UserData, error) {
	result, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrUserDataNotFound
		}
		return nil, err
	}

	var data domain.UserData
	if err := json.Unmarshal(result, &data); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "corrupt user data", err)
	}
	return &data, nil
}

func (r *userDataRepository) Save(ctx context.Context, userID string, data *domain.UserData) error {
	if userID == "" || data == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(userID), payload, 0).Err()
}

func (r *userDataRepository) key(userID string) string {
	return fmt.Sprintf("%s%s", r.prefix, userID)
}
