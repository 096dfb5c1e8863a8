package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/repository"
)

type userDataRepository struct {
	pool *pgxpool.Pool
}

// NewUserDataRepository returns a Postgres-backed implementation of UserDataRepository.
func NewUserDataRepository(pool *pgxpool.Pool) repository.UserDataRepository {
	return &userDataRepository{pool: pool}
}

func (r *userDataRepository) Load(ctx context.Context, userID string) (*domain.UserData, error) {
	const query = `
	SELECT payload
	FROM user_data
	WHERE user_id = $1
	`
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserDataNotFound
		}
		return nil, err
	}
	return decodeUserData(payload)
}

func (r *userDataRepository) Save(ctx context.Context, userID string, data *domain.UserData) error {
	if userID == "" || data == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO user_data (user_id, payload, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (user_id) DO UPDATE
	SET payload = EXCLUDED.payload,
		updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query, userID, payload)
	return err
}
