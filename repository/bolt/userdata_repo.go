package bolt

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/repository"
)

// Bucket holds one JSON document per user id.
const Bucket = "user_data"

type userDataRepository struct {
	db     *bolt.DB
	bucket []byte
}

// NewUserDataRepository stores user data in a local Bolt file. The bucket must already exist.
func NewUserDataRepository(db *bolt.DB) repository.UserDataRepository {
	return &userDataRepository{
		db:     db,
		bucket: []byte(Bucket),
	}
}

func (r *userDataRepository) Load(ctx context.Context, userID string) (*domain.UserData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		if v := b.Get([]byte(userID)); v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, domain.ErrUserDataNotFound
	}

	var data domain.UserData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "corrupt user data", err)
	}
	return &data, nil
}

func (r *userDataRepository) Save(ctx context.Context, userID string, data *domain.UserData) error {
	if userID == "" || data == nil {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		return b.Put([]byte(userID), payload)
	})
}
