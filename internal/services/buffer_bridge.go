package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/internal/infrastructure/buffer"
	"github.com/fastygo/aurano/usecase"
)

// BufferBridge exposes the bbolt buffer to the task stores as a SnapshotBuffer.
type BufferBridge struct {
	store *buffer.Store
}

func NewBufferBridge(store *buffer.Store) *BufferBridge {
	return &BufferBridge{store: store}
}

func (b *BufferBridge) Stash(ctx context.Context, userID string, data *domain.UserData) error {
	if b.store == nil || data == nil {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return b.store.Put(buffer.Item{UserID: userID, Data: payload})
}

func (b *BufferBridge) Pending(ctx context.Context, userID string) (*domain.UserData, bool, error) {
	if b.store == nil {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, ok, err := b.store.Get(userID)
	if err != nil || !ok {
		return nil, false, err
	}
	var data domain.UserData
	if err := json.Unmarshal(item.Data, &data); err != nil {
		return nil, false, fmt.Errorf("decode snapshot for %s: %w", userID, err)
	}
	return &data, true, nil
}

func (b *BufferBridge) Discard(ctx context.Context, userID string) error {
	if b.store == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.store.Remove(userID)
}

var _ usecase.SnapshotBuffer = (*BufferBridge)(nil)
