package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fastygo/aurano/domain"
)

var errBackendDown = errors.New("backend down")

// memoryRepo stores JSON payloads so tests observe exactly what a real adapter would persist.
type memoryRepo struct {
	mu       sync.Mutex
	payloads map[string][]byte
	saves    int
	failSave bool
	loadErr  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{payloads: make(map[string][]byte)}
}

func (r *memoryRepo) Load(_ context.Context, userID string) (*domain.UserData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	raw, ok := r.payloads[userID]
	if !ok {
		return nil, domain.ErrUserDataNotFound
	}
	var data domain.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *memoryRepo) Save(_ context.Context, userID string, data *domain.UserData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errBackendDown
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	r.payloads[userID] = raw
	r.saves++
	return nil
}

func (r *memoryRepo) put(userID string, data *domain.UserData) {
	raw, _ := json.Marshal(data)
	r.mu.Lock()
	r.payloads[userID] = raw
	r.mu.Unlock()
}

func (r *memoryRepo) setFailSave(fail bool) {
	r.mu.Lock()
	r.failSave = fail
	r.mu.Unlock()
}

func (r *memoryRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type memoryBuffer struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryBuffer() *memoryBuffer {
	return &memoryBuffer{items: make(map[string][]byte)}
}

func (b *memoryBuffer) Stash(_ context.Context, userID string, data *domain.UserData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.items[userID] = raw
	b.mu.Unlock()
	return nil
}

func (b *memoryBuffer) Pending(_ context.Context, userID string) (*domain.UserData, bool, error) {
	b.mu.Lock()
	raw, ok := b.items[userID]
	b.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var data domain.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, err
	}
	return &data, true, nil
}

func (b *memoryBuffer) Discard(_ context.Context, userID string) error {
	b.mu.Lock()
	delete(b.items, userID)
	b.mu.Unlock()
	return nil
}

func (b *memoryBuffer) has(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.items[userID]
	return ok
}
