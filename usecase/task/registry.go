package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/domain"
)

const defaultCacheSize = 1024

var errFlushRejected = errors.New("primary backend rejected the snapshot")

// Registry hands out one Store per user and keeps recently used stores resident.
// An evicted store stays reachable through a weak pointer for as long as a caller still
// holds it, so a user never ends up with two live stores writing over each other.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	stores   *lru.Cache[string, *Store]
	retiring map[string]weak.Pointer[Store]
	size     int
}

// NewRegistry builds a registry holding at most size resident stores.
func NewRegistry(deps Deps, size int) (*Registry, error) {
	if deps.Repo == nil {
		return nil, errors.New("task registry requires a user data repository")
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	r := &Registry{
		deps:     deps.withDefaults(),
		retiring: make(map[string]weak.Pointer[Store]),
		size:     size,
	}
	stores, err := lru.NewWithEvict[string, *Store](size, r.evicted)
	if err != nil {
		return nil, fmt.Errorf("create store cache: %w", err)
	}
	r.stores = stores
	return r, nil
}

// Open returns the resident store for userID or loads it.
// A buffered snapshot takes precedence over the primary backend since it is newer.
func (r *Registry) Open(ctx context.Context, userID string) (*Store, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "user id is required", domain.ErrInvalidPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores.Get(userID); ok {
		return store, nil
	}
	if store := r.retired(userID); store != nil {
		delete(r.retiring, userID)
		r.stores.Add(userID, store)
		return store, nil
	}

	data, fromBuffer, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	repaired := data.Repair(r.deps.Clock.Now())
	store := newStore(userID, data, r.deps)
	if repaired || fromBuffer {
		if repaired {
			r.deps.Logger.Info("user data repaired on load", zap.String("user_id", userID))
		}
		store.mu.Lock()
		store.buffered = fromBuffer
		store.persist(ctx, false)
		store.mu.Unlock()
	}

	r.stores.Add(userID, store)
	return store, nil
}

// Resync pushes the latest state of userID to the primary backend. A resident store is
// flushed; otherwise the buffered snapshot is written directly.
func (r *Registry) Resync(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores.Peek(userID)
	if !ok {
		store = r.retired(userID)
	}
	if store != nil {
		if !store.Flush(ctx) {
			return fmt.Errorf("resync %s: %w", userID, errFlushRejected)
		}
		return nil
	}

	if r.deps.Buffer == nil {
		return nil
	}
	pending, ok, err := r.deps.Buffer.Pending(ctx, userID)
	if err != nil {
		return fmt.Errorf("read buffered snapshot: %w", err)
	}
	if !ok {
		return nil
	}
	pending.Repair(r.deps.Clock.Now())
	if err := r.deps.Repo.Save(ctx, userID, pending); err != nil {
		return fmt.Errorf("resync %s: %w", userID, err)
	}
	if err := r.deps.Buffer.Discard(ctx, userID); err != nil {
		return fmt.Errorf("discard buffered snapshot: %w", err)
	}
	return nil
}

// Len returns the number of resident stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores.Len()
}

// evicted runs inside cache operations, which happen under mu.
func (r *Registry) evicted(userID string, store *Store) {
	if len(r.retiring) >= r.size {
		r.sweep()
	}
	r.retiring[userID] = weak.Make(store)
	r.deps.Logger.Debug("store evicted", zap.String("user_id", userID))
}

// retired returns an evicted store that is still referenced somewhere. Callers hold mu.
func (r *Registry) retired(userID string) *Store {
	ptr, ok := r.retiring[userID]
	if !ok {
		return nil
	}
	store := ptr.Value()
	if store == nil {
		delete(r.retiring, userID)
	}
	return store
}

// sweep forgets evicted stores that have been collected. Callers hold mu.
func (r *Registry) sweep() {
	for userID, ptr := range r.retiring {
		if ptr.Value() == nil {
			delete(r.retiring, userID)
		}
	}
}

func (r *Registry) load(ctx context.Context, userID string) (*domain.UserData, bool, error) {
	if r.deps.Buffer != nil {
		pending, ok, err := r.deps.Buffer.Pending(ctx, userID)
		switch {
		case err != nil:
			r.deps.Logger.Warn("failed to read buffered snapshot", zap.String("user_id", userID), zap.Error(err))
		case ok && pending != nil:
			return pending, true, nil
		}
	}

	data, err := r.deps.Repo.Load(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrUserDataNotFound):
		return domain.NewUserData(), false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load user data: %w", err)
	case data == nil:
		return domain.NewUserData(), false, nil
	}
	return data, false, nil
}
