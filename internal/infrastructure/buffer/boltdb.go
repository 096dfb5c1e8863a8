package buffer

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/aurano/internal/infrastructure/boltdb"
)

// Store wraps BoltDB to keep user data snapshots that could not reach the primary backend.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "buffer"
	}
	db, err := boltdb.Open(path, bucket)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		bucket: []byte(bucket),
	}, nil
}

// Put stores the item under its user id, replacing any older snapshot.
func (s *Store) Put(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(item.UserID), payload)
	})
}

// Get returns the pending snapshot for a user, if any.
func (s *Store) Get(userID string) (Item, bool, error) {
	if s == nil || s.db == nil {
		return Item{}, false, bolt.ErrDatabaseNotOpen
	}
	var (
		item  Item
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(userID))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		found = true
		return nil
	})
	return item, found, err
}

// GetBatch returns up to limit items without removing them, ordered by user id.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes the pending snapshot of a user.
func (s *Store) Remove(userID string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(userID))
	})
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}
