package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is the latest unsaved snapshot for one user. A newer stash for the same user replaces it.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
