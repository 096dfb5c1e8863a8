package monitor

import "time"

// Status is the last health snapshot of the primary backend and the local buffer.
type Status struct {
	Backend    string    `json:"backend"`
	Online     bool      `json:"online"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}
