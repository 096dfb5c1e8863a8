package transport

import (
	"encoding/json"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/usecase/capture"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// AddTaskResponse reports whether a task was created or an equal pending task already existed.
type AddTaskResponse struct {
	Task    domain.Task `json:"task"`
	Created bool        `json:"created"`
}

// CaptureResponse is the capture state plus a hint telling the client to finalize its recognizer.
type CaptureResponse struct {
	capture.Snapshot
	Finalize bool `json:"finalize"`
}

// DeliveryResponse tells the client whether a relayed event reached a live session.
type DeliveryResponse struct {
	Delivered bool `json:"delivered"`
}

// ListMeta accompanies list responses.
type ListMeta struct {
	Count int `json:"count"`
}
