package transport

import "github.com/fastygo/aurano/usecase/capture"

// TaskRequest creates a task. DueDate accepts RFC 3339 or YYYY-MM-DD.
type TaskRequest struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

type HabitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
}

// DraftRequest replaces the capture draft before submission.
type DraftRequest struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

// RecognitionResultRequest is one result event posted by the browser recognizer.
type RecognitionResultRequest struct {
	Index        int                   `json:"index"`
	IsFinal      bool                  `json:"is_final"`
	Alternatives []capture.Alternative `json:"alternatives"`
}

// RecognitionErrorRequest carries the recognizer error code, e.g. "not-allowed".
type RecognitionErrorRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
