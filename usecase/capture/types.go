package capture

import (
	"context"
	"errors"
	"time"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/usecase/task"
)

// State is the phase of the current capture attempt.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
)

// Alternative is one hypothesis for a recognized segment.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result is a recognition event for the segment at Index.
// Partial results may be replaced; a final result for an index is kept for the rest of the attempt.
type Result struct {
	Index        int           `json:"index"`
	IsFinal      bool          `json:"is_final"`
	Alternatives []Alternative `json:"alternatives"`
}

// Error codes used when an error did not come from the recognizer itself.
const (
	CodeUnavailable = "unavailable"
	CodeUnknown     = "unknown"
)

// RecognitionError is a failure reported by the recognizer, e.g. "not-allowed" or "no-speech".
type RecognitionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RecognitionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return "recognition error: " + e.Code
	}
	return "recognition error: " + e.Code + ": " + e.Message
}

func asRecognitionError(err error) *RecognitionError {
	if err == nil {
		return nil
	}
	var rErr *RecognitionError
	if errors.As(err, &rErr) {
		return rErr
	}
	if errors.Is(err, domain.ErrRecognitionUnavailable) {
		return &RecognitionError{Code: CodeUnavailable, Message: err.Error()}
	}
	return &RecognitionError{Code: CodeUnknown, Message: err.Error()}
}

// Listener receives the events of one recognition session.
type Listener struct {
	OnResult func(Result)
	OnError  func(error)
	OnEnd    func()
}

// Session is a running recognition attempt.
// Implementations must not invoke the Listener from inside these methods.
type Session interface {
	Start() error
	Stop() error
	Abort()
}

// Recognizer opens recognition sessions. It returns domain.ErrRecognitionUnavailable
// when the host has no speech capability.
type Recognizer interface {
	Open(listener Listener) (Session, error)
}

// TaskSink receives submitted drafts. task.Store satisfies it.
type TaskSink interface {
	AddTask(ctx context.Context, in task.AddTaskInput) (task.AddTaskOutput, error)
}

// Draft is the editable task proposed by a capture attempt.
type Draft struct {
	Title       string          `json:"title"`
	Category    domain.Category `json:"category"`
	Description string          `json:"description,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

func (d Draft) clone() Draft {
	if d.DueDate != nil {
		due := *d.DueDate
		d.DueDate = &due
	}
	return d
}

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	State      State             `json:"state"`
	Transcript string            `json:"transcript"`
	Draft      Draft             `json:"draft"`
	LastError  *RecognitionError `json:"last_error,omitempty"`
}
