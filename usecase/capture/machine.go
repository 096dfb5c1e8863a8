// Package capture turns a live speech transcript into a draft task.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/pkg/clock"
	"github.com/fastygo/aurano/pkg/duedate"
	"github.com/fastygo/aurano/usecase/task"
)

// Config wires a Machine. Recognizer may be nil, in which case Start reports
// domain.ErrRecognitionUnavailable.
type Config struct {
	Recognizer Recognizer
	Sink       TaskSink
	Clock      clock.Clock
	Logger     *zap.Logger
	// OnError is called, outside the machine lock, when a recognition error abandons an attempt.
	OnError func(error)
}

type segment struct {
	text  string
	final bool
}

// Machine drives one capture attempt at a time: idle, recording, processing, completed.
// Every attempt gets a generation number; events carrying an older generation are dropped.
type Machine struct {
	recognizer Recognizer
	sink       TaskSink
	clock      clock.Clock
	logger     *zap.Logger
	onError    func(error)

	mu         sync.Mutex
	state      State
	generation uint64
	session    Session
	segments   map[int]segment
	draft      Draft
	lastErr    *RecognitionError
	submitting bool
}

// NewMachine returns an idle machine.
func NewMachine(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		recognizer: cfg.Recognizer,
		sink:       cfg.Sink,
		clock:      clock.OrSystem(cfg.Clock),
		logger:     logger,
		onError:    cfg.OnError,
		state:      StateIdle,
		segments:   make(map[int]segment),
		draft:      Draft{Category: domain.DefaultCategory},
	}
}

// Start opens a recognition session and moves idle to recording.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return fmt.Errorf("start from %s: %w", m.state, domain.ErrInvalidTransition)
	}
	m.lastErr = nil
	if m.recognizer == nil {
		m.lastErr = asRecognitionError(domain.ErrRecognitionUnavailable)
		return domain.ErrRecognitionUnavailable
	}

	m.generation++
	session, err := m.recognizer.Open(m.listener(m.generation))
	if err != nil {
		m.lastErr = asRecognitionError(err)
		return fmt.Errorf("open recognition session: %w", err)
	}
	if err := session.Start(); err != nil {
		session.Abort()
		m.lastErr = asRecognitionError(err)
		return fmt.Errorf("start recognition session: %w", err)
	}

	m.clear()
	m.session = session
	m.state = StateRecording
	m.logger.Debug("capture started", zap.Uint64("generation", m.generation))
	return nil
}

// Stop asks the session to finalize. The machine completes once the session ends.
func (m *Machine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording {
		return fmt.Errorf("stop from %s: %w", m.state, domain.ErrInvalidTransition)
	}
	m.state = StateProcessing
	if err := m.session.Stop(); err != nil {
		m.session.Abort()
		m.reset()
		m.lastErr = asRecognitionError(err)
		return fmt.Errorf("stop recognition session: %w", err)
	}
	return nil
}

// Abort cancels the attempt from any state. The session is aborted before state is cleared.
func (m *Machine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Abort()
	}
	m.reset()
	m.lastErr = nil
}

// Reset is an alias for Abort.
func (m *Machine) Reset() {
	m.Abort()
}

// SetDraft replaces the draft while the attempt awaits confirmation.
func (m *Machine) SetDraft(d Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateCompleted || m.submitting {
		return fmt.Errorf("edit draft in %s: %w", m.state, domain.ErrInvalidTransition)
	}
	if d.Category != "" {
		category, err := domain.ParseCategory(string(d.Category))
		if err != nil {
			return err
		}
		d.Category = category
	}
	m.draft = d.clone()
	return nil
}

// Submit hands the draft to the task sink and returns to idle.
// A blank title keeps the machine in completed. The sink runs without the machine lock,
// so Snapshot and Abort stay responsive; an attempt aborted meanwhile is not reset again.
func (m *Machine) Submit(ctx context.Context) (task.AddTaskOutput, error) {
	m.mu.Lock()
	if m.state != StateCompleted || m.submitting {
		state := m.state
		m.mu.Unlock()
		return task.AddTaskOutput{}, fmt.Errorf("submit from %s: %w", state, domain.ErrInvalidTransition)
	}
	if strings.TrimSpace(m.draft.Title) == "" {
		m.mu.Unlock()
		return task.AddTaskOutput{}, domain.ErrEmptyTitle
	}
	if m.sink == nil {
		m.mu.Unlock()
		return task.AddTaskOutput{}, errors.New("capture: no task sink configured")
	}
	gen := m.generation
	draft := m.draft.clone()
	m.submitting = true
	m.mu.Unlock()

	out, err := m.sink.AddTask(ctx, task.AddTaskInput{
		Title:       draft.Title,
		Category:    string(draft.Category),
		Description: draft.Description,
		DueDate:     draft.DueDate,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		m.submitting = false
	}
	if err != nil {
		return task.AddTaskOutput{}, err
	}
	if gen == m.generation && m.state == StateCompleted {
		m.reset()
	}
	return out, nil
}

// Snapshot returns the current state for display.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:      m.state,
		Transcript: m.transcript(false),
		Draft:      m.draft.clone(),
	}
	if m.lastErr != nil {
		e := *m.lastErr
		snap.LastError = &e
	}
	return snap
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) listener(gen uint64) Listener {
	return Listener{
		OnResult: func(r Result) { m.handleResult(gen, r) },
		OnError:  func(err error) { m.handleError(gen, err) },
		OnEnd:    func() { m.handleEnd(gen) },
	}
}

func (m *Machine) active(gen uint64) bool {
	return gen == m.generation && (m.state == StateRecording || m.state == StateProcessing)
}

func (m *Machine) handleResult(gen uint64, r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active(gen) || len(r.Alternatives) == 0 {
		return
	}
	if existing, ok := m.segments[r.Index]; ok && existing.final {
		return
	}
	m.segments[r.Index] = segment{text: strings.TrimSpace(r.Alternatives[0].Transcript), final: r.IsFinal}
	if r.IsFinal {
		m.refreshDraft()
	}
}

func (m *Machine) handleEnd(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active(gen) {
		return
	}
	m.session = nil
	m.state = StateCompleted
	m.logger.Debug("capture completed", zap.Uint64("generation", gen), zap.String("title", m.draft.Title))
}

func (m *Machine) handleError(gen uint64, err error) {
	m.mu.Lock()
	if !m.active(gen) {
		m.mu.Unlock()
		return
	}
	if m.session != nil {
		m.session.Abort()
	}
	m.reset()
	m.lastErr = asRecognitionError(err)
	notify := m.onError
	m.mu.Unlock()

	m.logger.Warn("capture abandoned", zap.Uint64("generation", gen), zap.Error(err))
	if notify != nil {
		notify(err)
	}
}

func (m *Machine) refreshDraft() {
	final := m.transcript(true)
	m.draft.Title = draftTitle(final)
	if due, ok := duedate.Extract(final, m.clock.Now()); ok {
		m.draft.DueDate = &due
	}
}

// reset returns to idle and invalidates the current generation.
func (m *Machine) reset() {
	m.generation++
	m.submitting = false
	m.session = nil
	m.state = StateIdle
	m.clear()
}

func (m *Machine) clear() {
	m.segments = make(map[int]segment)
	m.draft = Draft{Category: domain.DefaultCategory}
}

func (m *Machine) transcript(finalOnly bool) string {
	indexes := make([]int, 0, len(m.segments))
	for i := range m.segments {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	parts := make([]string, 0, len(indexes))
	for _, i := range indexes {
		seg := m.segments[i]
		if seg.text == "" || (finalOnly && !seg.final) {
			continue
		}
		parts = append(parts, seg.text)
	}
	return strings.Join(parts, " ")
}

// draftTitle keeps the first sentence of the transcript.
func draftTitle(transcript string) string {
	if i := strings.IndexAny(transcript, ".!?"); i >= 0 {
		transcript = transcript[:i]
	}
	return strings.TrimSpace(transcript)
}
