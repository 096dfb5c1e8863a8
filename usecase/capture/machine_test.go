package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/pkg/clock"
	"github.com/fastygo/aurano/usecase/task"
)

// Thursday.
var now = time.Date(2025, time.October, 16, 15, 30, 0, 0, time.UTC)

type fakeSession struct {
	listener Listener
	started  bool
	stopped  bool
	aborted  int
	stopErr  error
}

func (s *fakeSession) Start() error { s.started = true; return nil }
func (s *fakeSession) Stop() error  { s.stopped = true; return s.stopErr }
func (s *fakeSession) Abort()       { s.aborted++ }

func (s *fakeSession) result(index int, final bool, text string) {
	s.listener.OnResult(Result{Index: index, IsFinal: final, Alternatives: []Alternative{{Transcript: text, Confidence: 0.9}}})
}

type fakeRecognizer struct {
	sessions []*fakeSession
	openErr  error
}

func (r *fakeRecognizer) Open(l Listener) (Session, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	s := &fakeSession{listener: l}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *fakeRecognizer) last() *fakeSession {
	return r.sessions[len(r.sessions)-1]
}

type fakeSink struct {
	inputs []task.AddTaskInput
	err    error
}

func (s *fakeSink) AddTask(_ context.Context, in task.AddTaskInput) (task.AddTaskOutput, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return task.AddTaskOutput{}, s.err
	}
	return task.AddTaskOutput{Task: domain.Task{ID: "t1", Title: in.Title}, Created: true}, nil
}

type harness struct {
	recognizer *fakeRecognizer
	sink       *fakeSink
	errs       []error
	machine    *Machine
}

func newHarness() *harness {
	h := &harness{recognizer: &fakeRecognizer{}, sink: &fakeSink{}}
	h.machine = NewMachine(Config{
		Recognizer: h.recognizer,
		Sink:       h.sink,
		Clock:      clock.NewManual(now),
		OnError:    func(err error) { h.errs = append(h.errs, err) },
	})
	return h
}

func (h *harness) record(t *testing.T) *fakeSession {
	t.Helper()
	require.NoError(t, h.machine.Start())
	require.Equal(t, StateRecording, h.machine.State())
	s := h.recognizer.last()
	require.True(t, s.started)
	return s
}

func (h *harness) complete(t *testing.T, finals ...string) {
	t.Helper()
	s := h.record(t)
	for i, text := range finals {
		s.result(i, true, text)
	}
	require.NoError(t, h.machine.Stop())
	s.listener.OnEnd()
	require.Equal(t, StateCompleted, h.machine.State())
}

func TestMachine_FinalSegmentBuildsDraft(t *testing.T) {
	h := newHarness()
	s := h.record(t)

	s.result(0, false, "finish report")
	snap := h.machine.Snapshot()
	assert.Equal(t, "finish report", snap.Transcript)
	assert.Empty(t, snap.Draft.Title)
	assert.Nil(t, snap.Draft.DueDate)

	s.result(0, true, "Finish report by tomorrow. It is for the board")
	snap = h.machine.Snapshot()
	assert.Equal(t, "Finish report by tomorrow", snap.Draft.Title)
	require.NotNil(t, snap.Draft.DueDate)
	assert.Equal(t, now.AddDate(0, 0, 1), *snap.Draft.DueDate)
	assert.Equal(t, domain.DefaultCategory, snap.Draft.Category)
}

func TestMachine_PartialNeverOverwritesFinal(t *testing.T) {
	h := newHarness()
	s := h.record(t)

	s.result(0, true, "buy milk")
	s.result(0, false, "buy silk")
	s.result(1, false, "on fri")
	s.result(1, false, "on friday")

	assert.Equal(t, "buy milk on friday", h.machine.Snapshot().Transcript)
	assert.Nil(t, h.machine.Snapshot().Draft.DueDate)

	s.result(1, true, "on friday")
	snap := h.machine.Snapshot()
	assert.Equal(t, "buy milk on friday", snap.Draft.Title)
	require.NotNil(t, snap.Draft.DueDate)
	assert.Equal(t, now.AddDate(0, 0, 1), *snap.Draft.DueDate)
}

func TestMachine_DueDateSurvivesLaterFinalWithoutDate(t *testing.T) {
	h := newHarness()
	s := h.record(t)

	s.result(0, true, "Pay rent")
	assert.Nil(t, h.machine.Snapshot().Draft.DueDate)

	s.result(1, true, "by tomorrow")
	s.result(2, true, "and call the bank")
	snap := h.machine.Snapshot()
	require.NotNil(t, snap.Draft.DueDate)
	assert.Equal(t, now.AddDate(0, 0, 1), *snap.Draft.DueDate)
	assert.Equal(t, "Pay rent by tomorrow and call the bank", snap.Draft.Title)
}

func TestMachine_StopThenEndCompletes(t *testing.T) {
	h := newHarness()
	s := h.record(t)
	s.result(0, true, "Walk the dog!")

	require.NoError(t, h.machine.Stop())
	assert.Equal(t, StateProcessing, h.machine.State())
	assert.True(t, s.stopped)

	s.listener.OnEnd()
	snap := h.machine.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "Walk the dog", snap.Draft.Title)
}

func TestMachine_EndWhileRecordingCompletes(t *testing.T) {
	h := newHarness()
	s := h.record(t)
	s.listener.OnEnd()
	assert.Equal(t, StateCompleted, h.machine.State())
}

func TestMachine_ErrorAbandonsAttempt(t *testing.T) {
	for _, stopFirst := range []bool{false, true} {
		h := newHarness()
		s := h.record(t)
		s.result(0, true, "Call mom")
		if stopFirst {
			require.NoError(t, h.machine.Stop())
		}

		s.listener.OnError(&RecognitionError{Code: "not-allowed", Message: "microphone blocked"})

		snap := h.machine.Snapshot()
		assert.Equal(t, StateIdle, snap.State)
		assert.Empty(t, snap.Transcript)
		assert.Empty(t, snap.Draft.Title)
		require.NotNil(t, snap.LastError)
		assert.Equal(t, "not-allowed", snap.LastError.Code)
		assert.Equal(t, 1, s.aborted)
		require.Len(t, h.errs, 1)
	}
}

func TestMachine_AbortIgnoresLateEvents(t *testing.T) {
	h := newHarness()
	s := h.record(t)
	s.result(0, false, "draft text")

	h.machine.Abort()
	assert.Equal(t, 1, s.aborted)
	before := h.machine.Snapshot()
	assert.Equal(t, StateIdle, before.State)
	assert.Empty(t, before.Transcript)

	s.result(0, true, "Late arrival by tomorrow")
	s.listener.OnEnd()
	s.listener.OnError(errors.New("late"))

	assert.Equal(t, before, h.machine.Snapshot())
	assert.Empty(t, h.errs)
}

func TestMachine_StaleGenerationIgnored(t *testing.T) {
	h := newHarness()
	old := h.record(t)
	h.machine.Abort()
	fresh := h.record(t)

	old.result(0, true, "from the old attempt")
	old.listener.OnEnd()
	assert.Equal(t, StateRecording, h.machine.State())
	assert.Empty(t, h.machine.Snapshot().Transcript)

	fresh.result(0, true, "current")
	assert.Equal(t, "current", h.machine.Snapshot().Transcript)
}

func TestMachine_SubmitBlankTitleStaysCompleted(t *testing.T) {
	h := newHarness()
	h.complete(t, "Water plants")

	require.NoError(t, h.machine.SetDraft(Draft{Title: "   ", Category: domain.CategoryHealth}))
	_, err := h.machine.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrEmptyTitle)
	assert.Equal(t, StateCompleted, h.machine.State())
	assert.Empty(t, h.sink.inputs)
}

func TestMachine_SubmitHandsDraftToSink(t *testing.T) {
	h := newHarness()
	h.complete(t, "Book flights by 10/20. Window seat")

	due := time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, due, *h.machine.Snapshot().Draft.DueDate)

	require.NoError(t, h.machine.SetDraft(Draft{Title: "Book flights", Category: "learning", DueDate: &due}))
	assert.Equal(t, domain.CategoryLearning, h.machine.Snapshot().Draft.Category)

	out, err := h.machine.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Created)
	require.Len(t, h.sink.inputs, 1)
	assert.Equal(t, "Book flights", h.sink.inputs[0].Title)
	assert.Equal(t, "Learning", h.sink.inputs[0].Category)
	assert.Equal(t, due, *h.sink.inputs[0].DueDate)

	snap := h.machine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Draft.Title)
}

func TestMachine_SubmitSinkErrorStaysCompleted(t *testing.T) {
	h := newHarness()
	h.sink.err = domain.ErrInvalidCategory
	h.complete(t, "Something")

	_, err := h.machine.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidCategory)
	assert.Equal(t, StateCompleted, h.machine.State())
}

func TestMachine_InvalidTransitions(t *testing.T) {
	h := newHarness()

	assert.ErrorIs(t, h.machine.Stop(), domain.ErrInvalidTransition)
	assert.ErrorIs(t, h.machine.SetDraft(Draft{Title: "x"}), domain.ErrInvalidTransition)
	_, err := h.machine.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	h.record(t)
	assert.ErrorIs(t, h.machine.Start(), domain.ErrInvalidTransition)
	assert.ErrorIs(t, h.machine.SetDraft(Draft{Title: "x"}), domain.ErrInvalidTransition)

	h.machine.Reset()
	assert.Equal(t, StateIdle, h.machine.State())
}

func TestMachine_StopFailureAbandonsAttempt(t *testing.T) {
	h := newHarness()
	s := h.record(t)
	s.stopErr = &RecognitionError{Code: "network"}

	require.Error(t, h.machine.Stop())
	snap := h.machine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, "network", snap.LastError.Code)
	assert.Equal(t, 1, s.aborted)
}

func TestMachine_UnavailableRecognizer(t *testing.T) {
	tests := []struct {
		name       string
		recognizer Recognizer
	}{
		{name: "nil recognizer"},
		{name: "host without speech", recognizer: &fakeRecognizer{openErr: domain.ErrRecognitionUnavailable}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine(Config{Recognizer: tc.recognizer})
			err := m.Start()
			require.ErrorIs(t, err, domain.ErrRecognitionUnavailable)

			snap := m.Snapshot()
			assert.Equal(t, StateIdle, snap.State)
			require.NotNil(t, snap.LastError)
			assert.Equal(t, CodeUnavailable, snap.LastError.Code)
		})
	}
}

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (s *blockingSink) AddTask(_ context.Context, in task.AddTaskInput) (task.AddTaskOutput, error) {
	s.entered <- struct{}{}
	<-s.release
	return task.AddTaskOutput{Task: domain.Task{ID: "t1", Title: in.Title}, Created: true}, nil
}

func newBlockedHarness(t *testing.T) (*harness, *blockingSink, chan error) {
	t.Helper()
	sink := newBlockingSink()
	h := &harness{recognizer: &fakeRecognizer{}}
	h.machine = NewMachine(Config{Recognizer: h.recognizer, Sink: sink, Clock: clock.NewManual(now)})
	h.complete(t, "Water the plants.")

	done := make(chan error, 1)
	go func() {
		_, err := h.machine.Submit(context.Background())
		done <- err
	}()
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("sink was not called")
	}
	return h, sink, done
}

func waitSubmit(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("submit did not return")
		return nil
	}
}

func TestMachine_SubmitReleasesLockWhileSinkRuns(t *testing.T) {
	h, sink, done := newBlockedHarness(t)

	snapshots := make(chan Snapshot, 1)
	go func() { snapshots <- h.machine.Snapshot() }()
	select {
	case snap := <-snapshots:
		assert.Equal(t, StateCompleted, snap.State)
		assert.Equal(t, "Water the plants", snap.Draft.Title)
	case <-time.After(time.Second):
		t.Fatal("snapshot blocked behind the sink")
	}

	_, err := h.machine.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.ErrorIs(t, h.machine.SetDraft(Draft{Title: "changed"}), domain.ErrInvalidTransition)

	close(sink.release)
	require.NoError(t, waitSubmit(t, done))
	assert.Equal(t, StateIdle, h.machine.State())
}

func TestMachine_AbortDuringSubmitKeepsNewAttempt(t *testing.T) {
	h, sink, done := newBlockedHarness(t)

	h.machine.Abort()
	assert.Equal(t, StateIdle, h.machine.State())
	h.record(t)

	close(sink.release)
	require.NoError(t, waitSubmit(t, done))
	assert.Equal(t, StateRecording, h.machine.State())
}
