package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/usecase/capture"
	"github.com/fastygo/aurano/usecase/task"
)

type recordingSink struct {
	titles []string
}

func (s *recordingSink) AddTask(_ context.Context, in task.AddTaskInput) (task.AddTaskOutput, error) {
	s.titles = append(s.titles, in.Title)
	return task.AddTaskOutput{Created: true}, nil
}

func result(index int, final bool, text string) capture.Result {
	return capture.Result{Index: index, IsFinal: final, Alternatives: []capture.Alternative{{Transcript: text}}}
}

func TestRelay_DisabledIsUnavailable(t *testing.T) {
	relay := NewRelay(false, nil)
	machine := capture.NewMachine(capture.Config{Recognizer: relay})

	err := machine.Start()
	require.ErrorIs(t, err, domain.ErrRecognitionUnavailable)
	assert.Equal(t, capture.StateIdle, machine.State())
	assert.False(t, relay.Deliver(result(0, true, "ignored")))
}

func TestRelay_DrivesMachineToSubmission(t *testing.T) {
	relay := NewRelay(true, nil)
	sink := &recordingSink{}
	machine := capture.NewMachine(capture.Config{Recognizer: relay, Sink: sink})

	assert.False(t, relay.Deliver(result(0, true, "before start")))

	require.NoError(t, machine.Start())
	assert.True(t, relay.Deliver(result(0, false, "water")))
	assert.True(t, relay.Deliver(result(0, true, "Water the plants.")))

	require.NoError(t, machine.Stop())
	assert.True(t, relay.Stopping())
	assert.True(t, relay.Finish())
	assert.False(t, relay.Finish())
	assert.Equal(t, capture.StateCompleted, machine.State())

	_, err := machine.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Water the plants"}, sink.titles)
}

func TestRelay_FailAbandonsAttempt(t *testing.T) {
	relay := NewRelay(true, nil)
	var notified error
	machine := capture.NewMachine(capture.Config{
		Recognizer: relay,
		OnError:    func(err error) { notified = err },
	})

	require.NoError(t, machine.Start())
	require.True(t, relay.Fail("no-speech", "nothing heard"))

	snap := machine.Snapshot()
	assert.Equal(t, capture.StateIdle, snap.State)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "no-speech", snap.LastError.Code)
	assert.Error(t, notified)
	assert.False(t, relay.Deliver(result(0, true, "late")))
}

func TestRelay_AbortDropsLaterEvents(t *testing.T) {
	relay := NewRelay(true, nil)
	machine := capture.NewMachine(capture.Config{Recognizer: relay})

	require.NoError(t, machine.Start())
	machine.Abort()

	assert.False(t, relay.Deliver(result(0, true, "late")))
	assert.False(t, relay.Finish())
	assert.Equal(t, capture.StateIdle, machine.State())
	assert.Empty(t, machine.Snapshot().Transcript)
}
