package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/aurano/api/transport"
	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/internal/infrastructure/boltdb"
	"github.com/fastygo/aurano/internal/infrastructure/monitor"
	"github.com/fastygo/aurano/internal/services"
	"github.com/fastygo/aurano/pkg/httpcontext"
	boltRepo "github.com/fastygo/aurano/repository/bolt"
	"github.com/fastygo/aurano/usecase/capture"
	taskUC "github.com/fastygo/aurano/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Meta   json.RawMessage `json:"meta"`
}

func newRegistry(t *testing.T) *taskUC.Registry {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "store.db"), boltRepo.Bucket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry, err := taskUC.NewRegistry(taskUC.Deps{Repo: boltRepo.NewUserDataRepository(db)}, 8)
	require.NoError(t, err)
	return registry
}

// call runs h as userID with an optional JSON body and path parameters given as name/value pairs.
func call(t *testing.T, h fasthttp.RequestHandler, userID string, body interface{}, params ...string) (int, envelope) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		ctx.Request.SetBody(raw)
	}
	if userID != "" {
		httpcontext.SetUserID(&ctx, userID)
	}
	for i := 0; i+1 < len(params); i += 2 {
		ctx.SetUserValue(params[i], params[i+1])
	}
	h(&ctx)

	var env envelope
	if len(ctx.Response.Body()) > 0 {
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	}
	return ctx.Response.StatusCode(), env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestTaskHandler_CreateIsIdempotentForPendingTitle(t *testing.T) {
	h := NewTaskHandler(newRegistry(t), httpcontext.NewAdapter(time.Second), nil)

	status, env := call(t, h.CreateTask, "u1", transport.TaskRequest{Title: "Buy milk", Category: "personal", DueDate: "2026-10-20"})
	require.Equal(t, http.StatusCreated, status)
	var first transport.AddTaskResponse
	decodeData(t, env, &first)
	assert.True(t, first.Created)
	assert.Equal(t, domain.CategoryPersonal, first.Task.Category)
	require.NotNil(t, first.Task.DueDate)

	status, env = call(t, h.CreateTask, "u1", transport.TaskRequest{Title: "  buy MILK "})
	require.Equal(t, http.StatusOK, status)
	var second transport.AddTaskResponse
	decodeData(t, env, &second)
	assert.False(t, second.Created)
	assert.Equal(t, first.Task.ID, second.Task.ID)

	status, env = call(t, h.GetTasks, "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var tasks []domain.Task
	decodeData(t, env, &tasks)
	assert.Len(t, tasks, 1)
}

func TestTaskHandler_Validation(t *testing.T) {
	h := NewTaskHandler(newRegistry(t), nil, nil)

	tests := []struct {
		name string
		req  transport.TaskRequest
		code string
	}{
		{name: "blank title", req: transport.TaskRequest{Title: "  "}, code: "INVALID"},
		{name: "unknown category", req: transport.TaskRequest{Title: "x", Category: "chores"}, code: "INVALID"},
		{name: "bad due date", req: transport.TaskRequest{Title: "x", DueDate: "next week"}, code: "INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := call(t, h.CreateTask, "u1", tt.req)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestTaskHandler_RequiresUser(t *testing.T) {
	h := NewTaskHandler(newRegistry(t), nil, nil)
	status, env := call(t, h.GetTasks, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestTaskHandler_CompleteReopenDelete(t *testing.T) {
	registry := newRegistry(t)
	tasks := NewTaskHandler(registry, nil, nil)
	data := NewDataHandler(registry, nil, nil)

	_, env := call(t, tasks.CreateTask, "u1", transport.TaskRequest{Title: "Write report"})
	var created transport.AddTaskResponse
	decodeData(t, env, &created)
	id := created.Task.ID

	status, _ := call(t, tasks.CompleteTask, "u1", nil, "id", id)
	require.Equal(t, http.StatusOK, status)

	_, env = call(t, data.GetMetrics, "u1", nil)
	var metrics domain.Metrics
	decodeData(t, env, &metrics)
	assert.Equal(t, 100, metrics.ProductivityScore)
	assert.Equal(t, 1, metrics.TotalTasksCompleted)

	status, _ = call(t, tasks.ReopenTask, "u1", nil, "id", id)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, tasks.CompleteTask, "u1", nil, "id", "missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)

	status, _ = call(t, tasks.DeleteTask, "u1", nil, "id", id)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, tasks.DeleteTask, "u1", nil, "id", id)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskHandler_ListFilters(t *testing.T) {
	h := NewTaskHandler(newRegistry(t), nil, nil)
	call(t, h.CreateTask, "u1", transport.TaskRequest{Title: "Gym", Category: "Health"})
	call(t, h.CreateTask, "u1", transport.TaskRequest{Title: "Deploy", Category: "Work"})

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/api/v1/tasks?category=health")
	httpcontext.SetUserID(&ctx, "u1")
	h.GetTasks(&ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var env envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	var tasks []domain.Task
	decodeData(t, env, &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Gym", tasks[0].Title)

	var bad fasthttp.RequestCtx
	bad.Request.SetRequestURI("/api/v1/tasks?status=archived")
	httpcontext.SetUserID(&bad, "u1")
	h.GetTasks(&bad)
	assert.Equal(t, http.StatusBadRequest, bad.Response.StatusCode())
}

func TestHabitAndFocusHandlers(t *testing.T) {
	registry := newRegistry(t)
	habits := NewHabitHandler(registry, nil, nil)
	data := NewDataHandler(registry, nil, nil)

	status, env := call(t, habits.CreateHabit, "u1", transport.HabitRequest{Title: "Read", Frequency: "daily"})
	require.Equal(t, http.StatusCreated, status)
	var habit domain.Habit
	decodeData(t, env, &habit)

	status, env = call(t, habits.CompleteHabit, "u1", nil, "id", habit.ID)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &habit)
	assert.Equal(t, 1, habit.Streak)

	status, _ = call(t, data.RecordFocus, "u1", nil, "event", "completed")
	assert.Equal(t, http.StatusCreated, status)
	status, _ = call(t, data.RecordFocus, "u1", nil, "event", "paused")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, data.GetData, "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var snapshot domain.UserData
	decodeData(t, env, &snapshot)
	require.Len(t, snapshot.Activities, 1)
	assert.Equal(t, domain.ActivityFocusSessionCompleted, snapshot.Activities[0].Type)

	status, _ = call(t, habits.DeleteHabit, "u1", nil, "id", habit.ID)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, habits.CompleteHabit, "u1", nil, "id", habit.ID)
	assert.Equal(t, http.StatusNotFound, status)
}

func newCaptureHandler(t *testing.T, speech bool) (*CaptureHandler, *taskUC.Registry) {
	t.Helper()
	registry := newRegistry(t)
	sessions := services.NewCaptureSessions(registry, services.CaptureConfig{SpeechEnabled: speech}, nil)
	t.Cleanup(sessions.Close)
	return NewCaptureHandler(sessions, nil, nil), registry
}

func captureState(t *testing.T, env envelope) transport.CaptureResponse {
	t.Helper()
	var resp transport.CaptureResponse
	decodeData(t, env, &resp)
	return resp
}

func TestCaptureHandler_VoiceToTask(t *testing.T) {
	h, registry := newCaptureHandler(t, true)

	status, env := call(t, h.Start, "u1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, capture.StateRecording, captureState(t, env).State)

	status, env = call(t, h.DeliverResult, "u1", transport.RecognitionResultRequest{
		Index:        0,
		IsFinal:      true,
		Alternatives: []capture.Alternative{{Transcript: "Call the dentist. Due tomorrow", Confidence: 0.9}},
	})
	require.Equal(t, http.StatusAccepted, status)
	var delivery transport.DeliveryResponse
	decodeData(t, env, &delivery)
	assert.True(t, delivery.Delivered)

	status, env = call(t, h.Stop, "u1", nil)
	require.Equal(t, http.StatusOK, status)
	stopped := captureState(t, env)
	assert.Equal(t, capture.StateProcessing, stopped.State)
	assert.True(t, stopped.Finalize)

	status, _ = call(t, h.DeliverEnd, "u1", nil)
	require.Equal(t, http.StatusAccepted, status)

	_, env = call(t, h.GetCapture, "u1", nil)
	completed := captureState(t, env)
	require.Equal(t, capture.StateCompleted, completed.State)
	assert.Equal(t, "Call the dentist", completed.Draft.Title)
	assert.NotNil(t, completed.Draft.DueDate)

	status, _ = call(t, h.UpdateDraft, "u1", transport.DraftRequest{Title: "Call the dentist", Category: "health"})
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, h.Submit, "u1", nil)
	require.Equal(t, http.StatusCreated, status)
	var added transport.AddTaskResponse
	decodeData(t, env, &added)
	assert.Equal(t, domain.CategoryHealth, added.Task.Category)

	store, err := registry.Open(t.Context(), "u1")
	require.NoError(t, err)
	assert.Len(t, store.ListTasks(taskUC.TaskFilter{}), 1)
}

func TestCaptureHandler_Errors(t *testing.T) {
	h, _ := newCaptureHandler(t, false)

	status, env := call(t, h.Start, "u1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "UNAVAILABLE", env.Code)

	status, env = call(t, h.Submit, "u1", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Code)

	status, env = call(t, h.DeliverEnd, "nobody", nil)
	require.Equal(t, http.StatusAccepted, status)
	var delivery transport.DeliveryResponse
	decodeData(t, env, &delivery)
	assert.False(t, delivery.Delivered)
}

type fixedStatus monitor.Status

func (s fixedStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealthHandler(t *testing.T) {
	status, env := call(t, NewHealthHandler(fixedStatus{Backend: "bolt", Online: true}, nil, nil).Check, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)

	status, env = call(t, NewHealthHandler(fixedStatus{Backend: "redis"}, nil, nil).Check, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEGRADED", env.Code)
}
