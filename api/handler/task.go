package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/api/transport"
	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/pkg/httpcontext"
	taskUC "github.com/fastygo/aurano/usecase/task"
)

// storeHandler resolves the caller's store before running an operation.
type storeHandler struct {
	baseHandler
	stores StoreOpener
}

// open answers the request itself and reports false when no store is available.
func (h storeHandler) open(ctx *fasthttp.RequestCtx) (*taskUC.Store, context.Context, context.CancelFunc, bool) {
	userID := h.userID(ctx)
	if userID == "" {
		return nil, nil, nil, false
	}
	stdCtx, cancel := h.requestContext(ctx)
	store, err := h.stores.Open(stdCtx, userID)
	if err != nil {
		cancel()
		h.respondError(ctx, err)
		return nil, nil, nil, false
	}
	return store, stdCtx, cancel, true
}

type TaskHandler struct {
	storeHandler
}

func NewTaskHandler(stores StoreOpener, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{storeHandler{baseHandler: newBaseHandler(adapter, logger), stores: stores}}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := taskUC.TaskFilter{
		Query:  string(args.Peek("q")),
		Status: taskUC.Status(args.Peek("status")),
	}
	switch filter.Status {
	case taskUC.StatusAll, taskUC.StatusPending, taskUC.StatusCompleted:
	default:
		h.respondInvalid(ctx, "status must be pending or completed")
		return
	}
	if raw := string(args.Peek("category")); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		filter.Category = category
	}

	store, _, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	tasks := store.ListTasks(filter)
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(tasks, transport.ListMeta{Count: len(tasks)}))
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	out, err := store.AddTask(stdCtx, taskUC.AddTaskInput{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		DueDate:     due,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	h.respondSuccess(ctx, status, transport.AddTaskResponse{Task: out.Task, Created: out.Created})
}

// @Summary Complete task
// @Tags tasks
// @Router /api/v1/tasks/{id}/complete [post]
func (h *TaskHandler) CompleteTask(ctx *fasthttp.RequestCtx) {
	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	task, found := store.CompleteTask(stdCtx, pathParam(ctx, "id"))
	if !found {
		h.respondError(ctx, domain.ErrTaskNotFound)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Reopen a completed task
// @Tags tasks
// @Router /api/v1/tasks/{id}/reopen [post]
func (h *TaskHandler) ReopenTask(ctx *fasthttp.RequestCtx) {
	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	task, err := store.ReopenTask(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	if !store.DeleteTask(stdCtx, pathParam(ctx, "id")) {
		h.respondError(ctx, domain.ErrTaskNotFound)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}
