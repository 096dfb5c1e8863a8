package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/api/transport"
	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/pkg/httpcontext"
	taskUC "github.com/fastygo/aurano/usecase/task"
)

type HabitHandler struct {
	storeHandler
}

func NewHabitHandler(stores StoreOpener, adapter *httpcontext.Adapter, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{storeHandler{baseHandler: newBaseHandler(adapter, logger), stores: stores}}
}

// @Summary Create habit
// @Tags habits
// @Router /api/v1/habits [post]
func (h *HabitHandler) CreateHabit(ctx *fasthttp.RequestCtx) {
	var req transport.HabitRequest
	if !h.decode(ctx, &req) {
		return
	}

	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	habit, err := store.AddHabit(stdCtx, taskUC.AddHabitInput{
		Title:       req.Title,
		Description: req.Description,
		Frequency:   req.Frequency,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, habit)
}

// @Summary Complete habit for today
// @Tags habits
// @Router /api/v1/habits/{id}/complete [post]
func (h *HabitHandler) CompleteHabit(ctx *fasthttp.RequestCtx) {
	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	habit, err := store.CompleteHabit(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, habit)
}

// @Summary Delete habit
// @Tags habits
// @Router /api/v1/habits/{id} [delete]
func (h *HabitHandler) DeleteHabit(ctx *fasthttp.RequestCtx) {
	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()

	if !store.DeleteHabit(stdCtx, pathParam(ctx, "id")) {
		h.respondError(ctx, domain.ErrHabitNotFound)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}
