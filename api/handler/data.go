package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/pkg/httpcontext"
)

// DataHandler serves the dashboard aggregate and focus session events.
type DataHandler struct {
	storeHandler
}

func NewDataHandler(stores StoreOpener, adapter *httpcontext.Adapter, logger *zap.Logger) *DataHandler {
	return &DataHandler{storeHandler{baseHandler: newBaseHandler(adapter, logger), stores: stores}}
}

// @Summary Full user data
// @Tags data
// @Router /api/v1/data [get]
func (h *DataHandler) GetData(ctx *fasthttp.RequestCtx) {
	store, _, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()
	h.respondSuccess(ctx, http.StatusOK, store.Snapshot())
}

// @Summary Productivity metrics
// @Tags data
// @Router /api/v1/metrics [get]
func (h *DataHandler) GetMetrics(ctx *fasthttp.RequestCtx) {
	store, _, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()
	h.respondSuccess(ctx, http.StatusOK, store.Metrics())
}

// @Summary Record a focus session event
// @Tags focus
// @Router /api/v1/focus/{event} [post]
func (h *DataHandler) RecordFocus(ctx *fasthttp.RequestCtx) {
	var completed bool
	switch pathParam(ctx, "event") {
	case "started":
	case "completed":
		completed = true
	default:
		h.respondInvalid(ctx, "event must be started or completed")
		return
	}

	store, stdCtx, cancel, ok := h.open(ctx)
	if !ok {
		return
	}
	defer cancel()
	h.respondSuccess(ctx, http.StatusCreated, store.RecordFocusSession(stdCtx, completed))
}
