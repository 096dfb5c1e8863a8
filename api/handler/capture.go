package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/api/transport"
	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/internal/services"
	"github.com/fastygo/aurano/pkg/httpcontext"
	"github.com/fastygo/aurano/usecase/capture"
)

// CaptureSessionStore hands out per-user capture sessions. services.CaptureSessions satisfies it.
type CaptureSessionStore interface {
	Get(userID string) *services.CaptureSession
	Peek(userID string) (*services.CaptureSession, bool)
}

// CaptureHandler drives the voice capture flow. The browser runs the recognizer and relays
// its events here; the server owns the state machine and the draft.
type CaptureHandler struct {
	baseHandler
	sessions CaptureSessionStore
}

func NewCaptureHandler(sessions CaptureSessionStore, adapter *httpcontext.Adapter, logger *zap.Logger) *CaptureHandler {
	return &CaptureHandler{
		baseHandler: newBaseHandler(adapter, logger),
		sessions:    sessions,
	}
}

// @Summary Current capture state
// @Tags capture
// @Router /api/v1/capture [get]
func (h *CaptureHandler) GetCapture(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	h.respondCapture(ctx, http.StatusOK, session)
}

// @Summary Start a capture attempt
// @Tags capture
// @Router /api/v1/capture/start [post]
func (h *CaptureHandler) Start(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	if err := session.Machine.Start(); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondCapture(ctx, http.StatusOK, session)
}

// @Summary Stop recording and wait for final results
// @Tags capture
// @Router /api/v1/capture/stop [post]
func (h *CaptureHandler) Stop(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	if err := session.Machine.Stop(); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondCapture(ctx, http.StatusOK, session)
}

// @Summary Abort the attempt and discard the draft
// @Tags capture
// @Router /api/v1/capture/abort [post]
func (h *CaptureHandler) Abort(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	session.Machine.Abort()
	h.respondCapture(ctx, http.StatusOK, session)
}

// @Summary Edit the draft
// @Tags capture
// @Router /api/v1/capture/draft [put]
func (h *CaptureHandler) UpdateDraft(ctx *fasthttp.RequestCtx) {
	var req transport.DraftRequest
	if !h.decode(ctx, &req) {
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	err = session.Machine.SetDraft(capture.Draft{
		Title:       req.Title,
		Category:    domain.Category(req.Category),
		Description: req.Description,
		DueDate:     due,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondCapture(ctx, http.StatusOK, session)
}

// @Summary Submit the draft as a task
// @Tags capture
// @Router /api/v1/capture/submit [post]
func (h *CaptureHandler) Submit(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	out, err := session.Machine.Submit(stdCtx)
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

// @Summary Relay a recognition result
// @Tags capture
// @Router /api/v1/capture/results [post]
func (h *CaptureHandler) DeliverResult(ctx *fasthttp.RequestCtx) {
	var req transport.RecognitionResultRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.Index < 0 {
		h.respondInvalid(ctx, "index must not be negative")
		return
	}
	h.relay(ctx, func(session *services.CaptureSession) bool {
		return session.Relay.Deliver(capture.Result{
			Index:        req.Index,
			IsFinal:      req.IsFinal,
			Alternatives: req.Alternatives,
		})
	})
}

// @Summary Relay the end of recognition
// @Tags capture
// @Router /api/v1/capture/end [post]
func (h *CaptureHandler) DeliverEnd(ctx *fasthttp.RequestCtx) {
	h.relay(ctx, func(session *services.CaptureSession) bool {
		return session.Relay.Finish()
	})
}

// @Summary Relay a recognition error
// @Tags capture
// @Router /api/v1/capture/error [post]
func (h *CaptureHandler) DeliverError(ctx *fasthttp.RequestCtx) {
	var req transport.RecognitionErrorRequest
	if !h.decode(ctx, &req) {
		return
	}
	h.relay(ctx, func(session *services.CaptureSession) bool {
		return session.Relay.Fail(req.Code, req.Message)
	})
}

// relay forwards an event to an existing session without creating one.
// Events for a missing or closed session are acknowledged and dropped.
func (h *CaptureHandler) relay(ctx *fasthttp.RequestCtx, deliver func(*services.CaptureSession) bool) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	delivered := false
	if session, ok := h.sessions.Peek(userID); ok {
		delivered = deliver(session)
	}
	h.respondSuccess(ctx, http.StatusAccepted, transport.DeliveryResponse{Delivered: delivered})
}

func (h *CaptureHandler) session(ctx *fasthttp.RequestCtx) (*services.CaptureSession, bool) {
	userID := h.userID(ctx)
	if userID == "" {
		return nil, false
	}
	return h.sessions.Get(userID), true
}

func (h *CaptureHandler) respondCapture(ctx *fasthttp.RequestCtx, status int, session *services.CaptureSession) {
	h.respondSuccess(ctx, status, transport.CaptureResponse{
		Snapshot: session.Machine.Snapshot(),
		Finalize: session.Relay.Stopping(),
	})
}
