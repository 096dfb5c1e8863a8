package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/aurano/api/handler"
	"github.com/fastygo/aurano/internal/middleware"
)

type Handlers struct {
	Task    *apiHandler.TaskHandler
	Habit   *apiHandler.HabitHandler
	Data    *apiHandler.DataHandler
	Capture *apiHandler.CaptureHandler
	Health  *apiHandler.HealthHandler
}

// New wires the public health endpoint and the authenticated API.
// protect wraps every /api/v1 route, outermost first.
func New(handlers Handlers, protect ...middleware.Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")
	guard := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return middleware.Chain(h, protect...)
	}

	api.GET("/data", guard(handlers.Data.GetData))
	api.GET("/metrics", guard(handlers.Data.GetMetrics))
	api.POST("/focus/{event}", guard(handlers.Data.RecordFocus))

	api.GET("/tasks", guard(handlers.Task.GetTasks))
	api.POST("/tasks", guard(handlers.Task.CreateTask))
	api.POST("/tasks/{id}/complete", guard(handlers.Task.CompleteTask))
	api.POST("/tasks/{id}/reopen", guard(handlers.Task.ReopenTask))
	api.DELETE("/tasks/{id}", guard(handlers.Task.DeleteTask))

	api.POST("/habits", guard(handlers.Habit.CreateHabit))
	api.POST("/habits/{id}/complete", guard(handlers.Habit.CompleteHabit))
	api.DELETE("/habits/{id}", guard(handlers.Habit.DeleteHabit))

	api.GET("/capture", guard(handlers.Capture.GetCapture))
	api.POST("/capture/start", guard(handlers.Capture.Start))
	api.POST("/capture/stop", guard(handlers.Capture.Stop))
	api.POST("/capture/abort", guard(handlers.Capture.Abort))
	api.PUT("/capture/draft", guard(handlers.Capture.UpdateDraft))
	api.POST("/capture/submit", guard(handlers.Capture.Submit))
	api.POST("/capture/results", guard(handlers.Capture.DeliverResult))
	api.POST("/capture/end", guard(handlers.Capture.DeliverEnd))
	api.POST("/capture/error", guard(handlers.Capture.DeliverError))

	return r
}
