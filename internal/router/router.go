package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/timesheet/api/handler"
)

type Handlers struct {
	Task         *apiHandler.TaskHandler
	Contribution *apiHandler.ContributionHandler
	Duration     *apiHandler.DurationHandler
	Health       *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")

	// Task tree
	api.GET("/tasks", authMiddleware(handlers.Task.ListTasks))
	api.POST("/tasks", authMiddleware(handlers.Task.CreateTask))
	api.GET("/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	api.PUT("/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	api.DELETE("/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	api.POST("/tasks/{id}/move-up", authMiddleware(handlers.Task.MoveUp))
	api.POST("/tasks/{id}/move-down", authMiddleware(handlers.Task.MoveDown))
	api.POST("/tasks/{id}/position", authMiddleware(handlers.Task.MoveToPosition))
	api.GET("/tasks/{id}/parent", authMiddleware(handlers.Task.GetParent))
	api.POST("/tasks/{id}/parent", authMiddleware(handlers.Task.MoveToParent))

	// Rollups
	api.GET("/tasks/{id}/sums", authMiddleware(handlers.Task.GetTaskSums))
	api.GET("/sums", authMiddleware(handlers.Task.GetForestSums))

	// Contributions
	api.GET("/contributions", authMiddleware(handlers.Contribution.List))
	api.GET("/contributions/sum", authMiddleware(handlers.Contribution.Sum))
	api.GET("/contributions/count", authMiddleware(handlers.Contribution.Count))
	api.POST("/contributions", authMiddleware(handlers.Contribution.Create))
	api.PUT("/contributions", authMiddleware(handlers.Contribution.Update))
	api.DELETE("/contributions", authMiddleware(handlers.Contribution.Delete))

	// Durations
	api.GET("/durations", authMiddleware(handlers.Duration.List))
	api.POST("/durations", authMiddleware(handlers.Duration.Create))
	api.PUT("/durations/{id}/active", authMiddleware(handlers.Duration.SetActive))

	return r
}
