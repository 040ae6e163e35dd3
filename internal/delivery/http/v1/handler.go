package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-tasks/internal/delivery"
	"github.com/adanyl0v/go-tasks/internal/delivery/function"
	"github.com/adanyl0v/go-tasks/internal/services"
)

type Handler interface {
	HandleAuthMiddleware(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleListTasks(c *gin.Context)
	HandleGetTask(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)

	HandleInvokeFunction(c *gin.Context)
	HandleHealth(c *gin.Context)
}

type handlerImpl struct {
	logger    zerolog.Logger
	tasks     services.TaskService
	functions *function.Router
	jwtIssuer string
	// Empty means identity is read from the X-User-Id header.
	jwtSigningKey []byte
}

func New(
	logger zerolog.Logger,
	taskService services.TaskService,
	functionRouter *function.Router,
	jwtIssuer string,
	jwtSigningKey string,
) Handler {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		delivery.RegisterJSONFieldNames(v)
	}

	return &handlerImpl{
		logger:        logger,
		tasks:         taskService,
		functions:     functionRouter,
		jwtIssuer:     jwtIssuer,
		jwtSigningKey: []byte(jwtSigningKey),
	}
}

// RegisterRoutes mounts the REST, function and health endpoints.
func RegisterRoutes(router gin.IRouter, h Handler) {
	router.GET("/healthz", h.HandleHealth)

	tasks := router.Group("/api/v1/tasks", h.HandleAuthMiddleware)
	tasks.POST("", h.HandleCreateTask)
	tasks.GET("", h.HandleListTasks)
	tasks.GET("/:id", h.HandleGetTask)
	tasks.PATCH("/:id", h.HandleUpdateTask)
	tasks.DELETE("/:id", h.HandleDeleteTask)

	functions := router.Group("/functions", h.HandleAuthMiddleware)
	functions.POST("/:operation", h.HandleInvokeFunction)
	functions.POST("/:operation/:id", h.HandleInvokeFunction)
}
