package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-tasks/internal/delivery"
	"github.com/adanyl0v/go-tasks/internal/delivery/function"
	"github.com/adanyl0v/go-tasks/internal/models"
	"github.com/adanyl0v/go-tasks/internal/services"
)

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req delivery.CreateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.fail(c, delivery.ValidationError(err), "failed to bind json")
		return
	}

	params, err := req.Params(userID)
	if err != nil {
		h.fail(c, err, "invalid create task request")
		return
	}

	task, err := h.tasks.CreateTask(c, params)
	if err != nil {
		h.fail(c, err, "failed to create task")
		return
	}

	c.JSON(http.StatusCreated, delivery.NewTaskResponse(task))
}

func (h *handlerImpl) HandleListTasks(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	page, err := intQuery(c, "page")
	if err != nil {
		h.fail(c, err, "invalid page")
		return
	}
	size, err := intQuery(c, "size")
	if err != nil {
		h.fail(c, err, "invalid size")
		return
	}

	p, s, err := delivery.ResolvePage(page, size)
	if err != nil {
		h.fail(c, err, "invalid paging")
		return
	}

	tasks, err := h.tasks.ListTasks(c, services.ListTasksParams{
		UserID: userID,
		Page:   p,
		Size:   s,
	})
	if err != nil {
		h.fail(c, err, "failed to list tasks")
		return
	}
	h.logger.Debug().
		Int("count", len(tasks)).
		Msg("listed tasks")

	c.JSON(http.StatusOK, delivery.NewTaskPageResponse(tasks, p, s))
}

func (h *handlerImpl) HandleGetTask(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(c, services.GetTaskParams{
		ID:     c.Param("id"),
		UserID: userID,
	})
	if err != nil {
		h.fail(c, err, "failed to get task")
		return
	}

	c.JSON(http.StatusOK, delivery.NewTaskResponse(task))
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req delivery.UpdateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.fail(c, delivery.ValidationError(err), "failed to bind json")
		return
	}

	params, err := req.Params(c.Param("id"), userID)
	if err != nil {
		h.fail(c, err, "invalid update task request")
		return
	}

	task, err := h.tasks.UpdateTask(c, params)
	if err != nil {
		h.fail(c, err, "failed to update task")
		return
	}

	c.JSON(http.StatusOK, delivery.NewTaskResponse(task))
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	deleted, err := h.tasks.DeleteTask(c, services.DeleteTaskParams{
		ID:     c.Param("id"),
		UserID: userID,
	})
	if err != nil {
		h.fail(c, err, "failed to delete task")
		return
	}
	if !deleted {
		h.fail(c, models.ErrTaskNotFound, "task vanished before delete")
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleInvokeFunction exposes the function router over HTTP. The request
// body is the operation payload; the task id comes from the path or the
// taskId query parameter.
func (h *handlerImpl) HandleInvokeFunction(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, models.NewError(models.ErrorKindInvalidInput, "failed to read body: %v", err), "failed to read body")
		return
	}

	page, err := intQuery(c, "page")
	if err != nil {
		h.fail(c, err, "invalid page")
		return
	}
	size, err := intQuery(c, "size")
	if err != nil {
		h.fail(c, err, "invalid size")
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		taskID = c.Query("taskId")
	}

	resp := h.functions.Invoke(c, function.Request{
		Operation: c.Param("operation"),
		UserID:    userID,
		TaskID:    taskID,
		Body:      body,
		Page:      page,
		Size:      size,
	})
	c.JSON(resp.StatusCode, resp.Body)
}

func (h *handlerImpl) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlerImpl) userID(c *gin.Context) (string, bool) {
	userID, ok := getStringFromContext(c, userIDCtxKey)
	if !ok || userID == "" {
		h.logger.Error().Msg("no user id found in context")
		abort(c, newUnauthorizedError(errMissingIdentity.Error()))
		return "", false
	}
	return userID, true
}

func intQuery(c *gin.Context, name string) (*int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, models.NewError(models.ErrorKindInvalidInput, "%s must be an integer", name)
	}
	return &v, nil
}
