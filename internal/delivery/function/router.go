// Package function dispatches cloud function style invocations to the
// task service. One Request names the operation and carries its inputs.
package function

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-tasks/internal/delivery"
	"github.com/adanyl0v/go-tasks/internal/models"
	"github.com/adanyl0v/go-tasks/internal/services"
)

const (
	OperationCreateTask      = "createTask"
	OperationUpdateTask      = "updateTask"
	OperationGetTaskByID     = "getTaskById"
	OperationListTasksByUser = "listTasksByUser"
	OperationDeleteTask      = "deleteTask"
)

type Request struct {
	Operation string          `json:"operation" binding:"required"`
	UserID    string          `json:"userId" binding:"required"`
	TaskID    string          `json:"taskId,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
	Page      *int            `json:"page,omitempty"`
	Size      *int            `json:"size,omitempty"`
}

type Response struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Router struct {
	logger   zerolog.Logger
	tasks    services.TaskService
	validate *validator.Validate
}

func NewRouter(logger zerolog.Logger, tasks services.TaskService) *Router {
	return &Router{
		logger:   logger,
		tasks:    tasks,
		validate: delivery.NewValidator(),
	}
}

// Invoke never returns a Go error: every failure is encoded in the
// response status and body.
func (r *Router) Invoke(ctx context.Context, req Request) Response {
	err := r.check(req)
	if err != nil {
		return r.fail(req, err)
	}

	var resp Response
	switch req.Operation {
	case OperationCreateTask:
		resp, err = r.createTask(ctx, req)
	case OperationUpdateTask:
		resp, err = r.updateTask(ctx, req)
	case OperationGetTaskByID:
		resp, err = r.getTask(ctx, req)
	case OperationListTasksByUser:
		resp, err = r.listTasks(ctx, req)
	case OperationDeleteTask:
		resp, err = r.deleteTask(ctx, req)
	default:
		err = models.NewError(models.ErrorKindInvalidInput, "unknown operation: %q", req.Operation)
	}
	if err != nil {
		return r.fail(req, err)
	}

	r.logger.Debug().
		Str("operation", req.Operation).
		Int("status", resp.StatusCode).
		Msg("invoked function")
	return resp
}

func (r *Router) createTask(ctx context.Context, req Request) (Response, error) {
	var body delivery.CreateTaskRequest
	err := r.decode(req.Body, &body)
	if err != nil {
		return Response{}, err
	}

	params, err := body.Params(req.UserID)
	if err != nil {
		return Response{}, err
	}

	task, err := r.tasks.CreateTask(ctx, params)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: http.StatusCreated, Body: delivery.NewTaskResponse(task)}, nil
}

func (r *Router) updateTask(ctx context.Context, req Request) (Response, error) {
	err := requireTaskID(req)
	if err != nil {
		return Response{}, err
	}

	var body delivery.UpdateTaskRequest
	err = r.decode(req.Body, &body)
	if err != nil {
		return Response{}, err
	}

	params, err := body.Params(req.TaskID, req.UserID)
	if err != nil {
		return Response{}, err
	}

	task, err := r.tasks.UpdateTask(ctx, params)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: http.StatusOK, Body: delivery.NewTaskResponse(task)}, nil
}

func (r *Router) getTask(ctx context.Context, req Request) (Response, error) {
	err := requireTaskID(req)
	if err != nil {
		return Response{}, err
	}

	task, err := r.tasks.GetTask(ctx, services.GetTaskParams{ID: req.TaskID, UserID: req.UserID})
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: http.StatusOK, Body: delivery.NewTaskResponse(task)}, nil
}

func (r *Router) listTasks(ctx context.Context, req Request) (Response, error) {
	page, size, err := delivery.ResolvePage(req.Page, req.Size)
	if err != nil {
		return Response{}, err
	}

	tasks, err := r.tasks.ListTasks(ctx, services.ListTasksParams{UserID: req.UserID, Page: page, Size: size})
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: http.StatusOK, Body: delivery.NewTaskPageResponse(tasks, page, size)}, nil
}

func (r *Router) deleteTask(ctx context.Context, req Request) (Response, error) {
	err := requireTaskID(req)
	if err != nil {
		return Response{}, err
	}

	deleted, err := r.tasks.DeleteTask(ctx, services.DeleteTaskParams{ID: req.TaskID, UserID: req.UserID})
	if err != nil {
		return Response{}, err
	}
	if !deleted {
		return Response{}, models.ErrTaskNotFound
	}
	return Response{StatusCode: http.StatusOK, Body: MessageResponse{Message: "task deleted"}}, nil
}

func (r *Router) check(req Request) error {
	err := r.validate.Struct(req)
	if err == nil {
		return nil
	}
	return delivery.ValidationError(err)
}

// decode reads a JSON body strictly and validates its binding tags.
func (r *Router) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return models.NewError(models.ErrorKindInvalidInput, "request body is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err != nil {
		return models.NewError(models.ErrorKindInvalidInput, "invalid request body: %v", err)
	}

	err = r.validate.Struct(dst)
	if err != nil {
		return delivery.ValidationError(err)
	}
	return nil
}

func (r *Router) fail(req Request, err error) Response {
	status := delivery.HTTPStatus(err)
	event := r.logger.Warn()
	if status == http.StatusInternalServerError {
		event = r.logger.Error()
	}
	event.
		Err(err).
		Str("operation", req.Operation).
		Str("user_id", req.UserID).
		Int("status", status).
		Msg("function invocation failed")

	return Response{StatusCode: status, Body: delivery.NewErrorResponse(err)}
}

func requireTaskID(req Request) error {
	if strings.TrimSpace(req.TaskID) == "" {
		return models.NewError(models.ErrorKindInvalidInput, "taskId is required")
	}
	return nil
}
