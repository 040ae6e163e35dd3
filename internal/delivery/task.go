package delivery

import (
	"time"

	"github.com/adanyl0v/go-tasks/internal/models"
	"github.com/adanyl0v/go-tasks/internal/services"
)

const (
	DefaultPage     = 0
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type TaskResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewTaskResponse(task models.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID(),
		UserID:      task.UserID(),
		Description: task.Description(),
		Priority:    string(task.Priority()),
		Status:      string(task.Status()),
		CreatedAt:   task.CreatedAt().UTC(),
		UpdatedAt:   task.UpdatedAt().UTC(),
	}
}

type TaskPageResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

func NewTaskPageResponse(tasks []models.Task, page, size int) TaskPageResponse {
	response := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		response[i] = NewTaskResponse(task)
	}
	return TaskPageResponse{Tasks: response, Page: page, Size: size}
}

type CreateTaskRequest struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description" binding:"required"`
	Priority    string `json:"priority" binding:"required"`
}

func (r CreateTaskRequest) Params(userID string) (services.CreateTaskParams, error) {
	priority, err := models.ParsePriority(r.Priority)
	if err != nil {
		return services.CreateTaskParams{}, err
	}
	return services.CreateTaskParams{
		ID:          r.ID,
		UserID:      userID,
		Description: r.Description,
		Priority:    priority,
	}, nil
}

// UpdateTaskRequest fields left out of the body are kept unchanged.
type UpdateTaskRequest struct {
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (r UpdateTaskRequest) Params(id, userID string) (services.UpdateTaskParams, error) {
	params := services.UpdateTaskParams{
		ID:          id,
		UserID:      userID,
		Description: r.Description,
	}

	if r.Priority != nil {
		priority, err := models.ParsePriority(*r.Priority)
		if err != nil {
			return services.UpdateTaskParams{}, err
		}
		params.Priority = &priority
	}

	if r.Status != nil {
		status, err := models.ParseStatus(*r.Status)
		if err != nil {
			return services.UpdateTaskParams{}, err
		}
		params.Status = &status
	}
	return params, nil
}

// ResolvePage applies the defaults to missing values and caps the size.
func ResolvePage(page, size *int) (int, int, error) {
	p, s := DefaultPage, DefaultPageSize
	if page != nil {
		p = *page
	}
	if size != nil {
		s = *size
	}

	if p < 0 {
		return 0, 0, models.NewError(models.ErrorKindInvalidInput, "page must not be negative")
	}
	if s < 1 {
		return 0, 0, models.NewError(models.ErrorKindInvalidInput, "size must be positive")
	}
	if s > MaxPageSize {
		s = MaxPageSize
	}
	return p, s, nil
}
