package services

import (
	"context"
	"time"

	"github.com/adanyl0v/go-tasks/internal/models"
)

type TaskService interface {
	// CreateTask validates the business rules for the user on the current
	// UTC day and persists a new open task.
	//
	// It returns an error of kind InvalidInput for malformed fields,
	// DuplicateDescription, HighPriorityQuotaExceeded or
	// OpenTaskQuotaExceeded when a rule is violated.
	CreateTask(ctx context.Context, params CreateTaskParams) (models.Task, error)

	// GetTask returns models.ErrTaskNotFound if the task doesn't exist
	// or models.ErrAccessDenied if it belongs to another user.
	GetTask(ctx context.Context, params GetTaskParams) (models.Task, error)

	// ListTasks returns a page of the user's tasks, newest first.
	// A page past the end is empty, not an error.
	ListTasks(ctx context.Context, params ListTasksParams) ([]models.Task, error)

	// UpdateTask applies only the supplied fields. The uniqueness and
	// quota rules are evaluated on the day the task was created.
	//
	// Completed tasks can't be updated at all and yield
	// models.ErrTaskImmutable.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (models.Task, error)

	// DeleteTask reports false when the task vanished between the
	// ownership check and the delete.
	DeleteTask(ctx context.Context, params DeleteTaskParams) (bool, error)
}

// TaskRepository is the storage contract of the task service.
// Lookups of a single task return models.ErrTaskNotFound when absent.
type TaskRepository interface {
	Save(ctx context.Context, task models.Task) (models.Task, error)
	FindByID(ctx context.Context, id string) (models.Task, error)
	FindByUserAndDateAndDescription(ctx context.Context, userID string, day models.Date, description string) (models.Task, error)
	CountHighPriorityForUserOn(ctx context.Context, day models.Date, userID string) (int64, error)
	CountOpenByUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, page, size int) ([]models.Task, error)
	DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error)
}

// FreshReader is implemented by repositories that may answer FindByID
// from a cache. FindByIDFresh always reads the backing store and is used
// wherever the read task feeds a business rule or a write.
type FreshReader interface {
	FindByIDFresh(ctx context.Context, id string) (models.Task, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() (string, error)
}

// UserLocker serializes the read-validate-save sequence of a single user.
// The returned function releases the lock.
type UserLocker interface {
	Lock(ctx context.Context, userID string) (func(), error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.TaskEvent) error
}

type CreateTaskParams struct {
	// ID is optional. A fresh one is generated when empty.
	ID          string
	UserID      string
	Description string
	Priority    models.Priority
}

type GetTaskParams struct {
	ID     string
	UserID string
}

type ListTasksParams struct {
	UserID string
	Page   int
	Size   int
}

type UpdateTaskParams struct {
	ID          string
	UserID      string
	Description *string
	Priority    *models.Priority
	Status      *models.Status
}

type DeleteTaskParams struct {
	ID     string
	UserID string
}
