// Package memory keeps tasks in a process-local map. It backs local runs
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/adanyl0v/go-tasks/internal/models"
)

type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[string]models.Task)}
}

// Save stores the task, replacing any task with the same id.
func (r *TaskRepository) Save(_ context.Context, task models.Task) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[task.ID()] = task
	return task, nil
}

func (r *TaskRepository) FindByID(_ context.Context, id string) (models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return models.Task{}, models.ErrTaskNotFound
	}
	return task, nil
}

func (r *TaskRepository) FindByUserAndDateAndDescription(
	_ context.Context,
	userID string,
	day models.Date,
	description string,
) (models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, task := range r.tasks {
		if task.UserID() == userID && task.WasCreatedOn(day) && task.Description() == description {
			return task, nil
		}
	}
	return models.Task{}, models.ErrTaskNotFound
}

func (r *TaskRepository) CountHighPriorityForUserOn(_ context.Context, day models.Date, userID string) (int64, error) {
	return r.count(func(task models.Task) bool {
		return task.UserID() == userID && task.WasCreatedOn(day) && task.IsHighPriority()
	}), nil
}

func (r *TaskRepository) CountOpenByUser(_ context.Context, userID string) (int64, error) {
	return r.count(func(task models.Task) bool {
		return task.UserID() == userID && task.IsOpen()
	}), nil
}

// ListByUser returns the user's tasks newest first. Ties are broken by id
// so that pages are stable.
func (r *TaskRepository) ListByUser(_ context.Context, userID string, page, size int) ([]models.Task, error) {
	r.mu.RLock()
	owned := make([]models.Task, 0)
	for _, task := range r.tasks {
		if task.UserID() == userID {
			owned = append(owned, task)
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt().Equal(owned[j].CreatedAt()) {
			return owned[i].CreatedAt().After(owned[j].CreatedAt())
		}
		return owned[i].ID() < owned[j].ID()
	})

	if page < 0 || size < 1 {
		return []models.Task{}, nil
	}
	offset := int64(page) * int64(size)
	if offset >= int64(len(owned)) {
		return []models.Task{}, nil
	}
	end := offset + int64(size)
	if end > int64(len(owned)) {
		end = int64(len(owned))
	}
	return owned[offset:end], nil
}

func (r *TaskRepository) DeleteByIDAndUser(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok || task.UserID() != userID {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

func (r *TaskRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

func (r *TaskRepository) count(match func(models.Task) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, task := range r.tasks {
		if match(task) {
			n++
		}
	}
	return n
}
