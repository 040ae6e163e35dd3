package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-tasks/internal/models"
	"github.com/adanyl0v/go-tasks/internal/policy"
)

type TaskServiceOption func(s *taskServiceImpl)

// WithUserLocker makes create and update run inside a per-user critical
// section. Without it the count checks and the save can race.
func WithUserLocker(locker UserLocker) TaskServiceOption {
	return func(s *taskServiceImpl) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithEventPublisher(publisher EventPublisher) TaskServiceOption {
	return func(s *taskServiceImpl) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

type taskServiceImpl struct {
	logger    zerolog.Logger
	repo      TaskRepository
	policy    *policy.Policy
	clock     Clock
	ids       IDGenerator
	locker    UserLocker
	publisher EventPublisher
}

func NewTaskService(
	logger zerolog.Logger,
	repo TaskRepository,
	policy *policy.Policy,
	clock Clock,
	ids IDGenerator,
	opts ...TaskServiceOption,
) TaskService {
	s := &taskServiceImpl{
		logger:    logger,
		repo:      repo,
		policy:    policy,
		clock:     clock,
		ids:       ids,
		locker:    noopLocker{},
		publisher: noopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (models.Task, error) {
	userID, err := models.NormalizeUserID(params.UserID)
	if err != nil {
		return models.Task{}, err
	}
	description, err := models.NormalizeDescription(params.Description)
	if err != nil {
		return models.Task{}, err
	}
	if !params.Priority.IsValid() {
		return models.Task{}, models.NewError(models.ErrorKindInvalidInput, "invalid priority: %q", params.Priority)
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return models.Task{}, err
	}
	defer unlock()

	now := s.clock.Now().UTC()
	day := models.DateOf(now)

	facts, err := s.creationFacts(ctx, userID, day, description, params.Priority)
	if err != nil {
		return models.Task{}, err
	}

	err = s.policy.ValidateCreation(params.Priority, facts)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("date", day.String()).
			Msg("task creation rejected")
		return models.Task{}, err
	}

	id, err := s.taskID(ctx, params.ID)
	if err != nil {
		return models.Task{}, err
	}

	task, err := models.NewTask(id, userID, description, params.Priority, now)
	if err != nil {
		return models.Task{}, err
	}

	saved, err := s.repo.Save(ctx, task)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID()).
			Msg("failed to save task")
		return models.Task{}, err
	}

	s.logger.Info().
		Str("task_id", saved.ID()).
		Str("user_id", saved.UserID()).
		Str("priority", string(saved.Priority())).
		Msg("created task")

	s.publish(ctx, models.NewTaskEvent(models.TaskEventCreated, saved, now))
	return saved, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, params GetTaskParams) (models.Task, error) {
	task, err := s.findOwned(ctx, params.ID, params.UserID, false)
	if err != nil {
		return models.Task{}, err
	}

	s.logger.Debug().
		Str("task_id", task.ID()).
		Msg("selected task by id")
	return task, nil
}

func (s *taskServiceImpl) ListTasks(ctx context.Context, params ListTasksParams) ([]models.Task, error) {
	userID, err := models.NormalizeUserID(params.UserID)
	if err != nil {
		return nil, err
	}
	if params.Page < 0 {
		return nil, models.NewError(models.ErrorKindInvalidInput, "page must not be negative")
	}
	if params.Size < 1 {
		return nil, models.NewError(models.ErrorKindInvalidInput, "size must be positive")
	}

	tasks, err := s.repo.ListByUser(ctx, userID, params.Page, params.Size)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select tasks by user id")
		return nil, err
	}
	if tasks == nil {
		tasks = make([]models.Task, 0)
	}

	s.logger.Debug().
		Int("count", len(tasks)).
		Int("page", params.Page).
		Int("size", params.Size).
		Str("user_id", userID).
		Msg("selected tasks by user id")
	return tasks, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (models.Task, error) {
	userID, err := models.NormalizeUserID(params.UserID)
	if err != nil {
		return models.Task{}, err
	}
	id, err := normalizeTaskID(params.ID)
	if err != nil {
		return models.Task{}, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return models.Task{}, err
	}
	defer unlock()

	existing, err := s.find(ctx, id, true)
	if err != nil {
		return models.Task{}, err
	}

	// Ownership and immutability come first so that a completed task is
	// reported as such even when the requested values are malformed.
	err = s.policy.ValidateUpdatable(existing, userID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("task_id", id).
			Str("user_id", userID).
			Msg("task update rejected")
		return models.Task{}, err
	}

	changes, err := normalizeChanges(params)
	if err != nil {
		return models.Task{}, err
	}

	facts, err := s.updateFacts(ctx, existing, userID, changes)
	if err != nil {
		return models.Task{}, err
	}

	err = s.policy.ValidateUpdate(existing, userID, changes, facts)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("task_id", id).
			Str("user_id", userID).
			Msg("task update rejected")
		return models.Task{}, err
	}

	now := s.clock.Now().UTC()
	updated, err := applyChanges(existing, changes, now)
	if err != nil {
		return models.Task{}, err
	}

	if !contentChanged(existing, updated) {
		s.logger.Debug().
			Str("task_id", id).
			Msg("task left unchanged")
		return existing, nil
	}

	saved, err := s.repo.Save(ctx, updated)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to update task")
		return models.Task{}, err
	}

	s.logger.Info().
		Str("task_id", saved.ID()).
		Str("user_id", saved.UserID()).
		Str("status", string(saved.Status())).
		Msg("updated task")

	if existing.IsOpen() && saved.IsCompleted() {
		s.publish(ctx, models.NewTaskEvent(models.TaskEventCompleted, saved, now))
	}
	return saved, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, params DeleteTaskParams) (bool, error) {
	task, err := s.findOwned(ctx, params.ID, params.UserID, true)
	if err != nil {
		return false, err
	}

	deleted, err := s.repo.DeleteByIDAndUser(ctx, task.ID(), task.UserID())
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID()).
			Msg("failed to delete task")
		return false, err
	}
	if !deleted {
		s.logger.Info().
			Str("task_id", task.ID()).
			Msg("task vanished before delete")
		return false, nil
	}

	s.logger.Info().
		Str("task_id", task.ID()).
		Str("user_id", task.UserID()).
		Msg("deleted task")

	s.publish(ctx, models.NewTaskEvent(models.TaskEventDeleted, task, s.clock.Now()))
	return true, nil
}

func (s *taskServiceImpl) findOwned(ctx context.Context, id, userID string, fresh bool) (models.Task, error) {
	userID, err := models.NormalizeUserID(userID)
	if err != nil {
		return models.Task{}, err
	}
	id, err = normalizeTaskID(id)
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.find(ctx, id, fresh)
	if err != nil {
		return models.Task{}, err
	}

	err = s.policy.ValidateAccess(task, userID)
	if err != nil {
		s.logger.Warn().
			Str("task_id", id).
			Str("user_id", userID).
			Msg("access to foreign task denied")
		return models.Task{}, err
	}
	return task, nil
}

// find reads the task through the repository. With fresh set, a
// repository implementing FreshReader bypasses its cache.
func (s *taskServiceImpl) find(ctx context.Context, id string, fresh bool) (models.Task, error) {
	task, err := s.findByID(ctx, id, fresh)
	if err != nil {
		if errors.Is(err, models.ErrTaskNotFound) {
			s.logger.Debug().
				Str("task_id", id).
				Msg("task not found")
			return models.Task{}, models.ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to select task by id")
		return models.Task{}, err
	}
	return task, nil
}

func (s *taskServiceImpl) findByID(ctx context.Context, id string, fresh bool) (models.Task, error) {
	if reader, ok := s.repo.(FreshReader); ok && fresh {
		return reader.FindByIDFresh(ctx, id)
	}
	return s.repo.FindByID(ctx, id)
}

func (s *taskServiceImpl) creationFacts(
	ctx context.Context,
	userID string,
	day models.Date,
	description string,
	priority models.Priority,
) (policy.CreationFacts, error) {
	var (
		facts policy.CreationFacts
		err   error
	)

	facts.DescriptionExistsOnDate, err = s.descriptionExists(ctx, userID, day, description)
	if err != nil {
		return policy.CreationFacts{}, err
	}

	if priority == models.PriorityHigh {
		facts.HighPriorityCountOnDate, err = s.repo.CountHighPriorityForUserOn(ctx, day, userID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("user_id", userID).
				Msg("failed to count high priority tasks")
			return policy.CreationFacts{}, err
		}
	}

	facts.OpenTaskCount, err = s.repo.CountOpenByUser(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to count open tasks")
		return policy.CreationFacts{}, err
	}
	return facts, nil
}

// updateFacts only queries what the requested changes make relevant.
// Both lookups use the day the existing task was created.
func (s *taskServiceImpl) updateFacts(
	ctx context.Context,
	existing models.Task,
	userID string,
	changes models.TaskChanges,
) (policy.UpdateFacts, error) {
	var (
		facts policy.UpdateFacts
		err   error
	)
	day := models.DateOf(existing.CreatedAt())

	if policy.DescriptionChanges(existing, changes) {
		facts.DescriptionExistsOnDate, err = s.descriptionExists(ctx, userID, day, *changes.Description)
		if err != nil {
			return policy.UpdateFacts{}, err
		}
	}

	if policy.RaisesPriority(existing, changes) {
		facts.HighPriorityCountOnDate, err = s.repo.CountHighPriorityForUserOn(ctx, day, userID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("user_id", userID).
				Msg("failed to count high priority tasks")
			return policy.UpdateFacts{}, err
		}
	}
	return facts, nil
}

func (s *taskServiceImpl) descriptionExists(
	ctx context.Context,
	userID string,
	day models.Date,
	description string,
) (bool, error) {
	_, err := s.repo.FindByUserAndDateAndDescription(ctx, userID, day, description)
	if err != nil {
		if errors.Is(err, models.ErrTaskNotFound) {
			return false, nil
		}

		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select task by description")
		return false, err
	}
	return true, nil
}

// taskID returns the caller supplied id if it is still free, or a
// freshly generated one.
func (s *taskServiceImpl) taskID(ctx context.Context, supplied string) (string, error) {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		id, err := s.ids.NewID()
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to generate task id")
			return "", err
		}
		return id, nil
	}

	_, err := s.findByID(ctx, supplied, true)
	switch {
	case err == nil:
		return "", models.NewError(models.ErrorKindInvalidInput, "task id already exists")
	case errors.Is(err, models.ErrTaskNotFound):
		return supplied, nil
	default:
		s.logger.Error().
			Err(err).
			Str("task_id", supplied).
			Msg("failed to select task by id")
		return "", err
	}
}

func (s *taskServiceImpl) lock(ctx context.Context, userID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to acquire user lock")
		return nil, err
	}
	return unlock, nil
}

func (s *taskServiceImpl) publish(ctx context.Context, event models.TaskEvent) {
	err := s.publisher.Publish(ctx, event)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", event.TaskID).
			Str("event", string(event.Type)).
			Msg("failed to publish task event")
		return
	}

	s.logger.Debug().
		Str("task_id", event.TaskID).
		Str("event", string(event.Type)).
		Msg("published task event")
}

func normalizeTaskID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", models.NewError(models.ErrorKindInvalidInput, "task id is required")
	}
	return id, nil
}

func normalizeChanges(params UpdateTaskParams) (models.TaskChanges, error) {
	var changes models.TaskChanges

	if params.Description != nil {
		description, err := models.NormalizeDescription(*params.Description)
		if err != nil {
			return models.TaskChanges{}, err
		}
		changes.Description = &description
	}

	if params.Priority != nil {
		if !params.Priority.IsValid() {
			return models.TaskChanges{}, models.NewError(models.ErrorKindInvalidInput,
				"invalid priority: %q", *params.Priority)
		}
		priority := *params.Priority
		changes.Priority = &priority
	}

	if params.Status != nil {
		if !params.Status.IsValid() {
			return models.TaskChanges{}, models.NewError(models.ErrorKindInvalidInput,
				"invalid status: %q", *params.Status)
		}
		status := *params.Status
		changes.Status = &status
	}
	return changes, nil
}

// applyChanges mutates description, then priority, then status.
func applyChanges(task models.Task, changes models.TaskChanges, at time.Time) (models.Task, error) {
	var err error

	if changes.Description != nil {
		task, err = task.UpdateDescription(*changes.Description, at)
		if err != nil {
			return models.Task{}, err
		}
	}

	if changes.Priority != nil {
		task, err = task.ChangePriority(*changes.Priority, at)
		if err != nil {
			return models.Task{}, err
		}
	}

	if changes.Status != nil && *changes.Status == models.StatusCompleted {
		task, err = task.Complete(at)
		if err != nil {
			return models.Task{}, err
		}
	}
	return task, nil
}

func contentChanged(before, after models.Task) bool {
	return before.Description() != after.Description() ||
		before.Priority() != after.Priority() ||
		before.Status() != after.Status()
}
