// Package cache decorates a task repository with a redis read-through
// cache for single task lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-tasks/internal/models"
	"github.com/adanyl0v/go-tasks/internal/services"
)

const DefaultPrefix = "tasks:task:"

// minGenerationTTL bounds how long a miss may take between reading the
// generation and storing the value it guards.
const minGenerationTTL = time.Minute

// setIfGenerationScript stores a value only if no invalidation happened
// since the caller read the generation. A missing generation reads as "".
var setIfGenerationScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if gen == false then
	gen = ""
end
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

type cachedTask struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func fromTask(task models.Task) cachedTask {
	return cachedTask{
		ID:          task.ID(),
		UserID:      task.UserID(),
		Description: task.Description(),
		Priority:    string(task.Priority()),
		Status:      string(task.Status()),
		CreatedAt:   task.CreatedAt(),
		UpdatedAt:   task.UpdatedAt(),
	}
}

func (c cachedTask) toTask() models.Task {
	return models.RestoreTask(
		c.ID,
		c.UserID,
		c.Description,
		models.Priority(c.Priority),
		models.Status(c.Status),
		c.CreatedAt,
		c.UpdatedAt,
	)
}

// TaskRepository caches FindByID results and drops the cached entry on
// every write to the same task. Redis failures are logged and the call
// falls through to the wrapped repository.
//
// Every write also bumps a per-task generation. A miss stores the value it
// read only while the generation is unchanged, so a read racing a write
// can't put the older copy back.
//
// Only FindByID is cached. Counts, description lookups and FindByIDFresh,
// which the service uses before updates and deletes, hit the wrapped
// repository.
type TaskRepository struct {
	services.TaskRepository

	logger    zerolog.Logger
	client    redis.Cmdable
	prefix    string
	genPrefix string
	ttl       time.Duration
}

func NewTaskRepository(
	logger zerolog.Logger,
	next services.TaskRepository,
	client redis.Cmdable,
	prefix string,
	ttl time.Duration,
) *TaskRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &TaskRepository{
		TaskRepository: next,
		logger:         logger,
		client:         client,
		prefix:         prefix,
		// Disjoint from the value keys whatever the task id looks like.
		genPrefix: strings.TrimSuffix(prefix, ":") + "-gen:",
		ttl:       ttl,
	}
}

func (r *TaskRepository) Save(ctx context.Context, task models.Task) (models.Task, error) {
	saved, err := r.TaskRepository.Save(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	r.invalidate(ctx, task.ID())
	return saved, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	task, ok := r.get(ctx, id)
	if ok {
		return task, nil
	}

	gen, genOK := r.generation(ctx, id)

	task, err := r.TaskRepository.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if genOK {
		r.set(ctx, task, gen)
	}
	return task, nil
}

// FindByIDFresh skips the cache.
func (r *TaskRepository) FindByIDFresh(ctx context.Context, id string) (models.Task, error) {
	if reader, ok := r.TaskRepository.(services.FreshReader); ok {
		return reader.FindByIDFresh(ctx, id)
	}
	return r.TaskRepository.FindByID(ctx, id)
}

func (r *TaskRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	deleted, err := r.TaskRepository.DeleteByIDAndUser(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if deleted {
		r.invalidate(ctx, id)
	}
	return deleted, nil
}

func (r *TaskRepository) key(id string) string {
	return r.prefix + id
}

func (r *TaskRepository) genKey(id string) string {
	return r.genPrefix + id
}

func (r *TaskRepository) generationTTL() time.Duration {
	return max(r.ttl, minGenerationTTL)
}

func (r *TaskRepository) generation(ctx context.Context, id string) (string, bool) {
	gen, err := r.client.Get(ctx, r.genKey(id)).Result()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return "", true
	default:
		r.logger.Warn().
			Err(err).
			Str("task_id", id).
			Msg("failed to read cache generation")
		return "", false
	}
}

func (r *TaskRepository) get(ctx context.Context, id string) (models.Task, bool) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().
				Err(err).
				Str("task_id", id).
				Msg("failed to read cached task")
		}
		return models.Task{}, false
	}

	var cached cachedTask
	err = json.Unmarshal(data, &cached)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("task_id", id).
			Msg("failed to decode cached task")
		return models.Task{}, false
	}

	r.logger.Trace().
		Str("task_id", id).
		Msg("cache hit")
	return cached.toTask(), true
}

func (r *TaskRepository) set(ctx context.Context, task models.Task, gen string) {
	data, err := json.Marshal(fromTask(task))
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("task_id", task.ID()).
			Msg("failed to encode task for cache")
		return
	}

	stored, err := setIfGenerationScript.Run(ctx, r.client,
		[]string{r.key(task.ID()), r.genKey(task.ID())},
		gen, data, r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("task_id", task.ID()).
			Msg("failed to cache task")
		return
	}
	if stored == 0 {
		r.logger.Debug().
			Str("task_id", task.ID()).
			Msg("skipped caching task written concurrently")
	}
}

func (r *TaskRepository) invalidate(ctx context.Context, id string) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey(id))
		pipe.PExpire(ctx, r.genKey(id), r.generationTTL())
		pipe.Del(ctx, r.key(id))
		return nil
	})
	if err != nil {
		r.logger.Warn().
			Err(fmt.Errorf("failed to delete %s: %w", r.key(id), err)).
			Str("task_id", id).
			Msg("failed to invalidate cached task")
	}
}
