package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/go-tasks/internal/models"
	"github.com/adanyl0v/go-tasks/internal/policy"
	"github.com/adanyl0v/go-tasks/internal/services"
	"github.com/adanyl0v/go-tasks/internal/storage/memory"
)

var testCreatedAt = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

type countingRepository struct {
	*memory.TaskRepository
	finds int
}

func (r *countingRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	r.finds++
	return r.TaskRepository.FindByID(ctx, id)
}

func setup(t *testing.T) (*TaskRepository, *countingRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &countingRepository{TaskRepository: memory.NewTaskRepository()}
	return NewTaskRepository(zerolog.Nop(), next, client, "", time.Minute), next, mr
}

func TestTaskRepository_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo, next, mr := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityLow, testCreatedAt)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)

	first, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, task, first)
	assert.Equal(t, task, second)
	assert.Equal(t, 1, next.finds)
	assert.True(t, mr.Exists(DefaultPrefix+"t1"))
	assert.Equal(t, time.Minute, mr.TTL(DefaultPrefix+"t1"))
}

func TestTaskRepository_SaveInvalidates(t *testing.T) {
	ctx := context.Background()
	repo, next, mr := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityLow, testCreatedAt)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, "t1")
	require.NoError(t, err)

	completed, err := task.Complete(testCreatedAt.Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Save(ctx, completed)
	require.NoError(t, err)
	assert.False(t, mr.Exists(DefaultPrefix+"t1"))

	found, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, found.IsCompleted())
	assert.Equal(t, 2, next.finds)
}

func TestTaskRepository_DeleteInvalidates(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityLow, testCreatedAt)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, "t1")
	require.NoError(t, err)

	deleted, err := repo.DeleteByIDAndUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists(DefaultPrefix+"t1"))

	_, err = repo.FindByID(ctx, "t1")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestTaskRepository_FallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	repo, next, mr := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityLow, testCreatedAt)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)

	mr.Close()

	found, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task, found)
	assert.Equal(t, 1, next.finds)
}

func TestTaskRepository_CountsBypassCache(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityHigh, testCreatedAt)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)

	high, err := repo.CountHighPriorityForUserOn(ctx, models.DateOf(testCreatedAt), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), high)
}

// pausingRepository parks the next FindByID after it has read the store
// until release is closed.
type pausingRepository struct {
	*memory.TaskRepository

	mu      sync.Mutex
	armed   bool
	read    chan struct{}
	release chan struct{}
}

func (r *pausingRepository) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.read = make(chan struct{})
	r.release = make(chan struct{})
}

func (r *pausingRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	task, err := r.TaskRepository.FindByID(ctx, id)

	r.mu.Lock()
	armed := r.armed
	r.armed = false
	r.mu.Unlock()

	if armed {
		close(r.read)
		<-r.release
	}
	return task, err
}

type clock struct{ now time.Time }

func (c clock) Now() time.Time { return c.now }

type fixedID string

func (id fixedID) NewID() (string, error) { return string(id), nil }

func TestTaskRepository_ReadRacingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &pausingRepository{TaskRepository: memory.NewTaskRepository()}
	repo := NewTaskRepository(zerolog.Nop(), next, client, "", time.Minute)
	service := services.NewTaskService(zerolog.Nop(), repo, policy.New(policy.DefaultLimits()),
		clock{now: testCreatedAt}, fixedID("t1"))

	_, err := service.CreateTask(ctx, services.CreateTaskParams{
		UserID:      "u1",
		Description: "Buy milk",
		Priority:    models.PriorityLow,
	})
	require.NoError(t, err)

	next.arm()
	got := make(chan models.Task, 1)
	go func() {
		task, err := service.GetTask(ctx, services.GetTaskParams{ID: "t1", UserID: "u1"})
		assert.NoError(t, err)
		got <- task
	}()
	<-next.read

	completed := models.StatusCompleted
	_, err = service.UpdateTask(ctx, services.UpdateTaskParams{ID: "t1", UserID: "u1", Status: &completed})
	require.NoError(t, err)

	close(next.release)
	assert.True(t, (<-got).IsOpen())
	assert.False(t, mr.Exists(DefaultPrefix+"t1"))

	found, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, found.IsCompleted())

	description := "Buy oat milk"
	_, err = service.UpdateTask(ctx, services.UpdateTaskParams{ID: "t1", UserID: "u1", Description: &description})
	assert.ErrorIs(t, err, models.ErrTaskImmutable)

	stored, err := next.TaskRepository.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted())
	assert.Equal(t, "Buy milk", stored.Description())
}

func TestTaskRepository_StaleEntryDoesNotReachWrites(t *testing.T) {
	ctx := context.Background()
	repo, next, mr := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityLow, testCreatedAt)
	require.NoError(t, err)
	completed, err := task.Complete(testCreatedAt.Add(time.Hour))
	require.NoError(t, err)
	_, err = next.Save(ctx, completed)
	require.NoError(t, err)

	// What a lost invalidation leaves behind.
	stale, err := json.Marshal(fromTask(task))
	require.NoError(t, err)
	require.NoError(t, mr.Set(DefaultPrefix+"t1", string(stale)))

	cached, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, cached.IsOpen())

	fresh, err := repo.FindByIDFresh(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, fresh.IsCompleted())

	service := services.NewTaskService(zerolog.Nop(), repo, policy.New(policy.DefaultLimits()),
		clock{now: testCreatedAt}, fixedID("t2"))
	description := "Buy oat milk"
	_, err = service.UpdateTask(ctx, services.UpdateTaskParams{ID: "t1", UserID: "u1", Description: &description})
	assert.ErrorIs(t, err, models.ErrTaskImmutable)
}

func TestTaskRepository_InvalidateBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := setup(t)

	task, err := models.NewTask("t1", "u1", "Buy milk", models.PriorityLow, testCreatedAt)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)
	_, err = repo.Save(ctx, task)
	require.NoError(t, err)

	gen, err := mr.Get("tasks:task-gen:t1")
	require.NoError(t, err)
	assert.Equal(t, "2", gen)
	assert.Equal(t, minGenerationTTL, mr.TTL("tasks:task-gen:t1"))
}
