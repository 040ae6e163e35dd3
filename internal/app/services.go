package app

import (
	"github.com/adanyl0v/go-tasks/internal/config"
	"github.com/adanyl0v/go-tasks/internal/events"
	"github.com/adanyl0v/go-tasks/internal/locks"
	"github.com/adanyl0v/go-tasks/internal/policy"
	"github.com/adanyl0v/go-tasks/internal/services"
)

var globalTaskService services.TaskService

// MustInitServices wires the task service. Storage, redis and nats must
// be initialized first.
func MustInitServices() {
	cfg := config.Global()

	if globalTaskRepository == nil {
		globalLogger.Error().Msg("storage is not initialized")
		panic("storage is not initialized")
	}

	limits := policy.Limits{
		MaxHighPriorityPerDay: cfg.Policy.MaxHighPriorityPerDay,
		MaxOpenTasksPerUser:   cfg.Policy.MaxOpenTasksPerUser,
	}

	var opts []services.TaskServiceOption
	switch cfg.Lock.Backend {
	case config.LockLocal:
		opts = append(opts, services.WithUserLocker(locks.NewLocal()))
	case config.LockRedis:
		if globalRedisClient == nil {
			globalLogger.Error().Msg("redis locks require a redis connection")
			panic("redis is not connected")
		}
		opts = append(opts, services.WithUserLocker(
			locks.NewRedis(globalLogger, globalRedisClient, locks.DefaultRedisPrefix, cfg.Lock.TTL),
		))
	}

	if globalNATSConn != nil {
		opts = append(opts, services.WithEventPublisher(
			events.NewNATSPublisher(globalNATSConn, cfg.NATS.SubjectPrefix),
		))
	}

	globalTaskService = services.NewTaskService(
		globalLogger,
		globalTaskRepository,
		policy.New(limits),
		services.SystemClock{},
		services.UUIDGenerator{},
		opts...,
	)
	globalLogger.Info().
		Int64("max_high_priority_per_day", limits.MaxHighPriorityPerDay).
		Int64("max_open_tasks_per_user", limits.MaxOpenTasksPerUser).
		Str("lock", cfg.Lock.Backend).
		Bool("events", globalNATSConn != nil).
		Msg("initialized task service")
}
