// Package postgres stores tasks in a single PostgreSQL table.
//
// The table carries a unique constraint on (user_id, created_on,
// description), so two racing creations of the same description can't
// both be stored even without a user lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adanyl0v/go-tasks/internal/models"
)

const descriptionConstraint = "tasks_user_day_description_key"

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TaskRepository struct {
	db DB
}

func NewTaskRepository(db DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Save(ctx context.Context, task models.Task) (models.Task, error) {
	const upsertTaskQuery = `
INSERT INTO tasks (id,
                   user_id,
                   description,
                   priority,
                   status,
                   created_on,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
SET description = EXCLUDED.description,
    priority = EXCLUDED.priority,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.db.Exec(
		ctx,
		upsertTaskQuery,
		task.ID(),
		task.UserID(),
		task.Description(),
		string(task.Priority()),
		string(task.Status()),
		models.DateOf(task.CreatedAt()).Start(),
		task.CreatedAt(),
		task.UpdatedAt(),
	)
	if err != nil {
		return models.Task{}, mapWriteError(err)
	}
	return task, nil
}

const selectTaskColumns = `
SELECT id,
       user_id,
       description,
       priority,
       status,
       created_at,
       updated_at
FROM tasks
`

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	const selectTaskByIDQuery = selectTaskColumns + `WHERE id = $1`

	task, err := scanTask(r.db.QueryRow(ctx, selectTaskByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, models.ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("failed to select task by id: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) FindByUserAndDateAndDescription(
	ctx context.Context,
	userID string,
	day models.Date,
	description string,
) (models.Task, error) {
	const selectTaskByDescriptionQuery = selectTaskColumns + `
WHERE user_id = $1
  AND created_on = $2
  AND description = $3
LIMIT 1
`
	task, err := scanTask(r.db.QueryRow(ctx, selectTaskByDescriptionQuery, userID, day.Start(), description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, models.ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("failed to select task by description: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) CountHighPriorityForUserOn(ctx context.Context, day models.Date, userID string) (int64, error) {
	const countHighPriorityQuery = `
SELECT count(*)
FROM tasks
WHERE user_id = $1
  AND created_on = $2
  AND priority = $3
`
	var count int64
	err := r.db.QueryRow(ctx, countHighPriorityQuery, userID, day.Start(), string(models.PriorityHigh)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count high priority tasks: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) CountOpenByUser(ctx context.Context, userID string) (int64, error) {
	const countOpenQuery = `
SELECT count(*)
FROM tasks
WHERE user_id = $1
  AND status = $2
`
	var count int64
	err := r.db.QueryRow(ctx, countOpenQuery, userID, string(models.StatusOpen)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open tasks: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string, page, size int) ([]models.Task, error) {
	if page < 0 || size < 1 {
		return []models.Task{}, nil
	}

	const selectTasksByUserIDQuery = selectTaskColumns + `
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`
	rows, err := r.db.Query(ctx, selectTasksByUserIDQuery, userID, size, int64(page)*int64(size))
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks by user id: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0, size)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over rows: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1 AND user_id = $2
`
	tag, err := r.db.Exec(ctx, deleteTaskQuery, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanTask(row pgx.Row) (models.Task, error) {
	var (
		id, userID, description, priority, status string
		createdAt, updatedAt                      time.Time
	)
	err := row.Scan(
		&id,
		&userID,
		&description,
		&priority,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return models.Task{}, err
	}

	return models.RestoreTask(
		id,
		userID,
		description,
		models.Priority(priority),
		models.Status(status),
		createdAt,
		updatedAt,
	), nil
}

// mapWriteError turns constraint violations into domain errors and wraps
// everything else.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	switch {
	case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == descriptionConstraint:
		return models.ErrDuplicateDescription
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		return models.NewError(models.ErrorKindInvalidInput, "task violates constraint %s", pgErr.ConstraintName)
	default:
		return fmt.Errorf("failed to upsert task: %w", err)
	}
}
