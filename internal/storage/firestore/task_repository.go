// Package firestore stores tasks as documents of a single collection,
// one document per task id.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/adanyl0v/go-tasks/internal/models"
)

type taskDocument struct {
	ID          string    `firestore:"id"`
	UserID      string    `firestore:"userId"`
	Description string    `firestore:"description"`
	Priority    string    `firestore:"priority"`
	Status      string    `firestore:"status"`
	Date        string    `firestore:"date"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toDocument(task models.Task) taskDocument {
	return taskDocument{
		ID:          task.ID(),
		UserID:      task.UserID(),
		Description: task.Description(),
		Priority:    string(task.Priority()),
		Status:      string(task.Status()),
		Date:        models.DateOf(task.CreatedAt()).String(),
		CreatedAt:   task.CreatedAt(),
		UpdatedAt:   task.UpdatedAt(),
	}
}

func (d taskDocument) toTask() models.Task {
	return models.RestoreTask(
		d.ID,
		d.UserID,
		d.Description,
		models.Priority(d.Priority),
		models.Status(d.Status),
		d.CreatedAt,
		d.UpdatedAt,
	)
}

type TaskRepository struct {
	client     *firestore.Client
	collection string
}

func NewTaskRepository(client *firestore.Client, collection string) *TaskRepository {
	return &TaskRepository{client: client, collection: collection}
}

func (r *TaskRepository) tasks() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *TaskRepository) Save(ctx context.Context, task models.Task) (models.Task, error) {
	_, err := r.tasks().Doc(task.ID()).Set(ctx, toDocument(task))
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to set task document: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	snap, err := r.tasks().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Task{}, models.ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("failed to get task document: %w", err)
	}
	return decode(snap)
}

func (r *TaskRepository) FindByUserAndDateAndDescription(
	ctx context.Context,
	userID string,
	day models.Date,
	description string,
) (models.Task, error) {
	iter := r.tasks().
		Where("userId", "==", userID).
		Where("date", "==", day.String()).
		Where("description", "==", description).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return models.Task{}, models.ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("failed to query task by description: %w", err)
	}
	return decode(snap)
}

func (r *TaskRepository) CountHighPriorityForUserOn(ctx context.Context, day models.Date, userID string) (int64, error) {
	return count(ctx, r.tasks().
		Where("userId", "==", userID).
		Where("date", "==", day.String()).
		Where("priority", "==", string(models.PriorityHigh)))
}

func (r *TaskRepository) CountOpenByUser(ctx context.Context, userID string) (int64, error) {
	return count(ctx, r.tasks().
		Where("userId", "==", userID).
		Where("status", "==", string(models.StatusOpen)))
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string, page, size int) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if page < 0 || size < 1 {
		return tasks, nil
	}

	iter := r.tasks().
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Offset(page * size).
		Limit(size).
		Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks by user id: %w", err)
		}

		task, err := decode(snap)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DeleteByIDAndUser checks the owner and deletes inside one transaction.
func (r *TaskRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	ref := r.tasks().Doc(id)

	var deleted bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false

		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		var doc taskDocument
		err = snap.DataTo(&doc)
		if err != nil {
			return err
		}
		if doc.UserID != userID {
			return nil
		}

		deleted = true
		return tx.Delete(ref)
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete task document: %w", err)
	}
	return deleted, nil
}

func count(ctx context.Context, query firestore.Query) (int64, error) {
	iter := query.Select().Documents(ctx)
	defer iter.Stop()

	var n int64
	for {
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to count tasks: %w", err)
		}
		n++
	}
}

func decode(snap *firestore.DocumentSnapshot) (models.Task, error) {
	var doc taskDocument
	err := snap.DataTo(&doc)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to decode task document %s: %w", snap.Ref.ID, err)
	}
	return doc.toTask(), nil
}
