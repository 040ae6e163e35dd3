// Package cosmos stores tasks in an Azure Cosmos DB container.
//
// Every item lives under one configured logical partition, so a single
// container serves all users. This keeps cross-user queries out of the
// picture but caps the data set at one logical partition.
package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/adanyl0v/go-tasks/internal/models"
)

const (
	DefaultPartition = "user:"

	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

type taskItem struct {
	ID          string `json:"id"`
	Partition   string `json:"partition"`
	UserID      string `json:"userId"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toItem(task models.Task, partition string) taskItem {
	return taskItem{
		ID:          task.ID(),
		Partition:   partition,
		UserID:      task.UserID(),
		Description: task.Description(),
		Priority:    string(task.Priority()),
		Status:      string(task.Status()),
		Date:        models.DateOf(task.CreatedAt()).String(),
		CreatedAt:   task.CreatedAt().UTC().Format(timeLayout),
		UpdatedAt:   task.UpdatedAt().UTC().Format(timeLayout),
	}
}

func (i taskItem) toTask() (models.Task, error) {
	createdAt, err := time.Parse(timeLayout, i.CreatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to parse createdAt of task %s: %w", i.ID, err)
	}
	updatedAt, err := time.Parse(timeLayout, i.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to parse updatedAt of task %s: %w", i.ID, err)
	}

	return models.RestoreTask(
		i.ID,
		i.UserID,
		i.Description,
		models.Priority(i.Priority),
		models.Status(i.Status),
		createdAt,
		updatedAt,
	), nil
}

type TaskRepository struct {
	container *azcosmos.ContainerClient
	partition string
	pk        azcosmos.PartitionKey
}

func NewTaskRepository(container *azcosmos.ContainerClient, partition string) *TaskRepository {
	if partition == "" {
		partition = DefaultPartition
	}
	return &TaskRepository{
		container: container,
		partition: partition,
		pk:        azcosmos.NewPartitionKeyString(partition),
	}
}

func (r *TaskRepository) Save(ctx context.Context, task models.Task) (models.Task, error) {
	body, err := json.Marshal(toItem(task, r.partition))
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = r.container.UpsertItem(ctx, r.pk, body, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to upsert task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	item, _, err := r.read(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return item.toTask()
}

func (r *TaskRepository) FindByUserAndDateAndDescription(
	ctx context.Context,
	userID string,
	day models.Date,
	description string,
) (models.Task, error) {
	const query = `SELECT TOP 1 * FROM c WHERE c.userId = @userId AND c.date = @date AND c.description = @description`

	items, err := r.query(ctx, query, []azcosmos.QueryParameter{
		{Name: "@userId", Value: userID},
		{Name: "@date", Value: day.String()},
		{Name: "@description", Value: description},
	}, 1)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to query task by description: %w", err)
	}
	if len(items) == 0 {
		return models.Task{}, models.ErrTaskNotFound
	}
	return decode(items[0])
}

func (r *TaskRepository) CountHighPriorityForUserOn(ctx context.Context, day models.Date, userID string) (int64, error) {
	const query = `SELECT VALUE COUNT(1) FROM c WHERE c.userId = @userId AND c.date = @date AND c.priority = @priority`

	return r.count(ctx, query, []azcosmos.QueryParameter{
		{Name: "@userId", Value: userID},
		{Name: "@date", Value: day.String()},
		{Name: "@priority", Value: string(models.PriorityHigh)},
	})
}

func (r *TaskRepository) CountOpenByUser(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT VALUE COUNT(1) FROM c WHERE c.userId = @userId AND c.status = @status`

	return r.count(ctx, query, []azcosmos.QueryParameter{
		{Name: "@userId", Value: userID},
		{Name: "@status", Value: string(models.StatusOpen)},
	})
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string, page, size int) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if page < 0 || size < 1 {
		return tasks, nil
	}

	const query = `SELECT * FROM c WHERE c.userId = @userId ORDER BY c.createdAt DESC OFFSET @offset LIMIT @limit`

	items, err := r.query(ctx, query, []azcosmos.QueryParameter{
		{Name: "@userId", Value: userID},
		{Name: "@offset", Value: int64(page) * int64(size)},
		{Name: "@limit", Value: size},
	}, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by user id: %w", err)
	}

	for _, raw := range items {
		task, err := decode(raw)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DeleteByIDAndUser deletes conditionally on the etag read during the
// owner check, so a concurrent replacement isn't deleted blindly.
func (r *TaskRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	item, etag, err := r.read(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrTaskNotFound) {
			return false, nil
		}
		return false, err
	}
	if item.UserID != userID {
		return false, nil
	}

	_, err = r.container.DeleteItem(ctx, r.pk, id, &azcosmos.ItemOptions{IfMatchEtag: &etag})
	if err != nil {
		if hasStatus(err, http.StatusNotFound, http.StatusPreconditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	return true, nil
}

func (r *TaskRepository) read(ctx context.Context, id string) (taskItem, azcore.ETag, error) {
	resp, err := r.container.ReadItem(ctx, r.pk, id, nil)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return taskItem{}, "", models.ErrTaskNotFound
		}
		return taskItem{}, "", fmt.Errorf("failed to read task: %w", err)
	}

	var item taskItem
	err = json.Unmarshal(resp.Value, &item)
	if err != nil {
		return taskItem{}, "", fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return item, resp.ETag, nil
}

func (r *TaskRepository) query(
	ctx context.Context,
	query string,
	params []azcosmos.QueryParameter,
	limit int,
) ([][]byte, error) {
	pager := r.container.NewQueryItemsPager(query, r.pk, &azcosmos.QueryOptions{
		QueryParameters: params,
	})

	items := make([][]byte, 0, limit)
	for pager.More() && len(items) < limit {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *TaskRepository) count(ctx context.Context, query string, params []azcosmos.QueryParameter) (int64, error) {
	pager := r.container.NewQueryItemsPager(query, r.pk, &azcosmos.QueryOptions{
		QueryParameters: params,
	})

	var total int64
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count tasks: %w", err)
		}
		for _, raw := range resp.Items {
			var n int64
			err = json.Unmarshal(raw, &n)
			if err != nil {
				return 0, fmt.Errorf("failed to decode count: %w", err)
			}
			total += n
		}
	}
	return total, nil
}

func decode(raw []byte) (models.Task, error) {
	var item taskItem
	err := json.Unmarshal(raw, &item)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return item.toTask()
}

func hasStatus(err error, codes ...int) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	for _, code := range codes {
		if respErr.StatusCode == code {
			return true
		}
	}
	return false
}
