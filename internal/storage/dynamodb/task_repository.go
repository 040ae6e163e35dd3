// Package dynamodb stores tasks in a DynamoDB table keyed by task id.
//
// Per-user lookups go through three global secondary indexes keyed by
// userId: by calendar date, by status and by creation time.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/adanyl0v/go-tasks/internal/models"
)

const (
	UserDateIndex    = "user-date-index"
	UserStatusIndex  = "user-status-index"
	UserCreatedIndex = "user-created-index"

	// Fixed width so that createdAt sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

type API interface {
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
	GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error)
	Query(ctx context.Context, params *ddb.QueryInput, optFns ...func(*ddb.Options)) (*ddb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *ddb.DeleteItemInput, optFns ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *ddb.DescribeTableInput, optFns ...func(*ddb.Options)) (*ddb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *ddb.CreateTableInput, optFns ...func(*ddb.Options)) (*ddb.CreateTableOutput, error)
}

type taskItem struct {
	ID          string `dynamodbav:"id"`
	UserID      string `dynamodbav:"userId"`
	Description string `dynamodbav:"description"`
	Priority    string `dynamodbav:"priority"`
	Status      string `dynamodbav:"status"`
	Date        string `dynamodbav:"date"`
	CreatedAt   string `dynamodbav:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt"`
}

func toItem(task models.Task) taskItem {
	return taskItem{
		ID:          task.ID(),
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
	client API
	table  string
}

func NewTaskRepository(client API, table string) *TaskRepository {
	return &TaskRepository{client: client, table: table}
}

func (r *TaskRepository) Save(ctx context.Context, task models.Task) (models.Task, error) {
	item, err := attributevalue.MarshalMap(toItem(task))
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = r.client.PutItem(ctx, &ddb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to put task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	out, err := r.client.GetItem(ctx, &ddb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       idKey(id),
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	if len(out.Item) == 0 {
		return models.Task{}, models.ErrTaskNotFound
	}
	return unmarshalTask(out.Item)
}

func (r *TaskRepository) FindByUserAndDateAndDescription(
	ctx context.Context,
	userID string,
	day models.Date,
	description string,
) (models.Task, error) {
	paginator := ddb.NewQueryPaginator(r.client, &ddb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(UserDateIndex),
		KeyConditionExpression: aws.String("#userId = :userId AND #date = :date"),
		FilterExpression:       aws.String("#description = :description"),
		ExpressionAttributeNames: map[string]string{
			"#userId":      "userId",
			"#date":        "date",
			"#description": "description",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId":      &types.AttributeValueMemberS{Value: userID},
			":date":        &types.AttributeValueMemberS{Value: day.String()},
			":description": &types.AttributeValueMemberS{Value: description},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return models.Task{}, fmt.Errorf("failed to query tasks by description: %w", err)
		}
		if len(page.Items) > 0 {
			return unmarshalTask(page.Items[0])
		}
	}
	return models.Task{}, models.ErrTaskNotFound
}

func (r *TaskRepository) CountHighPriorityForUserOn(ctx context.Context, day models.Date, userID string) (int64, error) {
	return r.count(ctx, &ddb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(UserDateIndex),
		KeyConditionExpression: aws.String("#userId = :userId AND #date = :date"),
		FilterExpression:       aws.String("#priority = :priority"),
		ExpressionAttributeNames: map[string]string{
			"#userId":   "userId",
			"#date":     "date",
			"#priority": "priority",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId":   &types.AttributeValueMemberS{Value: userID},
			":date":     &types.AttributeValueMemberS{Value: day.String()},
			":priority": &types.AttributeValueMemberS{Value: string(models.PriorityHigh)},
		},
	})
}

func (r *TaskRepository) CountOpenByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, &ddb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(UserStatusIndex),
		KeyConditionExpression: aws.String("#userId = :userId AND #status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#userId": "userId",
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
			":status": &types.AttributeValueMemberS{Value: string(models.StatusOpen)},
		},
	})
}

// ListByUser walks the creation index newest first and skips the
// preceding pages client side, since DynamoDB has no offsets.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, page, size int) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if page < 0 || size < 1 {
		return tasks, nil
	}

	paginator := ddb.NewQueryPaginator(r.client, &ddb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(UserCreatedIndex),
		KeyConditionExpression: aws.String("#userId = :userId"),
		ExpressionAttributeNames: map[string]string{
			"#userId": "userId",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})

	skip := int64(page) * int64(size)
	for paginator.HasMorePages() && len(tasks) < size {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query tasks by user id: %w", err)
		}

		for _, item := range out.Items {
			if skip > 0 {
				skip--
				continue
			}
			task, err := unmarshalTask(item)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
			if len(tasks) == size {
				break
			}
		}
	}
	return tasks, nil
}

func (r *TaskRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &ddb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 idKey(id),
		ConditionExpression: aws.String("#userId = :userId"),
		ExpressionAttributeNames: map[string]string{
			"#userId": "userId",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	return true, nil
}

// EnsureTable creates the table with its indexes unless it already
// exists, then waits for it to become active.
func (r *TaskRepository) EnsureTable(ctx context.Context, maxWait time.Duration) error {
	_, err := r.client.DescribeTable(ctx, &ddb.DescribeTableInput{TableName: aws.String(r.table)})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", r.table, err)
	}

	_, err = r.client.CreateTable(ctx, createTableInput(r.table))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}

	waiter := ddb.NewTableExistsWaiter(r.client)
	err = waiter.Wait(ctx, &ddb.DescribeTableInput{TableName: aws.String(r.table)}, maxWait)
	if err != nil {
		return fmt.Errorf("failed to wait for table %s: %w", r.table, err)
	}
	return nil
}

func (r *TaskRepository) count(ctx context.Context, input *ddb.QueryInput) (int64, error) {
	input.Select = types.SelectCount

	var total int64
	paginator := ddb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count tasks: %w", err)
		}
		total += int64(out.Count)
	}
	return total, nil
}

func createTableInput(table string) *ddb.CreateTableInput {
	stringAttr := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		}
	}
	userIndex := func(name, sortKey string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("userId"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	return &ddb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			stringAttr("id"),
			stringAttr("userId"),
			stringAttr("date"),
			stringAttr("status"),
			stringAttr("createdAt"),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			userIndex(UserDateIndex, "date"),
			userIndex(UserStatusIndex, "status"),
			userIndex(UserCreatedIndex, "createdAt"),
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func unmarshalTask(av map[string]types.AttributeValue) (models.Task, error) {
	var item taskItem
	err := attributevalue.UnmarshalMap(av, &item)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return item.toTask()
}
