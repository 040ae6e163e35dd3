package app

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/adanyl0v/go-tasks/internal/config"
	"github.com/adanyl0v/go-tasks/internal/services"
	"github.com/adanyl0v/go-tasks/internal/storage/cache"
	"github.com/adanyl0v/go-tasks/internal/storage/cosmos"
	"github.com/adanyl0v/go-tasks/internal/storage/dynamodb"
	"github.com/adanyl0v/go-tasks/internal/storage/firestore"
	"github.com/adanyl0v/go-tasks/internal/storage/memory"
	"github.com/adanyl0v/go-tasks/internal/storage/postgres"
)

var (
	globalTaskRepository  services.TaskRepository
	globalFirestoreClient *gcfirestore.Client
)

// MustInitStorage builds the task repository selected by STORAGE_BACKEND.
// Postgres and redis must be connected before it is called.
func MustInitStorage() {
	cfg := config.Global()

	repo, err := newTaskRepository(context.Background(), cfg)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("backend", cfg.Storage.Backend).
			Msg("failed to init storage")
		panic(err)
	}

	if globalRedisClient != nil {
		repo = cache.NewTaskRepository(
			globalLogger,
			repo,
			globalRedisClient,
			cache.DefaultPrefix,
			cfg.Redis.CacheTTL,
		)
		globalLogger.Debug().
			Dur("ttl", cfg.Redis.CacheTTL).
			Msg("wrapped task repository with redis cache")
	}

	globalTaskRepository = repo
	globalLogger.Info().
		Str("backend", cfg.Storage.Backend).
		Msg("initialized storage")
}

func newTaskRepository(ctx context.Context, cfg *config.Config) (services.TaskRepository, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return memory.NewTaskRepository(), nil
	case config.StoragePostgres:
		if globalPostgresPool == nil {
			return nil, fmt.Errorf("postgres is not connected")
		}
		return postgres.NewTaskRepository(globalPostgresPool), nil
	case config.StorageDynamoDB:
		return newDynamoDBRepository(ctx, cfg.DynamoDB)
	case config.StorageFirestore:
		return newFirestoreRepository(ctx, cfg.Firestore)
	case config.StorageCosmos:
		return newCosmosRepository(cfg.Cosmos)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

func newDynamoDBRepository(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.TaskRepository, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	repo := dynamodb.NewTaskRepository(client, cfg.Table)
	if cfg.CreateTable {
		err = repo.EnsureTable(ctx, cfg.TableWait)
		if err != nil {
			return nil, err
		}
		globalLogger.Info().
			Str("table", cfg.Table).
			Msg("ensured dynamodb table")
	}
	return repo, nil
}

func newFirestoreRepository(ctx context.Context, cfg config.FirestoreConfig) (*firestore.TaskRepository, error) {
	client, err := gcfirestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	globalFirestoreClient = client

	return firestore.NewTaskRepository(client, cfg.Collection), nil
}

func newCosmosRepository(cfg config.CosmosConfig) (*cosmos.TaskRepository, error) {
	client, err := azcosmos.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cosmos client: %w", err)
	}

	container, err := client.NewContainer(cfg.Database, cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("failed to open cosmos container: %w", err)
	}
	return cosmos.NewTaskRepository(container, cfg.Partition), nil
}

func CloseStorage() {
	if globalFirestoreClient == nil {
		return
	}
	err := globalFirestoreClient.Close()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to close firestore client")
		return
	}
	globalLogger.Info().Msg("closed firestore client")
}
