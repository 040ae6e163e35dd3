package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

const (
	StorageMemory    = "memory"
	StoragePostgres  = "postgres"
	StorageDynamoDB  = "dynamodb"
	StorageFirestore = "firestore"
	StorageCosmos    = "cosmos"
)

const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env       string `env:"ENV" env-required:"true"`
	HTTP      HTTPConfig
	Storage   StorageConfig
	Postgres  PostgresConfig
	DynamoDB  DynamoDBConfig
	Firestore FirestoreConfig
	Cosmos    CosmosConfig
	Redis     RedisConfig
	Lock      LockConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Policy    PolicyConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" env-default:"memory"`
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME"`
	Password       string        `env:"POSTGRES_PASSWORD"`
	Database       string        `env:"POSTGRES_DATABASE"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
	Migrate        bool          `env:"POSTGRES_MIGRATE" env-default:"true"`
}

type DynamoDBConfig struct {
	Table  string `env:"DYNAMODB_TABLE" env-default:"tasks"`
	Region string `env:"DYNAMODB_REGION"`
	// Endpoint overrides the AWS endpoint, e.g. for DynamoDB Local.
	Endpoint    string        `env:"DYNAMODB_ENDPOINT"`
	CreateTable bool          `env:"DYNAMODB_CREATE_TABLE" env-default:"false"`
	TableWait   time.Duration `env:"DYNAMODB_TABLE_WAIT" env-default:"2m"`
}

type FirestoreConfig struct {
	ProjectID  string `env:"FIRESTORE_PROJECT_ID"`
	Collection string `env:"FIRESTORE_COLLECTION" env-default:"tasks"`
}

type CosmosConfig struct {
	ConnectionString string `env:"COSMOS_CONNECTION_STRING"`
	Database         string `env:"COSMOS_DATABASE" env-default:"tasks"`
	Container        string `env:"COSMOS_CONTAINER" env-default:"tasks"`
	Partition        string `env:"COSMOS_PARTITION" env-default:"user:"`
}

// RedisConfig with an empty Addr disables the cache and redis locks.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL" env-default:"5m"`
}

type LockConfig struct {
	Backend string        `env:"LOCK_BACKEND" env-default:"none"`
	TTL     time.Duration `env:"LOCK_TTL" env-default:"5s"`
}

// NATSConfig with an empty URL disables event publishing.
type NATSConfig struct {
	URL           string `env:"NATS_URL"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" env-default:"tasks"`
}

type JWTConfig struct {
	Issuer     string `env:"JWT_ISSUER"`
	SigningKey string `env:"JWT_SIGNING_KEY"`
}

type PolicyConfig struct {
	MaxHighPriorityPerDay int64 `env:"POLICY_MAX_HIGH_PRIORITY_PER_DAY" env-default:"5"`
	MaxOpenTasksPerUser   int64 `env:"POLICY_MAX_OPEN_TASKS_PER_USER" env-default:"50"`
}

// Validate checks the settings the selected backends depend on.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown env: %q", c.Env))
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.Host == "" || c.Postgres.Username == "" || c.Postgres.Database == "" {
			errs = append(errs, errors.New("postgres storage requires POSTGRES_HOST, POSTGRES_USERNAME and POSTGRES_DATABASE"))
		}
	case StorageDynamoDB:
		if c.DynamoDB.Table == "" {
			errs = append(errs, errors.New("dynamodb storage requires DYNAMODB_TABLE"))
		}
	case StorageFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore storage requires FIRESTORE_PROJECT_ID"))
		}
	case StorageCosmos:
		if c.Cosmos.ConnectionString == "" {
			errs = append(errs, errors.New("cosmos storage requires COSMOS_CONNECTION_STRING"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend: %q", c.Storage.Backend))
	}

	switch c.Lock.Backend {
	case LockNone, LockLocal:
	case LockRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis locks require REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend: %q", c.Lock.Backend))
	}

	if c.Policy.MaxHighPriorityPerDay < 0 || c.Policy.MaxOpenTasksPerUser < 0 {
		errs = append(errs, errors.New("policy limits must not be negative"))
	}
	return errors.Join(errs...)
}
