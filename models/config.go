package models

import "time"

// Store backends selectable through configuration
const (
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendMemory   = "memory"
)

// Base table names, prefixed with DynamoDBTablePrefix at runtime
const (
	TableOrganizations = "organizations"
	TablePersons       = "persons"
	TableLinks         = "links"
)

// Config holds all configuration for the application
type Config struct {
	// Application
	AppName    string `mapstructure:"app_name"`
	AppVersion string `mapstructure:"app_version"`
	AppEnv     string `mapstructure:"app_env"`
	AppHost    string `mapstructure:"app_host"`
	AppPort    string `mapstructure:"app_port"`

	// JWT
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTExpiresIn time.Duration `mapstructure:"jwt_expires_in"`

	// Store
	StoreBackend        string        `mapstructure:"store_backend"`
	AWSRegion           string        `mapstructure:"aws_region"`
	AWSAccessKeyID      string        `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey  string        `mapstructure:"aws_secret_access_key"`
	DynamoDBEndpoint    string        `mapstructure:"dynamodb_endpoint"`
	DynamoDBTablePrefix string        `mapstructure:"dynamodb_table_prefix"`
	StreamPollInterval  time.Duration `mapstructure:"stream_poll_interval"`

	// Live cache & search
	CacheMaxTenants    int           `mapstructure:"cache_max_tenants"`
	CacheReadyTimeout  time.Duration `mapstructure:"cache_ready_timeout"`
	SearchLocale       string        `mapstructure:"search_locale"`
	DefaultSearchLimit int           `mapstructure:"default_search_limit"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// CORS
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Base Path
	BasePath string `mapstructure:"basePath"`

	// Infrastructure worker
	Tables             []string `mapstructure:"tables"`
	WorkerCronSchedule string   `mapstructure:"worker_cron_schedule"`
	WorkerRunOnce      bool     `mapstructure:"worker_run_once"`
	WorkerLockFile     string   `mapstructure:"worker_lock_file"`
}

// TableName returns the physical name of a base table.
func (c *Config) TableName(base string) string {
	if c.DynamoDBTablePrefix == "" {
		return base
	}
	return c.DynamoDBTablePrefix + "_" + base
}

// CollectionTable maps a synchronized collection to its physical table.
func (c *Config) CollectionTable(collection Collection) string {
	switch collection {
	case CollectionOrganizations:
		return c.TableName(TableOrganizations)
	case CollectionPersons:
		return c.TableName(TablePersons)
	default:
		return c.TableName(TableLinks)
	}
}
