package utils

import (
	"fmt"
	"strings"
	"time"

	"gigbook-backend/models"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-this-jwt-secret-outside-development"

// GetConfig read the configuration from environment variables or config files
func GetConfig() (*models.Config, error) {
	config, err := Load()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return config, nil
}

// Load initializes and returns the application configuration using Viper
func Load() (*models.Config, error) {
	return LoadFrom(".", "./configs", "../", "../../")
}

// LoadFrom reads config.json from the first path that has one, then applies
// environment overrides and defaults
func LoadFrom(paths ...string) (*models.Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine: defaults and environment variables apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	flattenNestedConfig(v)

	var config models.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("app_name", "GigBook Contacts")
	v.SetDefault("app_version", "1.0.0")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("app_port", "8081")

	// JWT defaults
	v.SetDefault("jwt_secret", defaultJWTSecret)
	v.SetDefault("jwt_expires_in", 30*time.Minute)

	// Store defaults
	v.SetDefault("store_backend", models.StoreBackendDynamoDB)
	v.SetDefault("aws_region", "eu-west-3")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("dynamodb_endpoint", "")
	v.SetDefault("dynamodb_table_prefix", "dev")
	v.SetDefault("stream_poll_interval", time.Second)

	// Live cache & search defaults
	v.SetDefault("cache_max_tenants", 128)
	v.SetDefault("cache_ready_timeout", 5*time.Second)
	v.SetDefault("search_locale", models.DefaultLocale)
	v.SetDefault("default_search_limit", models.DefaultSearchLimit)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// CORS defaults
	v.SetDefault("cors_origins", []string{"*"})

	// Base Path default
	v.SetDefault("basePath", "/api/v1")

	// Provisioning worker defaults
	v.SetDefault("tables", []string{models.TableOrganizations, models.TablePersons, models.TableLinks})
	v.SetDefault("worker_cron_schedule", "")
	v.SetDefault("worker_run_once", true)
	v.SetDefault("worker_lock_file", "")
}

// validate checks if all required configuration is provided
func validate(c *models.Config) error {
	if c.JWTSecret == defaultJWTSecret && c.AppEnv == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production environment")
	}
	switch c.StoreBackend {
	case models.StoreBackendDynamoDB, models.StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.CacheMaxTenants <= 0 {
		return fmt.Errorf("cache_max_tenants must be positive")
	}
	if c.DefaultSearchLimit <= 0 {
		return fmt.Errorf("default_search_limit must be positive")
	}
	return nil
}

// flattenNestedConfig flattens the nested JSON structure to flat keys for easier mapping
func flattenNestedConfig(v *viper.Viper) {
	copyString := func(from, to string) {
		if v.IsSet(from) {
			v.Set(to, v.GetString(from))
		}
	}
	copyDuration := func(from, to string) {
		if v.IsSet(from) {
			v.Set(to, v.GetDuration(from))
		}
	}

	// App section
	copyString("app.name", "app_name")
	copyString("app.version", "app_version")
	copyString("app.env", "app_env")
	copyString("app.host", "app_host")
	copyString("app.port", "app_port")

	// JWT section
	copyString("jwt.secret", "jwt_secret")
	copyDuration("jwt.expires_in", "jwt_expires_in")

	// Store section
	copyString("store.backend", "store_backend")
	copyDuration("store.stream_poll_interval", "stream_poll_interval")
	copyString("aws.region", "aws_region")
	copyString("aws.access_key_id", "aws_access_key_id")
	copyString("aws.secret_access_key", "aws_secret_access_key")
	copyString("aws.dynamodb_endpoint", "dynamodb_endpoint")
	copyString("aws.dynamodb_table_prefix", "dynamodb_table_prefix")

	// Cache & search section
	if v.IsSet("cache.max_tenants") {
		v.Set("cache_max_tenants", v.GetInt("cache.max_tenants"))
	}
	copyDuration("cache.ready_timeout", "cache_ready_timeout")
	copyString("search.locale", "search_locale")
	if v.IsSet("search.default_limit") {
		v.Set("default_search_limit", v.GetInt("search.default_limit"))
	}

	// Logging section
	copyString("logging.level", "log_level")
	copyString("logging.format", "log_format")

	// CORS section
	if v.IsSet("cors.origins") {
		v.Set("cors_origins", v.GetStringSlice("cors.origins"))
	}

	// Worker section
	if v.IsSet("worker.tables") {
		v.Set("tables", v.GetStringSlice("worker.tables"))
	}
	copyString("worker.cron_schedule", "worker_cron_schedule")
	if v.IsSet("worker.run_once") {
		v.Set("worker_run_once", v.GetBool("worker.run_once"))
	}
	copyString("worker.lock_file", "worker_lock_file")
}

// GenerateUUID returns a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}
