package models

import "time"

// WorkerConfig holds configuration for the table provisioning worker
type WorkerConfig struct {
	CronSchedule   string        `json:"cron_schedule"`
	RunOnce        bool          `json:"run_once"`
	LockFilePath   string        `json:"lock_file_path"`
	LockTimeout    time.Duration `json:"lock_timeout"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay"`
	Environment    string        `json:"environment"`
	RequiredTables []string      `json:"required_tables"`
}

// LockInfo is the content of the provisioning lock file
type LockInfo struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Environment string    `json:"environment"`
}

// ProvisioningResult reports one provisioning run
type ProvisioningResult struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	TablesCreated []string      `json:"tables_created"`
	TablesExisted []string      `json:"tables_existed"`
	Skipped       bool          `json:"skipped"`
}

// TableStatus describes one contact table as seen by the store
type TableStatus struct {
	Name          string   `json:"name"`
	BaseName      string   `json:"base_name"`
	Status        string   `json:"status"`
	ItemCount     int64    `json:"item_count"`
	Indexes       []string `json:"indexes"`
	StreamEnabled bool     `json:"stream_enabled"`
}

// Table states reported in TableStatus.Status besides the DynamoDB ones
const TableStatusMissing = "MISSING"
