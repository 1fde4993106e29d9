package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigbook-backend/dal"
	"gigbook-backend/infrastructure"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const (
	activeTimeout       = 5 * time.Minute
	activeCheckInterval = 2 * time.Second
)

// Provisioner creates the contact tables that do not exist yet
type Provisioner struct {
	db           dal.DatabaseClientInterface
	config       *models.Config
	workerConfig *models.WorkerConfig
	locks        *LockManager
	ownerID      string
	logger       logger.Logger
}

func NewProvisioner(db dal.DatabaseClientInterface, cfg *models.Config, workerConfig *models.WorkerConfig, ownerID string, log logger.Logger) *Provisioner {
	return &Provisioner{
		db:           db,
		config:       cfg,
		workerConfig: workerConfig,
		locks:        NewLockManager(workerConfig.LockFilePath, workerConfig.LockTimeout, workerConfig.Environment),
		ownerID:      ownerID,
		logger:       log,
	}
}

// Provision creates every missing required table under the provisioning lock. A run that
// finds the lock held by another worker is reported as skipped.
func (p *Provisioner) Provision(ctx context.Context) (*models.ProvisioningResult, error) {
	result := &models.ProvisioningResult{StartedAt: time.Now(), TablesCreated: []string{}, TablesExisted: []string{}}

	if err := p.locks.CleanupExpiredLocks(); err != nil {
		p.logger.Warnf("Failed to clean up expired provisioning lock: %v", err)
	}
	lock, err := p.locks.AcquireLock(p.ownerID)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			p.logger.Infof("Skipping provisioning: %v", err)
			result.Skipped = true
			result.Duration = time.Since(result.StartedAt)
			return result, nil
		}
		return nil, fmt.Errorf("failed to acquire provisioning lock: %w", err)
	}
	defer func() {
		if err := p.locks.ReleaseLock(lock); err != nil {
			p.logger.Errorf("Failed to release provisioning lock: %v", err)
		}
	}()

	// Tables are created one by one to stay under the control plane rate limits
	for _, base := range p.requiredTables() {
		name := p.config.TableName(base)
		created, err := p.ensureTableWithRetry(ctx, base, name)
		if err != nil {
			p.logger.Errorf("Failed to provision table %s: %v", name, err)
			return nil, err
		}
		if created {
			result.TablesCreated = append(result.TablesCreated, name)
			p.logger.Infof("Created table %s", name)
		} else {
			result.TablesExisted = append(result.TablesExisted, name)
		}
	}

	if err := p.waitForTablesActive(ctx, result.TablesCreated); err != nil {
		return nil, err
	}

	result.Duration = time.Since(result.StartedAt)
	p.logger.WithFields(map[string]interface{}{
		"created":  len(result.TablesCreated),
		"existed":  len(result.TablesExisted),
		"duration": result.Duration.String(),
	}).Info("Provisioning completed")
	return result, nil
}

func (p *Provisioner) requiredTables() []string {
	if len(p.workerConfig.RequiredTables) > 0 {
		return p.workerConfig.RequiredTables
	}
	return infrastructure.BaseTables()
}

// ensureTableWithRetry reports whether the table had to be created
func (p *Provisioner) ensureTableWithRetry(ctx context.Context, base, name string) (bool, error) {
	maxRetries := p.workerConfig.MaxRetries
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.workerConfig.RetryDelay
			p.logger.Infof("Retrying table creation for %s in %v (attempt %d/%d)", name, delay, attempt+1, maxRetries+1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}

		exists, err := p.tableExists(ctx, name)
		if err != nil {
			lastErr = err
			p.logger.Errorf("Failed to check if table %s exists: %v", name, err)
			continue
		}
		if exists {
			return false, nil
		}

		if err := p.createTable(ctx, base, name); err != nil {
			if isResourceInUse(err) {
				// Created concurrently by another process
				return false, nil
			}
			lastErr = err
			p.logger.Errorf("Attempt %d failed to create table %s: %v", attempt+1, name, err)
			continue
		}
		return true, nil
	}
	return false, fmt.Errorf("failed to create table %s after %d attempts: %w", name, maxRetries+1, lastErr)
}

func (p *Provisioner) createTable(ctx context.Context, base, name string) error {
	input, err := infrastructure.TableInput(base, name)
	if err != nil {
		return fmt.Errorf("failed to get table input: %w", err)
	}
	input.Tags = []types.Tag{
		{Key: aws.String("Environment"), Value: aws.String(p.config.AppEnv)},
		{Key: aws.String("Application"), Value: aws.String(p.config.AppName)},
		{Key: aws.String("TableType"), Value: aws.String(base)},
		{Key: aws.String("CreatedBy"), Value: aws.String("provisioning-worker")},
	}
	if err := p.db.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// waitForTablesActive polls until every table reports ACTIVE
func (p *Provisioner) waitForTablesActive(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, activeTimeout)
	defer cancel()

	ticker := time.NewTicker(activeCheckInterval)
	defer ticker.Stop()

	pending := tables
	for {
		var still []string
		for _, name := range pending {
			out, err := p.db.DescribeTable(timeoutCtx, name)
			if err != nil || out.Table.TableStatus != types.TableStatusActive {
				still = append(still, name)
			}
		}
		if len(still) == 0 {
			return nil
		}
		pending = still
		p.logger.Debugf("Waiting for tables to become active: %v", pending)

		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("timeout waiting for tables to become active: %v", pending)
		case <-ticker.C:
		}
	}
}

func (p *Provisioner) tableExists(ctx context.Context, name string) (bool, error) {
	if _, err := p.db.DescribeTable(ctx, name); err != nil {
		if apiErrorCode(err) == "ResourceNotFoundException" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isResourceInUse(err error) bool {
	return apiErrorCode(err) == "ResourceInUseException"
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
