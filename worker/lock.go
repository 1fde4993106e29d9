package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gigbook-backend/models"
)

// ErrLockHeld is returned when another owner holds an unexpired provisioning lock
var ErrLockHeld = errors.New("provisioning lock is held by another worker")

// LockManager guards provisioning runs of one environment with a lock file
type LockManager struct {
	LockFilePath string
	LockTimeout  time.Duration
	Environment  string
}

// NewLockManager creates a new lock manager
func NewLockManager(lockPath string, timeout time.Duration, env string) *LockManager {
	return &LockManager{
		LockFilePath: lockPath,
		LockTimeout:  timeout,
		Environment:  env,
	}
}

// AcquireLock takes the lock for ownerID. A lock still held by its owner is extended;
// an expired lock is replaced.
func (lm *LockManager) AcquireLock(ownerID string) (*models.LockInfo, error) {
	if err := os.MkdirAll(filepath.Dir(lm.LockFilePath), 0755); err != nil {
		return nil, err
	}
	if existingLock, err := lm.readLockFile(); err == nil && time.Now().Before(existingLock.ExpiresAt) {
		if existingLock.Owner == ownerID && existingLock.Environment == lm.Environment {
			return lm.extendLock(existingLock, ownerID)
		}
		return nil, fmt.Errorf("%w: %s until %s", ErrLockHeld, existingLock.Owner, existingLock.ExpiresAt.Format(time.RFC3339))
	}

	now := time.Now()
	lockInfo := &models.LockInfo{
		ID:          fmt.Sprintf("provisioning-lock-%d", now.UnixNano()),
		Owner:       ownerID,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(lm.LockTimeout),
		Environment: lm.Environment,
	}
	if err := lm.writeLockFile(lockInfo); err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	return lockInfo, nil
}

func (lm *LockManager) readLockFile() (*models.LockInfo, error) {
	data, err := os.ReadFile(lm.LockFilePath)
	if err != nil {
		return nil, err
	}

	var lockInfo models.LockInfo
	if err := json.Unmarshal(data, &lockInfo); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &lockInfo, nil
}

func (lm *LockManager) extendLock(existingLock *models.LockInfo, ownerID string) (*models.LockInfo, error) {
	if existingLock.Owner != ownerID {
		return nil, fmt.Errorf("cannot extend lock owned by %s", existingLock.Owner)
	}

	extendedLock := *existingLock
	extendedLock.ExpiresAt = time.Now().Add(lm.LockTimeout)
	if err := lm.writeLockFile(&extendedLock); err != nil {
		return nil, fmt.Errorf("failed to extend lock: %w", err)
	}
	return &extendedLock, nil
}

// writeLockFile replaces the lock file atomically through a rename
func (lm *LockManager) writeLockFile(lockInfo *models.LockInfo) error {
	data, err := json.MarshalIndent(lockInfo, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize lock info: %w", err)
	}
	tempFile := lm.LockFilePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp lock file: %w", err)
	}
	if err := os.Rename(tempFile, lm.LockFilePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp lock file: %w", err)
	}
	return nil
}

// CleanupExpiredLocks removes an expired lock file
func (lm *LockManager) CleanupExpiredLocks() error {
	lockInfo, err := lm.readLockFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if time.Now().After(lockInfo.ExpiresAt) {
		return os.Remove(lm.LockFilePath)
	}
	return nil
}

// ReleaseLock removes the lock file if lockInfo's owner still holds it
func (lm *LockManager) ReleaseLock(lockInfo *models.LockInfo) error {
	currentLock, err := lm.readLockFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}
	if currentLock.Owner != lockInfo.Owner {
		return fmt.Errorf("cannot release lock owned by %s", currentLock.Owner)
	}
	if err := os.Remove(lm.LockFilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
