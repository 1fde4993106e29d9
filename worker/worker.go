package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron"
)

// runTimeout bounds one provisioning run
const runTimeout = 15 * time.Minute

// Worker provisions the contact tables once or on a cron schedule
type Worker struct {
	provisioner  *Provisioner
	workerConfig *models.WorkerConfig
	cronJob      *cron.Cron
	logger       logger.Logger

	mu         sync.Mutex
	isRunning  bool
	lastResult *models.ProvisioningResult
	lastErr    error

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewWorkerConfig derives the worker settings from the application config
func NewWorkerConfig(cfg *models.Config) *models.WorkerConfig {
	schedule := cfg.WorkerCronSchedule
	if schedule == "" {
		schedule = getCronScheduleForEnvironment(cfg.AppEnv)
	}
	lockFile := cfg.WorkerLockFile
	if lockFile == "" {
		lockFile = fmt.Sprintf("%s/gigbook-provisioning-%s.lock", os.TempDir(), cfg.AppEnv)
	}
	return &models.WorkerConfig{
		CronSchedule:   schedule,
		RunOnce:        cfg.WorkerRunOnce,
		LockFilePath:   lockFile,
		LockTimeout:    30 * time.Minute,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		Environment:    cfg.AppEnv,
		RequiredTables: cfg.Tables,
	}
}

func NewWorker(db dal.DatabaseClientInterface, cfg *models.Config, workerConfig *models.WorkerConfig, log logger.Logger) (*Worker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := validateWorkerConfig(workerConfig); err != nil {
		return nil, fmt.Errorf("invalid worker configuration: %w", err)
	}

	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}
	ownerID := fmt.Sprintf("worker-%s-%s", hostname, uuid.New().String()[:8])

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		provisioner:  NewProvisioner(db, cfg, workerConfig, ownerID, log),
		workerConfig: workerConfig,
		cronJob:      cron.New(),
		logger:       log,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}, nil
}

func validateWorkerConfig(config *models.WorkerConfig) error {
	if config == nil {
		return fmt.Errorf("worker config cannot be nil")
	}
	if config.LockFilePath == "" {
		return fmt.Errorf("lock file path is required")
	}
	if config.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if !config.RunOnce {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(config.CronSchedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s': %w", config.CronSchedule, err)
		}
	}
	return nil
}

// getCronScheduleForEnvironment returns environment-specific cron schedules
func getCronScheduleForEnvironment(env string) string {
	switch env {
	case "development":
		return "0 */5 * * * *"
	case "production":
		return "0 0 * * * *"
	default:
		return "0 */15 * * * *"
	}
}

// Start runs the provisioning once in the background, or schedules it and runs it immediately
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("worker is already running")
	}
	select {
	case <-w.ctx.Done():
		return fmt.Errorf("worker context is cancelled, cannot start")
	default:
	}

	if w.workerConfig.RunOnce {
		w.logger.Info("Running table provisioning once")
		w.isRunning = true
		go func() {
			defer close(w.done)
			w.runScheduled()
		}()
		return nil
	}

	w.logger.Infof("Starting provisioning worker with schedule: %s", w.workerConfig.CronSchedule)
	if err := w.cronJob.AddFunc(w.workerConfig.CronSchedule, w.runScheduled); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	w.cronJob.Start()
	w.isRunning = true
	go w.runScheduled()
	return nil
}

func (w *Worker) runScheduled() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("Provisioning run panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(w.ctx, runTimeout)
	defer cancel()
	if _, err := w.Provision(ctx); err != nil {
		w.logger.Errorf("Scheduled provisioning failed: %v", err)
	}
}

// Provision runs one provisioning pass now and records its outcome
func (w *Worker) Provision(ctx context.Context) (*models.ProvisioningResult, error) {
	result, err := w.provisioner.Provision(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
	if err == nil {
		w.lastResult = result
	}
	return result, err
}

// LastResult returns the outcome of the most recent run
func (w *Worker) LastResult() (*models.ProvisioningResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastResult, w.lastErr
}

// Done is closed when a run-once worker finished its run
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// Stop cancels the running pass and stops the scheduler
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()

		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.isRunning {
			return
		}
		if !w.workerConfig.RunOnce {
			w.cronJob.Stop()
		}
		w.isRunning = false
		w.logger.Info("Provisioning worker stopped")
	})
}
