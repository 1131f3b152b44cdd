package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultRetention is how long an idle dialog is kept.
	DefaultRetention = 7 * 24 * time.Hour
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = time.Hour
)

// CleanupConfig holds configuration for the cleanup job.
type CleanupConfig struct {
	Retention       time.Duration // Idle time after which a dialog is deleted (default: 7 days)
	CleanupInterval time.Duration // Interval between cleanup runs (default: 1h)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Retention:       DefaultRetention,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// CleanupJob periodically deletes idle dialogs.
type CleanupJob struct {
	store  DialogStore
	config CleanupConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewCleanupJob creates a new cleanup job.
func NewCleanupJob(store DialogStore, config CleanupConfig) *CleanupJob {
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}

	return &CleanupJob{
		store:  store,
		config: config,
	}
}

// Start begins the periodic cleanup in a goroutine. Starting twice is a no-op.
func (j *CleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}

	j.running = true
	j.stopChan = make(chan struct{})
	j.done = make(chan struct{})

	go j.run(ctx, j.stopChan, j.done)

	slog.Info("dialog cleanup job started",
		"retention", j.config.Retention,
		"interval", j.config.CleanupInterval)
}

// Stop stops the cleanup job and waits for the running pass to finish.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopChan)
	j.running = false
	done := j.done
	j.mu.Unlock()

	<-done
	slog.Info("dialog cleanup job stopped")
}

// RunOnce executes a single cleanup run immediately.
func (j *CleanupJob) RunOnce(ctx context.Context) (int64, error) {
	return j.store.CleanupExpired(ctx, j.config.Retention)
}

func (j *CleanupJob) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	j.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			j.pass(ctx)
		}
	}
}

func (j *CleanupJob) pass(ctx context.Context) {
	if deleted, err := j.RunOnce(ctx); err != nil {
		slog.Error("dialog cleanup failed", "error", err)
	} else if deleted > 0 {
		slog.Info("dialog cleanup completed", "deleted", deleted)
	}
}

// IsRunning returns whether the cleanup job is currently running.
func (j *CleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
