package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = 5 * time.Minute
)

// Reaper prunes expired entries and reports how many were removed.
type Reaper interface {
	ReapExpired(ctx context.Context) (int, error)
}

// CleanupJob handles periodic reaping of expired sessions, handoff tokens
// and workflow state. Lookups self-expire, so the job is idempotent and
// safe to run concurrently with turn processing.
type CleanupJob struct {
	reapers  []Reaper
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewCleanupJob creates a new cleanup job over the given reapers.
func NewCleanupJob(interval time.Duration, reapers ...Reaper) *CleanupJob {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupJob{reapers: reapers, interval: interval}
}

// Start begins the periodic cleanup job.
// This method is non-blocking and starts the cleanup in a goroutine.
func (j *CleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx)

	slog.Info("session cleanup job started", "interval", j.interval)
}

// Stop stops the cleanup job.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	j.running = false
	close(j.stopChan)
}

func (j *CleanupJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			total := 0
			for _, r := range j.reapers {
				reaped, err := r.ReapExpired(ctx)
				if err != nil {
					slog.Warn("session cleanup failed", "error", err)
					continue
				}
				total += reaped
			}
			if total > 0 {
				slog.Info("session cleanup completed", "reaped", total)
			}
		}
	}
}
