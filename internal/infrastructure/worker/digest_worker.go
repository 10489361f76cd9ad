package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// DefaultDigestSchedule runs at 09:00 on weekdays (seconds field first)
const DefaultDigestSchedule = "0 0 9 * * 1-5"

// DigestSender sends the pending-step digest and reports how many messages went out
type DigestSender interface {
	SendPendingDigest(ctx context.Context) (int, error)
}

// DigestWorkerConfig holds configuration for the digest worker
type DigestWorkerConfig struct {
	Schedule string
	Timeout  time.Duration
}

// DigestWorker sends the pending-step digest on a cron schedule
type DigestWorker struct {
	config DigestWorkerConfig
	sender DigestSender
	logger *zap.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	ctx      context.Context
	lastRun  time.Time
	lastSent int
	lastErr  error
}

// NewDigestWorker creates a new digest worker
func NewDigestWorker(config DigestWorkerConfig, sender DigestSender, logger *zap.Logger) *DigestWorker {
	if config.Schedule == "" {
		config.Schedule = DefaultDigestSchedule
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return &DigestWorker{config: config, sender: sender, logger: logger}
}

// Name returns the worker name
func (w *DigestWorker) Name() string {
	return "DigestWorker"
}

// Start validates the schedule and starts the cron runner
func (w *DigestWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron != nil {
		return fmt.Errorf("digest worker already running")
	}

	c := cron.New()
	if err := c.AddFunc(w.config.Schedule, w.tick); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", w.config.Schedule, err)
	}

	w.ctx = ctx
	w.cron = c
	c.Start()

	w.logger.Info("DigestWorker started", zap.String("schedule", w.config.Schedule))
	return nil
}

// Stop halts the scheduler. A run already in progress finishes on its own.
func (w *DigestWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron == nil {
		return nil
	}
	w.cron.Stop()
	w.cron = nil

	w.logger.Info("DigestWorker stopped", zap.Time("last_run", w.lastRun), zap.Int("last_sent", w.lastSent))
	return nil
}

func (w *DigestWorker) tick() {
	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	_, _ = w.RunOnce(parent)
}

// RunOnce sends one digest immediately
func (w *DigestWorker) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	sent, err := w.sender.SendPendingDigest(runCtx)

	w.mu.Lock()
	w.lastRun = time.Now()
	w.lastSent = sent
	w.lastErr = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Pending digest failed", zap.Error(err))
		return sent, err
	}
	w.logger.Info("Pending digest sent", zap.Int("messages", sent))
	return sent, nil
}

// LastRun returns the time, message count and error of the most recent run
func (w *DigestWorker) LastRun() (time.Time, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastSent, w.lastErr
}
