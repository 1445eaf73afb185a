package expiration

import (
	"context"
	"sync/atomic"
	"time"

	"boxoffice/internal/shared/config"
	"boxoffice/pkg/logger"
)

// JobProcessor runs the sweeper on a ticker, independent of request traffic
type JobProcessor struct {
	sweeper *Sweeper
	config  *JobConfig
	running atomic.Bool
	runs    atomic.Int64
}

// JobConfig contains configuration for the sweep job
type JobConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Interval:  30 * time.Second, // Check for expired reservations every 30 seconds
		BatchSize: 100,              // Expire 100 reservations per query
	}
}

// JobConfigFrom builds the job configuration from the sweeper settings
func JobConfigFrom(cfg config.SweeperConfig) *JobConfig {
	jobConfig := DefaultJobConfig()
	if cfg.Interval > 0 {
		jobConfig.Interval = cfg.Interval
	}
	if cfg.BatchSize > 0 {
		jobConfig.BatchSize = cfg.BatchSize
	}
	return jobConfig
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(sweeper *Sweeper, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		sweeper: sweeper,
		config:  config,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled
func (jp *JobProcessor) Run(ctx context.Context) error {
	jp.running.Store(true)
	defer jp.running.Store(false)

	ticker := time.NewTicker(jp.config.Interval)
	defer ticker.Stop()

	logger.GetDefault().Info("Started expiration sweeper", "interval", jp.config.Interval.String())

	jp.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			jp.sweep(ctx)
		case <-ctx.Done():
			logger.GetDefault().Info("Expiration sweeper stopped")
			return nil
		}
	}
}

func (jp *JobProcessor) sweep(ctx context.Context) {
	jp.runs.Add(1)
	if _, err := jp.sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
		logger.GetDefault().ErrorWithContext(ctx, "Error sweeping expired reservations", err, nil)
	}
}

// GetJobStatus returns the status of the sweep job
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	status := "stopped"
	if jp.running.Load() {
		status = "running"
	}

	return map[string]interface{}{
		"interval":   jp.config.Interval.String(),
		"batch_size": jp.config.BatchSize,
		"status":     status,
		"runs":       jp.runs.Load(),
		"last_run":   jp.sweeper.LastRun(),
	}
}
