package scheduler

import (
	"time"

	"github.com/smallbiznis/carepoints/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled      bool
	RunInterval  time.Duration
	BatchSize    int
	MaxBatches   int
	JobTimeout   time.Duration
	LockTTL      time.Duration
	LockKeyspace string
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		RunInterval:  time.Hour,
		BatchSize:    500,
		MaxBatches:   20,
		JobTimeout:   2 * time.Minute,
		LockTTL:      5 * time.Minute,
		LockKeyspace: "carepoints:scheduler:lock:",
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Scheduler.Enabled,
		RunInterval: time.Duration(cfg.Scheduler.RewardExpiryIntervalSec) * time.Second,
		BatchSize:   cfg.Scheduler.RewardExpiryBatchSize,
		LockTTL:     time.Duration(cfg.Scheduler.RewardExpiryLockTTLSecond) * time.Second,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaults.MaxBatches
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockKeyspace == "" {
		c.LockKeyspace = defaults.LockKeyspace
	}
	return c
}
