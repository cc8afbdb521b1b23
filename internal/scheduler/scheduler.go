package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/clock"
	obsmetrics "github.com/smallbiznis/carepoints/internal/observability/metrics"
	"github.com/smallbiznis/carepoints/internal/ratelimit"
	redemptiondomain "github.com/smallbiznis/carepoints/internal/redemption/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobRewardExpiry = "reward_expiry"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	RedemptionSvc redemptiondomain.Service
	Config        Config                 `optional:"true"`
	Locker        *ratelimit.Locker      `optional:"true"`
	JobMetrics    *obsmetrics.JobMetrics `optional:"true"`
}

// jobLocker and jobLease are satisfied by the Redis locker in production.
type jobLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (jobLease, error)
}

type jobLease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

type redisLocker struct {
	locker *ratelimit.Locker
}

func (r redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (jobLease, error) {
	lease, err := r.locker.Acquire(ctx, key, ttl)
	if err != nil || lease == nil {
		return nil, err
	}
	return lease, nil
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	redemptionSvc redemptiondomain.Service
	locker        jobLocker
	jobMetrics    *obsmetrics.JobMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.RedemptionSvc == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		redemptionSvc: p.RedemptionSvc,
		jobMetrics:    p.JobMetrics,
	}
	if p.Locker != nil {
		s.locker = redisLocker{locker: p.Locker}
	}
	return s, nil
}

// runJob runs fn under a timeout and, when Redis is configured, a cluster-wide
// lock so only one instance sweeps at a time.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	var lease jobLease
	if s.locker != nil {
		held, err := s.locker.Acquire(ctx, s.cfg.LockKeyspace+name, s.cfg.LockTTL)
		switch {
		case err != nil:
			s.log.Warn("scheduler lock unavailable, running unlocked", zap.String("job", name), zap.Error(err))
		case held == nil:
			s.jobMetrics.IncLockSkipped(name)
			s.log.Debug("job held by another instance", zap.String("job", name))
			return nil
		default:
			lease = held
			defer func() {
				if err := lease.Release(context.Background()); err != nil {
					s.log.Warn("scheduler lock release failed", zap.String("job", name), zap.Error(err))
				}
			}()
		}
	}

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		run.lease = lease
	}
	if owner {
		s.logJobStart(ctx, run)
	}
	s.jobMetrics.IncJobRun(name)

	err := fn(ctx)
	s.jobMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	s.jobMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, JobRewardExpiry, s.cfg.BatchSize, s.cfg.JobTimeout, s.RewardExpiryJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RewardExpiryJob expires redemptions past their validity in batches until a
// short batch signals the backlog is drained.
func (s *Scheduler) RewardExpiryJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()

	for batch := 0; batch < s.cfg.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := s.redemptionSvc.ExpireDue(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		run.AddProcessed(len(expired))
		s.jobMetrics.AddBatchProcessed(JobRewardExpiry, len(expired))
		if len(expired) < s.cfg.BatchSize {
			return nil
		}
		if !s.keepLease(ctx, run) {
			return nil
		}
	}
	return nil
}

// keepLease extends the run's lease before another batch. It reports false
// when the lease was lost, in which case the sweep stops and leaves the
// backlog to the new holder.
func (s *Scheduler) keepLease(ctx context.Context, run *jobRun) bool {
	if run == nil || run.lease == nil {
		return true
	}
	err := run.lease.Extend(ctx, s.cfg.LockTTL)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ratelimit.ErrLeaseLost):
		s.jobMetrics.IncLockSkipped(run.job)
		s.logger(ctx).Warn("scheduler lease lost, stopping sweep", zap.String("job", run.job), zap.Int("processed_count", run.processedCount))
		return false
	default:
		s.logger(ctx).Warn("scheduler lease extend failed", zap.String("job", run.job), zap.Error(err))
		return true
	}
}
