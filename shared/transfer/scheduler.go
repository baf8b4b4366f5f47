package transfer

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"memberflow/shared/metrics"
	"memberflow/shared/models"
	"memberflow/shared/storage"
)

const (
	ReasonNoAccounts  = "no accounts available"
	ReasonInterrupted = "interrupted by shutdown"
)

type SchedulerConfig struct {
	PollInterval time.Duration
	JobTarget    int
}

// Scheduler pops one job at a time from the queue and runs it across the
// whole account pool.
type Scheduler struct {
	queue    storage.Queue
	accounts storage.Accounts
	engine   *Engine
	notifier Notifier
	cfg      SchedulerConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger

	busy atomic.Bool
	rand *rand.Rand
}

func NewScheduler(queue storage.Queue, accounts storage.Accounts, engine *Engine, notifier Notifier, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		queue:    queue,
		accounts: accounts,
		engine:   engine,
		notifier: notifier,
		cfg:      cfg,
		metrics:  engine.metrics,
		logger:   logger.Named("scheduler"),
		rand:     engine.rand,
	}
}

// Busy reports whether a job is executing right now.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Run polls the queue until ctx is done. A job in flight when ctx is
// cancelled is abandoned; it was already removed from the queue.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("poll_interval", s.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs at most one queued job. It is a no-op while another job executes.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		return
	}
	defer s.busy.Store(false)

	job, err := s.queue.Pop(ctx)
	if err != nil {
		s.logger.Error("failed to pop job", zap.Error(err))
		return
	}
	if n, err := s.queue.Len(ctx); err == nil {
		s.metrics.QueueDepth(n)
	}
	if job == nil {
		return
	}
	s.execute(ctx, *job)
}

func (s *Scheduler) execute(ctx context.Context, job models.Job) {
	logger := s.logger.With(zap.String("job_id", job.ID), zap.Int64("requester_id", job.RequesterID))

	accounts, err := s.accounts.LoadAll(ctx)
	if err != nil {
		logger.Error("failed to load accounts", zap.Error(err))
	}
	s.metrics.PoolSize(len(accounts))
	if len(accounts) == 0 {
		logger.Warn("job abandoned", zap.String("reason", ReasonNoAccounts))
		s.notifier.Failed(ctx, job, ReasonNoAccounts)
		s.metrics.Job(metrics.JobFailed)
		return
	}

	accounts = slices.Clone(accounts)
	s.rand.Shuffle(len(accounts), func(i, j int) { accounts[i], accounts[j] = accounts[j], accounts[i] })

	logger.Info("job started",
		zap.String("source", job.SourceGroup),
		zap.String("target", job.TargetGroup),
		zap.Int("accounts", len(accounts)))
	s.notifier.Started(ctx, job)

	run := &Run{Job: job, Target: s.cfg.JobTarget, Notifier: s.notifier}
	s.engine.RunPool(ctx, run, accounts)

	if err := ctx.Err(); err != nil {
		logger.Warn("job interrupted", zap.Int("added", run.Added), zap.Error(err))
		s.notifier.Failed(context.WithoutCancel(ctx), job, ReasonInterrupted)
		s.metrics.Job(metrics.JobFailed)
		return
	}
	logger.Info("job finished", zap.Int("added", run.Added), zap.Int("target", run.Target))
	s.notifier.Finished(ctx, job, run.Added)
	s.metrics.Job(metrics.JobCompleted)
}
