// Package transfer runs member transfers: the per-account execution loop,
// the pool runner and the queue-driven scheduler.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"memberflow/shared/metrics"
	"memberflow/shared/models"
	"memberflow/shared/proxy"
	"memberflow/shared/storage"
)

type Limits struct {
	PerAccount    int
	FetchLimit    int
	ProgressEvery int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	FloodMargin   time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		PerAccount:    40,
		FetchLimit:    3000,
		ProgressEvery: 5,
		MinDelay:      45 * time.Second,
		MaxDelay:      100 * time.Second,
		FloodMargin:   20 * time.Second,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Option func(*Engine)

func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rand = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

type Engine struct {
	connector models.Connector
	proxies   proxy.Picker
	ledger    storage.Ledger
	limits    Limits
	sleep     SleepFunc
	rand      *rand.Rand
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewEngine(connector models.Connector, proxies proxy.Picker, ledger storage.Ledger, limits Limits, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		connector: connector,
		proxies:   proxies,
		ledger:    ledger,
		limits:    limits,
		sleep:     sleepContext,
		rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:    logger.Named("transfer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run is the mutable state of one job across the accounts it visits.
type Run struct {
	Job      models.Job
	Target   int
	Added    int
	Notifier Notifier
}

func (r *Run) Remaining() int {
	return max(r.Target-r.Added, 0)
}

// RunPool walks the accounts in the given order until the target is met or
// every account was tried once.
func (e *Engine) RunPool(ctx context.Context, run *Run, accounts []models.Account) {
	for _, acc := range accounts {
		if run.Remaining() == 0 || ctx.Err() != nil {
			return
		}
		added, err := e.RunAccount(ctx, run, acc)
		logger := e.logger.With(zap.String("job_id", run.Job.ID), zap.Int("api_id", acc.APIID))
		if err != nil {
			logger.Warn("account abandoned for this job", zap.Int("added", added), zap.Error(err))
			continue
		}
		logger.Info("account finished", zap.Int("added", added), zap.Int("job_total", run.Added))
	}
}

// RunAccount performs the invite loop for one account. The returned error
// describes why the account could not be used; per-candidate failures never
// surface here.
func (e *Engine) RunAccount(ctx context.Context, run *Run, acc models.Account) (int, error) {
	conn, err := e.connector.Connect(ctx, acc.Credential(), e.proxies.Pick())
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			e.logger.Debug("disconnect failed", zap.Int("api_id", acc.APIID), zap.Error(err))
		}
	}()

	authorized, err := conn.IsAuthorized(ctx)
	if err != nil {
		return 0, fmt.Errorf("auth check: %w", err)
	}
	if !authorized {
		return 0, models.ErrNotAuthorized
	}

	members, err := conn.ListMembers(ctx, run.Job.SourceGroup, e.limits.FetchLimit)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	e.rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

	logger := e.logger.With(zap.String("job_id", run.Job.ID), zap.Int("api_id", acc.APIID))
	added := 0
	for _, m := range members {
		if added >= e.limits.PerAccount || run.Remaining() == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return added, err
		}

		skip, err := e.filter(ctx, m)
		if err != nil {
			logger.Error("ledger unavailable", zap.Error(err))
			return added, err
		}
		if skip {
			continue
		}

		err = conn.Invite(ctx, run.Job.TargetGroup, m)
		var rateLimit *models.RateLimitError
		switch {
		case err == nil:
			added++
			run.Added++
			e.metrics.Invite(metrics.OutcomeAdded)
			e.mark(ctx, logger, m.ID)
			logger.Debug("member added", zap.Int64("member_id", m.ID))

			if every := e.limits.ProgressEvery; every > 0 && run.Added%every == 0 && run.Notifier != nil {
				run.Notifier.Progress(ctx, run.Job, run.Added, run.Target)
			}
			if added < e.limits.PerAccount && run.Remaining() > 0 {
				if err := e.sleep(ctx, e.pacing()); err != nil {
					return added, err
				}
			}

		case ctx.Err() != nil:
			// cut short by cancellation, so the member was never refused
			return added, ctx.Err()

		case errors.As(err, &rateLimit):
			e.metrics.Invite(metrics.OutcomeRateLimited)
			wait := rateLimit.Wait + e.limits.FloodMargin
			logger.Info("rate limited", zap.Duration("wait", wait))
			if err := e.sleep(ctx, wait); err != nil {
				return added, err
			}

		default:
			if errors.Is(err, models.ErrPrivacyRejected) {
				e.metrics.Invite(metrics.OutcomePrivacy)
			} else {
				e.metrics.Invite(metrics.OutcomeError)
			}
			logger.Debug("invite rejected", zap.Int64("member_id", m.ID), zap.Error(err))
			e.mark(ctx, logger, m.ID)
		}
	}
	return added, nil
}

// filter reports whether m must be skipped, recording bots and deleted
// accounts so they are never considered again.
func (e *Engine) filter(ctx context.Context, m models.Member) (bool, error) {
	seen, err := e.ledger.Contains(ctx, m.ID)
	if err != nil {
		return false, err
	}
	if seen {
		return true, nil
	}
	if m.IsBot || m.IsDeleted {
		return true, e.ledger.Add(ctx, m.ID)
	}
	return false, nil
}

func (e *Engine) mark(ctx context.Context, logger *zap.Logger, id int64) {
	if err := e.ledger.Add(ctx, id); err != nil {
		logger.Error("failed to record member in ledger", zap.Int64("member_id", id), zap.Error(err))
	}
}

func (e *Engine) pacing() time.Duration {
	lo, hi := e.limits.MinDelay, e.limits.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rand.Int64N(int64(hi-lo)+1))
}
