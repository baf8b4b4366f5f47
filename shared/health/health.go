// Package health validates stored accounts and prunes the ones that can no
// longer log in.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memberflow/shared/metrics"
	"memberflow/shared/models"
	"memberflow/shared/proxy"
	"memberflow/shared/storage"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusNeedsLogin Status = "needs login"
	StatusError      Status = "error"
)

func (s Status) Valid() bool { return s == StatusActive }

type Checker struct {
	connector models.Connector
	proxies   proxy.Picker
	logger    *zap.Logger
}

func NewChecker(connector models.Connector, proxies proxy.Picker, logger *zap.Logger) *Checker {
	return &Checker{connector: connector, proxies: proxies, logger: logger.Named("health")}
}

// Check connects with a fresh proxy and asks whether the session is still
// authorized. Connection and protocol failures yield StatusError.
func (c *Checker) Check(ctx context.Context, acc models.Account) Status {
	logger := c.logger.With(zap.Int("api_id", acc.APIID))

	conn, err := c.connector.Connect(ctx, acc.Credential(), c.proxies.Pick())
	if err != nil {
		logger.Debug("connect failed", zap.Error(err))
		return StatusError
	}
	defer conn.Disconnect()

	ok, err := conn.IsAuthorized(ctx)
	switch {
	case err != nil:
		logger.Debug("auth check failed", zap.Error(err))
		return StatusError
	case !ok:
		return StatusNeedsLogin
	default:
		return StatusActive
	}
}

type Result struct {
	Account models.Account
	Status  Status
}

// CheckAll checks accounts with at most limit connections open at once.
// Results keep the order of accounts.
func (c *Checker) CheckAll(ctx context.Context, accounts []models.Account, limit int) []Result {
	results := make([]Result, len(accounts))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, acc := range accounts {
		g.Go(func() error {
			results[i] = Result{Account: acc, Status: c.Check(ctx, acc)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// OwnerNotifier tells a contributor that one of their accounts was removed.
type OwnerNotifier interface {
	AccountRemoved(ctx context.Context, acc models.Account) error
}

type Monitor struct {
	checker  *Checker
	accounts storage.Accounts
	owners   OwnerNotifier
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewMonitor(checker *Checker, accounts storage.Accounts, owners OwnerNotifier, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		checker:  checker,
		accounts: accounts,
		owners:   owners,
		interval: interval,
		metrics:  m,
		logger:   logger.Named("health"),
	}
}

// Run sweeps on every interval until ctx is done. The first sweep happens
// one interval after start.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error("health sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep checks every stored account one by one and removes the invalid
// ones in a single store rewrite.
func (m *Monitor) Sweep(ctx context.Context) ([]models.Account, error) {
	accounts, err := m.accounts.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var invalid []models.Account
	for _, acc := range accounts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		status := m.checker.Check(ctx, acc)
		if err := ctx.Err(); err != nil {
			// a check cut short by shutdown is no verdict
			return nil, err
		}
		if !status.Valid() {
			m.logger.Info("account invalid", zap.Int("api_id", acc.APIID), zap.String("status", string(status)))
			invalid = append(invalid, acc)
		}
	}

	removed := 0
	if len(invalid) > 0 {
		ids := make([]int, 0, len(invalid))
		for _, acc := range invalid {
			ids = append(ids, acc.APIID)
		}
		removed, err = m.accounts.Remove(ctx, ids...)
		if err != nil {
			return nil, err
		}
	}
	m.metrics.Sweep(removed)
	m.metrics.PoolSize(len(accounts) - removed)
	m.logger.Info("health sweep finished", zap.Int("checked", len(accounts)), zap.Int("removed", removed))

	for _, acc := range invalid {
		if m.owners == nil {
			break
		}
		if err := m.owners.AccountRemoved(ctx, acc); err != nil {
			m.logger.Warn("failed to notify account owner",
				zap.Int64("contributor_id", acc.ContributorID),
				zap.Int("api_id", acc.APIID),
				zap.Error(err))
		}
	}
	return invalid, nil
}
