package health

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"memberflow/shared/models"
	"memberflow/shared/platformtest"
	"memberflow/shared/proxy"
	"memberflow/shared/storage"
)

type failingOwners struct {
	mu    sync.Mutex
	calls []int64
}

func (o *failingOwners) AccountRemoved(_ context.Context, acc models.Account) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, acc.ContributorID)
	return errors.New("bot was blocked by the user")
}

func newChecker(t *testing.T, connector models.Connector) *Checker {
	return NewChecker(connector, proxy.NewSelector(filepath.Join(t.TempDir(), "proxies.txt")), zap.NewNop())
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	connector := &platformtest.Connector{
		Conns: map[int]*platformtest.Conn{
			1: {Authorized: true},
			2: {Authorized: false},
			3: {AuthErr: errors.New("AUTH_KEY_UNREGISTERED")},
		},
		Errs: map[int]error{4: errors.New("i/o timeout")},
	}
	c := newChecker(t, connector)

	assert.Equal(t, StatusActive, c.Check(ctx, models.Account{APIID: 1}))
	assert.Equal(t, StatusNeedsLogin, c.Check(ctx, models.Account{APIID: 2}))
	assert.Equal(t, StatusError, c.Check(ctx, models.Account{APIID: 3}))
	assert.Equal(t, StatusError, c.Check(ctx, models.Account{APIID: 4}))
	assert.Equal(t, 1, connector.Conns[1].Disconnects())

	results := c.CheckAll(ctx, []models.Account{{APIID: 4}, {APIID: 1}, {APIID: 2}}, 2)
	require.Len(t, results, 3)
	assert.Equal(t, []Status{StatusError, StatusActive, StatusNeedsLogin},
		[]Status{results[0].Status, results[1].Status, results[2].Status})
	assert.Equal(t, 1, results[1].Account.APIID)
}

func TestSweepPrunesInvalidAccounts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileAccounts(filepath.Join(t.TempDir(), "accounts.json"), zap.NewNop())
	for id := 1; id <= 5; id++ {
		_, err := store.Save(ctx, models.Account{ContributorID: int64(id * 100), APIID: id})
		require.NoError(t, err)
	}

	connector := &platformtest.Connector{
		Conns: map[int]*platformtest.Conn{
			1: {Authorized: true},
			2: {Authorized: false},
			3: {Authorized: true},
			5: {Authorized: true},
		},
		Errs: map[int]error{4: errors.New("connection reset")},
	}
	owners := &failingOwners{}
	m := NewMonitor(newChecker(t, connector), store, owners, time.Hour, nil, zap.NewNop())

	invalid, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Len(t, invalid, 2)

	remaining, err := store.LoadAll(ctx)
	require.NoError(t, err)
	var ids []int
	for _, acc := range remaining {
		ids = append(ids, acc.APIID)
	}
	assert.Equal(t, []int{1, 3, 5}, ids)
	assert.Equal(t, []int64{200, 400}, owners.calls)
}

// cancellingConnector cancels the sweep while dialing one account.
type cancellingConnector struct {
	*platformtest.Connector
	apiID  int
	cancel context.CancelFunc
}

func (c *cancellingConnector) Connect(ctx context.Context, cred models.Credential, p *proxy.Proxy) (models.Conn, error) {
	if cred.APIID == c.apiID {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.Connector.Connect(ctx, cred, p)
}

func TestSweepCancelledKeepsAccounts(t *testing.T) {
	store := storage.NewFileAccounts(filepath.Join(t.TempDir(), "accounts.json"), zap.NewNop())
	for id := 1; id <= 2; id++ {
		_, err := store.Save(context.Background(), models.Account{ContributorID: int64(id * 100), APIID: id})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connector := &cancellingConnector{
		Connector: &platformtest.Connector{Conns: map[int]*platformtest.Conn{
			1: {Authorized: true},
			2: {Authorized: true},
		}},
		apiID:  2,
		cancel: cancel,
	}
	owners := &failingOwners{}
	m := NewMonitor(newChecker(t, connector), store, owners, time.Hour, nil, zap.NewNop())

	invalid, err := m.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, invalid)

	remaining, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
	assert.Empty(t, owners.calls)
}

func TestSweepEmptyStore(t *testing.T) {
	store := storage.NewFileAccounts(filepath.Join(t.TempDir(), "accounts.json"), zap.NewNop())
	m := NewMonitor(newChecker(t, &platformtest.Connector{}), store, nil, time.Hour, nil, zap.NewNop())

	invalid, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, invalid)
}

func TestMonitorRunStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := storage.NewFileAccounts(filepath.Join(t.TempDir(), "accounts.json"), zap.NewNop())
	m := NewMonitor(newChecker(t, &platformtest.Connector{}), store, nil, time.Millisecond, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))
}
