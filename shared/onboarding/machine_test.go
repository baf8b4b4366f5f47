package onboarding

import (
	"context"
	"errors"
	"path/filepath"
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

const requester = int64(42)

type harness struct {
	machine  *Machine
	accounts *storage.FileAccounts
	conn     *platformtest.Conn
	clock    time.Time
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		accounts: storage.NewFileAccounts(filepath.Join(dir, "accounts.json"), zap.NewNop()),
		conn:     &platformtest.Conn{CodeHash: "hash-1", Session: "token-1", SelfID: 777},
		clock:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	connector := &platformtest.Connector{Conns: map[int]*platformtest.Conn{12345: h.conn}}
	opts = append([]Option{WithClock(func() time.Time { return h.clock })}, opts...)
	h.machine = NewMachine(connector, proxy.NewSelector(filepath.Join(dir, "proxies.txt")), h.accounts, 15*time.Minute, zap.NewNop(), opts...)
	return h
}

// toCode drives a fresh conversation up to awaiting_code.
func (h *harness) toCode(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	h.machine.Start(requester)
	require.Equal(t, Prompted, h.machine.Handle(ctx, requester, "12345").Outcome)
	require.Equal(t, Prompted, h.machine.Handle(ctx, requester, "abcdef").Outcome)
	reply := h.machine.Handle(ctx, requester, "+15550001111")
	require.Equal(t, Prompted, reply.Outcome)
	require.IsType(t, AwaitingCode{}, reply.Phase)
}

func (h *harness) stored(t *testing.T) []models.Account {
	t.Helper()
	all, err := h.accounts.LoadAll(context.Background())
	require.NoError(t, err)
	return all
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	h.toCode(t)

	reply := h.machine.Handle(context.Background(), requester, "1 2 3 4 5")
	require.Equal(t, Saved, reply.Outcome)
	assert.True(t, reply.Done())
	assert.Nil(t, reply.Phase)
	assert.False(t, h.machine.Active(requester))

	all := h.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, models.Account{
		ContributorID: requester,
		APIID:         12345,
		APIHash:       "abcdef",
		Session:       "token-1",
		Status:        models.AccountActive,
	}, all[0])
	assert.Equal(t, 1, h.conn.Disconnects())
}

func TestNonNumericAPIIDReprompts(t *testing.T) {
	h := newHarness(t)
	h.machine.Start(requester)

	reply := h.machine.Handle(context.Background(), requester, "twelve")
	assert.Equal(t, InvalidInput, reply.Outcome)
	assert.Equal(t, AwaitingAPIID{}, h.machine.Phase(requester))

	reply = h.machine.Handle(context.Background(), requester, "12345")
	assert.Equal(t, AwaitingAPIHash{APIID: 12345}, reply.Phase)
}

func TestPasswordRequired(t *testing.T) {
	h := newHarness(t)
	h.conn.CodeErr = models.ErrPasswordRequired
	h.toCode(t)

	reply := h.machine.Handle(context.Background(), requester, "12345")
	assert.Equal(t, Prompted, reply.Outcome)
	assert.Equal(t, "awaiting_password", h.machine.Phase(requester).Name())
	assert.Empty(t, h.stored(t))
	assert.Zero(t, h.conn.Disconnects())
}

func TestPasswordRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.conn.CodeErr = models.ErrPasswordRequired
	h.conn.PasswordErr = func(pw string) error {
		if pw != "correct horse" {
			return errors.New("PASSWORD_HASH_INVALID")
		}
		return nil
	}
	h.toCode(t)
	h.machine.Handle(ctx, requester, "12345")

	reply := h.machine.Handle(ctx, requester, "typo")
	assert.Equal(t, PasswordRejected, reply.Outcome)
	assert.False(t, reply.Done())
	assert.IsType(t, AwaitingPassword{}, h.machine.Phase(requester))
	assert.Zero(t, h.conn.Disconnects())

	reply = h.machine.Handle(ctx, requester, "correct horse")
	assert.Equal(t, Saved, reply.Outcome)
	assert.Len(t, h.stored(t), 1)
	assert.Equal(t, 1, h.conn.Disconnects())
}

func TestCodeFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.conn.CodeErr = errors.New("PHONE_CODE_INVALID")
	h.toCode(t)

	reply := h.machine.Handle(context.Background(), requester, "00000")
	assert.Equal(t, Aborted, reply.Outcome)
	assert.True(t, reply.Done())
	assert.False(t, h.machine.Active(requester))
	assert.Equal(t, 1, h.conn.Disconnects())
	assert.Empty(t, h.stored(t))

	assert.Equal(t, NoSession, h.machine.Handle(context.Background(), requester, "1").Outcome)
}

func TestRequestCodeFailureAborts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.conn.RequestErr = errors.New("PHONE_NUMBER_INVALID")

	h.machine.Start(requester)
	h.machine.Handle(ctx, requester, "12345")
	h.machine.Handle(ctx, requester, "abcdef")
	reply := h.machine.Handle(ctx, requester, "+1")

	assert.Equal(t, Aborted, reply.Outcome)
	assert.False(t, h.machine.Active(requester))
	assert.Equal(t, 1, h.conn.Disconnects())
}

func TestDuplicateAPIID(t *testing.T) {
	h := newHarness(t)
	_, err := h.accounts.Save(context.Background(), models.Account{ContributorID: 1, APIID: 12345})
	require.NoError(t, err)
	h.toCode(t)

	reply := h.machine.Handle(context.Background(), requester, "12345")
	assert.Equal(t, Duplicate, reply.Outcome)
	all := h.stored(t)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), all[0].ContributorID)
}

func TestStartDiscardsLiveSession(t *testing.T) {
	h := newHarness(t)
	h.toCode(t)

	reply := h.machine.Start(requester)
	assert.Equal(t, AwaitingAPIID{}, reply.Phase)
	assert.Equal(t, 1, h.conn.Disconnects())
	assert.Equal(t, AwaitingAPIID{}, h.machine.Phase(requester))

	assert.True(t, h.machine.Cancel(requester))
	assert.False(t, h.machine.Cancel(requester))
}

func TestStartDoesNotWaitForStepInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	h.toCode(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.conn.CodeErr = models.ErrPasswordRequired
	h.conn.CodeHook = func() {
		close(entered)
		<-release
	}

	handled := make(chan Reply, 1)
	go func() { handled <- h.machine.Handle(context.Background(), requester, "12345") }()
	<-entered

	started := make(chan Reply, 1)
	go func() { started <- h.machine.Start(requester) }()
	var reply Reply
	select {
	case reply = <-started:
	case <-time.After(time.Second):
		close(release)
		t.Fatal("Start waited for the running login step")
	}
	assert.Equal(t, AwaitingAPIID{}, reply.Phase)
	assert.Zero(t, h.conn.Disconnects())

	close(release)
	<-handled
	assert.Equal(t, 1, h.conn.Disconnects())
	assert.Equal(t, AwaitingAPIID{}, h.machine.Phase(requester))
}

func TestExpireIdle(t *testing.T) {
	h := newHarness(t)
	h.toCode(t)
	h.machine.Start(7)

	h.clock = h.clock.Add(10 * time.Minute)
	h.machine.Handle(context.Background(), 7, "1")

	h.clock = h.clock.Add(6 * time.Minute)
	assert.Equal(t, 1, h.machine.ExpireIdle())
	assert.False(t, h.machine.Active(requester))
	assert.True(t, h.machine.Active(7))
	assert.Equal(t, 1, h.conn.Disconnects())
}

func TestSelfContributor(t *testing.T) {
	h := newHarness(t, WithSelfContributor())
	h.toCode(t)

	reply := h.machine.Handle(context.Background(), requester, "12345")
	require.Equal(t, Saved, reply.Outcome)
	assert.Equal(t, int64(777), reply.Account.ContributorID)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.toCode(t)
	h.machine.Close()
	assert.False(t, h.machine.Active(requester))
	assert.Equal(t, 1, h.conn.Disconnects())
}
