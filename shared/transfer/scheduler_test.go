package transfer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"memberflow/shared/models"
	"memberflow/shared/platformtest"
	"memberflow/shared/storage"
)

type schedFixture struct {
	*fixture
	queue    *storage.FileQueue
	accounts *storage.FileAccounts
}

func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()
	dir := t.TempDir()
	return &schedFixture{
		fixture:  newFixture(t, DefaultLimits()),
		queue:    storage.NewFileQueue(filepath.Join(dir, "queue.json"), zap.NewNop()),
		accounts: storage.NewFileAccounts(filepath.Join(dir, "accounts.json"), zap.NewNop()),
	}
}

func (f *schedFixture) scheduler(n Notifier) *Scheduler {
	return NewScheduler(f.queue, f.accounts, f.engine, n, SchedulerConfig{
		PollInterval: 10 * time.Millisecond,
		JobTarget:    200,
	}, zap.NewNop())
}

func TestSchedulerNoAccounts(t *testing.T) {
	ctx := context.Background()
	f := newSchedFixture(t)
	notifier := &recordingNotifier{}

	_, err := f.queue.Push(ctx, models.NewJob(1, "src", "dst"))
	require.NoError(t, err)

	f.scheduler(notifier).Tick(ctx)

	assert.Equal(t, []string{"failed src " + ReasonNoAccounts}, notifier.Events())
	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerFIFO(t *testing.T) {
	ctx := context.Background()
	f := newSchedFixture(t)
	f.addConn(1, platformtest.Members(1, 3))
	_, err := f.accounts.Save(ctx, models.Account{APIID: 1})
	require.NoError(t, err)

	for _, src := range []string{"first", "second"} {
		_, err := f.queue.Push(ctx, models.NewJob(1, src, "dst"))
		require.NoError(t, err)
	}

	notifier := &recordingNotifier{}
	s := f.scheduler(notifier)
	s.Tick(ctx)
	s.Tick(ctx)
	s.Tick(ctx)

	assert.Equal(t, []string{
		"started first",
		"finished first 3",
		"started second",
		"finished second 0",
	}, notifier.Events())
}

type blockingNotifier struct {
	recordingNotifier
	started chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) Started(ctx context.Context, job models.Job) {
	n.recordingNotifier.Started(ctx, job)
	n.started <- struct{}{}
	<-n.release
}

func TestSchedulerSingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := newSchedFixture(t)
	f.addConn(1, platformtest.Members(1, 1))
	_, err := f.accounts.Save(ctx, models.Account{APIID: 1})
	require.NoError(t, err)
	for _, src := range []string{"a", "b"} {
		_, err := f.queue.Push(ctx, models.NewJob(1, src, "dst"))
		require.NoError(t, err)
	}

	notifier := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	s := f.scheduler(notifier)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Tick(ctx)
	}()

	<-notifier.started
	assert.True(t, s.Busy())

	// a second tick while the first job runs must not start another job
	s.Tick(ctx)
	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	close(notifier.release)
	<-done
	assert.False(t, s.Busy())
	assert.Equal(t, []string{"started a", "finished a 1"}, notifier.Events())
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newSchedFixture(t)
	notifier := &recordingNotifier{}
	_, err := f.queue.Push(context.Background(), models.NewJob(1, "src", "dst"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.scheduler(notifier).Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(notifier.Events()) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}

func TestSchedulerInterruptedJobIsNotCompleted(t *testing.T) {
	f := newSchedFixture(t)
	conn := f.addConn(1, platformtest.Members(1, 3))
	_, err := f.accounts.Save(context.Background(), models.Account{APIID: 1})
	require.NoError(t, err)
	_, err = f.queue.Push(context.Background(), models.NewJob(1, "src", "dst"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.InviteErr = func(models.Member) error {
		cancel()
		return nil
	}

	notifier := &recordingNotifier{}
	f.scheduler(notifier).Tick(ctx)

	assert.Equal(t, []string{"started src", "failed src " + ReasonInterrupted}, notifier.Events())
}
