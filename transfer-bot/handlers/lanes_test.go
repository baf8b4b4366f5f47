package handlers

import (
	"context"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"memberflow/shared/models"
	"memberflow/shared/platformtest"
)

func TestLanesKeepOrderPerKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := newLanes()
	var mu sync.Mutex
	got := map[int64][]int{}
	for i := range 200 {
		key := int64(i % 3)
		l.Go(key, func() {
			mu.Lock()
			defer mu.Unlock()
			got[key] = append(got[key], i)
		})
	}
	l.Wait()

	for key, want := range map[int64]int{0: 67, 1: 67, 2: 66} {
		require.Len(t, got[key], want)
		for j := 1; j < len(got[key]); j++ {
			assert.Less(t, got[key][j-1], got[key][j], "key %d", key)
		}
	}
}

func TestLanesRunKeysConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := newLanes()
	release := make(chan struct{})
	l.Go(1, func() { <-release })

	done := make(chan struct{})
	l.Go(2, func() { close(done) })
	<-done

	close(release)
	l.Wait()
}

func TestDispatchKeepsConversationOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEnv(t, Options{})
	e.conns.Conns[31337] = &platformtest.Conn{CodeHash: "h", Session: "tok", CodeErr: models.ErrPasswordRequired}

	ctx := context.Background()
	for _, u := range []tgbotapi.Update{
		callback(userID, cbAddAccount),
		message(userID, "31337"),
		message(userID, "hash"),
		message(userID, "+100"),
		message(userID, "12345"),
		message(userID, "secret"),
	} {
		e.handler.Dispatch(ctx, u)
	}
	e.handler.Wait()

	all, err := e.accounts.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 31337, all[0].APIID)
}
