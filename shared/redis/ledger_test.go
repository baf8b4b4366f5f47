package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	client, err := NewClient(ctx, "redis://"+srv.Addr())
	require.NoError(t, err)
	l := NewLedger(client, "")
	defer l.Close()

	ok, err := l.Contains(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Add(ctx, 99))
	require.NoError(t, l.Add(ctx, 99))
	require.NoError(t, l.Add(ctx, 100))

	ok, err = l.Contains(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	members, err := srv.Members(DefaultLedgerKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"99", "100"}, members)
}

func TestNewClientBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	require.Error(t, err)
}
