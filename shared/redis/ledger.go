package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultLedgerKey = "memberflow:added_members"

// Ledger stores the dedup set as a redis set so several processes can share it.
type Ledger struct {
	client *redis.Client
	key    string
}

func NewLedger(client *redis.Client, key string) *Ledger {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &Ledger{client: client, key: key}
}

func (l *Ledger) Contains(ctx context.Context, memberID int64) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.key, memberID).Result()
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return ok, nil
}

func (l *Ledger) Add(ctx context.Context, memberID int64) error {
	if err := l.client.SAdd(ctx, l.key, memberID).Err(); err != nil {
		return fmt.Errorf("ledger add: %w", err)
	}
	return nil
}

func (l *Ledger) Len(ctx context.Context) (int, error) {
	n, err := l.client.SCard(ctx, l.key).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger size: %w", err)
	}
	return int(n), nil
}

func (l *Ledger) Close() error {
	return l.client.Close()
}
