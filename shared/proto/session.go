package proto

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
)

// Session tokens are either a Telethon StringSession (version prefix "1") or
// base64 of the gotd session JSON. Exported tokens always use the latter.

func loadToken(ctx context.Context, storage *session.StorageMemory, token string) error {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return nil
	case strings.HasPrefix(token, "1"):
		data, err := session.TelethonSession(token)
		if err != nil {
			return fmt.Errorf("decode telethon session: %w", err)
		}
		return (&session.Loader{Storage: storage}).Save(ctx, data)
	default:
		raw, err := base64.StdEncoding.DecodeString(token)
		if err != nil {
			return fmt.Errorf("decode session token: %w", err)
		}
		return storage.StoreSession(ctx, raw)
	}
}

func exportToken(ctx context.Context, storage *session.StorageMemory) (string, error) {
	raw, err := storage.LoadSession(ctx)
	if errors.Is(err, session.ErrNotFound) || (err == nil && len(raw) == 0) {
		return "", errors.New("no session to export")
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
