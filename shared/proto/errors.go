package proto

import (
	"fmt"

	"github.com/gotd/td/tgerr"

	"memberflow/shared/models"
)

var privacyErrors = []string{
	"USER_PRIVACY_RESTRICTED",
	"USER_NOT_MUTUAL_CONTACT",
	"USER_CHANNELS_TOO_MUCH",
	"USER_KICKED",
	"USER_BANNED_IN_CHANNEL",
}

func classifyInviteError(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &models.RateLimitError{Wait: wait}
	}
	if tgerr.Is(err, privacyErrors...) {
		return fmt.Errorf("%w: %w", models.ErrPrivacyRejected, err)
	}
	return err
}
