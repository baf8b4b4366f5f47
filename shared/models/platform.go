package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memberflow/shared/proxy"
)

var (
	ErrNotAuthorized    = errors.New("account is not authorized")
	ErrPasswordRequired = errors.New("two-step verification password required")
	ErrPrivacyRejected  = errors.New("invite rejected by user restrictions")
	ErrUnsupportedGroup = errors.New("group is not a supergroup or channel")
)

// RateLimitError carries the wait the platform demands before the next call.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Wait)
}

type Credential struct {
	APIID   int
	APIHash string
	Session string
}

type Member struct {
	ID          int64
	AccessHash  int64
	IsBot       bool
	IsDeleted   bool
	DisplayName string
}

// Conn is a live session with the chat platform. Every Conn returned by a
// Connector must be released with Disconnect.
type Conn interface {
	IsAuthorized(ctx context.Context) (bool, error)
	Self(ctx context.Context) (int64, error)
	ListMembers(ctx context.Context, group string, limit int) ([]Member, error)
	// Invite returns nil, a *RateLimitError, an error wrapping ErrPrivacyRejected, or any other error.
	Invite(ctx context.Context, group string, member Member) error
	RequestLoginCode(ctx context.Context, phone string) (string, error)
	// SubmitLoginCode returns ErrPasswordRequired when the account has two-step verification.
	SubmitLoginCode(ctx context.Context, phone, code, codeHash string) error
	SubmitPassword(ctx context.Context, password string) error
	ExportSession(ctx context.Context) (string, error)
	Disconnect() error
}

type Connector interface {
	Connect(ctx context.Context, cred Credential, p *proxy.Proxy) (Conn, error)
}
