// Package onboarding mints new accounts through an interactive login
// conversation, one session per requester.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"memberflow/shared/models"
	"memberflow/shared/proxy"
	"memberflow/shared/storage"
)

type Outcome int

const (
	// NoSession means the requester has no conversation in progress.
	NoSession Outcome = iota
	Prompted
	InvalidInput
	PasswordRejected
	Saved
	Duplicate
	Aborted
)

type Reply struct {
	Outcome Outcome
	Phase   Phase
	Text    string
	Account *models.Account
	Err     error
}

// Done reports whether the conversation ended with this reply.
func (r Reply) Done() bool {
	switch r.Outcome {
	case Saved, Duplicate, Aborted:
		return true
	}
	return false
}

const (
	textAskAPIID       = "Send your API ID (the number shown on my.telegram.org)."
	textBadAPIID       = "The API ID must be a number. Send it again."
	textAskAPIHash     = "Now send your API hash."
	textEmptyAPIHash   = "The API hash cannot be empty. Send it again."
	textAskPhone       = "Send the account's phone number with the country code, e.g. +15551234567."
	textAskCode        = "A login code was sent to the account. Send it here."
	textAskPassword    = "The account has two-step verification. Send its password."
	textBadPassword    = "Wrong password: %v. Send it again."
	textSaved          = "Success! The account was added to the pool."
	textDuplicate      = "This API ID is already registered, nothing was added."
	textAborted        = "Login failed: %v. Start again with /start."
	textRequestAborted = "Could not request a login code: %v. Start again with /start."
)

type session struct {
	mu      sync.Mutex
	phase   Phase
	touched time.Time
}

type Option func(*Machine)

// WithSelfContributor records the logged-in account's own user ID as the
// contributor instead of the requester ID.
func WithSelfContributor() Option {
	return func(m *Machine) { m.selfContributor = true }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

type Machine struct {
	connector models.Connector
	proxies   proxy.Picker
	accounts  storage.Accounts
	idle      time.Duration
	logger    *zap.Logger

	selfContributor bool
	now             func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewMachine(connector models.Connector, proxies proxy.Picker, accounts storage.Accounts, idle time.Duration, logger *zap.Logger, opts ...Option) *Machine {
	m := &Machine{
		connector: connector,
		proxies:   proxies,
		accounts:  accounts,
		idle:      idle,
		logger:    logger.Named("onboarding"),
		now:       time.Now,
		sessions:  make(map[int64]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a fresh conversation, discarding any previous one.
func (m *Machine) Start(requester int64) Reply {
	m.mu.Lock()
	old := m.sessions[requester]
	m.sessions[requester] = &session{phase: AwaitingAPIID{}, touched: m.now()}
	m.mu.Unlock()

	if old != nil {
		m.release(old)
	}
	return Reply{Outcome: Prompted, Phase: AwaitingAPIID{}, Text: textAskAPIID}
}

// Cancel discards the requester's conversation and reports whether one existed.
func (m *Machine) Cancel(requester int64) bool {
	m.mu.Lock()
	s := m.sessions[requester]
	delete(m.sessions, requester)
	m.mu.Unlock()

	if s == nil {
		return false
	}
	m.release(s)
	return true
}

// Phase returns the requester's current phase, or nil.
func (m *Machine) Phase(requester int64) Phase {
	m.mu.Lock()
	s := m.sessions[requester]
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (m *Machine) Active(requester int64) bool {
	return m.Phase(requester) != nil
}

// Handle feeds one message of input into the requester's conversation.
func (m *Machine) Handle(ctx context.Context, requester int64, input string) Reply {
	m.mu.Lock()
	s := m.sessions[requester]
	m.mu.Unlock()
	if s == nil {
		return Reply{Outcome: NoSession}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == nil {
		return Reply{Outcome: NoSession}
	}
	s.touched = m.now()

	logger := m.logger.With(zap.Int64("requester_id", requester), zap.String("phase", s.phase.Name()))
	input = strings.TrimSpace(input)

	var (
		next  Phase
		reply Reply
	)
	switch p := s.phase.(type) {
	case AwaitingAPIID:
		next, reply = m.apiID(p, input)
	case AwaitingAPIHash:
		next, reply = m.apiHash(p, input)
	case AwaitingPhone:
		next, reply = m.phone(ctx, p, input)
	case AwaitingCode:
		next, reply = m.code(ctx, requester, p, input)
	case AwaitingPassword:
		next, reply = m.password(ctx, requester, p, input)
	default:
		next, reply = nil, Reply{Outcome: Aborted, Err: fmt.Errorf("unknown phase %T", p)}
	}

	if reply.Err != nil {
		logger.Info("onboarding step failed", zap.Error(reply.Err))
	}

	s.phase = next
	reply.Phase = next
	if next == nil {
		m.mu.Lock()
		if m.sessions[requester] == s {
			delete(m.sessions, requester)
		}
		m.mu.Unlock()
	} else if m.detached(requester, s) {
		// Start or Cancel replaced this session while the step was running.
		if conn := liveConn(next); conn != nil {
			_ = conn.Disconnect()
		}
		s.phase = nil
	}
	return reply
}

func (m *Machine) detached(requester int64, s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[requester] != s
}

func (m *Machine) apiID(p AwaitingAPIID, input string) (Phase, Reply) {
	id, err := strconv.Atoi(input)
	if err != nil || id <= 0 {
		return p, Reply{Outcome: InvalidInput, Text: textBadAPIID}
	}
	return AwaitingAPIHash{APIID: id}, Reply{Outcome: Prompted, Text: textAskAPIHash}
}

func (m *Machine) apiHash(p AwaitingAPIHash, input string) (Phase, Reply) {
	if input == "" {
		return p, Reply{Outcome: InvalidInput, Text: textEmptyAPIHash}
	}
	return AwaitingPhone{APIID: p.APIID, APIHash: input}, Reply{Outcome: Prompted, Text: textAskPhone}
}

func (m *Machine) phone(ctx context.Context, p AwaitingPhone, input string) (Phase, Reply) {
	if input == "" {
		return p, Reply{Outcome: InvalidInput, Text: textAskPhone}
	}
	conn, err := m.connector.Connect(ctx, models.Credential{APIID: p.APIID, APIHash: p.APIHash}, m.proxies.Pick())
	if err != nil {
		return nil, Reply{Outcome: Aborted, Text: fmt.Sprintf(textRequestAborted, err), Err: err}
	}
	codeHash, err := conn.RequestLoginCode(ctx, input)
	if err != nil {
		_ = conn.Disconnect()
		return nil, Reply{Outcome: Aborted, Text: fmt.Sprintf(textRequestAborted, err), Err: err}
	}
	next := AwaitingCode{APIID: p.APIID, APIHash: p.APIHash, Phone: input, CodeHash: codeHash, conn: conn}
	return next, Reply{Outcome: Prompted, Text: textAskCode}
}

func (m *Machine) code(ctx context.Context, requester int64, p AwaitingCode, input string) (Phase, Reply) {
	code := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)

	err := p.conn.SubmitLoginCode(ctx, p.Phone, code, p.CodeHash)
	switch {
	case err == nil:
		return nil, m.finish(ctx, requester, p.APIID, p.APIHash, p.conn)
	case errors.Is(err, models.ErrPasswordRequired):
		next := AwaitingPassword{APIID: p.APIID, APIHash: p.APIHash, Phone: p.Phone, conn: p.conn}
		return next, Reply{Outcome: Prompted, Text: textAskPassword}
	default:
		_ = p.conn.Disconnect()
		return nil, Reply{Outcome: Aborted, Text: fmt.Sprintf(textAborted, err), Err: err}
	}
}

// password keeps the session on failure so the requester can retry.
func (m *Machine) password(ctx context.Context, requester int64, p AwaitingPassword, input string) (Phase, Reply) {
	if err := p.conn.SubmitPassword(ctx, input); err != nil {
		return p, Reply{Outcome: PasswordRejected, Text: fmt.Sprintf(textBadPassword, err), Err: err}
	}
	return nil, m.finish(ctx, requester, p.APIID, p.APIHash, p.conn)
}

func (m *Machine) finish(ctx context.Context, requester int64, apiID int, apiHash string, conn models.Conn) Reply {
	defer conn.Disconnect()

	token, err := conn.ExportSession(ctx)
	if err != nil {
		return Reply{Outcome: Aborted, Text: fmt.Sprintf(textAborted, err), Err: err}
	}
	contributor := requester
	if m.selfContributor {
		if contributor, err = conn.Self(ctx); err != nil {
			return Reply{Outcome: Aborted, Text: fmt.Sprintf(textAborted, err), Err: err}
		}
	}

	acc := models.Account{
		ContributorID: contributor,
		APIID:         apiID,
		APIHash:       apiHash,
		Session:       token,
		Status:        models.AccountActive,
	}
	added, err := m.accounts.Save(ctx, acc)
	if err != nil {
		return Reply{Outcome: Aborted, Text: fmt.Sprintf(textAborted, err), Err: err}
	}
	if !added {
		return Reply{Outcome: Duplicate, Text: textDuplicate, Account: &acc}
	}
	m.logger.Info("account added", zap.Int64("contributor_id", contributor), zap.Int("api_id", apiID))
	return Reply{Outcome: Saved, Text: textSaved, Account: &acc}
}

// ExpireIdle discards sessions untouched for longer than the idle timeout
// and returns how many were dropped.
func (m *Machine) ExpireIdle() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var expired []*session
	for requester, s := range m.sessions {
		if !s.mu.TryLock() {
			continue // a step is in progress
		}
		if s.touched.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, requester)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.release(s)
	}
	return len(expired)
}

// RunExpiry calls ExpireIdle every interval until ctx is done.
func (m *Machine) RunExpiry(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.ExpireIdle(); n > 0 {
				m.logger.Info("expired idle onboarding sessions", zap.Int("count", n))
			}
		}
	}
}

// Close drops every session and their connections.
func (m *Machine) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int64]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.release(s)
	}
}

// release closes a session already removed from the registry. A session
// with a step in flight is left to Handle, which finds it detached.
func (m *Machine) release(s *session) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()
	if conn := liveConn(s.phase); conn != nil {
		if err := conn.Disconnect(); err != nil {
			m.logger.Debug("disconnect failed", zap.Error(err))
		}
	}
	s.phase = nil
}
