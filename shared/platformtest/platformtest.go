// Package platformtest provides in-memory models.Connector and models.Conn
// implementations for tests.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"memberflow/shared/models"
	"memberflow/shared/proxy"
)

// Recorder keeps an ordered event log shared by fakes and the sleeper.
type Recorder struct {
	mu     sync.Mutex
	events []string
	sleeps []time.Duration
}

func (r *Recorder) Add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *Recorder) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sleeps)
}

// Sleep records d and returns immediately.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.events = append(r.events, "sleep "+d.String())
	r.mu.Unlock()
	return ctx.Err()
}

type Conn struct {
	Rec *Recorder

	Authorized bool
	AuthErr    error
	SelfID     int64
	Members    []models.Member
	ListErr    error
	// InviteErr decides the outcome per member; nil means every invite succeeds.
	InviteErr  func(models.Member) error
	CodeHash   string
	RequestErr error
	CodeErr    error
	// CodeHook runs inside SubmitLoginCode, e.g. to hold a step in flight.
	CodeHook    func()
	PasswordErr func(password string) error
	Session     string

	mu          sync.Mutex
	invited     []int64
	disconnects int
}

func (c *Conn) IsAuthorized(context.Context) (bool, error) {
	return c.Authorized, c.AuthErr
}

func (c *Conn) Self(context.Context) (int64, error) {
	return c.SelfID, nil
}

func (c *Conn) ListMembers(_ context.Context, group string, limit int) ([]models.Member, error) {
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	members := slices.Clone(c.Members)
	if len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

func (c *Conn) Invite(_ context.Context, group string, member models.Member) error {
	c.mu.Lock()
	c.invited = append(c.invited, member.ID)
	c.mu.Unlock()
	if c.Rec != nil {
		c.Rec.Add("invite %d", member.ID)
	}
	if c.InviteErr != nil {
		return c.InviteErr(member)
	}
	return nil
}

func (c *Conn) RequestLoginCode(context.Context, string) (string, error) {
	if c.RequestErr != nil {
		return "", c.RequestErr
	}
	return c.CodeHash, nil
}

func (c *Conn) SubmitLoginCode(context.Context, string, string, string) error {
	if c.CodeHook != nil {
		c.CodeHook()
	}
	return c.CodeErr
}

func (c *Conn) SubmitPassword(_ context.Context, password string) error {
	if c.PasswordErr != nil {
		return c.PasswordErr(password)
	}
	return nil
}

func (c *Conn) ExportSession(context.Context) (string, error) {
	return c.Session, nil
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return nil
}

func (c *Conn) Invited() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.invited)
}

func (c *Conn) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// Connector hands out Conns keyed by API ID.
type Connector struct {
	Conns map[int]*Conn
	Errs  map[int]error

	mu       sync.Mutex
	connects []int
	proxies  []*proxy.Proxy
}

func (c *Connector) Connect(_ context.Context, cred models.Credential, p *proxy.Proxy) (models.Conn, error) {
	c.mu.Lock()
	c.connects = append(c.connects, cred.APIID)
	c.proxies = append(c.proxies, p)
	c.mu.Unlock()

	if err := c.Errs[cred.APIID]; err != nil {
		return nil, err
	}
	conn, ok := c.Conns[cred.APIID]
	if !ok {
		return nil, fmt.Errorf("no fake connection for api id %d", cred.APIID)
	}
	return conn, nil
}

func (c *Connector) Connects() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.connects)
}

// Members builds n ordinary members with IDs starting at first.
func Members(first int64, n int) []models.Member {
	members := make([]models.Member, 0, n)
	for i := range int64(n) {
		members = append(members, models.Member{ID: first + i, AccessHash: (first + i) * 10, DisplayName: fmt.Sprintf("user%d", first+i)})
	}
	return members
}
