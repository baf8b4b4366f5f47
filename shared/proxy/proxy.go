// Package proxy parses egress proxy records and picks one per connection attempt.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed proxy record")

type Proxy struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
}

func (p Proxy) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p Proxy) URL() *url.URL {
	u := &url.URL{Scheme: p.Scheme, Host: p.Addr()}
	if p.Username != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.Username, p.Password)
		} else {
			u.User = url.User(p.Username)
		}
	}
	return u
}

// String omits credentials so it is safe to log.
func (p Proxy) String() string {
	return p.Scheme + "://" + p.Addr()
}

// Parse accepts "scheme:host:port[:user[:pass]]" and "scheme:user:pass@host:port".
func Parse(line string) (Proxy, error) {
	line = strings.TrimSpace(line)
	scheme, rest, ok := strings.Cut(line, ":")
	if !ok || scheme == "" || rest == "" {
		return Proxy{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	p := Proxy{Scheme: strings.ToLower(scheme)}

	if at := strings.LastIndex(rest, "@"); at >= 0 {
		user, pass, _ := strings.Cut(rest[:at], ":")
		host, port, ok := strings.Cut(rest[at+1:], ":")
		if !ok {
			return Proxy{}, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		p.Host, p.Username, p.Password = host, user, pass
		return withPort(p, port, line)
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 {
		return Proxy{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	p.Host = parts[0]
	if len(parts) > 2 {
		p.Username = parts[2]
	}
	if len(parts) > 3 {
		p.Password = strings.Join(parts[3:], ":")
	}
	return withPort(p, parts[1], line)
}

func withPort(p Proxy, port, line string) (Proxy, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 || p.Host == "" {
		return Proxy{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	p.Port = n
	return p, nil
}

// Picker returns a proxy for one connection attempt, or nil for a direct connection.
type Picker interface {
	Pick() *Proxy
}

// Selector re-reads its file on every Pick so edits apply without a restart.
type Selector struct {
	path   string
	intn   func(n int) int
	onSkip func(line string, err error)
}

type Option func(*Selector)

// WithSkipHook is called for every unparsable line.
func WithSkipHook(fn func(line string, err error)) Option {
	return func(s *Selector) { s.onSkip = fn }
}

func WithIntn(fn func(n int) int) Option {
	return func(s *Selector) { s.intn = fn }
}

func NewSelector(path string, opts ...Option) *Selector {
	s := &Selector{path: path, intn: rand.IntN}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pick returns a random proxy from the file, or nil when there is none to use.
func (s *Selector) Pick() *Proxy {
	if s == nil || s.path == "" {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	line := lines[s.intn(len(lines))]
	p, err := Parse(line)
	if err != nil {
		if s.onSkip != nil {
			s.onSkip(line, err)
		}
		return nil
	}
	return &p
}
