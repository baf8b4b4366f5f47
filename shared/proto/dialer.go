package proto

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	netproxy "golang.org/x/net/proxy"

	"memberflow/shared/proxy"
)

func init() {
	netproxy.RegisterDialerType("http", newConnectDialer)
}

// dialerFor returns a direct dialer when p is nil.
func dialerFor(p *proxy.Proxy) (netproxy.ContextDialer, error) {
	if p == nil {
		return &net.Dialer{}, nil
	}
	d, err := netproxy.FromURL(p.URL(), netproxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", p, err)
	}
	if cd, ok := d.(netproxy.ContextDialer); ok {
		return cd, nil
	}
	return contextless{d}, nil
}

type contextless struct{ netproxy.Dialer }

func (c contextless) DialContext(_ context.Context, network, addr string) (net.Conn, error) {
	return c.Dial(network, addr)
}

// connectDialer tunnels through an HTTP proxy with CONNECT.
type connectDialer struct {
	addr    string
	user    *url.Userinfo
	forward netproxy.Dialer
}

func newConnectDialer(u *url.URL, forward netproxy.Dialer) (netproxy.Dialer, error) {
	return &connectDialer{addr: u.Host, user: u.User, forward: forward}, nil
}

func (d *connectDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *connectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var (
		conn net.Conn
		err  error
	)
	if cd, ok := d.forward.(netproxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, network, d.addr)
	} else {
		conn, err = d.forward.Dial(network, d.addr)
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if d.user != nil {
		pass, _ := d.user.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(d.user.Username() + ":" + pass))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write CONNECT: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}
	// the body of a successful CONNECT is the tunnel itself
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy refused CONNECT: %s", resp.Status)
	}
	return conn, nil
}
