package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	ncerr "netsess/internal/errors"
	"netsess/internal/transport"
	"netsess/session"
)

// Connector dials outbound connections and turns each one into a
// session. The transport.Dialer decides how the conn is made (plain
// TCP, UDP, or through an SSH tunnel); the Connector only cares that
// it gets a net.Conn to wrap.
type Connector struct {
	Service *Service
	Dialer  transport.Dialer
}

// Dial connects to network/address and starts a session over the
// result, with h as its initial Handler.
func (c *Connector) Dial(ctx context.Context, network, address string, h session.Handler) (*session.Session, error) {
	conn, err := c.Dialer.Dial(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	c.Service.Logger.Verbose("connected to %s", conn.RemoteAddr())
	return c.Service.NewSession(ctx, conn, h, address), nil
}

// DialSequence tries each address in order, returning a session over
// the first one that connects. This is what the SOCKS5 demo uses for
// domain-name CONNECT requests that resolve to several addresses,
// mirroring the original socks5 handler's resolver-driven connect_to
// (a generator trying resolved addresses in turn rather than a single
// Dial): modelled here as a plain slice since Go has no generator
// syntax to imitate.
func (c *Connector) DialSequence(ctx context.Context, network string, addresses []string, h session.Handler) (*session.Session, error) {
	if len(addresses) == 0 {
		return nil, errors.New("service: DialSequence: no addresses given")
	}
	var errs []error
	for _, addr := range addresses {
		sess, err := c.Dial(ctx, network, addr, h)
		if err == nil {
			return sess, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("service: DialSequence: all %d candidates failed: %w", len(addresses), errors.Join(errs...))
}

// ResolveAndDialSequence resolves host via net.DefaultResolver and
// tries each resulting address in resolver order, for handlers (SOCKS5)
// that receive a domain name rather than a literal address.
func (c *Connector) ResolveAndDialSequence(ctx context.Context, host string, port int, h session.Handler) (*session.Session, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	addrs := make([]string, len(ips))
	for i, ip := range ips {
		addrs[i] = net.JoinHostPort(ip.String(), fmt.Sprint(port))
	}
	return c.DialSequence(ctx, "tcp", addrs, h)
}
