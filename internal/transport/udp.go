package transport

import (
	"context"
	"net"
	"time"
)

// UDPDialer establishes connected UDP sockets. "Connected" here means
// the OS pins the remote address so plain Read/Write work, matching
// the Dialer interface; datagram boundaries are preserved by UDP
// itself.
type UDPDialer struct {
	Timeout time.Duration
}

// Dial connects a UDP socket to address.
func (d *UDPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless UDP dialers.
func (d *UDPDialer) Close() error { return nil }
