package tunnel

// reverse_forwarder.go - connection bridging for the reverse tunnel.

import (
	"fmt"
	"net"
	"time"

	"netsess/util"
)

// handleConnection bridges a single remote connection to the local service.
func (rt *ReverseTunnel) handleConnection(remoteConn net.Conn) {
	defer rt.wg.Done()
	defer remoteConn.Close()
	defer rt.metrics.ConnectionClosed()

	start := time.Now()
	remoteAddr := remoteConn.RemoteAddr().String()

	localTarget := net.JoinHostPort(rt.config.LocalAddress, fmt.Sprintf("%d", rt.config.LocalPort))
	localConn, err := net.DialTimeout("tcp", localTarget, 5*time.Second)
	if err != nil {
		rt.logger.Error("local dial %s failed: %v", localTarget, err)
		rt.metrics.RecordError(fmt.Sprintf("local dial %s: %v", localTarget, err))
		return
	}
	defer localConn.Close()

	rt.logger.Info("bridging %s ↔ %s", remoteAddr, localTarget)

	in, out := util.BridgeConns(rt.ctx, remoteConn, localConn)
	rt.metrics.BytesReceived(in)
	rt.metrics.BytesSent(out)

	rt.logger.Info("%s closed after %v (in=%d out=%d)",
		remoteAddr, time.Since(start).Truncate(time.Millisecond), in, out)
}
