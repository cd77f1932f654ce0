package tunnel

// reverse_health.go - keepalive and reconnection for the reverse
// tunnel.

import (
	"fmt"
	"time"

	"netsess/internal/retry"
)

// keepaliveLoop sends periodic SSH keep-alive requests and closes the
// listener if the connection has died, letting acceptLoop handle
// reconnection.
func (rt *ReverseTunnel) keepaliveLoop() {
	defer rt.wg.Done()

	ticker := time.NewTicker(rt.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rt.ctx.Done():
			return
		case <-ticker.C:
			rt.mu.Lock()
			client := rt.client
			rt.mu.Unlock()

			if client == nil {
				return
			}

			_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
			if err != nil {
				rt.logger.Error("SSH keepalive failed: %v", err)
				rt.metrics.RecordError(fmt.Sprintf("keepalive: %v", err))
				// Close the listener to unblock Accept so the
				// acceptLoop can handle reconnection.
				rt.mu.Lock()
				if rt.listener != nil {
					rt.listener.Close()
					rt.listener = nil
				}
				rt.mu.Unlock()
				return
			}
			rt.metrics.RecordHealthCheck()
			rt.logger.Debug("SSH keepalive OK")
		}
	}
}

// reconnect tears down the current tunnel and re-establishes it with
// exponential backoff.  It is only called from acceptLoop.
func (rt *ReverseTunnel) reconnect() error {
	rt.logger.Info("reconnecting...")
	rt.metrics.TunnelReconnect()

	// Tear down old resources.
	rt.mu.Lock()
	if rt.listener != nil {
		rt.listener.Close()
		rt.listener = nil
	}
	if rt.client != nil {
		rt.client.Close()
		rt.client = nil
	}
	rt.mu.Unlock()

	bo := &retry.Backoff{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		MaxAttempts:  10,
		Jitter:       true,
	}

	return bo.Do(rt.ctx, func(attempt int) error {
		client, err := rt.dialSSH(rt.ctx)
		if err != nil {
			rt.logger.Error("reconnect %d SSH: %v", attempt, err)
			rt.metrics.RecordError(fmt.Sprintf("reconnect SSH attempt %d: %v", attempt, err))
			return err
		}

		listener, err := listenRemoteForward(client, rt.config.RemoteBindAddress, rt.config.RemotePort)
		if err != nil {
			rt.logger.Error("reconnect %d listen: %v", attempt, err)
			rt.metrics.RecordError(fmt.Sprintf("reconnect listen attempt %d: %v", attempt, err))
			client.Close()
			return err
		}

		rt.mu.Lock()
		rt.client = client
		rt.listener = listener
		rt.mu.Unlock()

		rt.logger.Info("reconnected successfully")

		// Restart keepalive with the new client.
		if rt.config.KeepAliveInterval > 0 {
			rt.wg.Add(1)
			go rt.keepaliveLoop()
		}

		return nil
	})
}
