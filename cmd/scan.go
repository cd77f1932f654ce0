package cmd

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"netsess/config"
	"netsess/internal/retry"
	"netsess/util"
)

// runScan implements zero-I/O port scanning: one dial attempt per
// port, wrapped in a short backoff (for ports that are merely slow to
// accept) and a shared circuit breaker (so a host that is entirely
// unreachable — as opposed to a host that is actively refusing
// individual ports — stops the scan early instead of waiting out every
// remaining port's timeout).
func runScan(ctx context.Context, cfg *config.Config, logger *util.Logger) error {
	ports := cfg.AllPorts()
	if len(ports) == 0 && cfg.Port != 0 {
		ports = []int{cfg.Port}
	}

	dialer := buildDialer(cfg, logger)
	defer dialer.Close()

	cb := retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  8,
		ResetTimeout: 5 * time.Second,
		HalfOpenMax:  1,
	})
	bo := &retry.Backoff{
		InitialDelay: 150 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2,
		MaxAttempts:  2,
	}

	for i, port := range ports {
		if cb.CurrentState() == retry.StateOpen {
			logger.Warn("%s: too many unreachable ports, aborting scan (%d remaining)",
				cfg.Host, len(ports)-i)
			break
		}

		addr := util.FormatAddr(cfg.Host, port)
		var conn net.Conn

		var refused bool
		err := cb.Execute(func() error {
			derr := bo.Do(ctx, func(attempt int) error {
				c, derr := dialer.Dial(ctx, "tcp", addr)
				if derr != nil {
					if isConnRefused(derr) {
						return retry.Permanent(derr)
					}
					return derr
				}
				conn = c
				return nil
			})
			// A refusal means the host answered, so it is not a
			// breaker failure.
			if derr != nil && isConnRefused(derr) {
				refused = true
				return nil
			}
			return derr
		})

		if err != nil || refused {
			logger.Info("%d: closed", port)
			continue
		}
		logger.Info("%d: open", port)
		conn.Close()
	}
	return nil
}

// isConnRefused reports whether err is an active refusal (the port is
// definitely closed) as opposed to a timeout or unreachable-host
// error, which are worth a retry before giving up on the port.
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
