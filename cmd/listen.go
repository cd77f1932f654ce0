package cmd

import (
	"context"
	"fmt"
	"net"
	"os"

	"netsess/config"
	"netsess/internal/metrics"
	"netsess/internal/transport"
	"netsess/service"
	"netsess/session"
	"netsess/util"
)

// runListen implements listen mode: accept connections on -p and, for
// each one, either hand its raw socket to a child process (-e/-c) or
// drive it through a session built by newDemoHandler.
func runListen(ctx context.Context, cfg *config.Config, logger *util.Logger) error {
	network := "tcp"
	if cfg.UDP {
		network = "udp"
	}
	addr := util.FormatAddr(cfg.Host, cfg.LocalPort)

	if cfg.Execute != "" || cfg.Command != "" {
		return runListenExec(ctx, cfg, network, addr, logger)
	}

	mtr := metrics.New()
	svc := service.New(logger, mtr)
	connector := &service.Connector{Service: svc, Dialer: &transport.TCPDialer{Timeout: cfg.Timeout}}

	acceptor := &service.Acceptor{
		Service:  svc,
		KeepOpen: cfg.KeepOpen,
		NewHandler: func(conn net.Conn) session.Handler {
			h, err := newDemoHandler(ctx, cfg, svc, connector, logger, os.Stdin, os.Stdout, nil)
			if err != nil {
				// newDemoHandler only fails on an unknown --demo or
				// --proto name, both already rejected by Config.Validate
				// before we get here.
				panic(err)
			}
			return h
		},
	}
	return acceptor.Serve(ctx, network, addr)
}

// runListenExec accepts connections one at a time (or in a loop, with
// -k) and hands each raw socket directly to a freshly exec'd child —
// the session core is not involved, the same way -e/-c bypasses it in
// connect mode.
func runListenExec(ctx context.Context, cfg *config.Config, network, addr string, logger *util.Logger) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		logger.Verbose("connection from %s", conn.RemoteAddr())

		if !cfg.KeepOpen {
			err := runExec(ctx, cfg.Execute, cfg.Command, conn, logger)
			conn.Close()
			return err
		}
		go func(c net.Conn) {
			defer c.Close()
			if err := runExec(ctx, cfg.Execute, cfg.Command, c, logger); err != nil {
				logger.Error("exec: %v", err)
			}
		}(conn)
	}
}
