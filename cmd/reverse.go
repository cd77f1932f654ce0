package cmd

import (
	"context"
	"net"
	"os"
	"time"

	"netsess/config"
	"netsess/internal/metrics"
	"netsess/internal/transport"
	"netsess/service"
	"netsess/session"
	"netsess/tunnel"
	"netsess/util"
)

// runReverse implements --reverse-tunnel: it starts a local
// session-based service (the same demo/passthrough handlers connect
// and listen mode use) and requests the gateway forward connections
// on its side back to that local service — the Go equivalent of
// ssh -R, generalised to the session core instead of a raw pipe.
func runReverse(ctx context.Context, cfg *config.Config, logger *util.Logger) error {
	mtr := metrics.New()
	svc := service.New(logger, mtr)
	connector := &service.Connector{Service: svc, Dialer: &transport.TCPDialer{Timeout: cfg.Timeout}}

	acceptor := &service.Acceptor{
		Service:  svc,
		KeepOpen: true,
		NewHandler: func(conn net.Conn) session.Handler {
			h, err := newDemoHandler(ctx, cfg, svc, connector, logger, os.Stdin, os.Stdout, nil)
			if err != nil {
				panic(err)
			}
			return h
		},
	}

	localAddr := util.FormatAddr("127.0.0.1", cfg.LocalPort)
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- acceptor.Serve(ctx, "tcp", localAddr) }()

	rt := tunnel.NewReverseTunnel(&tunnel.ReverseTunnelConfig{
		SSHConfig: &tunnel.SSHConfig{
			User:          cfg.ReverseTunnelUser,
			Host:          cfg.ReverseTunnelHost,
			Port:          cfg.ReverseTunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
		},
		RemoteBindAddress: cfg.RemoteBindAddress,
		RemotePort:        cfg.RemotePort,
		LocalAddress:      "127.0.0.1",
		LocalPort:         cfg.LocalPort,
		KeepAliveInterval: time.Duration(cfg.KeepAliveInterval) * time.Second,
		AutoReconnect:     cfg.AutoReconnect,
	}, logger, mtr)

	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Close()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErrCh:
		return err
	}
}
