package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"netsess/config"
	"netsess/internal/metrics"
	"netsess/internal/transport"
	"netsess/service"
	"netsess/session"
	"netsess/tunnel"
	"netsess/util"
	"netsess/wire"
)

// buildDialer returns the transport.Dialer a connect/scan run should
// use: a plain TCP dialer, or one routed through an SSH forward
// tunnel when -T was given.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if !cfg.TunnelEnabled {
		if cfg.UDP {
			return &transport.UDPDialer{Timeout: cfg.Timeout}
		}
		return &transport.TCPDialer{Timeout: cfg.Timeout, LocalPort: cfg.TunnelLocalPort}
	}
	return transport.NewSSHDialer(&tunnel.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
	}, logger)
}

// newDemoHandler picks the per-session handler a connect or listen run
// hands to a freshly accepted/dialled session, based on --demo and the
// wire-protocol flags; the empty string falls back to the netcat-style
// PassthroughHandler.
func newDemoHandler(ctx context.Context, cfg *config.Config, svc *service.Service, connector *service.Connector, logger *util.Logger, stdin io.Reader, stdout io.Writer, onClose func()) (session.Handler, error) {
	switch cfg.Demo {
	case "", "none":
		proto, err := wire.ParseProtocol(cfg.Proto)
		if err != nil {
			return nil, err
		}
		var opts wire.Options
		if cfg.LittleEndian {
			opts = opts.Set(wire.UseLittleEndian)
		}
		if cfg.IncludePrefix {
			opts = opts.Set(wire.IncludePrefixInPayload)
		}
		if cfg.IgnoreProtocolBytes {
			opts = opts.Set(wire.IgnoreProtocolBytes)
		}
		return &PassthroughHandler{
			Stdin:          stdin,
			Stdout:         stdout,
			Logger:         logger,
			OnClose:        onClose,
			Protocol:       proto,
			Options:        opts,
			ReadBufferSize: cfg.FrameSize,
			Delimiter:      []byte(cfg.Delim),
		}, nil
	case "echo":
		return &EchoHandler{}, nil
	case "line":
		return &LineHandler{Service: svc}, nil
	case "rpc":
		return &RPCHandler{}, nil
	case "socks5":
		return &SocksHandler{Connector: connector, Ctx: ctx}, nil
	default:
		return nil, fmt.Errorf("unknown --demo %q", cfg.Demo)
	}
}

// runConnect implements connect mode: dial the destination once and,
// unless -e/-c hands the raw socket to a child process, drive it
// through a session with the selected protocol/demo.
func runConnect(ctx context.Context, cfg *config.Config, logger *util.Logger) error {
	addr, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return err
	}

	network := "tcp"
	if cfg.UDP {
		network = "udp"
	}

	dialer := buildDialer(cfg, logger)
	defer dialer.Close()

	if cfg.Execute != "" || cfg.Command != "" {
		conn, err := dialer.Dial(ctx, network, addr)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", addr, err)
		}
		defer conn.Close()
		return runExec(ctx, cfg.Execute, cfg.Command, conn, logger)
	}

	mtr := metrics.New()
	svc := service.New(logger, mtr)
	connector := &service.Connector{Service: svc, Dialer: dialer}

	h, err := newDemoHandler(ctx, cfg, svc, connector, logger, os.Stdin, os.Stdout, nil)
	if err != nil {
		return err
	}

	// Expand the destination to every resolved address and try them in
	// order, so a host with several A/AAAA records behaves like the
	// SOCKS5 demo's domain-name targets do.
	hosts, err := util.LookupHost(cfg.Host, cfg.NoDNS)
	if err != nil {
		return err
	}
	addrs := make([]string, len(hosts))
	for i, hostIP := range hosts {
		addrs[i] = util.FormatAddr(hostIP, cfg.Port)
	}

	sess, err := connector.DialSequence(ctx, network, addrs, h)
	if err != nil {
		return err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Close(false)
		<-sess.Done()
	}
	return nil
}
