// Package cmd wires up the CLI flags and dispatches to the session
// core: connect, listen, scan, and reverse-tunnel modes, plus the
// canned protocol demos selected with --demo.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"netsess/config"
	"netsess/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X netsess/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate netsess mode.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{}
	config.LoadFromEnv(cfg)
	fs := flag.NewFlagSet("netsess", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen mode")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local port number")
	fs.BoolVarP(&cfg.UDP, "udp", "u", cfg.UDP, "UDP mode")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.BoolVarP(&cfg.KeepOpen, "keep-open", "k", cfg.KeepOpen, "Accept multiple connections (with -l)")
	fs.BoolVarP(&cfg.ZeroIO, "zero-io", "z", cfg.ZeroIO, "Zero-I/O mode (port scanning)")

	var timeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", 0, "Timeout in seconds")

	// ── wire protocol ────────────────────────────────────────────
	fs.StringVar(&cfg.Proto, "proto", cfg.Proto, "Framing: any|fixed|delim|delim0|delimcr|delimlf|delimcrlf|prefix8|prefix16|prefix32|prefix64|prefixvar")
	fs.IntVar(&cfg.FrameSize, "frame-size", cfg.FrameSize, "Frame size cap (fixed size / max prefixed length)")
	fs.StringVar(&cfg.Delim, "delim", cfg.Delim, "Delimiter string for --proto delim")
	fs.BoolVar(&cfg.LittleEndian, "little-endian", cfg.LittleEndian, "Decode length prefixes little-endian")
	fs.BoolVar(&cfg.IncludePrefix, "include-prefix", cfg.IncludePrefix, "Declared length counts the prefix bytes")
	fs.BoolVar(&cfg.IgnoreProtocolBytes, "ignore-protocol-bytes", cfg.IgnoreProtocolBytes, "Exclude delimiter/prefix bytes from delivered frames")
	fs.StringVar(&cfg.Demo, "demo", cfg.Demo, "Canned handler: echo|line|rpc|socks5")

	// ── execution ────────────────────────────────────────────────
	fs.StringVarP(&cfg.Execute, "exec", "e", cfg.Execute, "Execute program after connect")
	fs.StringVarP(&cfg.Command, "command", "c", cfg.Command, "Execute shell command after connect")

	// ── SSH forward tunnel ───────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.IntVar(&cfg.TunnelLocalPort, "tunnel-local-port", cfg.TunnelLocalPort, "Local tunnel port (auto if 0)")

	// ── SSH reverse tunnel ───────────────────────────────────────
	fs.StringVar(&cfg.ReverseTunnelSpec, "reverse-tunnel", cfg.ReverseTunnelSpec, "Expose the local listener via [user@]gateway[:port]")
	fs.IntVar(&cfg.RemotePort, "remote-port", cfg.RemotePort, "Gateway-side port to bind (with --reverse-tunnel)")
	fs.StringVar(&cfg.RemoteBindAddress, "remote-bind-address", cfg.RemoteBindAddress, "Gateway-side bind address")
	fs.IntVar(&cfg.KeepAliveInterval, "keep-alive", cfg.KeepAliveInterval, "Reverse tunnel keepalive interval in seconds")
	fs.BoolVar(&cfg.AutoReconnect, "auto-reconnect", cfg.AutoReconnect, "Re-establish the reverse tunnel after a drop")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("netsess %s\n", version)
		return nil
	}

	if timeoutSec > 0 {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel specs ─────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}
	if cfg.ReverseTunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.ReverseTunnelSpec)
		if err != nil {
			return fmt.Errorf("reverse tunnel: %w", err)
		}
		cfg.ReverseTunnelEnabled = true
		cfg.ReverseTunnelUser = user
		cfg.ReverseTunnelHost = host
		cfg.ReverseTunnelPort = port
		if cfg.KeepAliveInterval == 0 && cfg.AutoReconnect {
			cfg.KeepAliveInterval = config.DefaultKeepAlive
		}
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Println("configuration OK")
		return nil
	}

	// ── dispatch ─────────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	switch {
	case cfg.ReverseTunnelEnabled:
		return runReverse(ctx, cfg, logger)
	case cfg.Listen:
		return runListen(ctx, cfg, logger)
	case cfg.ZeroIO:
		return runScan(ctx, cfg, logger)
	default:
		return runConnect(ctx, cfg, logger)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // netsess -l -p PORT
		case 1:
			cfg.Host = remaining[0]
		case 2:
			cfg.Host = remaining[0]
			pr, err := config.ParsePortSpec(remaining[1])
			if err != nil {
				return fmt.Errorf("port: %w", err)
			}
			cfg.Port = pr.Start
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	// Connect / scan mode: host port [port …]
	if len(remaining) < 1 {
		return fmt.Errorf("hostname required (use --help for usage)")
	}
	cfg.Host = remaining[0]

	if len(remaining) < 2 {
		return fmt.Errorf("port required")
	}

	for _, arg := range remaining[1:] {
		pr, err := config.ParsePortSpec(arg)
		if err != nil {
			return fmt.Errorf("port %q: %w", arg, err)
		}
		cfg.Ports = append(cfg.Ports, pr)
	}
	if len(cfg.Ports) > 0 {
		cfg.Port = cfg.Ports[0].Start
	}
	return nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `netsess – session-oriented stream networking tool v%s

A netcat-style CLI over a framed session core, with SSH tunneling.

Usage:
  netsess [options] <host> <port> [ports...]  Connect
  netsess -l -p <port> [options]              Listen
  netsess -z [options] <host> <ports...>      Scan
  netsess -T user@gateway <host> <port>       Tunnel

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  netsess example.com 80                          TCP connect
  netsess -l -p 8080 --demo echo                  Framed echo server
  netsess -l -p 1080 --demo socks5                SOCKS5 proxy
  netsess -l -p 7000 --proto delimcrlf            Line-framed listener
  netsess -vz host.example.com 20-25 80 443       Port scan
  netsess -T admin@bastion db-internal 5432       SSH tunnel
  echo "hello" | netsess host.example.com 9000    Pipe data
`)
}
