// Package config defines the runtime configuration for netsess's CLI
// demos and provides helpers for parsing tunnel specifications, port
// ranges, and wire-protocol selectors.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds every tuneable for a single netsess invocation.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string
	Port      int         // primary destination port
	Ports     []PortRange // all destination port specs (scanning)
	LocalPort int         // -p: local bind port
	Listen    bool
	UDP       bool
	Timeout   time.Duration
	KeepOpen  bool
	NoDNS     bool

	// ── SSH forward tunnel ───────────────────────────────────────────
	TunnelSpec      string // raw user@host[:port] from -T
	TunnelEnabled   bool
	TunnelUser      string
	TunnelHost      string
	TunnelPort      int
	SSHKeyPath      string
	SSHPassword     bool // true → prompt interactively
	UseSSHAgent     bool
	StrictHostKey   bool
	KnownHostsPath  string
	TunnelLocalPort int

	// ── SSH reverse tunnel (ssh -R equivalent) ───────────────────────
	ReverseTunnelSpec    string // raw user@host[:port] from --reverse-tunnel
	ReverseTunnelEnabled bool
	ReverseTunnelUser    string
	ReverseTunnelHost    string
	ReverseTunnelPort    int
	RemoteBindAddress    string // address to request the gateway bind on
	RemotePort           int    // port to request the gateway bind on
	KeepAliveInterval    int    // seconds, 0 disables
	AutoReconnect        bool

	// ── Wire protocol (framer) ────────────────────────────────────────
	Proto                 string // "any", "fixed", "delim", "prefix8", …
	FrameSize             int    // ReadBufferSize / fixed frame size / prefix cap
	Delim                 string // custom delimiter for --proto delim
	LittleEndian          bool
	IncludePrefix         bool
	IgnoreProtocolBytes   bool
	Demo                  string // "echo", "line", "rpc", "socks5" — canned listen-mode handler

	// ── Execution ────────────────────────────────────────────────────
	Execute string // -e: program path
	Command string // -c: shell command

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	ZeroIO  bool
	DryRun  bool // validate configuration and exit without connecting
}

// ── Port helpers ─────────────────────────────────────────────────────

// PortRange is an inclusive start–end pair.
type PortRange struct {
	Start int
	End   int
}

// Expand returns every port in the range.
func (pr PortRange) Expand() []int {
	out := make([]int, 0, pr.End-pr.Start+1)
	for p := pr.Start; p <= pr.End; p++ {
		out = append(out, p)
	}
	return out
}

// AllPorts flattens every PortRange into a single slice.
func (c *Config) AllPorts() []int {
	var out []int
	for _, pr := range c.Ports {
		out = append(out, pr.Expand()...)
	}
	return out
}

// ParsePortSpec accepts a single port ("80") or a range ("80-90").
// Service names such as "http" are not resolved and are rejected.
func ParsePortSpec(spec string) (PortRange, error) {
	if strings.Contains(spec, "-") {
		parts := strings.SplitN(spec, "-", 2)
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range start %q", parts[0])
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range end %q", parts[1])
		}
		if start < 1 || end > 65535 || start > end {
			return PortRange{}, fmt.Errorf("invalid port range %d-%d", start, end)
		}
		return PortRange{Start: start, End: end}, nil
	}

	port, err := strconv.Atoi(spec)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return PortRange{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return PortRange{Start: port, End: port}, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22. Used for both
// the forward (-T) and reverse (--reverse-tunnel) tunnel specs.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = 22
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Protocol selection ───────────────────────────────────────────────

// validProtoNames is the set of accepted --proto flag values. Kept as
// strings here (rather than importing package wire) so config stays a
// leaf package with no dependency on the framing core; cmd translates
// the string with wire.ParseProtocol.
var validProtoNames = map[string]bool{
	"":          true, // unset: raw passthrough, no framing
	"any":       true,
	"fixed":     true,
	"delim":     true,
	"delim0":    true,
	"delimcr":   true,
	"delimlf":   true,
	"delimcrlf": true,
	"prefix8":   true,
	"prefix16":  true,
	"prefix32":  true,
	"prefix64":  true,
	"prefixvar": true,
}

// validDemoNames lists the canned --demo handlers cmd knows how to
// build.
var validDemoNames = map[string]bool{
	"":       true,
	"none":   true,
	"echo":   true,
	"line":   true,
	"rpc":    true,
	"socks5": true,
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Listen {
		if c.LocalPort == 0 {
			return fmt.Errorf("listen mode requires -p <port>\n  hint: pass -p <port> to choose a local bind port")
		}
		if c.ZeroIO {
			return fmt.Errorf("listen mode and zero-I/O mode are mutually exclusive")
		}
		if c.TunnelEnabled {
			return fmt.Errorf("listen mode through an SSH forward tunnel is not yet supported")
		}
	} else {
		if c.ReverseTunnelEnabled {
			return fmt.Errorf("--reverse-tunnel requires listen mode (-l) — it exposes a local listener through the gateway")
		}
		if c.Host == "" {
			return fmt.Errorf("hostname is required (use --help for usage)")
		}
		if c.Port == 0 && len(c.Ports) == 0 {
			return fmt.Errorf("destination port is required")
		}
	}

	if c.Execute != "" && c.Command != "" {
		return fmt.Errorf("-e and -c are mutually exclusive")
	}

	if c.UDP && c.TunnelEnabled {
		return fmt.Errorf("UDP is not supported through SSH tunnels")
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return fmt.Errorf("tunnel host is required")
	}

	if c.ReverseTunnelEnabled {
		if c.ReverseTunnelHost == "" {
			return fmt.Errorf("reverse tunnel host is required")
		}
		if c.RemotePort == 0 {
			return fmt.Errorf("--remote-port is required with --reverse-tunnel\n  hint: pass --remote-port <port> to choose the gateway-side port")
		}
		if c.RemotePort < 1 || c.RemotePort > 65535 {
			return fmt.Errorf("--remote-port %d out of range 1-65535", c.RemotePort)
		}
		if c.TunnelEnabled {
			return fmt.Errorf("--tunnel (forward) and --reverse-tunnel are mutually exclusive")
		}
		if c.UDP {
			return fmt.Errorf("UDP is not supported over a reverse tunnel")
		}
	}

	if !validProtoNames[c.Proto] {
		return fmt.Errorf("unknown --proto %q", c.Proto)
	}

	if !validDemoNames[c.Demo] {
		return fmt.Errorf("unknown --demo %q", c.Demo)
	}

	if c.Demo != "" && c.Demo != "none" && (c.Execute != "" || c.Command != "") {
		return fmt.Errorf("--demo and -e/-c are mutually exclusive")
	}

	return nil
}
