package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NETSESS_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NETSESS_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("NETSESS_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if envBool("NETSESS_LISTEN") {
		cfg.Listen = true
	}
	if envBool("NETSESS_UDP") {
		cfg.UDP = true
	}
	if envBool("NETSESS_NO_DNS") {
		cfg.NoDNS = true
	}
	if envBool("NETSESS_KEEP_OPEN") {
		cfg.KeepOpen = true
	}
	if v := envInt("NETSESS_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// SSH tunnel
	if v := os.Getenv("NETSESS_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("NETSESS_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("NETSESS_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("NETSESS_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("NETSESS_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("NETSESS_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Reverse tunnel
	if v := os.Getenv("NETSESS_REVERSE_TUNNEL"); v != "" {
		cfg.ReverseTunnelSpec = v
	}
	if v := envInt("NETSESS_REMOTE_PORT"); v > 0 {
		cfg.RemotePort = v
	}
	if v := os.Getenv("NETSESS_REMOTE_BIND_ADDRESS"); v != "" {
		cfg.RemoteBindAddress = v
	}
	if v := envInt("NETSESS_KEEP_ALIVE"); v > 0 {
		cfg.KeepAliveInterval = v
	}
	if envBool("NETSESS_AUTO_RECONNECT") {
		cfg.AutoReconnect = true
	}

	// Wire protocol
	if v := os.Getenv("NETSESS_PROTO"); v != "" {
		cfg.Proto = v
	}
	if v := envInt("NETSESS_FRAME_SIZE"); v > 0 {
		cfg.FrameSize = v
	}
	if v := os.Getenv("NETSESS_DELIM"); v != "" {
		cfg.Delim = v
	}
	if envBool("NETSESS_LITTLE_ENDIAN") {
		cfg.LittleEndian = true
	}
	if envBool("NETSESS_INCLUDE_PREFIX") {
		cfg.IncludePrefix = true
	}
	if envBool("NETSESS_IGNORE_PROTOCOL_BYTES") {
		cfg.IgnoreProtocolBytes = true
	}
	if v := os.Getenv("NETSESS_DEMO"); v != "" {
		cfg.Demo = v
	}

	// Output
	if v := envInt("NETSESS_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
