// Package wire defines the wire framing protocols, option flags, and
// framer error kinds shared by the session and service packages.
//
// A Protocol is a tagged variant, not a class hierarchy: the framer
// in package session switches on Protocol rather than dispatching
// through an interface, which keeps the state machine compact and
// its cases visible in one place.
package wire

import "fmt"

// Protocol selects how the framer partitions a byte stream into frames.
type Protocol int

const (
	// None disables framing entirely; the session sits in StatusConnected
	// and delivers nothing until the handler picks a protocol.
	None Protocol = iota
	// Any frames whatever bytes a single socket read returns.
	Any
	// Fixed frames exactly Session.ReadBufferSize bytes.
	Fixed
	// Delim frames up to the configured delimiter byte string.
	Delim
	// DelimZero frames up to a single NUL byte.
	DelimZero
	// DelimCR frames up to a single '\r'.
	DelimCR
	// DelimLF frames up to a single '\n'.
	DelimLF
	// DelimCRLF frames up to the two-byte sequence "\r\n".
	DelimCRLF
	// Prefix8 frames with a 1-byte unsigned length header.
	Prefix8
	// Prefix16 frames with a 2-byte unsigned length header.
	Prefix16
	// Prefix32 frames with a 4-byte unsigned length header.
	Prefix32
	// Prefix64 frames with an 8-byte unsigned length header.
	Prefix64
	// PrefixVar frames with a base-128 varint length header.
	PrefixVar
)

// String renders the protocol name used in log lines. These names
// differ from the --proto spellings that ParseProtocol accepts
// (e.g. "prefix_8" here, "prefix8" there).
func (p Protocol) String() string {
	switch p {
	case None:
		return "none"
	case Any:
		return "any"
	case Fixed:
		return "fixed"
	case Delim:
		return "delim"
	case DelimZero:
		return "delim_zero"
	case DelimCR:
		return "delim_cr"
	case DelimLF:
		return "delim_lf"
	case DelimCRLF:
		return "delim_crlf"
	case Prefix8:
		return "prefix_8"
	case Prefix16:
		return "prefix_16"
	case Prefix32:
		return "prefix_32"
	case Prefix64:
		return "prefix_64"
	case PrefixVar:
		return "prefix_var"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// IsPrefixed reports whether p is one of the fixed-width length-prefix
// protocols (not PrefixVar, which has its own variable header size).
func (p Protocol) IsPrefixed() bool {
	switch p {
	case Prefix8, Prefix16, Prefix32, Prefix64:
		return true
	default:
		return false
	}
}

// PrefixSize returns the number of header bytes for a fixed-width
// prefix protocol, or 0 if p is not one.
func (p Protocol) PrefixSize() int {
	switch p {
	case Prefix8:
		return 1
	case Prefix16:
		return 2
	case Prefix32:
		return 4
	case Prefix64:
		return 8
	default:
		return 0
	}
}

// DelimBytes returns the delimiter byte sequence for the fixed delim_*
// protocols. Delim itself carries its delimiter on the session instead.
func (p Protocol) DelimBytes() []byte {
	switch p {
	case DelimZero:
		return []byte{0}
	case DelimCR:
		return []byte{'\r'}
	case DelimLF:
		return []byte{'\n'}
	case DelimCRLF:
		return []byte{'\r', '\n'}
	default:
		return nil
	}
}

// Options is an independent bit set of framer behaviour flags, kept
// separate from Protocol so any combination is representable without
// multiplying the number of enum values.
type Options uint32

const (
	// DoNotConsumeBuffer skips the automatic consume-external step at
	// the top of each read() tick, letting the handler re-inspect the
	// same bytes after reconfiguring the protocol (used by SOCKS5-style
	// multi-step negotiations).
	DoNotConsumeBuffer Options = 1 << iota
	// IgnoreProtocolBytes excludes delimiter/prefix bytes from the
	// slice handed to the handler, while still consuming them from the
	// stream on the following read() tick.
	IgnoreProtocolBytes
	// UseLittleEndian switches prefix decoding to little-endian byte
	// order, and switches PrefixVar to protobuf-compatible
	// least-significant-group-first accumulation.
	UseLittleEndian
	// IncludePrefixInPayload means the declared length already counts
	// the header bytes; the framer subtracts PrefixSize() before
	// reading the remaining payload.
	IncludePrefixInPayload
)

// Has reports whether all bits of flag are set in o.
func (o Options) Has(flag Options) bool { return o&flag == flag }

// Set returns o with flag set.
func (o Options) Set(flag Options) Options { return o | flag }

// Clear returns o with flag cleared.
func (o Options) Clear(flag Options) Options { return o &^ flag }

// ParseProtocol translates a CLI/config protocol name (as accepted by
// the --proto flag) into a Protocol value. The empty string maps to
// None — "no framing, raw passthrough" — which is the CLI's default.
func ParseProtocol(name string) (Protocol, error) {
	switch name {
	case "":
		return None, nil
	case "any":
		return Any, nil
	case "fixed":
		return Fixed, nil
	case "delim":
		return Delim, nil
	case "delim0":
		return DelimZero, nil
	case "delimcr":
		return DelimCR, nil
	case "delimlf":
		return DelimLF, nil
	case "delimcrlf":
		return DelimCRLF, nil
	case "prefix8":
		return Prefix8, nil
	case "prefix16":
		return Prefix16, nil
	case "prefix32":
		return Prefix32, nil
	case "prefix64":
		return Prefix64, nil
	case "prefixvar":
		return PrefixVar, nil
	default:
		return None, fmt.Errorf("wire: unknown protocol name %q", name)
	}
}
