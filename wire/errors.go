package wire

import "fmt"

// Kind enumerates the framer failure modes. These are
// distinct from transport errors (plain *net.OpError, io.EOF, …), which
// the session passes through to the handler unwrapped.
type Kind int

const (
	// MessageSize: a declared payload length exceeded ReadBufferSize.
	MessageSize Kind = iota
	// ValueTooLarge: a length prefix (or varint) used more bytes than
	// its protocol allows (8 for fixed prefixes, 9 for PrefixVar).
	ValueTooLarge
	// BadMessage: IncludePrefixInPayload declared a length smaller than
	// the prefix size itself, or was combined with PrefixVar.
	BadMessage
	// ProtocolNotSupported: the Protocol value is not one wire knows.
	ProtocolNotSupported
)

func (k Kind) String() string {
	switch k {
	case MessageSize:
		return "message_size"
	case ValueTooLarge:
		return "value_too_large"
	case BadMessage:
		return "bad_message"
	case ProtocolNotSupported:
		return "protocol_not_supported"
	default:
		return "unknown_framer_error"
	}
}

// FramerError is a structured framer failure, carrying enough context
// to log or branch on without parsing a message string.
type FramerError struct {
	Kind     Kind
	Protocol Protocol
	Size     int // the offending size: declared length, prefix byte count, …
	Limit    int // the limit that was exceeded, when applicable
}

func (e *FramerError) Error() string {
	switch e.Kind {
	case MessageSize:
		return fmt.Sprintf("wire: %s frame declared %d bytes, exceeds read buffer size %d", e.Protocol, e.Size, e.Limit)
	case ValueTooLarge:
		return fmt.Sprintf("wire: %s length prefix used %d bytes, exceeds limit %d", e.Protocol, e.Size, e.Limit)
	case BadMessage:
		return fmt.Sprintf("wire: %s declared length %d is invalid for this configuration", e.Protocol, e.Size)
	case ProtocolNotSupported:
		return fmt.Sprintf("wire: protocol %s is not supported", e.Protocol)
	default:
		return fmt.Sprintf("wire: framer error (kind=%d)", e.Kind)
	}
}

// Is lets errors.Is match FramerError by Kind alone via a sentinel,
// e.g. errors.Is(err, wire.ErrMessageSize).
func (e *FramerError) Is(target error) bool {
	sentinel, ok := target.(*sentinelKind)
	if !ok {
		return false
	}
	return e.Kind == sentinel.kind
}

type sentinelKind struct{ kind Kind }

func (s *sentinelKind) Error() string { return s.kind.String() }

// Sentinels for errors.Is comparisons against a *FramerError of the
// matching Kind, mirroring the internal/errors sentinel-error idiom.
var (
	ErrMessageSize          = &sentinelKind{MessageSize}
	ErrValueTooLarge        = &sentinelKind{ValueTooLarge}
	ErrBadMessage           = &sentinelKind{BadMessage}
	ErrProtocolNotSupported = &sentinelKind{ProtocolNotSupported}
)
