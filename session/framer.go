package session

import (
	"encoding/binary"

	"netsess/buffer"
	"netsess/wire"
)

// Framer holds no per-tick state of its own: every TryExtract call
// re-examines whatever the triple buffer's internal segment currently
// holds, which is what lets the session's assembly loop retry the same
// check after each new chunk of socket data arrives without tracking a
// separate "how far did we get last time" cursor — each framing rule
// is naturally idempotent over the buffered bytes.
type Framer struct{}

// TryExtract attempts to assemble exactly one frame from t's internal
// segment per the given protocol/options. On success it commits the
// frame's bytes (and, for delimited/prefixed protocols, the protocol
// bytes around them: the prefix before, the delimiter after) from
// internal to external, and narrows
// t's current slice to exclude any bytes IgnoreProtocolBytes hides.
// ready is false when more socket bytes are needed before a decision
// can be made; err is non-nil for a framer error, in
// which case the session must fail the connection.
func (Framer) TryExtract(t *buffer.Triple, proto wire.Protocol, opts wire.Options, readBufferSize int, delim []byte) (ready bool, err error) {
	switch {
	case proto == wire.Any:
		return extractAny(t)
	case proto == wire.Fixed:
		return extractFixed(t, readBufferSize)
	case proto == wire.Delim:
		return extractDelim(t, delim, opts)
	case proto == wire.DelimZero, proto == wire.DelimCR, proto == wire.DelimLF, proto == wire.DelimCRLF:
		return extractDelim(t, proto.DelimBytes(), opts)
	case proto.IsPrefixed():
		return extractPrefix(t, proto, opts, readBufferSize)
	case proto == wire.PrefixVar:
		return extractPrefixVar(t, opts, readBufferSize)
	default:
		return false, &wire.FramerError{Kind: wire.ProtocolNotSupported, Protocol: proto}
	}
}

func extractAny(t *buffer.Triple) (bool, error) {
	n := t.Internal()
	if n == 0 {
		return false, nil
	}
	t.CommitToExternal(n)
	t.SetCurrentExternalEnd(n)
	return true, nil
}

func extractFixed(t *buffer.Triple, size int) (bool, error) {
	if size <= 0 {
		// A fixed frame size of zero would deliver an endless run of
		// empty frames without ever touching the socket; reject it
		// instead of spinning.
		return false, &wire.FramerError{Kind: wire.BadMessage, Protocol: wire.Fixed, Size: size}
	}
	if t.Internal() < size {
		return false, nil
	}
	t.CommitToExternal(size)
	t.SetCurrentExternalEnd(size)
	return true, nil
}

// extractDelim handles Delim plus the four fixed delim_* protocols.
// An empty delimiter degenerates to Any.
func extractDelim(t *buffer.Triple, delim []byte, opts wire.Options) (bool, error) {
	if len(delim) == 0 {
		return extractAny(t)
	}
	body := t.InternalBytes()
	idx := indexOf(body, delim)
	if idx < 0 {
		return false, nil
	}
	total := idx + len(delim)
	t.CommitToExternal(total)
	if opts.Has(wire.IgnoreProtocolBytes) {
		t.SetCurrentExternalEnd(idx)
	} else {
		t.SetCurrentExternalEnd(total)
	}
	return true, nil
}

func extractPrefix(t *buffer.Triple, proto wire.Protocol, opts wire.Options, readBufferSize int) (bool, error) {
	headerSize := proto.PrefixSize()
	if t.Internal() < headerSize {
		return false, nil
	}
	header := t.InternalBytes()[:headerSize]
	declared := decodeUint(header, opts.Has(wire.UseLittleEndian))

	bodyLen := declared
	if opts.Has(wire.IncludePrefixInPayload) {
		if declared < uint64(headerSize) {
			return false, &wire.FramerError{Kind: wire.BadMessage, Protocol: proto, Size: int(declared)}
		}
		bodyLen = declared - uint64(headerSize)
	}
	if bodyLen > uint64(readBufferSize) {
		return false, &wire.FramerError{Kind: wire.MessageSize, Protocol: proto, Size: int(bodyLen), Limit: readBufferSize}
	}

	total := headerSize + int(bodyLen)
	if t.Internal() < total {
		return false, nil
	}
	t.CommitToExternal(total)
	t.SetCurrentExternalEnd(total)
	if opts.Has(wire.IgnoreProtocolBytes) {
		t.HideLeading(headerSize)
	}
	return true, nil
}

func extractPrefixVar(t *buffer.Triple, opts wire.Options, readBufferSize int) (bool, error) {
	if opts.Has(wire.IncludePrefixInPayload) {
		return false, &wire.FramerError{Kind: wire.BadMessage, Protocol: wire.PrefixVar}
	}
	body := t.InternalBytes()
	value, headerSize, done, tooLarge := decodeVarint(body, opts.Has(wire.UseLittleEndian))
	if tooLarge {
		return false, &wire.FramerError{Kind: wire.ValueTooLarge, Protocol: wire.PrefixVar, Size: 9, Limit: 9}
	}
	if !done {
		return false, nil // need more header bytes
	}
	if value > uint64(readBufferSize) {
		return false, &wire.FramerError{Kind: wire.MessageSize, Protocol: wire.PrefixVar, Size: int(value), Limit: readBufferSize}
	}
	total := headerSize + int(value)
	if t.Internal() < total {
		return false, nil
	}
	t.CommitToExternal(total)
	t.SetCurrentExternalEnd(total)
	if opts.Has(wire.IgnoreProtocolBytes) {
		t.HideLeading(headerSize)
	}
	return true, nil
}

// ── shared decoding helpers ────────────────────────────────────────

func decodeUint(b []byte, littleEndian bool) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		if littleEndian {
			return uint64(binary.LittleEndian.Uint16(b))
		}
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		if littleEndian {
			return uint64(binary.LittleEndian.Uint32(b))
		}
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		if littleEndian {
			return binary.LittleEndian.Uint64(b)
		}
		return binary.BigEndian.Uint64(b)
	default:
		return 0
	}
}

// decodeVarint reads a base-128 varint from the front of data.
//
//   - done=true: value and headerSize (bytes consumed) are valid.
//   - tooLarge=true: the 9th byte still had its continuation bit set.
//   - otherwise: not enough bytes yet, caller should wait for more.
//
// littleEndian selects protobuf-style accumulation (first byte is the
// least-significant 7-bit group); the default accumulates most
// -significant-group-first, which works incrementally without knowing
// the total length in advance.
func decodeVarint(data []byte, littleEndian bool) (value uint64, headerSize int, done bool, tooLarge bool) {
	var v uint64
	limit := len(data)
	if limit > 9 {
		limit = 9
	}
	for i := 0; i < limit; i++ {
		b := data[i]
		low7 := uint64(b & 0x7f)
		if littleEndian {
			v |= low7 << (7 * uint(i))
		} else {
			v = (v << 7) | low7
		}
		if b&0x80 == 0 {
			return v, i + 1, true, false
		}
	}
	if len(data) >= 9 {
		return 0, 0, false, true
	}
	return 0, 0, false, false
}

func indexOf(haystack, needle []byte) int {
	n, m := len(haystack), len(needle)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if bytesEqual(haystack[i:i+m], needle) {
			return i
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
