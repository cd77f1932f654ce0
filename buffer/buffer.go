// Package buffer implements the triple-segmented read buffer shared by
// every session's framer.
//
// A single contiguous byte slice is partitioned into three logical
// regions — external, internal, output — so the framer can accumulate
// partial frames and hand completed ones to the user handler without
// copying bytes between stages. Layout is always:
//
//	[0..E) external | [E..E+I) internal | [E+I..len) output
package buffer

// Triple is the triple-segmented read buffer. It is owned exclusively
// by one session and must only be touched from that session's read
// goroutine.
type Triple struct {
	data []byte
	e    int // end of external segment
	i    int // length of internal segment

	// curBegin/curEnd delimit the "current external slice" presented
	// to the handler: [curBegin, curEnd) ⊆ [0, e).
	curBegin int
	curEnd   int
}

// New returns an empty Triple with no backing storage. The first
// PrepareOutput call allocates it.
func New() *Triple {
	return &Triple{}
}

// Len returns the total capacity of the backing storage.
func (t *Triple) Len() int { return len(t.data) }

// External returns E, the number of bytes in the external segment.
func (t *Triple) External() int { return t.e }

// Internal returns I, the number of bytes in the internal segment.
func (t *Triple) Internal() int { return t.i }

// PrepareOutput ensures the output segment has room for at least n
// bytes, growing the backing storage if necessary, and returns a
// mutable view of the output segment's first n bytes. Growing the
// buffer never disturbs the external or internal segments: existing
// bytes are preserved at the same offsets.
func (t *Triple) PrepareOutput(n int) []byte {
	need := t.e + t.i + n
	if need > len(t.data) {
		grown := make([]byte, need)
		copy(grown, t.data[:t.e+t.i])
		t.data = grown
	}
	return t.data[t.e+t.i : t.e+t.i+n]
}

// CommitToInternal moves min(n, available-output-bytes) bytes from the
// start of the output segment into the end of the internal segment,
// and returns how many bytes were actually committed. Called after a
// socket read has filled part of the output segment returned by
// PrepareOutput.
func (t *Triple) CommitToInternal(n int) int {
	avail := len(t.data) - t.e - t.i
	if n > avail {
		n = avail
	}
	if n < 0 {
		n = 0
	}
	t.i += n
	return n
}

// CommitWholeInternalToExternal moves the entire internal segment into
// external: E += I; I = 0.
func (t *Triple) CommitWholeInternalToExternal() {
	t.e += t.i
	t.i = 0
}

// CommitToExternal moves n ≤ I bytes from the start of internal to the
// end of external. The moved bytes are already physically in place
// (internal immediately follows external in the backing array), so
// this only adjusts the cursors — it panics if n exceeds the internal
// segment length, since that would indicate a framer bug rather than a
// recoverable condition.
func (t *Triple) CommitToExternal(n int) {
	if n < 0 || n > t.i {
		panic("buffer: CommitToExternal: n out of range")
	}
	t.e += n
	t.i -= n
}

// ConsumeExternal drops the first n ≤ E bytes of the external segment,
// shifting the remainder (and the internal/output segments behind it,
// and the current slice) down by n bytes. ConsumeExternal(0) is a
// no-op; consecutive calls compose: ConsumeExternal(k) then
// ConsumeExternal(m) has the same observable effect as a single
// ConsumeExternal(k+m), modulo clipping to E.
func (t *Triple) ConsumeExternal(n int) {
	if n <= 0 {
		return
	}
	if n > t.e {
		n = t.e
	}
	if n == 0 {
		return
	}
	copy(t.data, t.data[n:t.e+t.i])
	t.e -= n

	t.curBegin -= n
	if t.curBegin < 0 {
		t.curBegin = 0
	}
	t.curEnd -= n
	if t.curEnd < 0 {
		t.curEnd = 0
	}
}

// ConsumeWholeExternal drops the entire external segment. Equivalent
// to ConsumeExternal(t.External()); the framer calls it on entry to
// each tick unless the session's DoNotConsumeBuffer option is set.
func (t *Triple) ConsumeWholeExternal() {
	t.ConsumeExternal(t.e)
}

// MarkCurrentExternal sets the current slice to [0, E) — the framer
// calls this at the top of every read() tick, before deciding how much
// of external actually belongs to the next delivered frame.
func (t *Triple) MarkCurrentExternal() {
	t.curBegin = 0
	t.curEnd = t.e
}

// MoveToNewExternalSegment narrows the current slice to
// [previousEnd, E) — used when a single socket read produced more than
// one frame: after delivering the first frame, the framer advances the
// slice past it without re-reading from the socket.
func (t *Triple) MoveToNewExternalSegment() {
	t.curBegin = t.curEnd
	t.curEnd = t.e
}

// CurrentExternal returns the bytes of the current slice.
func (t *Triple) CurrentExternal() []byte {
	return t.data[t.curBegin:t.curEnd]
}

// SetCurrentExternalEnd narrows the current slice's end to curBegin+n,
// used by the framer once it knows exactly how many bytes of the
// external segment constitute the frame about to be delivered.
func (t *Triple) SetCurrentExternalEnd(n int) {
	end := t.curBegin + n
	if end > t.e {
		end = t.e
	}
	t.curEnd = end
}

// HideLeading advances the current slice's start by n bytes without
// touching the backing data or E/I — used by the framer to keep
// protocol bytes (a delimiter, a length prefix) physically committed
// to external, so they are consumed from the stream on the next tick,
// while excluding them from the slice handed to the user handler
// (IgnoreProtocolBytes).
func (t *Triple) HideLeading(n int) {
	t.curBegin += n
	if t.curBegin > t.curEnd {
		t.curBegin = t.curEnd
	}
}

// ExternalAt returns a read-only view of the full external segment
// starting at offset off (0 ≤ off ≤ E). Used by protocols that need to
// inspect internal bytes already committed to external without
// disturbing the current slice (e.g. scanning for a multi-byte
// delimiter that straddles two socket reads).
func (t *Triple) ExternalAt(off int) []byte {
	return t.data[off:t.e]
}

// InternalBytes returns the internal segment's bytes as a read-only view.
func (t *Triple) InternalBytes() []byte {
	return t.data[t.e : t.e+t.i]
}
