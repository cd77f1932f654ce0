package session

import "netsess/pbuf"

// Handler is the contract the core consumes. Every call is
// made from the session's event-loop goroutine, so implementations are
// written as if single-threaded per session; a Handler may safely
// reconfigure the session (Session.SetProtocol, SetReadBufferSize, …)
// from inside any of these callbacks.
type Handler interface {
	// Connect fires once after the socket connects or is accepted,
	// before the first read is scheduled. remote may be empty or a
	// placeholder (e.g. "pipe") for a connection whose remote address
	// isn't meaningful.
	Connect(s *Session, remote string)
	// Read fires once per assembled frame. buf is a cursor into the
	// session's current external segment; see Cursor.
	Read(s *Session, buf *Cursor)
	// Write fires once an async write batch has been fully flushed.
	Write(s *Session, batch []pbuf.Buffer)
	// Except fires when a handler callback panicked; recovered is the
	// recovered value. After Except returns, the session closes
	// immediately (Session.onHandlerPanic); if Except itself panics,
	// Error is called with an unknown_except_exception error first.
	Except(s *Session, recovered any)
	// Error fires on a transport or framer failure. Default policy is
	// close(immediate).
	Error(s *Session, err error)
	// Close fires exactly once, when the session reaches StatusClosed.
	Close(s *Session)
}

// BaseHandler implements Handler with no-ops, so real handlers can
// embed it and override only the callbacks they care about — the
// SOCKS5 and RPC demos in cmd/ do exactly this.
type BaseHandler struct{}

func (BaseHandler) Connect(*Session, string)      {}
func (BaseHandler) Read(*Session, *Cursor)        {}
func (BaseHandler) Write(*Session, []pbuf.Buffer) {}
func (BaseHandler) Except(*Session, any)          {}
func (BaseHandler) Error(*Session, error)         {}
func (BaseHandler) Close(*Session)                {}

// Cursor is the mutable view into one delivered frame (the
// "buf"). It never caches a raw byte slice: Whole and Data recompute
// from the session's triple buffer on every call, so a Consume call
// that physically shifts bytes around never leaves Cursor pointing at
// stale memory.
type Cursor struct {
	sess   *Session
	base   int // offset of this frame's start within the current slice
	length int // frame length at the time TryExtract delivered it
	adv    int // bytes the handler has advanced past, via Advance
}

// Whole returns the full frame, ignoring any prior Advance calls.
func (c *Cursor) Whole() []byte {
	full := c.sess.buf.CurrentExternal()
	end := c.base + c.length
	if end > len(full) {
		end = len(full)
	}
	if c.base > end {
		return nil
	}
	return full[c.base:end]
}

// Data returns the unread remainder: Whole() with the first Advance
// bytes dropped from the front.
func (c *Cursor) Data() []byte {
	w := c.Whole()
	if c.adv > len(w) {
		return nil
	}
	return w[c.adv:]
}

// Size returns len(Data()).
func (c *Cursor) Size() int { return len(c.Data()) }

// Advance narrows Data() by dropping k bytes from its front, without
// consuming anything from the session's external segment — the bytes
// are still there for Whole() or a later Consume call.
func (c *Cursor) Advance(k int) {
	c.adv += k
	if c.adv > c.length {
		c.adv = c.length
	}
}

// Consume drops k bytes from the front of the session's external
// segment (not just this frame), via the triple buffer's
// ConsumeExternal. This physically shifts bytes, so Cursor fixes up
// its own base/length/adv afterward rather than caching anything that
// the shift could invalidate.
func (c *Cursor) Consume(k int) {
	c.sess.buf.ConsumeExternal(k)
	c.base -= k
	if c.base < 0 {
		c.base = 0
	}
	c.length -= k
	if c.length < 0 {
		c.length = 0
	}
	c.adv -= k
	if c.adv < 0 {
		c.adv = 0
	}
}
