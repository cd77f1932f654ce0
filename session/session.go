// Package session implements the per-connection I/O engine: the
// framer, the session state machine, and the session registry, built
// on top of buffer.Triple and pbuf.Queue.
//
// Go has no async reactor to hang callbacks off of, so "a single
// event loop per service, with all completion callbacks for one
// session serialised onto the same executor" is read as:
// one goroutine per session — started by Start — on which every
// Handler call is made. Two helper goroutines (a reader pump and a
// writer pump) perform the actual blocking socket syscalls and hand
// their results back over channels; the session goroutine itself only
// ever blocks in a single select, so Handler code never has to worry
// about a concurrent callback for the same session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"netsess/buffer"
	"netsess/internal/metrics"
	"netsess/pbuf"
	"netsess/util"
	"netsess/wire"
)

// ErrClosed is returned by Write once the session has begun (or
// finished) closing — writes submitted after that point are rejected.
var ErrClosed = errors.New("session: closed")

// DefaultReadBufferSize is used when a handler never calls
// SetReadBufferSize.
const DefaultReadBufferSize = 64 * 1024

// nextID hands out monotonically increasing session ids. Starting at
// 1 keeps 0 available as an obvious not-a-session-id sentinel.
var nextID atomic.Uint64

// NextID returns the next session id. Exposed so service.Service can
// assign it before constructing the Session itself.
func NextID() uint64 { return nextID.Add(1) }

// Owner is the thin fallback the session needs from whatever created
// it, modelled as an interface instead of an import so this package
// never depends on package service.
type Owner interface {
	// DefaultHandler returns the service-level handler a session
	// falls back to when UseServiceHandler has been called.
	DefaultHandler() Handler
}

type closeMode int

const (
	closeGraceful closeMode = iota
	closeImmediate
)

type ioResult struct {
	n   int
	err error
}

type writeResult struct {
	batch []pbuf.Buffer
	err   error
}

// Session is one connection's I/O engine. It owns its
// socket, triple buffer and write queue exclusively; it is referenced
// with shared ownership from the outside (a Registry and any user code
// holding a handle).
type Session struct {
	id     uint64
	conn   net.Conn
	owner  Owner
	logger *util.Logger
	mtr    *metrics.Collector

	cfgMu             sync.RWMutex
	handler           Handler
	useServiceHandler bool
	protocol          wire.Protocol
	options           wire.Options
	readBufferSize    int
	delimiter         []byte

	status atomicStatus
	attrs  *AttributeMap

	buf    *buffer.Triple
	queue  *pbuf.Queue
	framer Framer

	readReqCh   chan []byte
	readRespCh  chan ioResult
	writeReqCh  chan []pbuf.Buffer
	writeRespCh chan writeResult
	writeKick   chan struct{}
	closeCh     chan closeMode

	readInFlight  bool
	writeInFlight bool
	kick          chan struct{}
	doneCh        chan struct{}
	closeFired    sync.Once
}

// New constructs a Session for an already-connected conn. It does not
// start the event loop — call Start for that, once the owner (usually
// a service.Service) has registered it wherever it needs to be found.
func New(id uint64, conn net.Conn, owner Owner, h Handler, logger *util.Logger, mtr *metrics.Collector) *Session {
	if h == nil {
		h = BaseHandler{}
	}
	return &Session{
		id:             id,
		conn:           conn,
		owner:          owner,
		logger:         logger.WithPrefix(fmt.Sprintf("session %d: ", id)),
		mtr:            mtr,
		handler:        h,
		readBufferSize: DefaultReadBufferSize,
		attrs:          NewAttributeMap(),
		buf:            buffer.New(),
		queue:          pbuf.New(),
		readReqCh:      make(chan []byte),
		readRespCh:     make(chan ioResult),
		writeReqCh:     make(chan []pbuf.Buffer),
		writeRespCh:    make(chan writeResult),
		writeKick:      make(chan struct{}, 1),
		kick:           make(chan struct{}, 1),
		closeCh:        make(chan closeMode, 1),
		doneCh:         make(chan struct{}),
	}
}

// ── identity & accessors ─────────────────────────────────────────────

func (s *Session) ID() uint64           { return s.id }
func (s *Session) Status() Status       { return s.status.load() }
func (s *Session) Attrs() *AttributeMap { return s.attrs }
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
func (s *Session) LocalAddr() net.Addr  { return s.conn.LocalAddr() }

// Done returns a channel closed once the session reaches StatusClosed
// and its Close callback has fired.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// SetHandler replaces the per-session handler. Safe to call from any
// goroutine, including from inside a Handler callback.
func (s *Session) SetHandler(h Handler) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.handler = h
}

// UseServiceHandler makes the session fall back to its owning
// service's default handler instead of its own per-session one.
func (s *Session) UseServiceHandler(on bool) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.useServiceHandler = on
}

func (s *Session) handlerFor() Handler {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	if s.useServiceHandler && s.owner != nil {
		if h := s.owner.DefaultHandler(); h != nil {
			return h
		}
	}
	return s.handler
}

// Protocol, SetProtocol and the other framer knobs are all re-read
// fresh at the top of every assembly tick, so a Handler callback may
// reconfigure them freely mid-stream.
func (s *Session) Protocol() wire.Protocol {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.protocol
}

func (s *Session) SetProtocol(p wire.Protocol) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.protocol = p
}

func (s *Session) ProtocolOptions() wire.Options {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.options
}

func (s *Session) SetProtocolOptions(o wire.Options) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.options = o
}

func (s *Session) ReadBufferSize() int {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.readBufferSize
}

func (s *Session) SetReadBufferSize(n int) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.readBufferSize = n
}

func (s *Session) Delimiter() []byte {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.delimiter
}

func (s *Session) SetDelimiter(d []byte) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.delimiter = d
}

// Configure sets protocol, options and read buffer size together,
// which is the common case when a handler switches framing mid-stream
// (e.g. the SOCKS5 demo's negotiation steps).
func (s *Session) Configure(p wire.Protocol, o wire.Options, readBufferSize int) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.protocol = p
	s.options = o
	s.readBufferSize = readBufferSize
}

func (s *Session) framerConfig() (wire.Protocol, wire.Options, int, []byte) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.protocol, s.options, s.readBufferSize, s.delimiter
}

// ── lifecycle ────────────────────────────────────────────────────────

// Start transitions the session from connecting to connected, fires
// the Connect callback, and begins the event loop on a new goroutine.
// remote is passed through to Handler.Connect as a display string.
func (s *Session) Start(ctx context.Context, remote string) {
	go s.readerPump()
	go s.writerPump()
	go s.eventLoop(ctx, remote)
}

func (s *Session) eventLoop(ctx context.Context, remote string) {
	if !s.status.cas(StatusConnecting, StatusConnected) {
		return
	}
	s.mtr.ConnectionOpened()
	s.dispatch(func() { s.handlerFor().Connect(s, remote) })
	if s.status.load() == StatusClosed {
		return
	}
	s.runAssembly()

	for {
		if s.status.load() == StatusClosed {
			return
		}
		select {
		case <-ctx.Done():
			s.doClose()
			return
		case res := <-s.readRespCh:
			s.handleReadResult(res)
		case <-s.writeKick:
			s.handleWriteKick()
		case <-s.kick:
			s.runAssembly()
		case wr := <-s.writeRespCh:
			s.handleWriteResult(wr)
		case mode := <-s.closeCh:
			if s.handleCloseRequest(mode) {
				return
			}
		}
	}
}

func (s *Session) readerPump() {
	for {
		select {
		case buf := <-s.readReqCh:
			n, err := s.conn.Read(buf)
			select {
			case s.readRespCh <- ioResult{n: n, err: err}:
			case <-s.doneCh:
				return
			}
			if err != nil {
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

func (s *Session) writerPump() {
	for {
		select {
		case batch := <-s.writeReqCh:
			err := writeBatch(s.conn, batch)
			select {
			case s.writeRespCh <- writeResult{batch: batch, err: err}:
			case <-s.doneCh:
				return
			}
			if err != nil {
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

func writeBatch(conn net.Conn, batch []pbuf.Buffer) error {
	bufs := make(net.Buffers, len(batch))
	for i, b := range batch {
		bufs[i] = b.Bytes
	}
	_, err := bufs.WriteTo(conn)
	return err
}

// ── read path ────────────────────────────────────────────────────────

func (s *Session) handleReadResult(res ioResult) {
	s.readInFlight = false
	if res.err != nil {
		s.failTransport(res.err)
		return
	}
	n := s.buf.CommitToInternal(res.n)
	s.mtr.BytesReceived(int64(n))
	s.runAssembly()
}

// runAssembly is one full read cycle: it may deliver any
// number of frames (a single socket read can span several)
// before either running out of buffered bytes — at which point it
// schedules another socket read — or finding Protocol == None, at
// which point the session simply waits in StatusConnected for the
// handler to reconfigure it and call a read explicitly.
//
// Each delivery repeats the same on-entry sequence a fresh tick would:
// consume the previously presented external segment (unless
// DoNotConsumeBuffer), then snapshot where the next frame's view
// starts. With DoNotConsumeBuffer the already-presented bytes stay in
// external and the view simply moves to the new segment behind them.
// Framer config is re-read every iteration, so a handler that
// reconfigured the session mid-callback takes effect on the very next
// frame.
//
// While a socket read is outstanding this is a no-op: the reader pump
// owns a slice into the output segment, and consuming or growing the
// buffer underneath it would corrupt the bytes it is about to commit.
// Assembly resumes from handleReadResult once the read lands.
func (s *Session) runAssembly() {
	if s.readInFlight {
		return
	}
	for {
		proto, opts, bufSize, delim := s.framerConfig()
		if proto == wire.None {
			s.status.cas(StatusReading, StatusConnected)
			return
		}
		s.status.cas(StatusConnected, StatusReading)

		if !opts.Has(wire.DoNotConsumeBuffer) {
			s.buf.ConsumeWholeExternal()
			s.buf.MarkCurrentExternal()
		} else {
			s.buf.MoveToNewExternalSegment()
		}

		ready, err := s.framer.TryExtract(s.buf, proto, opts, bufSize, delim)
		if err != nil {
			s.failFramer(err)
			return
		}
		if !ready {
			s.scheduleRead(bufSize)
			return
		}
		s.dispatchFrame()
		if s.status.load() == StatusClosed {
			return
		}
	}
}

func (s *Session) scheduleRead(bufSize int) {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	out := s.buf.PrepareOutput(bufSize)
	s.readInFlight = true
	select {
	case s.readReqCh <- out:
	case <-s.doneCh:
	}
}

// Read requests an assembly pass, which is how a handler that set
// Protocol to None (or is reacting to some external event rather than
// a just-delivered frame) asks the session to start reading again.
// It is a no-op once the session has reached StatusClosed. Safe to
// call from any goroutine; if called from inside a Handler callback it
// still goes through the kick channel rather than recursing, so the
// current callback always finishes before the next one starts.
func (s *Session) Read() {
	if s.status.load() == StatusClosed {
		return
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Session) dispatchFrame() {
	cur := &Cursor{sess: s, base: 0, length: len(s.buf.CurrentExternal())}
	s.mtr.FrameDelivered()
	s.dispatch(func() { s.handlerFor().Read(s, cur) })
}

// ── write path ───────────────────────────────────────────────────────

// Write enqueues one or more persistent buffers for asynchronous
// writing. Safe to call from any goroutine — pbuf.Queue.Enqueue holds
// its own lock, so a single call with several buffers is atomic with
// respect to other Write calls and preserves submission order.
func (s *Session) Write(bufs ...pbuf.Buffer) error {
	switch s.status.load() {
	case StatusClosing, StatusClosed:
		return ErrClosed
	}
	s.queue.Enqueue(bufs...)
	select {
	case s.writeKick <- struct{}{}:
	default:
	}
	return nil
}

func (s *Session) handleWriteKick() {
	if s.writeInFlight {
		return
	}
	s.tryStartWrite()
}

// tryStartWrite calls Mark exactly once: a positive
// return means this call owns the resulting batch and must start the
// write; zero means a write is already in flight (handled elsewhere);
// negative means there was nothing pending.
func (s *Session) tryStartWrite() {
	gen := s.queue.Mark()
	if gen <= 0 {
		return
	}
	batch := s.queue.Marked()
	s.writeInFlight = true
	select {
	case s.writeReqCh <- batch:
	case <-s.doneCh:
	}
}

func (s *Session) handleWriteResult(wr writeResult) {
	s.writeInFlight = false
	s.queue.ClearMarked()
	if wr.err != nil {
		// A write failure mid-drain means the graceful flush will
		// never finish: complete the close rather than waiting for a
		// queue that can no longer empty itself.
		if s.status.load() == StatusClosing {
			s.doClose()
			return
		}
		s.failTransport(wr.err)
		return
	}
	var total int64
	for _, b := range wr.batch {
		total += int64(b.Len())
	}
	s.mtr.BytesSent(total)
	s.mtr.WriteBatchFlushed()
	s.dispatch(func() { s.handlerFor().Write(s, wr.batch) })

	if s.status.load() == StatusClosed {
		return
	}
	if s.queue.Idle() {
		if s.status.load() == StatusClosing {
			s.doClose()
		}
		return
	}
	s.tryStartWrite()
}

// ── close path ───────────────────────────────────────────────────────

// Close begins a graceful (drain pending writes, then close) or
// immediate (discard pending writes, close now) shutdown. Safe to
// call from any goroutine, any number of times — only the first
// close wins.
func (s *Session) Close(graceful bool) {
	mode := closeImmediate
	if graceful {
		mode = closeGraceful
	}
	select {
	case s.closeCh <- mode:
	case <-s.doneCh:
	}
}

func (s *Session) handleCloseRequest(mode closeMode) bool {
	if mode == closeImmediate {
		s.doClose()
		return true
	}
	// Graceful: stop accepting new reads from the peer, but keep
	// flushing whatever is already queued for write.
	s.status.store(StatusClosing)
	if hcr, ok := s.conn.(interface{ CloseRead() error }); ok {
		_ = hcr.CloseRead()
	}
	if s.queue.Idle() && !s.writeInFlight {
		s.doClose()
		return true
	}
	return false
}

// doClose performs the single-shot transition into StatusClosed: it
// discards anything left in the write queue (a no-op if the caller
// already drained it via graceful close), closes the socket — which
// unblocks the reader/writer pumps — and fires Close exactly once.
func (s *Session) doClose() {
	if !s.status.closeOnce() {
		return
	}
	s.queue.DiscardAll()
	_ = s.conn.Close()
	s.closeFired.Do(func() {
		close(s.doneCh)
		s.mtr.ConnectionClosed()
		s.dispatch(func() { s.handlerFor().Close(s) })
	})
}

// ── panic containment ────────────────────────────────────────────────

// dispatch runs fn, catching any panic and routing it to the
// handler's Except callback, then always closes the session — a
// panic mid-callback leaves framer/queue state in an unknown
// condition, so continuing is not an option.
func (s *Session) dispatch(fn func()) {
	pv, panicked := safeCall(fn)
	if !panicked {
		return
	}
	s.onHandlerPanic(pv)
}

func (s *Session) onHandlerPanic(pv any) {
	s.logger.Error("handler panic: %v", pv)
	_, exceptPanicked := safeCall(func() { s.handlerFor().Except(s, pv) })
	if exceptPanicked {
		err := fmt.Errorf("unknown_except_exception: %v", pv)
		safeCall(func() { s.handlerFor().Error(s, err) })
	}
	s.doClose()
}

func safeCall(f func()) (panicVal any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicVal, panicked = r, true
		}
	}()
	f()
	return nil, false
}

func (s *Session) failTransport(err error) {
	st := s.status.load()
	if st == StatusClosing || st == StatusClosed {
		// Expected: we asked for this shutdown (CloseRead, or the
		// socket finally going away after a drained write). Not a
		// reportable error.
		return
	}
	s.mtr.RecordError(err.Error())
	s.dispatch(func() { s.handlerFor().Error(s, err) })
	s.doClose()
}

func (s *Session) failFramer(err error) {
	s.mtr.RecordError(err.Error())
	s.dispatch(func() { s.handlerFor().Error(s, err) })
	s.doClose()
}
