package cmd

import (
	"io"

	"netsess/pbuf"
	"netsess/session"
	"netsess/util"
	"netsess/wire"
)

// PassthroughHandler is netsess's default, netcat-equivalent handler:
// whatever arrives on the wire goes to Stdout, whatever arrives on
// Stdin goes to the wire, byte-for-byte, with no framing imposed
// beyond Any (the triple buffer still batches reads, but every
// socket read is delivered as one frame so nothing is held back
// waiting for a delimiter).
type PassthroughHandler struct {
	session.BaseHandler
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger

	// Protocol, Options, ReadBufferSize and Delimiter carry the
	// --proto/--frame-size/--delim/--little-endian/etc flags through to
	// the session. Protocol defaults to wire.Any (stream everything a
	// single read returns) when left at its zero value, since wire.None
	// would otherwise leave the session waiting forever for a handler
	// that never reconfigures it.
	Protocol       wire.Protocol
	Options        wire.Options
	ReadBufferSize int
	Delimiter      []byte

	// OnClose, if set, is called once when the session closes — used
	// by connect mode to unblock its own run loop.
	OnClose func()
}

func (p *PassthroughHandler) Connect(s *session.Session, remote string) {
	proto := p.Protocol
	if proto == wire.None {
		proto = wire.Any
	}
	bufSize := p.ReadBufferSize
	if bufSize <= 0 {
		bufSize = session.DefaultReadBufferSize
	}
	s.Configure(proto, p.Options, bufSize)
	if len(p.Delimiter) > 0 {
		s.SetDelimiter(p.Delimiter)
	}
	p.Logger.Verbose("session %d: connected to %s", s.ID(), remote)
	go p.pumpStdin(s)
}

func (p *PassthroughHandler) pumpStdin(s *session.Session) {
	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp
	for {
		n, err := p.Stdin.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if werr := s.Write(pbuf.Persist(chunk)); werr != nil {
				return
			}
		}
		if err != nil {
			s.Close(true) // graceful: flush whatever we already wrote
			return
		}
	}
}

func (p *PassthroughHandler) Read(s *session.Session, buf *session.Cursor) {
	if _, err := p.Stdout.Write(buf.Whole()); err != nil {
		s.Close(false)
	}
}

func (p *PassthroughHandler) Error(s *session.Session, err error) {
	p.Logger.Error("session %d: %v", s.ID(), err)
}

func (p *PassthroughHandler) Close(s *session.Session) {
	p.Logger.Verbose("session %d: closed", s.ID())
	if p.OnClose != nil {
		p.OnClose()
	}
}
