package cmd

import (
	"fmt"

	"netsess/pbuf"
	"netsess/service"
	"netsess/session"
	"netsess/wire"
)

// LineHandler is the line-oriented chat demo: every CRLF-terminated
// line a peer sends is broadcast, prefixed with its session id, to
// every other session the owning Service currently has registered.
type LineHandler struct {
	session.BaseHandler
	Service *service.Service
}

func (h *LineHandler) Connect(s *session.Session, remote string) {
	s.Configure(wire.DelimCRLF, wire.IgnoreProtocolBytes, 4096)
	h.broadcast(s, fmt.Sprintf("* session %d joined from %s", s.ID(), remote))
}

func (h *LineHandler) Read(s *session.Session, buf *session.Cursor) {
	line := append([]byte(nil), buf.Whole()...)
	h.broadcast(s, fmt.Sprintf("%d: %s", s.ID(), line))
}

func (h *LineHandler) Close(s *session.Session) {
	h.broadcast(s, fmt.Sprintf("* session %d left", s.ID()))
}

func (h *LineHandler) broadcast(from *session.Session, line string) {
	msg := append([]byte(line), '\r', '\n')
	h.Service.Registry().ForEach(func(peer *session.Session) bool {
		if peer.ID() != from.ID() {
			_ = peer.Write(pbuf.Persist(append([]byte(nil), msg...)))
		}
		return true
	})
}
