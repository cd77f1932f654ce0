package cmd

import (
	"encoding/binary"

	"netsess/pbuf"
	"netsess/session"
	"netsess/wire"
)

// RPCHandler is the length-prefixed RPC demo: every big-endian
// prefix_32 frame is treated as a single request string and answered
// with one prefix_32 frame carrying the reply, so a client can pipeline
// several requests back to back over the same session.
type RPCHandler struct {
	session.BaseHandler
}

func (h *RPCHandler) Connect(s *session.Session, remote string) {
	s.Configure(wire.Prefix32, wire.IgnoreProtocolBytes, 1<<20)
}

func (h *RPCHandler) Read(s *session.Session, buf *session.Cursor) {
	req := string(buf.Whole())
	reply := "ok: " + req

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(reply)))

	_ = s.Write(pbuf.Persist(header), pbuf.Persist(reply))
}
