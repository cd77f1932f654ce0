package cmd

import (
	"encoding/binary"
	"hash/crc32"

	"netsess/pbuf"
	"netsess/session"
	"netsess/wire"
)

// echoMsgType tags the single response kind the echo demo emits.
type echoMsgType byte

const echoMsgReply echoMsgType = 1

// EchoHandler is the framed echo demo: the server reads
// length-prefixed, little-endian framed requests and echoes each
// payload back behind a `[len|type|crc]` header so the client can
// verify the round trip with a CRC32 check.
type EchoHandler struct {
	session.BaseHandler
}

func (h *EchoHandler) Connect(s *session.Session, remote string) {
	s.Configure(wire.Prefix32, wire.UseLittleEndian|wire.IgnoreProtocolBytes, 64*1024)
}

func (h *EchoHandler) Read(s *session.Session, buf *session.Cursor) {
	payload := append([]byte(nil), buf.Whole()...)

	header := make([]byte, 9)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	header[4] = byte(echoMsgReply)
	binary.LittleEndian.PutUint32(header[5:9], crc32.ChecksumIEEE(payload))

	_ = s.Write(pbuf.Persist(header), pbuf.Persist(payload))
}

func (h *EchoHandler) Error(s *session.Session, err error) {}
