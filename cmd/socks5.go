package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"netsess/pbuf"
	"netsess/service"
	"netsess/session"
	"netsess/wire"
)

// socksStep names the resume point the SOCKS5 negotiation sits at
// between Read callbacks. The same session's read callback runs with
// different framing at each step, so the handler is a plain state
// field plus a switch rather than a coroutine.
type socksStep int

const (
	socksVersion socksStep = iota
	socksMethods
	socksRequestHeader
	socksDomainLen
	socksAddrPort
	socksRelay
)

const (
	socksAtypIPv4   = 0x01
	socksAtypDomain = 0x03
	socksAtypIPv6   = 0x04

	socksRepSucceeded   = 0x00
	socksRepAddrNotSupp = 0x08
	socksRepHostUnreach = 0x04
)

// SocksHandler implements a CONNECT-only SOCKS5 negotiation: version
// and method negotiation (no-auth only), a CONNECT request parse for
// IPv4 and domain-name targets, and a relay once the outbound leg is
// up. IPv6 targets (ATYP 0x04) reply address-type-not-supported — not
// a protocol limitation, just a demo kept to two address kinds.
type SocksHandler struct {
	session.BaseHandler
	Connector *service.Connector
	Ctx       context.Context

	step      socksStep
	atyp      byte
	domainLen int
	peer      *session.Session
}

func (h *SocksHandler) Connect(s *session.Session, remote string) {
	s.Configure(wire.Fixed, 0, 1)
	h.step = socksVersion
}

func (h *SocksHandler) Read(s *session.Session, buf *session.Cursor) {
	switch h.step {
	case socksVersion:
		h.readVersion(s, buf)
	case socksMethods:
		h.readMethods(s, buf)
	case socksRequestHeader:
		h.readRequestHeader(s, buf)
	case socksDomainLen:
		h.readDomainLen(s, buf)
	case socksAddrPort:
		h.readAddrPort(s, buf)
	case socksRelay:
		_ = h.peer.Write(pbuf.Persist(append([]byte(nil), buf.Whole()...)))
	}
}

func (h *SocksHandler) readVersion(s *session.Session, buf *session.Cursor) {
	if buf.Whole()[0] != 5 {
		s.Close(false)
		return
	}
	// methods list is itself prefix_8-framed: the nmethods byte the
	// client sends next is exactly a one-byte length header.
	s.Configure(wire.Prefix8, 0, 256)
	h.step = socksMethods
}

func (h *SocksHandler) readMethods(s *session.Session, buf *session.Cursor) {
	_ = s.Write(pbuf.Persist([]byte{5, 0})) // no-auth, unconditionally
	s.Configure(wire.Fixed, 0, 4)            // VER CMD RSV ATYP
	h.step = socksRequestHeader
}

func (h *SocksHandler) readRequestHeader(s *session.Session, buf *session.Cursor) {
	hdr := buf.Whole()
	if hdr[0] != 5 {
		s.Close(false)
		return
	}
	h.atyp = hdr[3]
	switch h.atyp {
	case socksAtypIPv4:
		s.Configure(wire.Fixed, 0, 6) // 4-byte addr + 2-byte port
		h.step = socksAddrPort
	case socksAtypDomain:
		s.Configure(wire.Fixed, 0, 1) // domain length byte
		h.step = socksDomainLen
	default:
		h.reply(s, socksRepAddrNotSupp)
		s.Close(true)
	}
}

func (h *SocksHandler) readDomainLen(s *session.Session, buf *session.Cursor) {
	h.domainLen = int(buf.Whole()[0])
	s.Configure(wire.Fixed, 0, h.domainLen+2) // domain + 2-byte port
	h.step = socksAddrPort
}

func (h *SocksHandler) readAddrPort(s *session.Session, buf *session.Cursor) {
	data := buf.Whole()

	var target string
	var dial func() (*session.Session, error)

	switch h.atyp {
	case socksAtypIPv4:
		ip := net.IP(data[0:4]).String()
		port := binary.BigEndian.Uint16(data[4:6])
		target = fmt.Sprintf("%s:%d", ip, port)
		dial = func() (*session.Session, error) {
			return h.Connector.Dial(h.Ctx, "tcp", target, &socksRelayPeer{client: s})
		}
	case socksAtypDomain:
		domain := string(data[:h.domainLen])
		port := int(binary.BigEndian.Uint16(data[h.domainLen : h.domainLen+2]))
		target = fmt.Sprintf("%s:%d", domain, port)
		dial = func() (*session.Session, error) {
			return h.Connector.ResolveAndDialSequence(h.Ctx, domain, port, &socksRelayPeer{client: s})
		}
	}

	peer, err := dial()
	if err != nil {
		h.reply(s, socksRepHostUnreach)
		s.Close(true)
		return
	}

	h.peer = peer
	h.reply(s, socksRepSucceeded)
	s.SetProtocol(wire.Any)
	h.step = socksRelay
}

// reply writes a 10-byte SOCKS5 reply with a zeroed BND.ADDR/PORT —
// real bind address reporting is not needed for a CONNECT-only relay.
func (h *SocksHandler) reply(s *session.Session, code byte) {
	_ = s.Write(pbuf.Persist([]byte{5, code, 0, socksAtypIPv4, 0, 0, 0, 0, 0, 0}))
}

// socksRelayPeer is the handler on the outbound (destination) leg: it
// simply forwards every frame it reads back to the SOCKS5 client.
type socksRelayPeer struct {
	session.BaseHandler
	client *session.Session
}

func (p *socksRelayPeer) Connect(s *session.Session, remote string) {
	s.SetProtocol(wire.Any)
}

func (p *socksRelayPeer) Read(s *session.Session, buf *session.Cursor) {
	_ = p.client.Write(pbuf.Persist(append([]byte(nil), buf.Whole()...)))
}

func (p *socksRelayPeer) Close(s *session.Session) {
	p.client.Close(true)
}
