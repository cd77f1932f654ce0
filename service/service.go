// Package service turns connect/accept events into sessions, hands out
// a default handler a session can fall back to with
// Session.UseServiceHandler, and owns the registry every accepted or
// dialled session is inserted into.
//
// There is no reactor to drive — package session's goroutine model
// already is the event loop — so Service is a thin factory plus a
// shared registry/handler/logger/metrics bundle.
package service

import (
	"context"
	"net"
	"sync"

	"netsess/internal/metrics"
	"netsess/session"
	"netsess/util"
)

// Service owns the session registry and the defaults new sessions are
// built with. One Service is typically shared by every session a
// single netsess invocation creates (whether accepted or dialled).
type Service struct {
	Logger  *util.Logger
	Metrics *metrics.Collector

	registry *session.Registry

	mu      sync.RWMutex
	handler session.Handler
}

// New returns a Service with an empty registry and no default handler.
// logger and mtr may be nil; session.Session tolerates both.
func New(logger *util.Logger, mtr *metrics.Collector) *Service {
	return &Service{
		Logger:   logger,
		Metrics:  mtr,
		registry: session.NewRegistry(),
	}
}

// Registry returns the service-wide session registry.
func (s *Service) Registry() *session.Registry { return s.registry }

// SetDefaultHandler installs the handler sessions fall back to when
// they call Session.UseServiceHandler(true). Safe to call at any time.
func (s *Service) SetDefaultHandler(h session.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// DefaultHandler implements session.Owner.
func (s *Service) DefaultHandler() session.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// NewSession wraps an already-established net.Conn (accepted or
// dialled) in a *session.Session, registers it, and starts its event
// loop. remote is the display string passed to Handler.Connect.
func (s *Service) NewSession(ctx context.Context, conn net.Conn, h session.Handler, remote string) *session.Session {
	id := session.NextID()
	sess := session.New(id, conn, s, h, s.Logger, s.Metrics)
	s.registry.Insert(sess)
	go func() {
		<-sess.Done()
		s.registry.Erase(id)
	}()
	sess.Start(ctx, remote)
	return sess
}

// CloseAll initiates a close on every registered session, graceful if
// graceful is true.
func (s *Service) CloseAll(graceful bool) {
	s.registry.ForEach(func(sess *session.Session) bool {
		sess.Close(graceful)
		return true
	})
}
