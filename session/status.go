package session

import (
	"fmt"
	"sync/atomic"
)

// Status is the session lifecycle state. The five
// values form the total order connecting < connected < reading <
// closing < closed; Status itself is stored atomically so close can
// race safely with in-flight I/O completions.
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReading
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReading:
		return "reading"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Terminal reports whether s is closed — no further transitions and no
// further callbacks except the one-time Close callback are valid.
func (s Status) Terminal() bool { return s == StatusClosed }

// atomicStatus wraps atomic.Int32 with Status-typed accessors and the
// compare-and-set loop needed for the single-shot
// transition into StatusClosed.
type atomicStatus struct {
	v atomic.Int32
}

func (a *atomicStatus) load() Status    { return Status(a.v.Load()) }
func (a *atomicStatus) store(s Status)  { a.v.Store(int32(s)) }
func (a *atomicStatus) cas(old, new_ Status) bool {
	return a.v.CompareAndSwap(int32(old), int32(new_))
}

// closeOnce performs the single-shot transition to StatusClosed,
// returning true iff this call is the one that made it happen. Races
// between an explicit Close and an internal error-triggered close both
// funnel through here, so at most one of them wins.
func (a *atomicStatus) closeOnce() bool {
	for {
		cur := a.load()
		if cur == StatusClosed {
			return false
		}
		if a.cas(cur, StatusClosed) {
			return true
		}
	}
}
