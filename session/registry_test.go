package session

import (
	"net"
	"testing"
)

// newIdleSession builds a session that is never started: registry
// tests only need identity, not I/O.
func newIdleSession(t *testing.T) *Session {
	t.Helper()
	client, server := net.Pipe()
	s := New(NextID(), server, nil, nil, nil, nil)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return s
}

func TestRegistryInsertGetErase(t *testing.T) {
	r := NewRegistry()
	s := newIdleSession(t)

	r.Insert(s)
	if got, ok := r.Get(s.ID()); !ok || got != s {
		t.Fatalf("Get(%d) = %v, %v", s.ID(), got, ok)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	r.Erase(s.ID())
	if _, ok := r.Get(s.ID()); ok {
		t.Fatalf("Get after Erase still finds the session")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() after Erase = %d, want 0", r.Len())
	}
}

func TestRegistryForEachVisitsInIDOrder(t *testing.T) {
	r := NewRegistry()
	a, b, c := newIdleSession(t), newIdleSession(t), newIdleSession(t)
	// Insert out of order; iteration must still be id-ascending.
	r.Insert(c)
	r.Insert(a)
	r.Insert(b)

	var seen []uint64
	r.ForEach(func(s *Session) bool {
		seen = append(seen, s.ID())
		return true
	})

	if len(seen) != 3 {
		t.Fatalf("visited %d sessions, want 3", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("ids not ascending: %v", seen)
		}
	}
}

func TestRegistryForEachEarlyStop(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Insert(newIdleSession(t))
	}

	count := 0
	r.ForEach(func(s *Session) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("visited %d sessions, want 2 (early stop)", count)
	}
}

func TestRegistryForEachToleratesEraseDuringIteration(t *testing.T) {
	r := NewRegistry()
	sessions := make([]*Session, 4)
	for i := range sessions {
		sessions[i] = newIdleSession(t)
		r.Insert(sessions[i])
	}

	var seen []uint64
	r.ForEach(func(s *Session) bool {
		seen = append(seen, s.ID())
		// Erasing the session just visited must not deadlock or repeat
		// entries.
		r.Erase(s.ID())
		return true
	})

	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("repeated or out-of-order id in %v", seen)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after erasing every visited session", r.Len())
	}
}

func TestRegistryForEachToleratesInsertDuringIteration(t *testing.T) {
	r := NewRegistry()
	r.Insert(newIdleSession(t))

	inserted := false
	count := 0
	r.ForEach(func(s *Session) bool {
		count++
		if !inserted {
			inserted = true
			r.Insert(newIdleSession(t)) // higher id: will be visited too
		}
		return true
	})
	if count != 2 {
		t.Fatalf("visited %d sessions, want 2 (insert picked up mid-iteration)", count)
	}
}
