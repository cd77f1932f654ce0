package session

import "sync"

// Registry is the service-wide map of active session id → *Session
//, ordered by id so ForEach can resume from
// where it left off after dropping the lock around each callback.
type Registry struct {
	mu   sync.Mutex
	ids  []uint64 // kept sorted
	byID map[uint64]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*Session)}
}

// Insert adds s under s.ID(). Inserting an id that's already present
// replaces the existing entry.
func (r *Registry) Insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := s.ID()
	if _, exists := r.byID[id]; !exists {
		r.insertSorted(id)
	}
	r.byID[id] = s
}

func (r *Registry) insertSorted(id uint64) {
	i := r.upperBound(id - 1)
	r.ids = append(r.ids, 0)
	copy(r.ids[i+1:], r.ids[i:])
	r.ids[i] = id
}

// upperBound returns the index of the first id strictly greater than
// last. Linear for simplicity — registries are sized by concurrent
// connection count, not by anything that needs a binary search here.
func (r *Registry) upperBound(last uint64) int {
	for i, id := range r.ids {
		if id > last {
			return i
		}
	}
	return len(r.ids)
}

// Erase removes the session with the given id, if present.
func (r *Registry) Erase(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, v := range r.ids {
		if v == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
}

// Get returns the session for id, if still present.
func (r *Registry) Get(id uint64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// Len returns the current number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// ForEach calls f with each session in increasing id order. The
// registry's lock is released around every call to f, so f may insert,
// erase, or otherwise mutate the registry — including erasing the very
// session it was just given — without deadlocking. Iteration resumes
// from upper_bound(lastID), so a session destroyed mid-iteration is
// skipped cleanly rather than causing a repeat or a panic. f returning
// false stops iteration early.
func (r *Registry) ForEach(f func(*Session) bool) {
	var lastID uint64
	first := true
	for {
		r.mu.Lock()
		idx := 0
		if !first {
			idx = r.upperBound(lastID)
		}
		if idx >= len(r.ids) {
			r.mu.Unlock()
			return
		}
		id := r.ids[idx]
		s, ok := r.byID[id]
		r.mu.Unlock()

		first = false
		lastID = id
		if !ok {
			continue
		}
		if !f(s) {
			return
		}
	}
}
