package session

import "sync"

// AttributeMap is the thread-safe, insertion-ordered key→Any map
// attached to every session.
// It carries its own locking, independent of the session's own state,
// and Compute's callback runs under that lock — it must
// not re-enter the same map.
type AttributeMap struct {
	mu    sync.Mutex
	order []string
	vals  map[string]Any
}

// NewAttributeMap returns an empty attribute map.
func NewAttributeMap() *AttributeMap {
	return &AttributeMap{vals: make(map[string]Any)}
}

// Get returns the value stored at key and whether it was present.
func (m *AttributeMap) Get(key string) (Any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok
}

// Set stores v at key, appending key to the iteration order the first
// time it is used.
func (m *AttributeMap) Set(key string, v Any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, v)
}

func (m *AttributeMap) setLocked(key string, v Any) {
	if _, exists := m.vals[key]; !exists {
		m.order = append(m.order, key)
	}
	m.vals[key] = v
}

// Remove deletes key, reporting whether it was present.
func (m *AttributeMap) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(key)
}

func (m *AttributeMap) removeLocked(key string) bool {
	if _, ok := m.vals[key]; !ok {
		return false
	}
	delete(m.vals, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Compute calls f with the current value at key (the zero Any if
// absent) under the map's lock; f's return value replaces the stored
// value, or clears the key entirely if ok is false. f must not call
// back into this AttributeMap — the lock is held for the duration.
func (m *AttributeMap) Compute(key string, f func(cur Any, present bool) (next Any, ok bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, present := m.vals[key]
	next, ok := f(cur, present)
	if !ok {
		m.removeLocked(key)
		return
	}
	m.setLocked(key, next)
}

// Emplace sets key to v only if it is currently absent, returning the
// value now stored (either v, or whatever was already there) and
// whether this call is the one that inserted it.
func (m *AttributeMap) Emplace(key string, v Any) (Any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.vals[key]; ok {
		return cur, false
	}
	m.setLocked(key, v)
	return v, true
}

// ReplaceIf stores next at key iff the current value is reference-equal
// to old, reporting whether the swap happened. A missing key only
// matches when old is the zero Any.
func (m *AttributeMap) ReplaceIf(key string, old, next Any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.vals[key] // zero value if absent, which is what we want
	if !cur.Equal(old) {
		return false
	}
	m.setLocked(key, next)
	return true
}

// RemoveIf deletes key iff its current value is reference-equal to
// old, reporting whether the removal happened.
func (m *AttributeMap) RemoveIf(key string, old Any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.vals[key]
	if !ok || !cur.Equal(old) {
		return false
	}
	return m.removeLocked(key)
}

// Keys returns the attribute keys in insertion order.
func (m *AttributeMap) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len reports the number of attributes currently stored.
func (m *AttributeMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
