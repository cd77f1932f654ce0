// Package pbuf implements a zero-copy write path that ties each
// queued byte view to a user-chosen storage object whose lifetime
// must outlast the asynchronous write.
package pbuf

import "encoding/binary"

// Buffer is a (view, storage) pair: Bytes is the read-only byte view
// that gets written to the socket; Storage is whatever keeps those
// bytes alive for as long as the view is in use. For the zero-copy
// case (View) Storage is nil and the caller is responsible for keeping
// the original bytes alive until the matching write completion fires;
// for every other case Storage holds a fresh copy and the view points
// into it, so the buffer is self-sufficient once constructed.
//
// Go's GC makes "storage" mostly redundant with "view" — a slice keeps
// its backing array alive on its own — but the struct still carries
// Storage explicitly so a caller who passed a View can tell, from the
// buffer alone, that they — not pbuf — own the bytes.
type Buffer struct {
	Bytes   []byte
	Storage any
}

// Len returns the number of bytes this buffer views.
func (b Buffer) Len() int { return len(b.Bytes) }

// View marks a []byte as "read-only, owned elsewhere": Persist will
// not copy it. The caller must keep the underlying array alive and
// unmodified until the session's write callback (or Close) reports the
// buffer has left the write queue's marked batch.
type View []byte

// Persist builds a Buffer from x, selecting storage semantics by the
// kind of x. An optional cap n truncates the resulting view to at
// most n bytes.
//
// The rule that avoids a known dangling-view footgun: every branch
// below stores the bytes into a named variable first, and only then
// slices that variable to form Bytes. Never take
// a view of x and then move x into the struct afterwards — for a small
// backing array that's exactly backwards and the struct would end up
// aliasing memory that it, not the moved-from value, is supposed to
// own.
func Persist(x any, n ...int) Buffer {
	cap0 := -1
	if len(n) > 0 {
		cap0 = n[0]
	}

	switch v := x.(type) {
	case Buffer:
		return truncate(Buffer{Bytes: v.Bytes, Storage: v.Storage}, cap0)

	case View:
		// Read-only view owned elsewhere: no copy, no Storage.
		return truncate(Buffer{Bytes: []byte(v), Storage: nil}, cap0)

	case []byte:
		// An owning container: copy it into storage we hold, then view
		// the copy — never the original, which the caller may reuse.
		stored := append([]byte(nil), v...)
		return truncate(Buffer{Bytes: stored, Storage: stored}, cap0)

	case string:
		stored := []byte(v)
		return truncate(Buffer{Bytes: stored, Storage: stored}, cap0)

	case uint8, int8, uint16, int16, uint32, int32, uint64, int64, uint, int:
		return truncate(persistPOD(v), cap0)

	default:
		panic("pbuf: Persist: unsupported kind")
	}
}

// persistPOD copies the raw little-endian bytes of a fixed-width
// integer value into fresh storage — there is no struct-layout
// reflection here, just the integer kinds this codebase actually
// queues (length prefixes and the like).
func persistPOD(v any) Buffer {
	var stored []byte
	switch x := v.(type) {
	case uint8:
		stored = []byte{x}
	case int8:
		stored = []byte{byte(x)}
	case uint16:
		stored = make([]byte, 2)
		binary.LittleEndian.PutUint16(stored, x)
	case int16:
		stored = make([]byte, 2)
		binary.LittleEndian.PutUint16(stored, uint16(x))
	case uint32:
		stored = make([]byte, 4)
		binary.LittleEndian.PutUint32(stored, x)
	case int32:
		stored = make([]byte, 4)
		binary.LittleEndian.PutUint32(stored, uint32(x))
	case uint64:
		stored = make([]byte, 8)
		binary.LittleEndian.PutUint64(stored, x)
	case int64:
		stored = make([]byte, 8)
		binary.LittleEndian.PutUint64(stored, uint64(x))
	case uint:
		stored = make([]byte, 8)
		binary.LittleEndian.PutUint64(stored, uint64(x))
	case int:
		stored = make([]byte, 8)
		binary.LittleEndian.PutUint64(stored, uint64(x))
	}
	return Buffer{Bytes: stored, Storage: stored}
}

func truncate(b Buffer, n int) Buffer {
	if n >= 0 && n < len(b.Bytes) {
		b.Bytes = b.Bytes[:n]
	}
	return b
}
