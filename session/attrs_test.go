package session

import (
	"sync"
	"testing"
)

func TestAnyReferenceEquality(t *testing.T) {
	a := NewAny("peer", "same value")
	b := NewAny("peer", "same value")

	if a.Equal(b) {
		t.Fatal("distinct allocations must not compare equal")
	}
	if !a.Equal(a) {
		t.Fatal("an Any must equal itself")
	}

	c := a // copies share storage
	if !a.Equal(c) {
		t.Fatal("copies of the same Any must compare equal")
	}
	if a.Value() != "same value" || a.Tag() != "peer" {
		t.Fatalf("Value/Tag = %v/%q", a.Value(), a.Tag())
	}
}

func TestAnyZero(t *testing.T) {
	var zero Any
	if !zero.IsZero() {
		t.Fatal("zero Any should report IsZero")
	}
	if zero.Value() != nil {
		t.Fatal("zero Any should have a nil Value")
	}
	wrapped := NewAny("nil-payload", nil)
	if wrapped.IsZero() {
		t.Fatal("an Any wrapping nil is not the zero Any")
	}
}

func TestAttributeMapGetSetRemove(t *testing.T) {
	m := NewAttributeMap()

	if _, ok := m.Get("missing"); ok {
		t.Fatal("Get on an empty map reported a value")
	}

	v := NewAny("str", "hello")
	m.Set("greeting", v)
	got, ok := m.Get("greeting")
	if !ok || !got.Equal(v) {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	if !m.Remove("greeting") {
		t.Fatal("Remove reported the key missing")
	}
	if m.Remove("greeting") {
		t.Fatal("second Remove reported the key present")
	}
}

func TestAttributeMapKeysKeepInsertionOrder(t *testing.T) {
	m := NewAttributeMap()
	m.Set("c", NewAny("", 1))
	m.Set("a", NewAny("", 2))
	m.Set("b", NewAny("", 3))
	m.Set("a", NewAny("", 4)) // overwrite must not reorder

	keys := m.Keys()
	want := []string{"c", "a", "b"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestAttributeMapCompute(t *testing.T) {
	m := NewAttributeMap()

	// Computing on a missing key sees the zero Any.
	m.Compute("counter", func(cur Any, present bool) (Any, bool) {
		if present || !cur.IsZero() {
			t.Errorf("compute on missing key: present=%v cur=%v", present, cur)
		}
		return NewAny("int", 1), true
	})

	m.Compute("counter", func(cur Any, present bool) (Any, bool) {
		if !present {
			t.Error("compute should see the stored value")
		}
		return NewAny("int", cur.Value().(int)+1), true
	})

	got, _ := m.Get("counter")
	if got.Value() != 2 {
		t.Fatalf("counter = %v, want 2", got.Value())
	}

	// Returning ok=false clears the key.
	m.Compute("counter", func(Any, bool) (Any, bool) { return Any{}, false })
	if _, ok := m.Get("counter"); ok {
		t.Fatal("compute with ok=false should remove the key")
	}
}

func TestAttributeMapEmplace(t *testing.T) {
	m := NewAttributeMap()
	first := NewAny("", "first")
	second := NewAny("", "second")

	got, inserted := m.Emplace("k", first)
	if !inserted || !got.Equal(first) {
		t.Fatalf("first Emplace = %v, %v", got, inserted)
	}
	got, inserted = m.Emplace("k", second)
	if inserted || !got.Equal(first) {
		t.Fatalf("second Emplace = %v, %v; want existing value, false", got, inserted)
	}
}

func TestAttributeMapReplaceIfAndRemoveIf(t *testing.T) {
	m := NewAttributeMap()
	old := NewAny("", 1)
	next := NewAny("", 2)

	// ReplaceIf against a missing key only matches the zero Any.
	if m.ReplaceIf("k", old, next) {
		t.Fatal("ReplaceIf matched a missing key against a non-zero old")
	}
	if !m.ReplaceIf("k", Any{}, old) {
		t.Fatal("ReplaceIf with zero old should insert into a missing key")
	}

	if !m.ReplaceIf("k", old, next) {
		t.Fatal("ReplaceIf with the matching old should swap")
	}
	if m.RemoveIf("k", old) {
		t.Fatal("RemoveIf with a stale old should fail")
	}
	if !m.RemoveIf("k", next) {
		t.Fatal("RemoveIf with the current value should remove")
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}

func TestAttributeMapConcurrentAccess(t *testing.T) {
	m := NewAttributeMap()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Compute("shared", func(cur Any, present bool) (Any, bool) {
					n := 0
					if present {
						n = cur.Value().(int)
					}
					return NewAny("int", n+1), true
				})
			}
		}(i)
	}
	wg.Wait()

	got, _ := m.Get("shared")
	if got.Value() != 800 {
		t.Fatalf("shared counter = %v, want 800", got.Value())
	}
}
