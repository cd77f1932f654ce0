package buffer

import (
	"bytes"
	"testing"
)

func TestPrepareOutputGrowsPreservingSegments(t *testing.T) {
	b := New()
	out := b.PrepareOutput(4)
	copy(out, []byte("abcd"))
	if n := b.CommitToInternal(4); n != 4 {
		t.Fatalf("CommitToInternal = %d, want 4", n)
	}
	b.CommitWholeInternalToExternal()
	if b.External() != 4 {
		t.Fatalf("External() = %d, want 4", b.External())
	}

	out2 := b.PrepareOutput(8)
	copy(out2, []byte("ZYXWVUTS"))
	if !bytes.Equal(b.data[:4], []byte("abcd")) {
		t.Fatalf("growing output disturbed external segment: %q", b.data[:4])
	}
}

func TestCommitWholeInternalThenCommitToExternalIsNoOp(t *testing.T) {
	b := New()
	out := b.PrepareOutput(5)
	copy(out, []byte("hello"))
	b.CommitToInternal(5)
	b.CommitWholeInternalToExternal()
	before := append([]byte(nil), b.data[:b.External()]...)

	// After committing the whole internal segment there is nothing left
	// to move: I is 0, so the only valid call, CommitToExternal(0), is a
	// no-op.
	b.CommitToExternal(0)
	after := b.data[:b.External()]
	if !bytes.Equal(before, after) {
		t.Fatalf("commit sequence moved bytes: before=%q after=%q", before, after)
	}
}

func TestConsumeExternalComposesAdditively(t *testing.T) {
	b1 := New()
	copy(b1.PrepareOutput(10), []byte("0123456789"))
	b1.CommitToInternal(10)
	b1.CommitWholeInternalToExternal()
	b1.ConsumeExternal(3)
	b1.ConsumeExternal(2)

	b2 := New()
	copy(b2.PrepareOutput(10), []byte("0123456789"))
	b2.CommitToInternal(10)
	b2.CommitWholeInternalToExternal()
	b2.ConsumeExternal(5)

	if b1.External() != b2.External() {
		t.Fatalf("external mismatch: %d vs %d", b1.External(), b2.External())
	}
	if !bytes.Equal(b1.data[:b1.External()+b1.Internal()], b2.data[:b2.External()+b2.Internal()]) {
		t.Fatalf("composed consume produced different bytes")
	}
}

func TestConsumeExternalZeroIsNoOp(t *testing.T) {
	b := New()
	copy(b.PrepareOutput(3), []byte("xyz"))
	b.CommitToInternal(3)
	b.CommitWholeInternalToExternal()
	before := b.External()
	b.ConsumeExternal(0)
	if b.External() != before {
		t.Fatalf("ConsumeExternal(0) changed External(): %d -> %d", before, b.External())
	}
}

func TestConsumeExternalShiftsCurrentSlice(t *testing.T) {
	b := New()
	copy(b.PrepareOutput(10), []byte("0123456789"))
	b.CommitToInternal(10)
	b.CommitWholeInternalToExternal()
	b.MarkCurrentExternal()
	b.SetCurrentExternalEnd(6)

	b.ConsumeExternal(4)
	cur := b.CurrentExternal()
	if !bytes.Equal(cur, []byte("45")) {
		t.Fatalf("CurrentExternal() after consume = %q, want %q", cur, "45")
	}
}

func TestMoveToNewExternalSegmentForMultiFrameRead(t *testing.T) {
	b := New()
	copy(b.PrepareOutput(6), []byte("AAABBB"))
	b.CommitToInternal(6)
	b.CommitWholeInternalToExternal()

	b.MarkCurrentExternal()
	b.SetCurrentExternalEnd(3)
	first := append([]byte(nil), b.CurrentExternal()...)
	if !bytes.Equal(first, []byte("AAA")) {
		t.Fatalf("first frame = %q, want AAA", first)
	}

	b.MoveToNewExternalSegment()
	b.SetCurrentExternalEnd(3)
	second := b.CurrentExternal()
	if !bytes.Equal(second, []byte("BBB")) {
		t.Fatalf("second frame = %q, want BBB", second)
	}
}

func TestInvariantExternalPlusInternalNeverExceedsLen(t *testing.T) {
	b := New()
	copy(b.PrepareOutput(16), bytes.Repeat([]byte{'a'}, 16))
	b.CommitToInternal(16)
	if b.External()+b.Internal() > b.Len() {
		t.Fatalf("E+I=%d exceeds len=%d", b.External()+b.Internal(), b.Len())
	}
	b.CommitToExternal(10)
	if b.External()+b.Internal() > b.Len() {
		t.Fatalf("E+I=%d exceeds len=%d after partial commit", b.External()+b.Internal(), b.Len())
	}
}
