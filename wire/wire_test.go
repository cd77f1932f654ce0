package wire

import (
	"errors"
	"strings"
	"testing"
)

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		name string
		want Protocol
	}{
		{"", None},
		{"any", Any},
		{"fixed", Fixed},
		{"delim", Delim},
		{"delim0", DelimZero},
		{"delimcr", DelimCR},
		{"delimlf", DelimLF},
		{"delimcrlf", DelimCRLF},
		{"prefix8", Prefix8},
		{"prefix16", Prefix16},
		{"prefix32", Prefix32},
		{"prefix64", Prefix64},
		{"prefixvar", PrefixVar},
	}
	for _, tt := range tests {
		got, err := ParseProtocol(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseProtocol(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}

	if _, err := ParseProtocol("prefix128"); err == nil {
		t.Error("ParseProtocol should reject unknown names")
	}
}

func TestPrefixSize(t *testing.T) {
	tests := []struct {
		proto Protocol
		want  int
	}{
		{Prefix8, 1},
		{Prefix16, 2},
		{Prefix32, 4},
		{Prefix64, 8},
		{PrefixVar, 0},
		{Fixed, 0},
	}
	for _, tt := range tests {
		if got := tt.proto.PrefixSize(); got != tt.want {
			t.Errorf("%v.PrefixSize() = %d, want %d", tt.proto, got, tt.want)
		}
	}
}

func TestIsPrefixed(t *testing.T) {
	for _, p := range []Protocol{Prefix8, Prefix16, Prefix32, Prefix64} {
		if !p.IsPrefixed() {
			t.Errorf("%v.IsPrefixed() = false", p)
		}
	}
	for _, p := range []Protocol{None, Any, Fixed, Delim, DelimCRLF, PrefixVar} {
		if p.IsPrefixed() {
			t.Errorf("%v.IsPrefixed() = true", p)
		}
	}
}

func TestDelimBytes(t *testing.T) {
	tests := []struct {
		proto Protocol
		want  string
	}{
		{DelimZero, "\x00"},
		{DelimCR, "\r"},
		{DelimLF, "\n"},
		{DelimCRLF, "\r\n"},
	}
	for _, tt := range tests {
		if got := string(tt.proto.DelimBytes()); got != tt.want {
			t.Errorf("%v.DelimBytes() = %q, want %q", tt.proto, got, tt.want)
		}
	}
	if Delim.DelimBytes() != nil {
		t.Error("Delim carries its delimiter on the session, not the protocol")
	}
}

func TestOptionsBitSet(t *testing.T) {
	var o Options
	o = o.Set(UseLittleEndian).Set(IgnoreProtocolBytes)

	if !o.Has(UseLittleEndian) || !o.Has(IgnoreProtocolBytes) {
		t.Fatalf("options missing set bits: %b", o)
	}
	if o.Has(DoNotConsumeBuffer) {
		t.Fatalf("options carries a bit that was never set: %b", o)
	}

	o = o.Clear(UseLittleEndian)
	if o.Has(UseLittleEndian) {
		t.Fatalf("Clear left the bit set: %b", o)
	}
	if !o.Has(IgnoreProtocolBytes) {
		t.Fatalf("Clear removed an unrelated bit: %b", o)
	}
}

func TestFramerErrorMatchesSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&FramerError{Kind: MessageSize, Protocol: Prefix32, Size: 1 << 20, Limit: 1024}, ErrMessageSize},
		{&FramerError{Kind: ValueTooLarge, Protocol: PrefixVar, Size: 9, Limit: 9}, ErrValueTooLarge},
		{&FramerError{Kind: BadMessage, Protocol: Prefix8, Size: 0}, ErrBadMessage},
		{&FramerError{Kind: ProtocolNotSupported, Protocol: Protocol(42)}, ErrProtocolNotSupported},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
		}
	}

	if errors.Is(&FramerError{Kind: MessageSize}, ErrBadMessage) {
		t.Error("sentinel matching leaked across kinds")
	}
}

func TestFramerErrorMessages(t *testing.T) {
	e := &FramerError{Kind: MessageSize, Protocol: Prefix16, Size: 5000, Limit: 1024}
	msg := e.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}
	// The message should carry enough context to debug from a log line.
	for _, want := range []string{"prefix_16", "5000", "1024"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}
