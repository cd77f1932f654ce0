package util

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestBidirectionalCopy(t *testing.T) {
	// Set up a TCP server that echoes data.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn) // echo
	}()

	// Connect as client.
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	input := bytes.NewBufferString("hello world\n")
	output := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// BidirectionalCopy: input → conn → echo → output
	// When input is exhausted the write side half-closes; the echo
	// server then sees EOF and closes its side, ending the copy.
	err = BidirectionalCopy(ctx, conn, input, output)
	if err != nil {
		t.Fatalf("BidirectionalCopy: %v", err)
	}

	if got := output.String(); got != "hello world\n" {
		t.Errorf("output = %q, want %q", got, "hello world\n")
	}
}

func TestBridgeConns(t *testing.T) {
	// a1↔a2 and b1↔b2 are two in-memory pipes; BridgeConns splices
	// a2 and b2 together, so bytes written to a1 come out of b1.
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()

	done := make(chan struct{})
	var aToB, bToA int64
	go func() {
		defer close(done)
		aToB, bToA = BridgeConns(context.Background(), a2, b2)
	}()

	msg := []byte("through the bridge")
	go func() {
		a1.Write(msg)
		a1.Close()
	}()

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(b1, got); err != nil {
		t.Fatalf("reading bridged bytes: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("bridged bytes = %q, want %q", got, msg)
	}
	b1.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BridgeConns did not return after both sides closed")
	}
	if aToB != int64(len(msg)) {
		t.Errorf("aToB = %d, want %d", aToB, len(msg))
	}
	if bToA != 0 {
		t.Errorf("bToA = %d, want 0", bToA)
	}
}

func TestBridgeConnsBidirectional(t *testing.T) {
	aServer, aClient := net.Pipe()
	bServer, bClient := net.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go BridgeConns(ctx, aServer, bServer)

	// a → b
	msgAB := []byte("from-A")
	go aClient.Write(msgAB) //nolint:errcheck

	buf := make([]byte, len(msgAB))
	if _, err := io.ReadFull(bClient, buf); err != nil {
		t.Fatalf("A to B read: %v", err)
	}
	if string(buf) != string(msgAB) {
		t.Errorf("A to B: got %q, want %q", buf, msgAB)
	}

	// b → a
	msgBA := []byte("from-B")
	go bClient.Write(msgBA) //nolint:errcheck

	buf = make([]byte, len(msgBA))
	if _, err := io.ReadFull(aClient, buf); err != nil {
		t.Fatalf("B to A read: %v", err)
	}
	if string(buf) != string(msgBA) {
		t.Errorf("B to A: got %q, want %q", buf, msgBA)
	}

	aClient.Close()
	bClient.Close()
}

func TestBridgeConnsContextCancel(t *testing.T) {
	aServer, aClient := net.Pipe()
	bServer, bClient := net.Pipe()
	defer aClient.Close()
	defer bClient.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		BridgeConns(ctx, aServer, bServer)
		close(done)
	}()

	// Cancel the context; the bridge should tear down promptly.
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BridgeConns did not return after context cancel")
	}
}

func TestIsHarmless(t *testing.T) {
	if !isHarmless(nil) {
		t.Error("nil should be harmless")
	}
	if !isHarmless(io.EOF) {
		t.Error("io.EOF should be harmless")
	}
	if !isHarmless(net.ErrClosed) {
		t.Error("net.ErrClosed should be harmless")
	}
	if isHarmless(io.ErrUnexpectedEOF) {
		t.Error("ErrUnexpectedEOF should NOT be harmless")
	}
}
