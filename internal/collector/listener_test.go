// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

type handledMessage struct {
	transport string
	peer      string
	raw       string
}

type recordingHandler struct {
	msgs chan handledMessage
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{msgs: make(chan handledMessage, 16)}
}

func (h *recordingHandler) Handle(_ context.Context, transport, peer string, raw []byte) Result {
	h.msgs <- handledMessage{transport: transport, peer: peer, raw: string(raw)}
	return Result{Accepted: true}
}

func (h *recordingHandler) next(t *testing.T) handledMessage {
	t.Helper()
	select {
	case m := <-h.msgs:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return handledMessage{}
	}
}

type servable interface {
	Serve(ctx context.Context) error
	Ready() <-chan struct{}
}

func serve(t *testing.T, svc servable) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-svc.Ready():
	case err := <-errCh:
		stop()
		t.Fatalf("Serve returned before ready: %v", err)
	case <-time.After(5 * time.Second):
		stop()
		t.Fatal("listener not ready")
	}

	return func() error {
		stop()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			return errors.New("Serve did not return")
		}
	}
}

func TestUDPListener(t *testing.T) {
	h := newRecordingHandler()
	l := NewUDPListener(UDPOptions{Addr: "127.0.0.1:0", Workers: 2, QueueSize: 4}, h)
	if l.String() != "udp-collector" {
		t.Errorf("String() = %q", l.String())
	}
	stop := serve(t, l)

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"instance":"a","data":"b"}`)); err != nil {
		t.Fatal(err)
	}

	m := h.next(t)
	if m.transport != "udp" || m.raw != `{"instance":"a","data":"b"}` {
		t.Errorf("handled %+v", m)
	}
	if m.peer != conn.LocalAddr().String() {
		t.Errorf("peer = %q, want %q", m.peer, conn.LocalAddr().String())
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
	if l.Stats().Processed != 1 {
		t.Errorf("processed = %d, want 1", l.Stats().Processed)
	}
}

func TestUDPListenerDropsOversized(t *testing.T) {
	h := newRecordingHandler()
	l := NewUDPListener(UDPOptions{Addr: "127.0.0.1:0", MaxMessageBytes: 8}, h)
	stop := serve(t, l)
	defer stop()

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_, _ = conn.Write([]byte("this datagram is too long"))
	_, _ = conn.Write([]byte("short"))

	if m := h.next(t); m.raw != "short" {
		t.Errorf("handled %q, want only the short datagram", m.raw)
	}
}

func TestTCPListener(t *testing.T) {
	h := newRecordingHandler()
	l := NewTCPListener(TCPOptions{Addr: "127.0.0.1:0"}, h)
	if l.String() != "tcp-collector" {
		t.Errorf("String() = %q", l.String())
	}
	stop := serve(t, l)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("{\"n\":1}\n\n  {\"n\":2}\r\n")); err != nil {
		t.Fatal(err)
	}

	first, second := h.next(t), h.next(t)
	if first.raw != `{"n":1}` || second.raw != `{"n":2}` {
		t.Errorf("handled %q then %q", first.raw, second.raw)
	}
	if first.transport != "tcp" || first.peer != conn.LocalAddr().String() {
		t.Errorf("handled %+v", first)
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
}

func TestTCPListenerClosesOnOversizedLine(t *testing.T) {
	h := newRecordingHandler()
	l := NewTCPListener(TCPOptions{Addr: "127.0.0.1:0", MaxMessageBytes: 16}, h)
	stop := serve(t, l)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_, _ = conn.Write([]byte(strings.Repeat("x", 64) + "\n"))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := bufio.NewReader(conn).ReadByte(); err == nil {
		t.Error("expected the server to close the connection")
	}
	select {
	case m := <-h.msgs:
		t.Errorf("oversized line was handled: %q", m.raw)
	default:
	}
}

func TestTCPListenerIdleTimeout(t *testing.T) {
	h := newRecordingHandler()
	l := NewTCPListener(TCPOptions{Addr: "127.0.0.1:0", IdleTimeout: 50 * time.Millisecond}, h)
	stop := serve(t, l)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := bufio.NewReader(conn).ReadByte(); err == nil {
		t.Error("expected idle connection to be closed")
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Error("client timed out before the server closed the idle connection")
		}
	}
}

func TestTCPListenerConnectionLimit(t *testing.T) {
	h := newRecordingHandler()
	l := NewTCPListener(TCPOptions{Addr: "127.0.0.1:0", MaxConnections: 1}, h)
	stop := serve(t, l)
	defer stop()

	first, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Write([]byte("{\"n\":1}\n")); err != nil {
		t.Fatal(err)
	}
	if m := h.next(t); m.raw != `{"n":1}` {
		t.Fatalf("handled %q", m.raw)
	}

	// The only slot is taken, so the next connection is closed unread.
	second, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	_, _ = second.Write([]byte("{\"n\":2}\n"))
	_ = second.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := bufio.NewReader(second).ReadByte(); err == nil {
		t.Error("expected the connection over the limit to be closed")
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Error("connection over the limit was kept open")
		}
	}
	select {
	case m := <-h.msgs:
		t.Errorf("message over the limit was handled: %q", m.raw)
	case <-time.After(50 * time.Millisecond):
	}

	// Closing the first connection frees the slot.
	_ = first.Close()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		_, _ = conn.Write([]byte("{\"n\":3}\n"))
		select {
		case m := <-h.msgs:
			_ = conn.Close()
			if m.raw != `{"n":3}` {
				t.Fatalf("handled %q", m.raw)
			}
			return
		case <-time.After(100 * time.Millisecond):
		}
		_ = conn.Close()
		if time.Now().After(deadline) {
			t.Fatal("slot never released after the first connection closed")
		}
	}
}
