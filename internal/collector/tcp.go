// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
)

const (
	tcpDefaultMaxLine     = 1024 * 1024
	tcpDefaultIdleTimeout = 2 * time.Minute
	tcpDefaultMaxConns    = 256
)

// TCPOptions configures a TCPListener. TLS is enabled when both files are set.
type TCPOptions struct {
	Addr            string
	TLSCertFile     string
	TLSKeyFile      string
	MaxMessageBytes int
	IdleTimeout     time.Duration
	// MaxConnections bounds concurrently served connections. Connections
	// accepted beyond it are closed at once.
	MaxConnections int
}

// TCPListener reads newline-delimited envelopes from stream connections.
type TCPListener struct {
	opts    TCPOptions
	handler Handler

	mu    sync.Mutex
	ln    net.Listener
	ready chan struct{}
	conns sync.WaitGroup
	slots chan struct{}
}

// NewTCPListener creates a listener that binds when served.
func NewTCPListener(opts TCPOptions, handler Handler) *TCPListener {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = tcpDefaultMaxLine
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = tcpDefaultIdleTimeout
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = tcpDefaultMaxConns
	}
	return &TCPListener{
		opts:    opts,
		handler: handler,
		ready:   make(chan struct{}),
		slots:   make(chan struct{}, opts.MaxConnections),
	}
}

func (t *TCPListener) transport() string {
	if t.opts.TLSCertFile != "" && t.opts.TLSKeyFile != "" {
		return "tls"
	}
	return "tcp"
}

func (t *TCPListener) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", t.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", t.opts.Addr, err)
	}
	if t.transport() != "tls" {
		return ln, nil
	}
	cert, err := tls.LoadX509KeyPair(t.opts.TLSCertFile, t.opts.TLSKeyFile)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("load collector tls key pair: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// Addr returns the bound address once Ready is closed, or nil.
func (t *TCPListener) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Ready is closed after the first successful bind.
func (t *TCPListener) Ready() <-chan struct{} {
	return t.ready
}

// Serve implements suture.Service.
func (t *TCPListener) Serve(ctx context.Context) error {
	ln, err := t.listen()
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.ln = ln
	select {
	case <-t.ready:
	default:
		close(t.ready)
	}
	t.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		t.conns.Wait()
	}()

	go func() {
		<-connCtx.Done()
		_ = ln.Close()
	}()

	logging.Info().Str("addr", ln.Addr().String()).Str("transport", t.transport()).Msg("tcp collector listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			t.mu.Lock()
			t.ln = nil
			t.mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("tcp accept: %w", err)
		}
		select {
		case t.slots <- struct{}{}:
		default:
			metrics.RecordConnection(t.transport(), false)
			logging.Rejected(ctx).Str("peer", conn.RemoteAddr().String()).
				Int("limit", t.opts.MaxConnections).Msg("connection refused, limit reached")
			_ = conn.Close()
			continue
		}
		metrics.RecordConnection(t.transport(), true)
		t.conns.Add(1)
		go func() {
			defer func() {
				<-t.slots
				t.conns.Done()
			}()
			t.serveConn(connCtx, conn)
		}()
	}
}

func (t *TCPListener) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	transport := t.transport()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// The limit only holds when the initial buffer is not larger than it.
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, t.opts.MaxMessageBytes)), t.opts.MaxMessageBytes)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(t.opts.IdleTimeout))
		if !scanner.Scan() {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		data := make([]byte, len(line))
		copy(data, line)
		t.handler.Handle(ctx, transport, peer, data)
	}

	err := scanner.Err()
	var netErr net.Error
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, bufio.ErrTooLong):
		metrics.RecordMessage(transport, "malformed", 0)
		logging.Warn().Str("peer", peer).Int("limit", t.opts.MaxMessageBytes).Msg("message exceeds size limit, closing connection")
	case errors.As(err, &netErr) && netErr.Timeout():
		logging.Debug().Str("peer", peer).Msg("idle connection closed")
	default:
		logging.Debug().Err(err).Str("peer", peer).Msg("connection read failed")
	}
}

// String implements fmt.Stringer for suture logs.
func (t *TCPListener) String() string {
	return "tcp-collector"
}
