// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
)

const (
	udpReadDeadline      = 100 * time.Millisecond
	udpDefaultReadBuffer = 2 * 1024 * 1024
	udpMaxDatagram       = 65536
	poolStopTimeout      = 5 * time.Second
)

// Handler processes one raw envelope.
type Handler interface {
	Handle(ctx context.Context, transport, peer string, raw []byte) Result
}

type datagram struct {
	peer string
	data []byte
}

// UDPListener receives one envelope per datagram.
type UDPListener struct {
	addr       string
	readBuffer int
	maxMessage int
	workers    int
	queueSize  int
	handler    Handler

	mu    sync.Mutex
	conn  *net.UDPConn
	ready chan struct{}
	pool  *Pool[datagram]
}

// UDPOptions sizes a UDPListener. Zero values take defaults.
type UDPOptions struct {
	Addr            string
	ReadBufferBytes int
	MaxMessageBytes int
	Workers         int
	QueueSize       int
}

// NewUDPListener creates a listener that binds when served.
func NewUDPListener(opts UDPOptions, handler Handler) *UDPListener {
	if opts.ReadBufferBytes <= 0 {
		opts.ReadBufferBytes = udpDefaultReadBuffer
	}
	if opts.MaxMessageBytes <= 0 || opts.MaxMessageBytes > udpMaxDatagram {
		opts.MaxMessageBytes = udpMaxDatagram
	}
	return &UDPListener{
		addr:       opts.Addr,
		readBuffer: opts.ReadBufferBytes,
		maxMessage: opts.MaxMessageBytes,
		workers:    opts.Workers,
		queueSize:  opts.QueueSize,
		handler:    handler,
		ready:      make(chan struct{}),
	}
}

// Addr returns the bound address once Ready is closed, or nil.
func (u *UDPListener) Addr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Ready is closed after the first successful bind.
func (u *UDPListener) Ready() <-chan struct{} {
	return u.ready
}

// Stats returns the worker pool counters of the current run.
func (u *UDPListener) Stats() PoolStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pool == nil {
		return PoolStats{}
	}
	return u.pool.Stats()
}

// Serve implements suture.Service.
func (u *UDPListener) Serve(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", u.addr)
	if err != nil {
		return fmt.Errorf("resolve udp address %q: %w", u.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", u.addr, err)
	}
	defer conn.Close()

	if err := conn.SetReadBuffer(u.readBuffer); err != nil {
		logging.Warn().Err(err).Int("bytes", u.readBuffer).Msg("could not set udp receive buffer")
	}

	pool := NewPool(u.workers, u.queueSize, func(ctx context.Context, d datagram) error {
		res := u.handler.Handle(ctx, "udp", d.peer, d.data)
		if !res.Accepted {
			return errors.New(string(res.Reason))
		}
		return nil
	})
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := pool.Stop(poolStopTimeout); err != nil {
			logging.Warn().Err(err).Msg("udp worker pool did not drain")
		}
	}()

	u.mu.Lock()
	u.conn = conn
	u.pool = pool
	select {
	case <-u.ready:
	default:
		close(u.ready)
	}
	u.mu.Unlock()

	logging.Info().Str("addr", conn.LocalAddr().String()).Msg("udp collector listening")
	err = u.readLoop(ctx, conn, pool)

	u.mu.Lock()
	u.conn = nil
	u.mu.Unlock()
	return err
}

func (u *UDPListener) readLoop(ctx context.Context, conn *net.UDPConn, pool *Pool[datagram]) error {
	buf := make([]byte, udpMaxDatagram)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(udpReadDeadline))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("udp read: %w", err)
		}
		if n > u.maxMessage {
			metrics.RecordMessage("udp", "dropped", 0)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if err := pool.Submit(datagram{peer: from.String(), data: data}); err != nil {
			metrics.RecordMessage("udp", "dropped", 0)
			logging.Debug().Err(err).Str("peer", from.String()).Msg("datagram dropped")
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (u *UDPListener) String() string {
	return "udp-collector"
}
