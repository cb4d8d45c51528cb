// Package inject delivers message bytes to a connected TCP peer, either
// one write per message or coalesced into batches, and paces the
// pipeline with a fixed per-message delay.
package inject

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/fixinject/pkg/config"
	"github.com/luxfi/fixinject/pkg/message"
)

// ErrNotConnected is returned by Inject before Connect succeeds or
// after Close.
var ErrNotConnected = errors.New("socket not connected")

// retryBackoff is the pause after a zero-progress socket write.
const retryBackoff = time.Millisecond

// Injector owns one TCP connection to the target. All writes — single
// messages and batch flushes alike — are serialized by one lock so no
// two messages ever interleave on the wire.
type Injector struct {
	cfg    *config.Config
	logger log.Logger

	conn      net.Conn
	connected atomic.Bool
	closed    atomic.Bool

	// batching
	queue   chan message.Message
	scratch []byte

	writeMu sync.Mutex
}

// NewInjector builds an unconnected injector.
func NewInjector(cfg *config.Config, logger log.Logger) *Injector {
	i := &Injector{cfg: cfg, logger: logger}
	if cfg.Batching {
		i.queue = make(chan message.Message, cfg.BatchSize*2)
		i.scratch = make([]byte, 0, cfg.BatchSize*1024)
	}
	return i
}

// Connect dials the configured target, disables Nagle's algorithm and
// sizes the send buffer. Connection failure is fatal to the run; there
// is no retry.
func (i *Injector) Connect(ctx context.Context) error {
	addr := i.cfg.Addr()
	i.logger.Info("connecting", "addr", addr)

	d := net.Dialer{Timeout: i.cfg.SocketTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			i.logger.Warn("failed to disable Nagle", "error", err)
		}
		if err := tcp.SetWriteBuffer(i.cfg.BufferSize); err != nil {
			i.logger.Warn("failed to set send buffer", "error", err)
		}
	}

	i.conn = conn
	i.connected.Store(true)
	i.logger.Info("connected", "addr", addr)
	return nil
}

// Inject delivers one message. With batching enabled the message is
// queued and the queue drained once it reaches the batch size;
// otherwise the bytes go straight to the socket.
func (i *Injector) Inject(m message.Message) error {
	if !i.connected.Load() {
		return ErrNotConnected
	}
	if i.cfg.Batching {
		i.queue <- m
		if len(i.queue) >= i.cfg.BatchSize {
			return i.flushBatch()
		}
		return nil
	}
	return i.send(m.Bytes())
}

// FlushPending drains any partially filled batch. Call once ingestion
// finishes so end-of-run messages are never silently dropped.
func (i *Injector) FlushPending() error {
	if i.cfg.Batching && len(i.queue) > 0 {
		return i.flushBatch()
	}
	return nil
}

func (i *Injector) send(b []byte) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	return i.writeAll(b)
}

// writeAll flushes b fully, backing off briefly on zero-progress
// writes. Callers must hold writeMu.
func (i *Injector) writeAll(b []byte) error {
	for off := 0; off < len(b); {
		if i.cfg.SocketTimeout > 0 {
			if err := i.conn.SetWriteDeadline(time.Now().Add(i.cfg.SocketTimeout)); err != nil {
				return fmt.Errorf("set write deadline: %w", err)
			}
		}
		n, err := i.conn.Write(b[off:])
		if err != nil {
			return fmt.Errorf("socket write: %w", err)
		}
		if n == 0 {
			time.Sleep(retryBackoff)
			continue
		}
		off += n
	}
	return nil
}

// flushBatch drains up to one batch of queued messages into the scratch
// buffer, writing it out whenever the next message would not fit.
func (i *Injector) flushBatch() error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	buf := i.scratch[:0]
	for k := 0; k < i.cfg.BatchSize; k++ {
		var m message.Message
		select {
		case m = <-i.queue:
		default:
		}
		if m == nil {
			break
		}

		b := m.Bytes()
		if len(b) > cap(i.scratch) {
			// Oversized message: flush what we have and write it alone.
			if len(buf) > 0 {
				if err := i.writeAll(buf); err != nil {
					return err
				}
				buf = i.scratch[:0]
			}
			if err := i.writeAll(b); err != nil {
				return err
			}
			continue
		}
		if len(buf)+len(b) > cap(i.scratch) {
			if err := i.writeAll(buf); err != nil {
				return err
			}
			buf = i.scratch[:0]
		}
		buf = append(buf, b...)
	}

	if len(buf) > 0 {
		return i.writeAll(buf)
	}
	return nil
}

// Connected reports whether the socket is usable.
func (i *Injector) Connected() bool {
	return i.connected.Load() && i.conn != nil
}

// ConnectionInfo describes the local and remote endpoints.
func (i *Injector) ConnectionInfo() string {
	if i.conn == nil || !i.connected.Load() {
		return "not connected"
	}
	return fmt.Sprintf("%s -> %s", i.conn.LocalAddr(), i.conn.RemoteAddr())
}

// Close is idempotent. With batching enabled it attempts one last flush
// before closing the socket; close errors are logged, not returned.
func (i *Injector) Close() {
	if !i.closed.CompareAndSwap(false, true) {
		return
	}
	if i.cfg.Batching && i.queue != nil && len(i.queue) > 0 && i.connected.Load() {
		if err := i.flushBatch(); err != nil {
			i.logger.Error("failed to flush pending messages", "error", err)
		}
	}
	i.connected.Store(false)

	if i.conn != nil {
		if err := i.conn.Close(); err != nil {
			i.logger.Error("error closing socket", "error", err)
		} else {
			i.logger.Info("socket connection closed")
		}
	}
}
