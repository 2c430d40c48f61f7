package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/livescribe/internal/channel"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

const defaultPingPeriod = 54 * time.Second

// dispatcher serializes every outbound write of a session through one FIFO
// queue and one writer goroutine.
type dispatcher struct {
	sessionID  string
	conn       channel.Conn
	pingPeriod time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

func newDispatcher(sessionID string, conn channel.Conn, size int, pingPeriod time.Duration) *dispatcher {
	if size <= 0 {
		size = 1
	}
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	d := &dispatcher{
		sessionID:  sessionID,
		conn:       conn,
		pingPeriod: pingPeriod,
		queue:      make(chan []byte, size),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch enqueues msg, waiting for room when the queue is full. A producer
// whose ctx has ended never enqueues.
func (d *dispatcher) Dispatch(ctx context.Context, msg []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate enqueues the last message of the session and closes the queue.
// Only the first call has any effect.
func (d *dispatcher) Terminate(msg []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.closed = true
	d.queue <- msg
	close(d.queue)
	return nil
}

// Close closes the queue if Terminate was never called and waits until the
// writer has drained it.
func (d *dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.pingPeriod)
	defer ticker.Stop()

	broken := false
	for {
		select {
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			if broken {
				continue
			}
			if err := d.conn.WriteText(msg); err != nil {
				slog.Info("outbound write failed; discarding remaining messages", "session_id", d.sessionID, "error", err)
				broken = true
			}
		case <-ticker.C:
			if broken {
				continue
			}
			if err := d.conn.Ping(); err != nil {
				slog.Info("ping failed; discarding remaining messages", "session_id", d.sessionID, "error", err)
				broken = true
			}
		}
	}
}
