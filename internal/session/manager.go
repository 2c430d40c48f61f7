package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/foxseedlab/livescribe/internal/channel"
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/foxseedlab/livescribe/internal/transcoder"
	"github.com/google/uuid"
)

var (
	ErrTooManySessions = errors.New("too many sessions")
	ErrShuttingDown    = errors.New("session manager is shutting down")
)

type Manager struct {
	cfg      *config.Config
	launcher transcoder.Launcher
	factory  recognizer.Factory
	metrics  metrics.Recorder

	mu       sync.Mutex
	sessions map[string]*runningSession
	closed   bool
	wg       sync.WaitGroup
}

type runningSession struct {
	session *Session
	cancel  context.CancelFunc
}

func NewManager(cfg *config.Config, launcher transcoder.Launcher, factory recognizer.Factory, rec metrics.Recorder) *Manager {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Manager{
		cfg:      cfg,
		launcher: launcher,
		factory:  factory,
		metrics:  rec,
		sessions: make(map[string]*runningSession),
	}
}

// Serve runs one session on conn and returns once the session is closed. The
// connection is always closed on return.
func (m *Manager) Serve(ctx context.Context, conn channel.Conn) error {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := New(id, conn, m.launcher, m.factory, m.metrics, Options{
		SampleRate:    m.cfg.PCMSampleRate,
		DrainTimeout:  m.cfg.DrainTimeout,
		OutboundQueue: m.cfg.OutboundQueue,
	})

	if err := m.register(sess, cancel); err != nil {
		slog.Warn("rejecting connection", "session_id", id, "remote_addr", conn.RemoteAddr(), "error", err)
		if errors.Is(err, ErrTooManySessions) {
			_ = conn.WriteText(encodeError(errorTooManySessions))
		}
		_ = conn.Close()
		return err
	}
	defer m.unregister(id)

	sess.Run(ctx)
	return nil
}

func (m *Manager) register(sess *Session, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShuttingDown
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return ErrTooManySessions
	}
	m.sessions[sess.ID()] = &runningSession{session: sess, cancel: cancel}
	m.wg.Add(1)
	slog.Info("session registered", "session_id", sess.ID(), "active_sessions", len(m.sessions))
	return nil
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	remaining := len(m.sessions)
	m.mu.Unlock()
	m.wg.Done()
	slog.Info("session unregistered", "session_id", id, "active_sessions", remaining)
}

func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown refuses new sessions, cancels the running ones and waits until
// each has torn down its decoder.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for id, rs := range m.sessions {
		slog.Info("cancelling session for shutdown", "session_id", id)
		rs.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
