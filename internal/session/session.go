package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/livescribe/internal/channel"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/foxseedlab/livescribe/internal/transcoder"
)

type State int32

const (
	StateActive State = iota
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	endReasonDone              = "done"
	endReasonClosed            = "closed"
	endReasonPeerClosed        = "peer_closed"
	endReasonTranscoderFailed  = "transcoder_failed"
	endReasonRecognizerFailed  = "recognizer_failed"
	endReasonShutdown          = "shutdown"
	endReasonPanic             = "panic"
	defaultDrainTimeout        = 5 * time.Second
	defaultOutboundQueueLength = 64
)

type Options struct {
	SampleRate    int
	DrainTimeout  time.Duration
	OutboundQueue int
	PingPeriod    time.Duration
}

// Session bridges one connection to one decoder process and one recognizer.
type Session struct {
	id       string
	conn     channel.Conn
	launcher transcoder.Launcher
	factory  recognizer.Factory
	metrics  metrics.Recorder
	opts     Options

	state atomic.Int32

	dispatcher *dispatcher
	adapter    *recognizer.Adapter
	process    transcoder.Process

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	pumpErr    error
	resets     chan chan error

	readerStop chan struct{}

	terminal  []byte
	endReason string
}

func New(id string, conn channel.Conn, launcher transcoder.Launcher, factory recognizer.Factory, rec metrics.Recorder, opts Options) *Session {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.OutboundQueue <= 0 {
		opts.OutboundQueue = defaultOutboundQueueLength
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Session{
		id:         id,
		conn:       conn,
		launcher:   launcher,
		factory:    factory,
		metrics:    rec,
		opts:       opts,
		resets:     make(chan chan error),
		readerStop: make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

type inbound struct {
	msg channel.Message
	err error
}

// Run drives the session until it reaches Closed. It always tears down the
// decoder, the recognizer and the connection before returning.
func (s *Session) Run(ctx context.Context) {
	startedAt := time.Now()
	s.metrics.SessionStarted()
	slog.Info("session started", "session_id", s.id, "remote_addr", s.conn.RemoteAddr())

	s.terminal = encodeStatus(statusClosed)
	s.endReason = endReasonClosed
	s.dispatcher = newDispatcher(s.id, s.conn, s.opts.OutboundQueue, s.opts.PingPeriod)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("session panicked", "session_id", s.id, "panic", r)
			s.terminal = encodeStatus(statusClosed)
			s.endReason = endReasonPanic
		}
		s.teardown()
		duration := time.Since(startedAt)
		s.metrics.SessionEnded(s.endReason, duration)
		slog.Info("session ended", "session_id", s.id, "reason", s.endReason, "duration", duration)
	}()

	adapter, err := recognizer.NewAdapter(s.factory, s.opts.SampleRate)
	if err != nil {
		slog.Error("failed to create recognizer", "session_id", s.id, "error", err)
		s.metrics.RecognizerFailed()
		s.fail(endReasonRecognizerFailed, errorRecognizerFailed)
		return
	}
	s.adapter = adapter

	process, err := s.launcher.Launch(ctx, s.id)
	if err != nil {
		slog.Error("failed to launch transcoder", "session_id", s.id, "error", err)
		s.metrics.TranscoderFailed()
		s.fail(endReasonTranscoderFailed, errorTranscoderFailed)
		return
	}
	s.process = process

	pumpCtx, cancel := context.WithCancel(ctx)
	s.pumpCancel = cancel
	s.pumpDone = make(chan struct{})
	go s.pump(pumpCtx)

	messages := make(chan inbound)
	go s.read(messages)

	s.loop(ctx, messages)
}

func (s *Session) loop(ctx context.Context, messages <-chan inbound) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("session cancelled", "session_id", s.id)
			s.endReason = endReasonShutdown
			return
		case <-s.pumpDone:
			if ctx.Err() != nil {
				s.endReason = endReasonShutdown
				return
			}
			s.transcoderFailed(s.pumpErr)
			return
		case in := <-messages:
			if in.err != nil {
				slog.Info("peer closed connection", "session_id", s.id, "error", in.err)
				s.endReason = endReasonPeerClosed
				return
			}
			if in.msg.Type == channel.Binary {
				if err := s.handleAudio(in.msg.Data); err != nil {
					s.transcoderFailed(err)
					return
				}
				continue
			}
			if s.handleCommand(ctx, in.msg.Data) {
				return
			}
		}
	}
}

func (s *Session) handleAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	s.metrics.AudioReceived(len(chunk))
	return s.process.Write(chunk)
}

// handleCommand reports whether the session is finished.
func (s *Session) handleCommand(ctx context.Context, data []byte) bool {
	cmd := parseCommand(data)
	switch cmd {
	case commandReset:
		if err := s.requestReset(ctx); err != nil {
			slog.Error("failed to reset recognizer", "session_id", s.id, "error", err)
			s.metrics.RecognizerFailed()
			_ = s.dispatcher.Dispatch(ctx, encodeError(errorRecognizerFailed))
			return false
		}
		return false
	case commandEnd:
		if !s.drain(ctx) {
			s.endReason = endReasonShutdown
			return true
		}
		s.terminal = encodeStatus(statusDone)
		s.endReason = endReasonDone
		return true
	case commandClose:
		if !s.drain(ctx) {
			s.endReason = endReasonShutdown
			return true
		}
		s.terminal = encodeStatus(statusClosed)
		s.endReason = endReasonClosed
		return true
	default:
		slog.Debug("ignoring unknown command", "session_id", s.id, "command", string(data))
		return false
	}
}

// requestReset hands the reset to the pump so it lands between the frames
// decoded before it and the audio that follows. It returns once the pump has
// switched recognizers; a pump that already stopped is reported by the loop.
func (s *Session) requestReset(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.resets <- reply:
	case <-s.pumpDone:
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return nil
	}
}

// drain lets the decoder flush what it holds and forwards every remaining
// result before the terminal message is queued. It reports false when ctx
// ended first.
func (s *Session) drain(ctx context.Context) bool {
	s.state.Store(int32(StateDraining))
	if err := s.process.CloseInput(); err != nil {
		slog.Warn("failed to close transcoder input", "session_id", s.id, "error", err)
	}

	timer := time.NewTimer(s.opts.DrainTimeout)
	defer timer.Stop()
	select {
	case <-s.pumpDone:
	case <-timer.C:
		slog.Warn("transcoder did not drain in time", "session_id", s.id, "timeout", s.opts.DrainTimeout)
		return true
	case <-ctx.Done():
		return false
	}
	if s.pumpErr != nil {
		slog.Warn("transcoder failed while draining", "session_id", s.id, "error", s.pumpErr)
	}

	res, ok, err := s.adapter.Flush()
	if err != nil {
		slog.Error("failed to flush recognizer", "session_id", s.id, "error", err)
		s.metrics.RecognizerFailed()
		return true
	}
	if ok {
		s.emit(ctx, res)
	}
	return ctx.Err() == nil
}

// pump moves decoded frames through the recognizer to the dispatcher.
func (s *Session) pump(ctx context.Context) {
	defer close(s.pumpDone)
	frames := s.process.Frames()
	for {
		// A pending reset goes first so no queued frame reaches the old
		// recognizer after the client asked for a new utterance.
		select {
		case reply := <-s.resets:
			if !s.resetUtterance(frames, reply) {
				s.pumpErr = s.process.Err()
				return
			}
			continue
		default:
		}
		select {
		case <-ctx.Done():
			return
		case reply := <-s.resets:
			if !s.resetUtterance(frames, reply) {
				s.pumpErr = s.process.Err()
				return
			}
		case frame, ok := <-frames:
			if !ok {
				s.pumpErr = s.process.Err()
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.metrics.FrameDecoded(len(frame))
			res, ok, err := s.adapter.Accept(frame)
			if err != nil {
				slog.Error("recognizer failed; abandoning utterance", "session_id", s.id, "error", err)
				s.metrics.RecognizerFailed()
				if s.dispatcher.Dispatch(ctx, encodeError(errorRecognizerFailed)) != nil {
					return
				}
				continue
			}
			if !ok {
				continue
			}
			if !s.emit(ctx, res) {
				return
			}
		}
	}
}

// resetUtterance drops the frames already decoded from pre-reset audio and
// swaps the recognizer. It reports false when the decoder output ended while
// dropping.
func (s *Session) resetUtterance(frames <-chan []byte, reply chan<- error) bool {
	open := true
	dropped := 0
discard:
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				open = false
				break discard
			}
			dropped++
		default:
			break discard
		}
	}
	err := s.adapter.Reset()
	if err == nil {
		slog.Debug("recognizer reset", "session_id", s.id, "dropped_frames", dropped)
	}
	reply <- err
	return open
}

func (s *Session) emit(ctx context.Context, res recognizer.Result) bool {
	if err := s.dispatcher.Dispatch(ctx, encodeResult(res)); err != nil {
		return false
	}
	s.metrics.ResultEmitted(res.Final)
	return true
}

func (s *Session) read(out chan<- inbound) {
	for {
		msg, err := s.conn.Receive()
		select {
		case out <- inbound{msg: msg, err: err}:
		case <-s.readerStop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) transcoderFailed(err error) {
	if err == nil {
		err = fmt.Errorf("%w: decoder output ended unexpectedly", transcoder.ErrIO)
	}
	slog.Error("transcoder failed", "session_id", s.id, "error", err, "start_error", errors.Is(err, transcoder.ErrStart))
	s.metrics.TranscoderFailed()
	s.fail(endReasonTranscoderFailed, errorTranscoderFailed)
}

func (s *Session) fail(reason, message string) {
	s.endReason = reason
	s.terminal = encodeError(message)
}

// teardown is the only place that releases session resources.
func (s *Session) teardown() {
	s.state.Store(int32(StateClosed))
	if s.pumpCancel != nil {
		s.pumpCancel()
	}
	close(s.readerStop)

	if err := s.dispatcher.Terminate(s.terminal); err != nil {
		slog.Warn("terminal message not queued", "session_id", s.id, "error", err)
	}
	if s.process != nil {
		if err := s.process.Stop(); err != nil {
			slog.Warn("failed to stop transcoder", "session_id", s.id, "error", err)
		}
	}
	if s.pumpDone != nil {
		<-s.pumpDone
	}
	if s.adapter != nil {
		if err := s.adapter.Close(); err != nil {
			slog.Warn("failed to close recognizer", "session_id", s.id, "error", err)
		}
	}
	s.dispatcher.Close()
	if err := s.conn.Close(); err != nil {
		slog.Debug("failed to close connection", "session_id", s.id, "error", err)
	}
}
