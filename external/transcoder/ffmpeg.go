package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/livescribe/internal/transcoder"
	"golang.org/x/sync/errgroup"
)

const framesBuffer = 16

type FFmpegConfig struct {
	Path       string
	Args       []string
	BlockBytes int
	StopGrace  time.Duration
}

// DefaultFFmpegArgs reads opus-in-webm from stdin and writes mono s16le PCM at
// sampleRate to stdout.
func DefaultFFmpegArgs(sampleRate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "webm", "-codec:a", "opus", "-i", "pipe:0",
		"-ar", strconv.Itoa(sampleRate), "-ac", "1", "-f", "s16le", "-",
	}
}

type FFmpegLauncher struct {
	cfg FFmpegConfig
}

func NewFFmpegLauncher(cfg FFmpegConfig) transcoder.Launcher {
	return &FFmpegLauncher{cfg: cfg}
}

// Launch starts one decoder process. Cancelling ctx stops the process.
func (l *FFmpegLauncher) Launch(ctx context.Context, sessionID string) (transcoder.Process, error) {
	cmd := exec.Command(l.cfg.Path, l.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %w", transcoder.ErrStart, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", transcoder.ErrStart, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", transcoder.ErrStart, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", transcoder.ErrStart, l.cfg.Path, err)
	}
	slog.Info("transcoder started", "session_id", sessionID, "path", l.cfg.Path, "pid", cmd.Process.Pid)

	p := &ffmpegProcess{
		sessionID:  sessionID,
		cmd:        cmd,
		stdin:      stdin,
		blockBytes: l.cfg.BlockBytes,
		grace:      l.cfg.StopGrace,
		frames:     make(chan []byte, framesBuffer),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.run(stdout, stderr)
	context.AfterFunc(ctx, func() {
		_ = p.Stop()
	})
	return p, nil
}

type ffmpegProcess struct {
	sessionID  string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	blockBytes int
	grace      time.Duration

	frames chan []byte
	stopCh chan struct{}
	done   chan struct{}
	err    error

	inputClosed   atomic.Bool
	stopping      atomic.Bool
	closeInOnce   sync.Once
	closeInErr    error
	stopOnce      sync.Once
	stopErr       error
	framesWritten atomic.Int64
}

func (p *ffmpegProcess) Write(chunk []byte) error {
	if p.inputClosed.Load() {
		return fmt.Errorf("%w: decoder input already closed", transcoder.ErrIO)
	}
	if _, err := p.stdin.Write(chunk); err != nil {
		return fmt.Errorf("%w: write decoder input: %w", transcoder.ErrIO, err)
	}
	return nil
}

func (p *ffmpegProcess) CloseInput() error {
	p.closeInOnce.Do(func() {
		p.inputClosed.Store(true)
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.closeInErr = fmt.Errorf("close decoder input: %w", err)
		}
	})
	return p.closeInErr
}

func (p *ffmpegProcess) Frames() <-chan []byte {
	return p.frames
}

func (p *ffmpegProcess) Err() error {
	return p.err
}

func (p *ffmpegProcess) Stop() error {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		close(p.stopCh)
		_ = p.CloseInput()

		select {
		case <-p.done:
			return
		default:
		}
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Debug("transcoder interrupt failed", "session_id", p.sessionID, "error", err)
		}

		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-p.done:
			return
		case <-timer.C:
		}

		slog.Warn("transcoder did not exit within grace period; killing", "session_id", p.sessionID, "grace", p.grace)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.stopErr = fmt.Errorf("kill decoder: %w", err)
		}
	})
	<-p.done
	return p.stopErr
}

// run owns both output pipes and reaps the process once they are drained.
func (p *ffmpegProcess) run(stdout, stderr io.Reader) {
	var g errgroup.Group
	g.Go(func() error {
		return p.readFrames(stdout)
	})
	g.Go(func() error {
		p.logStderr(stderr)
		return nil
	})
	readErr := g.Wait()
	waitErr := p.cmd.Wait()

	p.err = p.exitError(readErr, waitErr)
	slog.Info("transcoder exited",
		"session_id", p.sessionID,
		"frames", p.framesWritten.Load(),
		"wait_error", waitErr,
		"stopped", p.stopping.Load(),
		"error", p.err)
	close(p.frames)
	close(p.done)
}

func (p *ffmpegProcess) readFrames(stdout io.Reader) error {
	for {
		buf := make([]byte, p.blockBytes)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 && !p.deliver(buf[:n]) {
			_, _ = io.Copy(io.Discard, stdout)
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read decoder output: %w", err)
		}
	}
}

func (p *ffmpegProcess) deliver(frame []byte) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}
	select {
	case p.frames <- frame:
		p.framesWritten.Add(1)
		return true
	case <-p.stopCh:
		return false
	}
}

func (p *ffmpegProcess) logStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		slog.Warn("transcoder stderr", "session_id", p.sessionID, "line", scanner.Text())
	}
	_, _ = io.Copy(io.Discard, stderr)
}

func (p *ffmpegProcess) exitError(readErr, waitErr error) error {
	if p.stopping.Load() {
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("%w: %w", transcoder.ErrIO, readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("%w: decoder exited: %w", transcoder.ErrIO, waitErr)
	}
	if !p.inputClosed.Load() {
		return fmt.Errorf("%w: decoder exited before input was closed", transcoder.ErrIO)
	}
	return nil
}
