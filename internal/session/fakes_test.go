package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/channel"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/foxseedlab/livescribe/internal/transcoder"
)

type fakeConn struct {
	in        chan channel.Message
	closed    chan struct{}
	closeOnce sync.Once
	peerOnce  sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan channel.Message, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Receive() (channel.Message, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return channel.Message{}, channel.ErrClosed
		}
		return msg, nil
	case <-c.closed:
		return channel.Message{}, channel.ErrClosed
	}
}

func (c *fakeConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Ping() error        { return nil }
func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sendBinary(data []byte) {
	c.in <- channel.Message{Type: channel.Binary, Data: data}
}

func (c *fakeConn) sendText(text string) {
	c.in <- channel.Message{Type: channel.Text, Data: []byte(text)}
}

func (c *fakeConn) hangUp() {
	c.peerOnce.Do(func() { close(c.in) })
}

func (c *fakeConn) messages(t *testing.T) []map[string]string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]string, 0, len(c.written))
	for _, raw := range c.written {
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("outbound message is not JSON: %q", raw)
		}
		if len(m) != 1 {
			t.Fatalf("expected exactly one field in %q", raw)
		}
		out = append(out, m)
	}
	return out
}

// fakeProcess turns every written chunk into one frame.
type fakeProcess struct {
	mu          sync.Mutex
	frames      chan []byte
	framesOpen  bool
	inputClosed bool
	stopped     bool
	stopCalls   int
	holdOutput  bool
	err         error
	writeErr    error
	input       []byte
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{frames: make(chan []byte, 64), framesOpen: true}
}

func (p *fakeProcess) Write(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	if p.inputClosed || !p.framesOpen {
		return fmt.Errorf("%w: input closed", transcoder.ErrIO)
	}
	p.input = append(p.input, chunk...)
	p.frames <- append([]byte(nil), chunk...)
	return nil
}

func (p *fakeProcess) CloseInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputClosed = true
	if !p.holdOutput {
		p.closeFramesLocked(nil)
	}
	return nil
}

func (p *fakeProcess) Frames() <-chan []byte { return p.frames }

func (p *fakeProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakeProcess) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.stopCalls++
	p.closeFramesLocked(nil)
	return nil
}

// die simulates the decoder exiting on its own.
func (p *fakeProcess) die(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeFramesLocked(err)
}

func (p *fakeProcess) closeFramesLocked(err error) {
	if !p.framesOpen {
		return
	}
	p.framesOpen = false
	p.err = err
	close(p.frames)
}

func (p *fakeProcess) snapshot() (input []byte, stopped bool, stopCalls int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.input...), p.stopped, p.stopCalls
}

type fakeLauncher struct {
	err      error
	launched chan *fakeProcess
	prepare  func(p *fakeProcess)
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeProcess, 1)}
}

func (l *fakeLauncher) Launch(_ context.Context, _ string) (transcoder.Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess()
	if l.prepare != nil {
		l.prepare(p)
	}
	l.launched <- p
	return p, nil
}

func (l *fakeLauncher) waitProcess(t *testing.T) *fakeProcess {
	t.Helper()
	select {
	case p := <-l.launched:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("transcoder was not launched")
		return nil
	}
}

// fakeRecognizer reports every word it heard since it was created.
type fakeRecognizer struct {
	factory *fakeFactory
	heard   []string
}

func (r *fakeRecognizer) Accept(pcm []byte) (recognizer.Result, error) {
	word := r.factory.describe(pcm)
	if word == r.factory.holdOn {
		r.factory.entered <- struct{}{}
		<-r.factory.release
	}
	if word == r.factory.failOn {
		return recognizer.Result{}, errors.New("model exploded")
	}
	if r.factory.final {
		return recognizer.Final(word), nil
	}
	r.heard = append(r.heard, word)
	return recognizer.Partial(strings.Join(r.heard, " ")), nil
}

func (r *fakeRecognizer) Flush() (recognizer.Result, error) {
	text := strings.Join(r.heard, " ")
	r.heard = nil
	return recognizer.Result{Text: text}, nil
}

func (r *fakeRecognizer) Close() error { return nil }

type fakeFactory struct {
	mu        sync.Mutex
	created   int
	createErr error
	final     bool
	failOn    string
	label     func(pcm []byte) string

	// Accept blocks on release after signalling entered for the word holdOn.
	holdOn  string
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFactory) NewRecognizer(_ int) (recognizer.Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &fakeRecognizer{factory: f}, nil
}

func (f *fakeFactory) describe(pcm []byte) string {
	if f.label != nil {
		return f.label(pcm)
	}
	return string(pcm)
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
