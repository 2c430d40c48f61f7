package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/foxseedlab/livescribe/internal/transcoder"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// echoProcess hands every chunk straight back as a PCM frame.
type echoProcess struct {
	mu     sync.Mutex
	frames chan []byte
	open   bool
}

func (p *echoProcess) Write(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return transcoder.ErrIO
	}
	p.frames <- chunk
	return nil
}

func (p *echoProcess) CloseInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		p.open = false
		close(p.frames)
	}
	return nil
}

func (p *echoProcess) Frames() <-chan []byte { return p.frames }
func (p *echoProcess) Err() error            { return nil }
func (p *echoProcess) Stop() error           { return p.CloseInput() }

type echoLauncher struct{}

func (echoLauncher) Launch(_ context.Context, _ string) (transcoder.Process, error) {
	return &echoProcess{frames: make(chan []byte, 16), open: true}, nil
}

type echoRecognizer struct{}

func (echoRecognizer) Accept(pcm []byte) (recognizer.Result, error) {
	return recognizer.Final(string(pcm)), nil
}

func (echoRecognizer) Close() error { return nil }

type echoFactory struct{}

func (echoFactory) NewRecognizer(_ int) (recognizer.Recognizer, error) {
	return echoRecognizer{}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *prometheus.Registry) {
	t.Helper()
	cfg := &config.Config{
		Env:             "test",
		WSPath:          "/",
		MaxMessageBytes: 1024,
		OutboundQueue:   8,
		PCMSampleRate:   16000,
		DrainTimeout:    time.Second,
	}
	reg := prometheus.NewRegistry()
	manager := session.NewManager(cfg, echoLauncher{}, echoFactory{}, nil)
	srv := NewServer(cfg, manager, reg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
		ts.Close()
	})
	return srv, ts, reg
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]string {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("expected text message, got type %d", mt)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", data, err)
	}
	return m
}

func TestServer_StreamEndToEnd(t *testing.T) {
	_, ts, _ := newTestServer(t)
	ws := dial(t, ts)

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if got := readJSON(t, ws); got["text"] != "hello" {
		t.Fatalf("unexpected result: %v", got)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("end")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if got := readJSON(t, ws); got["status"] != "done" {
		t.Fatalf("expected done status, got %v", got)
	}

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func TestServer_OversizedMessageClosesSession(t *testing.T) {
	_, ts, _ := newTestServer(t)
	ws := dial(t, ts)

	if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func TestServer_Health(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Status != "ok" || body.ActiveSessions != 0 {
		t.Fatalf("unexpected health body: %+v", body)
	}
}

func TestServer_Metrics(t *testing.T) {
	_, ts, reg := newTestServer(t)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "livescribe_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "livescribe_test_total 1") {
		t.Fatalf("metric missing from output: %s", body)
	}
}
