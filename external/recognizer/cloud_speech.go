package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	audioChannelCount     = 1
	flushWaitTimeout      = 3 * time.Second
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

// CloudSpeechFactory shares one Speech client between all sessions; each
// recognizer instance owns its own streaming call.
type CloudSpeechFactory struct {
	client     *speech.Client
	recognizer string
	language   string
	model      string
}

func NewCloudSpeechFactory(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechFactory, error) {
	location := strings.TrimSpace(cfg.Location)
	model := strings.TrimSpace(cfg.Model)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	slog.Info("cloud speech client ready", "location", location, "language", cfg.Language, "model", model)

	return &CloudSpeechFactory{
		client:     client,
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		language:   cfg.Language,
		model:      model,
	}, nil
}

func (f *CloudSpeechFactory) NewRecognizer(sampleRate int) (recognizer.Recognizer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &cloudSpeechRecognizer{
		cancel: cancel,
		newStreamFn: func() (speechpb.Speech_StreamingRecognizeClient, error) {
			return f.openStream(ctx, sampleRate)
		},
	}
	stream, err := r.newStreamFn()
	if err != nil {
		cancel()
		return nil, err
	}
	r.stream = stream
	r.startReceiver(stream)
	return r, nil
}

func (f *CloudSpeechFactory) Shutdown() error {
	return f.client.Close()
}

func (f *CloudSpeechFactory) openStream(ctx context.Context, sampleRate int) (speechpb.Speech_StreamingRecognizeClient, error) {
	stream, err := f.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: f.recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         f.model,
					LanguageCodes: []string{f.language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(sampleRate),
							AudioChannelCount: audioChannelCount,
						},
					},
					Features: &speechpb.RecognitionFeatures{},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	})
	if err != nil {
		_ = stream.CloseSend()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}
	return stream, nil
}

type cloudSpeechRecognizer struct {
	mu          sync.Mutex
	closed      bool
	stream      speechpb.Speech_StreamingRecognizeClient
	recvDone    chan struct{}
	newStreamFn func() (speechpb.Speech_StreamingRecognizeClient, error)
	cancel      context.CancelFunc

	state hypothesis
}

func (r *cloudSpeechRecognizer) Accept(pcm []byte) (recognizer.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return recognizer.Result{}, io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	}
	if err := r.stream.Send(req); err != nil {
		if !isReconnectableStreamError(err) {
			return recognizer.Result{}, err
		}
		slog.Warn("cloud speech send failed with reconnectable error; reconnecting", "error", err)
		if err := r.reconnectLocked(); err != nil {
			return recognizer.Result{}, fmt.Errorf("reconnect stream: %w", err)
		}
		if err := r.stream.Send(req); err != nil {
			return recognizer.Result{}, err
		}
	}
	return r.state.take()
}

// Flush half-closes the stream and waits briefly for the service to finalize
// what it has heard.
func (r *cloudSpeechRecognizer) Flush() (recognizer.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return recognizer.Result{}, nil
	}
	if err := r.stream.CloseSend(); err != nil {
		return recognizer.Result{}, err
	}
	select {
	case <-r.recvDone:
	case <-time.After(flushWaitTimeout):
		slog.Warn("cloud speech did not finish the stream before flush timeout")
	}
	return r.state.drain()
}

func (r *cloudSpeechRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.stream.CloseSend()
	r.cancel()
	return err
}

func (r *cloudSpeechRecognizer) reconnectLocked() error {
	_ = r.stream.CloseSend()
	next, err := r.newStreamFn()
	if err != nil {
		slog.Error("failed to reconnect cloud speech stream", "error", err)
		return err
	}
	r.stream = next
	r.startReceiver(next)
	slog.Info("cloud speech stream reconnected")
	return nil
}

func (r *cloudSpeechRecognizer) startReceiver(stream speechpb.Speech_StreamingRecognizeClient) {
	done := make(chan struct{})
	r.recvDone = done
	go func() {
		defer close(done)
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
					return
				}
				if isReconnectableStreamError(err) {
					slog.Warn("cloud speech receive loop ended with reconnectable abort", "error", err)
					return
				}
				r.state.fail(err)
				return
			}
			r.state.apply(resp)
		}
	}()
}

// hypothesis accumulates what the receive loop has heard between two Accept
// calls.
type hypothesis struct {
	mu      sync.Mutex
	interim string
	finals  []string
	err     error
}

func (h *hypothesis) apply(resp *speechpb.StreamingRecognizeResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var interim []string
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		text := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
		if text == "" {
			continue
		}
		if result.GetIsFinal() {
			h.finals = append(h.finals, text)
			h.interim = ""
			continue
		}
		interim = append(interim, text)
	}
	if len(interim) > 0 {
		h.interim = strings.Join(interim, " ")
	}
}

func (h *hypothesis) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// take reports finalized segments first; otherwise the newest interim.
func (h *hypothesis) take() (recognizer.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return recognizer.Result{}, h.err
	}
	if len(h.finals) > 0 {
		text := strings.Join(h.finals, " ")
		h.finals = nil
		return recognizer.Final(text), nil
	}
	return recognizer.Partial(h.interim), nil
}

func (h *hypothesis) drain() (recognizer.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return recognizer.Result{}, h.err
	}
	parts := h.finals
	if h.interim != "" {
		parts = append(parts, h.interim)
	}
	h.finals = nil
	h.interim = ""
	return recognizer.Final(strings.Join(parts, " ")), nil
}

func isReconnectableStreamError(err error) bool {
	if errors.Is(err, io.EOF) || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
