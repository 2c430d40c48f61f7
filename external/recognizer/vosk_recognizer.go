package recognizer

import (
	"encoding/json"
	"fmt"

	"github.com/foxseedlab/livescribe/internal/recognizer"
)

// voskStream is the subset of *vosk.VoskRecognizer used per session.
type voskStream interface {
	AcceptWaveform(buffer []byte) int
	Result() string
	PartialResult() string
	FinalResult() string
	Free()
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

type voskRecognizer struct {
	stream voskStream
}

func newVoskRecognizer(stream voskStream) *voskRecognizer {
	return &voskRecognizer{stream: stream}
}

func (r *voskRecognizer) Accept(pcm []byte) (recognizer.Result, error) {
	switch r.stream.AcceptWaveform(pcm) {
	case 1:
		text, err := parseVoskText(r.stream.Result())
		if err != nil {
			return recognizer.Result{}, err
		}
		return recognizer.Final(text), nil
	case 0:
		var res voskResult
		if err := json.Unmarshal([]byte(r.stream.PartialResult()), &res); err != nil {
			return recognizer.Result{}, fmt.Errorf("decode vosk partial result: %w", err)
		}
		return recognizer.Partial(res.Partial), nil
	default:
		return recognizer.Result{}, fmt.Errorf("vosk rejected waveform of %d bytes", len(pcm))
	}
}

func (r *voskRecognizer) Flush() (recognizer.Result, error) {
	text, err := parseVoskText(r.stream.FinalResult())
	if err != nil {
		return recognizer.Result{}, err
	}
	return recognizer.Final(text), nil
}

func (r *voskRecognizer) Close() error {
	r.stream.Free()
	return nil
}

func parseVoskText(raw string) (string, error) {
	var res voskResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", fmt.Errorf("decode vosk result: %w", err)
	}
	return res.Text, nil
}
