package recognizer

import "errors"

// ErrRecognizer wraps any failure raised by a recognition backend.
var ErrRecognizer = errors.New("recognizer failed")

// Result is one hypothesis. Final marks an utterance boundary.
type Result struct {
	Final bool
	Text  string
}

func Partial(text string) Result {
	return Result{Text: text}
}

func Final(text string) Result {
	return Result{Final: true, Text: text}
}

// Recognizer is one stateful, order-sensitive recognition stream. It is not
// safe for concurrent use.
type Recognizer interface {
	Accept(pcm []byte) (Result, error)
	Close() error
}

// Flusher is implemented by recognizers that can settle the in-progress
// utterance when the audio stream ends.
type Flusher interface {
	Flush() (Result, error)
}

// Factory builds recognizer instances. A single Factory is shared by every
// session and must be safe for concurrent use.
type Factory interface {
	NewRecognizer(sampleRate int) (Recognizer, error)
}
