package transcoder

import (
	"context"
	"errors"
)

var (
	// ErrStart reports that the decoder could not be launched.
	ErrStart = errors.New("transcoder start failed")
	// ErrIO reports a broken input pipe, a failed read or an unexpected exit.
	ErrIO = errors.New("transcoder i/o failed")
)

// Process is one running decoder. Write and CloseInput are called from a single
// goroutine; Stop may be called from any goroutine and more than once.
type Process interface {
	// Write forwards one compressed audio chunk to the decoder input. It may
	// block while the decoder falls behind.
	Write(chunk []byte) error
	// CloseInput ends the input stream so the decoder flushes what it holds.
	CloseInput() error
	// Frames yields PCM blocks in production order and is closed when the
	// decoder output ends.
	Frames() <-chan []byte
	// Err is the reason Frames was closed. It is nil for a clean end of stream
	// and only meaningful once Frames is closed.
	Err() error
	// Stop releases the decoder and returns once it has exited.
	Stop() error
}

type Launcher interface {
	Launch(ctx context.Context, sessionID string) (Process, error)
}
