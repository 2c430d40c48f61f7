package recognizer

import (
	"fmt"
	"sync"
)

// Adapter owns the recognizer instance of one session. Calls are serialized so
// frames keep their order.
type Adapter struct {
	factory    Factory
	sampleRate int

	mu        sync.Mutex
	rec       Recognizer
	abandoned bool
	closed    bool
}

func NewAdapter(factory Factory, sampleRate int) (*Adapter, error) {
	rec, err := factory.NewRecognizer(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: create recognizer: %w", ErrRecognizer, err)
	}
	return &Adapter{factory: factory, sampleRate: sampleRate, rec: rec}, nil
}

// Accept feeds one PCM frame. ok is false when the frame produced no result:
// the frame was empty, or the current utterance was abandoned after an error
// and no Reset has happened since.
func (a *Adapter) Accept(frame []byte) (res Result, ok bool, err error) {
	if len(frame) == 0 {
		return Result{}, false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.abandoned {
		return Result{}, false, nil
	}
	res, err = a.rec.Accept(frame)
	if err != nil {
		a.abandoned = true
		return Result{}, false, fmt.Errorf("%w: %w", ErrRecognizer, err)
	}
	return res, true, nil
}

// Flush settles the current utterance at end of stream. ok is false when the
// recognizer has nothing to add.
func (a *Adapter) Flush() (res Result, ok bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.abandoned {
		return Result{}, false, nil
	}
	f, isFlusher := a.rec.(Flusher)
	if !isFlusher {
		return Result{}, false, nil
	}
	res, err = f.Flush()
	if err != nil {
		a.abandoned = true
		return Result{}, false, fmt.Errorf("%w: flush: %w", ErrRecognizer, err)
	}
	if res.Text == "" {
		return Result{}, false, nil
	}
	res.Final = true
	return res, true, nil
}

// Reset discards the current utterance by replacing the recognizer instance.
func (a *Adapter) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	if a.rec != nil {
		_ = a.rec.Close()
		a.rec = nil
	}
	rec, err := a.factory.NewRecognizer(a.sampleRate)
	if err != nil {
		a.abandoned = true
		return fmt.Errorf("%w: recreate recognizer: %w", ErrRecognizer, err)
	}
	a.rec = rec
	a.abandoned = false
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.rec == nil {
		return nil
	}
	err := a.rec.Close()
	a.rec = nil
	return err
}
