package metrics

import "time"

// Recorder receives pipeline events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	SessionStarted()
	SessionEnded(reason string, duration time.Duration)
	AudioReceived(bytes int)
	FrameDecoded(bytes int)
	ResultEmitted(final bool)
	TranscoderFailed()
	RecognizerFailed()
}

type Nop struct{}

func (Nop) SessionStarted()                        {}
func (Nop) SessionEnded(_ string, _ time.Duration) {}
func (Nop) AudioReceived(_ int)                    {}
func (Nop) FrameDecoded(_ int)                     {}
func (Nop) ResultEmitted(_ bool)                   {}
func (Nop) TranscoderFailed()                      {}
func (Nop) RecognizerFailed()                      {}
