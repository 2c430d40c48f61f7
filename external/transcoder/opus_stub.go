//go:build !opus

package transcoder

import (
	"context"
	"fmt"

	"github.com/foxseedlab/livescribe/internal/transcoder"
)

type OpusConfig struct {
	SampleRate int
	BlockBytes int
}

type noopOpusLauncher struct{}

func NewOpusLauncher(_ OpusConfig) transcoder.Launcher {
	return &noopOpusLauncher{}
}

func (l *noopOpusLauncher) Launch(_ context.Context, _ string) (transcoder.Process, error) {
	return nil, fmt.Errorf("%w: opus support not compiled in (build with -tags opus)", transcoder.ErrStart)
}
