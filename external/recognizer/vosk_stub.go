//go:build !vosk

package recognizer

import (
	"errors"

	"github.com/foxseedlab/livescribe/internal/recognizer"
)

type VoskConfig struct {
	ModelPath string
}

type VoskFactory struct{}

func NewVoskFactory(_ VoskConfig) (*VoskFactory, error) {
	return nil, errors.New("vosk support not compiled in; rebuild with -tags vosk")
}

func (f *VoskFactory) NewRecognizer(_ int) (recognizer.Recognizer, error) {
	return nil, errors.New("vosk support not compiled in")
}

func (f *VoskFactory) Shutdown() error {
	return nil
}
