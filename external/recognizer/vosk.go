//go:build vosk

package recognizer

import (
	"fmt"
	"log/slog"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/foxseedlab/livescribe/internal/recognizer"
)

type VoskConfig struct {
	ModelPath string
}

type VoskFactory struct {
	model *vosk.VoskModel
}

// NewVoskFactory loads the model once. Recognizer instances created from it
// share the model read-only.
func NewVoskFactory(cfg VoskConfig) (*VoskFactory, error) {
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %s: %w", cfg.ModelPath, err)
	}
	slog.Info("vosk model loaded", "path", cfg.ModelPath)
	return &VoskFactory{model: model}, nil
}

func (f *VoskFactory) NewRecognizer(sampleRate int) (recognizer.Recognizer, error) {
	rec, err := vosk.NewRecognizer(f.model, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	return newVoskRecognizer(rec), nil
}

func (f *VoskFactory) Shutdown() error {
	f.model.Free()
	return nil
}
