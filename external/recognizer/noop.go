package recognizer

import "github.com/foxseedlab/livescribe/internal/recognizer"

// NoopFactory builds recognizers that hear nothing. Useful for exercising the
// transport and decoder without a model.
type NoopFactory struct{}

func (NoopFactory) NewRecognizer(_ int) (recognizer.Recognizer, error) {
	return noopRecognizer{}, nil
}

type noopRecognizer struct{}

func (noopRecognizer) Accept(_ []byte) (recognizer.Result, error) {
	return recognizer.Partial(""), nil
}

func (noopRecognizer) Close() error { return nil }
