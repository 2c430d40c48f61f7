package recognizer

import (
	"context"
	"fmt"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/recognizer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (recognizer.Factory, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.RecognizerEngine {
		case config.EngineVosk:
			return NewVoskFactory(VoskConfig{ModelPath: c.VoskModelPath})
		case config.EngineCloudSpeech:
			return NewCloudSpeechFactory(context.Background(), CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Language:        c.TranscribeLanguage,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           c.GoogleCloudSpeechModel,
			})
		case config.EngineNoop:
			return NoopFactory{}, nil
		default:
			return nil, fmt.Errorf("unknown recognizer engine %q", c.RecognizerEngine)
		}
	})
}
