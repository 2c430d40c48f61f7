package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/livescribe/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	ListenAddr                 string        `env:"LISTEN_ADDR" envDefault:":2700"`
	WSPath                     string        `env:"WS_PATH" envDefault:"/"`
	MaxMessageBytes            int64         `env:"MAX_MESSAGE_BYTES" envDefault:"52428800"`
	MaxSessions                int           `env:"MAX_SESSIONS" envDefault:"0"`
	OutboundQueue              int           `env:"OUTBOUND_QUEUE" envDefault:"64"`
	Transcoder                 string        `env:"TRANSCODER" envDefault:"ffmpeg"`
	FFmpegPath                 string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFmpegArgs                 []string      `env:"FFMPEG_ARGS" envSeparator:" "`
	PCMSampleRate              int           `env:"PCM_SAMPLE_RATE" envDefault:"16000"`
	PCMBlockBytes              int           `env:"PCM_BLOCK_BYTES" envDefault:"4000"`
	TranscoderStopGrace        time.Duration `env:"TRANSCODER_STOP_GRACE" envDefault:"2s"`
	DrainTimeout               time.Duration `env:"DRAIN_TIMEOUT" envDefault:"5s"`
	RecognizerEngine           string        `env:"RECOGNIZER_ENGINE" envDefault:"vosk"`
	VoskModelPath              string        `env:"VOSK_MODEL_PATH"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"he-IL"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
}

// LoadDotEnv reads the given files into the process environment without
// overriding variables that are already set. Missing files are not an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		WSPath:                     raw.WSPath,
		MaxMessageBytes:            raw.MaxMessageBytes,
		MaxSessions:                raw.MaxSessions,
		OutboundQueue:              raw.OutboundQueue,
		Transcoder:                 raw.Transcoder,
		FFmpegPath:                 raw.FFmpegPath,
		FFmpegArgs:                 raw.FFmpegArgs,
		PCMSampleRate:              raw.PCMSampleRate,
		PCMBlockBytes:              raw.PCMBlockBytes,
		TranscoderStopGrace:        raw.TranscoderStopGrace,
		DrainTimeout:               raw.DrainTimeout,
		RecognizerEngine:           raw.RecognizerEngine,
		VoskModelPath:              raw.VoskModelPath,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
