package config

import (
	"fmt"
	"time"
)

const (
	TranscoderFFmpeg = "ffmpeg"
	TranscoderOpus   = "opus"

	EngineVosk        = "vosk"
	EngineCloudSpeech = "cloudspeech"
	EngineNoop        = "noop"
)

type Config struct {
	Env                        string
	ListenAddr                 string
	WSPath                     string
	MaxMessageBytes            int64
	MaxSessions                int
	OutboundQueue              int
	Transcoder                 string
	FFmpegPath                 string
	FFmpegArgs                 []string
	PCMSampleRate              int
	PCMBlockBytes              int
	TranscoderStopGrace        time.Duration
	DrainTimeout               time.Duration
	RecognizerEngine           string
	VoskModelPath              string
	TranscribeLanguage         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS must not be negative, got %d", c.MaxSessions)
	}
	if c.OutboundQueue <= 0 {
		return fmt.Errorf("OUTBOUND_QUEUE must be positive, got %d", c.OutboundQueue)
	}
	if c.PCMSampleRate <= 0 {
		return fmt.Errorf("PCM_SAMPLE_RATE must be positive, got %d", c.PCMSampleRate)
	}
	if c.PCMBlockBytes <= 0 || c.PCMBlockBytes%2 != 0 {
		return fmt.Errorf("PCM_BLOCK_BYTES must be a positive even number, got %d", c.PCMBlockBytes)
	}
	if c.TranscoderStopGrace <= 0 {
		return fmt.Errorf("TRANSCODER_STOP_GRACE must be positive, got %s", c.TranscoderStopGrace)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("DRAIN_TIMEOUT must be positive, got %s", c.DrainTimeout)
	}
	switch c.Transcoder {
	case TranscoderFFmpeg:
		if c.FFmpegPath == "" {
			return fmt.Errorf("FFMPEG_PATH is required when TRANSCODER=%s", TranscoderFFmpeg)
		}
	case TranscoderOpus:
	default:
		return fmt.Errorf("TRANSCODER must be one of %s, %s; got %q", TranscoderFFmpeg, TranscoderOpus, c.Transcoder)
	}
	switch c.RecognizerEngine {
	case EngineVosk:
		if c.VoskModelPath == "" {
			return fmt.Errorf("VOSK_MODEL_PATH is required when RECOGNIZER_ENGINE=%s", EngineVosk)
		}
	case EngineCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when RECOGNIZER_ENGINE=%s", EngineCloudSpeech)
		}
	case EngineNoop:
	default:
		return fmt.Errorf("RECOGNIZER_ENGINE must be one of %s, %s, %s; got %q", EngineVosk, EngineCloudSpeech, EngineNoop, c.RecognizerEngine)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "WS_PATH", value: c.WSPath},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
