package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VOSK_MODEL_PATH", "/models/vosk-he")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ListenAddr != ":2700" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.PCMBlockBytes != 4000 || cfg.PCMSampleRate != 16000 {
		t.Fatalf("unexpected pcm settings: block=%d rate=%d", cfg.PCMBlockBytes, cfg.PCMSampleRate)
	}
	if cfg.MaxMessageBytes != 50*1024*1024 {
		t.Fatalf("unexpected max message bytes: %d", cfg.MaxMessageBytes)
	}
	if cfg.TranscoderStopGrace != 2*time.Second {
		t.Fatalf("unexpected stop grace: %s", cfg.TranscoderStopGrace)
	}
	if len(cfg.FFmpegArgs) != 0 {
		t.Fatalf("expected no ffmpeg args override, got %v", cfg.FFmpegArgs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RECOGNIZER_ENGINE", "noop")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("FFMPEG_ARGS", "-i pipe:0 -f s16le -")
	t.Setenv("DRAIN_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	want := []string{"-i", "pipe:0", "-f", "s16le", "-"}
	if len(cfg.FFmpegArgs) != len(want) {
		t.Fatalf("unexpected ffmpeg args: %v", cfg.FFmpegArgs)
	}
	for i := range want {
		if cfg.FFmpegArgs[i] != want[i] {
			t.Fatalf("unexpected ffmpeg arg %d: %q", i, cfg.FFmpegArgs[i])
		}
	}
	if cfg.DrainTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected drain timeout: %s", cfg.DrainTimeout)
	}
}

func TestLoad_InvalidEngine(t *testing.T) {
	t.Setenv("RECOGNIZER_ENGINE", "whisper")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "LIVESCRIBE_TEST_SET=from-file\nLIVESCRIBE_TEST_UNSET=from-file\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("LIVESCRIBE_TEST_SET", "from-env")
	t.Setenv("LIVESCRIBE_TEST_UNSET", "")
	os.Unsetenv("LIVESCRIBE_TEST_UNSET")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := os.Getenv("LIVESCRIBE_TEST_SET"); got != "from-env" {
		t.Fatalf("expected existing variable to win, got %q", got)
	}
	if got := os.Getenv("LIVESCRIBE_TEST_UNSET"); got != "from-file" {
		t.Fatalf("expected variable from file, got %q", got)
	}
}
