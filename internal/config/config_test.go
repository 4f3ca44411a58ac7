package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
transcription:
  endpoint: "https://api.example.com/v1/audio/transcriptions"
  api_key: "test-key"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Flush.IntervalMs != 1000 {
		t.Errorf("expected default flush interval 1000ms, got %d", cfg.Flush.IntervalMs)
	}
	if cfg.Flush.BacklogCeiling != 10 {
		t.Errorf("expected default backlog ceiling 10, got %d", cfg.Flush.BacklogCeiling)
	}
	if cfg.Flush.SilenceRMS != 150 {
		t.Errorf("expected default silence RMS 150, got %f", cfg.Flush.SilenceRMS)
	}
	if cfg.Transcription.MaxRetries != 5 {
		t.Errorf("expected default max retries 5, got %d", cfg.Transcription.MaxRetries)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	content := `
http:
  port: 9090
flush:
  interval_ms: 2000
  backlog_ceiling: 20
transcription:
  endpoint: "https://stt.internal/v1/audio/transcriptions"
  api_key: "k"
  timeout_sec: 45
events:
  enabled: true
  brokers: ["localhost:9092"]
  topic: "dictation.test"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Flush.IntervalMs != 2000 {
		t.Errorf("expected flush interval 2000, got %d", cfg.Flush.IntervalMs)
	}
	if cfg.Transcription.GetTimeout() != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Transcription.GetTimeout())
	}
	if !cfg.Events.Enabled || cfg.Events.Topic != "dictation.test" {
		t.Errorf("events config not applied: %+v", cfg.Events)
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TRANSCRIPTION_API_KEY", "env-key")

	content := `
transcription:
  endpoint: "https://api.example.com/v1/audio/transcriptions"
  api_key: "file-key"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transcription.APIKey != "env-key" {
		t.Errorf("expected env var to override file key, got %s", cfg.Transcription.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "{{not yaml")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidationRejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing endpoint",
			content: `
logging:
  level: info
`,
		},
		{
			name: "bad sample rate",
			content: minimalConfig + `
audio:
  sample_rate: 44100
`,
		},
		{
			name: "events enabled without brokers",
			content: minimalConfig + `
events:
  enabled: true
`,
		},
		{
			name: "bad log level",
			content: minimalConfig + `
logging:
  level: verbose
`,
		},
		{
			name: "resume minimum above base minimum",
			content: minimalConfig + `
flush:
  min_audio_ms: 300
  resume_min_audio_ms: 500
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
