package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	Flush         FlushConfig         `yaml:"flush"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Storage       StorageConfig       `yaml:"storage"`
	Events        EventsConfig        `yaml:"events"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains the API server configuration.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// AudioConfig describes the fixed wire format delivered by capture clients.
type AudioConfig struct {
	SampleRate   int `yaml:"sample_rate"`
	Channels     int `yaml:"channels"`
	BitDepth     int `yaml:"bit_depth"`
	ChunkSamples int `yaml:"chunk_samples"`
}

// FlushConfig tunes the coordinator's flush trigger policy.
type FlushConfig struct {
	IntervalMs       int     `yaml:"interval_ms"`        // time-based trigger
	BacklogCeiling   int     `yaml:"backlog_ceiling"`    // pending chunk count trigger
	ResumeMinChunks  int     `yaml:"resume_min_chunks"`  // chunk floor for resume trigger
	MinAudioMs       int     `yaml:"min_audio_ms"`       // too-short guard
	ResumeMinAudioMs int     `yaml:"resume_min_audio_ms"` // relaxed guard after a pause
	SilenceRMS       float64 `yaml:"silence_rms"`        // silence floor, int16 scale
	ResumeFactor     float64 `yaml:"resume_factor"`      // resume threshold multiplier
	IdleTimeoutSec   int     `yaml:"idle_timeout_sec"`   // abandoned-session sweep
}

// TranscriptionConfig contains speech-to-text backend configuration.
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig contains Kafka event publishing configuration.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// APIKey maps one static token to a user identity.
type APIKey struct {
	Token string `yaml:"token"`
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// AuthConfig lists the static API keys accepted by this deployment.
type AuthConfig struct {
	Keys []APIKey `yaml:"keys"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, defaults, and validates the configuration file. The
// transcription API key may be supplied through TRANSCRIPTION_API_KEY
// instead of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if key := os.Getenv("TRANSCRIPTION_API_KEY"); key != "" {
		config.Transcription.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = "0.0.0.0"
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.BitDepth == 0 {
		c.Audio.BitDepth = 16
	}
	if c.Audio.ChunkSamples == 0 {
		c.Audio.ChunkSamples = 4096
	}

	if c.Flush.IntervalMs == 0 {
		c.Flush.IntervalMs = 1000
	}
	if c.Flush.BacklogCeiling == 0 {
		c.Flush.BacklogCeiling = 10
	}
	if c.Flush.ResumeMinChunks == 0 {
		c.Flush.ResumeMinChunks = 2
	}
	if c.Flush.MinAudioMs == 0 {
		c.Flush.MinAudioMs = 600
	}
	if c.Flush.ResumeMinAudioMs == 0 {
		c.Flush.ResumeMinAudioMs = 200
	}
	if c.Flush.SilenceRMS == 0 {
		c.Flush.SilenceRMS = 150
	}
	if c.Flush.ResumeFactor == 0 {
		c.Flush.ResumeFactor = 3
	}
	if c.Flush.IdleTimeoutSec == 0 {
		c.Flush.IdleTimeoutSec = 300
	}

	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Transcription.TimeoutSec == 0 {
		c.Transcription.TimeoutSec = 30
	}
	if c.Transcription.MaxRetries == 0 {
		c.Transcription.MaxRetries = 5
	}
	if c.Transcription.MaxConcurrent == 0 {
		c.Transcription.MaxConcurrent = 10
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "dictation.sqlite"
	}

	if c.Events.Topic == "" {
		c.Events.Topic = "dictation.events"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Flush.Validate(); err != nil {
		return fmt.Errorf("flush config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates audio configuration.
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the dictation wire format, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.ChunkSamples < 256 {
		return fmt.Errorf("chunk_samples must be at least 256, got %d", a.ChunkSamples)
	}

	return nil
}

// Validate validates flush policy configuration.
func (f *FlushConfig) Validate() error {
	if f.IntervalMs < 100 {
		return fmt.Errorf("interval_ms must be at least 100, got %d", f.IntervalMs)
	}

	if f.BacklogCeiling < 1 {
		return fmt.Errorf("backlog_ceiling must be at least 1, got %d", f.BacklogCeiling)
	}

	if f.ResumeMinChunks < 1 {
		return fmt.Errorf("resume_min_chunks must be at least 1, got %d", f.ResumeMinChunks)
	}

	if f.ResumeMinAudioMs > f.MinAudioMs {
		return fmt.Errorf("resume_min_audio_ms (%d) must not exceed min_audio_ms (%d)",
			f.ResumeMinAudioMs, f.MinAudioMs)
	}

	if f.SilenceRMS < 0 {
		return fmt.Errorf("silence_rms cannot be negative, got %f", f.SilenceRMS)
	}

	if f.ResumeFactor < 1 {
		return fmt.Errorf("resume_factor must be at least 1, got %f", f.ResumeFactor)
	}

	if f.IdleTimeoutSec < 10 {
		return fmt.Errorf("idle_timeout_sec must be at least 10, got %d", f.IdleTimeoutSec)
	}

	return nil
}

// Validate validates transcription configuration.
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.TimeoutSec < 1 {
		return fmt.Errorf("timeout_sec must be at least 1, got %d", t.TimeoutSec)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates event publishing configuration.
func (e *EventsConfig) Validate() error {
	if e.Enabled && len(e.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty when events are enabled")
	}

	if e.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of debug, info, warn, error; got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}

	return nil
}

// GetInterval returns the flush interval as a duration.
func (f *FlushConfig) GetInterval() time.Duration {
	return time.Duration(f.IntervalMs) * time.Millisecond
}

// GetMinAudio returns the minimum flush audio duration.
func (f *FlushConfig) GetMinAudio() time.Duration {
	return time.Duration(f.MinAudioMs) * time.Millisecond
}

// GetResumeMinAudio returns the relaxed minimum used right after a pause.
func (f *FlushConfig) GetResumeMinAudio() time.Duration {
	return time.Duration(f.ResumeMinAudioMs) * time.Millisecond
}

// GetIdleTimeout returns the abandoned-session timeout.
func (f *FlushConfig) GetIdleTimeout() time.Duration {
	return time.Duration(f.IdleTimeoutSec) * time.Second
}

// GetTimeout returns the transcription request timeout.
func (t *TranscriptionConfig) GetTimeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}
