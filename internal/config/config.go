package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Processing modes for the frame consumer.
const (
	ModeVAD      = "vad"
	ModeDuration = "duration"
)

// Capture source kinds.
const (
	SourceUDP  = "udp"
	SourceFile = "file"
)

// Config represents the complete service configuration
type Config struct {
	Mode    string        `yaml:"mode"`
	Audio   AudioConfig   `yaml:"audio"`
	VAD     VADConfig     `yaml:"vad"`
	Chunk   ChunkConfig   `yaml:"chunk"`
	Capture CaptureConfig `yaml:"capture"`
	Denoise DenoiseConfig `yaml:"denoise"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig contains the fixed audio format parameters
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`       // 8000, 16000, 32000 or 48000 Hz
	Channels        int `yaml:"channels"`          // must be 1 (mono)
	BitDepth        int `yaml:"bit_depth"`         // must be 16
	FrameDurationMS int `yaml:"frame_duration_ms"` // 10, 20 or 30 ms
}

// VADConfig contains speech segmentation parameters
type VADConfig struct {
	Aggressiveness     int `yaml:"aggressiveness"`       // 0 (least) to 3 (most aggressive)
	SilenceThresholdMS int `yaml:"silence_threshold_ms"` // silence needed to end a segment
	PreRollMS          int `yaml:"pre_roll_ms"`          // audio kept from before speech onset
}

// ChunkConfig contains duration-mode splitting parameters
type ChunkConfig struct {
	TargetDurationMinutes int `yaml:"target_duration_minutes"`
}

// CaptureConfig describes where frames come from
type CaptureConfig struct {
	Source      string `yaml:"source"`       // "udp" or "file"
	BindAddress string `yaml:"bind_address"` // udp source
	UDPPort     int    `yaml:"udp_port"`     // udp source
	BufferSize  int    `yaml:"buffer_size"`  // udp read buffer, bytes
	FilePath    string `yaml:"file_path"`    // file source: raw PCM to replay
}

// DenoiseConfig contains noise suppression parameters
type DenoiseConfig struct {
	Enabled         bool `yaml:"enabled"`
	LearnDurationMS int  `yaml:"learn_duration_ms"` // silence captured for the noise profile
}

// StorageConfig contains recording output parameters
type StorageConfig struct {
	OutputDir string `yaml:"output_dir"`
	Gzip      bool   `yaml:"gzip"`
}

// HTTPConfig contains the monitoring HTTP server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration file, applies .env/environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	// Optional .env next to the process; absence is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets the environment (or a .env file) override the most
// commonly tuned settings without editing the YAML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VOICE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("VOICE_OUTPUT_DIR"); v != "" {
		c.Storage.OutputDir = v
	}
	if v := os.Getenv("VOICE_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.SampleRate = n
		}
	}
	if v := os.Getenv("VOICE_VAD_AGGRESSIVENESS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.VAD.Aggressiveness = n
		}
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if c.Mode != ModeVAD && c.Mode != ModeDuration {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeVAD, ModeDuration, c.Mode)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(c.Audio.FrameDurationMS); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if c.Mode == ModeDuration {
		if err := c.Chunk.Validate(); err != nil {
			return fmt.Errorf("chunk config: %w", err)
		}
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Denoise.Validate(c.Audio.FrameDurationMS); err != nil {
		return fmt.Errorf("denoise config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the audio format
func (a *AudioConfig) Validate() error {
	switch a.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("sample_rate must be one of 8000, 16000, 32000, 48000, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	switch a.FrameDurationMS {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame_duration_ms must be one of 10, 20, 30, got %d", a.FrameDurationMS)
	}

	return nil
}

// Validate validates the speech segmentation parameters
func (v *VADConfig) Validate(frameDurationMS int) error {
	if v.Aggressiveness < 0 || v.Aggressiveness > 3 {
		return fmt.Errorf("aggressiveness must be between 0 and 3, got %d", v.Aggressiveness)
	}

	if v.SilenceThresholdMS < frameDurationMS {
		return fmt.Errorf("silence_threshold_ms must be at least one frame (%d ms), got %d",
			frameDurationMS, v.SilenceThresholdMS)
	}

	if v.PreRollMS < 0 {
		return fmt.Errorf("pre_roll_ms cannot be negative, got %d", v.PreRollMS)
	}

	return nil
}

// Validate validates the duration-mode parameters
func (ch *ChunkConfig) Validate() error {
	if ch.TargetDurationMinutes < 1 {
		return fmt.Errorf("target_duration_minutes must be at least 1, got %d", ch.TargetDurationMinutes)
	}
	return nil
}

// Validate validates the capture source configuration
func (cc *CaptureConfig) Validate() error {
	switch cc.Source {
	case SourceUDP:
		if cc.UDPPort < 1 || cc.UDPPort > 65535 {
			return fmt.Errorf("udp_port must be between 1 and 65535, got %d", cc.UDPPort)
		}
		if cc.BindAddress == "" {
			return fmt.Errorf("bind_address cannot be empty")
		}
		if cc.BufferSize < 1024 {
			return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", cc.BufferSize)
		}
	case SourceFile:
		if cc.FilePath == "" {
			return fmt.Errorf("file_path cannot be empty for the file source")
		}
	default:
		return fmt.Errorf("source must be %q or %q, got %q", SourceUDP, SourceFile, cc.Source)
	}
	return nil
}

// Validate validates the suppression parameters
func (d *DenoiseConfig) Validate(frameDurationMS int) error {
	if !d.Enabled {
		return nil
	}
	if d.LearnDurationMS < frameDurationMS {
		return fmt.Errorf("learn_duration_ms must be at least one frame (%d ms), got %d",
			frameDurationMS, d.LearnDurationMS)
	}
	return nil
}

// Validate validates the storage configuration
func (s *StorageConfig) Validate() error {
	if s.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	return nil
}

// Validate validates the HTTP server configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}
		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// FrameSamples returns the number of samples in one frame.
func (a *AudioConfig) FrameSamples() int {
	return a.SampleRate * a.FrameDurationMS / 1000
}

// FrameBytes returns the size of one frame in bytes (16-bit samples).
func (a *AudioConfig) FrameBytes() int {
	return a.FrameSamples() * 2
}

// FrameDuration returns the frame duration as a time.Duration.
func (a *AudioConfig) FrameDuration() time.Duration {
	return time.Duration(a.FrameDurationMS) * time.Millisecond
}

// MaxSilentChunks returns how many consecutive silent frames must accumulate
// before an active segment is closed.
func (c *Config) MaxSilentChunks() int {
	return c.VAD.SilenceThresholdMS / c.Audio.FrameDurationMS
}

// PreRollFrames returns the pre-roll ring capacity in frames.
func (c *Config) PreRollFrames() int {
	return c.VAD.PreRollMS / c.Audio.FrameDurationMS
}

// SilenceThreshold returns the silence threshold as a time.Duration.
func (c *Config) SilenceThreshold() time.Duration {
	return time.Duration(c.VAD.SilenceThresholdMS) * time.Millisecond
}

// TargetFramesPerFile returns how many frames a duration-mode chunk holds.
func (c *Config) TargetFramesPerFile() int {
	targetMS := c.Chunk.TargetDurationMinutes * 60 * 1000
	frames := targetMS / c.Audio.FrameDurationMS
	if targetMS%c.Audio.FrameDurationMS != 0 {
		frames++
	}
	return frames
}

// LearnFrames returns how many frames the noise-profile learn phase consumes.
func (c *Config) LearnFrames() int {
	return c.Denoise.LearnDurationMS / c.Audio.FrameDurationMS
}
