package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvFiles lists the env files consulted at startup, highest precedence first.
// Only the first file that exists is loaded.
var EnvFiles = []string{
	filepath.Join("docker_api", ".env.docker.local"),
	filepath.Join("docker_api", ".env.docker"),
	".env.local",
	".env",
}

// Config holds application configuration
type Config struct {
	// Transcription backend
	APIBaseURL   string `envconfig:"API_BASE_URL" default:""` // overrides API_HOST/API_PORT when set
	APIHost      string `envconfig:"API_HOST" default:"127.0.0.1"`
	APIPort      int    `envconfig:"API_PORT" default:"8090"`
	APIKey       string `envconfig:"API_KEY" default:""`
	WhisperModel string `envconfig:"WHISPER_MODEL" default:"base"`
	BatchSize    int    `envconfig:"BATCH_SIZE" default:"16"`
	Language     string `envconfig:"LANGUAGE" default:""` // empty = server-side detection

	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`

	// Audio capture
	SampleRate     int           `envconfig:"SAMPLE_RATE" default:"16000"`
	ChunkSize      int           `envconfig:"CHUNK_SIZE" default:"1024"`
	Channels       int           `envconfig:"CHANNELS" default:"1"`
	AudioDeviceID  int           `envconfig:"AUDIO_DEVICE_ID" default:"-1"`
	RecordDuration time.Duration `envconfig:"RECORD_DURATION" default:"60s"` // 0 = until hotkey
	Hotkey         string        `envconfig:"HOTKEY" default:"ctrl+r"`

	// Format pipeline
	Transcoder     string `envconfig:"TRANSCODER" default:"ffmpeg"` // ffmpeg or native
	FFmpegCommand  string `envconfig:"FFMPEG_COMMAND" default:"ffmpeg"`
	FFprobeCommand string `envconfig:"FFPROBE_COMMAND" default:"ffprobe"`
	TempDir        string `envconfig:"TEMP_DIR" default:""`

	// Logging
	LogLevel         string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFile          string `envconfig:"LOG_FILE" default:"whisper.log"`
	LogConsole       bool   `envconfig:"LOG_CONSOLE" default:"true"`
	LogRetentionDays int    `envconfig:"LOG_RETENTION_DAYS" default:"7"`

	// Local surfaces
	MetricsPort int  `envconfig:"METRICS_PORT" default:"0"` // 0 = disabled
	Notify      bool `envconfig:"NOTIFY" default:"false"`
}

// Load resolves configuration from the first present env file in EnvFiles,
// then from the process environment.
func Load() (*Config, string, error) {
	return LoadFrom(EnvFiles)
}

// LoadFrom is Load with an explicit env file precedence list.
// It returns the env file that was applied, or "" if none existed.
func LoadFrom(files []string) (*Config, string, error) {
	used := ""
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// 既存の環境変数は上書きしない
		if err := godotenv.Load(f); err != nil {
			return nil, "", fmt.Errorf("failed to load env file %s: %w", f, err)
		}
		used = f
		break
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, used, err
	}
	return cfg, used, nil
}

// LoadFromEnv reads configuration from the process environment only
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BaseURL returns the transcription backend root URL without a trailing slash
func (c *Config) BaseURL() string {
	if c.APIBaseURL != "" {
		return strings.TrimRight(c.APIBaseURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.APIHost, c.APIPort)
}

// LogPaths splits LOG_FILE into an absolute directory and a file name
func (c *Config) LogPaths() (dir, name string, err error) {
	path, err := ExpandPath(c.LogFile)
	if err != nil {
		return "", "", err
	}
	return filepath.Dir(path), filepath.Base(path), nil
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	if c.APIBaseURL == "" && c.APIHost == "" {
		return fmt.Errorf("API_HOST cannot be empty")
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API_PORT: %d (must be between 1 and 65535)", c.APIPort)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid BATCH_SIZE: %d (must be positive)", c.BatchSize)
	}

	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SAMPLE_RATE: %d (must be positive)", c.SampleRate)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid CHUNK_SIZE: %d (must be positive)", c.ChunkSize)
	}

	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("invalid CHANNELS: %d (must be 1 or 2)", c.Channels)
	}

	if c.RecordDuration < 0 || c.RecordDuration > time.Hour {
		return fmt.Errorf("invalid RECORD_DURATION: %s (must be between 0 and 1h)", c.RecordDuration)
	}

	if c.RecordDuration == 0 && c.Hotkey == "" {
		return fmt.Errorf("RECORD_DURATION=0 requires HOTKEY to stop recording")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %s (must be positive)", c.RequestTimeout)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("invalid RETRY_MAX_ATTEMPTS: %d (must be at least 1)", c.RetryMaxAttempts)
	}

	switch c.Transcoder {
	case "ffmpeg", "native":
	default:
		return fmt.Errorf("invalid TRANSCODER: %s (must be 'ffmpeg' or 'native')", c.Transcoder)
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s", c.LogLevel)
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d", c.MetricsPort)
	}

	return nil
}
