package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv registers cleanup for key and leaves it unset for the test body.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

var allKeys = []string{
	"API_BASE_URL", "API_HOST", "API_PORT", "API_KEY", "WHISPER_MODEL", "BATCH_SIZE", "LANGUAGE",
	"REQUEST_TIMEOUT", "RETRY_MAX_ATTEMPTS", "SAMPLE_RATE", "CHUNK_SIZE", "CHANNELS",
	"AUDIO_DEVICE_ID", "RECORD_DURATION", "HOTKEY", "TRANSCODER", "FFMPEG_COMMAND",
	"FFPROBE_COMMAND", "TEMP_DIR", "LOG_LEVEL", "LOG_FILE", "LOG_CONSOLE",
	"LOG_RETENTION_DAYS", "METRICS_PORT", "NOTIFY",
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t, allKeys...)

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if config.APIHost != "127.0.0.1" {
		t.Errorf("Expected APIHost '127.0.0.1', got '%s'", config.APIHost)
	}
	if config.APIPort != 8090 {
		t.Errorf("Expected APIPort 8090, got %d", config.APIPort)
	}
	if config.WhisperModel != "base" {
		t.Errorf("Expected WhisperModel 'base', got '%s'", config.WhisperModel)
	}
	if config.BatchSize != 16 {
		t.Errorf("Expected BatchSize 16, got %d", config.BatchSize)
	}
	if config.SampleRate != 16000 {
		t.Errorf("Expected SampleRate 16000, got %d", config.SampleRate)
	}
	if config.ChunkSize != 1024 {
		t.Errorf("Expected ChunkSize 1024, got %d", config.ChunkSize)
	}
	if config.Channels != 1 {
		t.Errorf("Expected Channels 1, got %d", config.Channels)
	}
	if config.AudioDeviceID != -1 {
		t.Errorf("Expected AudioDeviceID -1, got %d", config.AudioDeviceID)
	}
	if config.RecordDuration != 60*time.Second {
		t.Errorf("Expected RecordDuration 60s, got %v", config.RecordDuration)
	}
	if config.Hotkey != "ctrl+r" {
		t.Errorf("Expected Hotkey 'ctrl+r', got '%s'", config.Hotkey)
	}
	if config.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel 'INFO', got '%s'", config.LogLevel)
	}
	if config.LogFile != "whisper.log" {
		t.Errorf("Expected LogFile 'whisper.log', got '%s'", config.LogFile)
	}
	if config.Transcoder != "ffmpeg" {
		t.Errorf("Expected Transcoder 'ffmpeg', got '%s'", config.Transcoder)
	}
	if config.BaseURL() != "http://127.0.0.1:8090" {
		t.Errorf("Unexpected BaseURL: %s", config.BaseURL())
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t, allKeys...)
	t.Setenv("API_BASE_URL", "https://whisper.example.com/")
	t.Setenv("BATCH_SIZE", "8")
	t.Setenv("RECORD_DURATION", "5s")
	t.Setenv("TRANSCODER", "native")

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if config.BaseURL() != "https://whisper.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %s", config.BaseURL())
	}
	if config.BatchSize != 8 {
		t.Errorf("Expected BatchSize 8, got %d", config.BatchSize)
	}
	if config.RecordDuration != 5*time.Second {
		t.Errorf("Expected RecordDuration 5s, got %v", config.RecordDuration)
	}
	if config.Transcoder != "native" {
		t.Errorf("Expected Transcoder 'native', got '%s'", config.Transcoder)
	}
}

func TestLoadFrom_FirstPresentFileWins(t *testing.T) {
	clearEnv(t, allKeys...)

	tmpDir := t.TempDir()
	missing := filepath.Join(tmpDir, ".env.docker.local")
	local := filepath.Join(tmpDir, ".env.local")
	base := filepath.Join(tmpDir, ".env")

	if err := os.WriteFile(local, []byte("WHISPER_MODEL=small\nAPI_PORT=9000\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	if err := os.WriteFile(base, []byte("WHISPER_MODEL=large\nBATCH_SIZE=4\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	config, used, err := LoadFrom([]string{missing, local, base})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if used != local {
		t.Errorf("Expected %s to be used, got %s", local, used)
	}
	if config.WhisperModel != "small" {
		t.Errorf("Expected WhisperModel 'small', got '%s'", config.WhisperModel)
	}
	if config.APIPort != 9000 {
		t.Errorf("Expected APIPort 9000, got %d", config.APIPort)
	}
	// 2番目以降のファイルは読み込まれない
	if config.BatchSize != 16 {
		t.Errorf("Expected BatchSize default 16, got %d", config.BatchSize)
	}
}

func TestLoadFrom_EnvironmentBeatsFile(t *testing.T) {
	clearEnv(t, allKeys...)
	t.Setenv("WHISPER_MODEL", "medium")

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("WHISPER_MODEL=tiny\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	config, _, err := LoadFrom([]string{envFile})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if config.WhisperModel != "medium" {
		t.Errorf("Expected WhisperModel 'medium', got '%s'", config.WhisperModel)
	}
}

func TestLoadFrom_NoFiles(t *testing.T) {
	clearEnv(t, allKeys...)

	_, used, err := LoadFrom([]string{filepath.Join(t.TempDir(), "nope.env")})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if used != "" {
		t.Errorf("Expected no env file, got %s", used)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIHost:          "127.0.0.1",
			APIPort:          8090,
			BatchSize:        16,
			SampleRate:       16000,
			ChunkSize:        1024,
			Channels:         1,
			RecordDuration:   time.Minute,
			Hotkey:           "ctrl+r",
			RequestTimeout:   time.Minute,
			RetryMaxAttempts: 3,
			Transcoder:       "ffmpeg",
			LogLevel:         "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.APIPort = 0 }, "API_PORT"},
		{"bad batch size", func(c *Config) { c.BatchSize = 0 }, "BATCH_SIZE"},
		{"bad channels", func(c *Config) { c.Channels = 3 }, "CHANNELS"},
		{"negative duration", func(c *Config) { c.RecordDuration = -time.Second }, "RECORD_DURATION"},
		{"no stop condition", func(c *Config) { c.RecordDuration = 0; c.Hotkey = "" }, "HOTKEY"},
		{"bad transcoder", func(c *Config) { c.Transcoder = "sox" }, "TRANSCODER"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "LOG_LEVEL"},
		{"zero retries", func(c *Config) { c.RetryMaxAttempts = 0 }, "RETRY_MAX_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("No home directory: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"home", "~/logs/whisper.log", filepath.Join(homeDir, "logs", "whisper.log")},
		{"absolute", "/var/log/whisper.log", "/var/log/whisper.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath failed: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLogPaths(t *testing.T) {
	c := &Config{LogFile: "/tmp/ezs2t/whisper.log"}

	dir, name, err := c.LogPaths()
	if err != nil {
		t.Fatalf("LogPaths failed: %v", err)
	}
	if dir != "/tmp/ezs2t" || name != "whisper.log" {
		t.Errorf("Unexpected split: %s %s", dir, name)
	}
}
