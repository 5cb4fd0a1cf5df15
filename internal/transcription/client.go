package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"maps"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yok-tottii/EzS2T-Stream/internal/audio"
	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
	"github.com/yok-tottii/EzS2T-Stream/internal/metrics"
	"github.com/yok-tottii/EzS2T-Stream/internal/normalize"
)

const maxErrorBody = 64 * 1024

// Event is one text increment of a streamed transcription.
// An Event with a non-nil Err is the last one.
type Event struct {
	Text string
	Err  error
}

// Collect concatenates every increment of seq
func Collect(seq iter.Seq[Event]) (string, error) {
	var b strings.Builder
	for ev := range seq {
		if ev.Err != nil {
			return b.String(), ev.Err
		}
		b.WriteString(ev.Text)
	}
	return b.String(), nil
}

// Transcriber is implemented by both backend clients
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
	TranscribeFile(ctx context.Context, path, language string) (string, error)
	SupportedLanguages(ctx context.Context) (map[string]string, error)
	Health(ctx context.Context) (*HealthStatus, error)
}

// HealthStatus is the backend's /health response
type HealthStatus struct {
	Status     string `json:"status"`
	Model      string `json:"model"`
	APIVersion string `json:"api_version"`
}

// Config holds backend connection settings
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	BatchSize  int
	SampleRate int // rate of samples passed to Transcribe
	Channels   int

	// Timeout bounds a whole standard request, and waiting for response
	// headers on a stream
	Timeout       time.Duration
	MaxAttempts   int
	RetryInterval time.Duration

	// TempDir holds the temporary upload file; empty uses the OS default
	TempDir string
}

// DefaultConfig returns the default client settings
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://127.0.0.1:8090",
		Model:         "base",
		BatchSize:     16,
		SampleRate:    16000,
		Channels:      1,
		Timeout:       120 * time.Second,
		MaxAttempts:   3,
		RetryInterval: 500 * time.Millisecond,
	}
}

// client is the part shared by the standard and streaming clients
type client struct {
	config Config
	http   *http.Client
	log    *logger.Logger

	langMu          sync.Mutex
	languages       map[string]string
	languagesLoaded bool
}

func newClient(config Config, log *logger.Logger) (*client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", config.BaseURL)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.Channels <= 0 {
		config.Channels = defaults.Channels
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}
	if log == nil {
		log = logger.NewNop()
	}

	// ストリームは長時間続くため Client.Timeout は使わない
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.Timeout

	return &client{
		config: config,
		http:   &http.Client{Transport: transport},
		log:    log,
	}, nil
}

// Config returns the effective settings
func (c *client) Config() Config {
	return c.config
}

func (c *client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	return req, nil
}

// do sends req. Any failure is returned as a *RequestError, and a non-2xx
// response has its body read into the error and closed.
func (c *client) do(req *http.Request, endpoint string) (*http.Response, error) {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.Request(endpoint, 0, time.Since(started))
		if ctxErr := req.Context().Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &RequestError{Endpoint: endpoint, Err: err}
	}
	metrics.Request(endpoint, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// getJSON performs a GET and decodes the JSON response into v
func (c *client) getJSON(ctx context.Context, path, endpoint string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}

// Health checks backend liveness
func (c *client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "/health", "health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// cachedLanguages fills the language cache once. A failed fetch is not cached.
func (c *client) cachedLanguages(ctx context.Context, fetch func(context.Context) (map[string]string, error)) (map[string]string, error) {
	c.langMu.Lock()
	defer c.langMu.Unlock()

	if c.languagesLoaded {
		return maps.Clone(c.languages), nil
	}

	langs, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if langs == nil {
		langs = map[string]string{}
	}

	c.languages = langs
	c.languagesLoaded = true
	c.log.Debug("対応言語を取得: %d件", len(langs))
	return maps.Clone(langs), nil
}

// uploadForm builds the multipart body for an audio upload
func (c *client) uploadForm(path, language string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="audio.wav"`)
	h.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"language", language},
		{"model", c.config.Model},
		{"batch_size", strconv.Itoa(c.config.BatchSize)},
	}
	for _, kv := range fields {
		// 言語未指定はサーバー側の自動判定に任せる
		if kv[1] == "" {
			continue
		}
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", kv[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// writeTemp saves samples as a canonical WAV in the temp directory
func (c *client) writeTemp(samples []float32) (string, error) {
	f, err := os.CreateTemp(c.config.TempDir, "ezs2t_stream_*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	path := f.Name()
	f.Close()

	clip := (&normalize.Clip{
		Samples:    samples,
		Channels:   c.config.Channels,
		SampleRate: c.config.SampleRate,
	}).Prepare(normalize.CanonicalSampleRate, false)

	if err := audio.WriteWAV(path, clip.Samples, clip.SampleRate, clip.Channels); err != nil {
		os.Remove(path)
		return "", err
	}

	c.log.Debug("一時ファイルに音声を保存: %s", path)
	return path, nil
}

func (c *client) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("一時ファイルの削除に失敗: %v", err)
	}
}
