package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
	"github.com/yok-tottii/EzS2T-Stream/internal/metrics"
)

// StandardClient performs blocking request/response calls
type StandardClient struct {
	*client
}

// NewStandardClient creates a non-streaming client
func NewStandardClient(config Config, log *logger.Logger) (*StandardClient, error) {
	c, err := newClient(config, log)
	if err != nil {
		return nil, err
	}
	return &StandardClient{client: c}, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	Model          string `json:"model"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Transcribe uploads samples and waits for the full text
func (c *StandardClient) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	path, err := c.writeTemp(samples)
	if err != nil {
		return "", err
	}
	defer c.removeTemp(path)

	return c.TranscribeFile(ctx, path, language)
}

// TranscribeFile uploads an existing canonical WAV file and waits for the full text
func (c *StandardClient) TranscribeFile(ctx context.Context, path, language string) (string, error) {
	body, contentType, err := c.uploadForm(path, language)
	if err != nil {
		return "", err
	}

	var out transcribeResponse
	err = c.withRetry(ctx, "transcribe", func(ctx context.Context) (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, "/transcribe", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// Translate sends text for translation
func (c *StandardClient) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	body, err := json.Marshal(translateRequest{Text: text, TargetLanguage: targetLanguage, Model: c.config.Model})
	if err != nil {
		return "", err
	}

	var out translateResponse
	err = c.withRetry(ctx, "translate", func(ctx context.Context) (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, "/translate", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &out)
	if err != nil {
		return "", err
	}
	return out.TranslatedText, nil
}

// SupportedLanguages returns the backend's language code to name mapping,
// fetched from /languages on first use and cached afterwards
func (c *StandardClient) SupportedLanguages(ctx context.Context) (map[string]string, error) {
	return c.cachedLanguages(ctx, func(ctx context.Context) (map[string]string, error) {
		var langs map[string]string
		if err := c.getJSON(ctx, "/languages", "languages", &langs); err != nil {
			return nil, err
		}
		return langs, nil
	})
}

// withRetry sends the request built by build, retrying transport errors,
// 429 and 5xx with exponential backoff, and decodes the JSON response into v
func (c *StandardClient) withRetry(ctx context.Context, endpoint string, build func(context.Context) (*http.Request, error), v any) error {
	operation := func() (struct{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		req, err := build(reqCtx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.do(req, endpoint)
		if err != nil {
			if !retryable(err) || ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
		}
		if err := json.Unmarshal(data, v); err != nil {
			return struct{}{}, backoff.Permanent(&RequestError{
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Body:       string(data),
				Err:        fmt.Errorf("invalid response: %w", err),
			})
		}
		return struct{}{}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.config.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.Retry(endpoint)
			c.log.Warn("リクエスト失敗、%v 後に再試行します: %v", wait.Round(time.Millisecond), err)
		}),
	)
	if err != nil {
		c.log.Error("APIリクエスト失敗 (%s): %v", endpoint, err)
	}
	return err
}
