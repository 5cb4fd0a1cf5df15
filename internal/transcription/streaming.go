package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"sync/atomic"

	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
	"github.com/yok-tottii/EzS2T-Stream/internal/metrics"
)

// StreamingClient talks to the backend's server-sent event endpoints
type StreamingClient struct {
	*client
}

// NewStreamingClient creates a streaming client
func NewStreamingClient(config Config, log *logger.Logger) (*StreamingClient, error) {
	c, err := newClient(config, log)
	if err != nil {
		return nil, err
	}
	return &StreamingClient{client: c}, nil
}

// once wraps body so the returned sequence runs it a single time.
// Later iterations yield ErrStreamConsumed.
func once(body func(yield func(Event) bool)) iter.Seq[Event] {
	var used atomic.Bool
	return func(yield func(Event) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(Event{Err: ErrStreamConsumed})
			return
		}
		body(yield)
	}
}

// TranscribeStream uploads samples and yields text increments as the
// backend produces them. Nothing happens until the sequence is iterated.
// The temporary upload file is removed however iteration ends.
func (c *StreamingClient) TranscribeStream(ctx context.Context, samples []float32, language string) iter.Seq[Event] {
	samples = slices.Clone(samples)

	return once(func(yield func(Event) bool) {
		path, err := c.writeTemp(samples)
		if err != nil {
			yield(Event{Err: err})
			return
		}
		defer c.removeTemp(path)

		c.streamUpload(ctx, path, language, yield)
	})
}

// StreamFile is TranscribeStream for an existing canonical WAV file.
// The file belongs to the caller and is left in place.
func (c *StreamingClient) StreamFile(ctx context.Context, path, language string) iter.Seq[Event] {
	return once(func(yield func(Event) bool) {
		c.streamUpload(ctx, path, language, yield)
	})
}

// Transcribe collects the whole stream into one string
func (c *StreamingClient) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	return Collect(c.TranscribeStream(ctx, samples, language))
}

// TranscribeFile collects the whole stream for a file into one string
func (c *StreamingClient) TranscribeFile(ctx context.Context, path, language string) (string, error) {
	return Collect(c.StreamFile(ctx, path, language))
}

func (c *StreamingClient) streamUpload(ctx context.Context, path, language string, yield func(Event) bool) {
	const endpoint = "transcribe_stream"

	body, contentType, err := c.uploadForm(path, language)
	if err != nil {
		yield(Event{Err: err})
		return
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/transcribe/stream", bytes.NewReader(body))
	if err != nil {
		yield(Event{Err: err})
		return
	}
	req.Header.Set("Content-Type", contentType)

	c.log.Info("ストリーミングAPIにリクエスト送信: %s/transcribe/stream", c.config.BaseURL)
	c.stream(req, endpoint, func(payload string) bool {
		text, ok := decodeText(payload)
		if !ok {
			return true
		}
		metrics.StreamEvent()
		return yield(Event{Text: text})
	}, yield)
}

// TranslateStream sends text for translation and yields the translated increments
func (c *StreamingClient) TranslateStream(ctx context.Context, text, targetLanguage string) iter.Seq[Event] {
	return once(func(yield func(Event) bool) {
		const endpoint = "translate_stream"

		body, err := json.Marshal(translateRequest{Text: text, TargetLanguage: targetLanguage, Model: c.config.Model})
		if err != nil {
			yield(Event{Err: err})
			return
		}

		req, err := c.newRequest(ctx, http.MethodPost, "/translate/stream", bytes.NewReader(body))
		if err != nil {
			yield(Event{Err: err})
			return
		}
		req.Header.Set("Content-Type", "application/json")

		c.stream(req, endpoint, func(payload string) bool {
			out, ok := decodeText(payload)
			if !ok {
				return true
			}
			metrics.StreamEvent()
			return yield(Event{Text: out})
		}, yield)
	})
}

// Translate collects the whole translation stream into one string
func (c *StreamingClient) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	return Collect(c.TranslateStream(ctx, text, targetLanguage))
}

// stream performs req and feeds every event payload to onData. A failure is
// reported through yield as the final event.
func (c *StreamingClient) stream(req *http.Request, endpoint string, onData func(string) bool, yield func(Event) bool) {
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req, endpoint)
	if err != nil {
		c.log.Error("ストリーミングAPIリクエスト失敗: %v", err)
		yield(Event{Err: err})
		return
	}
	defer resp.Body.Close()
	c.log.Info("ストリーミング接続確立")

	stopped := false
	err = readEvents(resp.Body, func(payload string) bool {
		c.log.Debug("受信データ: %s", payload)
		if !onData(payload) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return
	}
	if err == nil {
		// キャンセルで本文が途中で閉じられた場合も終端エラーとして通知する
		if err = req.Context().Err(); err == nil {
			return
		}
	}

	reqErr := &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	if msg, ok := isServerError(err); ok {
		reqErr.Body = msg
	} else if ctxErr := req.Context().Err(); ctxErr != nil {
		reqErr.Err = ctxErr
	}
	c.log.Error("ストリーミング受信中にエラー: %v", reqErr)
	yield(Event{Err: reqErr})
}

// SupportedLanguages returns the backend's language code to name mapping,
// assembled from /languages/stream on first use and cached afterwards
func (c *StreamingClient) SupportedLanguages(ctx context.Context) (map[string]string, error) {
	return c.cachedLanguages(ctx, c.fetchLanguages)
}

func (c *StreamingClient) fetchLanguages(ctx context.Context) (map[string]string, error) {
	const endpoint = "languages_stream"

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/languages/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	langs := make(map[string]string)
	err = readEvents(resp.Body, func(payload string) bool {
		var chunk map[string]any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.log.Warn("言語リストの解析に失敗: %v", err)
			return true
		}
		for code, name := range chunk {
			if s, ok := name.(string); ok {
				langs[code] = s
			} else {
				langs[code] = fmt.Sprint(name)
			}
		}
		return true
	})
	if err != nil {
		reqErr := &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
		if msg, ok := isServerError(err); ok {
			reqErr.Body = msg
		}
		return nil, reqErr
	}

	return langs, nil
}
