package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRequestFailed is matched by every backend failure: transport, timeout,
	// non-2xx status or an error event inside a stream
	ErrRequestFailed = errors.New("transcription request failed")
	// ErrStreamConsumed is yielded when a stream is iterated a second time
	ErrStreamConsumed = errors.New("transcription stream already consumed")
)

// RequestError describes a failed backend call
type RequestError struct {
	Endpoint   string
	StatusCode int    // 0 when no response was received
	Body       string // response body or server error message, if any
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s", ErrRequestFailed, e.Endpoint)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		fmt.Fprintf(&b, ": %s", body)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRequestFailed) match
func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }

// retryable reports whether another attempt could succeed
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch {
	case reqErr.StatusCode == 0:
		return true
	case reqErr.StatusCode == 429:
		return true
	case reqErr.StatusCode >= 500:
		return true
	}
	return false
}
