package transcription

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const maxEventSize = 1 << 20

// serverError is an error event sent by the backend inside a stream
type serverError struct {
	msg string
}

func (e *serverError) Error() string { return "server error: " + e.msg }

// readEvents reads a text/event-stream body and calls fn with each event's
// data payload. It stops without error when fn returns false.
func readEvents(r io.Reader, fn func(data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		data      []string
		eventType string
	)

	dispatch := func() (bool, error) {
		if len(data) == 0 {
			eventType = ""
			return true, nil
		}
		payload := strings.Join(data, "\n")
		kind := eventType
		data = data[:0]
		eventType = ""

		if kind == "error" {
			return false, &serverError{msg: payload}
		}
		return fn(payload), nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			cont, err := dispatch()
			if err != nil || !cont {
				return err
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "":
			// コメント行
		case "data":
			data = append(data, value)
		case "event":
			eventType = value
		case "error":
			return &serverError{msg: value}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	// 末尾の空行がないまま切断された場合も最後のイベントを渡す
	_, err := dispatch()
	return err
}

// decodeText extracts the text increment from an event payload.
// JSON objects contribute their "text" field ("" when absent), JSON strings
// their value, and every other payload is passed through raw. Only an empty
// payload yields nothing.
func decodeText(payload string) (string, bool) {
	if payload == "" {
		return "", false
	}

	trimmed := strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return payload, true
		}
		raw, ok := obj["text"]
		if !ok {
			return "", true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			// 文字列以外の text は元の表記のまま返す
			return string(raw), true
		}
		return s, true
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s, true
		}
	}
	return payload, true
}

// isServerError reports whether err came from an error event
func isServerError(err error) (string, bool) {
	var se *serverError
	if errors.As(err, &se) {
		return se.msg, true
	}
	return "", false
}
