package recording

import (
	"context"
	"fmt"
)

// Notifier is told when an external trigger fires. Identical to hotkey.Notifier.
type Notifier = interface{ Notify() }

// StopListener is an external stop trigger armed for a session's lifetime
type StopListener interface {
	Start(n Notifier) error
	Stop() error
}

// RecordWithListener arms listener against the session's signal, records
// until either trigger fires, and always disarms the listener on return.
func RecordWithListener(ctx context.Context, s *Session, listener StopListener, path string) ([]float32, error) {
	if listener == nil {
		return s.RecordAndSave(ctx, path)
	}

	if err := listener.Start(s.Signal()); err != nil {
		return nil, fmt.Errorf("failed to start stop listener: %w", err)
	}
	defer func() {
		if err := listener.Stop(); err != nil {
			s.log.Warn("ホットキーリスナーの停止に失敗: %v", err)
		}
	}()

	return s.RecordAndSave(ctx, path)
}
