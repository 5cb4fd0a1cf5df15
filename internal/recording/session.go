package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yok-tottii/EzS2T-Stream/internal/audio"
	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
	"github.com/yok-tottii/EzS2T-Stream/internal/metrics"
)

var (
	// ErrSessionFinished is returned by Start on a stopped session
	ErrSessionFinished = errors.New("capture session already finished")
	// ErrStillRunning is returned when captured audio is read before Stop
	ErrStillRunning = errors.New("capture session still running")
)

// State represents the current session state
type State int

const (
	// Idle means the session has not started
	Idle State = iota
	// Running means frames are being captured
	Running
	// Stopped means capture ended; terminal
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Config holds configuration for a capture session
type Config struct {
	Audio    audio.Config
	Duration time.Duration // 0 = run until stopped externally
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Audio:    audio.DefaultConfig(),
		Duration: 60 * time.Second,
	}
}

// Session is one bounded recording from Start to Stop.
// A stopped session cannot be restarted; create a new one.
type Session struct {
	id        string
	config    Config
	driver    audio.AudioDriver
	signal    *StopSignal
	buffer    *audio.Buffer
	log       *logger.Logger
	mu        sync.Mutex
	state     State
	startedAt time.Time
	target    int // interleaved samples at which the duration fires
}

// NewSession creates an idle session that captures from driver.
// The session owns the driver and closes it on Stop.
func NewSession(driver audio.AudioDriver, config Config, log *logger.Logger) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	id := uuid.NewString()

	target := 0
	if config.Duration > 0 {
		frames := int(config.Duration.Seconds() * float64(config.Audio.SampleRate))
		target = frames * config.Audio.Channels
	}

	return &Session{
		id:     id,
		config: config,
		driver: driver,
		signal: NewStopSignal(),
		buffer: audio.NewBuffer(config.Audio.SampleRate, config.Audio.Channels),
		log:    log.With("session", id),
		state:  Idle,
		target: target,
	}
}

// ID returns the session identifier used in logs
func (s *Session) ID() string { return s.id }

// Signal returns the session's stop condition
func (s *Session) Signal() *StopSignal { return s.signal }

// Config returns the session configuration
func (s *Session) Config() Config { return s.config }

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether capture is active
func (s *Session) IsRunning() bool {
	return s.State() == Running
}

// Start begins device capture. Calling it while running is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Running:
		return nil
	case Stopped:
		return ErrSessionFinished
	}

	if err := s.driver.Initialize(s.config.Audio, s); err != nil {
		s.abortLocked()
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	s.startedAt = time.Now()
	if err := s.driver.Start(); err != nil {
		s.abortLocked()
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	s.state = Running
	metrics.SessionStarted()
	s.log.Info("録音開始 (デバイス: %d, %dHz, %dch, 上限: %s)",
		s.config.Audio.DeviceID, s.config.Audio.SampleRate, s.config.Audio.Channels, s.config.Duration)

	return nil
}

// abortLocked releases the driver after a failed Start. The session becomes
// Stopped so that a retry uses a fresh session and driver.
func (s *Session) abortLocked() {
	if err := s.driver.Close(); err != nil {
		s.log.Warn("オーディオデバイスの解放に失敗: %v", err)
	}
	s.state = Stopped
	s.signal.Fire(ReasonDeviceError)
}

// OnFrame implements audio.FrameSink. It runs on the driver's callback thread.
func (s *Session) OnFrame(f audio.Frame) {
	if s.signal.Fired() {
		return
	}

	s.buffer.Append(f)

	if s.target > 0 && s.buffer.SampleCount() >= s.target {
		if s.signal.Fire(ReasonDuration) {
			s.log.Debug("録音時間の上限に到達")
			// コールバック内からはストリームを停止できない
			go s.Stop()
		}
	}
}

// OnDeviceError implements audio.FrameSink. Captured frames are kept.
func (s *Session) OnDeviceError(err error) {
	metrics.DeviceError()
	s.log.Error("オーディオデバイスエラー: %v", err)

	if s.signal.Fire(ReasonDeviceError) {
		go s.Stop()
	}
}

// Stop halts the device and releases it. Calling it when not running is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return nil
	}

	s.signal.Fire(ReasonManual)

	var errs []error
	if err := s.driver.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop audio device: %w", err))
	}
	// 停止に失敗しても必ずデバイスを解放する
	if err := s.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audio device: %w", err))
	}

	s.state = Stopped

	captured := s.buffer.Duration()
	reason := s.signal.Reason()
	metrics.SessionStopped(reason.String(), captured)
	s.log.Info("録音停止 (理由: %s, 録音時間: %s, フレーム数: %d)", reason, captured, s.buffer.FrameCount())

	return errors.Join(errs...)
}

// Samples returns the captured interleaved samples. Only valid after Stop.
func (s *Session) Samples() ([]float32, error) {
	if s.State() != Stopped {
		return nil, ErrStillRunning
	}
	return s.buffer.Snapshot(), nil
}

// StartedAt returns when capture began, or the zero time
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Captured returns the captured length so far
func (s *Session) Captured() time.Duration {
	return s.buffer.Duration()
}

// RecordAndSave starts capture, waits for the stop signal or ctx, stops,
// and writes the captured audio to path as 16-bit PCM WAV.
// Partial audio is saved and returned even when ctx ends first.
func (s *Session) RecordAndSave(ctx context.Context, path string) ([]float32, error) {
	if err := s.Start(); err != nil {
		return nil, err
	}

	if _, err := s.signal.Wait(ctx); err != nil {
		s.signal.Fire(ReasonCanceled)
	}

	stopErr := s.Stop()
	if stopErr != nil {
		s.log.Warn("録音停止時のエラー: %v", stopErr)
	}

	samples, err := s.Samples()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := audio.WriteWAV(path, samples, s.config.Audio.SampleRate, s.config.Audio.Channels); err != nil {
			return samples, fmt.Errorf("failed to save recording: %w", err)
		}
		s.log.Info("録音を保存しました: %s", path)
	}

	return samples, nil
}
