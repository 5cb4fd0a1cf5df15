package audio

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when no usable input device exists
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// Device represents an audio input device
type Device struct {
	ID        int
	Name      string
	Channels  int
	IsDefault bool
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// Config holds audio configuration
type Config struct {
	DeviceID        int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	Latency         LatencyMode
}

// DefaultConfig returns the default audio configuration
// Sample rate: 16kHz (Whisper recommended)
// Channels: 1 (mono)
// Latency: HighStability
func DefaultConfig() Config {
	return Config{
		DeviceID:        -1, // -1 means use default device
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 1024,
		Latency:         HighStability,
	}
}

// Frame is one block of interleaved samples delivered by the device.
// Samples belongs to the frame; drivers never reuse it.
type Frame struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Duration returns the playback length of the frame
func (f Frame) Duration() time.Duration {
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return 0
	}
	n := len(f.Samples) / f.Channels
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

// FrameSink receives frames and device errors from a driver.
// Both methods are called from the driver's callback context.
type FrameSink interface {
	OnFrame(f Frame)
	OnDeviceError(err error)
}

// Deliver hands one captured block to sink and then reports the device
// errors flagged with it. The block is always delivered before the errors.
func Deliver(sink FrameSink, f Frame, errs ...error) {
	sink.OnFrame(f)
	for _, err := range errs {
		if err != nil {
			sink.OnDeviceError(err)
		}
	}
}

// AudioDriver is the interface for audio input
// This abstraction allows for future replacement of PortAudio with other libraries (e.g., miniaudio)
type AudioDriver interface {
	// ListDevices returns a list of available audio input devices
	ListDevices() ([]Device, error)

	// Initialize opens the configured device and routes its frames to sink
	Initialize(config Config, sink FrameSink) error

	// Start starts delivering frames
	Start() error

	// Stop halts the stream. Calling it when not running is a no-op.
	Stop() error

	// IsRunning returns whether frames are currently being delivered
	IsRunning() bool

	// Close releases all resources
	Close() error
}
