package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

var (
	// ErrInputOverflow is reported when the device dropped input samples
	ErrInputOverflow = errors.New("audio input overflow")
	// ErrInputUnderflow is reported when the device delivered an incomplete block
	ErrInputUnderflow = errors.New("audio input underflow")
)

// PortAudioDriver implements AudioDriver using PortAudio
type PortAudioDriver struct {
	config      Config
	stream      *portaudio.Stream
	sink        FrameSink
	mu          sync.Mutex
	running     bool
	initialized bool
	terminated  bool
}

// NewPortAudioDriver creates a new PortAudio driver
func NewPortAudioDriver() (*PortAudioDriver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioDriver{}, nil
}

// ListDevices returns a list of available audio input devices
func (d *PortAudioDriver) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, Device{
			ID:        i,
			Name:      dev.Name,
			Channels:  dev.MaxInputChannels,
			IsDefault: defaultInput != nil && dev.Name == defaultInput.Name,
		})
	}

	return result, nil
}

// resolveDevice returns the PortAudio device for id (-1 = system default)
func resolveDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == -1 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil || device == nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	if id < 0 || id >= len(devices) {
		return nil, fmt.Errorf("%w: invalid device ID %d", ErrDeviceUnavailable, id)
	}

	return devices[id], nil
}

// Initialize opens an input stream on the configured device
func (d *PortAudioDriver) Initialize(config Config, sink FrameSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("cannot initialize while running")
	}
	if sink == nil {
		return fmt.Errorf("frame sink is required")
	}

	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return fmt.Errorf("failed to close existing stream: %w", err)
		}
		d.stream = nil
	}

	device, err := resolveDevice(config.DeviceID)
	if err != nil {
		return err
	}

	if device.MaxInputChannels <= 0 {
		return fmt.Errorf("%w: device '%s' (ID: %d) has no input channels (output-only device)",
			ErrDeviceUnavailable, device.Name, config.DeviceID)
	}
	if config.Channels > device.MaxInputChannels {
		return fmt.Errorf("%w: device '%s' supports %d input channels, %d requested",
			ErrDeviceUnavailable, device.Name, device.MaxInputChannels, config.Channels)
	}

	var latency time.Duration
	switch config.Latency {
	case LowLatency:
		latency = device.DefaultLowInputLatency
	default:
		latency = device.DefaultHighInputLatency
	}

	framesPerBuffer := config.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultConfig().FramesPerBuffer
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: config.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(config.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	d.config = config
	d.sink = sink

	stream, err := portaudio.OpenStream(streamParams, d.callback)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	d.stream = stream
	d.initialized = true

	return nil
}

// callback is called by PortAudio on its own thread when input is available.
// in is reused by PortAudio after return, so it is copied first.
func (d *PortAudioDriver) callback(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	samples := make([]float32, len(in))
	copy(samples, in)

	frame := Frame{
		Samples:    samples,
		Channels:   d.config.Channels,
		SampleRate: d.config.SampleRate,
	}
	Deliver(d.sink, frame, flagErrors(flags)...)
}

// flagErrors maps stream status flags to device errors
func flagErrors(flags portaudio.StreamCallbackFlags) []error {
	var errs []error
	if flags&portaudio.InputOverflow != 0 {
		errs = append(errs, ErrInputOverflow)
	}
	if flags&portaudio.InputUnderflow != 0 {
		errs = append(errs, ErrInputUnderflow)
	}
	return errs
}

// Start starts the input stream
func (d *PortAudioDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return fmt.Errorf("driver not initialized")
	}

	if d.running {
		return nil
	}

	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	d.running = true
	return nil
}

// Stop stops the input stream. PortAudio waits for the in-flight callback.
func (d *PortAudioDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}

	return nil
}

// IsRunning returns whether the stream is active
func (d *PortAudioDriver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Close releases all resources. Calling it again is a no-op.
func (d *PortAudioDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.terminated {
		return nil
	}

	if d.running {
		if err := d.stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop stream: %w", err)
		}
		d.running = false
	}

	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return fmt.Errorf("failed to close stream: %w", err)
		}
		d.stream = nil
	}

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}

	d.initialized = false
	d.terminated = true
	return nil
}
