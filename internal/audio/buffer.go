package audio

import (
	"sync"
	"time"
)

// Buffer accumulates frames in arrival order.
// It copies each frame on receipt so callers may reuse their slices.
type Buffer struct {
	mu         sync.Mutex
	frames     [][]float32
	samples    int
	channels   int
	sampleRate int
}

// NewBuffer creates an empty buffer for the given stream layout
func NewBuffer(sampleRate, channels int) *Buffer {
	return &Buffer{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Append adds a frame to the end of the buffer
func (b *Buffer) Append(f Frame) {
	if len(f.Samples) == 0 {
		return
	}

	samples := make([]float32, len(f.Samples))
	copy(samples, f.Samples)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, samples)
	b.samples += len(samples)
}

// Snapshot returns all samples concatenated in capture order
func (b *Buffer) Snapshot() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float32, 0, b.samples)
	for _, f := range b.frames {
		out = append(out, f...)
	}
	return out
}

// SampleCount returns the total number of interleaved samples
func (b *Buffer) SampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

// FrameCount returns the number of appended frames
func (b *Buffer) FrameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Duration returns the captured length
func (b *Buffer) Duration() time.Duration {
	n := b.SampleCount()
	if b.channels <= 0 || b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/b.channels) * time.Second / time.Duration(b.sampleRate)
}

// SampleRate returns the rate the buffer was created for
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channels returns the interleaved channel count
func (b *Buffer) Channels() int { return b.channels }
