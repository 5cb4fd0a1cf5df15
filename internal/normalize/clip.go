package normalize

import (
	"fmt"
	"math"

	"github.com/yok-tottii/EzS2T-Stream/internal/audio"
)

// Clip is decoded audio held in memory. Samples are interleaved.
type Clip struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// LoadClip decodes a WAV file into memory
func LoadClip(path string) (*Clip, error) {
	samples, info, err := audio.ReadWAV(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableAudio, err)
	}
	return &Clip{Samples: samples, Channels: info.Channels, SampleRate: info.SampleRate}, nil
}

// Frames returns the number of samples per channel
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// ToMono averages all channels into one. A mono clip is returned as is.
func (c *Clip) ToMono() *Clip {
	if c.Channels <= 1 {
		return c
	}

	frames := c.Frames()
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < c.Channels; ch++ {
			sum += c.Samples[i*c.Channels+ch]
		}
		out[i] = sum / float32(c.Channels)
	}

	return &Clip{Samples: out, Channels: 1, SampleRate: c.SampleRate}
}

// Resample converts the clip to rate by linear interpolation.
// Each channel is interpolated independently.
func (c *Clip) Resample(rate int) *Clip {
	if rate <= 0 || c.SampleRate <= 0 || rate == c.SampleRate || c.Channels <= 0 {
		return c
	}

	frames := c.Frames()
	if frames == 0 {
		return &Clip{Channels: c.Channels, SampleRate: rate}
	}

	outFrames := int(int64(frames) * int64(rate) / int64(c.SampleRate))
	step := float64(c.SampleRate) / float64(rate)
	out := make([]float32, outFrames*c.Channels)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		i1 := i0 + 1
		if i0 >= frames {
			i0 = frames - 1
		}
		if i1 >= frames {
			i1 = frames - 1
		}
		frac := float32(pos - float64(int(pos)))

		for ch := 0; ch < c.Channels; ch++ {
			a := c.Samples[i0*c.Channels+ch]
			b := c.Samples[i1*c.Channels+ch]
			out[i*c.Channels+ch] = a*(1-frac) + b*frac
		}
	}

	return &Clip{Samples: out, Channels: c.Channels, SampleRate: rate}
}

// Peak returns the largest absolute sample value
func (c *Clip) Peak() float32 {
	var peak float32
	for _, s := range c.Samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	return peak
}

// NormalizePeak scales the clip so its peak is 1.0.
// A silent clip has no peak to scale by and is returned unchanged with false.
func (c *Clip) NormalizePeak() (*Clip, bool) {
	peak := c.Peak()
	if peak == 0 {
		return c, false
	}

	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s / peak
	}
	return &Clip{Samples: out, Channels: c.Channels, SampleRate: c.SampleRate}, true
}

// Prepare mixes down to mono, resamples to rate and optionally peak-normalizes
func (c *Clip) Prepare(rate int, normalize bool) *Clip {
	out := c.ToMono().Resample(rate)
	if normalize {
		out, _ = out.NormalizePeak()
	}
	return out
}
