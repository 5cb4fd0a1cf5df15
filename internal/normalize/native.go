package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yok-tottii/EzS2T-Stream/internal/audio"
)

// WAVProber reads WAV headers without external tools
type WAVProber struct{}

// Probe implements Prober
func (WAVProber) Probe(_ context.Context, path string) (Info, error) {
	info, err := audio.ReadWAVInfo(path)
	if err != nil {
		if errors.Is(err, audio.ErrNotWAV) {
			return Info{}, fmt.Errorf("%w: %v", ErrUnreadableAudio, err)
		}
		return Info{}, err
	}

	return Info{
		Format:     "wav",
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
		Duration:   info.Duration.Seconds(),
	}, nil
}

// InProcess transcodes WAV input with go-audio, for hosts without ffmpeg
type InProcess struct {
	// NormalizePeak scales the output so its loudest sample is full scale
	NormalizePeak bool
}

// Transcode implements Transcoder
func (t InProcess) Transcode(ctx context.Context, in, out string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(out); err == nil {
			return &ConversionError{Input: in, Err: fmt.Errorf("output %s exists and overwrite is disabled", out)}
		}
	}

	clip, err := LoadClip(in)
	if err != nil {
		return &ConversionError{Input: in, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prepared := clip.Prepare(CanonicalSampleRate, t.NormalizePeak)
	if err := audio.WriteWAV(out, prepared.Samples, prepared.SampleRate, prepared.Channels); err != nil {
		return &ConversionError{Input: in, Err: err}
	}
	return nil
}
