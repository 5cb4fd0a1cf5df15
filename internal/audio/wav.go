package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file is not a readable RIFF/WAVE container
var ErrNotWAV = errors.New("not a valid WAV file")

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVInfo describes a WAV file header
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// WriteWAV writes interleaved float samples as 16-bit PCM.
// Samples outside [-1, 1] are clipped.
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid WAV layout: %d Hz, %d channels", sampleRate, channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = floatToInt16(s)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return f.Close()
}

func floatToInt16(s float32) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(math.Round(float64(s) * math.MaxInt16))
}

// ReadWAVInfo reads only the header of a WAV file
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}

	// 長さはヘッダーを含まない data チャンクから求める
	if err := d.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: %s: %v", ErrNotWAV, path, err)
	}

	info := WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	info.Duration = pcmDuration(d.PCMLen(), info)
	return info, nil
}

// pcmDuration converts a data chunk size in bytes to playback time
func pcmDuration(pcmBytes int64, info WAVInfo) time.Duration {
	frameBytes := int64(info.Channels) * int64(info.BitDepth) / 8
	if frameBytes <= 0 || info.SampleRate <= 0 {
		return 0
	}
	frames := pcmBytes / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
}

// ReadWAV decodes an integer PCM WAV file into interleaved float samples in [-1, 1]
func ReadWAV(path string) ([]float32, WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVInfo{}, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, WAVInfo{}, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, WAVInfo{}, fmt.Errorf("%w: unsupported WAV encoding %d", ErrNotWAV, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, WAVInfo{}, fmt.Errorf("failed to decode WAV: %w", err)
	}

	info := WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if info.Channels > 0 && info.SampleRate > 0 {
		frames := len(buf.Data) / info.Channels
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}

	return intToFloat(buf.Data, info.BitDepth), info, nil
}

func intToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth == 8 {
		// 8bit WAV は符号なし
		for i, v := range data {
			out[i] = float32(v-128) / 128
		}
		return out
	}

	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range data {
		out[i] = float32(v) / scale
	}
	return out
}
