package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadWAVInfo_DurationExcludesHeader(t *testing.T) {
	tests := []struct {
		name     string
		frames   int
		rate     int
		channels int
		expected time.Duration
	}{
		{"mono 16k quarter second", 4000, 16000, 1, 250 * time.Millisecond},
		{"stereo 44.1k one second", 44100, 44100, 2, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clip.wav")
			if err := WriteWAV(path, make([]float32, tt.frames*tt.channels), tt.rate, tt.channels); err != nil {
				t.Fatalf("WriteWAV failed: %v", err)
			}

			info, err := ReadWAVInfo(path)
			if err != nil {
				t.Fatalf("ReadWAVInfo failed: %v", err)
			}
			if info.Duration != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, info.Duration)
			}
		})
	}
}

func TestPCMDuration(t *testing.T) {
	info := WAVInfo{SampleRate: 16000, Channels: 1, BitDepth: 16}
	if got := pcmDuration(32000, info); got != time.Second {
		t.Errorf("Expected 1s, got %v", got)
	}
	if got := pcmDuration(32000, WAVInfo{}); got != 0 {
		t.Errorf("Expected 0 for unknown layout, got %v", got)
	}
}

func TestWriteWAV_ReadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	if err := WriteWAV(path, samples, 16000, 1); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	info, err := ReadWAVInfo(path)
	if err != nil {
		t.Fatalf("ReadWAVInfo failed: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("Unexpected header: %+v", info)
	}
	if info.Duration != time.Second {
		t.Errorf("Expected duration 1s, got %v", info.Duration)
	}

	decoded, rinfo, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if rinfo.SampleRate != 16000 || rinfo.Channels != 1 {
		t.Errorf("Unexpected decoded layout: %+v", rinfo)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}

	// 16bit 量子化誤差の範囲内
	for i := 0; i < len(samples); i += 997 {
		if diff := math.Abs(float64(decoded[i] - samples[i])); diff > 1.0/16000 {
			t.Errorf("Sample %d: expected %v, got %v", i, samples[i], decoded[i])
		}
	}
}

func TestWriteWAV_ClipsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")

	if err := WriteWAV(path, []float32{2, -2, 0}, 16000, 1); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	decoded, _, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if decoded[0] < 0.999 || decoded[1] > -0.999 || decoded[2] != 0 {
		t.Errorf("Unexpected clipped samples: %v", decoded)
	}
}

func TestWriteWAV_InvalidLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteWAV(path, []float32{0}, 0, 1); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestReadWAVInfo_NotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("definitely not audio, just some text in a file"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := ReadWAVInfo(path); !errors.Is(err, ErrNotWAV) {
		t.Errorf("Expected ErrNotWAV, got %v", err)
	}
	if _, _, err := ReadWAV(path); !errors.Is(err, ErrNotWAV) {
		t.Errorf("Expected ErrNotWAV, got %v", err)
	}
}

func TestReadWAV_Stereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")

	// L=0.5, R=-0.5 を交互に
	samples := make([]float32, 44100*2)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	if err := WriteWAV(path, samples, 44100, 2); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	decoded, info, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if info.Channels != 2 || info.SampleRate != 44100 {
		t.Errorf("Unexpected layout: %+v", info)
	}
	if info.Duration != time.Second {
		t.Errorf("Expected 1s, got %v", info.Duration)
	}
	if len(decoded) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(decoded))
	}
}
