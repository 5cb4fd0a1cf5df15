package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
	"github.com/yok-tottii/EzS2T-Stream/internal/metrics"
)

// Canonical format: 16 kHz, mono, 16-bit signed little-endian PCM WAV
const (
	// CanonicalSampleRate is the backend's required sample rate
	CanonicalSampleRate = 16000
	// CanonicalChannels is the backend's required channel count
	CanonicalChannels = 1
	// CanonicalBitDepth is the backend's required sample width
	CanonicalBitDepth = 16
)

var (
	// ErrUnreadableAudio is returned when a file is not a recognized audio container
	ErrUnreadableAudio = errors.New("unreadable audio")
	// ErrConversionFailed is returned when transcoding fails
	ErrConversionFailed = errors.New("audio conversion failed")
)

// ConversionError carries the transcoder's diagnostic output
type ConversionError struct {
	Input  string
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("%v: %s", ErrConversionFailed, e.Input)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConversionFailed) match
func (e *ConversionError) Is(target error) bool { return target == ErrConversionFailed }

// Info is the result of probing an audio file.
// BitDepth 0 means the container did not report one.
type Info struct {
	Format     string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
}

// IsCanonical reports whether the file can be uploaded without conversion
func (i Info) IsCanonical() bool {
	return i.SampleRate == CanonicalSampleRate &&
		i.Channels == CanonicalChannels &&
		(i.BitDepth == 0 || i.BitDepth == CanonicalBitDepth)
}

// Prober inspects an audio file without decoding it
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// Transcoder writes a canonical copy of in to out.
// When overwrite is false an existing out is an error.
type Transcoder interface {
	Transcode(ctx context.Context, in, out string, overwrite bool) error
}

// Normalizer applies check-before-convert to audio files
type Normalizer struct {
	prober     Prober
	transcoder Transcoder
	log        *logger.Logger
}

// New creates a normalizer
func New(prober Prober, transcoder Transcoder, log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Normalizer{
		prober:     prober,
		transcoder: transcoder,
		log:        log,
	}
}

// Probe inspects path
func (n *Normalizer) Probe(ctx context.Context, path string) (Info, error) {
	return n.prober.Probe(ctx, path)
}

// DefaultOutputPath is where a converted copy of in goes when no output is requested
func DefaultOutputPath(in string) string {
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(filepath.Dir(in), "temp_"+stem+".wav")
}

// Normalize returns the path of a canonical version of in.
//
// A compliant input is returned as is when out is empty or equal to in, and
// copied when a distinct out is given. Anything else is transcoded to out
// (DefaultOutputPath(in) when out is empty).
func (n *Normalizer) Normalize(ctx context.Context, in, out string, overwrite bool) (string, error) {
	if _, err := os.Stat(in); err != nil {
		metrics.Normalized("failed", 0)
		return "", fmt.Errorf("%w: %v", ErrUnreadableAudio, err)
	}

	info, err := n.prober.Probe(ctx, in)
	if err != nil {
		// 解析できなくても変換は試みる
		n.log.Warn("音声ファイルの解析に失敗、変換を試みます: %v", err)
	} else if info.IsCanonical() {
		if out == "" || sameFile(in, out) {
			n.log.Debug("変換不要: %s (%dHz, %dch, %dbit)", in, info.SampleRate, info.Channels, info.BitDepth)
			metrics.Normalized("passthrough", 0)
			return in, nil
		}
		if err := copyFile(in, out, overwrite); err != nil {
			metrics.Normalized("failed", 0)
			return "", err
		}
		n.log.Debug("変換不要のためコピー: %s -> %s", in, out)
		metrics.Normalized("copied", 0)
		return out, nil
	} else {
		n.log.Info("変換が必要: %s (%dHz, %dch, %dbit)", in, info.SampleRate, info.Channels, info.BitDepth)
	}

	if out == "" {
		out = DefaultOutputPath(in)
	}

	started := time.Now()
	if sameFile(in, out) {
		err = n.transcodeInPlace(ctx, in, overwrite)
	} else {
		err = n.transcoder.Transcode(ctx, in, out, overwrite)
	}
	if err != nil {
		metrics.Normalized("failed", 0)
		return "", err
	}

	metrics.Normalized("converted", time.Since(started))
	n.log.Info("変換完了: %s -> %s (%s)", in, out, time.Since(started).Round(time.Millisecond))
	return out, nil
}

// transcodeInPlace converts through a sibling file and renames it over path
func (n *Normalizer) transcodeInPlace(ctx context.Context, path string, overwrite bool) error {
	if !overwrite {
		return &ConversionError{Input: path, Err: fmt.Errorf("output %s exists and overwrite is disabled", path)}
	}

	tmp := filepath.Join(filepath.Dir(path), ".normalize-"+filepath.Base(path)+".wav")
	defer os.Remove(tmp)

	if err := n.transcoder.Transcode(ctx, path, tmp, true); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return &ConversionError{Input: path, Err: err}
	}
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

func copyFile(src, dst string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	out, err := os.OpenFile(dst, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
