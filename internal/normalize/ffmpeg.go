package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/mattn/go-shellwords"
)

// parseCommand splits a configured command line such as "ffmpeg -hide_banner"
func parseCommand(command string) ([]string, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("command is empty")
	}
	return args, nil
}

// FFProbe probes files with an external ffprobe process
type FFProbe struct {
	cmd []string
}

// NewFFProbe creates a prober from a command line like "ffprobe"
func NewFFProbe(command string) (*FFProbe, error) {
	args, err := parseCommand(command)
	if err != nil {
		return nil, err
	}
	return &FFProbe{cmd: args}, nil
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType     string `json:"codec_type"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		BitsPerSample int    `json:"bits_per_sample"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe implements Prober
func (p *FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	if _, err := os.Stat(path); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnreadableAudio, err)
	}

	args := append([]string{}, p.cmd[1:]...)
	args = append(args, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)

	command := exec.CommandContext(ctx, p.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, ctx.Err()
		}
		return Info{}, fmt.Errorf("%w: %s: ffprobe failed: %v: %s", ErrUnreadableAudio, path, err, stderr.String())
	}

	return parseFFProbe(stdout.Bytes(), path)
}

func parseFFProbe(data []byte, path string) (Info, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{}, fmt.Errorf("%w: %s: invalid ffprobe output: %v", ErrUnreadableAudio, path, err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}

		rate, _ := strconv.Atoi(s.SampleRate)
		duration, _ := strconv.ParseFloat(out.Format.Duration, 64)
		return Info{
			Format:     out.Format.FormatName,
			SampleRate: rate,
			Channels:   s.Channels,
			BitDepth:   s.BitsPerSample,
			Duration:   duration,
		}, nil
	}

	return Info{}, fmt.Errorf("%w: %s: no audio stream", ErrUnreadableAudio, path)
}

// FFmpeg transcodes with an external ffmpeg process
type FFmpeg struct {
	cmd []string
}

// NewFFmpeg creates a transcoder from a command line like "ffmpeg"
func NewFFmpeg(command string) (*FFmpeg, error) {
	args, err := parseCommand(command)
	if err != nil {
		return nil, err
	}
	return &FFmpeg{cmd: args}, nil
}

// Args returns the ffmpeg arguments used to convert in to out
func (f *FFmpeg) Args(in, out string, overwrite bool) []string {
	args := append([]string{}, f.cmd[1:]...)
	args = append(args,
		"-i", in,
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-ac", strconv.Itoa(CanonicalChannels),
		"-c:a", "pcm_s16le",
	)
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	return append(args, out)
}

// Transcode implements Transcoder
func (f *FFmpeg) Transcode(ctx context.Context, in, out string, overwrite bool) error {
	command := exec.CommandContext(ctx, f.cmd[0], f.Args(in, out, overwrite)...)
	var output bytes.Buffer
	command.Stdout = &output
	command.Stderr = &output

	if err := command.Run(); err != nil {
		// -n で出力が既に存在する場合もここに来る
		return &ConversionError{Input: in, Output: output.String(), Err: err}
	}

	return nil
}
