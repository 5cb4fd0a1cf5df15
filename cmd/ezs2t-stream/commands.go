package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/yok-tottii/EzS2T-Stream/internal/audio"
	"github.com/yok-tottii/EzS2T-Stream/internal/hotkey"
	"github.com/yok-tottii/EzS2T-Stream/internal/normalize"
	"github.com/yok-tottii/EzS2T-Stream/internal/output"
	"github.com/yok-tottii/EzS2T-Stream/internal/recording"
	"github.com/yok-tottii/EzS2T-Stream/internal/transcription"
)

var errUsage = errors.New("usage")

// backend is what the CLI needs from either client
type backend interface {
	transcription.Transcriber
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func (a *App) newBackend(stream bool) (backend, error) {
	if stream {
		return transcription.NewStreamingClient(a.clientConfig(), a.logger)
	}
	return transcription.NewStandardClient(a.clientConfig(), a.logger)
}

func (a *App) newNormalizer() (*normalize.Normalizer, error) {
	if a.config.Transcoder == "native" {
		return normalize.New(normalize.WAVProber{}, normalize.InProcess{}, a.logger), nil
	}

	prober, err := normalize.NewFFProbe(a.config.FFprobeCommand)
	if err != nil {
		return nil, err
	}
	ffmpeg, err := normalize.NewFFmpeg(a.config.FFmpegCommand)
	if err != nil {
		return nil, err
	}
	return normalize.New(prober, ffmpeg, a.logger), nil
}

// printResult writes content in the requested format to stdout
func printResult(format string, content any) error {
	f, err := output.New(format)
	if err != nil {
		return err
	}
	s, err := f.Format(content)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}

// consume drains a transcript stream, echoing increments to stderr
func consume(seq iter.Seq[transcription.Event]) (string, error) {
	var sb strings.Builder
	for ev := range seq {
		if ev.Err != nil {
			if sb.Len() > 0 {
				fmt.Fprintln(os.Stderr)
			}
			return sb.String(), ev.Err
		}
		sb.WriteString(ev.Text)
		fmt.Fprint(os.Stderr, ev.Text)
	}
	if sb.Len() > 0 {
		fmt.Fprintln(os.Stderr)
	}
	return sb.String(), nil
}

func (a *App) cmdRecord(ctx context.Context, args []string) error {
	fs := newFlagSet("record")
	duration := fs.Duration("duration", a.config.RecordDuration, "録音時間の上限 (0 = ホットキーで停止)")
	language := fs.String("language", a.config.Language, "言語コード")
	outPath := fs.String("output", "", "録音を保存する WAV ファイル")
	format := fs.String("format", "text", "出力形式 (text|json)")
	stream := fs.Bool("stream", true, "ストリーミングで文字起こし")
	noHotkey := fs.Bool("no-hotkey", false, "ホットキーで停止しない")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if _, err := output.New(*format); err != nil {
		return err
	}

	var listener recording.StopListener
	hotkeyLabel := ""
	if !*noHotkey && a.config.Hotkey != "" {
		chord, err := hotkey.ParseHotkey(a.config.Hotkey)
		if err != nil {
			return err
		}
		for _, c := range hotkey.CheckConflicts(chord) {
			a.logger.Warn("ホットキー %s は %s と競合する可能性があります: %s", hotkey.FormatHotkey(chord), c.Name, c.Description)
		}
		l := hotkey.NewListener(chord, a.logger)
		listener = l
		hotkeyLabel = hotkey.FormatHotkey(l.Chord())
	}
	if *duration == 0 && listener == nil {
		return errors.New("録音を止める手段がありません (-duration か HOTKEY を指定してください)")
	}

	driver, err := audio.NewPortAudioDriver()
	if err != nil {
		a.notifier.DeviceNotFound()
		return err
	}

	audioConfig := audio.DefaultConfig()
	audioConfig.DeviceID = a.config.AudioDeviceID
	audioConfig.SampleRate = a.config.SampleRate
	audioConfig.Channels = a.config.Channels
	audioConfig.FramesPerBuffer = a.config.ChunkSize

	session := recording.NewSession(driver, recording.Config{Audio: audioConfig, Duration: *duration}, a.logger)
	a.setSession(session)
	a.setState("recording")

	if hotkeyLabel != "" {
		fmt.Fprintf(os.Stderr, "[録音中] %s で停止します\n", hotkeyLabel)
	} else {
		fmt.Fprintf(os.Stderr, "[録音中] %v 後に停止します\n", *duration)
	}
	a.notifier.RecordingStarted(hotkeyLabel)

	stopProgress := showProgress(session)
	samples, err := recording.RecordWithListener(ctx, session, listener, *outPath)
	if err != nil && listener != nil && session.State() == recording.Idle && *duration > 0 {
		// ホットキーが使えない環境では時間指定だけで録音する
		a.logger.Warn("ホットキーを利用できません、時間指定で録音します: %v", err)
		samples, err = session.RecordAndSave(ctx, *outPath)
	}
	stopProgress()
	if err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			a.notifier.DeviceNotFound()
		} else {
			a.notifier.RecordingFailed(err.Error())
		}
		a.recordResult(err)
		return err
	}

	reason := session.Signal().Reason()
	a.logger.Info("録音終了: %s (%.1f秒, 理由=%s)", session.ID(), session.Captured().Seconds(), reason)
	if reason == recording.ReasonDuration {
		a.notifier.RecordingTimeExceeded(*duration)
	} else {
		a.notifier.RecordingStopped()
	}

	if ctx.Err() != nil {
		a.recordResult(nil)
		fmt.Fprintln(os.Stderr, "[中断] 文字起こしをスキップしました")
		return nil
	}
	if len(samples) == 0 {
		a.recordResult(nil)
		a.logger.Warn("録音データが空です")
		return nil
	}

	a.setState("transcribing")
	var text string
	if *stream {
		client, err := transcription.NewStreamingClient(a.clientConfig(), a.logger)
		if err != nil {
			return err
		}
		text, err = consume(client.TranscribeStream(ctx, samples, *language))
		if err != nil {
			return a.transcriptionFailed(err)
		}
	} else {
		client, err := transcription.NewStandardClient(a.clientConfig(), a.logger)
		if err != nil {
			return err
		}
		text, err = client.Transcribe(ctx, samples, *language)
		if err != nil {
			return a.transcriptionFailed(err)
		}
	}

	return a.transcriptionDone(*format, text)
}

// showProgress prints the captured length once a second until the session's
// signal fires or the returned function is called
func showProgress(session *recording.Session) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			if _, fired := session.Signal().WaitTimeout(time.Second); fired {
				return
			}
			select {
			case <-done:
				return
			default:
			}
			fmt.Fprintf(os.Stderr, "\r[録音中] %.0f秒", session.Captured().Seconds())
		}
	}()

	return func() {
		close(done)
		<-finished
		fmt.Fprintln(os.Stderr)
	}
}

func (a *App) transcriptionFailed(err error) error {
	a.recordResult(err)
	a.notifier.TranscriptionFailed(err.Error())
	return err
}

func (a *App) transcriptionDone(format, text string) error {
	a.recordResult(nil)
	a.notifier.TranscriptionComplete(text)
	a.logger.Info("文字起こし完了: %d文字", len([]rune(text)))
	return printResult(format, text)
}

func (a *App) cmdFile(ctx context.Context, args []string) error {
	fs := newFlagSet("file")
	language := fs.String("language", a.config.Language, "言語コード")
	format := fs.String("format", "text", "出力形式 (text|json)")
	stream := fs.Bool("stream", true, "ストリーミングで文字起こし")
	keep := fs.Bool("keep", false, "変換したファイルを残す")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	if _, err := output.New(*format); err != nil {
		return err
	}
	in := fs.Arg(0)

	n, err := a.newNormalizer()
	if err != nil {
		return err
	}
	path, err := n.Normalize(ctx, in, "", true)
	if err != nil {
		return err
	}
	if path != in && !*keep {
		defer func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				a.logger.Warn("変換ファイルの削除に失敗: %v", err)
			}
		}()
	}

	a.setState("transcribing")
	var text string
	if *stream {
		client, err := transcription.NewStreamingClient(a.clientConfig(), a.logger)
		if err != nil {
			return err
		}
		text, err = consume(client.StreamFile(ctx, path, *language))
		if err != nil {
			return a.transcriptionFailed(err)
		}
	} else {
		client, err := transcription.NewStandardClient(a.clientConfig(), a.logger)
		if err != nil {
			return err
		}
		text, err = client.TranscribeFile(ctx, path, *language)
		if err != nil {
			return a.transcriptionFailed(err)
		}
	}

	return a.transcriptionDone(*format, text)
}

func (a *App) cmdProbe(ctx context.Context, args []string) error {
	fs := newFlagSet("probe")
	format := fs.String("format", "text", "出力形式 (text|json)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	n, err := a.newNormalizer()
	if err != nil {
		return err
	}
	info, err := n.Probe(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if *format == "text" {
		fmt.Printf("format:      %s\n", info.Format)
		fmt.Printf("sample_rate: %d\n", info.SampleRate)
		fmt.Printf("channels:    %d\n", info.Channels)
		fmt.Printf("bit_depth:   %d\n", info.BitDepth)
		fmt.Printf("duration:    %.2fs\n", info.Duration)
		fmt.Printf("canonical:   %t\n", info.IsCanonical())
		return nil
	}
	return printResult(*format, map[string]any{
		"format":      info.Format,
		"sample_rate": info.SampleRate,
		"channels":    info.Channels,
		"bit_depth":   info.BitDepth,
		"duration":    info.Duration,
		"canonical":   info.IsCanonical(),
	})
}

func (a *App) cmdConvert(ctx context.Context, args []string) error {
	fs := newFlagSet("convert")
	out := fs.String("o", "", "出力ファイル (省略時は temp_<名前>.wav)")
	overwrite := fs.Bool("overwrite", false, "既存のファイルを上書きする")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	n, err := a.newNormalizer()
	if err != nil {
		return err
	}
	path, err := n.Normalize(ctx, fs.Arg(0), *out, *overwrite)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func (a *App) cmdLanguages(ctx context.Context, args []string) error {
	fs := newFlagSet("languages")
	format := fs.String("format", "text", "出力形式 (text|json)")
	stream := fs.Bool("stream", true, "ストリーミング API を使う")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	client, err := a.newBackend(*stream)
	if err != nil {
		return err
	}
	langs, err := client.SupportedLanguages(ctx)
	if err != nil {
		return err
	}

	if *format == "text" {
		codes := make([]string, 0, len(langs))
		for code := range langs {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Printf("%s\t%s\n", code, langs[code])
		}
		return nil
	}
	return printResult(*format, langs)
}

func (a *App) cmdTranslate(ctx context.Context, args []string) error {
	fs := newFlagSet("translate")
	target := fs.String("to", "en", "翻訳先の言語コード")
	format := fs.String("format", "text", "出力形式 (text|json)")
	stream := fs.Bool("stream", true, "ストリーミング API を使う")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fs.Usage()
		return errUsage
	}

	var translated string
	if *stream {
		client, err := transcription.NewStreamingClient(a.clientConfig(), a.logger)
		if err != nil {
			return err
		}
		translated, err = consume(client.TranslateStream(ctx, text, *target))
		if err != nil {
			return err
		}
	} else {
		client, err := transcription.NewStandardClient(a.clientConfig(), a.logger)
		if err != nil {
			return err
		}
		translated, err = client.Translate(ctx, text, *target)
		if err != nil {
			return err
		}
	}
	return printResult(*format, map[string]any{"text": translated, "language": *target})
}

func (a *App) cmdHealth(ctx context.Context, args []string) error {
	fs := newFlagSet("health")
	timeout := fs.Duration("timeout", 5*time.Second, "タイムアウト")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	client, err := a.newBackend(false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	status, err := client.Health(ctx)
	if err != nil {
		a.notifier.BackendUnavailable(a.config.BaseURL())
		return err
	}
	fmt.Printf("status: %s\nmodel: %s\napi_version: %s\n", status.Status, status.Model, status.APIVersion)
	return nil
}

func (a *App) cmdDevices(_ context.Context, args []string) error {
	fs := newFlagSet("devices")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	driver, err := audio.NewPortAudioDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	devices, err := driver.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		a.notifier.DeviceNotFound()
		return audio.ErrDeviceUnavailable
	}
	for _, d := range devices {
		mark := " "
		if d.IsDefault {
			mark = "*"
		}
		fmt.Printf("%s %3d  %-40s %dch\n", mark, d.ID, d.Name, d.Channels)
	}
	return nil
}
