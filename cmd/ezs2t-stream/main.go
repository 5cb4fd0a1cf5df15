package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.design/x/hotkey/mainthread"

	"github.com/yok-tottii/EzS2T-Stream/internal/config"
	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
	"github.com/yok-tottii/EzS2T-Stream/internal/notification"
	"github.com/yok-tottii/EzS2T-Stream/internal/recording"
	"github.com/yok-tottii/EzS2T-Stream/internal/server"
	"github.com/yok-tottii/EzS2T-Stream/internal/transcription"
)

const (
	version = "0.1.0"
	appName = "EzS2T-Stream"
)

// App holds all application state
type App struct {
	logger     *logger.Logger
	config     *config.Config
	envFile    string
	notifier   *notification.NotificationManager
	httpServer *server.Server

	mu          sync.Mutex
	state       string
	session     *recording.Session
	transcripts int
	lastError   string
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{"record", "record [-duration 30s] [-language ja] [-output rec.wav] [-format text|json] [-stream=false]", "マイクから録音して文字起こし", (*App).cmdRecord},
	{"file", "file [-language ja] [-format text|json] [-stream=false] [-keep] <audio>", "音声ファイルを文字起こし", (*App).cmdFile},
	{"probe", "probe [-format text|json] <audio>", "音声ファイルの形式を表示", (*App).cmdProbe},
	{"convert", "convert [-o out.wav] [-overwrite] <audio>", "16kHz/モノラル/16bit WAV に変換", (*App).cmdConvert},
	{"languages", "languages [-format text|json] [-stream=false]", "対応言語を表示", (*App).cmdLanguages},
	{"translate", "translate -to en [-stream=false] <text>", "テキストを翻訳", (*App).cmdTranslate},
	{"health", "health", "文字起こしサーバーの状態を確認", (*App).cmdHealth},
	{"devices", "devices", "入力デバイスを一覧表示", (*App).cmdDevices},
}

func main() {
	// macOS ではホットキー登録にメインスレッドが必要
	mainthread.Init(func() {
		os.Exit(run(os.Args[1:]))
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s v%s\n\nUsage:\n", appName, version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  ezs2t-stream %s\n      %s\n", c.usage, c.summary)
	}
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "-h", "-help", "--help", "help":
		usage()
		return 0
	case "-version", "--version", "version":
		fmt.Printf("%s v%s\n", appName, version)
		return 0
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		return 2
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "初期化に失敗: %v\n", err)
		return 1
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(app, ctx, args[1:]); err != nil {
		if err == errUsage {
			return 2
		}
		app.logger.Error("%s に失敗: %v", cmd.name, err)
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		return 1
	}
	return 0
}

func newApp() (*App, error) {
	cfg, envFile, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	dir, name, err := cfg.LogPaths()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{
		LogDir:        dir,
		FileName:      name,
		Level:         level,
		RetentionDays: cfg.LogRetentionDays,
		Console:       cfg.LogConsole,
	})
	if err != nil {
		return nil, fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}

	app := &App{
		logger:   log,
		config:   cfg,
		envFile:  envFile,
		notifier: notification.NewNotificationManager(appName, cfg.Notify),
		state:    "idle",
	}

	log.Info("%s v%s 起動", appName, version)
	if envFile != "" {
		log.Info("環境設定ファイルを読み込みました: %s", envFile)
	}
	log.Debug("文字起こしサーバー: %s (model=%s, batch_size=%d)", cfg.BaseURL(), cfg.WhisperModel, cfg.BatchSize)
	log.Debug("デスクトップ通知: %t", app.notifier.Enabled())

	if cfg.MetricsPort > 0 {
		srvConfig := server.DefaultConfig()
		srvConfig.Port = cfg.MetricsPort
		app.httpServer = server.New(srvConfig, app, log)
		if err := app.httpServer.Start(); err != nil {
			// メトリクスが使えなくても本処理は続行する
			log.Warn("HTTPサーバーの起動に失敗: %v", err)
			app.httpServer = nil
		} else {
			log.Info("メトリクス: %s/metrics, 状態: %s/status", app.httpServer.URL(), app.httpServer.URL())
		}
	}

	return app, nil
}

// Close releases the server and the log file
func (a *App) Close() {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(); err != nil {
			a.logger.Warn("HTTPサーバーの停止に失敗: %v", err)
		}
	}
	a.logger.Info("終了")
	a.logger.Close()
}

// Status implements server.StatusProvider
func (a *App) Status() server.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := server.Status{
		State:       a.state,
		Hotkey:      a.config.Hotkey,
		Backend:     a.config.BaseURL(),
		Transcripts: a.transcripts,
		LastError:   a.lastError,
	}
	if a.session != nil {
		st.SessionID = a.session.ID()
		st.CapturedSeconds = a.session.Captured().Seconds()
		if started := a.session.StartedAt(); !started.IsZero() {
			st.StartedAt = started.Format(time.RFC3339)
		}
	}
	return st
}

func (a *App) setState(state string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

func (a *App) setSession(s *recording.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

func (a *App) recordResult(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = "idle"
	if err != nil {
		a.lastError = err.Error()
		return
	}
	a.transcripts++
	a.lastError = ""
}

// clientConfig maps application settings onto the backend client
func (a *App) clientConfig() transcription.Config {
	c := transcription.DefaultConfig()
	c.BaseURL = a.config.BaseURL()
	c.APIKey = a.config.APIKey
	c.Model = a.config.WhisperModel
	c.BatchSize = a.config.BatchSize
	c.SampleRate = a.config.SampleRate
	c.Channels = a.config.Channels
	c.Timeout = a.config.RequestTimeout
	c.MaxAttempts = a.config.RetryMaxAttempts
	c.TempDir = a.config.TempDir
	return c
}
