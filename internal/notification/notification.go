package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeWarning is a warning notification
	TypeWarning NotificationType = "warning"
	// TypeError is an error notification
	TypeError NotificationType = "error"
	// TypeSuccess is a success notification
	TypeSuccess NotificationType = "success"
)

// previewLength is how many characters of a transcript a notification shows
const previewLength = 60

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// Runner executes a notification command
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// NotificationManager handles sending notifications to the user
type NotificationManager struct {
	appName string
	enabled bool
	goos    string
	run     Runner
}

// NewNotificationManager creates a new notification manager.
// A disabled manager accepts every call and sends nothing.
func NewNotificationManager(appName string, enabled bool) *NotificationManager {
	return &NotificationManager{
		appName: appName,
		enabled: enabled,
		goos:    runtime.GOOS,
		run:     execRunner,
	}
}

// Enabled reports whether notifications are sent
func (nm *NotificationManager) Enabled() bool {
	return nm.enabled
}

// Command returns the program and arguments that display n on this platform
func (nm *NotificationManager) Command(n *Notification) (string, []string, error) {
	switch nm.goos {
	case "darwin":
		script := fmt.Sprintf(
			`display notification "%s" with title "%s"`,
			escapeAppleScript(n.Message),
			escapeAppleScript(n.Title),
		)
		return "osascript", []string{"-e", script}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		urgency := "normal"
		switch n.Type {
		case TypeError:
			urgency = "critical"
		case TypeInfo:
			urgency = "low"
		}
		return "notify-send", []string{"--app-name", nm.appName, "--urgency", urgency, n.Title, n.Message}, nil
	default:
		return "", nil, fmt.Errorf("notifications are not supported on %s", nm.goos)
	}
}

// escapeAppleScript escapes a value for use inside an AppleScript string literal
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Send displays a notification via the platform notification center
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	if !nm.enabled {
		return nil
	}

	name, args, err := nm.Command(notification)
	if err != nil {
		return err
	}
	if err := nm.run(name, args...); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// SendInfo sends an informational notification
func (nm *NotificationManager) SendInfo(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeInfo,
	})
}

// SendWarning sends a warning notification
func (nm *NotificationManager) SendWarning(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeWarning,
	})
}

// SendError sends an error notification
func (nm *NotificationManager) SendError(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeError,
	})
}

// SendSuccess sends a success notification
func (nm *NotificationManager) SendSuccess(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeSuccess,
	})
}

// RecordingStarted sends a notification that recording has started
func (nm *NotificationManager) RecordingStarted(hotkey string) error {
	message := "録音が開始されました"
	if hotkey != "" {
		message += "（" + hotkey + " で停止）"
	}
	return nm.SendInfo(nm.appName, message)
}

// RecordingStopped sends a notification that recording has stopped
func (nm *NotificationManager) RecordingStopped() error {
	return nm.SendInfo(nm.appName, "録音が停止されました")
}

// RecordingTimeExceeded sends a notification that recording reached its time limit
func (nm *NotificationManager) RecordingTimeExceeded(limit time.Duration) error {
	return nm.SendWarning(
		nm.appName,
		fmt.Sprintf("録音が%v に達したため、自動停止しました。", limit),
	)
}

// TranscriptionComplete sends a notification with the start of the transcript
func (nm *NotificationManager) TranscriptionComplete(text string) error {
	message := "文字起こしが完了しました"
	if preview := Preview(text, previewLength); preview != "" {
		message += "：" + preview
	}
	return nm.SendSuccess(nm.appName, message)
}

// TranscriptionFailed sends a notification that transcription failed
func (nm *NotificationManager) TranscriptionFailed(reason string) error {
	message := "文字起こしに失敗しました"
	if reason != "" {
		message += "：" + reason
	}
	return nm.SendError(nm.appName, message)
}

// RecordingFailed sends a notification that recording failed
func (nm *NotificationManager) RecordingFailed(reason string) error {
	message := "録音に失敗しました"
	if reason != "" {
		message += "：" + reason
	}
	return nm.SendError(nm.appName, message)
}

// DeviceNotFound sends a notification that audio device is not found
func (nm *NotificationManager) DeviceNotFound() error {
	return nm.SendError(
		nm.appName,
		"オーディオデバイスが見つかりません。デバイスを再接続してください。",
	)
}

// BackendUnavailable sends a notification that the transcription server cannot be reached
func (nm *NotificationManager) BackendUnavailable(url string) error {
	return nm.SendError(nm.appName, fmt.Sprintf("文字起こしサーバーに接続できません: %s", url))
}

// Preview shortens text to at most n characters, adding an ellipsis when cut
func Preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "…"
}
