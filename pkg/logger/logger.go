package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var globalLogger *slog.Logger

// 出力形式
const (
	FormatText = "text"
	FormatJSON = "json"
)

type options struct {
	format string
	output io.Writer
}

// Option はInitLoggerの設定
type Option func(*options)

// WithFormat は出力形式（text, json）を設定する
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithOutput は出力先を設定する（デフォルトはstdout）
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// ParseLevel はログレベル文字列をslog.Levelに変換する
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルと出力形式に応じてslogを初期化
func InitLogger(level string, opts ...Option) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	o := options{format: FormatText, output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	switch o.format {
	case FormatText, "":
		handler = slog.NewTextHandler(o.output, handlerOpts)
	case FormatJSON:
		// serveのログ収集向け
		handler = slog.NewJSONHandler(o.output, handlerOpts)
	default:
		return fmt.Errorf("invalid log format: %s", o.format)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}
