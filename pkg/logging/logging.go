package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// consoleTimeFormat はコンソール出力時のタイムスタンプ形式。
const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Options はロガー生成時のオプション。
type Options struct {
	// Service はログに付与するサービス名。
	Service string
	// Level はログレベル（debug, info, warn, error）。
	Level string
	// Pretty がtrueの場合、人間向けのコンソール形式で出力する。
	Pretty bool
	// Writer は出力先。nilの場合は標準出力。
	Writer io.Writer
}

// New はオプションに従ってzerologのロガーを生成する。
func New(opts Options) zerolog.Logger {
	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}

	logger := zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp()
	if opts.Service != "" {
		logger = logger.Str("service", opts.Service)
	}
	return logger.Logger()
}

// ParseLevel は文字列をzerologのレベルに変換する。
// 不明な値の場合はinfoを返す。
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Nop は何も出力しないロガーを返す。テストで使用する。
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
