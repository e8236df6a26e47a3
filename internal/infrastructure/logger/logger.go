package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/LavaJover/lockin-market-service/internal/config"
)

// Setup builds the process logger from cfg and installs it as the slog default.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	handler, err := NewHandler(cfg)
	if err != nil {
		return nil, err
	}
	l := slog.New(handler)
	slog.SetDefault(l)
	return l, nil
}

func NewHandler(cfg config.LogConfig) (slog.Handler, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(orDefault(cfg.LogLevel, "info")))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var out io.Writer
	switch orDefault(cfg.LogOutput, "stdout") {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output %q", cfg.LogOutput)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch orDefault(cfg.LogFormat, "json") {
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	case "text":
		return slog.NewTextHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.ToLower(v)
}
