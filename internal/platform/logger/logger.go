package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nulzo/prism-router/internal/cli"
	"github.com/nulzo/prism-router/internal/config"
)

const coloredConsoleEncoding = "prism-console"

var registerOnce sync.Once

// Options tune the logger beyond what the config file carries.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Color  bool   // only honoured by the console format
	Output []string
}

// FromConfig derives options from the log section. NO_COLOR and LOG_COLOR
// decide whether the console output is colored.
func FromConfig(cfg config.LogConfig) Options {
	return Options{
		Level:  cfg.Level,
		Format: cfg.Format,
		Color:  shouldEnableColor(),
	}
}

// New builds a logger and returns the atomic level so it can be changed at
// runtime.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	registerOnce.Do(func() {
		_ = zap.RegisterEncoder(coloredConsoleEncoding, func(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
			return NewColoredConsoleEncoder(cfg), nil
		})
	})

	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := "json"
	if opts.Format == "console" {
		encoding = "console"
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		if opts.Color {
			encoding = coloredConsoleEncoding
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	cli.SetEnabled(opts.Color && opts.Format == "console")

	output := opts.Output
	if len(output) == 0 {
		output = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             level,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       output,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: level.Level() > zapcore.DebugLevel && level.Level() != zapcore.ErrorLevel,
	}

	log, err := zapConfig.Build()
	if err != nil {
		return nil, level, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, level, nil
}

// ParseLevel falls back to info for unknown names.
func ParseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// shouldEnableColor checks NO_COLOR (https://no-color.org/) and LOG_COLOR.
func shouldEnableColor() bool {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	if val := os.Getenv("LOG_COLOR"); val != "" {
		return val == "true" || val == "1"
	}
	return true
}
