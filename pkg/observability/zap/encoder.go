package zap

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ubzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/theory-cloud/sitetheory/pkg/observability"
)

const (
	formatJSON    = "json"
	formatConsole = "console"

	defaultBufferSize = 256
	defaultAttempts   = 3
)

func normalizeLoggerConfig(config observability.LoggerConfig) observability.LoggerConfig {
	cfg := config
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = formatConsole
		if isCI() {
			cfg.Format = formatJSON
		}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultAttempts
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return cfg
}

// isCI reports whether the process runs under a CI system, where logs are
// collected as JSON rather than read on a terminal.
func isCI() bool {
	for _, key := range []string{"CI", "CODEBUILD_BUILD_ID", "GITHUB_ACTIONS"} {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			return true
		}
	}
	return false
}

// parseZapLevel accepts debug, info, warn (or warning) and error. Panic and
// fatal levels would let a log call end the process, so they are refused.
func parseZapLevel(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil || lvl > zapcore.ErrorLevel {
		return 0, fmt.Errorf("observability/zap: unsupported log level %q", level)
	}
	return lvl, nil
}

func zapEncoderConfig(enableCaller bool) zapcore.EncoderConfig {
	enc := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if enableCaller {
		enc.CallerKey = "caller"
		enc.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return enc
}

// newBaseLogger builds the zap logger sitectl writes to when the caller does
// not bring its own.
func newBaseLogger(cfg observability.LoggerConfig, out io.Writer) (*ubzap.Logger, error) {
	level, err := parseZapLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	enc := zapEncoderConfig(cfg.EnableCaller)
	var encoder zapcore.Encoder
	switch cfg.Format {
	case formatConsole:
		encoder = zapcore.NewConsoleEncoder(enc)
	case formatJSON:
		encoder = zapcore.NewJSONEncoder(enc)
	default:
		return nil, fmt.Errorf("observability/zap: unsupported log format %q", cfg.Format)
	}

	if out == nil {
		out = os.Stdout
	}
	var opts []ubzap.Option
	if cfg.EnableCaller {
		opts = append(opts, ubzap.AddCaller(), ubzap.AddCallerSkip(2))
	}
	if cfg.EnableStack {
		opts = append(opts, ubzap.AddStacktrace(zapcore.ErrorLevel))
	}
	return ubzap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level), opts...), nil
}
