package zap

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	ubzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/theory-cloud/sitetheory/pkg/observability"
	"github.com/theory-cloud/sitetheory/pkg/sanitization"
)

type Option func(*loggerOptions)

type loggerOptions struct {
	initErr error

	zapLogger *ubzap.Logger
	writer    io.Writer
	sanitizer observability.SanitizerFunc
	notifier  observability.ErrorNotifier
}

// WithZapLogger logs through an existing zap logger. Format, level and writer
// settings are then ignored.
func WithZapLogger(logger *ubzap.Logger) Option {
	return func(opts *loggerOptions) {
		opts.zapLogger = logger
	}
}

// WithWriter sets where entries are written. The default is stdout.
func WithWriter(w io.Writer) Option {
	return func(opts *loggerOptions) {
		opts.writer = w
	}
}

// WithSanitizer replaces sanitization.SanitizeFieldValue for field values.
func WithSanitizer(fn observability.SanitizerFunc) Option {
	return func(opts *loggerOptions) {
		opts.sanitizer = fn
	}
}

// WithErrorNotifier forwards every Error entry to notifier in the background.
func WithErrorNotifier(notifier observability.ErrorNotifier) Option {
	return func(opts *loggerOptions) {
		opts.notifier = notifier
	}
}

// loggerState is shared by a root Logger and every logger derived from it.
type loggerState struct {
	base     *ubzap.Logger
	sanitize observability.SanitizerFunc
	queue    *notifyQueue
	health   health

	closeOnce sync.Once
	closed    atomic.Bool

	logged     atomic.Int64
	flushes    atomic.Int64
	lastFlushN atomic.Int64
}

// Logger is the zap-backed StructuredLogger. Derived loggers share one
// notification queue and one set of counters.
type Logger struct {
	state *loggerState
	log   *ubzap.Logger

	fields       map[string]any
	stackName    string
	deploymentID string
}

var _ observability.StructuredLogger = (*Logger)(nil)

func NewZapLogger(config observability.LoggerConfig, options ...Option) (observability.StructuredLogger, error) {
	cfg := normalizeLoggerConfig(config)

	opts := &loggerOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	if opts.initErr != nil {
		return nil, opts.initErr
	}

	base := opts.zapLogger
	if base == nil {
		var err error
		if base, err = newBaseLogger(cfg, opts.writer); err != nil {
			return nil, err
		}
	}

	state := &loggerState{base: base, sanitize: opts.sanitizer}
	if state.sanitize == nil {
		state.sanitize = sanitization.SanitizeFieldValue
	}
	if opts.notifier != nil {
		state.queue = newNotifyQueue(opts.notifier, cfg, &state.health)
	}
	return &Logger{state: state, log: base}, nil
}

func (l *Logger) Debug(message string, fields ...map[string]any) {
	l.logEntry(zapcore.DebugLevel, message, fields)
}

func (l *Logger) Info(message string, fields ...map[string]any) {
	l.logEntry(zapcore.InfoLevel, message, fields)
}

func (l *Logger) Warn(message string, fields ...map[string]any) {
	l.logEntry(zapcore.WarnLevel, message, fields)
}

func (l *Logger) Error(message string, fields ...map[string]any) {
	l.logEntry(zapcore.ErrorLevel, message, fields)
}

func (l *Logger) WithField(key string, value any) observability.StructuredLogger {
	return l.WithFields(map[string]any{key: value})
}

func (l *Logger) WithFields(fields map[string]any) observability.StructuredLogger {
	next := l.derive()
	for k, v := range fields {
		next.fields[k] = v
	}
	if next.log != nil {
		next.log = next.log.With(next.zapFields(fields)...)
	}
	return next
}

func (l *Logger) WithStackName(stackName string) observability.StructuredLogger {
	next := l.derive()
	next.stackName = stackName
	if next.log != nil {
		next.log = next.log.With(ubzap.String("stack_name", sanitization.SanitizeLogString(stackName)))
	}
	return next
}

func (l *Logger) WithDeploymentID(deploymentID string) observability.StructuredLogger {
	next := l.derive()
	next.deploymentID = deploymentID
	if next.log != nil {
		next.log = next.log.With(ubzap.String("deployment_id", sanitization.SanitizeLogString(deploymentID)))
	}
	return next
}

// Flush syncs the writer, then waits for queued notifications until ctx ends.
func (l *Logger) Flush(ctx context.Context) error {
	if l == nil || l.state == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s := l.state
	err := s.base.Sync()
	s.health.record(err)
	s.queue.wait(ctx)
	s.flushes.Add(1)
	s.lastFlushN.Store(time.Now().UnixNano())
	return err
}

// Close drains the notification queue and syncs the writer. Later entries
// are discarded.
func (l *Logger) Close() error {
	if l == nil || l.state == nil {
		return nil
	}
	s := l.state
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.queue.close()
		err = s.base.Sync()
		s.health.record(err)
	})
	return err
}

// IsHealthy is false once the logger is closed or any sync or notification
// has failed.
func (l *Logger) IsHealthy() bool {
	if l == nil || l.state == nil || l.state.closed.Load() {
		return false
	}
	return l.state.health.errors.Load() == 0
}

func (l *Logger) GetStats() observability.LoggerStats {
	if l == nil || l.state == nil {
		return observability.LoggerStats{}
	}
	s := l.state
	stats := observability.LoggerStats{
		LastError:      s.health.lastError(),
		EntriesLogged:  s.logged.Load(),
		EntriesDropped: s.queue.droppedCount(),
		FlushCount:     s.flushes.Load(),
		ErrorCount:     s.health.errors.Load(),
	}
	if n := s.lastFlushN.Load(); n != 0 {
		stats.LastFlush = time.Unix(0, n)
	}
	return stats
}

func (l *Logger) derive() *Logger {
	if l == nil {
		return &Logger{fields: map[string]any{}}
	}
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		state:        l.state,
		log:          l.log,
		fields:       fields,
		stackName:    l.stackName,
		deploymentID: l.deploymentID,
	}
}

func (l *Logger) logEntry(level zapcore.Level, message string, fieldSets []map[string]any) {
	if l == nil || l.state == nil || l.log == nil || l.state.closed.Load() {
		return
	}

	message = sanitization.SanitizeLogString(message)
	call := mergeFields(fieldSets...)

	if ce := l.log.Check(level, message); ce != nil {
		ce.Write(l.zapFields(call)...)
		l.state.logged.Add(1)
	}

	if level == zapcore.ErrorLevel && l.state.queue != nil {
		l.state.queue.push(observability.LogEntry{
			Timestamp:    time.Now(),
			Level:        level.String(),
			Message:      message,
			Fields:       l.sanitized(mergeFields(l.fields, call)),
			StackName:    l.stackName,
			DeploymentID: l.deploymentID,
		})
	}
}

func (l *Logger) zapFields(fields map[string]any) []ubzap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]ubzap.Field, 0, len(fields))
	for k, v := range l.sanitized(fields) {
		out = append(out, ubzap.Any(k, v))
	}
	return out
}

func (l *Logger) sanitized(fields map[string]any) map[string]any {
	sanitize := sanitization.SanitizeFieldValue
	if l.state != nil && l.state.sanitize != nil {
		sanitize = l.state.sanitize
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = sanitize(k, v)
	}
	return out
}

// mergeFields combines field sets left to right; later keys win.
func mergeFields(sets ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}
