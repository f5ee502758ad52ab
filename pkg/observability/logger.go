package observability

import (
	"context"
	"time"
)

type SanitizerFunc func(key string, value any) any

type ErrorNotifier interface {
	Notify(ctx context.Context, entry LogEntry) error
}

// LogEntry represents a structured log entry.
//
// This type is intentionally small and stable so implementations can adapt it to their backend.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`

	StackName    string `json:"stack_name,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// StructuredLogger is the logging surface shared by the composer, the
// deployer, and sitectl.
//
// Entries carry a message plus map fields. Stack and deployment identifiers are
// promoted to first-class attributes so notifications can be correlated with a
// single deploy invocation.
type StructuredLogger interface {
	Debug(message string, fields ...map[string]any)
	Info(message string, fields ...map[string]any)
	Warn(message string, fields ...map[string]any)
	Error(message string, fields ...map[string]any)

	WithField(key string, value any) StructuredLogger
	WithFields(fields map[string]any) StructuredLogger

	WithStackName(stackName string) StructuredLogger
	WithDeploymentID(deploymentID string) StructuredLogger

	Flush(ctx context.Context) error
	Close() error
	IsHealthy() bool
	GetStats() LoggerStats
}

type LoggerStats struct {
	LastFlush      time.Time `json:"last_flush"`
	LastError      string    `json:"last_error,omitempty"`
	EntriesLogged  int64     `json:"entries_logged"`
	EntriesDropped int64     `json:"entries_dropped"`
	FlushCount     int64     `json:"flush_count"`
	ErrorCount     int64     `json:"error_count"`
}

// LoggerConfig configures logger implementations.
type LoggerConfig struct {
	Format       string        `json:"format"`
	Level        string        `json:"level"`
	RetryDelay   time.Duration `json:"retry_delay"`
	BufferSize   int           `json:"buffer_size"`
	MaxRetries   int           `json:"max_retries"`
	EnableStack  bool          `json:"enable_stack"`
	EnableCaller bool          `json:"enable_caller"`
}
