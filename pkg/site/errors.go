package site

import (
	"errors"
	"fmt"
)

const (
	ErrorCodeConfigMissing = "site.config.missing"
	ErrorCodeConfigInvalid = "site.config.invalid"
	ErrorCodeGraphInvalid  = "site.graph.invalid"
)

// ConfigError reports an invalid or missing Config field.
//
// Config errors are detected before any graph is produced and are never retryable.
type ConfigError struct {
	Field   string
	Code    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// GraphError reports a structurally invalid resource graph.
type GraphError struct {
	Message string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("%s: %s", ErrorCodeGraphInvalid, e.Message)
}

func missing(field string) error {
	return &ConfigError{Field: field, Code: ErrorCodeConfigMissing, Message: "is required"}
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Code: ErrorCodeConfigInvalid, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err (or anything it wraps) is a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// ErrorCode returns the stable code carried by err, or "" when err is not a site error.
func ErrorCode(err error) string {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	var graphErr *GraphError
	if errors.As(err, &graphErr) {
		return ErrorCodeGraphInvalid
	}
	return ""
}
