// Package logger holds the process-wide structured logger used by sitectl.
package logger

import (
	"sync"

	"github.com/theory-cloud/sitetheory/pkg/observability"
)

var (
	globalMu     sync.RWMutex
	globalLogger observability.StructuredLogger = observability.NewNoOpLogger()
)

// Logger returns the global structured logger singleton.
func Logger() observability.StructuredLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the global structured logger singleton.
//
// Passing nil resets the logger to a no-op implementation.
func SetLogger(next observability.StructuredLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if next == nil {
		globalLogger = observability.NewNoOpLogger()
		return
	}
	globalLogger = next
}

// ForStack returns the global logger scoped to a stack.
func ForStack(stackName string) observability.StructuredLogger {
	return Logger().WithStackName(stackName)
}
