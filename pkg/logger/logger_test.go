package logger

import (
	"testing"

	"github.com/theory-cloud/sitetheory/pkg/observability"
)

func TestLogger_DefaultIsNoOp(t *testing.T) {
	got := Logger()
	if got == nil {
		t.Fatal("expected Logger() to return a non-nil logger")
	}
	if !got.IsHealthy() {
		t.Fatal("expected default logger to be healthy")
	}
}

func TestLogger_SetLogger(t *testing.T) {
	stub := observability.NewTestLogger()
	SetLogger(stub)
	t.Cleanup(func() { SetLogger(nil) })

	if Logger() != stub {
		t.Fatal("expected Logger() to return the logger set via SetLogger")
	}

	ForStack("example-com-site").Info("synth")
	entries := stub.Entries()
	if len(entries) != 1 || entries[0].StackName != "example-com-site" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("expected Logger() to reset to a non-nil logger")
	}
	if Logger() == observability.StructuredLogger(stub) {
		t.Fatal("expected Logger() to reset away from the previous logger")
	}
}
