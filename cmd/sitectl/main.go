// Command sitectl composes static site stacks: it validates configuration,
// prints the resource plan, and synthesizes the CDK cloud assembly.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/theory-cloud/sitetheory/pkg/site"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	fmt.Fprintf(stderr, "sitectl: FAIL: %v\n", err)
	return exitCode(err)
}

// exitCode maps configuration problems to 2 so CI can tell them apart from
// provider and synth failures.
func exitCode(err error) int {
	var usage *usageError
	if site.IsConfigError(err) || errors.As(err, &usage) {
		return exitConfig
	}
	return exitFailure
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
