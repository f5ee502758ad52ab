package deploy

import (
	"errors"
	"fmt"

	"github.com/theory-cloud/sitetheory/pkg/site"
)

// ErrTeardownUnsupported is returned by Deployer.Teardown when the
// orchestrator cannot destroy stacks itself.
var ErrTeardownUnsupported = errors.New("deploy: orchestrator does not support teardown")

// ReferenceError reports that the provider could not resolve an imported
// resource, such as a certificate ARN or hosted zone name.
type ReferenceError struct {
	ResourceID string
	Kind       site.Kind
	Identifier string
	Reason     string
}

func (e *ReferenceError) Error() string {
	msg := fmt.Sprintf("deploy: %s %q (%s) did not resolve", e.Kind, e.Identifier, e.ResourceID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ProviderError reports a failure while the provider created, updated or
// deleted a resource.
type ProviderError struct {
	ResourceID string
	Op         string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("deploy: %s %s: %v", e.Op, e.ResourceID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func IsReferenceError(err error) bool {
	var refErr *ReferenceError
	return errors.As(err, &refErr)
}

func IsProviderError(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr)
}
