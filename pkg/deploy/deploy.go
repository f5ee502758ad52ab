// Package deploy hands composed site graphs to an orchestrator.
//
// The orchestrator owns every side effect: resolving the certificate and hosted
// zone, creating resources in dependency order, and rolling back partial
// failures. Deployer only composes, correlates logs, and surfaces whatever the
// orchestrator returns.
package deploy

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/theory-cloud/sitetheory/pkg/observability"
	"github.com/theory-cloud/sitetheory/pkg/site"
)

// Orchestrator reconciles a graph against the provider.
type Orchestrator interface {
	Apply(ctx context.Context, graph *site.Graph) (*Result, error)
}

// Destroyer is implemented by orchestrators that can delete a stack in
// reverse dependency order.
type Destroyer interface {
	Destroy(ctx context.Context, graph *site.Graph) error
}

// Result is what an orchestrator reports after a successful Apply.
type Result struct {
	StackName    string            `json:"stack_name" yaml:"stack_name"`
	DeploymentID string            `json:"deployment_id" yaml:"deployment_id"`
	Outputs      map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	PhysicalIDs  map[string]string `json:"physical_ids,omitempty" yaml:"physical_ids,omitempty"`

	// AssemblyDir is set by orchestrators that emit a cloud assembly for an
	// external tool to deploy instead of applying it themselves.
	AssemblyDir string `json:"assembly_dir,omitempty" yaml:"assembly_dir,omitempty"`
}

type Option func(*Deployer)

func WithLogger(logger observability.StructuredLogger) Option {
	return func(d *Deployer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDeploymentIDs overrides the ULID generator used for deployment IDs.
func WithDeploymentIDs(fn func() string) Option {
	return func(d *Deployer) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// Deployer composes a site.Config and submits the graph to an Orchestrator.
type Deployer struct {
	orchestrator Orchestrator
	logger       observability.StructuredLogger
	newID        func() string
}

func New(orchestrator Orchestrator, options ...Option) *Deployer {
	d := &Deployer{
		orchestrator: orchestrator,
		logger:       observability.NewNoOpLogger(),
		newID:        func() string { return ulid.Make().String() },
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(d)
	}
	return d
}

// Plan composes cfg without contacting the orchestrator.
func (d *Deployer) Plan(cfg site.Config) (*site.Graph, error) {
	graph, err := site.Compose(cfg)
	if err != nil {
		d.logger.Warn("site.config.rejected", map[string]any{
			"error":      err.Error(),
			"error_code": site.ErrorCode(err),
		})
		return nil, err
	}
	return graph, nil
}

// Deploy composes cfg and applies it. Configuration errors are returned before
// anything is submitted. Orchestrator errors are returned unchanged.
func (d *Deployer) Deploy(ctx context.Context, cfg site.Config) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d == nil || d.orchestrator == nil {
		return nil, errors.New("deploy: orchestrator is nil")
	}

	graph, err := d.Plan(cfg)
	if err != nil {
		return nil, err
	}

	deploymentID := d.newID()
	log := d.logger.WithStackName(graph.StackName).WithDeploymentID(deploymentID)
	log.Info("deploy.apply.started", map[string]any{
		"domain_name":     graph.Alias.RecordName,
		"certificate_arn": graph.Certificate.ARN,
		"zone_name":       graph.Zone.ZoneName,
	})

	res, err := d.orchestrator.Apply(ctx, graph)
	if err != nil {
		log.Error("deploy.apply.failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	if res.StackName == "" {
		res.StackName = graph.StackName
	}
	res.DeploymentID = deploymentID

	log.Info("deploy.apply.completed", map[string]any{
		"outputs":      res.Outputs,
		"assembly_dir": res.AssemblyDir,
	})
	return res, nil
}

// Teardown composes cfg and asks the orchestrator to destroy the stack.
func (d *Deployer) Teardown(ctx context.Context, cfg site.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if d == nil || d.orchestrator == nil {
		return errors.New("deploy: orchestrator is nil")
	}

	destroyer, ok := d.orchestrator.(Destroyer)
	if !ok {
		return ErrTeardownUnsupported
	}

	graph, err := d.Plan(cfg)
	if err != nil {
		return err
	}

	deploymentID := d.newID()
	log := d.logger.WithStackName(graph.StackName).WithDeploymentID(deploymentID)
	log.Info("deploy.destroy.started")

	if err := destroyer.Destroy(ctx, graph); err != nil {
		log.Error("deploy.destroy.failed", map[string]any{"error": err.Error()})
		return err
	}

	log.Info("deploy.destroy.completed")
	return nil
}
