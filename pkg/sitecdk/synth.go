package sitecdk

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/theory-cloud/sitetheory/pkg/deploy"
	"github.com/theory-cloud/sitetheory/pkg/site"
)

// envCDKOutdir is set by the CDK CLI when it runs the app.
const envCDKOutdir = "CDK_OUTDIR"

// DefaultOutdir is used when neither WithOutdir nor CDK_OUTDIR is set.
const DefaultOutdir = "cdk.out"

// Synthesizer is a deploy.Orchestrator that renders the graph and writes a
// cloud assembly. Provisioning is left to the CDK CLI, so Result.AssemblyDir
// is set and Outputs are empty until the stack is deployed.
type Synthesizer struct {
	outdir      string
	description string
	newApp      func(outdir string) awscdk.App
}

var _ deploy.Orchestrator = (*Synthesizer)(nil)

type SynthOption func(*Synthesizer)

func WithOutdir(dir string) SynthOption {
	return func(s *Synthesizer) {
		s.outdir = strings.TrimSpace(dir)
	}
}

func WithDescription(description string) SynthOption {
	return func(s *Synthesizer) {
		s.description = description
	}
}

func NewSynthesizer(options ...SynthOption) *Synthesizer {
	s := &Synthesizer{
		newApp: func(outdir string) awscdk.App {
			return awscdk.NewApp(&awscdk.AppProps{Outdir: jsii.String(outdir)})
		},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Outdir returns the directory the assembly will be written to.
func (s *Synthesizer) Outdir() string {
	if s.outdir != "" {
		return s.outdir
	}
	if dir := strings.TrimSpace(os.Getenv(envCDKOutdir)); dir != "" {
		return dir
	}
	return DefaultOutdir
}

// Apply synthesizes graph. Errors raised inside the CDK runtime surface as
// returned errors rather than panics.
func (s *Synthesizer) Apply(ctx context.Context, graph *site.Graph) (res *deploy.Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("sitecdk: synth %s: %v", graph.StackName, r)
		}
	}()

	app := s.newApp(s.Outdir())
	if _, err := NewSiteStack(app, graph.StackName, graph, &SiteStackProps{Description: s.description}); err != nil {
		return nil, err
	}

	assembly := app.Synth(nil)
	return &deploy.Result{
		StackName:   graph.StackName,
		AssemblyDir: *assembly.Directory(),
	}, nil
}
