package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/sitetheory/pkg/deploy"
	"github.com/theory-cloud/sitetheory/pkg/logger"
	"github.com/theory-cloud/sitetheory/pkg/site"
)

type planDocument struct {
	StackName     string      `json:"stack_name" yaml:"stack_name"`
	CreationOrder []site.Node `json:"creation_order" yaml:"creation_order"`
	TeardownOrder []site.Node `json:"teardown_order,omitempty" yaml:"teardown_order,omitempty"`
	Graph         *site.Graph `json:"graph" yaml:"graph"`
}

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var format string
	var teardown bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the composed resource graph and its creation order",
		Example: `  # Plan a site from flags
  sitectl plan --domain www.example.com --hosted-zone example.com \
    --certificate-arn arn:aws:acm:us-east-1:123456789012:certificate/abc

  # Include the teardown order, as JSON
  sitectl plan -c site.yaml --teardown -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := normalizeFormat(format)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			graph, err := deploy.New(nil, deploy.WithLogger(opts.activeLogger())).Plan(cfg)
			if err != nil {
				return err
			}

			doc, err := buildPlan(graph, teardown)
			if err != nil {
				return err
			}
			logger.ForStack(graph.StackName).Info("sitectl.plan.composed", map[string]any{
				"resources": len(doc.CreationOrder),
				"teardown":  teardown,
			})
			return writePlan(opts.stdout, outFormat, doc)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format: yaml or json")
	cmd.Flags().BoolVar(&teardown, "teardown", false, "Also print the teardown order")
	return cmd
}

func buildPlan(graph *site.Graph, teardown bool) (*planDocument, error) {
	order, err := graph.CreationOrder()
	if err != nil {
		return nil, err
	}
	doc := &planDocument{
		StackName:     graph.StackName,
		CreationOrder: order,
		Graph:         graph,
	}
	if teardown {
		doc.TeardownOrder, err = graph.TeardownOrder()
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func writePlan(w io.Writer, format string, doc *planDocument) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
