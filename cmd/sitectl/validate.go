package main

import (
	"github.com/spf13/cobra"

	"github.com/theory-cloud/sitetheory/pkg/deploy"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the site configuration without contacting AWS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			graph, err := deploy.New(nil, deploy.WithLogger(opts.activeLogger())).Plan(cfg)
			if err != nil {
				return err
			}
			printf(opts.stdout, "sitectl: ok: %s serves %s from zone %s\n",
				graph.StackName, graph.Alias.RecordName, graph.Zone.ZoneName)
			return nil
		},
	}
}
