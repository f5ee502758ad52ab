package main

import (
	"github.com/spf13/cobra"

	"github.com/theory-cloud/sitetheory/pkg/deploy"
	"github.com/theory-cloud/sitetheory/pkg/sitecdk"
)

func newSynthCommand(opts *rootOptions) *cobra.Command {
	var outdir string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the CloudFormation cloud assembly",
		Long: `Synthesize the CloudFormation cloud assembly for the site stack.

When run by the CDK CLI (cdk.json "app"), the assembly is written to the
directory in CDK_OUTDIR and "cdk deploy" provisions it. Hosted zone lookups by
name need --account and --region (or CDK_DEFAULT_ACCOUNT/CDK_DEFAULT_REGION).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			synth := sitecdk.NewSynthesizer(sitecdk.WithOutdir(outdir))
			res, err := deploy.New(synth, deploy.WithLogger(opts.activeLogger())).Deploy(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printf(opts.stdout, "sitectl: synthesized %s to %s (deployment %s)\n",
				res.StackName, res.AssemblyDir, res.DeploymentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&outdir, "outdir", "", "Assembly output directory (default $CDK_OUTDIR or cdk.out)")
	return cmd
}
