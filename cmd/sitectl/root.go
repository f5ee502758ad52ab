package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theory-cloud/sitetheory/pkg/logger"
	"github.com/theory-cloud/sitetheory/pkg/observability"
	obszap "github.com/theory-cloud/sitetheory/pkg/observability/zap"
	"github.com/theory-cloud/sitetheory/pkg/site"
	"github.com/theory-cloud/sitetheory/pkg/siteconfig"
)

const flushTimeout = 5 * time.Second

type rootOptions struct {
	configFile string
	envFile    string
	noEnv      bool

	domain         string
	certificateARN string
	stackName      string
	stage          string
	hostedZoneName string
	hostedZoneID   string
	removalPolicy  string
	autoDelete     bool
	rootObject     string
	account        string
	region         string
	tags           map[string]string

	logLevel  string
	logFormat string

	stdout io.Writer
	stderr io.Writer
	log    observability.StructuredLogger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "sitectl",
		Short:         "Compose S3 + CloudFront + Route 53 static site stacks",
		Long:          "sitectl turns a domain name and an existing ACM certificate into a private bucket, an HTTPS-only CloudFront distribution, and an alias record.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setupLogger(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			opts.closeLogger(cmd.Context())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Site config file (default ./site.yaml when present)")
	flags.StringVar(&opts.envFile, "env-file", "", "Dotenv file exported before reading SITE_* variables (default ./.env when present)")
	flags.BoolVar(&opts.noEnv, "no-env", false, "Ignore the dotenv file and SITE_* variables")
	flags.StringVar(&opts.domain, "domain", "", "Site domain name, e.g. www.example.com")
	flags.StringVar(&opts.certificateARN, "certificate-arn", "", "ARN of an issued ACM certificate in us-east-1 covering the domain")
	flags.StringVar(&opts.stackName, "stack-name", "", "Stack name (derived from domain and stage when empty)")
	flags.StringVar(&opts.stage, "stage", "", "Deployment stage used in the derived stack name")
	flags.StringVar(&opts.hostedZoneName, "hosted-zone", "", "Hosted zone holding the alias record (defaults to the domain)")
	flags.StringVar(&opts.hostedZoneID, "hosted-zone-id", "", "Import the hosted zone by ID instead of looking it up")
	flags.StringVar(&opts.removalPolicy, "removal-policy", "", "Bucket removal policy: destroy or retain")
	flags.BoolVar(&opts.autoDelete, "auto-delete-objects", false, "Empty the bucket when the stack is destroyed")
	flags.StringVar(&opts.rootObject, "default-root-object", "", "Object served for the bare domain (default index.html)")
	flags.StringVar(&opts.account, "account", "", "AWS account ID for the stack environment")
	flags.StringVar(&opts.region, "region", "", "AWS region for the stack environment")
	flags.StringToStringVar(&opts.tags, "tag", nil, "Stack tag as key=value (repeatable)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json (json under CI)")

	cmd.AddCommand(
		newValidateCommand(opts),
		newPlanCommand(opts),
		newSynthCommand(opts),
	)
	return cmd
}

func (o *rootOptions) setupLogger(ctx context.Context) error {
	l, err := obszap.NewZapLogger(
		observability.LoggerConfig{Level: o.logLevel, Format: o.logFormat},
		obszap.WithWriter(o.stderr),
		obszap.WithEnvironmentErrorNotifications(ctx, obszap.DefaultEnvironmentErrorNotifications()),
	)
	if err != nil {
		return usagef("logger: %v", err)
	}
	o.log = l
	logger.SetLogger(l)
	return nil
}

func (o *rootOptions) closeLogger(ctx context.Context) {
	if o.log == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	_ = o.log.Flush(flushCtx)
	o.reportLoggerStats()
	_ = o.log.Close()
	logger.SetLogger(nil)
}

// reportLoggerStats warns on stderr when error notifications were lost or the
// logger failed.
func (o *rootOptions) reportLoggerStats() {
	stats := o.log.GetStats()
	if stats.EntriesDropped > 0 {
		printf(o.stderr, "sitectl: warning: %d error notifications were dropped\n", stats.EntriesDropped)
	}
	if !o.log.IsHealthy() && stats.LastError != "" {
		printf(o.stderr, "sitectl: warning: logger unhealthy after %d errors: %s\n", stats.ErrorCount, stats.LastError)
	}
}

// loadConfig reads every configuration source. Flags override only when set
// on the command line.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (site.Config, error) {
	flags := cmd.Flags()
	changed := func(name string) bool { return flags.Changed(name) }
	str := func(name, v string) *string {
		if !changed(name) {
			return nil
		}
		return &v
	}

	overrides := siteconfig.Overrides{
		DomainName:        str("domain", o.domain),
		CertificateARN:    str("certificate-arn", o.certificateARN),
		StackName:         str("stack-name", o.stackName),
		Stage:             str("stage", o.stage),
		HostedZoneName:    str("hosted-zone", o.hostedZoneName),
		HostedZoneID:      str("hosted-zone-id", o.hostedZoneID),
		RemovalPolicy:     str("removal-policy", o.removalPolicy),
		DefaultRootObject: str("default-root-object", o.rootObject),
		Account:           str("account", o.account),
		Region:            str("region", o.region),
		Tags:              o.tags,
	}
	if changed("auto-delete-objects") {
		v := o.autoDelete
		overrides.AutoDeleteObjects = &v
	}

	cfg, err := siteconfig.Load(siteconfig.LoadOptions{
		ConfigFile: o.configFile,
		EnvFile:    o.envFile,
		SkipEnv:    o.noEnv,
		Overrides:  overrides,
	})
	if err != nil {
		return site.Config{}, usagef("%v", err)
	}
	return cfg, nil
}

func (o *rootOptions) activeLogger() observability.StructuredLogger {
	if o.log == nil {
		return logger.Logger()
	}
	return o.log
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func normalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "yaml", "yml":
		return "yaml", nil
	case "json":
		return "json", nil
	default:
		return "", usagef("unsupported output format %q (want yaml or json)", format)
	}
}
