package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/sitetheory/pkg/observability"
	"github.com/theory-cloud/sitetheory/pkg/site"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(args, "--no-env"), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func nodeIDs(nodes []site.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestRun_ValidateOK(t *testing.T) {
	inTempDir(t)

	code, stdout, stderr := runCLI(t, "validate", "--domain", "example.com", "--certificate-arn", "arn:cert:123")
	require.Equal(t, exitOK, code, stderr)
	require.Contains(t, stdout, "sitectl: ok: example-com-site serves example.com from zone example.com")
}

func TestRun_ValidateMissingCertificateExitsWithConfigCode(t *testing.T) {
	inTempDir(t)

	code, stdout, stderr := runCLI(t, "validate", "--domain", "example.com")
	require.Equal(t, exitConfig, code)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "sitectl: FAIL:")
	require.Contains(t, stderr, "certificate_arn")
}

func TestRun_PlanYAML(t *testing.T) {
	inTempDir(t)

	code, stdout, stderr := runCLI(t, "plan", "--domain", "www.example.com", "--hosted-zone", "example.com",
		"--certificate-arn", "arn:cert:123", "--stage", "prod", "--tag", "team=web")
	require.Equal(t, exitOK, code, stderr)

	var doc planDocument
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))
	require.Equal(t, "www-example-com-site-live", doc.StackName)
	require.Equal(t, []string{
		site.CertificateID, site.StorageID, site.DistributionID, site.ZoneID, site.AliasRecordID,
	}, nodeIDs(doc.CreationOrder))
	require.Empty(t, doc.TeardownOrder)
	require.Equal(t, "example.com", doc.Graph.Zone.ZoneName)
	require.Equal(t, map[string]string{"team": "web"}, doc.Graph.Tags)
}

func TestRun_PlanJSONWithTeardown(t *testing.T) {
	inTempDir(t)

	code, stdout, stderr := runCLI(t, "plan", "-o", "json", "--teardown",
		"--domain", "example.com", "--certificate-arn", "arn:cert:123")
	require.Equal(t, exitOK, code, stderr)

	var doc planDocument
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	require.Equal(t, []string{site.AliasRecordID, site.DistributionID, site.StorageID}, nodeIDs(doc.TeardownOrder))
	require.Equal(t, site.ViewerProtocolHTTPSOnly, doc.Graph.Distribution.ViewerProtocolPolicy)
}

func TestRun_PlanRejectsUnknownFormat(t *testing.T) {
	inTempDir(t)

	code, _, stderr := runCLI(t, "plan", "-o", "toml", "--domain", "example.com", "--certificate-arn", "arn:cert:123")
	require.Equal(t, exitConfig, code)
	require.Contains(t, stderr, "unsupported output format")
}

func TestRun_ConfigFileAndFlagOverride(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"), []byte(
		"domain_name: example.com\ncertificate_arn: arn:cert:file\nremoval_policy: retain\n",
	), 0o600))

	code, stdout, stderr := runCLI(t, "plan", "--certificate-arn", "arn:cert:flag")
	require.Equal(t, exitOK, code, stderr)

	var doc planDocument
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))
	require.Equal(t, "arn:cert:flag", doc.Graph.Certificate.ARN)
	require.Equal(t, site.RemovalPolicyRetain, doc.Graph.Storage.RemovalPolicy)
}

func TestRun_MissingExplicitConfigFile(t *testing.T) {
	inTempDir(t)

	code, _, stderr := runCLI(t, "validate", "--config", "nope.yaml")
	require.Equal(t, exitConfig, code)
	require.Contains(t, stderr, "nope.yaml")
}

func TestRun_RetainWithAutoDeleteIsRejected(t *testing.T) {
	inTempDir(t)

	code, _, _ := runCLI(t, "validate", "--domain", "example.com", "--certificate-arn", "arn:cert:123",
		"--removal-policy", "retain", "--auto-delete-objects")
	require.Equal(t, exitConfig, code)
}

func TestRun_UnknownCommand(t *testing.T) {
	inTempDir(t)

	code, _, stderr := runCLI(t, "deploy-everything")
	require.Equal(t, exitFailure, code)
	require.Contains(t, stderr, "unknown command")
}

func TestRun_Synth(t *testing.T) {
	dir := inTempDir(t)
	outdir := filepath.Join(dir, "assembly")

	code, stdout, stderr := runCLI(t, "synth", "--outdir", outdir,
		"--domain", "example.com", "--hosted-zone-id", "Z123EXAMPLE",
		"--certificate-arn", "arn:aws:acm:us-east-1:123456789012:certificate/abc")
	require.Equal(t, exitOK, code, stderr)
	require.Contains(t, stdout, "sitectl: synthesized example-com-site to "+outdir)

	_, err := os.Stat(filepath.Join(outdir, "example-com-site.template.json"))
	require.NoError(t, err)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitConfig, exitCode(&site.ConfigError{Field: "domain_name"}))
	require.Equal(t, exitConfig, exitCode(usagef("bad flag")))
	require.Equal(t, exitFailure, exitCode(os.ErrPermission))
}

func TestRun_PlanLogsComposedStack(t *testing.T) {
	inTempDir(t)

	code, _, stderr := runCLI(t, "plan", "--log-format", "json", "--domain", "example.com",
		"--certificate-arn", "arn:aws:acm:us-east-1:123456789012:certificate/abc")
	require.Equal(t, exitOK, code, stderr)
	require.Contains(t, stderr, `"message":"sitectl.plan.composed"`)
	require.Contains(t, stderr, `"stack_name":"example-com-site"`)
	require.Contains(t, stderr, `"resources":"5"`)
}

type statsLogger struct {
	observability.StructuredLogger
	stats   observability.LoggerStats
	healthy bool
}

func (l statsLogger) GetStats() observability.LoggerStats { return l.stats }
func (l statsLogger) IsHealthy() bool                     { return l.healthy }

func TestCloseLogger_ReportsLostNotifications(t *testing.T) {
	var stderr bytes.Buffer
	opts := &rootOptions{stderr: &stderr, log: statsLogger{
		StructuredLogger: observability.NewNoOpLogger(),
		stats:            observability.LoggerStats{EntriesDropped: 2, ErrorCount: 1, LastError: "sns: throttled"},
	}}

	opts.closeLogger(context.Background())
	require.Contains(t, stderr.String(), "sitectl: warning: 2 error notifications were dropped")
	require.Contains(t, stderr.String(), "logger unhealthy after 1 errors: sns: throttled")

	stderr.Reset()
	opts.log = statsLogger{StructuredLogger: observability.NewNoOpLogger(), healthy: true}
	opts.closeLogger(context.Background())
	require.Empty(t, stderr.String())
}
