package siteconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/sitetheory/pkg/site"
)

var siteEnvKeys = []string{
	"SITE_DOMAIN_NAME",
	"SITE_CERTIFICATE_ARN",
	"SITE_STACK_NAME",
	"SITE_STAGE",
	"SITE_HOSTED_ZONE_NAME",
	"SITE_HOSTED_ZONE_ID",
	"SITE_REMOVAL_POLICY",
	"SITE_AUTO_DELETE_OBJECTS",
	"SITE_DEFAULT_ROOT_OBJECT",
	"SITE_ACCOUNT",
	"SITE_REGION",
	"SITE_TAGS",
	envCDKDefaultAccount,
	envCDKDefaultRegion,
}

// clearEnv unsets keys for the duration of the test, restoring them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range siteEnvKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func ptr[T any](v T) *T { return &v }

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "site.yaml", `
domain_name: example.com
certificate_arn: arn:aws:acm:us-east-1:123456789012:certificate/abc
stage: prod
removal_policy: retain
tags:
  team: web
`)

	cfg, err := Load(LoadOptions{ConfigFile: path, EnvFile: filepath.Join(dir, "missing.env"), SkipEnv: true})
	require.NoError(t, err)
	require.Equal(t, "example.com", cfg.DomainName)
	require.Equal(t, "arn:aws:acm:us-east-1:123456789012:certificate/abc", cfg.CertificateARN)
	require.Equal(t, "prod", cfg.Stage)
	require.Equal(t, site.RemovalPolicyRetain, cfg.RemovalPolicy)
	require.Equal(t, map[string]string{"team": "web"}, cfg.Tags)
}

func TestLoad_UnknownYAMLKeyIsError(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "site.yaml", "domain: example.com\n")

	_, err := Load(LoadOptions{ConfigFile: path, SkipEnv: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "site.yaml")
}

func TestLoad_ExplicitMissingFileIsError(t *testing.T) {
	clearEnv(t)

	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), SkipEnv: true})
	require.Error(t, err)
}

func TestLoad_DefaultFilesAreOptional(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, site.Config{}, cfg)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, DefaultConfigFile, `
domain_name: file.example.com
certificate_arn: arn:file
stage: dev
region: us-west-2
tags:
  team: web
`)
	writeFile(t, dir, DefaultEnvFile, strings.Join([]string{
		"SITE_STAGE=staging",
		"SITE_CERTIFICATE_ARN=arn:dotenv",
		"SITE_DOMAIN_NAME=dotenv.example.com",
	}, "\n"))
	t.Setenv("SITE_DOMAIN_NAME", "env.example.com")
	t.Setenv("SITE_TAGS", "owner:ops,team:platform")
	t.Setenv("SITE_AUTO_DELETE_OBJECTS", "true")

	cfg, err := Load(LoadOptions{Overrides: Overrides{Stage: ptr("prod")}})
	require.NoError(t, err)

	require.Equal(t, "env.example.com", cfg.DomainName)
	require.Equal(t, "arn:dotenv", cfg.CertificateARN)
	require.Equal(t, "prod", cfg.Stage)
	require.Equal(t, "us-west-2", cfg.Region)
	require.True(t, cfg.AutoDeleteObjects)
	require.Equal(t, map[string]string{"team": "platform", "owner": "ops"}, cfg.Tags)
}

func TestLoad_BadEnvValue(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("SITE_AUTO_DELETE_OBJECTS", "maybe")

	_, err := Load(LoadOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "environment")
}

func TestLoad_CDKDefaultsFillAccountAndRegion(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(envCDKDefaultAccount, "123456789012")
	t.Setenv(envCDKDefaultRegion, "eu-west-1")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "123456789012", cfg.Account)
	require.Equal(t, "eu-west-1", cfg.Region)

	cfg, err = Load(LoadOptions{Overrides: Overrides{Region: ptr("us-east-1")}})
	require.NoError(t, err)
	require.Equal(t, "us-east-1", cfg.Region)
}

func TestOverrides_RemovalPolicyNormalized(t *testing.T) {
	t.Parallel()

	var cfg site.Config
	Overrides{RemovalPolicy: ptr(" RETAIN "), AutoDeleteObjects: ptr(false)}.apply(&cfg)
	require.Equal(t, site.RemovalPolicyRetain, cfg.RemovalPolicy)
	require.False(t, cfg.AutoDeleteObjects)
}

func TestDecode_EmptyDocument(t *testing.T) {
	t.Parallel()

	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, site.Config{}, cfg)
}

func TestLoad_ComposesEndToEnd(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "site.yaml", "domain_name: Example.COM.\ncertificate_arn: arn:cert:123\n")

	cfg, err := Load(LoadOptions{ConfigFile: path, SkipEnv: true})
	require.NoError(t, err)

	g, err := site.Compose(cfg)
	require.NoError(t, err)
	require.Equal(t, "example.com", g.Alias.RecordName)
}
