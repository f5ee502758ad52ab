package sitecdk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/sitetheory/pkg/deploy"
	"github.com/theory-cloud/sitetheory/pkg/observability"
)

func TestSynthesizer_WritesAssembly(t *testing.T) {
	dir := t.TempDir()
	g := composeSite(t, nil)

	res, err := NewSynthesizer(WithOutdir(dir)).Apply(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, g.StackName, res.StackName)
	require.Equal(t, dir, res.AssemblyDir)

	_, err = os.Stat(filepath.Join(dir, g.StackName+".template.json"))
	require.NoError(t, err)
}

func TestSynthesizer_Outdir(t *testing.T) {
	t.Setenv(envCDKOutdir, "")
	require.Equal(t, DefaultOutdir, NewSynthesizer().Outdir())

	t.Setenv(envCDKOutdir, "/tmp/assembly")
	require.Equal(t, "/tmp/assembly", NewSynthesizer().Outdir())
	require.Equal(t, "out", NewSynthesizer(WithOutdir(" out ")).Outdir())
}

func TestSynthesizer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSynthesizer(WithOutdir(t.TempDir())).Apply(ctx, composeSite(t, nil))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSynthesizer_ThroughDeployer(t *testing.T) {
	dir := t.TempDir()
	log := observability.NewTestLogger()
	d := deploy.New(NewSynthesizer(WithOutdir(dir)), deploy.WithLogger(log))

	res, err := d.Deploy(context.Background(), siteConfig(nil))
	require.NoError(t, err)
	require.Equal(t, dir, res.AssemblyDir)
	require.NotEmpty(t, res.DeploymentID)

	require.ErrorIs(t, d.Teardown(context.Background(), siteConfig(nil)), deploy.ErrTeardownUnsupported)
}
