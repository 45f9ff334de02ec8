package allstar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/fname"
	"github.com/randalmurphal/daokit/runner"
)

// fakeAllstar prints an option table and the OPT> prompt, reads option
// answers up to an empty line, then the five file names. It reports
// progress only after its input ends, like allstar.
const fakeAllstar = `#!/bin/bash
echo ' FITTING RADIUS =     3.00    CE (CLIPPING EXPONENT) =     6.00'
echo ' REDETERMINE CENTROIDS =     1.00    CR (CLIPPING RANGE) =     2.50'
printf '\n OPT> '
while IFS= read -r kv && [ -n "$kv" ]; do :; done
read -r image; read -r psf; read -r ap; read -r als; read -r sub
while IFS= read -r rest; do :; done
[ -e "$image" ] || { echo " Cannot open $image"; exit 1; }
echo
echo "      1    150      0      0"
echo "      2    148     20      2"
echo "     10    140    138      4"
echo
echo " Finished."
echo "results" > "$als"
[ -n "$sub" ] && echo "subtracted" > "$sub"
exit 0
`

func newAllstar(t *testing.T, opts ...Option) (*Allstar, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fname.Image), []byte("img"), 0o644))
	script := filepath.Join(t.TempDir(), "allstar")
	require.NoError(t, os.WriteFile(script, []byte(fakeAllstar), 0o755))

	opts = append([]Option{WithExecutable(script), WithDir(dir)}, opts...)
	a, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, dir
}

func TestFit_Eager(t *testing.T) {
	ctx := context.Background()
	var transcript bytes.Buffer
	a, dir := newAllstar(t, WithTranscript(&transcript))

	res, err := a.Fit(ctx, Params{Options: daoopt.Single("FI", 4)})
	require.NoError(t, err)

	p, err := res.Progress()
	require.NoError(t, err)
	assert.Equal(t, Progress{Iteration: 10, Stars: 140, Converged: 138, Disappeared: 4}, p)

	assert.Equal(t, "FI=4.00\n\ni.fits\ni.psf\ni.ap\ni.als\nis.fits\n", transcript.String())
	assert.Equal(t, filepath.Join(dir, fname.AllstarResults), res.File())
	assert.FileExists(t, res.File())
	assert.FileExists(t, res.SubtractedFile())

	listing := a.Listing()
	require.NotNil(t, listing)
	opts, err := listing.Options()
	require.NoError(t, err)
	ce, ok := opts.Get("CE")
	require.True(t, ok)
	assert.InDelta(t, 6.0, ce, 1e-9)
}

func TestNew_StagesDefaultOptFile(t *testing.T) {
	a, dir := newAllstar(t)
	data, err := os.ReadFile(filepath.Join(dir, fname.AllstarOpt))
	require.NoError(t, err)
	assert.Equal(t, defaultAllstarOpt, data)

	require.NoError(t, a.Close())
	assert.DirExists(t, dir, "external directory must survive Close")
}

func TestFit_OneShotNeedsReset(t *testing.T) {
	ctx := context.Background()
	a, _ := newAllstar(t)

	_, err := a.Fit(ctx, Params{})
	require.NoError(t, err)

	_, err = a.Fit(ctx, Params{})
	require.Error(t, err)
	assert.True(t, runner.IsUsage(err))
	assert.ErrorIs(t, err, runner.ErrInputClosed)
	assert.FileExists(t, a.File(fname.AllstarResults), "rejected run must not touch outputs")

	require.NoError(t, a.Reset(ctx))
	res, err := a.Fit(ctx, Params{NoSubtracted: true})
	require.NoError(t, err)
	assert.Empty(t, res.SubtractedFile())
	stars, err := res.Stars()
	require.NoError(t, err)
	assert.Equal(t, 140, stars)
}

func TestFit_Batch(t *testing.T) {
	ctx := context.Background()
	a, _ := newAllstar(t, WithBatch())

	res, err := a.Fit(ctx, Params{Output: "r.als"})
	require.NoError(t, err)
	assert.Equal(t, runner.StatusCreated, a.Session().Status())

	_, err = res.Stars()
	assert.ErrorIs(t, err, runner.ErrNotRun)

	require.NoError(t, a.Run(ctx, true))
	stars, err := res.Stars()
	require.NoError(t, err)
	assert.Equal(t, 140, stars)
	assert.FileExists(t, a.File("r.als"))
}

func TestFit_MissingProgressIsProtocolError(t *testing.T) {
	ctx := context.Background()
	a, _ := newAllstar(t, WithBatch())

	res, err := a.Fit(ctx, Params{Image: "missing.fits"})
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx, true))

	_, err = res.Progress()
	require.Error(t, err)
	assert.True(t, runner.IsProtocol(err))
	assert.ErrorIs(t, err, runner.ErrMissingField)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	a, _ := newAllstar(t, WithBatch())

	_, err := a.Fit(ctx, Params{})
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx, false))

	dst := filepath.Join(t.TempDir(), "out.als")
	require.NoError(t, a.Export(ctx, fname.AllstarResults, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "results\n", string(data))
}
