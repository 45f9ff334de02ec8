package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaophot answers every command with a fixed report and a prompt.
const fakeDaophot = `#!/bin/bash
echo ' DAOPHOT II'
echo ' READ NOISE (ADU; 1 frame) =     2.20   GAIN (e-/ADU; 1 frame) =    10.00'
printf '\n Command:'
while IFS= read -r line; do
  case "$line" in
    ATTACH*) printf '\n Picture size:   10  20\n\n Command:' ;;
    FIND)
      read -r a; read -r out; read -r b; echo coo > "$out"
      echo ' Sky mode and standard deviation =  100.000   5.000'
      echo ' Clipped mean and median =  101.000  100.500'
      echo ' Number of pixels used (after clip) = 200'
      echo ' Relative error = 1.01'
      echo '   7 stars.'
      printf '\n Command:' ;;
    PHOT)
      read -r p; while IFS= read -r kv && [ -n "$kv" ]; do :; done
      read -r s; read -r out; echo ap > "$out"
      printf '\n Estimated magnitude limit (Aperture 1): 17.50 +- 0.20 per star.\n\n Command:' ;;
    PICK)
      read -r a; read -r b; read -r out; echo lst > "$out"
      printf '\n     5 suitable candidates were found.\n\n Command:' ;;
    EXIT) exit 0 ;;
  esac
done
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSchemaCmd(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)

	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Contains(t, s, "properties")
}

func TestFindCmd(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "daophot")
	require.NoError(t, os.WriteFile(script, []byte(fakeDaophot), 0o755))
	image := filepath.Join(dir, "frame.fits")
	require.NoError(t, os.WriteFile(image, []byte("img"), 0o644))
	cfgPath := filepath.Join(dir, "daokit.yaml")
	cfg := "daophot:\n  executable: " + script + "\n  temp_base: " + dir + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	outDir := filepath.Join(dir, "results")

	out, err := run(t, "--config", cfgPath, "find", image, "--out", outDir)
	require.NoError(t, err)

	assert.Contains(t, out, "stars found:     7")
	assert.Contains(t, out, "magnitude limit: 17.50 +- 0.20")
	assert.Contains(t, out, "PSF candidates:  5")
	assert.FileExists(t, filepath.Join(outDir, "i.coo"))
	assert.FileExists(t, filepath.Join(outDir, "i.lst"))
}

func TestFindCmd_BadConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "find", "x.fits")
	require.Error(t, err)
}
