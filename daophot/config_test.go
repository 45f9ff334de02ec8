package daophot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/runner"
	"github.com/randalmurphal/daokit/workdir"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "batch", modify: func(c *Config) { c.Mode = runner.ModeBatch }},
		{name: "no executable", modify: func(c *Config) { c.Executable = "" }, wantErr: true},
		{name: "unknown mode", modify: func(c *Config) { c.Mode = "lazy" }, wantErr: true},
		{name: "unknown staging", modify: func(c *Config) { c.Staging = "hardlink" }, wantErr: true},
		{name: "negative timeout", modify: func(c *Config) { c.ExitTimeout = -time.Second }, wantErr: true},
		{
			name:    "bad option key",
			modify:  func(c *Config) { c.Options = daoopt.Options{{Name: "?", Value: 1}} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Image: "frame.fits"}.WithDefaults()

	assert.Equal(t, "daophot", cfg.Executable)
	assert.Equal(t, runner.ModeEager, cfg.Mode)
	assert.Equal(t, workdir.StagingSymlink, cfg.Staging)
	assert.Equal(t, runner.DefaultExitTimeout, cfg.ExitTimeout)
	assert.Equal(t, "frame.fits", cfg.Image)

	kept := Config{Executable: "/opt/daophot", Mode: runner.ModeBatch}.WithDefaults()
	assert.Equal(t, "/opt/daophot", kept.Executable)
	assert.Equal(t, runner.ModeBatch, kept.Mode)
}
