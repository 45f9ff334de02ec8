package allstar

import (
	"fmt"
	"time"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/runner"
	"github.com/randalmurphal/daokit/workdir"
)

// Config holds allstar session configuration.
type Config struct {
	// Executable is the allstar program, resolved through PATH.
	// Default: "allstar"
	Executable string `json:"executable" yaml:"executable" toml:"executable"`

	// Mode is "eager" (Fit runs immediately) or "batch".
	// Default: "eager"
	Mode runner.Mode `json:"mode" yaml:"mode" toml:"mode" jsonschema:"enum=eager,enum=batch"`

	// OptFile is staged as allstar.opt. Empty uses the built-in default
	// unless the directory already has one.
	OptFile string `json:"opt_file,omitempty" yaml:"opt_file,omitempty" toml:"opt_file,omitempty"`

	// Options are answered at the OPT> prompt of every run.
	Options daoopt.Options `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`

	// Dir is an existing working directory, usually a daophot session's.
	// Empty creates a temporary one that is removed on Close.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`

	// TempBase is the parent directory of temporary working directories.
	TempBase string `json:"temp_base,omitempty" yaml:"temp_base,omitempty" toml:"temp_base,omitempty"`

	// Staging is "symlink" or "copy". Default: "symlink"
	Staging workdir.Staging `json:"staging" yaml:"staging" toml:"staging" jsonschema:"enum=symlink,enum=copy"`

	// Retain keeps a temporary working directory after Close.
	Retain bool `json:"retain,omitempty" yaml:"retain,omitempty" toml:"retain,omitempty"`

	// ExitTimeout is how long Close waits for allstar to exit.
	// Default: 5 seconds.
	ExitTimeout time.Duration `json:"exit_timeout" yaml:"exit_timeout" toml:"exit_timeout"`

	// Env provides additional environment variables for allstar.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Executable:  "allstar",
		Mode:        runner.ModeEager,
		Staging:     workdir.StagingSymlink,
		ExitTimeout: runner.DefaultExitTimeout,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Executable == "" {
		return fmt.Errorf("executable is required")
	}
	if err := c.Mode.Validate(); err != nil {
		return err
	}
	switch c.Staging {
	case workdir.StagingSymlink, workdir.StagingCopy:
	default:
		return fmt.Errorf("unknown staging %q, expected one of: symlink, copy", c.Staging)
	}
	if c.ExitTimeout < 0 {
		return fmt.Errorf("exit_timeout must be >= 0")
	}
	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}

// WithDefaults returns a copy of the config with defaults applied for unset fields.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Executable == "" {
		c.Executable = defaults.Executable
	}
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.Staging == "" {
		c.Staging = defaults.Staging
	}
	if c.ExitTimeout == 0 {
		c.ExitTimeout = defaults.ExitTimeout
	}
	return c
}
