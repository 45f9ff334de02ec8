// Package config loads daokit configuration files.
//
// A file has one section per tool plus logging settings. YAML, TOML and
// JSON are accepted, chosen by file extension:
//
//	daophot:
//	  executable: /opt/daophot/daophot
//	  mode: batch
//	  options:
//	    FI: 3.5
//	    PS: 12
//	allstar:
//	  exit_timeout: 30s
//	log:
//	  level: debug
//
// Durations are strings ("30s") in YAML and TOML and nanoseconds in JSON.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/daokit/allstar"
	"github.com/randalmurphal/daokit/daophot"
)

// Format is a configuration file syntax.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFor returns the format implied by a file name's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q (want .yaml, .yml, .toml or .json)", filepath.Ext(path))
	}
}

// File is the contents of a configuration file.
type File struct {
	Daophot daophot.Config `json:"daophot" yaml:"daophot" toml:"daophot"`
	Allstar allstar.Config `json:"allstar" yaml:"allstar" toml:"allstar"`
	Log     Log            `json:"log" yaml:"log" toml:"log"`
}

// Log configures the logger built by the CLI.
type Log struct {
	// Level is debug, info, warn or error. Default: info
	Level string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// Format is text or json. Default: text
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty" jsonschema:"enum=text,enum=json"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Daophot: daophot.DefaultConfig(),
		Allstar: allstar.DefaultConfig(),
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	f, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return File{}, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// Decode parses a configuration in the given format, then applies
// defaults and validates it. Unknown keys are errors.
func Decode(r io.Reader, format Format) (File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&f)
		if err != nil {
			return File{}, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return File{}, fmt.Errorf("parse toml: unknown key %s", undecoded[0])
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return File{}, fmt.Errorf("unknown config format %q", format)
	}

	f = f.WithDefaults()
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// WithDefaults returns a copy with defaults applied for unset fields.
func (f File) WithDefaults() File {
	f.Daophot = f.Daophot.WithDefaults()
	f.Allstar = f.Allstar.WithDefaults()
	if f.Log.Level == "" {
		f.Log.Level = "info"
	}
	if f.Log.Format == "" {
		f.Log.Format = "text"
	}
	return f
}

// Validate checks every section.
func (f *File) Validate() error {
	if err := f.Daophot.Validate(); err != nil {
		return fmt.Errorf("daophot: %w", err)
	}
	if err := f.Allstar.Validate(); err != nil {
		return fmt.Errorf("allstar: %w", err)
	}
	if _, err := f.Log.level(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch f.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q, expected one of: text, json", f.Log.Format)
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown level %q", l.Level)
	}
	return lvl, nil
}

// Logger builds a logger writing to w. debug forces the debug level.
func (l Log) Logger(w io.Writer, debug bool) *slog.Logger {
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&File{})
	s.Title = "daokit configuration"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
