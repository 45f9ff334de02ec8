package allstar

import (
	"io"
	"log/slog"
	"time"

	"github.com/randalmurphal/daokit/runner"
)

// Option configures an Allstar session.
type Option func(*builder)

type builder struct {
	cfg        Config
	logger     *slog.Logger
	transcript io.Writer
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(b *builder) { b.cfg = cfg }
}

// WithExecutable sets the allstar program.
func WithExecutable(path string) Option {
	return func(b *builder) { b.cfg.Executable = path }
}

// WithMode sets the execution mode.
func WithMode(mode runner.Mode) Option {
	return func(b *builder) { b.cfg.Mode = mode }
}

// WithBatch is shorthand for WithMode(runner.ModeBatch).
func WithBatch() Option {
	return WithMode(runner.ModeBatch)
}

// WithDir works in an existing directory.
func WithDir(dir string) Option {
	return func(b *builder) { b.cfg.Dir = dir }
}

// WithTempBase sets the parent of the temporary working directory.
func WithTempBase(dir string) Option {
	return func(b *builder) { b.cfg.TempBase = dir }
}

// WithOptFile stages path as allstar.opt.
func WithOptFile(path string) Option {
	return func(b *builder) { b.cfg.OptFile = path }
}

// WithExitTimeout sets how long Close waits for allstar to exit.
func WithExitTimeout(d time.Duration) Option {
	return func(b *builder) { b.cfg.ExitTimeout = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

// WithTranscript copies everything written to allstar's input to w.
func WithTranscript(w io.Writer) Option {
	return func(b *builder) { b.transcript = w }
}
