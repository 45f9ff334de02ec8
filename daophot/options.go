package daophot

import (
	"io"
	"log/slog"
	"time"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/runner"
	"github.com/randalmurphal/daokit/workdir"
)

// Option configures a Daophot session.
type Option func(*builder)

type builder struct {
	cfg        Config
	options    daoopt.Input
	logger     *slog.Logger
	transcript io.Writer
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(b *builder) { b.cfg = cfg }
}

// WithExecutable sets the daophot program.
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

// WithImage attaches image automatically at every process start.
func WithImage(image string) Option {
	return func(b *builder) { b.cfg.Image = image }
}

// WithOptions sets options automatically at every process start.
func WithOptions(in daoopt.Input) Option {
	return func(b *builder) { b.options = in }
}

// WithOptFile stages path as daophot.opt.
func WithOptFile(path string) Option {
	return func(b *builder) { b.cfg.OptFile = path }
}

// WithPhotoOptFile stages path as photo.opt.
func WithPhotoOptFile(path string) Option {
	return func(b *builder) { b.cfg.PhotoOptFile = path }
}

// WithDir works in an existing directory instead of a temporary one.
func WithDir(dir string) Option {
	return func(b *builder) { b.cfg.Dir = dir }
}

// WithTempBase sets the parent of the temporary working directory.
func WithTempBase(dir string) Option {
	return func(b *builder) { b.cfg.TempBase = dir }
}

// WithStaging sets how input files are staged.
func WithStaging(mode workdir.Staging) Option {
	return func(b *builder) { b.cfg.Staging = mode }
}

// WithRetain keeps a temporary working directory after Close.
func WithRetain() Option {
	return func(b *builder) { b.cfg.Retain = true }
}

// WithExitTimeout sets how long Close waits for daophot to exit.
func WithExitTimeout(d time.Duration) Option {
	return func(b *builder) { b.cfg.ExitTimeout = d }
}

// WithEnv adds environment variables for daophot.
func WithEnv(env map[string]string) Option {
	return func(b *builder) {
		if b.cfg.Env == nil {
			b.cfg.Env = make(map[string]string)
		}
		for k, v := range env {
			b.cfg.Env[k] = v
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

// WithTranscript copies everything written to daophot's input to w.
func WithTranscript(w io.Writer) Option {
	return func(b *builder) { b.transcript = w }
}
