package runner

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Mode selects when queued blocks are written.
type Mode string

// Execution modes.
const (
	// ModeEager flushes and waits after every operation.
	ModeEager Mode = "eager"
	// ModeBatch only enqueues; Run writes everything pending.
	ModeBatch Mode = "batch"
)

// Validate checks the mode name.
func (m Mode) Validate() error {
	switch m {
	case ModeEager, ModeBatch:
		return nil
	default:
		return fmt.Errorf("unknown mode %q (want %q or %q)", m, ModeEager, ModeBatch)
	}
}

// DefaultExitTimeout is how long Close waits before killing the tool.
const DefaultExitTimeout = 5 * time.Second

// Option configures a Session.
type Option func(*settings)

type settings struct {
	executable  string
	args        []string
	env         map[string]string
	mode        Mode
	exitTimeout time.Duration
	logger      *slog.Logger
	transcript  io.Writer
}

func defaultSettings() settings {
	return settings{
		mode:        ModeEager,
		exitTimeout: DefaultExitTimeout,
		logger:      slog.Default(),
	}
}

// WithExecutable overrides the tool's executable path.
func WithExecutable(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.executable = path
		}
	}
}

// WithArgs sets command-line arguments for the tool.
func WithArgs(args ...string) Option {
	return func(s *settings) { s.args = args }
}

// WithEnv adds environment variables to the tool's environment.
func WithEnv(env map[string]string) Option {
	return func(s *settings) {
		if s.env == nil {
			s.env = make(map[string]string, len(env))
		}
		for k, v := range env {
			s.env[k] = v
		}
	}
}

// WithMode sets the execution mode. Default: ModeEager.
func WithMode(mode Mode) Option {
	return func(s *settings) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// WithExitTimeout sets how long Close waits for the tool to exit.
func WithExitTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.exitTimeout = d
		}
	}
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTranscript copies every byte written to the tool's input to w.
func WithTranscript(w io.Writer) Option {
	return func(s *settings) { s.transcript = w }
}
