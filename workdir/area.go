package workdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Staging selects how input files are placed into an Area.
type Staging string

// Supported staging modes.
const (
	StagingSymlink Staging = "symlink"
	StagingCopy    Staging = "copy"
)

// DefaultMaxNameLength is the longest file name accepted by default.
// DAOPHOT-family tools read file names into small fixed buffers.
const DefaultMaxNameLength = 30

const (
	lockName      = ".daokit.lock"
	lockRetry     = 10 * time.Millisecond
	defaultPrefix = "daokit-"
)

// Sentinel errors for working area operations.
var (
	// ErrNameTooLong indicates a local name exceeds the tool's buffer.
	ErrNameTooLong = errors.New("file name too long for tool input buffer")

	// ErrNotLocal indicates a name that is not a bare file name.
	ErrNotLocal = errors.New("not a local file name")

	// ErrNotFound indicates the file does not exist in the area.
	ErrNotFound = errors.New("file not found in working area")

	// ErrClosed indicates the area was already closed.
	ErrClosed = errors.New("working area closed")
)

// Option configures an Area.
type Option func(*settings)

type settings struct {
	base    string
	prefix  string
	staging Staging
	maxName int
	logger  *slog.Logger
}

func defaultSettings() settings {
	return settings{
		prefix:  defaultPrefix,
		staging: StagingSymlink,
		maxName: DefaultMaxNameLength,
		logger:  slog.Default(),
	}
}

// WithBase sets the parent directory for temporary areas.
// Default: os.TempDir().
func WithBase(dir string) Option {
	return func(s *settings) { s.base = dir }
}

// WithPrefix sets the name prefix of temporary area directories.
func WithPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithStaging sets how inputs are staged. Default: StagingSymlink.
func WithStaging(mode Staging) Option {
	return func(s *settings) {
		if mode != "" {
			s.staging = mode
		}
	}
}

// WithMaxNameLength sets the longest accepted local file name.
func WithMaxNameLength(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxName = n
		}
	}
}

// WithLogger sets the logger used for staging diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Area is a directory holding every file a child tool may read or write.
// Files are addressed by short local names.
type Area struct {
	dir   string
	owned bool
	cfg   settings
	lock  *flock.Flock

	mu       sync.Mutex
	staged   map[string]string
	claimed  map[string]bool
	barrier  func(context.Context) error
	retained bool
	closed   bool
}

// New creates a temporary Area that is removed on Close.
func New(opts ...Option) (*Area, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.staging != StagingSymlink && cfg.staging != StagingCopy {
		return nil, fmt.Errorf("unknown staging mode %q", cfg.staging)
	}

	dir, err := os.MkdirTemp(cfg.base, cfg.prefix)
	if err != nil {
		return nil, fmt.Errorf("create working area: %w", err)
	}
	return newArea(dir, true, cfg), nil
}

// Open adopts an existing directory as an Area. The directory is never
// removed by Close.
func Open(dir string, opts ...Option) (*Area, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("open working area: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open working area: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open working area: %s is not a directory", abs)
	}
	return newArea(abs, false, cfg), nil
}

func newArea(dir string, owned bool, cfg settings) *Area {
	return &Area{
		dir:     dir,
		owned:   owned,
		cfg:     cfg,
		lock:    flock.New(filepath.Join(dir, lockName)),
		staged:  make(map[string]string),
		claimed: make(map[string]bool),
	}
}

// Dir returns the absolute directory path.
func (a *Area) Dir() string {
	return a.dir
}

// Owned reports whether Close removes the directory.
func (a *Area) Owned() bool {
	return a.owned
}

// MaxNameLength returns the longest accepted local name.
func (a *Area) MaxNameLength() int {
	return a.cfg.maxName
}

// File returns the absolute path of a local name.
func (a *Area) File(name string) string {
	return filepath.Join(a.dir, name)
}

// Exists reports whether a local name exists in the area. A dangling
// symlink counts as existing.
func (a *Area) Exists(name string) bool {
	_, err := os.Lstat(a.File(name))
	return err == nil
}

// List returns the sorted names of all entries in the area.
func (a *Area) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("list working area: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == lockName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Staged returns a copy of the local name to source path mapping of
// every input staged through this Area.
func (a *Area) Staged() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.staged))
	for k, v := range a.staged {
		out[k] = v
	}
	return out
}

// SetBarrier installs the function run before every mutation.
func (a *Area) SetBarrier(fn func(context.Context) error) {
	a.mu.Lock()
	a.barrier = fn
	a.mu.Unlock()
}

// Retain keeps an owned directory on disk after Close.
func (a *Area) Retain() {
	a.mu.Lock()
	a.retained = true
	a.mu.Unlock()
}

// Close releases the area. Owned, non-retained directories are removed.
func (a *Area) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	remove := a.owned && !a.retained
	a.mu.Unlock()

	if !remove {
		return nil
	}
	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("remove working area: %w", err)
	}
	a.cfg.logger.Debug("working area removed", slog.String("dir", a.dir))
	return nil
}

// CheckName validates a local name against the tool's limits.
func (a *Area) CheckName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrNotLocal, name)
	}
	if len(name) > a.cfg.maxName {
		return fmt.Errorf("%w: %q has %d characters, limit is %d", ErrNameTooLong, name, len(name), a.cfg.maxName)
	}
	return nil
}

// mutate runs the barrier, then fn under the file lock. Once the barrier
// returns, every command that claimed an output has written it.
func (a *Area) mutate(ctx context.Context, op string, fn func() error) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	barrier := a.barrier
	a.mu.Unlock()

	if barrier != nil {
		if err := barrier(ctx); err != nil {
			return fmt.Errorf("%s: wait for pending commands: %w", op, err)
		}
	}

	if _, err := a.lock.TryLockContext(ctx, lockRetry); err != nil {
		return fmt.Errorf("%s: lock working area: %w", op, err)
	}
	defer func() { _ = a.lock.Unlock() }()

	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.claimed)
	return fn()
}

// walkEntries visits every entry below the area root except the lock file.
func (a *Area) walkEntries(fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == a.dir {
			return nil
		}
		rel, err := filepath.Rel(a.dir, path)
		if err != nil {
			return err
		}
		if rel == lockName {
			return nil
		}
		return fn(rel, d)
	})
}
