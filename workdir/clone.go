package workdir

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Clone copies every entry of the area into a new owned temporary Area.
// Regular files are copied, symlinks are re-created with the same target.
// The clone has no barrier; its new owner installs one.
func (a *Area) Clone(ctx context.Context, opts ...Option) (*Area, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, fmt.Errorf("clone working area: %w", ErrClosed)
	}
	cfg := a.cfg
	a.mu.Unlock()

	for _, opt := range opts {
		opt(&cfg)
	}

	dir, err := os.MkdirTemp(cfg.base, cfg.prefix)
	if err != nil {
		return nil, fmt.Errorf("clone working area: %w", err)
	}
	clone := newArea(dir, true, cfg)

	if _, err := a.lock.TryLockContext(ctx, lockRetry); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("clone working area: lock: %w", err)
	}
	defer func() { _ = a.lock.Unlock() }()

	err = a.walkEntries(func(rel string, d fs.DirEntry) error {
		src := filepath.Join(a.dir, rel)
		dst := filepath.Join(dir, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(src)
			if err != nil {
				return fmt.Errorf("read link %s: %w", rel, err)
			}
			return os.Symlink(target, dst)
		case d.IsDir():
			return os.MkdirAll(dst, 0o755)
		case d.Type().IsRegular():
			return copyFile(src, dst)
		default:
			cfg.logger.Debug("clone skipped special file", slog.String("name", rel))
			return nil
		}
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("clone working area: %w", err)
	}

	a.mu.Lock()
	for k, v := range a.staged {
		clone.staged[k] = v
	}
	for k := range a.claimed {
		clone.claimed[k] = true
	}
	a.mu.Unlock()

	cfg.logger.Debug("working area cloned",
		slog.String("from", a.dir),
		slog.String("to", dir))
	return clone, nil
}
