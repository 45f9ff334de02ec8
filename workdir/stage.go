package workdir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// StageInput makes src available in the area and returns its local name.
//
// An empty src resolves to canonical without touching the directory. A
// bare name equal to canonical, or one that already exists in the area,
// refers to the area file (possibly produced by an earlier command) and
// is returned unchanged. Anything else is symlinked or copied in under
// canonical, or under its base name when canonical is empty.
func (a *Area) StageInput(ctx context.Context, src, canonical string) (string, error) {
	if src == "" {
		if err := a.CheckName(canonical); err != nil {
			return "", fmt.Errorf("stage input: %w", err)
		}
		return canonical, nil
	}

	if src == filepath.Base(src) && (src == canonical || a.Exists(src)) {
		if err := a.CheckName(src); err != nil {
			return "", fmt.Errorf("stage input: %w", err)
		}
		return src, nil
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("stage input %s: %w", src, err)
	}
	if filepath.Dir(abs) == a.dir {
		base := filepath.Base(abs)
		if !a.Exists(base) {
			return "", fmt.Errorf("stage input %s: %w", src, ErrNotFound)
		}
		if err := a.CheckName(base); err != nil {
			return "", fmt.Errorf("stage input: %w", err)
		}
		return base, nil
	}

	local := canonical
	if local == "" {
		local = filepath.Base(abs)
	}
	if err := a.CheckName(local); err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}

	if a.cfg.staging == StagingCopy {
		err = a.Copy(ctx, abs, local)
	} else {
		err = a.Link(ctx, abs, local)
	}
	if err != nil {
		return "", err
	}
	return local, nil
}

// Link symlinks src into the area as name, replacing any existing entry.
func (a *Area) Link(ctx context.Context, src, name string) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("link %s: %w", src, err)
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("link %s: %w", src, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("link %s: %w", src, err)
	}

	return a.mutate(ctx, "link "+name, func() error {
		dst := a.File(name)
		if err := removeIfExists(dst); err != nil {
			return err
		}
		if err := os.Symlink(abs, dst); err != nil {
			return fmt.Errorf("symlink %s: %w", name, err)
		}
		a.staged[name] = abs
		a.cfg.logger.Debug("staged input",
			slog.String("name", name),
			slog.String("source", abs),
			slog.String("mode", string(StagingSymlink)))
		return nil
	})
}

// Copy copies src into the area as name, replacing any existing entry.
func (a *Area) Copy(ctx context.Context, src, name string) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return a.mutate(ctx, "copy "+name, func() error {
		dst := a.File(name)
		if err := removeIfExists(dst); err != nil {
			return err
		}
		if err := copyFile(abs, dst); err != nil {
			return err
		}
		a.staged[name] = abs
		a.cfg.logger.Debug("staged input",
			slog.String("name", name),
			slog.String("source", abs),
			slog.String("mode", string(StagingCopy)))
		return nil
	})
}

// WriteFile writes data to a local name, replacing any existing entry.
func (a *Area) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return a.mutate(ctx, "write "+name, func() error {
		dst := a.File(name)
		if err := removeIfExists(dst); err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		delete(a.staged, name)
		return nil
	})
}

// Remove deletes a local name. Removing a missing name is a no-op and
// does not run the barrier.
func (a *Area) Remove(ctx context.Context, name string) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	if !a.Exists(name) {
		return nil
	}
	return a.mutate(ctx, "remove "+name, func() error {
		delete(a.staged, name)
		return removeIfExists(a.File(name))
	})
}

// PrepareOutput validates an output name and removes a stale file of the
// same name, so the tool never stops to ask for overwrite confirmation.
// It returns the local name and its absolute path.
//
// The name stays claimed until the next barrier. Preparing a claimed name
// again runs the barrier first, so a queued command that writes the same
// file has finished before the file is removed.
func (a *Area) PrepareOutput(ctx context.Context, name string) (string, string, error) {
	if err := a.CheckName(name); err != nil {
		return "", "", fmt.Errorf("prepare output: %w", err)
	}

	a.mu.Lock()
	claimed := a.claimed[name]
	a.mu.Unlock()

	if claimed || a.Exists(name) {
		err := a.mutate(ctx, "prepare output "+name, func() error {
			delete(a.staged, name)
			return removeIfExists(a.File(name))
		})
		if err != nil {
			return "", "", fmt.Errorf("prepare output: %w", err)
		}
	}

	a.mu.Lock()
	a.claimed[name] = true
	a.mu.Unlock()
	return name, a.File(name), nil
}

// Export copies a local file out of the area to dst. Symlinked inputs
// are copied by content.
func (a *Area) Export(name, dst string) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	src := a.File(name)
	if !a.Exists(name) {
		return fmt.Errorf("export %s: %w", name, ErrNotFound)
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	return nil
}

// ExportLink creates a symlink at dst pointing at a local file. The link
// dangles once an owned, non-retained area is closed.
func (a *Area) ExportLink(name, dst string) error {
	if err := a.CheckName(name); err != nil {
		return fmt.Errorf("export link %s: %w", name, err)
	}
	if !a.Exists(name) {
		return fmt.Errorf("export link %s: %w", name, ErrNotFound)
	}
	if err := removeIfExists(dst); err != nil {
		return fmt.Errorf("export link %s: %w", name, err)
	}
	if err := os.Symlink(a.File(name), dst); err != nil {
		return fmt.Errorf("export link %s: %w", name, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
