package workdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestArea(t *testing.T, opts ...Option) *Area {
	t.Helper()
	opts = append([]Option{WithBase(t.TempDir())}, opts...)
	a, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_CloseRemovesOwnedDir(t *testing.T) {
	a, err := New(WithBase(t.TempDir()))
	require.NoError(t, err)
	assert.True(t, a.Owned())
	assert.DirExists(t, a.Dir())

	require.NoError(t, a.Close())
	assert.NoDirExists(t, a.Dir())

	// Second close is a no-op
	require.NoError(t, a.Close())
}

func TestRetain_KeepsDir(t *testing.T) {
	a, err := New(WithBase(t.TempDir()))
	require.NoError(t, err)
	a.Retain()

	require.NoError(t, a.Close())
	assert.DirExists(t, a.Dir())
}

func TestOpen_NeverRemoves(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	require.NoError(t, err)
	assert.False(t, a.Owned())

	require.NoError(t, a.Close())
	assert.DirExists(t, dir)
}

func TestOpen_NotADirectory(t *testing.T) {
	file := writeSource(t, "plain.txt", "x")
	_, err := Open(file)
	require.Error(t, err)
}

func TestNew_UnknownStaging(t *testing.T) {
	_, err := New(WithBase(t.TempDir()), WithStaging(Staging("hardlink")))
	require.Error(t, err)
}

func TestCheckName(t *testing.T) {
	a := newTestArea(t, WithMaxNameLength(8))

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "short name", input: "i.coo"},
		{name: "exactly at limit", input: "abcd.fit"},
		{name: "too long", input: "abcdefgh.fits", wantErr: ErrNameTooLong},
		{name: "path", input: "sub/i.coo", wantErr: ErrNotLocal},
		{name: "empty", input: "", wantErr: ErrNotLocal},
		{name: "dot dot", input: "..", wantErr: ErrNotLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.CheckName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStageInput(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, "ngc6871-long-observation-name.fits", "image")

	t.Run("empty source resolves to canonical", func(t *testing.T) {
		a := newTestArea(t)
		local, err := a.StageInput(ctx, "", "i.coo")
		require.NoError(t, err)
		assert.Equal(t, "i.coo", local)
		assert.False(t, a.Exists("i.coo"))
	})

	t.Run("bare canonical name refers to area", func(t *testing.T) {
		a := newTestArea(t)
		local, err := a.StageInput(ctx, "i.ap", "i.ap")
		require.NoError(t, err)
		assert.Equal(t, "i.ap", local)
		assert.Empty(t, a.Staged())
	})

	t.Run("external file symlinked under canonical name", func(t *testing.T) {
		a := newTestArea(t)
		local, err := a.StageInput(ctx, src, "i.fits")
		require.NoError(t, err)
		assert.Equal(t, "i.fits", local)

		target, err := os.Readlink(a.File("i.fits"))
		require.NoError(t, err)
		assert.Equal(t, src, target)
		assert.Equal(t, map[string]string{"i.fits": src}, a.Staged())
	})

	t.Run("copy mode copies content", func(t *testing.T) {
		a := newTestArea(t, WithStaging(StagingCopy))
		_, err := a.StageInput(ctx, src, "i.fits")
		require.NoError(t, err)

		info, err := os.Lstat(a.File("i.fits"))
		require.NoError(t, err)
		assert.True(t, info.Mode().IsRegular())
		data, err := os.ReadFile(a.File("i.fits"))
		require.NoError(t, err)
		assert.Equal(t, "image", string(data))
	})

	t.Run("long base name without canonical is rejected", func(t *testing.T) {
		a := newTestArea(t)
		_, err := a.StageInput(ctx, src, "")
		assert.ErrorIs(t, err, ErrNameTooLong)
	})

	t.Run("missing source", func(t *testing.T) {
		a := newTestArea(t)
		_, err := a.StageInput(ctx, filepath.Join(t.TempDir(), "nope.fits"), "i.fits")
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("absolute path inside the area", func(t *testing.T) {
		a := newTestArea(t)
		require.NoError(t, a.WriteFile(ctx, "i.coo", []byte("stars")))
		local, err := a.StageInput(ctx, a.File("i.coo"), "x.coo")
		require.NoError(t, err)
		assert.Equal(t, "i.coo", local)
	})
}

func TestBarrier_RunsOnlyBeforeRealMutations(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)
	src := writeSource(t, "in.fits", "data")

	var calls int
	a.SetBarrier(func(context.Context) error {
		calls++
		return nil
	})

	_, err := a.StageInput(ctx, "", "i.coo")
	require.NoError(t, err)
	_, err = a.StageInput(ctx, "i.coo", "i.coo")
	require.NoError(t, err)
	require.NoError(t, a.Remove(ctx, "missing.txt"))
	_, _, err = a.PrepareOutput(ctx, "i.ap")
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "no-op calls must not run the barrier")

	_, err = a.StageInput(ctx, src, "i.fits")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, a.WriteFile(ctx, "i.ap", []byte("old")))
	_, _, err = a.PrepareOutput(ctx, "i.ap")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.False(t, a.Exists("i.ap"), "stale output must be removed")
}

func TestPrepareOutput_ClaimedNameRunsBarrier(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)

	var calls int
	a.SetBarrier(func(context.Context) error {
		calls++
		// The queued command that claimed i.coo writes it once flushed
		return os.WriteFile(a.File("i.coo"), []byte("first"), 0o644)
	})

	_, _, err := a.PrepareOutput(ctx, "i.coo")
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	_, _, err = a.PrepareOutput(ctx, "i.coo")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, a.Exists("i.coo"), "earlier output must be removed after the barrier")

	_, _, err = a.PrepareOutput(ctx, "i.ap")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "unclaimed names do not run the barrier")
}

func TestClone_CarriesClaimedOutputs(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)
	_, _, err := a.PrepareOutput(ctx, "i.psf")
	require.NoError(t, err)

	clone, err := a.Clone(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clone.Close() })

	var calls int
	clone.SetBarrier(func(context.Context) error {
		calls++
		return nil
	})
	_, _, err = clone.PrepareOutput(ctx, "i.psf")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBarrier_ErrorAbortsMutation(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)
	boom := errors.New("flush failed")
	a.SetBarrier(func(context.Context) error { return boom })

	err := a.WriteFile(ctx, "i.coo", []byte("x"))
	require.ErrorIs(t, err, boom)
	assert.False(t, a.Exists("i.coo"))
}

func TestMutationAfterClose(t *testing.T) {
	a, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	err = a.WriteFile(context.Background(), "i.coo", []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestList_ExcludesLockFile(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)
	require.NoError(t, a.WriteFile(ctx, "b.coo", nil))
	require.NoError(t, a.WriteFile(ctx, "a.ap", nil))

	names, err := a.List()
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"a.ap", "b.coo"}, names); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	assert.FileExists(t, filepath.Join(a.Dir(), lockName))
}

func TestClone_IndependentCopies(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)
	src := writeSource(t, "frame.fits", "pixels")

	_, err := a.StageInput(ctx, src, "i.fits")
	require.NoError(t, err)
	require.NoError(t, a.WriteFile(ctx, "i.coo", []byte("original stars")))
	require.NoError(t, a.WriteFile(ctx, "i.ap", []byte("original photometry")))

	clone, err := a.Clone(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clone.Close() })

	assert.NotEqual(t, a.Dir(), clone.Dir())
	assert.True(t, clone.Owned())

	want, err := a.List()
	require.NoError(t, err)
	got, err := clone.List()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clone listing mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, a.Staged(), clone.Staged())

	target, err := os.Readlink(clone.File("i.fits"))
	require.NoError(t, err)
	assert.Equal(t, src, target)

	require.NoError(t, clone.WriteFile(ctx, "i.coo", []byte("clone stars")))
	require.NoError(t, clone.Remove(ctx, "i.ap"))

	data, err := os.ReadFile(a.File("i.coo"))
	require.NoError(t, err)
	assert.Equal(t, "original stars", string(data))
	assert.True(t, a.Exists("i.ap"))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	a := newTestArea(t)
	require.NoError(t, a.WriteFile(ctx, "i.coo", []byte("stars")))
	out := t.TempDir()

	require.NoError(t, a.Export("i.coo", filepath.Join(out, "copy.coo")))
	data, err := os.ReadFile(filepath.Join(out, "copy.coo"))
	require.NoError(t, err)
	assert.Equal(t, "stars", string(data))

	require.NoError(t, a.ExportLink("i.coo", filepath.Join(out, "link.coo")))
	target, err := os.Readlink(filepath.Join(out, "link.coo"))
	require.NoError(t, err)
	assert.Equal(t, a.File("i.coo"), target)

	err = a.Export("i.psf", filepath.Join(out, "x.psf"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWaitForFile(t *testing.T) {
	a := newTestArea(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(a.File("i.als"), []byte("done"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.WaitForFile(ctx, "i.als"))
	assert.True(t, a.Exists("i.als"))
}

func TestWaitForFile_Timeout(t *testing.T) {
	a := newTestArea(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := a.WaitForFile(ctx, "never.als")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, strings.Contains(err.Error(), "never.als"))
}
