package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustynsky/codescope/internal/config"
	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/fileindex"
	"github.com/pustynsky/codescope/internal/store"
	"github.com/pustynsky/codescope/internal/walker"
)

func newTestOptions(root string) walker.Options {
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Index.Extensions = []string{"go"}
	cfg.Index.RespectGitignore = false
	return walker.NewOptions(cfg)
}

func buildStore(t *testing.T, root string) *store.Store {
	t.Helper()
	opts := newTestOptions(root)
	now := time.Now().Unix()

	fi, err := fileindex.Build(context.Background(), opts, 0, now)
	require.NoError(t, err)
	ci, err := contentindex.Build(context.Background(), opts, 0, now)
	require.NoError(t, err)

	st := store.New(root)
	st.SetFiles(fi)
	st.SetContent(ci)
	return st
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_DetectsFileUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	root := t.TempDir()
	path := filepath.Join(root, "original.go")
	require.NoError(t, os.WriteFile(path, []byte("package test\nfunc OriginalWatchedFunction() {}\n"), 0o644))

	st := buildStore(t, root)
	require.Greater(t, st.Content().DocFrequency("originalwatchedfunction"), 0)

	w, err := New(st, newTestOptions(root), 50*time.Millisecond, 100)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("package test\nfunc UpdatedWatchedFunction() {}\n"), 0o644))

	ok := waitFor(t, 5*time.Second, func() bool {
		return st.Content().DocFrequency("updatedwatchedfunction") > 0
	})
	assert.True(t, ok, "watcher should pick up the edited content")
	assert.Equal(t, 0, st.Content().DocFrequency("originalwatchedfunction"), "stale token should be gone after update")
}

func TestWatcher_DetectsNewFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "initial.go"), []byte("package test\nfunc InitialFunction() {}\n"), 0o644))

	st := buildStore(t, root)

	w, err := New(st, newTestOptions(root), 50*time.Millisecond, 100)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	newFile := filepath.Join(root, "newfile.go")
	require.NoError(t, os.WriteFile(newFile, []byte("package test\nfunc NewlyCreatedFunction() {}\n"), 0o644))

	ok := waitFor(t, 5*time.Second, func() bool {
		return st.Content().DocFrequency("newlycreatedfunction") > 0
	})
	assert.True(t, ok, "watcher should index a newly created file")

	results, err := st.Files().Query(fileindex.QueryOptions{Substring: "newfile.go"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestWatcher_DetectsFileDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	root := t.TempDir()
	keepFile := filepath.Join(root, "keep.go")
	deleteFile := filepath.Join(root, "delete.go")
	require.NoError(t, os.WriteFile(keepFile, []byte("package test\nfunc KeepThisFunction() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(deleteFile, []byte("package test\nfunc DeleteThisFunction() {}\n"), 0o644))

	st := buildStore(t, root)
	require.Greater(t, st.Content().DocFrequency("deletethisfunction"), 0)

	w, err := New(st, newTestOptions(root), 50*time.Millisecond, 100)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.Remove(deleteFile))

	ok := waitFor(t, 5*time.Second, func() bool {
		return st.Content().DocFrequency("deletethisfunction") == 0
	})
	assert.True(t, ok, "watcher should remove the deleted file's tokens")
	assert.Greater(t, st.Content().DocFrequency("keepthisfunction"), 0, "unrelated file should be unaffected")
}

func TestWatcher_BulkThresholdTriggersFullRebuild(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "seed.go"), []byte("package test\nfunc Seed() {}\n"), 0o644))

	st := buildStore(t, root)

	w, err := New(st, newTestOptions(root), 50*time.Millisecond, 2)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "bulk_"+string(rune('a'+i))+".go")
		require.NoError(t, os.WriteFile(name, []byte("package test\nfunc BulkGenerated"+string(rune('A'+i))+"() {}\n"), 0o644))
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		return st.Content().DocFrequency("bulkgenerateda") > 0 && st.Content().DocFrequency("bulkgeneratede") > 0
	})
	assert.True(t, ok, "a batch over bulkThreshold should trigger a full rebuild that picks up every new file")
	assert.True(t, st.ContentReady(), "readiness flags stay set across a bulk rebuild")
}
