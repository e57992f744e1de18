package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestWalkExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a")
	writeFile(t, root, "b.txt", "not indexed")
	writeFile(t, root, "sub/c.go", "package sub")

	files, err := Walk(context.Background(), Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	})
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	assert.ElementsMatch(t, []string{"a.go", "sub/c.go"}, rels)
}

func TestWalkExcludeGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "x")
	writeFile(t, root, "vendor/skip.go", "x")

	files, err := Walk(context.Background(), Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
		Exclude:    []string{"**/vendor/**"},
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.go", files[0].RelPath)
}

func TestWalkRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "build/\n*.log\n")
	writeFile(t, root, "main.go", "x")
	writeFile(t, root, "build/out.go", "x")
	writeFile(t, root, "debug.log", "x")

	files, err := Walk(context.Background(), Options{
		Root:             root,
		Extensions:       map[string]struct{}{"go": {}, "log": {}},
		RespectGitignore: true,
	})
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	assert.ElementsMatch(t, []string{"main.go"}, rels)
}

func TestWalkMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "x")
	writeFile(t, root, "big.go", string(make([]byte, 1024)))

	files, err := Walk(context.Background(), Options{
		Root:        root,
		Extensions:  map[string]struct{}{"go": {}},
		MaxFileSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "small.go", files[0].RelPath)
}

func TestWalkSortedDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.go", "x")
	writeFile(t, root, "a.go", "x")
	writeFile(t, root, "m/b.go", "x")

	files, err := Walk(context.Background(), Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.go", files[0].RelPath)
	assert.Equal(t, "m/b.go", files[1].RelPath)
	assert.Equal(t, "z.go", files[2].RelPath)
}
