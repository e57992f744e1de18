package contentindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustynsky/codescope/internal/walker"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildTotalTokensMatchesSumOfFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "func Alpha() {}\n")
	writeFile(t, root, "b.go", "func Beta() { Alpha() }\n")

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)

	var sum int64
	for _, f := range idx.snap.Files {
		sum += int64(f.TokenCount)
	}
	assert.Equal(t, sum, idx.TotalTokens())
}

func TestPostingsAscendingByFileID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "shared token here\n")
	writeFile(t, root, "b.go", "shared token here\n")
	writeFile(t, root, "c.go", "shared token here\n")

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)

	postings := idx.Postings("shared")
	require.Len(t, postings, 3)
	for i := 1; i < len(postings); i++ {
		assert.Less(t, postings[i-1].FileID, postings[i].FileID)
	}
}

func TestPostingLinesAscendingAndUnique(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "foo\nbar\nfoo\nfoo\nbaz\n")

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)

	postings := idx.Postings("foo")
	require.Len(t, postings, 1)
	assert.Equal(t, []uint32{1, 3, 4}, postings[0].Lines)
}

func TestTokensContainingFallsBackUnderThreeBytes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "func go(){}\n")

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)

	matches := idx.TokensContaining("fu")
	assert.Contains(t, matches, "func")
}

func TestTokensContainingUsesTrigramIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "func authenticate() {}\n")
	writeFile(t, root, "b.go", "func authorize() {}\n")

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)

	matches := idx.TokensContaining("auth")
	assert.ElementsMatch(t, []string{"authenticate", "authorize"}, matches)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "func Alpha() {}\n")

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "word-search.bin")
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, idx.TotalTokens(), loaded.TotalTokens())
	assert.Equal(t, idx.Postings("alpha"), loaded.Postings("alpha"))
}

func TestLossyUTF8Counted(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "bad.go")
	require.NoError(t, os.WriteFile(full, []byte("func x() {\xff\xfe}\n"), 0o644))

	idx, err := Build(context.Background(), walker.Options{
		Root:       root,
		Extensions: map[string]struct{}{"go": {}},
	}, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.snap.LossyFiles)
}
