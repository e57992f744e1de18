package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGitignoreMissingFileIsNotError(t *testing.T) {
	m, err := LoadGitignore(t.TempDir())
	require.NoError(t, err)
	assert.False(t, m.Match("anything.go", false))
}

func TestGitignoreBasicPatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644))

	m, err := LoadGitignore(root)
	require.NoError(t, err)

	assert.True(t, m.Match("debug.log", false))
	assert.True(t, m.Match("nested/debug.log", false))
	assert.True(t, m.Match("build/out.txt", false))
	assert.False(t, m.Match("main.go", false))
}

func TestGitignoreNegationOverridesEarlierExclude(t *testing.T) {
	root := t.TempDir()
	content := "*.log\n!keep.log\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644))

	m, err := LoadGitignore(root)
	require.NoError(t, err)

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("keep.log", false))
}

func TestGitignoreCommentsAndBlankLinesIgnored(t *testing.T) {
	root := t.TempDir()
	content := "# comment\n\n*.tmp\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644))

	m, err := LoadGitignore(root)
	require.NoError(t, err)
	assert.True(t, m.Match("scratch.tmp", false))
}

func TestGitignoreAnchoredPattern(t *testing.T) {
	root := t.TempDir()
	content := "/only-root.txt\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644))

	m, err := LoadGitignore(root)
	require.NoError(t, err)
	assert.True(t, m.Match("only-root.txt", false))
	assert.False(t, m.Match("nested/only-root.txt", false))
}
