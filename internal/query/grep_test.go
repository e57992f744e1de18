package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/walker"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func buildContentIndex(t *testing.T, root string) *contentindex.Index {
	t.Helper()
	idx, err := contentindex.Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)
	return idx
}

func TestGrepExactTermRanksByTFIDF(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "widget widget widget\nother stuff\n")
	writeFile(t, root, "b.go", "widget appears once here\nmore filler text padding words\n")
	writeFile(t, root, "c.go", "unrelated filler\n") // keeps IDF above zero: 3 files, 2 contain the term
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"widget"}, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "a.go", resp.Files[0].Path) // denser occurrence, smaller doc -> higher TF
}

func TestGrepAndModeRequiresAllDistinctTerms(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "alpha beta\n")
	writeFile(t, root, "b.go", "alpha only\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"alpha", "beta"}, Mode: "and", CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "a.go", resp.Files[0].Path)
}

func TestGrepSubstringMatchesPartialToken(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "widgetFactory builds widgets\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"widget"}, Substring: true, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.Contains(t, resp.Files[0].MatchedTokens, "widgetfactory")
	assert.Contains(t, resp.Files[0].MatchedTokens, "widgets")
}

func TestGrepSubstringFalseExcludesPartialTokenOnlyMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "widgetFactory builds widgets\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"widget"}, Substring: false, CaseInsensitive: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Files, "file only matches via substring, must be excluded when substring=false")
}

func TestGrepSubstringFalseStillMatchesExactToken(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "widget appears here\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"widget"}, Substring: false, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "a.go", resp.Files[0].Path)
}

func TestGrepRegexAutoDisablesSubstring(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "widget gadget\n")
	idx := buildContentIndex(t, root)

	req := GrepRequest{Terms: []string{"^widget$"}, Regex: true, Substring: true, CaseInsensitive: true}
	require.NoError(t, req.Normalize())
	assert.False(t, req.Substring)

	resp, err := Grep(idx, root, req)
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.ElementsMatch(t, []string{"widget"}, resp.Files[0].MatchedTokens)
}

func TestGrepSubstringPhraseIsRejected(t *testing.T) {
	root := t.TempDir()
	idx := buildContentIndex(t, root)
	req := GrepRequest{Terms: []string{"foo bar"}, Substring: true, Phrase: true}
	err := req.Normalize()
	assert.Error(t, err)
	_, err = Grep(idx, root, req)
	assert.Error(t, err)
}

func TestGrepShowLinesReturnsContextGroups(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "line one\nline two widget here\nline three\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"widget"}, ShowLines: true, ContextLines: 1, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	require.Len(t, resp.Files[0].LineGroups, 1)
	g := resp.Files[0].LineGroups[0]
	assert.Equal(t, 1, g.StartLine)
	assert.Len(t, g.Lines, 3)
	assert.Equal(t, []int{1}, g.MatchIndices)
}

func TestGrepPhraseAdjacencyRequiresWordOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "the quick brown fox\nbrown the quick fox\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"quick brown"}, Phrase: true, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, 1, resp.Files[0].DistinctTermsMatched)
	assert.Equal(t, 1.0, resp.Files[0].Score) // only line 1 has the words in order
}

func TestGrepExtFilterExcludesOtherExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "widget\n")
	writeFile(t, root, "b.md", "widget\n")
	idx := buildContentIndex(t, root)

	resp, err := Grep(idx, root, GrepRequest{Terms: []string{"widget"}, CaseInsensitive: true, Filter: PathFilter{Ext: []string{"go"}}})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "a.go", resp.Files[0].Path)
}
