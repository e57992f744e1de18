package rpcserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustynsky/codescope/internal/defindex"
)

func TestDirWithinRoot_EmptyDirMeansNoFilter(t *testing.T) {
	rel, err := dirWithinRoot("/srv/project", "")
	require.NoError(t, err)
	assert.Equal(t, "", rel)
}

func TestDirWithinRoot_RelativeDirResolvesUnderRoot(t *testing.T) {
	rel, err := dirWithinRoot("/srv/project", "internal/query")
	require.NoError(t, err)
	assert.Equal(t, "internal/query", rel)
}

func TestDirWithinRoot_RootItselfNormalizesToEmpty(t *testing.T) {
	rel, err := dirWithinRoot("/srv/project", "/srv/project")
	require.NoError(t, err)
	assert.Equal(t, "", rel)
}

func TestDirWithinRoot_RejectsEscapingRoot(t *testing.T) {
	_, err := dirWithinRoot("/srv/project", "../other")
	assert.ErrorIs(t, err, errOutsideRoot)

	_, err = dirWithinRoot("/srv/project", "/srv/other")
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestWithinDir(t *testing.T) {
	assert.True(t, withinDir("internal/query/grep.go", ""))
	assert.True(t, withinDir("internal/query/grep.go", "internal/query"))
	assert.True(t, withinDir("internal/query", "internal/query"))
	assert.False(t, withinDir("internal/store/store.go", "internal/query"))
	assert.False(t, withinDir("internal/queryx/file.go", "internal/query"))
}

func TestGrepArgs_ToRequest_SubstringDefaultsTrue(t *testing.T) {
	req := grepArgs{Terms: []string{"foo"}}.toRequest()
	assert.True(t, req.Substring)
	assert.True(t, req.CaseInsensitive)
}

func TestGrepArgs_ToRequest_RegexDisablesSubstringByDefault(t *testing.T) {
	req := grepArgs{Terms: []string{"f.o"}, Regex: true}.toRequest()
	assert.False(t, req.Substring)
	assert.True(t, req.Regex)
}

func TestGrepArgs_ToRequest_ExplicitSubstringOverridesRegexDefault(t *testing.T) {
	trueVal := true
	req := grepArgs{Terms: []string{"f.o"}, Regex: true, Substring: &trueVal}.toRequest()
	assert.True(t, req.Substring)
}

func TestGrepArgs_Terms_PatternIsAliasForSingleTerm(t *testing.T) {
	assert.Equal(t, []string{"needle"}, grepArgs{Pattern: "needle"}.terms())
	assert.Equal(t, []string{"a", "b"}, grepArgs{Terms: []string{"a", "b"}, Pattern: "ignored"}.terms())
}

func TestDefinitionsArgs_ToRequest_SetsKindAndContainsLine(t *testing.T) {
	line := 42
	args := definitionsArgs{Kind: "Method", ContainsLine: &line}
	req := args.toRequest()
	assert.Equal(t, defindex.Kind("method"), req.Kind)
	assert.True(t, req.HasKind)
	assert.True(t, req.HasContainsLine)
	assert.Equal(t, 42, req.ContainsLine)
}

func TestCallersArgs_ToRequest_CarriesFilter(t *testing.T) {
	args := callersArgs{Method: "Process", Class: "DataService", pathFilterArgs: pathFilterArgs{Exclude: []string{"**/vendor/**"}}}
	req := args.toRequest()
	assert.Equal(t, "Process", req.Method)
	assert.Equal(t, "DataService", req.Class)
	assert.Equal(t, []string{"**/vendor/**"}, req.Filter.Exclude)
}
