package defindex

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

func TestBuildAssignsGlobalDefIndicesAcrossFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", "public class Alpha { public void Run() {} }")
	writeFile(t, root, "b.cs", "public class Beta { public void Run() {} }")

	idx, err := Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)

	alpha := idx.ByName("alpha")
	beta := idx.ByName("beta")
	require.Len(t, alpha, 1)
	require.Len(t, beta, 1)
	assert.NotEqual(t, alpha[0], beta[0])

	allDefs := idx.AllDefinitions()
	assert.Len(t, allDefs, 4) // 2 classes + 2 methods
}

func TestBuildPopulatesFileAndKindIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "widget.ts", `class Widget {
  render() {}
}`)

	idx, err := Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)

	classes := idx.ByKind(KindClass)
	require.Len(t, classes, 1)

	byFile := idx.ByFile("widget.ts")
	assert.Len(t, byFile, 2)
}

func TestBuildRemapsCallSitesToGlobalIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "service.cs", `public class Service
{
    private Repository repo;

    public void Save()
    {
        repo.Insert();
    }
}`)

	idx, err := Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)

	saveDefs := idx.ByName("save")
	require.Len(t, saveDefs, 1)

	calls := idx.Calls(saveDefs[0])
	require.Len(t, calls, 1)
	assert.Equal(t, "Insert", calls[0].Callee)
	assert.Equal(t, "Repository", calls[0].ReceiverType)
	assert.Equal(t, saveDefs[0], calls[0].CallerDefIdx)
}

func TestBuildCountsParseErrorsAndSkipsUnsupportedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "plain text, not indexed by defindex")
	writeFile(t, root, "ok.cs", "public class Ok {}")

	idx, err := Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)

	defs := idx.ByName("ok")
	assert.Len(t, defs, 1)

	parseErrors, _ := idx.Stats()
	assert.Equal(t, 0, parseErrors)
}

func TestBuildSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", "public class Alpha { public void Run() {} }")

	idx, err := Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "defindex.gob")
	require.NoError(t, idx.Save(out))

	loaded, err := Load(out)
	require.NoError(t, err)

	assert.Equal(t, idx.ByName("alpha"), loaded.ByName("alpha"))
	def, ok := loaded.Definition(loaded.ByName("alpha")[0])
	require.True(t, ok)
	assert.Equal(t, "Alpha", def.Name)
}

func TestBuildBaseTypeIndexTracksSubtypes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "types.ts", `class Base {}
class Derived extends Base {}`)

	idx, err := Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)

	subtypes := idx.ByBaseType("Base")
	require.Len(t, subtypes, 1)
	def, ok := idx.Definition(subtypes[0])
	require.True(t, ok)
	assert.Equal(t, "Derived", def.Name)
}
