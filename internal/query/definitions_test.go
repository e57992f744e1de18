package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/fileindex"
	"github.com/pustynsky/codescope/internal/walker"
)

func buildDefIndex(t *testing.T, root string) *defindex.Index {
	t.Helper()
	idx, err := defindex.Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)
	return idx
}

func TestDefinitionsExactBeforePrefixBeforeSubstring(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", "public class Widget {}")
	writeFile(t, root, "b.cs", "public class WidgetFactory {}")
	writeFile(t, root, "c.cs", "public class MyWidget {}")
	idx := buildDefIndex(t, root)

	resp, err := Definitions(idx, root, DefRequest{Name: "Widget", NameMode: "substring"})
	require.NoError(t, err)
	require.Len(t, resp.Definitions, 3)
	assert.Equal(t, "Widget", resp.Definitions[0].Name)
	assert.Equal(t, "WidgetFactory", resp.Definitions[1].Name)
	assert.Equal(t, "MyWidget", resp.Definitions[2].Name)
}

func TestDefinitionsContainsLineFindsInnermost(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", `public class Outer
{
    public void Inner()
    {
        int x = 1;
    }
}`)
	idx := buildDefIndex(t, root)

	resp, err := Definitions(idx, root, DefRequest{File: "a.cs", ContainsLine: 5, HasContainsLine: true})
	require.NoError(t, err)
	require.Len(t, resp.Definitions, 2)
	assert.Equal(t, "Inner", resp.Definitions[0].Name) // innermost (smallest range) first
}

func TestDefinitionsContainsLineTiesBreakByDeeperParentChain(t *testing.T) {
	root := t.TempDir()
	// Class and method share an identical one-line span; the method is
	// nested one level deeper and must sort first.
	writeFile(t, root, "a.cs", `public class Outer { public void M() { } }`)
	idx := buildDefIndex(t, root)

	resp, err := Definitions(idx, root, DefRequest{File: "a.cs", ContainsLine: 1, HasContainsLine: true})
	require.NoError(t, err)
	require.Len(t, resp.Definitions, 2)
	assert.Equal(t, "M", resp.Definitions[0].Name)
	assert.Equal(t, "Outer", resp.Definitions[1].Name)
}

func TestDefinitionsIncludeBodyRespectsMaxBodyLines(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", `public class Widget
{
    public void Run()
    {
        int a = 1;
        int b = 2;
        int c = 3;
    }
}`)
	idx := buildDefIndex(t, root)

	resp, err := Definitions(idx, root, DefRequest{Name: "Run", IncludeBody: true, MaxBodyLines: 2})
	require.NoError(t, err)
	require.Len(t, resp.Definitions, 1)
	assert.True(t, resp.Definitions[0].BodyTruncated)
}

func TestAuditFlagsSuspiciousFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 0, 5000)
	for i := 0; i < 5000; i++ {
		big = append(big, 'x')
	}
	writeFile(t, root, "big.cs", string(big))
	writeFile(t, root, "small.cs", "public class Tiny {}")

	fi, err := fileindex.Build(context.Background(), walker.Options{Root: root}, 3600, 1000)
	require.NoError(t, err)
	di := buildDefIndex(t, root)

	res := Audit(fi, di, 1000)
	assert.Contains(t, res.SuspiciousFiles, "big.cs")
	assert.Equal(t, 1, res.FilesWithDefinitions)
	assert.Equal(t, 1, res.FilesWithoutDefinitions)
}
