package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallersFindsVerifiedCallSite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", `public class ServiceA
{
    private WidgetRepo repo;

    public void Handle()
    {
        repo.Save();
    }
}`)
	writeFile(t, root, "b.cs", `public class WidgetRepo
{
    public void Save() {}
}`)
	ci := buildContentIndex(t, root)
	di := buildDefIndex(t, root)

	res := Callers(ci, di, CallTreeRequest{Method: "Save", Class: "WidgetRepo"})
	require.Len(t, res.Roots, 1)
	assert.Equal(t, "Handle", res.Roots[0].Method)
	assert.Equal(t, "ServiceA", res.Roots[0].Class)
}

func TestCallersRejectsUnrelatedReceiverOnSameLine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", `public class ServiceA
{
    private OtherRepo repo;

    public void Handle()
    {
        repo.Save();
    }
}`)
	writeFile(t, root, "b.cs", `public class WidgetRepo
{
    public void Save() {}
}
public class OtherRepo
{
    public void Save() {}
}`)
	ci := buildContentIndex(t, root)
	di := buildDefIndex(t, root)

	res := Callers(ci, di, CallTreeRequest{Method: "Save", Class: "WidgetRepo"})
	assert.Len(t, res.Roots, 0)
}

func TestCallersRejectsLineWithAbsentReceiverTypeUnderClassFilter(t *testing.T) {
	root := t.TempDir()
	// B's line merely mentions "Process" in a string/comment-like context
	// with no resolvable receiver; C actually calls it. Only C should
	// surface as a caller of DataService.Process.
	writeFile(t, root, "a.cs", `public class DataService
{
    public void Process() {}
}`)
	writeFile(t, root, "b.cs", `public class Logger
{
    public void Warn()
    {
        var msg = "We need to Process the data";
        System.Console.WriteLine(msg);
    }
}`)
	writeFile(t, root, "c.cs", `public class Worker
{
    private DataService _service;

    public void Run()
    {
        _service.Process();
    }
}`)
	ci := buildContentIndex(t, root)
	di := buildDefIndex(t, root)

	res := Callers(ci, di, CallTreeRequest{Method: "Process", Class: "DataService"})
	require.Len(t, res.Roots, 1)
	assert.Equal(t, "Run", res.Roots[0].Method)
	assert.Equal(t, "Worker", res.Roots[0].Class)
}

func TestCalleesFollowsResolvedReceiverType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", `public class ServiceA
{
    private WidgetRepo repo;

    public void Handle()
    {
        repo.Save();
    }
}`)
	writeFile(t, root, "b.cs", `public class WidgetRepo
{
    public void Save() {}
}`)
	di := buildDefIndex(t, root)

	res := Callees(di, CallTreeRequest{Method: "Handle", Class: "ServiceA", Depth: 2})
	require.Len(t, res.Roots, 1)
	require.Len(t, res.Roots[0].Children, 1)
	assert.Equal(t, "Save", res.Roots[0].Children[0].Method)
	assert.Equal(t, "WidgetRepo", res.Roots[0].Children[0].Class)
}

func TestCallersAmbiguityWarningWhenClassOmitted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", `public class Alpha
{
    public void Run() {}
}`)
	writeFile(t, root, "b.cs", `public class Beta
{
    public void Run() {}
}`)
	ci := buildContentIndex(t, root)
	di := buildDefIndex(t, root)

	res := Callers(ci, di, CallTreeRequest{Method: "Run"})
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Alpha")
	assert.Contains(t, res.Warnings[0], "Beta")
}
