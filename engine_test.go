package codegraph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/store"
)

// buildFixture builds an in-memory graph over the given roots.
func buildFixture(t *testing.T, parallel bool, roots ...string) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Roots = roots
	e, err := New(":memory:", WithConfig(cfg), WithParallel(parallel))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	require.NoError(t, e.Build(context.Background()))
	return e
}

func fqSym(t *testing.T, e *Engine, fqName string) *Symbol {
	t.Helper()
	sym, err := e.Query().SymbolByFQName(fqName)
	require.NoError(t, err)
	require.NotNil(t, sym, "symbol %q not in graph", fqName)
	return sym
}

func assertEdge(t *testing.T, e *Engine, callerFQ, calleeFQ string) {
	t.Helper()
	caller := fqSym(t, e, callerFQ)
	callee := fqSym(t, e, calleeFQ)
	ok, err := e.Store().HasCallEdge(caller.ID, callee.ID)
	require.NoError(t, err)
	assert.True(t, ok, "expected edge %s -> %s", callerFQ, calleeFQ)
}

func TestNew_DuplicateRootBaseRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roots = []string{"a/demo", "b/demo"}
	_, err := New(":memory:", WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate base name")
}

func TestBuild_DemoSymbols(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")

	mod := fqSym(t, e, "demo")
	assert.Equal(t, store.KindModule, mod.Kind)
	assert.Contains(t, mod.Doc, "Demo package")

	foo := fqSym(t, e, "demo.foo.foo")
	assert.Equal(t, store.KindFunction, foo.Kind)
	assert.Equal(t, "Increment x via the private helper.", foo.Doc)

	greeter := fqSym(t, e, "demo.bar.Greeter")
	assert.Equal(t, store.KindClass, greeter.Kind)

	greet := fqSym(t, e, "demo.bar.Greeter.greet")
	assert.Equal(t, store.KindMethod, greet.Kind)
	require.NotNil(t, greet.ParentSymbolID)
	assert.Equal(t, greeter.ID, *greet.ParentSymbolID)
}

func TestBuild_DemoCallChain(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")

	// The diamond: triple_foo -> double_foo -> foo -> _increment, plus
	// the direct triple_foo -> foo edge.
	assertEdge(t, e, "demo.bar.triple_foo", "demo.bar.double_foo")
	assertEdge(t, e, "demo.bar.triple_foo", "demo.foo.foo")
	assertEdge(t, e, "demo.bar.double_foo", "demo.foo.foo")
	assertEdge(t, e, "demo.foo.foo", "demo.foo._increment")

	// A method calling a module-level helper.
	assertEdge(t, e, "demo.bar.Greeter.greet", "demo.bar._format_greeting")

	// The script entry point: a module-level call under the main guard.
	assertEdge(t, e, "demo.scripts.run_demo", "demo.scripts.run_demo.main")
	assertEdge(t, e, "demo.scripts.run_demo.main", "demo.foo.foo")
	assertEdge(t, e, "demo.scripts.run_demo.main", "demo.bar.Greeter")
	assertEdge(t, e, "demo.scripts.run_demo.main", "demo.package.algebra.solve_quadratic")
}

func TestBuild_DemoImportStates(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")
	q := e.Query()

	// demo/bar.py: from .foo import foo -> resolved.
	barFile, err := q.FileByPath("demo/bar.py")
	require.NoError(t, err)
	require.NotNil(t, barFile)
	deps, err := q.Dependencies(barFile.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, store.ImportResolved, deps[0].State)

	// demo/package/algebra.py: import math -> external, no target.
	algFile, err := q.FileByPath("demo/package/algebra.py")
	require.NoError(t, err)
	require.NotNil(t, algFile)
	deps, err = q.Dependencies(algFile.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, store.ImportExternal, deps[0].State)
	assert.Nil(t, deps[0].TargetSymbolID)
}

func TestBuild_DemoReexports(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")
	q := e.Query()

	initFile, err := q.FileByPath("demo/__init__.py")
	require.NoError(t, err)
	require.NotNil(t, initFile)

	reexports, err := q.Reexports(initFile.ID)
	require.NoError(t, err)
	names := make(map[string]bool, len(reexports))
	for _, re := range reexports {
		names[re.ExportedName] = true
	}
	assert.Equal(t, map[string]bool{"foo": true, "double_foo": true, "Greeter": true}, names)

	// __all__ names "package", which is not importable (no __init__.py
	// under demo/package makes it a known module from here).
	diags, err := q.Diagnostics()
	require.NoError(t, err)
	var exportDiags []*Diagnostic
	for _, d := range diags {
		if d.Category == store.CategoryResolution && d.Path == "demo/__init__.py" {
			exportDiags = append(exportDiags, d)
		}
	}
	require.Len(t, exportDiags, 1)
	assert.Contains(t, exportDiags[0].Message, `"package"`)
}

func TestBuild_DemoUnresolvedAndAmbiguous(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")
	q := e.Query()

	scriptFile, err := q.FileByPath("demo/scripts/run_demo.py")
	require.NoError(t, err)
	require.NotNil(t, scriptFile)

	sites, err := e.Store().CallSitesByFile(scriptFile.ID)
	require.NoError(t, err)

	byResolution := map[string]int{}
	for _, cs := range sites {
		byResolution[cs.Resolution]++
	}
	assert.Equal(t, 7, byResolution[store.ResUnresolved], "print calls hit the sentinel")
	assert.Equal(t, 1, byResolution[store.ResAmbiguous], "greeter.greet() has an untyped receiver")
	assert.NotZero(t, byResolution[store.ResImport])

	diags, err := q.Diagnostics()
	require.NoError(t, err)
	var warnings int
	for _, d := range diags {
		if d.Severity == store.SeverityWarning {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestBuild_EveryCallSiteHasAnEdge(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")

	files, err := e.Store().AllFilesOrdered()
	require.NoError(t, err)
	var totalSites int
	for _, f := range files {
		sites, err := e.Store().CallSitesByFile(f.ID)
		require.NoError(t, err)
		totalSites += len(sites)
	}

	edges, err := e.Store().AllCallEdges()
	require.NoError(t, err)
	assert.Equal(t, totalSites, len(edges))
}

func TestBuild_ShadowedDefinition(t *testing.T) {
	e := buildFixture(t, false, "testdata/shadow")

	// Only the later definition survives.
	build := fqSym(t, e, "shadow.dup.build")
	assert.Equal(t, 9, build.StartLine)

	// helper's call binds to the surviving definition.
	assertEdge(t, e, "shadow.dup.helper", "shadow.dup.build")

	diags, err := e.Query().Diagnostics()
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, store.SeverityWarning, diags[0].Severity)
	assert.Equal(t, store.CategoryShadowing, diags[0].Category)
	assert.Contains(t, diags[0].Message, "shadow.dup.build")
}

func TestBuild_SyntaxErrorIsTolerated(t *testing.T) {
	e := buildFixture(t, false, "testdata/broken")
	q := e.Query()

	f, err := q.FileByPath("broken/bad.py")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, store.FileSyntaxError, f.Status)

	// Definitions around the broken region still land in the graph.
	fqSym(t, e, "broken.bad.ok")
	fqSym(t, e, "broken.bad.also_ok")
	assertEdge(t, e, "broken.bad.also_ok", "broken.bad.ok")

	diags, err := q.Diagnostics()
	require.NoError(t, err)
	var syntax int
	for _, d := range diags {
		if d.Category == store.CategorySyntax {
			syntax++
			assert.Equal(t, store.SeverityError, d.Severity)
			assert.Equal(t, "broken/bad.py", d.Path)
		}
	}
	assert.NotZero(t, syntax)
}

func TestBuild_CyclicReexports(t *testing.T) {
	e := buildFixture(t, false, "testdata/cycle")

	bindings, err := e.Store().AllImportBindingsOrdered()
	require.NoError(t, err)
	require.Len(t, bindings, 3)
	for _, b := range bindings {
		assert.Equal(t, store.ImportCyclic, b.State)
		assert.Nil(t, b.TargetSymbolID)
	}

	diags, err := e.Query().Diagnostics()
	require.NoError(t, err)
	var cyclic int
	for _, d := range diags {
		if d.Category == store.CategoryCyclicReexport {
			cyclic++
		}
	}
	assert.Equal(t, 3, cyclic)
}

func TestBuild_ModuleCollisionFirstPathWins(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "foo"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.py"), []byte("def f():\n    return 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo", "__init__.py"), []byte("def g():\n    return 2\n"), 0644))

	e := buildFixture(t, false, root)
	q := e.Query()

	// foo.py sorts before foo/__init__.py and wins module "proj.foo".
	winner, err := q.FileByPath("proj/foo.py")
	require.NoError(t, err)
	require.NotNil(t, winner)
	loser, err := q.FileByPath("proj/foo/__init__.py")
	require.NoError(t, err)
	assert.Nil(t, loser)

	diags, err := q.Diagnostics()
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, store.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "already provided by")
}

func TestBuild_Deterministic(t *testing.T) {
	var first, second bytes.Buffer

	e1 := buildFixture(t, false, "testdata/demo")
	require.NoError(t, e1.Export(&first))

	e2 := buildFixture(t, false, "testdata/demo")
	require.NoError(t, e2.Export(&second))

	assert.Equal(t, first.String(), second.String(),
		"identical inputs must export identical documents")
}

func TestBuild_ParallelMatchesSerial(t *testing.T) {
	var serial, parallel bytes.Buffer

	e1 := buildFixture(t, false, "testdata/demo")
	require.NoError(t, e1.Export(&serial))

	e2 := buildFixture(t, true, "testdata/demo")
	require.NoError(t, e2.Export(&parallel))

	assert.Equal(t, serial.String(), parallel.String(),
		"worker count must not change the output")
}

func TestBuild_ResetsPreviousGraph(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roots = []string{"testdata/demo"}
	e, err := New(":memory:", WithConfig(cfg), WithParallel(false))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Build(context.Background()))
	var first bytes.Buffer
	require.NoError(t, e.Export(&first))

	// A second build replaces the graph wholesale, not additively.
	require.NoError(t, e.Build(context.Background()))
	var second bytes.Buffer
	require.NoError(t, e.Export(&second))

	assert.Equal(t, first.String(), second.String())
}

func TestExport_RoundTrip(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")

	var buf bytes.Buffer
	require.NoError(t, e.Export(&buf))

	loaded, err := LoadSnapshot(&buf)
	require.NoError(t, err)

	direct, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, direct, loaded)
}

func TestSnapshot_ReferencesByName(t *testing.T) {
	e := buildFixture(t, false, "testdata/demo")

	snap, err := e.Snapshot()
	require.NoError(t, err)

	require.NotEmpty(t, snap.Edges)
	for _, edge := range snap.Edges {
		assert.NotEmpty(t, edge.Caller)
		assert.NotEmpty(t, edge.Callee)
	}

	var sawReexportTarget bool
	for _, imp := range snap.Imports {
		if imp.File == "demo/__init__.py" && imp.ImportedName == "foo" && imp.Source == ".foo" {
			assert.Equal(t, "demo.foo.foo", imp.Target)
			sawReexportTarget = true
		}
	}
	assert.True(t, sawReexportTarget)
}
