package resolve

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/pylang"
	"codegraph/internal/store"
)

// ============================================================
// Helpers
// ============================================================

// buildGraph extracts the given sources (relative path -> content) into
// a fresh in-memory store and runs full resolution over the result.
func buildGraph(t *testing.T, sources map[string]string) *store.Store {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate())

	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		src := []byte(sources[p])
		fileID, err := st.InsertFile(&store.File{
			Path:        p,
			Module:      pylang.ModulePath(p),
			Language:    pylang.Language,
			Status:      store.FileOK,
			LastIndexed: time.Now(),
		})
		require.NoError(t, err)

		tree, syntaxDiags, err := pylang.Parse(context.Background(), src)
		require.NoError(t, err)
		require.Empty(t, syntaxDiags, "fixture %s must parse cleanly", p)

		batch := store.NewBatchedStore()
		f := &store.File{ID: fileID, Path: p, Module: pylang.ModulePath(p)}
		extractErr := pylang.ExtractFile(batch, f, src, tree)
		tree.Close()
		require.NoError(t, extractErr)
		require.NoError(t, st.CommitBatch(batch, p))
	}

	require.NoError(t, Run(st))
	return st
}

func mustSymbol(t *testing.T, st *store.Store, fqName string) *store.Symbol {
	t.Helper()
	sym, err := st.SymbolByFQName(fqName)
	require.NoError(t, err)
	require.NotNil(t, sym, "symbol %q not found", fqName)
	return sym
}

// bindingFor finds the single import binding with the given source in a
// file.
func bindingFor(t *testing.T, st *store.Store, path, source string) *store.ImportBinding {
	t.Helper()
	f, err := st.FileByPath(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	bindings, err := st.ImportBindingsByFile(f.ID)
	require.NoError(t, err)
	var found *store.ImportBinding
	for _, b := range bindings {
		if b.Source == source {
			require.Nil(t, found, "multiple bindings with source %q in %s", source, path)
			found = b
		}
	}
	require.NotNil(t, found, "no binding with source %q in %s", source, path)
	return found
}

// siteFor finds the single call site with the given callee text in a
// file.
func siteFor(t *testing.T, st *store.Store, path, calleeText string) *store.CallSite {
	t.Helper()
	f, err := st.FileByPath(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	sites, err := st.CallSitesByFile(f.ID)
	require.NoError(t, err)
	var found *store.CallSite
	for _, cs := range sites {
		if cs.CalleeText == calleeText {
			require.Nil(t, found, "multiple call sites %q in %s", calleeText, path)
			found = cs
		}
	}
	require.NotNil(t, found, "no call site %q in %s", calleeText, path)
	return found
}

// edgeForSite finds the call edge recorded for a call site. Resolution
// guarantees exactly one per site.
func edgeForSite(t *testing.T, st *store.Store, siteID int64) *store.CallEdge {
	t.Helper()
	edges, err := st.AllCallEdges()
	require.NoError(t, err)
	var found *store.CallEdge
	for _, e := range edges {
		if e.CallSiteID == siteID {
			require.Nil(t, found, "multiple edges for call site %d", siteID)
			found = e
		}
	}
	require.NotNil(t, found, "no edge for call site %d", siteID)
	return found
}

func diagsByCategory(t *testing.T, st *store.Store, category string) []*store.Diagnostic {
	t.Helper()
	all, err := st.DiagnosticsOrdered()
	require.NoError(t, err)
	var out []*store.Diagnostic
	for _, d := range all {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// ============================================================
// Module path normalization
// ============================================================

func TestNormalizeModulePath(t *testing.T) {
	barFile := &store.File{Path: "demo/bar.py", Module: "demo.bar"}
	pkgInit := &store.File{Path: "demo/pkg/__init__.py", Module: "demo.pkg"}
	pkgMod := &store.File{Path: "demo/pkg/algebra.py", Module: "demo.pkg.algebra"}
	topMod := &store.File{Path: "single.py", Module: "single"}

	tests := []struct {
		source string
		file   *store.File
		want   string
	}{
		{"math", barFile, "math"},
		{"demo.foo", barFile, "demo.foo"},
		{".foo", barFile, "demo.foo"},
		{".", barFile, "demo"},
		{".geometry", pkgMod, "demo.pkg.geometry"},
		{"..bar", pkgMod, "demo.bar"},
		{"..", pkgMod, "demo"},
		// A package's own relative imports resolve against itself.
		{".a", pkgInit, "demo.pkg.a"},
		// A top-level module has no package to resolve "." against.
		{".x", topMod, ""},
	}
	for _, tt := range tests {
		got := normalizeModulePath(tt.source, tt.file)
		assert.Equal(t, tt.want, got, "normalizeModulePath(%q, %s)", tt.source, tt.file.Path)
	}
}

// ============================================================
// Import resolution
// ============================================================

func TestRun_RelativeFromImport(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/foo.py": "def foo(n):\n    return n\n",
		"demo/bar.py": "from .foo import foo\n",
	})

	b := bindingFor(t, st, "demo/bar.py", ".foo")
	assert.Equal(t, store.ImportResolved, b.State)
	require.NotNil(t, b.TargetSymbolID)

	target := mustSymbol(t, st, "demo.foo.foo")
	assert.Equal(t, target.ID, *b.TargetSymbolID)
}

func TestRun_WholeModuleImport(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/foo.py": "def foo(n):\n    return n\n",
		"demo/use.py": "import demo.foo\n",
	})

	b := bindingFor(t, st, "demo/use.py", "demo.foo")
	assert.Equal(t, store.ImportResolved, b.State)
	require.NotNil(t, b.TargetSymbolID)

	target, err := st.SymbolByID(*b.TargetSymbolID)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, store.KindModule, target.Kind)
	assert.Equal(t, "demo.foo", target.FQName)
}

func TestRun_ExternalImportIsNotAFailure(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/ext.py": "import math\nfrom numpy import array\n",
	})

	m := bindingFor(t, st, "demo/ext.py", "math")
	assert.Equal(t, store.ImportExternal, m.State)
	assert.Nil(t, m.TargetSymbolID)

	n := bindingFor(t, st, "demo/ext.py", "numpy")
	assert.Equal(t, store.ImportExternal, n.State)

	diags, err := st.DiagnosticsOrdered()
	require.NoError(t, err)
	assert.Empty(t, diags, "external imports produce no diagnostics")
}

func TestRun_UnresolvedRelativeImport(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/mod.py": "from .missing import thing\n",
	})

	b := bindingFor(t, st, "demo/mod.py", ".missing")
	assert.Equal(t, store.ImportUnresolved, b.State)
	assert.Nil(t, b.TargetSymbolID)

	diags := diagsByCategory(t, st, store.CategoryResolution)
	require.Len(t, diags, 1)
	assert.Equal(t, store.SeverityError, diags[0].Severity)
	assert.Equal(t, "demo/mod.py", diags[0].Path)
	assert.Contains(t, diags[0].Message, "cannot resolve import")
}

func TestRun_ReexportChain(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/pkg/__init__.py": "from .a import thing\n",
		"demo/pkg/a.py":        "def thing():\n    return 1\n",
		"demo/use.py":          "from demo.pkg import thing\n\ndef call_it():\n    return thing()\n",
	})

	thing := mustSymbol(t, st, "demo.pkg.a.thing")

	// The consuming binding lands on the original symbol, not the
	// package that re-published it.
	b := bindingFor(t, st, "demo/use.py", "demo.pkg")
	assert.Equal(t, store.ImportResolved, b.State)
	require.NotNil(t, b.TargetSymbolID)
	assert.Equal(t, thing.ID, *b.TargetSymbolID)

	// The call through the re-export is tagged as such.
	site := siteFor(t, st, "demo/use.py", "thing")
	assert.Equal(t, store.ResReexport, site.Resolution)
	require.NotNil(t, site.CalleeSymbolID)
	assert.Equal(t, thing.ID, *site.CalleeSymbolID)

	// The package materializes one re-export row.
	initFile, err := st.FileByPath("demo/pkg/__init__.py")
	require.NoError(t, err)
	reexports, err := st.ReexportsByFile(initFile.ID)
	require.NoError(t, err)
	require.Len(t, reexports, 1)
	assert.Equal(t, "thing", reexports[0].ExportedName)
	assert.Equal(t, thing.ID, reexports[0].OriginalSymbolID)
}

func TestRun_CyclicReexport(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/pkg/__init__.py": "from .a import thing\n",
		"demo/pkg/a.py":        "from .b import thing\n",
		"demo/pkg/b.py":        "from .a import thing\n",
	})

	for _, path := range []string{"demo/pkg/__init__.py", "demo/pkg/a.py", "demo/pkg/b.py"} {
		f, err := st.FileByPath(path)
		require.NoError(t, err)
		bindings, err := st.ImportBindingsByFile(f.ID)
		require.NoError(t, err)
		require.Len(t, bindings, 1)
		assert.Equal(t, store.ImportCyclic, bindings[0].State, "binding in %s", path)
		assert.Nil(t, bindings[0].TargetSymbolID)
	}

	diags := diagsByCategory(t, st, store.CategoryCyclicReexport)
	require.Len(t, diags, 3)
	for _, d := range diags {
		assert.Equal(t, store.SeverityError, d.Severity)
		assert.Contains(t, d.Message, "cyclic re-export")
	}

	// No re-export materializes out of a cycle.
	initFile, err := st.FileByPath("demo/pkg/__init__.py")
	require.NoError(t, err)
	reexports, err := st.ReexportsByFile(initFile.ID)
	require.NoError(t, err)
	assert.Empty(t, reexports)
}

func TestRun_ExportListValidation(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/pkg/__init__.py": "from .a import thing\n\n__all__ = [\"thing\", \"ghost\"]\n",
		"demo/pkg/a.py":        "def thing():\n    return 1\n",
	})

	initFile, err := st.FileByPath("demo/pkg/__init__.py")
	require.NoError(t, err)

	// "thing" materializes once even though the from-import and the
	// export list both name it.
	reexports, err := st.ReexportsByFile(initFile.ID)
	require.NoError(t, err)
	require.Len(t, reexports, 1)
	assert.Equal(t, "thing", reexports[0].ExportedName)

	diags := diagsByCategory(t, st, store.CategoryResolution)
	require.Len(t, diags, 1)
	assert.Equal(t, store.SeverityError, diags[0].Severity)
	assert.Contains(t, diags[0].Message, `export list names "ghost"`)
}

// ============================================================
// Call resolution
// ============================================================

func TestRun_LocalCall(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/foo.py": "def _increment(n):\n    return n + 1\n\ndef foo(n):\n    return _increment(n)\n",
	})

	inc := mustSymbol(t, st, "demo.foo._increment")
	foo := mustSymbol(t, st, "demo.foo.foo")

	site := siteFor(t, st, "demo/foo.py", "_increment")
	assert.Equal(t, store.ResLocal, site.Resolution)
	require.NotNil(t, site.CalleeSymbolID)
	assert.Equal(t, inc.ID, *site.CalleeSymbolID)

	edge := edgeForSite(t, st, site.ID)
	assert.Equal(t, foo.ID, edge.CallerSymbolID)
	assert.Equal(t, inc.ID, edge.CalleeSymbolID)
	assert.Equal(t, site.StartLine, edge.Line)
}

func TestRun_ImportedCall(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/foo.py": "def foo(n):\n    return n\n",
		"demo/bar.py": "from .foo import foo\n\ndef double_foo(n):\n    return foo(n) + foo(foo(n))\n",
	})

	foo := mustSymbol(t, st, "demo.foo.foo")
	dbl := mustSymbol(t, st, "demo.bar.double_foo")

	// Three call expressions, three sites, three edges to the same
	// callee: provenance is never collapsed.
	edges, err := st.CalleesByCaller(dbl.ID)
	require.NoError(t, err)
	require.Len(t, edges, 3)
	for _, e := range edges {
		assert.Equal(t, foo.ID, e.CalleeSymbolID)
	}

	f, err := st.FileByPath("demo/bar.py")
	require.NoError(t, err)
	sites, err := st.CallSitesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, sites, 3)
	for _, cs := range sites {
		assert.Equal(t, store.ResImport, cs.Resolution)
	}
}

func TestRun_ConstructorAndClassReceiver(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/cls.py": `class Greeter:
    def greet(self):
        return "hi"

def make():
    return Greeter()

def use(g):
    return Greeter.greet(g)
`,
	})

	greeter := mustSymbol(t, st, "demo.cls.Greeter")
	greet := mustSymbol(t, st, "demo.cls.Greeter.greet")

	// Constructor call resolves to the class like any lexical name.
	ctor := siteFor(t, st, "demo/cls.py", "Greeter")
	assert.Equal(t, store.ResLocal, ctor.Resolution)
	require.NotNil(t, ctor.CalleeSymbolID)
	assert.Equal(t, greeter.ID, *ctor.CalleeSymbolID)

	// ClassName.method() resolves through the class in lexical scope.
	method := siteFor(t, st, "demo/cls.py", "Greeter.greet")
	assert.Equal(t, store.ResClass, method.Resolution)
	require.NotNil(t, method.CalleeSymbolID)
	assert.Equal(t, greet.ID, *method.CalleeSymbolID)
}

func TestRun_SelfMethodCall(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/greet.py": `class Greeter:
    def greet(self):
        return self.format()

    def format(self):
        return "hi"
`,
	})

	greet := mustSymbol(t, st, "demo.greet.Greeter.greet")
	format := mustSymbol(t, st, "demo.greet.Greeter.format")

	site := siteFor(t, st, "demo/greet.py", "self.format")
	assert.Equal(t, store.ResClass, site.Resolution)
	require.NotNil(t, site.CalleeSymbolID)
	assert.Equal(t, format.ID, *site.CalleeSymbolID)

	edge := edgeForSite(t, st, site.ID)
	assert.Equal(t, greet.ID, edge.CallerSymbolID)
	assert.Equal(t, format.ID, edge.CalleeSymbolID)
}

func TestRun_ModuleAliasReceiver(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/a.py": "def helper():\n    return 1\n",
		"demo/b.py": "import demo.a as a\n\ndef go():\n    return a.helper()\n",
	})

	helper := mustSymbol(t, st, "demo.a.helper")

	site := siteFor(t, st, "demo/b.py", "a.helper")
	assert.Equal(t, store.ResImport, site.Resolution)
	require.NotNil(t, site.CalleeSymbolID)
	assert.Equal(t, helper.ID, *site.CalleeSymbolID)
}

func TestRun_WildcardImportCall(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/a.py": "def helper():\n    return 1\n",
		"demo/b.py": "from demo.a import *\n\ndef go():\n    return helper()\n",
	})

	helper := mustSymbol(t, st, "demo.a.helper")

	site := siteFor(t, st, "demo/b.py", "helper")
	assert.Equal(t, store.ResImport, site.Resolution)
	require.NotNil(t, site.CalleeSymbolID)
	assert.Equal(t, helper.ID, *site.CalleeSymbolID)
}

func TestRun_BuiltinCallHitsSentinel(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/p.py": "def shout(msg):\n    print(msg)\n",
	})

	site := siteFor(t, st, "demo/p.py", "print")
	assert.Equal(t, store.ResUnresolved, site.Resolution)
	assert.Nil(t, site.CalleeSymbolID, "unresolved sites keep a NULL callee")

	// The edge still exists, pointing at a per-text sentinel.
	edge := edgeForSite(t, st, site.ID)
	sentinel, err := st.SymbolByID(edge.CalleeSymbolID)
	require.NoError(t, err)
	require.NotNil(t, sentinel)
	assert.Equal(t, store.KindUnresolved, sentinel.Kind)
	assert.Equal(t, "print", sentinel.FQName)
	assert.Nil(t, sentinel.FileID)

	diags := diagsByCategory(t, st, store.CategoryResolution)
	require.Len(t, diags, 1)
	assert.Equal(t, store.SeverityError, diags[0].Severity)
	assert.Contains(t, diags[0].Message, `"print"`)
}

func TestRun_SentinelSharedAcrossSites(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/p.py": "def a():\n    print(1)\n\ndef b():\n    print(2)\n",
	})

	edges, err := st.AllCallEdges()
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, edges[0].CalleeSymbolID, edges[1].CalleeSymbolID,
		"same callee text shares one sentinel")
	assert.NotEqual(t, edges[0].CallSiteID, edges[1].CallSiteID)
}

func TestRun_ExternalModuleReceiver(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/m.py": "import math\n\ndef f(x):\n    return math.sqrt(x)\n",
	})

	site := siteFor(t, st, "demo/m.py", "math.sqrt")
	assert.Equal(t, store.ResUnresolved, site.Resolution)
	assert.Nil(t, site.CalleeSymbolID)

	diags := diagsByCategory(t, st, store.CategoryResolution)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "external module")
}

func TestRun_AmbiguousReceiver(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/amb.py": "def use(obj):\n    return obj.run()\n",
	})

	site := siteFor(t, st, "demo/amb.py", "obj.run")
	assert.Equal(t, store.ResAmbiguous, site.Resolution)
	assert.Nil(t, site.CalleeSymbolID)

	edge := edgeForSite(t, st, site.ID)
	sentinel, err := st.SymbolByID(edge.CalleeSymbolID)
	require.NoError(t, err)
	assert.Equal(t, store.KindUnresolved, sentinel.Kind)
	assert.Equal(t, "obj.run", sentinel.FQName)

	// Ambiguity is a warning, not an error: the receiver's runtime type
	// is simply out of reach.
	diags := diagsByCategory(t, st, store.CategoryResolution)
	require.Len(t, diags, 1)
	assert.Equal(t, store.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, `"obj"`)
}

func TestRun_EveryCallSiteGetsExactlyOneEdge(t *testing.T) {
	st := buildGraph(t, map[string]string{
		"demo/foo.py": "def _increment(n):\n    return n + 1\n\ndef foo(n):\n    return _increment(n)\n",
		"demo/bar.py": "from .foo import foo\n\ndef mix(n):\n    print(n)\n    return foo(n)\n",
	})

	var totalSites int
	files, err := st.AllFilesOrdered()
	require.NoError(t, err)
	for _, f := range files {
		sites, err := st.CallSitesByFile(f.ID)
		require.NoError(t, err)
		totalSites += len(sites)

		for _, cs := range sites {
			edgeForSite(t, st, cs.ID)
		}
	}

	edges, err := st.AllCallEdges()
	require.NoError(t, err)
	assert.Equal(t, totalSites, len(edges))
}
