// Package codegraph builds a static call graph for Python codebases on
// top of tree-sitter, with the result stored in SQLite.
//
// # Pipeline
//
// A build runs in three phases:
//
//  1. Extract: discover source files under the configured roots, parse
//     each with tree-sitter, and record definitions, import bindings,
//     and call sites. Parsing is tolerant: syntax errors become
//     diagnostics and the definitions that did parse are kept.
//
//  2. Merge: per-file extraction batches are committed to SQLite by a
//     single writer in path order, so symbol IDs and diagnostic order
//     are reproducible across runs.
//
//  3. Resolve: import bindings are linked to their target symbols,
//     following re-export chains through package __init__ modules, and
//     every call site becomes exactly one call edge. Calls that cannot
//     be resolved statically get an edge to an unresolved sentinel
//     symbol rather than disappearing.
//
// # Usage
//
// Create an Engine, build, and query:
//
//	e, err := codegraph.New("graph.db", codegraph.WithConfig(cfg))
//	if err != nil { ... }
//	defer e.Close()
//
//	if err := e.Build(context.Background()); err != nil { ... }
//
//	q := e.Query()
//	sym, err := q.SymbolByFQName("demo.foo.double_foo")
//	callers, err := q.Callers(sym.ID)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides symbol lookup
// by exact name, fully-qualified name, or prefix; direct and transitive
// callers and callees; and file-level dependency queries over import
// bindings. [Engine.Export] writes the whole graph as a stable JSON
// document, and [LoadSnapshot] reads one back.
//
// # Diagnostics
//
// Problems found during a build (unreadable files, syntax errors,
// shadowed definitions, unresolved imports and calls, cyclic
// re-exports) are first-class output with a stable order, never mixed
// into the graph itself. A build succeeds even when the graph is full
// of unresolved edges.
package codegraph
