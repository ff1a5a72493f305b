package codegraph

import "codegraph/internal/store"

// Public aliases for internal store types surfaced through the
// QueryBuilder API. These are true aliases, so callers never need to
// convert between package codegraph and internal/store values.

type Store = store.Store
type File = store.File
type Symbol = store.Symbol
type ImportBinding = store.ImportBinding
type CallSite = store.CallSite
type CallEdge = store.CallEdge
type Reexport = store.Reexport
type Diagnostic = store.Diagnostic
