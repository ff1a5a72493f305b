package store

import "time"

// Extraction domain types

// File is one discovered source file. Status records whether the file was
// read and parsed cleanly; failures still produce a row so downstream
// stages can tell "known but broken" from "absent".
type File struct {
	ID          int64
	Path        string
	Module      string
	Language    string
	Hash        string
	Status      string
	LastIndexed time.Time
}

// File status values.
const (
	FileOK          = "ok"
	FileReadError   = "read-error"
	FileSyntaxError = "syntax-error"
)

// Symbol is a definition registered by extraction, or an unresolved
// sentinel created by resolution. Sentinels have a nil FileID and kind
// KindUnresolved; their FQName is the raw callee/import text.
type Symbol struct {
	ID             int64
	FileID         *int64
	Name           string
	FQName         string
	Kind           string
	Doc            string
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	ParentSymbolID *int64
}

// Symbol kinds.
const (
	KindModule     = "module"
	KindClass      = "class"
	KindFunction   = "function"
	KindMethod     = "method"
	KindBinding    = "binding" // module-level assignment
	KindUnresolved = "unresolved"
)

// ImportBinding is one import statement in one file. TargetSymbolID is
// filled by resolution; State distinguishes resolved, unresolved, cyclic
// re-export, and external (module outside the project roots).
type ImportBinding struct {
	ID             int64
	FileID         int64
	Source         string
	ImportedName   *string
	LocalAlias     *string
	Line           int
	Col            int
	TargetSymbolID *int64
	State          string
}

// ImportBinding states. A declared-export row is not an import statement
// at all: it records one name listed in a module's __all__ so resolution
// can verify the export list and follow re-exports.
const (
	ImportResolved       = "resolved"
	ImportUnresolved     = "unresolved"
	ImportExternal       = "external"
	ImportCyclic         = "cyclic"
	ImportDeclaredExport = "declared-export"
)

// CallSite is one concrete call expression, distinct from the edge it
// contributes to. CalleeText preserves the expression as written.
type CallSite struct {
	ID             int64
	FileID         int64
	CallerSymbolID int64
	CalleeText     string
	Receiver       string
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	CalleeSymbolID *int64
	Resolution     string
}

// CallSite resolution kinds.
const (
	ResLocal      = "local"
	ResClass      = "class"
	ResImport     = "import"
	ResReexport   = "reexport"
	ResUnresolved = "unresolved"
	ResAmbiguous  = "ambiguous-receiver"
)

// Resolution domain types

// CallEdge is a directed CALLS edge. CallSiteID is the provenance record.
type CallEdge struct {
	ID             int64
	CallerSymbolID int64
	CalleeSymbolID int64
	CallSiteID     int64
	FileID         *int64
	Line           int
	Col            int
}

// Reexport records that a module re-publishes a symbol defined elsewhere.
type Reexport struct {
	ID               int64
	FileID           int64
	ExportedName     string
	OriginalSymbolID int64
}

// Diagnostic is one entry in the ordered diagnostics channel. Seq fixes
// the order across runs; diagnostics are first-class output, never mixed
// into the graph.
type Diagnostic struct {
	ID       int64
	Seq      int64
	Severity string
	Category string
	Path     string
	Line     int
	Col      int
	Message  string
}

// Diagnostic severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Diagnostic categories.
const (
	CategoryRead           = "read"
	CategorySyntax         = "syntax"
	CategoryShadowing      = "shadowing"
	CategoryResolution     = "resolution"
	CategoryCyclicReexport = "cyclic-reexport"
)
