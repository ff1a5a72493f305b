package codegraph

import (
	"fmt"

	"codegraph/internal/store"
)

// QueryBuilder provides the read API over a built graph.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder wraps an already-open Store. Callers that hold an
// Engine should use [Engine.Query] instead.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Location is a source position range.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// SymbolByFQName looks up a symbol by its fully-qualified name.
// Returns nil when no such symbol exists. Unresolved sentinels are
// never returned by name lookups.
func (q *QueryBuilder) SymbolByFQName(fqName string) (*Symbol, error) {
	return q.store.SymbolByFQName(fqName)
}

// SymbolsByName returns all symbols with the given bare name, ordered
// by fully-qualified name.
func (q *QueryBuilder) SymbolsByName(name string) ([]*Symbol, error) {
	return q.store.SymbolsByName(name)
}

// SymbolsByPrefix returns all symbols whose fully-qualified name starts
// with the given dotted prefix, ordered by fully-qualified name.
func (q *QueryBuilder) SymbolsByPrefix(prefix string) ([]*Symbol, error) {
	return q.store.SymbolsByFQPrefix(prefix)
}

// SymbolByID returns a symbol by ID, or nil.
func (q *QueryBuilder) SymbolByID(id int64) (*Symbol, error) {
	return q.store.SymbolByID(id)
}

// Callers returns call edges where the given symbol is the callee.
func (q *QueryBuilder) Callers(symbolID int64) ([]*CallEdge, error) {
	return q.store.CallersByCallee(symbolID)
}

// Callees returns call edges where the given symbol is the caller.
func (q *QueryBuilder) Callees(symbolID int64) ([]*CallEdge, error) {
	return q.store.CalleesByCaller(symbolID)
}

// CallSitesOf returns the concrete call expressions inside a symbol's
// body, in source order.
func (q *QueryBuilder) CallSitesOf(symbolID int64) ([]*CallSite, error) {
	return q.store.CallSitesByCaller(symbolID)
}

// FileByPath returns the file record for a project-relative path, or
// nil.
func (q *QueryBuilder) FileByPath(path string) (*File, error) {
	return q.store.FileByPath(path)
}

// FileByID returns a file record by ID, or nil.
func (q *QueryBuilder) FileByID(id int64) (*File, error) {
	return q.store.FileByID(id)
}

// Dependencies returns the import bindings of a file: what it pulls in.
func (q *QueryBuilder) Dependencies(fileID int64) ([]*ImportBinding, error) {
	return q.store.ImportBindingsByFile(fileID)
}

// Dependents returns import bindings in other files whose resolved
// target lives in the given file: who pulls this file in.
func (q *QueryBuilder) Dependents(fileID int64) ([]*ImportBinding, error) {
	rows, err := q.store.DB().Query(
		`SELECT ib.id, ib.file_id, ib.source, ib.imported_name, ib.local_alias,
		        ib.line, ib.col, ib.target_symbol_id, ib.state
		 FROM import_bindings ib
		 JOIN symbols s ON s.id = ib.target_symbol_id
		 WHERE s.file_id = ? AND ib.file_id != ?
		 ORDER BY ib.id`,
		fileID, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}
	defer rows.Close()

	var bindings []*ImportBinding
	for rows.Next() {
		imp := &ImportBinding{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Source, &imp.ImportedName,
			&imp.LocalAlias, &imp.Line, &imp.Col, &imp.TargetSymbolID, &imp.State); err != nil {
			return nil, fmt.Errorf("dependents: scan: %w", err)
		}
		bindings = append(bindings, imp)
	}
	return bindings, rows.Err()
}

// Reexports returns the names a file re-publishes.
func (q *QueryBuilder) Reexports(fileID int64) ([]*Reexport, error) {
	return q.store.ReexportsByFile(fileID)
}

// Diagnostics returns every diagnostic in sequence order.
func (q *QueryBuilder) Diagnostics() ([]*Diagnostic, error) {
	return q.store.DiagnosticsOrdered()
}

// SymbolLocation resolves a symbol ID to its file path and position.
// Returns nil for unknown IDs and for unresolved sentinels, which have
// no source location.
func (q *QueryBuilder) SymbolLocation(symbolID int64) (*Location, error) {
	sym, err := q.store.SymbolByID(symbolID)
	if err != nil {
		return nil, fmt.Errorf("symbol location: %w", err)
	}
	if sym == nil || sym.FileID == nil {
		return nil, nil
	}
	f, err := q.fileByID(*sym.FileID)
	if err != nil {
		return nil, fmt.Errorf("symbol location: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return &Location{
		File:      f.Path,
		StartLine: sym.StartLine,
		StartCol:  sym.StartCol,
		EndLine:   sym.EndLine,
		EndCol:    sym.EndCol,
	}, nil
}

func (q *QueryBuilder) fileByID(id int64) (*File, error) {
	return q.store.FileByID(id)
}
