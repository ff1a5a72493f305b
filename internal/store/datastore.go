package store

// DataStore is the interface for extraction-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type DataStore interface {
	// Extraction inserts — each returns the assigned ID.
	InsertSymbol(sym *Symbol) (int64, error)
	InsertImportBinding(imp *ImportBinding) (int64, error)
	InsertCallSite(cs *CallSite) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
