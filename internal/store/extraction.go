package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, module, language, hash, status, last_indexed) VALUES (?, ?, ?, ?, ?, ?)",
		f.Path, f.Module, f.Language, f.Hash, f.Status, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = `id, path, module, language, hash, status, last_indexed`

func (s *Store) scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Module, &f.Language, &f.Hash, &f.Status, &f.LastIndexed)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := s.scanFile(s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE path = ?", path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByModule(module string) (*File, error) {
	f, err := s.scanFile(s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE module = ?", module,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by module: %w", err)
	}
	return f, nil
}

// AllFilesOrdered returns every file in lexicographic path order, matching
// the loader's deterministic ordering.
func (s *Store) AllFilesOrdered() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := s.scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := s.scanFile(s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// UpdateFileStatus records the parse outcome for a file after extraction.
func (s *Store) UpdateFileStatus(id int64, status string) error {
	if _, err := s.db.Exec("UPDATE files SET status = ? WHERE id = ?", status, id); err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	return nil
}

// FilePaths returns a file ID -> path map for bulk edge resolution.
func (s *Store) FilePaths() (map[int64]string, error) {
	rows, err := s.db.Query("SELECT id, path FROM files")
	if err != nil {
		return nil, fmt.Errorf("file paths: %w", err)
	}
	defer rows.Close()
	paths := make(map[int64]string)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("scan file path: %w", err)
		}
		paths[id] = path
	}
	return paths, rows.Err()
}

// --- Symbol operations ---

// SymbolCols is the column list for symbol queries, exported for use by QueryBuilder.
const SymbolCols = `id, file_id, name, fq_name, kind, doc,
	start_line, start_col, end_line, end_col, parent_symbol_id`

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, fq_name, kind, doc,
			start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.FQName, sym.Kind, sym.Doc,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

func (s *Store) scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.Name, &sym.FQName, &sym.Kind, &sym.Doc,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.ParentSymbolID,
	)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// ScanSymbolRow scans a single row into a Symbol. Exported for use by QueryBuilder.
func (s *Store) ScanSymbolRow(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	return s.scanSymbol(scanner)
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := s.scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	sym, err := s.scanSymbol(s.db.QueryRow(
		"SELECT "+SymbolCols+" FROM symbols WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

// SymbolByFQName returns the symbol with the exact fully-qualified name,
// or nil. FQ names are unique within a build (shadowing resolves
// collisions before commit).
func (s *Store) SymbolByFQName(fqName string) (*Symbol, error) {
	sym, err := s.scanSymbol(s.db.QueryRow(
		"SELECT "+SymbolCols+" FROM symbols WHERE fq_name = ? AND kind != ?",
		fqName, KindUnresolved,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by fq name: %w", err)
	}
	return sym, nil
}

// SymbolsByFQPrefix returns all non-sentinel symbols whose fully-qualified
// name starts with the given prefix, ordered by fq_name.
func (s *Store) SymbolsByFQPrefix(prefix string) ([]*Symbol, error) {
	return s.querySymbols(
		"SELECT "+SymbolCols+" FROM symbols WHERE fq_name LIKE ? ESCAPE '\\' AND kind != ? ORDER BY fq_name",
		escapeLike(prefix)+"%", KindUnresolved,
	)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols(
		"SELECT "+SymbolCols+" FROM symbols WHERE name = ? ORDER BY fq_name", name,
	)
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols(
		"SELECT "+SymbolCols+" FROM symbols WHERE file_id = ? ORDER BY id", fileID,
	)
}

// SymbolsByIDs bulk-loads symbols keyed by ID.
func (s *Store) SymbolsByIDs(ids []int64) (map[int64]*Symbol, error) {
	if len(ids) == 0 {
		return map[int64]*Symbol{}, nil
	}
	syms, err := s.querySymbols(
		"SELECT "+SymbolCols+" FROM symbols WHERE id IN ("+placeholderList(len(ids))+")",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Symbol, len(syms))
	for _, sym := range syms {
		byID[sym.ID] = sym
	}
	return byID, nil
}

// AllSymbolsOrdered returns every symbol ordered by fq_name then id, for
// deterministic export.
func (s *Store) AllSymbolsOrdered() ([]*Symbol, error) {
	return s.querySymbols("SELECT " + SymbolCols + " FROM symbols ORDER BY fq_name, id")
}

// DeleteSymbols removes symbols by ID. Used by the shadowing pass when a
// later definition wins over an earlier one.
func (s *Store) DeleteSymbols(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := placeholderList(len(ids))
	_, err := s.db.Exec(
		"DELETE FROM symbols WHERE id IN ("+placeholders+")",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	return nil
}

// --- ImportBinding operations ---

const importCols = `id, file_id, source, imported_name, local_alias, line, col, target_symbol_id, state`

func (s *Store) InsertImportBinding(imp *ImportBinding) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO import_bindings (file_id, source, imported_name, local_alias, line, col, target_symbol_id, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.FileID, imp.Source, imp.ImportedName, imp.LocalAlias, imp.Line, imp.Col, imp.TargetSymbolID, imp.State,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import binding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

func (s *Store) queryImportBindings(query string, args ...any) ([]*ImportBinding, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var imports []*ImportBinding
	for rows.Next() {
		imp := &ImportBinding{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Source, &imp.ImportedName,
			&imp.LocalAlias, &imp.Line, &imp.Col, &imp.TargetSymbolID, &imp.State); err != nil {
			return nil, fmt.Errorf("scan import binding: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

func (s *Store) ImportBindingsByFile(fileID int64) ([]*ImportBinding, error) {
	return s.queryImportBindings(
		"SELECT "+importCols+" FROM import_bindings WHERE file_id = ? ORDER BY id", fileID,
	)
}

func (s *Store) ImportBindingsBySource(source string) ([]*ImportBinding, error) {
	return s.queryImportBindings(
		"SELECT "+importCols+" FROM import_bindings WHERE source = ? ORDER BY id", source,
	)
}

func (s *Store) AllImportBindingsOrdered() ([]*ImportBinding, error) {
	return s.queryImportBindings("SELECT " + importCols + " FROM import_bindings ORDER BY id")
}

// UpdateImportBinding writes resolution results back to a binding.
func (s *Store) UpdateImportBinding(id int64, targetSymbolID *int64, state string) error {
	_, err := s.db.Exec(
		"UPDATE import_bindings SET target_symbol_id = ?, state = ? WHERE id = ?",
		targetSymbolID, state, id,
	)
	if err != nil {
		return fmt.Errorf("update import binding: %w", err)
	}
	return nil
}

// --- CallSite operations ---

const callSiteCols = `id, file_id, caller_symbol_id, callee_text, receiver,
	start_line, start_col, end_line, end_col, callee_symbol_id, resolution`

func (s *Store) InsertCallSite(cs *CallSite) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO call_sites (file_id, caller_symbol_id, callee_text, receiver,
			start_line, start_col, end_line, end_col, callee_symbol_id, resolution)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.FileID, cs.CallerSymbolID, cs.CalleeText, cs.Receiver,
		cs.StartLine, cs.StartCol, cs.EndLine, cs.EndCol, cs.CalleeSymbolID, cs.Resolution,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call site: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	cs.ID = id
	return id, nil
}

func (s *Store) queryCallSites(query string, args ...any) ([]*CallSite, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sites []*CallSite
	for rows.Next() {
		cs := &CallSite{}
		if err := rows.Scan(&cs.ID, &cs.FileID, &cs.CallerSymbolID, &cs.CalleeText,
			&cs.Receiver, &cs.StartLine, &cs.StartCol, &cs.EndLine, &cs.EndCol,
			&cs.CalleeSymbolID, &cs.Resolution); err != nil {
			return nil, fmt.Errorf("scan call site: %w", err)
		}
		sites = append(sites, cs)
	}
	return sites, rows.Err()
}

func (s *Store) CallSitesByFile(fileID int64) ([]*CallSite, error) {
	return s.queryCallSites(
		"SELECT "+callSiteCols+" FROM call_sites WHERE file_id = ? ORDER BY id", fileID,
	)
}

func (s *Store) CallSitesByCaller(callerSymbolID int64) ([]*CallSite, error) {
	return s.queryCallSites(
		"SELECT "+callSiteCols+" FROM call_sites WHERE caller_symbol_id = ? ORDER BY id", callerSymbolID,
	)
}

func (s *Store) CallSiteByID(id int64) (*CallSite, error) {
	sites, err := s.queryCallSites(
		"SELECT "+callSiteCols+" FROM call_sites WHERE id = ?", id,
	)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, nil
	}
	return sites[0], nil
}

// UpdateCallSite writes resolution results back to a call site.
func (s *Store) UpdateCallSite(id int64, calleeSymbolID *int64, resolution string) error {
	_, err := s.db.Exec(
		"UPDATE call_sites SET callee_symbol_id = ?, resolution = ? WHERE id = ?",
		calleeSymbolID, resolution, id,
	)
	if err != nil {
		return fmt.Errorf("update call site: %w", err)
	}
	return nil
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO diagnostics (seq, severity, category, path, line, col, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Seq, d.Severity, d.Category, d.Path, d.Line, d.Col, d.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

// NextDiagnosticSeq returns the next sequence number for the ordered
// diagnostics channel.
func (s *Store) NextDiagnosticSeq() (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(seq) FROM diagnostics").Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next diagnostic seq: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}

// DiagnosticsOrdered returns all diagnostics in seq order. Order is
// preserved across export round-trips.
func (s *Store) DiagnosticsOrdered() ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		"SELECT id, seq, severity, category, path, line, col, message FROM diagnostics ORDER BY seq, id",
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.Seq, &d.Severity, &d.Category,
			&d.Path, &d.Line, &d.Col, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}
