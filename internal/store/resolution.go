package store

import (
	"database/sql"
	"fmt"
)

// --- CallEdge operations ---

const callEdgeCols = `id, caller_symbol_id, callee_symbol_id, call_site_id, file_id, line, col`

func (s *Store) InsertCallEdge(edge *CallEdge) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO call_graph (caller_symbol_id, callee_symbol_id, call_site_id, file_id, line, col)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		edge.CallerSymbolID, edge.CalleeSymbolID, edge.CallSiteID, edge.FileID, edge.Line, edge.Col,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	edge.ID = id
	return id, nil
}

func (s *Store) queryCallEdges(query string, args ...any) ([]*CallEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*CallEdge
	for rows.Next() {
		e := &CallEdge{}
		if err := rows.Scan(&e.ID, &e.CallerSymbolID, &e.CalleeSymbolID,
			&e.CallSiteID, &e.FileID, &e.Line, &e.Col); err != nil {
			return nil, fmt.Errorf("scan call edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// AllCallEdges returns all call graph edges. Used for bulk-loading into
// in-memory adjacency maps for transitive traversal and export.
func (s *Store) AllCallEdges() ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT " + callEdgeCols + " FROM call_graph ORDER BY id")
}

func (s *Store) CallersByCallee(calleeSymbolID int64) ([]*CallEdge, error) {
	return s.queryCallEdges(
		"SELECT "+callEdgeCols+" FROM call_graph WHERE callee_symbol_id = ? ORDER BY id", calleeSymbolID,
	)
}

func (s *Store) CalleesByCaller(callerSymbolID int64) ([]*CallEdge, error) {
	return s.queryCallEdges(
		"SELECT "+callEdgeCols+" FROM call_graph WHERE caller_symbol_id = ? ORDER BY id", callerSymbolID,
	)
}

// HasCallEdge reports whether at least one edge caller->callee exists.
// Call sites are not deduplicated, so the boolean query collapses
// repeated calls to the same target.
func (s *Store) HasCallEdge(callerSymbolID, calleeSymbolID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM call_graph WHERE caller_symbol_id = ? AND callee_symbol_id = ? LIMIT 1",
		callerSymbolID, calleeSymbolID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has call edge: %w", err)
	}
	return true, nil
}

// --- Reexport operations ---

func (s *Store) InsertReexport(re *Reexport) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO reexports (file_id, exported_name, original_symbol_id)
		 VALUES (?, ?, ?)`,
		re.FileID, re.ExportedName, re.OriginalSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reexport: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	re.ID = id
	return id, nil
}

func (s *Store) ReexportsByFile(fileID int64) ([]*Reexport, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, exported_name, original_symbol_id FROM reexports WHERE file_id = ? ORDER BY id",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("reexports by file: %w", err)
	}
	defer rows.Close()
	var reexports []*Reexport
	for rows.Next() {
		re := &Reexport{}
		if err := rows.Scan(&re.ID, &re.FileID, &re.ExportedName, &re.OriginalSymbolID); err != nil {
			return nil, fmt.Errorf("scan reexport: %w", err)
		}
		reexports = append(reexports, re)
	}
	return reexports, rows.Err()
}

// --- Unresolved sentinel operations ---

// UnresolvedSentinel returns the sentinel symbol for the given raw text,
// creating it on first use. One sentinel exists per distinct unresolved
// name per build, so repeated unresolved calls share an endpoint.
func (s *Store) UnresolvedSentinel(text string) (*Symbol, error) {
	sym, err := s.scanSymbol(s.db.QueryRow(
		"SELECT "+SymbolCols+" FROM symbols WHERE kind = ? AND fq_name = ?",
		KindUnresolved, text,
	))
	if err == nil {
		return sym, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("unresolved sentinel: %w", err)
	}

	sym = &Symbol{Name: text, FQName: text, Kind: KindUnresolved}
	if _, err := s.InsertSymbol(sym); err != nil {
		return nil, fmt.Errorf("unresolved sentinel: %w", err)
	}
	return sym, nil
}
