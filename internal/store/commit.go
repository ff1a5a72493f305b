package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, AUTOINCREMENT) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// CommitBatch is the single-writer merge step: it runs serially over
// batches in deterministic file order, so this is also where
// fully-qualified-name collisions across files are detected. A colliding
// symbol committed later wins; the earlier definition and its call sites
// are removed and a shadowing warning is recorded.
//
// Insert order respects FK dependencies:
//  1. Symbols (parent_symbol_id may be fake, intra-file)
//  2. ImportBindings (depend on file_id only, already real)
//  3. CallSites (caller_symbol_id is fake)
//  4. Diagnostics (assigned the next seq numbers, in buffer order)
func (s *Store) CommitBatch(batch *BatchedStore, path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeqTx(tx)
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	fakeToReal := make(map[int64]int64)

	// 1. Symbols
	for _, sym := range batch.Symbols {
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID := fakeToReal[*sym.ParentSymbolID]
			sym.ParentSymbolID = &realID
		}

		// Cross-file collision: the symbol committed later wins.
		if sym.Kind != KindUnresolved {
			if err := shadowExistingTx(tx, &sym, path, &seq); err != nil {
				return fmt.Errorf("commit batch: shadow %q: %w", sym.FQName, err)
			}
		}

		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	// 2. ImportBindings
	for _, imp := range batch.ImportBindings {
		if _, err := insertImportBindingTx(tx, &imp); err != nil {
			return fmt.Errorf("commit batch: import %q: %w", imp.Source, err)
		}
	}

	// 3. CallSites
	for _, cs := range batch.CallSites {
		if cs.CallerSymbolID < 0 {
			realID, ok := fakeToReal[cs.CallerSymbolID]
			if !ok {
				return fmt.Errorf("commit batch: call site %q has caller_symbol_id=%d not in fakeToReal map (have %d symbols)",
					cs.CalleeText, cs.CallerSymbolID, len(batch.Symbols))
			}
			cs.CallerSymbolID = realID
		}
		if _, err := insertCallSiteTx(tx, &cs); err != nil {
			return fmt.Errorf("commit batch: call site %q: %w", cs.CalleeText, err)
		}
	}

	// 4. Diagnostics — seq assigned here so the channel ordering follows
	// the deterministic commit order, not worker completion order.
	for _, d := range batch.Diagnostics {
		d.Seq = seq
		seq++
		if err := insertDiagnosticTx(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic: %w", err)
		}
	}

	return tx.Commit()
}

// shadowExistingTx removes a previously committed symbol with the same
// fully-qualified name, along with its call sites, and records a
// shadowing warning. Resolution has not run yet, so no edges reference
// the removed symbol.
func shadowExistingTx(tx *sql.Tx, sym *Symbol, path string, seq *int64) error {
	var existingID int64
	err := tx.QueryRow(
		"SELECT id FROM symbols WHERE fq_name = ? AND kind != ?",
		sym.FQName, KindUnresolved,
	).Scan(&existingID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM call_sites WHERE caller_symbol_id = ?", existingID); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE symbols SET parent_symbol_id = NULL WHERE parent_symbol_id = ?", existingID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM symbols WHERE id = ?", existingID); err != nil {
		return err
	}

	d := &Diagnostic{
		Seq:      *seq,
		Severity: SeverityWarning,
		Category: CategoryShadowing,
		Path:     path,
		Line:     sym.StartLine,
		Col:      sym.StartCol,
		Message:  fmt.Sprintf("redeclaration of %q shadows an earlier definition", sym.FQName),
	}
	*seq++
	return insertDiagnosticTx(tx, d)
}

func nextSeqTx(tx *sql.Tx) (int64, error) {
	var max sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(seq) FROM diagnostics").Scan(&max); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, name, fq_name, kind, doc,
			start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.FQName, sym.Kind, sym.Doc,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertImportBindingTx(tx *sql.Tx, imp *ImportBinding) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO import_bindings (file_id, source, imported_name, local_alias, line, col, target_symbol_id, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.FileID, imp.Source, imp.ImportedName, imp.LocalAlias, imp.Line, imp.Col, imp.TargetSymbolID, imp.State,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertCallSiteTx(tx *sql.Tx, cs *CallSite) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO call_sites (file_id, caller_symbol_id, callee_text, receiver,
			start_line, start_col, end_line, end_col, callee_symbol_id, resolution)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.FileID, cs.CallerSymbolID, cs.CalleeText, cs.Receiver,
		cs.StartLine, cs.StartCol, cs.EndLine, cs.EndCol, cs.CalleeSymbolID, cs.Resolution,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDiagnosticTx(tx *sql.Tx, d *Diagnostic) error {
	_, err := tx.Exec(
		`INSERT INTO diagnostics (seq, severity, category, path, line, col, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Seq, d.Severity, d.Category, d.Path, d.Line, d.Col, d.Message,
	)
	return err
}
