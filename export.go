package codegraph

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Snapshot is the exported form of a built graph: one JSON document
// with every collection in a canonical order, so two builds over
// identical inputs export byte-identical documents. Rows reference
// symbols by fully-qualified name rather than database ID.
type Snapshot struct {
	Files       []SnapshotFile       `json:"files"`
	Symbols     []SnapshotSymbol     `json:"symbols"`
	Imports     []SnapshotImport     `json:"imports"`
	Edges       []SnapshotEdge       `json:"edges"`
	Reexports   []SnapshotReexport   `json:"reexports"`
	Diagnostics []SnapshotDiagnostic `json:"diagnostics"`
}

type SnapshotFile struct {
	Path     string `json:"path"`
	Module   string `json:"module"`
	Language string `json:"language"`
	Hash     string `json:"hash"`
	Status   string `json:"status"`
}

type SnapshotSymbol struct {
	FQName    string `json:"fq_name"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file,omitempty"`
	Doc       string `json:"doc,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	StartCol  int    `json:"start_col,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	EndCol    int    `json:"end_col,omitempty"`
	Parent    string `json:"parent,omitempty"`
}

type SnapshotImport struct {
	File         string `json:"file"`
	Source       string `json:"source"`
	ImportedName string `json:"imported_name,omitempty"`
	LocalAlias   string `json:"local_alias,omitempty"`
	Line         int    `json:"line,omitempty"`
	Col          int    `json:"col,omitempty"`
	Target       string `json:"target,omitempty"`
	State        string `json:"state"`
}

type SnapshotEdge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Col    int    `json:"col,omitempty"`
}

type SnapshotReexport struct {
	File     string `json:"file"`
	Name     string `json:"name"`
	Original string `json:"original"`
}

type SnapshotDiagnostic struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Path     string `json:"path"`
	Line     int    `json:"line,omitempty"`
	Col      int    `json:"col,omitempty"`
	Message  string `json:"message"`
}

// Export writes the whole graph as an indented JSON document.
func (e *Engine) Export(w io.Writer) error {
	snap, err := e.Snapshot()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("codegraph: export: %w", err)
	}
	return nil
}

// Snapshot assembles the canonical export document from the store.
func (e *Engine) Snapshot() (*Snapshot, error) {
	s := e.store

	files, err := s.AllFilesOrdered()
	if err != nil {
		return nil, fmt.Errorf("codegraph: snapshot: %w", err)
	}
	filePath := make(map[int64]string, len(files))
	snap := &Snapshot{
		Files:       []SnapshotFile{},
		Symbols:     []SnapshotSymbol{},
		Imports:     []SnapshotImport{},
		Edges:       []SnapshotEdge{},
		Reexports:   []SnapshotReexport{},
		Diagnostics: []SnapshotDiagnostic{},
	}
	for _, f := range files {
		filePath[f.ID] = f.Path
		snap.Files = append(snap.Files, SnapshotFile{
			Path:     f.Path,
			Module:   f.Module,
			Language: f.Language,
			Hash:     f.Hash,
			Status:   f.Status,
		})
	}
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })

	syms, err := s.AllSymbolsOrdered()
	if err != nil {
		return nil, fmt.Errorf("codegraph: snapshot: %w", err)
	}
	symFQ := make(map[int64]string, len(syms))
	for _, sym := range syms {
		symFQ[sym.ID] = sym.FQName
	}
	for _, sym := range syms {
		out := SnapshotSymbol{
			FQName:    sym.FQName,
			Name:      sym.Name,
			Kind:      sym.Kind,
			Doc:       sym.Doc,
			StartLine: sym.StartLine,
			StartCol:  sym.StartCol,
			EndLine:   sym.EndLine,
			EndCol:    sym.EndCol,
		}
		if sym.FileID != nil {
			out.File = filePath[*sym.FileID]
		}
		if sym.ParentSymbolID != nil {
			out.Parent = symFQ[*sym.ParentSymbolID]
		}
		snap.Symbols = append(snap.Symbols, out)
	}
	sort.Slice(snap.Symbols, func(i, j int) bool {
		a, b := snap.Symbols[i], snap.Symbols[j]
		if a.FQName != b.FQName {
			return a.FQName < b.FQName
		}
		return a.Kind < b.Kind
	})

	bindings, err := s.AllImportBindingsOrdered()
	if err != nil {
		return nil, fmt.Errorf("codegraph: snapshot: %w", err)
	}
	for _, b := range bindings {
		out := SnapshotImport{
			File:   filePath[b.FileID],
			Source: b.Source,
			Line:   b.Line,
			Col:    b.Col,
			State:  b.State,
		}
		if b.ImportedName != nil {
			out.ImportedName = *b.ImportedName
		}
		if b.LocalAlias != nil {
			out.LocalAlias = *b.LocalAlias
		}
		if b.TargetSymbolID != nil {
			out.Target = symFQ[*b.TargetSymbolID]
		}
		snap.Imports = append(snap.Imports, out)
	}
	sort.Slice(snap.Imports, func(i, j int) bool {
		a, b := snap.Imports[i], snap.Imports[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ImportedName < b.ImportedName
	})

	edges, err := s.AllCallEdges()
	if err != nil {
		return nil, fmt.Errorf("codegraph: snapshot: %w", err)
	}
	for _, edge := range edges {
		out := SnapshotEdge{
			Caller: symFQ[edge.CallerSymbolID],
			Callee: symFQ[edge.CalleeSymbolID],
			Line:   edge.Line,
			Col:    edge.Col,
		}
		if edge.FileID != nil {
			out.File = filePath[*edge.FileID]
		}
		snap.Edges = append(snap.Edges, out)
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		a, b := snap.Edges[i], snap.Edges[j]
		if a.Caller != b.Caller {
			return a.Caller < b.Caller
		}
		if a.Callee != b.Callee {
			return a.Callee < b.Callee
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})

	for _, f := range files {
		res, err := s.ReexportsByFile(f.ID)
		if err != nil {
			return nil, fmt.Errorf("codegraph: snapshot: %w", err)
		}
		for _, re := range res {
			snap.Reexports = append(snap.Reexports, SnapshotReexport{
				File:     f.Path,
				Name:     re.ExportedName,
				Original: symFQ[re.OriginalSymbolID],
			})
		}
	}
	sort.Slice(snap.Reexports, func(i, j int) bool {
		a, b := snap.Reexports[i], snap.Reexports[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Name < b.Name
	})

	diags, err := s.DiagnosticsOrdered()
	if err != nil {
		return nil, fmt.Errorf("codegraph: snapshot: %w", err)
	}
	for _, d := range diags {
		snap.Diagnostics = append(snap.Diagnostics, SnapshotDiagnostic{
			Severity: d.Severity,
			Category: d.Category,
			Path:     d.Path,
			Line:     d.Line,
			Col:      d.Col,
			Message:  d.Message,
		})
	}

	return snap, nil
}

// LoadSnapshot reads a document previously written by Export.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	snap := &Snapshot{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(snap); err != nil {
		return nil, fmt.Errorf("codegraph: load snapshot: %w", err)
	}
	return snap, nil
}
