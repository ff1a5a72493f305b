// Package resolve turns extraction data into a resolved graph: import
// bindings are linked to their target symbols (following re-export
// chains with a cycle guard) and every call site becomes exactly one
// call edge, resolved or sentinel. Resolution reads the frozen symbol
// table and runs strictly after the extraction merge.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"codegraph/internal/pylang"
	"codegraph/internal/store"
)

// Resolver holds the read-only index built from the merged store plus
// the write handle for resolution output.
type Resolver struct {
	st *store.Store

	files        []*store.File // lexicographic path order
	fileByID     map[int64]*store.File
	fileByModule map[string]*store.File

	symByID     map[int64]*store.Symbol
	symsByFile  map[int64][]*store.Symbol
	childByName map[int64]map[string]*store.Symbol // parent symbol ID -> name -> child
	moduleSym   map[int64]*store.Symbol            // file ID -> module symbol

	bindingsByFile map[int64][]*store.ImportBinding

	// Memoized binding resolution: binding ID -> outcome.
	bindingResults map[int64]bindingResult

	diagSeq int64
}

type bindingResult struct {
	target      *store.Symbol
	state       string
	viaReexport bool
}

// Run resolves all imports and calls against the merged symbol table.
func Run(st *store.Store) error {
	r, err := newResolver(st)
	if err != nil {
		return fmt.Errorf("resolve: load index: %w", err)
	}
	if err := r.resolveImports(); err != nil {
		return fmt.Errorf("resolve: imports: %w", err)
	}
	if err := r.resolveCalls(); err != nil {
		return fmt.Errorf("resolve: calls: %w", err)
	}
	return nil
}

func newResolver(st *store.Store) (*Resolver, error) {
	r := &Resolver{
		st:             st,
		fileByID:       make(map[int64]*store.File),
		fileByModule:   make(map[string]*store.File),
		symByID:        make(map[int64]*store.Symbol),
		symsByFile:     make(map[int64][]*store.Symbol),
		childByName:    make(map[int64]map[string]*store.Symbol),
		moduleSym:      make(map[int64]*store.Symbol),
		bindingsByFile: make(map[int64][]*store.ImportBinding),
		bindingResults: make(map[int64]bindingResult),
	}

	files, err := st.AllFilesOrdered()
	if err != nil {
		return nil, err
	}
	r.files = files
	for _, f := range files {
		r.fileByID[f.ID] = f
		r.fileByModule[f.Module] = f
	}

	syms, err := st.AllSymbolsOrdered()
	if err != nil {
		return nil, err
	}
	for _, sym := range syms {
		r.symByID[sym.ID] = sym
		if sym.FileID != nil {
			r.symsByFile[*sym.FileID] = append(r.symsByFile[*sym.FileID], sym)
			if sym.Kind == store.KindModule {
				r.moduleSym[*sym.FileID] = sym
			}
		}
		if sym.ParentSymbolID != nil {
			children := r.childByName[*sym.ParentSymbolID]
			if children == nil {
				children = make(map[string]*store.Symbol)
				r.childByName[*sym.ParentSymbolID] = children
			}
			children[sym.Name] = sym
		}
	}

	bindings, err := st.AllImportBindingsOrdered()
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		r.bindingsByFile[b.FileID] = append(r.bindingsByFile[b.FileID], b)
	}
	// Bindings within a file arrive in insertion order already; files are
	// processed in path order for deterministic diagnostics.
	for _, bs := range r.bindingsByFile {
		sort.Slice(bs, func(i, j int) bool { return bs[i].ID < bs[j].ID })
	}

	seq, err := st.NextDiagnosticSeq()
	if err != nil {
		return nil, err
	}
	r.diagSeq = seq
	return r, nil
}

// diag appends one entry to the ordered diagnostics channel.
func (r *Resolver) diag(severity, category, path string, line, col int, format string, args ...any) error {
	d := &store.Diagnostic{
		Seq:      r.diagSeq,
		Severity: severity,
		Category: category,
		Path:     path,
		Line:     line,
		Col:      col,
		Message:  fmt.Sprintf(format, args...),
	}
	r.diagSeq++
	_, err := r.st.InsertDiagnostic(d)
	return err
}

// lookupInModule finds a name in a module's top-level scope: its own
// definitions first, then submodules.
func (r *Resolver) lookupInModule(f *store.File, name string) *store.Symbol {
	if mod := r.moduleSym[f.ID]; mod != nil {
		if sym := r.childByName[mod.ID][name]; sym != nil {
			return sym
		}
	}
	if sub := r.fileByModule[f.Module+"."+name]; sub != nil {
		return r.moduleSym[sub.ID]
	}
	return nil
}

// normalizeModulePath turns an import source into a project-absolute
// dotted module path. Relative sources (".foo", "..pkg.mod") resolve
// against the importing file's package. Returns "" when the relative
// path escapes the project root.
func normalizeModulePath(source string, importingFile *store.File) string {
	if !strings.HasPrefix(source, ".") {
		return source
	}

	dots := 0
	for dots < len(source) && source[dots] == '.' {
		dots++
	}
	rest := source[dots:]

	pkg := pylang.PackageOf(importingFile.Module, pylang.IsPackageModule(importingFile.Path))
	// One dot means the current package; each extra dot climbs one level.
	for i := 1; i < dots; i++ {
		if pkg == "" {
			return ""
		}
		if j := strings.LastIndex(pkg, "."); j >= 0 {
			pkg = pkg[:j]
		} else {
			pkg = ""
		}
	}

	switch {
	case pkg == "" && rest == "":
		return ""
	case pkg == "":
		return rest
	case rest == "":
		return pkg
	default:
		return pkg + "." + rest
	}
}
