package resolve

import (
	"strings"

	"codegraph/internal/pylang"
	"codegraph/internal/store"
)

// resolveImports links every import binding to its target symbol,
// following re-export chains through package __init__ modules, then
// validates export lists and materializes re-export rows.
func (r *Resolver) resolveImports() error {
	for _, f := range r.files {
		for _, b := range r.bindingsByFile[f.ID] {
			if b.State == store.ImportDeclaredExport {
				continue // export lists are handled after all bindings settle
			}
			res := r.resolveBinding(b, map[bindingKey]bool{})
			var targetID *int64
			if res.target != nil {
				id := res.target.ID
				targetID = &id
			}
			if err := r.st.UpdateImportBinding(b.ID, targetID, res.state); err != nil {
				return err
			}
			if err := r.diagnoseBinding(f, b, res); err != nil {
				return err
			}
		}
	}

	for _, f := range r.files {
		if err := r.materializeExports(f); err != nil {
			return err
		}
	}
	return nil
}

type bindingKey struct {
	fileID int64
	name   string
}

// resolveBinding computes the target symbol for one binding. The
// visited set guards against re-export cycles across __init__ modules.
func (r *Resolver) resolveBinding(b *store.ImportBinding, visited map[bindingKey]bool) bindingResult {
	if res, ok := r.bindingResults[b.ID]; ok {
		return res
	}

	f := r.fileByID[b.FileID]
	res := r.resolveBindingUncached(f, b, visited)
	// Cycle outcomes depend on the entry point of the walk; only cache
	// terminal results so a later walk from a different root still sees
	// the cycle itself.
	if res.state != store.ImportCyclic {
		r.bindingResults[b.ID] = res
	}
	return res
}

func (r *Resolver) resolveBindingUncached(f *store.File, b *store.ImportBinding, visited map[bindingKey]bool) bindingResult {
	module := normalizeModulePath(b.Source, f)
	if module == "" {
		return bindingResult{state: store.ImportUnresolved}
	}

	target := r.fileByModule[module]
	if target == nil {
		if strings.HasPrefix(b.Source, ".") {
			// A relative import must land inside the project.
			return bindingResult{state: store.ImportUnresolved}
		}
		return bindingResult{state: store.ImportExternal}
	}

	// Whole-module import (import x, import x.y as z, wildcard).
	if b.ImportedName == nil || *b.ImportedName == "*" {
		mod := r.moduleSym[target.ID]
		if mod == nil {
			return bindingResult{state: store.ImportUnresolved}
		}
		return bindingResult{target: mod, state: store.ImportResolved}
	}

	return r.resolveNameIn(target, *b.ImportedName, visited)
}

// resolveNameIn finds an exported name in a module, chasing from-import
// bindings transitively. Each chase step through another module's
// binding marks the result as a re-export.
func (r *Resolver) resolveNameIn(f *store.File, name string, visited map[bindingKey]bool) bindingResult {
	key := bindingKey{fileID: f.ID, name: name}
	if visited[key] {
		return bindingResult{state: store.ImportCyclic}
	}
	visited[key] = true

	if sym := r.lookupInModule(f, name); sym != nil {
		return bindingResult{target: sym, state: store.ImportResolved}
	}

	// Not defined here: the name may be imported into this module and
	// re-exported from it.
	for _, b := range r.bindingsByFile[f.ID] {
		if b.State == store.ImportDeclaredExport {
			continue
		}
		if localName(b) != name {
			continue
		}
		res := r.resolveBinding(b, visited)
		if res.state == store.ImportResolved {
			res.viaReexport = true
		}
		return res
	}

	return bindingResult{state: store.ImportUnresolved}
}

// localName is the name a binding introduces into its file's scope.
func localName(b *store.ImportBinding) string {
	if b.LocalAlias != nil {
		return *b.LocalAlias
	}
	if b.ImportedName != nil {
		return *b.ImportedName
	}
	// import a.b.c binds the first segment.
	if i := strings.Index(b.Source, "."); i >= 0 {
		return b.Source[:i]
	}
	return b.Source
}

func (r *Resolver) diagnoseBinding(f *store.File, b *store.ImportBinding, res bindingResult) error {
	switch res.state {
	case store.ImportCyclic:
		return r.diag(store.SeverityError, store.CategoryCyclicReexport, f.Path, b.Line, b.Col,
			"cyclic re-export while resolving %q from %q", importedLabel(b), b.Source)
	case store.ImportUnresolved:
		return r.diag(store.SeverityError, store.CategoryResolution, f.Path, b.Line, b.Col,
			"cannot resolve import of %q from %q", importedLabel(b), b.Source)
	}
	// Resolved and external bindings are not failures.
	return nil
}

func importedLabel(b *store.ImportBinding) string {
	if b.ImportedName != nil {
		return *b.ImportedName
	}
	return b.Source
}

// materializeExports records one Reexport row per name a module makes
// visible beyond its own definitions: every resolved from-import in a
// package __init__, plus every name its export list declares.
func (r *Resolver) materializeExports(f *store.File) error {
	seen := map[string]bool{}
	isPkg := pylang.IsPackageModule(f.Path)

	if isPkg {
		for _, b := range r.bindingsByFile[f.ID] {
			if b.State == store.ImportDeclaredExport || b.ImportedName == nil || *b.ImportedName == "*" {
				continue
			}
			res, ok := r.bindingResults[b.ID]
			if !ok || res.state != store.ImportResolved || res.target == nil {
				continue
			}
			name := localName(b)
			if seen[name] {
				continue
			}
			seen[name] = true
			_, err := r.st.InsertReexport(&store.Reexport{
				FileID:           f.ID,
				ExportedName:     name,
				OriginalSymbolID: res.target.ID,
			})
			if err != nil {
				return err
			}
		}
	}

	for _, b := range r.bindingsByFile[f.ID] {
		if b.State != store.ImportDeclaredExport {
			continue
		}
		name := *b.ImportedName
		res := r.resolveNameIn(f, name, map[bindingKey]bool{})
		if res.state != store.ImportResolved || res.target == nil {
			if err := r.diag(store.SeverityError, store.CategoryResolution, f.Path, b.Line, b.Col,
				"export list names %q, which is not defined or importable here", name); err != nil {
				return err
			}
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		_, err := r.st.InsertReexport(&store.Reexport{
			FileID:           f.ID,
			ExportedName:     name,
			OriginalSymbolID: res.target.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
