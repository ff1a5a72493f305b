package resolve

import (
	"strings"

	"codegraph/internal/store"
)

// resolveCalls turns every call site into exactly one call edge. The
// ladder for a bare name is lexical scope, then this file's import
// bindings; "self.x" looks in the enclosing class; "mod.x" through a
// module alias looks in the aliased module. Anything else lands on an
// unresolved sentinel so the graph still shows the reference.
func (r *Resolver) resolveCalls() error {
	for _, f := range r.files {
		sites, err := r.st.CallSitesByFile(f.ID)
		if err != nil {
			return err
		}
		for _, cs := range sites {
			if err := r.resolveCallSite(f, cs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) resolveCallSite(f *store.File, cs *store.CallSite) error {
	caller := r.symByID[cs.CallerSymbolID]
	if caller == nil {
		return r.sentinelEdge(f, cs, store.ResUnresolved,
			"call to %q has no known enclosing definition", cs.CalleeText)
	}

	if cs.Receiver == "" {
		return r.resolveBareCall(f, cs, caller)
	}
	return r.resolveReceiverCall(f, cs, caller)
}

// resolveBareCall handles calls to a plain identifier.
func (r *Resolver) resolveBareCall(f *store.File, cs *store.CallSite, caller *store.Symbol) error {
	name := cs.CalleeText

	// Lexical scope: the caller's enclosing definitions, innermost first.
	// Python does not make methods visible as bare names, so class scopes
	// are skipped on the way up.
	for scope := caller; scope != nil; scope = r.parentOf(scope) {
		if scope.Kind == store.KindClass {
			continue
		}
		if sym := r.childByName[scope.ID][name]; sym != nil {
			return r.edge(f, cs, sym, store.ResLocal)
		}
	}

	// Import bindings of this file, in declaration order.
	for _, b := range r.bindingsByFile[f.ID] {
		if b.State == store.ImportDeclaredExport {
			continue
		}
		if localName(b) != name || isWildcardBinding(b) {
			continue
		}
		res, ok := r.bindingResults[b.ID]
		if !ok || res.state != store.ImportResolved || res.target == nil {
			continue
		}
		kind := store.ResImport
		if res.viaReexport {
			kind = store.ResReexport
		}
		return r.edge(f, cs, res.target, kind)
	}

	// Wildcard imports: the name may come from any starred module.
	for _, b := range r.bindingsByFile[f.ID] {
		if !isWildcardBinding(b) {
			continue
		}
		module := normalizeModulePath(b.Source, f)
		target := r.fileByModule[module]
		if target == nil {
			continue
		}
		res := r.resolveNameIn(target, name, map[bindingKey]bool{})
		if res.state == store.ImportResolved && res.target != nil {
			kind := store.ResImport
			if res.viaReexport {
				kind = store.ResReexport
			}
			return r.edge(f, cs, res.target, kind)
		}
	}

	return r.sentinelEdge(f, cs, store.ResUnresolved,
		"call to %q does not resolve to any known definition", name)
}

// resolveReceiverCall handles attribute calls "recv.name(...)".
func (r *Resolver) resolveReceiverCall(f *store.File, cs *store.CallSite, caller *store.Symbol) error {
	name := cs.CalleeText
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	// self.m() inside a method targets the enclosing class.
	if cs.Receiver == "self" {
		if class := r.enclosingClass(caller); class != nil {
			if sym := r.childByName[class.ID][name]; sym != nil {
				return r.edge(f, cs, sym, store.ResClass)
			}
			return r.sentinelEdge(f, cs, store.ResUnresolved,
				"method %q is not defined on %s", name, class.FQName)
		}
		return r.sentinelEdge(f, cs, store.ResUnresolved,
			"call through self outside a method body: %q", cs.CalleeText)
	}

	// ClassName.m() against a class visible in lexical scope.
	for scope := caller; scope != nil; scope = r.parentOf(scope) {
		sym := r.childByName[scope.ID][cs.Receiver]
		if sym == nil {
			continue
		}
		if sym.Kind == store.KindClass {
			if m := r.childByName[sym.ID][name]; m != nil {
				return r.edge(f, cs, m, store.ResClass)
			}
		}
		// The receiver is a known non-class local; its runtime type is
		// out of reach for static resolution.
		return r.ambiguousEdge(f, cs)
	}

	// mod.f() through an imported module alias.
	for _, b := range r.bindingsByFile[f.ID] {
		if b.State == store.ImportDeclaredExport || isWildcardBinding(b) {
			continue
		}
		if localName(b) != cs.Receiver {
			continue
		}
		res, ok := r.bindingResults[b.ID]
		if !ok {
			continue
		}
		if res.state == store.ImportExternal {
			return r.sentinelEdge(f, cs, store.ResUnresolved,
				"call into external module %q: %q", b.Source, cs.CalleeText)
		}
		if res.state != store.ImportResolved || res.target == nil {
			break
		}
		target := res.target
		if target.Kind == store.KindModule && target.FileID != nil {
			mf := r.fileByID[*target.FileID]
			inner := r.resolveNameIn(mf, name, map[bindingKey]bool{})
			if inner.state == store.ImportResolved && inner.target != nil {
				kind := store.ResImport
				if inner.viaReexport {
					kind = store.ResReexport
				}
				return r.edge(f, cs, inner.target, kind)
			}
			return r.sentinelEdge(f, cs, store.ResUnresolved,
				"%q is not defined in module %s", name, mf.Module)
		}
		if target.Kind == store.KindClass {
			if m := r.childByName[target.ID][name]; m != nil {
				return r.edge(f, cs, m, store.ResClass)
			}
			return r.sentinelEdge(f, cs, store.ResUnresolved,
				"method %q is not defined on %s", name, target.FQName)
		}
		// Imported but not a module or class: instance or callable.
		return r.ambiguousEdge(f, cs)
	}

	return r.ambiguousEdge(f, cs)
}

func (r *Resolver) parentOf(sym *store.Symbol) *store.Symbol {
	if sym.ParentSymbolID == nil {
		return nil
	}
	return r.symByID[*sym.ParentSymbolID]
}

// enclosingClass walks up from a symbol to the nearest class definition.
func (r *Resolver) enclosingClass(sym *store.Symbol) *store.Symbol {
	for s := r.parentOf(sym); s != nil; s = r.parentOf(s) {
		if s.Kind == store.KindClass {
			return s
		}
	}
	return nil
}

func isWildcardBinding(b *store.ImportBinding) bool {
	return b.ImportedName != nil && *b.ImportedName == "*"
}

// edge records a resolved call: the edge itself plus the back-reference
// on the call site.
func (r *Resolver) edge(f *store.File, cs *store.CallSite, target *store.Symbol, resolution string) error {
	fileID := f.ID
	_, err := r.st.InsertCallEdge(&store.CallEdge{
		CallerSymbolID: cs.CallerSymbolID,
		CalleeSymbolID: target.ID,
		CallSiteID:     cs.ID,
		FileID:         &fileID,
		Line:           cs.StartLine,
		Col:            cs.StartCol,
	})
	if err != nil {
		return err
	}
	id := target.ID
	return r.st.UpdateCallSite(cs.ID, &id, resolution)
}

// sentinelEdge records an unresolved call: an edge to a per-text
// sentinel symbol and a resolution diagnostic. The call site keeps a
// NULL callee so resolved and unresolved references stay queryable
// apart.
func (r *Resolver) sentinelEdge(f *store.File, cs *store.CallSite, resolution string, format string, args ...any) error {
	sentinel, err := r.st.UnresolvedSentinel(cs.CalleeText)
	if err != nil {
		return err
	}
	fileID := f.ID
	_, err = r.st.InsertCallEdge(&store.CallEdge{
		CallerSymbolID: cs.CallerSymbolID,
		CalleeSymbolID: sentinel.ID,
		CallSiteID:     cs.ID,
		FileID:         &fileID,
		Line:           cs.StartLine,
		Col:            cs.StartCol,
	})
	if err != nil {
		return err
	}
	if err := r.st.UpdateCallSite(cs.ID, nil, resolution); err != nil {
		return err
	}
	severity := store.SeverityError
	if resolution == store.ResAmbiguous {
		severity = store.SeverityWarning
	}
	return r.diag(severity, store.CategoryResolution, f.Path, cs.StartLine, cs.StartCol, format, args...)
}

func (r *Resolver) ambiguousEdge(f *store.File, cs *store.CallSite) error {
	return r.sentinelEdge(f, cs, store.ResAmbiguous,
		"cannot resolve receiver %q statically for call %q", cs.Receiver, cs.CalleeText)
}
