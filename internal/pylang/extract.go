package pylang

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/store"
)

// defEntry is one definition discovered during the symbol pass. Entries
// are kept in source order; index 0 is always the module itself.
type defEntry struct {
	name     string
	fqName   string
	kind     string
	doc      string
	node     *sitter.Node // definition node (nil for the module entry)
	body     *sitter.Node // body block walked for calls (nil for bindings)
	parent   int          // index of the enclosing entry
	shadowed bool
	id       int64 // store ID, assigned at insert
}

// Extractor walks one parsed file and writes symbols, import bindings,
// and call sites through a DataStore. It performs no resolution.
type Extractor struct {
	ds   store.DataStore
	file *store.File
	src  []byte

	defs        []defEntry
	exports     []string // names listed in __all__
	exportsLine int
	exportsCol  int
}

// ExtractFile runs the full extraction for one parsed file: definitions
// (with last-definition-binds shadowing), imports, the __all__ export
// list, and call sites.
func ExtractFile(ds store.DataStore, f *store.File, src []byte, tree *sitter.Tree) error {
	e := &Extractor{ds: ds, file: f, src: src}
	root := tree.RootNode()

	moduleName := f.Module
	if i := strings.LastIndex(moduleName, "."); i >= 0 {
		moduleName = moduleName[i+1:]
	}
	e.defs = append(e.defs, defEntry{
		name:   moduleName,
		fqName: f.Module,
		kind:   store.KindModule,
		doc:    docstring(root, src),
		body:   root,
		parent: -1,
	})

	e.collectDefs(root, 0)
	e.markShadowed()

	if err := e.insertSymbols(); err != nil {
		return fmt.Errorf("extract %s: %w", f.Path, err)
	}
	if err := e.collectImports(root); err != nil {
		return fmt.Errorf("extract %s: imports: %w", f.Path, err)
	}
	if err := e.insertExportList(); err != nil {
		return fmt.Errorf("extract %s: export list: %w", f.Path, err)
	}
	if err := e.collectCalls(root, 0); err != nil {
		return fmt.Errorf("extract %s: calls: %w", f.Path, err)
	}
	return nil
}

// collectDefs is the depth-first definition pass. parentIdx tracks the
// enclosing entry, which fixes both the fully-qualified name and the
// method-vs-function kind.
func (e *Extractor) collectDefs(node *sitter.Node, parentIdx int) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			idx := e.addDef(child, parentIdx, defKindForFunction(e.defs[parentIdx].kind))
			if body := child.ChildByFieldName("body"); body != nil {
				e.collectDefs(body, idx)
			}
		case "class_definition":
			idx := e.addDef(child, parentIdx, store.KindClass)
			if body := child.ChildByFieldName("body"); body != nil {
				e.collectDefs(body, idx)
			}
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil {
				switch def.Type() {
				case "function_definition":
					idx := e.addDef(def, parentIdx, defKindForFunction(e.defs[parentIdx].kind))
					if body := def.ChildByFieldName("body"); body != nil {
						e.collectDefs(body, idx)
					}
				case "class_definition":
					idx := e.addDef(def, parentIdx, store.KindClass)
					if body := def.ChildByFieldName("body"); body != nil {
						e.collectDefs(body, idx)
					}
				}
			}
		case "expression_statement":
			if e.defs[parentIdx].kind == store.KindModule {
				e.collectBinding(child, parentIdx)
			}
		default:
			// Conditional definitions (if/try blocks) still register.
			if child.ChildCount() > 0 && child.Type() != "call" {
				e.collectDefs(child, parentIdx)
			}
		}
	}
}

// defKindForFunction maps the enclosing kind to function or method.
func defKindForFunction(parentKind string) string {
	if parentKind == store.KindClass {
		return store.KindMethod
	}
	return store.KindFunction
}

// addDef appends a definition entry and returns its index.
func (e *Extractor) addDef(node *sitter.Node, parentIdx int, kind string) int {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return parentIdx
	}
	name := e.text(nameNode)
	var doc string
	body := node.ChildByFieldName("body")
	if body != nil {
		doc = docstring(body, e.src)
	}
	e.defs = append(e.defs, defEntry{
		name:   name,
		fqName: e.defs[parentIdx].fqName + "." + name,
		kind:   kind,
		doc:    doc,
		node:   node,
		body:   body,
		parent: parentIdx,
	})
	return len(e.defs) - 1
}

// collectBinding registers a module-level assignment target as a binding
// symbol and captures the __all__ export list.
func (e *Extractor) collectBinding(stmt *sitter.Node, parentIdx int) {
	if stmt.ChildCount() == 0 {
		return
	}
	assign := stmt.Child(0)
	if assign == nil || assign.Type() != "assignment" {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := e.text(left)

	if name == "__all__" {
		e.exports = parseStringList(assign.ChildByFieldName("right"), e.src)
		e.exportsLine, e.exportsCol = nodeStart(assign)
		return
	}

	e.defs = append(e.defs, defEntry{
		name:   name,
		fqName: e.defs[parentIdx].fqName + "." + name,
		kind:   store.KindBinding,
		node:   assign,
		parent: parentIdx,
	})
}

// markShadowed applies the last-definition-binds tie-break: when two
// entries share a fully-qualified name, the later one in source order
// wins and the earlier one is dropped with a warning. Entries under a
// shadowed parent are dropped as well.
func (e *Extractor) markShadowed() {
	byFQ := make(map[string]int, len(e.defs))
	for i := range e.defs {
		if prev, ok := byFQ[e.defs[i].fqName]; ok {
			e.defs[prev].shadowed = true
			d := &e.defs[i]
			line, col := nodeStart(d.node)
			e.ds.InsertDiagnostic(&store.Diagnostic{
				Severity: store.SeverityWarning,
				Category: store.CategoryShadowing,
				Path:     e.file.Path,
				Line:     line,
				Col:      col,
				Message:  fmt.Sprintf("redefinition of %q shadows the earlier definition", d.fqName),
			})
		}
		byFQ[e.defs[i].fqName] = i
	}
	for i := range e.defs {
		for p := e.defs[i].parent; p >= 0; p = e.defs[p].parent {
			if e.defs[p].shadowed {
				e.defs[i].shadowed = true
				break
			}
		}
	}
}

// insertSymbols writes all surviving entries. Parents precede children in
// e.defs, so parent IDs are always assigned before they are referenced.
func (e *Extractor) insertSymbols() error {
	for i := range e.defs {
		d := &e.defs[i]
		if d.shadowed {
			continue
		}
		sym := &store.Symbol{
			FileID: &e.file.ID,
			Name:   d.name,
			FQName: d.fqName,
			Kind:   d.kind,
			Doc:    d.doc,
		}
		if d.parent >= 0 {
			sym.ParentSymbolID = &e.defs[d.parent].id
		}
		span := d.node
		if span == nil {
			span = d.body
		}
		if span != nil {
			sym.StartLine = int(span.StartPoint().Row) + 1
			sym.StartCol = int(span.StartPoint().Column)
			sym.EndLine = int(span.EndPoint().Row) + 1
			sym.EndCol = int(span.EndPoint().Column)
		}
		id, err := e.ds.InsertSymbol(sym)
		if err != nil {
			return err
		}
		d.id = id
	}
	return nil
}

// insertExportList records each __all__ name as a declared-export row so
// resolution can verify the list and follow re-exports through it.
func (e *Extractor) insertExportList() error {
	for _, name := range e.exports {
		name := name
		imp := &store.ImportBinding{
			FileID:       e.file.ID,
			Source:       "",
			ImportedName: &name,
			LocalAlias:   &name,
			Line:         e.exportsLine,
			Col:          e.exportsCol,
			State:        store.ImportDeclaredExport,
		}
		if _, err := e.ds.InsertImportBinding(imp); err != nil {
			return err
		}
	}
	return nil
}

// text returns the source text of a node.
func (e *Extractor) text(node *sitter.Node) string {
	return string(e.src[node.StartByte():node.EndByte()])
}

func nodeStart(node *sitter.Node) (line, col int) {
	if node == nil {
		return 0, 0
	}
	return int(node.StartPoint().Row) + 1, int(node.StartPoint().Column)
}

// docstring returns the leading string literal of a block, unquoted.
func docstring(block *sitter.Node, src []byte) string {
	if block == nil {
		return ""
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() != "expression_statement" || child.ChildCount() == 0 {
			return ""
		}
		str := child.Child(0)
		if str.Type() != "string" {
			return ""
		}
		return unquote(string(src[str.StartByte():str.EndByte()]))
	}
	return ""
}

// unquote strips Python string quoting, including triple quotes and
// r/b/f prefixes.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// parseStringList extracts string elements from a list literal node.
func parseStringList(node *sitter.Node, src []byte) []string {
	if node == nil || node.Type() != "list" {
		return nil
	}
	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		el := node.NamedChild(i)
		if el.Type() == "string" {
			names = append(names, unquote(string(src[el.StartByte():el.EndByte()])))
		}
	}
	return names
}
