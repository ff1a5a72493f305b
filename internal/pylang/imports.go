package pylang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/store"
)

// collectImports walks the entire tree, not just top-level statements:
// inline imports inside function bodies are a common way to break import
// cycles in Python and must still produce bindings.
func (e *Extractor) collectImports(node *sitter.Node) error {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			if err := e.processImport(child); err != nil {
				return err
			}
		case "import_from_statement":
			if err := e.processImportFrom(child); err != nil {
				return err
			}
		default:
			if err := e.collectImports(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// processImport handles "import a.b" and "import a.b as c". A plain
// import binds the leading segment; an aliased import binds the alias to
// the full module path.
func (e *Extractor) processImport(node *sitter.Node) error {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			source := e.text(child)
			alias := strings.SplitN(source, ".", 2)[0]
			if err := e.addImportBinding(child, source, nil, &alias); err != nil {
				return err
			}
		case "aliased_import":
			var source, alias string
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				source = e.text(nameNode)
			}
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				alias = e.text(aliasNode)
			}
			if source != "" && alias != "" {
				if err := e.addImportBinding(child, source, nil, &alias); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// processImportFrom handles "from X import a, b as c" including relative
// sources ("from .foo import foo") and wildcards. One binding per
// imported name.
func (e *Extractor) processImportFrom(node *sitter.Node) error {
	var source string
	if mod := node.ChildByFieldName("module_name"); mod != nil {
		source = e.text(mod)
	}
	if source == "" {
		return nil
	}

	sawImport := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "dotted_name", "identifier":
			if !sawImport {
				continue // part of the module path
			}
			name := e.text(child)
			if err := e.addImportBinding(child, source, &name, &name); err != nil {
				return err
			}
		case "aliased_import":
			if !sawImport {
				continue
			}
			var name, alias string
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				name = e.text(nameNode)
			}
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				alias = e.text(aliasNode)
			}
			if name != "" && alias != "" {
				if err := e.addImportBinding(child, source, &name, &alias); err != nil {
					return err
				}
			}
		case "wildcard_import":
			star := "*"
			if err := e.addImportBinding(child, source, &star, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Extractor) addImportBinding(node *sitter.Node, source string, importedName, localAlias *string) error {
	line, col := nodeStart(node)
	imp := &store.ImportBinding{
		FileID:       e.file.ID,
		Source:       source,
		ImportedName: importedName,
		LocalAlias:   localAlias,
		Line:         line,
		Col:          col,
		State:        store.ImportUnresolved,
	}
	_, err := e.ds.InsertImportBinding(imp)
	return err
}
