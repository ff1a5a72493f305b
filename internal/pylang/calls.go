package pylang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/store"
)

// collectCalls walks the tree attributing every call expression to the
// nearest enclosing surviving definition (the module for top-level
// calls). Nested calls each produce their own site; nothing is
// deduplicated here — each call expression is a distinct provenance
// record.
func (e *Extractor) collectCalls(node *sitter.Node, callerIdx int) error {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}

		// Entering a definition switches the caller context. Shadowed
		// definitions are skipped entirely: the name no longer binds to
		// them, so their bodies contribute no edges.
		if idx, ok := e.defIndexFor(child); ok {
			if e.defs[idx].shadowed {
				continue
			}
			if body := child.ChildByFieldName("body"); body != nil {
				if err := e.collectCalls(body, idx); err != nil {
					return err
				}
			}
			continue
		}

		if child.Type() == "call" {
			if err := e.addCallSite(child, callerIdx); err != nil {
				return err
			}
			// Walk into the call for nested call expressions.
		}
		if err := e.collectCalls(child, callerIdx); err != nil {
			return err
		}
	}
	return nil
}

// defIndexFor matches a node against the definition entries collected in
// the symbol pass.
func (e *Extractor) defIndexFor(node *sitter.Node) (int, bool) {
	t := node.Type()
	if t != "function_definition" && t != "class_definition" {
		return 0, false
	}
	for i := range e.defs {
		d := &e.defs[i]
		if d.node != nil && d.node.StartByte() == node.StartByte() && d.node.Type() == t {
			return i, true
		}
	}
	return 0, false
}

// addCallSite records one call expression. The callee text is preserved
// exactly as written; the receiver is the object expression for
// attribute calls ("self" for self.method()).
func (e *Extractor) addCallSite(node *sitter.Node, callerIdx int) error {
	funcNode := node.ChildByFieldName("function")
	if funcNode == nil && node.ChildCount() > 0 {
		funcNode = node.Child(0)
	}
	if funcNode == nil {
		return nil
	}

	var receiver string
	if funcNode.Type() == "attribute" {
		if obj := funcNode.ChildByFieldName("object"); obj != nil {
			receiver = e.text(obj)
		}
	}

	cs := &store.CallSite{
		FileID:         e.file.ID,
		CallerSymbolID: e.defs[callerIdx].id,
		CalleeText:     e.text(funcNode),
		Receiver:       receiver,
		StartLine:      int(node.StartPoint().Row) + 1,
		StartCol:       int(node.StartPoint().Column),
		EndLine:        int(node.EndPoint().Row) + 1,
		EndCol:         int(node.EndPoint().Column),
		Resolution:     store.ResUnresolved,
	}
	_, err := e.ds.InsertCallSite(cs)
	return err
}
