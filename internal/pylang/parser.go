package pylang

import (
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// SyntaxDiagnostic is one parse problem at a source position. The parser
// never fails on malformed input; it reports problems and returns the
// best-effort partial tree.
type SyntaxDiagnostic struct {
	Line    int // 1-indexed
	Col     int // 0-indexed
	Message string
}

// Parse parses Python source into a tree plus syntax diagnostics.
// tree-sitter is error-tolerant by construction: malformed regions become
// ERROR/missing nodes and the rest of the file still parses. The returned
// tree is non-nil unless the error is non-nil; callers own Close.
func Parse(ctx context.Context, content []byte) (*sitter.Tree, []SyntaxDiagnostic, error) {
	if !utf8.Valid(content) {
		return nil, nil, fmt.Errorf("content is not valid UTF-8")
	}

	// New parser instance per call for thread safety.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Grammar())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, nil, fmt.Errorf("tree-sitter parse: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, nil, fmt.Errorf("tree-sitter returned nil root node")
	}

	var diags []SyntaxDiagnostic
	if root.HasError() {
		diags = collectSyntaxErrors(root, nil)
	}
	return tree, diags, nil
}

// collectSyntaxErrors walks the subtree and records one diagnostic per
// ERROR or missing node. HasError prunes clean subtrees.
func collectSyntaxErrors(node *sitter.Node, diags []SyntaxDiagnostic) []SyntaxDiagnostic {
	if node == nil || !node.HasError() {
		return diags
	}
	if node.Type() == "ERROR" {
		diags = append(diags, SyntaxDiagnostic{
			Line:    int(node.StartPoint().Row) + 1,
			Col:     int(node.StartPoint().Column),
			Message: "syntax error",
		})
		// Nested errors inside an ERROR region add noise, not signal.
		return diags
	}
	if node.IsMissing() {
		diags = append(diags, SyntaxDiagnostic{
			Line:    int(node.StartPoint().Row) + 1,
			Col:     int(node.StartPoint().Column),
			Message: fmt.Sprintf("missing %s", node.Type()),
		})
		return diags
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		diags = collectSyntaxErrors(node.Child(i), diags)
	}
	return diags
}
