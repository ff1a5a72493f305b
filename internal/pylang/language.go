// Package pylang is the tree-sitter Python frontend: tolerant parsing,
// symbol and import extraction, and call-site extraction. It writes
// extraction results through store.DataStore and never resolves anything;
// resolution is a separate pass over the merged symbol table.
package pylang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Language is the canonical language name recorded on files.
const Language = "python"

// initSegment is the file stem that names a package rather than a module.
const initSegment = "__init__"

// SupportedFile reports whether the extractor understands the file's
// extension.
func SupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".py" || ext == ".pyi"
}

// Grammar returns the tree-sitter Python grammar.
func Grammar() *sitter.Language {
	return python.GetLanguage()
}

// ModulePath converts a root-relative file path to a dotted module path:
// "demo/foo.py" -> "demo.foo", "demo/package/__init__.py" -> "demo.package".
func ModulePath(relPath string) string {
	p := filepath.ToSlash(relPath)
	p = strings.TrimSuffix(p, filepath.Ext(p))
	segments := strings.Split(p, "/")
	if len(segments) > 0 && segments[len(segments)-1] == initSegment {
		segments = segments[:len(segments)-1]
	}
	return strings.Join(segments, ".")
}

// IsPackageModule reports whether the path is a package __init__ file.
// Imports bound in a package module are treated as re-exports.
func IsPackageModule(relPath string) bool {
	stem := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	return stem == initSegment
}

// PackageOf returns the package a module's relative imports resolve
// against: the module itself for packages, otherwise its parent.
func PackageOf(module string, isPackage bool) string {
	if isPackage {
		return module
	}
	if i := strings.LastIndex(module, "."); i >= 0 {
		return module[:i]
	}
	return ""
}
