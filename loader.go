package codegraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"codegraph/internal/pylang"
)

// ignoredDirs are directories never descended into, independent of any
// .gitignore.
var ignoredDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"vendor":        true,
	"__pycache__":   true,
	"venv":          true,
	".venv":         true,
	".tox":          true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	"dist":          true,
	"build":         true,
	".idea":         true,
	".vscode":       true,
}

// sourceFile is one discovered file, addressed three ways: absolute for
// reading, project-relative for storage and diagnostics, and as a dotted
// module path for resolution. The project-relative path starts with the
// root's base name so multiple roots stay in separate namespaces.
type sourceFile struct {
	absPath string
	relPath string
	module  string
}

// discoverFiles walks every configured root and returns the matching
// files in lexicographic relPath order. Ordering is what makes builds
// reproducible: every later stage processes files in this order.
func discoverFiles(cfg *Config) ([]sourceFile, error) {
	var files []sourceFile
	for _, root := range cfg.Roots {
		rootFiles, err := discoverRoot(cfg, root)
		if err != nil {
			return nil, err
		}
		files = append(files, rootFiles...)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].relPath < files[j].relPath })
	return files, nil
}

func discoverRoot(cfg *Config, root string) ([]sourceFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	var gi *ignore.GitIgnore
	if cfg.UseGitignore {
		gi = loadGitignore(absRoot)
	}
	base := filepath.Base(absRoot)

	var files []sourceFile
	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if path == absRoot {
				return nil
			}
			if ignoredDirs[info.Name()] || strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !cfg.matchesExtension(path) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if cfg.excluded(rel) {
			return nil
		}

		relPath := base + "/" + rel
		files = append(files, sourceFile{
			absPath: path,
			relPath: relPath,
			module:  pylang.ModulePath(relPath),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk root %s: %w", root, err)
	}
	return files, nil
}

// loadGitignore compiles the root's .gitignore when present.
func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
