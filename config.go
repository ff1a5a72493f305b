package codegraph

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project configuration file looked up next to the
// build roots.
const ConfigFileName = ".codegraph.yaml"

// Config controls file discovery and the build pipeline.
type Config struct {
	// Roots are the directories to index. Each root's base name becomes
	// the leading segment of the module paths discovered under it, so
	// two roots with distinct base names never collide.
	Roots []string `yaml:"roots"`

	// Extensions limits discovery to matching file suffixes.
	Extensions []string `yaml:"extensions"`

	// ExcludePatterns are glob patterns ("**" crosses separators)
	// matched against root-relative paths.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// UseGitignore applies each root's .gitignore on top of the
	// built-in ignore list.
	UseGitignore bool `yaml:"use_gitignore"`

	// Workers caps the extraction worker pool. Zero means one worker
	// per CPU.
	Workers int `yaml:"workers"`

	compiled []glob.Glob
}

// DefaultConfig returns the configuration used when no config file is
// present: index the current directory.
func DefaultConfig() *Config {
	return &Config{
		Roots:        []string{"."},
		Extensions:   []string{".py", ".pyi"},
		UseGitignore: true,
	}
}

// LoadConfig reads a YAML config file and merges it over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfig looks for ConfigFileName in dir, falling back to defaults
// when the file does not exist.
func FindConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		cfg := DefaultConfig()
		cfg.Roots = []string{dir}
		return cfg, cfg.Validate()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	// Roots in the config file are relative to the directory holding it.
	for i, root := range cfg.Roots {
		if !filepath.IsAbs(root) {
			cfg.Roots[i] = filepath.Join(dir, root)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration and compiles exclude patterns.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("at least one root is required")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one file extension is required")
	}
	seen := map[string]bool{}
	for _, root := range c.Roots {
		base := filepath.Base(filepath.Clean(root))
		if seen[base] {
			return fmt.Errorf("roots %q: duplicate base name %q would merge module namespaces", c.Roots, base)
		}
		seen[base] = true
	}

	c.compiled = c.compiled[:0]
	for _, pattern := range c.ExcludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		c.compiled = append(c.compiled, g)
	}
	return nil
}

// excluded reports whether a root-relative slash path matches any
// exclude pattern.
func (c *Config) excluded(relPath string) bool {
	for _, g := range c.compiled {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// matchesExtension reports whether the path carries one of the
// configured suffixes.
func (c *Config) matchesExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range c.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
