package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"codegraph"
)

var (
	flagDB     string
	flagFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codegraph",
	Short:         "Static call graph extraction for Python codebases",
	Long:          "Codegraph parses Python source with tree-sitter, resolves imports and calls, and writes a queryable SQLite database.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .codegraph/graph.db next to the indexed directory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
}

var (
	flagSerial  bool
	flagWorkers int
	flagVerbose bool
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the call graph for a directory",
	Long:  "Discovers Python files, extracts definitions and call sites, resolves imports and calls, and writes the graph to the SQLite database. Rebuilds from scratch every run.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&flagSerial, "serial", false, "disable the parallel extraction pool")
	buildCmd.Flags().IntVar(&flagWorkers, "workers", 0, "extraction worker count (0 = one per CPU)")
	buildCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "log build warnings to stderr")
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	cfg, err := codegraph.FindConfig(targetDir)
	if err != nil {
		return err
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}

	dbPath := resolveDBPath(targetDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	opts := []codegraph.Option{
		codegraph.WithConfig(cfg),
		codegraph.WithParallel(!flagSerial),
	}
	if flagVerbose {
		opts = append(opts, codegraph.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}

	engine, err := codegraph.New(dbPath, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Build(context.Background()); err != nil {
		return err
	}

	diags, err := engine.Query().Diagnostics()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Built %s in %s (%d diagnostics)\n",
		targetDir, time.Since(start).Round(time.Millisecond), len(diags))
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

var flagOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the graph as a stable JSON document",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagOut, "out", "", "write to a file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	out := os.Stdout
	if flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", flagOut, err)
		}
		defer f.Close()
		out = f
	}
	return engine.Export(out)
}

// openEngine opens the database read-only-ish for query and export
// commands: no build is run.
func openEngine() (*codegraph.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'codegraph build' first)", dbPath)
	}
	return codegraph.New(dbPath)
}

// resolveTargetDir returns the absolute path of the directory to build.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// resolveDBPath returns the database path from the --db flag or the
// default location next to the target directory.
func resolveDBPath(dir string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(dir, flagDB)
	}
	return filepath.Join(dir, ".codegraph", "graph.db")
}
