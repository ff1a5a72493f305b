package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codegraph"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a built graph",
	Long:  "Run queries against a built database. Lines are 1-based, columns 0-based.",
}

var flagDepth int

func init() {
	queryCmd.AddCommand(symbolCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(depsCmd)
	queryCmd.AddCommand(dependentsCmd)
	queryCmd.AddCommand(diagnosticsCmd)

	callersCmd.Flags().IntVar(&flagDepth, "depth", 1, "traversal depth (1 = direct only)")
	calleesCmd.Flags().IntVar(&flagDepth, "depth", 1, "traversal depth (1 = direct only)")
}

var symbolCmd = &cobra.Command{
	Use:   "symbol <fq-name>",
	Short: "Look up a symbol by fully-qualified name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQuery()
		if err != nil {
			return err
		}
		defer closeFn()

		sym, err := q.SymbolByFQName(args[0])
		if err != nil {
			return err
		}
		if sym == nil {
			return fmt.Errorf("no symbol named %q", args[0])
		}
		out, err := cliSymbol(q, sym)
		if err != nil {
			return err
		}
		return outputResult(CLIResult{Command: "symbol", Results: []CLISymbol{out}})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <prefix>",
	Short: "List symbols whose fully-qualified name starts with a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQuery()
		if err != nil {
			return err
		}
		defer closeFn()

		syms, err := q.SymbolsByPrefix(args[0])
		if err != nil {
			return err
		}
		results := make([]CLISymbol, 0, len(syms))
		for _, sym := range syms {
			out, err := cliSymbol(q, sym)
			if err != nil {
				return err
			}
			results = append(results, out)
		}
		return outputResult(CLIResult{Command: "search", Results: results})
	},
}

var callersCmd = &cobra.Command{
	Use:   "callers <fq-name>",
	Short: "Who calls this symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphQuery("callers", args[0], false)
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees <fq-name>",
	Short: "What this symbol calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphQuery("callees", args[0], true)
	},
}

func runGraphQuery(command, fqName string, forward bool) error {
	q, closeFn, err := openQuery()
	if err != nil {
		return err
	}
	defer closeFn()

	sym, err := q.SymbolByFQName(fqName)
	if err != nil {
		return err
	}
	if sym == nil {
		return fmt.Errorf("no symbol named %q", fqName)
	}

	var graph *codegraph.CallGraph
	if forward {
		graph, err = q.TransitiveCallees(sym.ID, flagDepth)
	} else {
		graph, err = q.TransitiveCallers(sym.ID, flagDepth)
	}
	if err != nil {
		return err
	}

	names := make(map[int64]string, len(graph.Nodes))
	for _, node := range graph.Nodes {
		names[node.Symbol.ID] = node.Symbol.FQName
	}
	results := make([]CLICallEdge, 0, len(graph.Edges))
	for _, edge := range graph.Edges {
		results = append(results, CLICallEdge{
			CallerID:   edge.CallerID,
			CallerName: names[edge.CallerID],
			CalleeID:   edge.CalleeID,
			CalleeName: names[edge.CalleeID],
			File:       edge.File,
			Line:       edge.Line,
			Col:        edge.Col,
		})
	}
	return outputResult(CLIResult{Command: command, Results: results})
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Import bindings of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImportQuery("deps", args[0], false)
	},
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "Import bindings in other files targeting this file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImportQuery("dependents", args[0], true)
	},
}

func runImportQuery(command, path string, reverse bool) error {
	q, closeFn, err := openQuery()
	if err != nil {
		return err
	}
	defer closeFn()

	f, err := q.FileByPath(path)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("no indexed file at %q", path)
	}

	var bindings []*codegraph.ImportBinding
	if reverse {
		bindings, err = q.Dependents(f.ID)
	} else {
		bindings, err = q.Dependencies(f.ID)
	}
	if err != nil {
		return err
	}

	results := make([]CLIImport, 0, len(bindings))
	for _, b := range bindings {
		out := CLIImport{Source: b.Source, State: b.State}
		if bf, err := q.FileByID(b.FileID); err == nil && bf != nil {
			out.FilePath = bf.Path
		}
		if b.ImportedName != nil {
			out.ImportedName = *b.ImportedName
		}
		if b.LocalAlias != nil {
			out.LocalAlias = *b.LocalAlias
		}
		if b.TargetSymbolID != nil {
			if target, err := q.SymbolByID(*b.TargetSymbolID); err == nil && target != nil {
				out.Target = target.FQName
			}
		}
		results = append(results, out)
	}
	return outputResult(CLIResult{Command: command, Results: results})
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "List build diagnostics in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQuery()
		if err != nil {
			return err
		}
		defer closeFn()

		diags, err := q.Diagnostics()
		if err != nil {
			return err
		}
		results := make([]CLIDiagnostic, 0, len(diags))
		for _, d := range diags {
			results = append(results, CLIDiagnostic{
				Seq:      d.Seq,
				Severity: d.Severity,
				Category: d.Category,
				Path:     d.Path,
				Line:     d.Line,
				Col:      d.Col,
				Message:  d.Message,
			})
		}
		return outputResult(CLIResult{Command: "diagnostics", Results: results})
	},
}

// openQuery opens the database and returns the query API plus a close
// function.
func openQuery() (*codegraph.QueryBuilder, func(), error) {
	engine, err := openEngine()
	if err != nil {
		return nil, nil, err
	}
	return engine.Query(), func() { engine.Close() }, nil
}

func cliSymbol(q *codegraph.QueryBuilder, sym *codegraph.Symbol) (CLISymbol, error) {
	out := CLISymbol{
		ID:        sym.ID,
		FQName:    sym.FQName,
		Name:      sym.Name,
		Kind:      sym.Kind,
		StartLine: sym.StartLine,
		StartCol:  sym.StartCol,
		EndLine:   sym.EndLine,
		EndCol:    sym.EndCol,
		Doc:       sym.Doc,
	}
	loc, err := q.SymbolLocation(sym.ID)
	if err != nil {
		return out, err
	}
	if loc != nil {
		out.File = loc.File
	}
	return out, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
