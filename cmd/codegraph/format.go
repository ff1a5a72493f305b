package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be json or text", format)
	}
}

// outputResultText renders a CLIResult as aligned text on stdout.
func outputResultText(result CLIResult) error {
	switch items := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(os.Stdout, items)
	case []CLICallEdge:
		formatCallEdgesText(os.Stdout, items)
	case []CLIImport:
		formatImportsText(os.Stdout, items)
	case []CLIDiagnostic:
		formatDiagnosticsText(os.Stdout, items)
	default:
		return fmt.Errorf("no text formatter for %s results", result.Command)
	}
	return nil
}

// formatSymbolsText formats symbols as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFQ NAME\tKIND\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			s.ID, s.FQName, s.Kind, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatCallEdgesText formats call edges as aligned columns.
func formatCallEdgesText(w io.Writer, edges []CLICallEdge) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tCALLEE\tFILE\tLINE\tCOL")
	for _, e := range edges {
		caller := fmt.Sprintf("%s (#%d)", e.CallerName, e.CallerID)
		callee := fmt.Sprintf("%s (#%d)", e.CalleeName, e.CalleeID)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			caller, callee, e.File, e.Line, e.Col)
	}
	tw.Flush()
}

// formatImportsText formats import bindings as aligned columns.
func formatImportsText(w io.Writer, imports []CLIImport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSOURCE\tNAME\tTARGET\tSTATE")
	for _, imp := range imports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			imp.FilePath, imp.Source, imp.ImportedName, imp.Target, imp.State)
	}
	tw.Flush()
}

// formatDiagnosticsText formats diagnostics as "path:line:col severity/category message".
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d %s/%s %s\n",
			d.Path, d.Line, d.Col, d.Severity, d.Category, d.Message)
	}
}
