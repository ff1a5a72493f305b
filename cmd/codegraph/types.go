package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
}

// CLISymbol is a JSON-friendly symbol representation.
type CLISymbol struct {
	ID        int64  `json:"id"`
	FQName    string `json:"fq_name"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Doc       string `json:"doc,omitempty"`
}

// CLICallEdge is a JSON-friendly call graph edge.
type CLICallEdge struct {
	CallerID   int64  `json:"caller_id"`
	CallerName string `json:"caller_name,omitempty"`
	CalleeID   int64  `json:"callee_id"`
	CalleeName string `json:"callee_name,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
}

// CLIImport is a JSON-friendly import binding.
type CLIImport struct {
	FilePath     string `json:"file_path"`
	Source       string `json:"source"`
	ImportedName string `json:"imported_name,omitempty"`
	LocalAlias   string `json:"local_alias,omitempty"`
	Target       string `json:"target,omitempty"`
	State        string `json:"state"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Seq      int64  `json:"seq"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	Path     string `json:"path"`
	Line     int    `json:"line,omitempty"`
	Col      int    `json:"col,omitempty"`
	Message  string `json:"message"`
}
