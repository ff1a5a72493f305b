package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
	assert.Error(t, validateFormat(""))
}

func TestResolveDBPath(t *testing.T) {
	orig := flagDB
	defer func() { flagDB = orig }()

	flagDB = ""
	assert.Equal(t, filepath.Join("/proj", ".codegraph", "graph.db"), resolveDBPath("/proj"))

	flagDB = "custom.db"
	assert.Equal(t, filepath.Join("/proj", "custom.db"), resolveDBPath("/proj"))

	flagDB = "/elsewhere/graph.db"
	assert.Equal(t, "/elsewhere/graph.db", resolveDBPath("/proj"))
}

func TestResolveTargetDir(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	require.Error(t, err)

	file := filepath.Join(dir, "f.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = resolveTargetDir([]string{file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestFormatDiagnosticsText(t *testing.T) {
	var buf bytes.Buffer
	formatDiagnosticsText(&buf, []CLIDiagnostic{
		{Severity: "error", Category: "syntax", Path: "demo/bad.py", Line: 4, Col: 0, Message: "syntax error"},
		{Severity: "warning", Category: "shadowing", Path: "demo/dup.py", Line: 9, Col: 0, Message: "redefinition"},
	})
	assert.Equal(t,
		"demo/bad.py:4:0 error/syntax syntax error\n"+
			"demo/dup.py:9:0 warning/shadowing redefinition\n",
		buf.String())
}
