package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyerfyer/tmx-splitter/internal/document"
	"github.com/fyerfyer/tmx-splitter/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testDoc = `<?xml version="1.0" encoding="UTF-8"?>
<tmx version="1.4">
  <header srclang="en-US"/>
  <body>
%s  </body>
</tmx>
`

func writeInput(t *testing.T, records int) string {
	t.Helper()

	var b strings.Builder
	for i := 0; i < records; i++ {
		fmt.Fprintf(&b, "    <tu tuid=\"%d\">\n      <tuv xml:lang=\"en\"><seg>%s</seg></tuv>\n    </tu>\n", i, strings.Repeat("t", 40<<10))
	}

	path := filepath.Join(t.TempDir(), "memory.tmx")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testDoc, b.String())), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandSplit(t *testing.T) {
	input := writeInput(t, 3)
	outDir := filepath.Join(t.TempDir(), "parts")
	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	out, err := execute(t, input, "--threshold", "64KB", "--output-dir", outDir, "--report", reportPath, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(outDir, "memory.split.0.tmx"))
	assert.Contains(t, out, filepath.Join(outDir, "memory.split.1.tmx"))

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var report document.Report
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.Equal(t, input, report.Input)
	assert.Equal(t, int64(64<<10), report.Threshold)
	assert.Len(t, report.Parts, 2)
	assert.Equal(t, 3, report.Records)
}

func TestRootCommandDefaultOutputDir(t *testing.T) {
	input := writeInput(t, 2)

	_, err := execute(t, input, "-t", "1MB", "--log-level", "error")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(filepath.Dir(input), "memory.split.0.tmx"))
}

func TestSplitSubcommand(t *testing.T) {
	input := writeInput(t, 3)
	outDir := t.TempDir()

	out, err := execute(t, "split", input, "-t", "64KiB", "-o", outDir, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "memory.split."))
}

func TestRootCommandErrors(t *testing.T) {
	input := writeInput(t, 1)

	_, err := execute(t, input, "-t", "60KB", "--log-level", "error")
	assert.ErrorIs(t, err, document.ErrThresholdTooSmall)
	assert.Equal(t, exitValidation, exitCode(err))

	_, err = execute(t, input, "-t", "lots", "--log-level", "error")
	assert.Equal(t, exitValidation, exitCode(err))

	malformed := filepath.Join(t.TempDir(), "broken.tmx")
	require.NoError(t, os.WriteFile(malformed, []byte("<tmx><header/></tmx>\n"), 0o644))
	_, err = execute(t, malformed, "--log-level", "error")
	assert.Equal(t, exitEnvelope, exitCode(err))

	_, err = execute(t, filepath.Join(t.TempDir(), "missing.tmx"), "--log-level", "error")
	assert.Equal(t, exitFailure, exitCode(err))

	_, err = execute(t)
	assert.Error(t, err, "an input path is required")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitCanceled, exitCode(&services.SplitError{Stage: services.StageScan, Err: context.Canceled}))
	assert.Equal(t, exitEnvelope, exitCode(document.ErrTailNotFound))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestInspectCommand(t *testing.T) {
	input := writeInput(t, 1)

	out, err := execute(t, "inspect", input, "--show", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "encoding: default")
	assert.Contains(t, out, "--- head ---")
	assert.Contains(t, out, "<body>")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tmxsplit version: dev")
}
