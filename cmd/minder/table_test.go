package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatalf("expected buffer writer to disable color")
	}
}

func TestRenderTablePlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf,
		[]string{"Stat", "Value"},
		[][]string{{"Block Height", "500000"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if !strings.Contains(out, "Block Height") || !strings.Contains(out, "500000") {
		t.Fatalf("expected row content in table output:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escapes for a non-terminal writer:\n%q", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(io.Discard,
		[]string{"A", "B", "C"},
		[][]string{{"only"}},
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	)
	if !strings.Contains(out, "only") {
		t.Fatalf("expected row content in table output:\n%s", out)
	}
}
