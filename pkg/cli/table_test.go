package cli

import (
	"strings"
	"testing"
)

func TestTableRender(t *testing.T) {
	tbl := Table{
		Styles:  NewStyles(DefaultTheme),
		Headers: []string{"CALL", "STATE"},
		Rows: [][]string{
			{"CA1234567890", "listening"},
			{"CA2", "speaking"},
		},
	}
	out := tbl.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "CALL") || !strings.Contains(lines[0], "STATE") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "CA1234567890") {
		t.Errorf("row line = %q", lines[1])
	}
	// Short values are padded to the column width.
	if !strings.Contains(lines[2], "CA2         ") {
		t.Errorf("row not padded: %q", lines[2])
	}
}
