package xlcalc

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Describe returns a human-readable dump of every non-empty cell: its text,
// computed value, state, the references it reads and the cells reading it.
// Useful for debugging dependency problems.
func (w *Workbook) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workbook: %d sheet(s)\n", len(w.sheets))
	for _, s := range w.sheets {
		fmt.Fprintf(&b, "%s (%dx%d)\n", QuoteSheet(s.name), s.Rows(), s.Cols())
		for _, id := range s.cellIDs() {
			if c := w.cells[id]; c.kind != KindEmpty {
				w.describeCell(&b, c)
			}
		}
	}
	return b.String()
}

// describeCell writes one cell entry and its edges.
func (w *Workbook) describeCell(b *strings.Builder, c *Cell) {
	fmt.Fprintf(b, "  %s: %s -> %s [%s]\n", c.Ref().CellName(), c.formula, c.Value(), c.state)
	if c.err != nil && c.state == StateError && c.err.Ref != "" {
		fmt.Fprintf(b, "    error from: %s\n", c.err.Ref)
	}

	// Ranges contribute one entry per cell, all sharing the range text.
	var reads []string
	seen := make(map[string]bool)
	for _, d := range c.deps {
		if !seen[d.Ref] {
			seen[d.Ref] = true
			reads = append(reads, d.Ref)
		}
	}
	if len(reads) > 0 {
		fmt.Fprintf(b, "    reads: %s\n", strings.Join(reads, ", "))
	}

	if len(c.dependents) > 0 {
		ids := w.sortByPosition(slices.Collect(maps.Keys(c.dependents)))
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = w.cells[id].Ref().String()
		}
		fmt.Fprintf(b, "    read by: %s\n", strings.Join(names, ", "))
	}
}
