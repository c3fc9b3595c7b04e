package xlcalc

import (
	"strings"
)

// refKind classifies an identifier token found in a formula.
type refKind int

const (
	refName   refKind = iota // bare name: TRUE, FALSE or a custom function
	refCell                  // single cell reference
	refRange                 // rectangular range
	refError                 // error literal such as #DIV/0!
	refBroken                // looks like a reference but does not parse
)

// reference is a classified identifier. Cell and Range are sheet-qualified;
// unqualified text is resolved against the sheet owning the formula.
type reference struct {
	kind  refKind
	cell  CellRef
	area  RangeRef
	code  ErrorKind
	local bool // written without a sheet qualifier
}

func classifyReference(text, sheet string) reference {
	if code, ok := ParseErrorToken(text); ok {
		return reference{kind: refError, code: code}
	}
	if strings.HasPrefix(text, "#") {
		return reference{kind: refBroken}
	}
	looksQualified := strings.ContainsAny(text, "!:")
	if !looksQualified && !isLocalCellName(text) {
		return reference{kind: refName}
	}
	local := !hasSheet(text)
	q := Qualify(sheet, text)
	if ref, err := ParseCellReference(q); err == nil {
		return reference{kind: refCell, cell: ref, local: local}
	}
	if area, err := ParseRangeReference(q); err == nil {
		return reference{kind: refRange, area: area, local: local}
	}
	return reference{kind: refBroken}
}

// rebuildDependencies re-derives the outgoing edges of c from its formula
// text. Literal and blank cells end up with no edges. A reference that does
// not resolve to a live cell settles the cell as ReferenceError once it is
// recomputed; the references that did resolve are still wired.
func (w *Workbook) rebuildDependencies(c *Cell) {
	c.buildErr = nil
	var next []*Dependency
	if c.kind == KindExpression {
		next, c.buildErr = w.resolveDependencies(c)
	}
	w.rewire(c, next)
}

func (w *Workbook) resolveDependencies(c *Cell) ([]*Dependency, *FormulaError) {
	var (
		deps     []*Dependency
		seen     = make(map[CellID]bool)
		buildErr *FormulaError
	)
	add := func(ref string, id CellID) {
		if seen[id] {
			return
		}
		seen[id] = true
		deps = append(deps, &Dependency{Ref: ref, Cell: id})
	}
	fail := func(text string, cause error) {
		if buildErr == nil {
			buildErr = newFormulaError(ReferenceError, text, cause)
		}
	}

	for _, tok := range Tokenize(c.formula[1:]) {
		if !tok.IsIdentifier() {
			continue
		}
		ref := classifyReference(tok.Text, c.sheet.name)
		switch ref.kind {
		case refCell:
			id, err := w.lookup(ref.cell)
			if err != nil {
				fail(tok.Text, err)
				continue
			}
			add(ref.cell.String(), id)
		case refRange:
			row0, col0, row1, col1 := ref.area.Bounds()
			if _, err := w.lookup(NewCellRef(ref.area.Sheet(), row0, col0)); err != nil {
				fail(tok.Text, err)
				continue
			}
			if _, err := w.lookup(NewCellRef(ref.area.Sheet(), row1, col1)); err != nil {
				fail(tok.Text, err)
				continue
			}
			text := ref.area.String()
			for _, cr := range ref.area.Cells() {
				id, _ := w.lookup(cr)
				add(text, id)
			}
		case refError:
			if ref.code == ReferenceError {
				fail(tok.Text, nil)
			}
		case refBroken:
			fail(tok.Text, ErrInvalidReference)
		}
	}
	return deps, buildErr
}

// rewire replaces the outgoing edges of c with next, keeping the symmetric
// back-references in step. Edges present before and after keep their
// Dependency value and are not touched on the other side.
func (w *Workbook) rewire(c *Cell, next []*Dependency) {
	prev := make(map[CellID]*Dependency, len(c.deps))
	for _, d := range c.deps {
		prev[d.Cell] = d
	}
	keep := make(map[CellID]bool, len(next))
	for i, d := range next {
		keep[d.Cell] = true
		if old, ok := prev[d.Cell]; ok {
			old.Ref = d.Ref
			next[i] = old
			continue
		}
		w.cells[d.Cell].dependents[c.id] = struct{}{}
	}
	for id := range prev {
		if !keep[id] {
			delete(w.cells[id].dependents, c.id)
		}
	}
	c.deps = next
}

// detectCycle reports whether a cycle is reachable from start by following
// dependency edges.
func (w *Workbook) detectCycle(start CellID) bool {
	onPath := make(map[CellID]bool)
	done := make(map[CellID]bool)
	var visit func(id CellID) bool
	visit = func(id CellID) bool {
		if onPath[id] {
			return true
		}
		if done[id] {
			return false
		}
		onPath[id] = true
		for _, d := range w.cells[id].deps {
			if visit(d.Cell) {
				return true
			}
		}
		delete(onPath, id)
		done[id] = true
		return false
	}
	return visit(start)
}

// markDirty adds the given cells and everything reachable through dependents
// to the dirty set. Each cell is visited once per call.
func (w *Workbook) markDirty(ids ...CellID) {
	processed := make(map[CellID]bool, len(ids))
	queue := append([]CellID(nil), ids...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if processed[id] {
			continue
		}
		processed[id] = true
		c := w.cells[id]
		c.state = StateDirty
		w.dirty[id] = struct{}{}
		for dep := range c.dependents {
			if !processed[dep] {
				queue = append(queue, dep)
			}
		}
	}
}

// severCell drops every edge of a cell about to be destroyed. It returns the
// surviving cells that depended on it; their formulas must be rewritten and
// rebuilt before the cell slot is released.
func (w *Workbook) severCell(id CellID, destroyed map[CellID]bool) []CellID {
	c := w.cells[id]
	w.rewire(c, nil)
	var orphans []CellID
	for dep := range c.dependents {
		if !destroyed[dep] {
			orphans = append(orphans, dep)
		}
	}
	return orphans
}
