package xlcalc

import (
	"fmt"
	"slices"
)

// refRewrite maps references in formulas to their position after a
// structural edit. A false result means the target no longer exists.
type refRewrite interface {
	cell(ref CellRef) (CellRef, bool)
	area(r RangeRef) (RangeRef, bool)
}

// rowInsert shifts every row at or after index down by one.
type rowInsert struct {
	sheet string
	index int
}

func (m rowInsert) cell(ref CellRef) (CellRef, bool) {
	if ref.Sheet == m.sheet && ref.Row >= m.index {
		ref.Row++
	}
	return ref, true
}

func (m rowInsert) area(r RangeRef) (RangeRef, bool) {
	r.First, _ = m.cell(r.First)
	r.Last, _ = m.cell(r.Last)
	return r, true
}

// rowRemoval drops one row. References to it are lost; a range covering it
// is lost entirely.
type rowRemoval struct {
	sheet string
	index int
}

func (m rowRemoval) cell(ref CellRef) (CellRef, bool) {
	if ref.Sheet != m.sheet {
		return ref, true
	}
	switch {
	case ref.Row == m.index:
		return ref, false
	case ref.Row > m.index:
		ref.Row--
	}
	return ref, true
}

func (m rowRemoval) area(r RangeRef) (RangeRef, bool) {
	if r.Sheet() != m.sheet {
		return r, true
	}
	row0, _, row1, _ := r.Bounds()
	if row0 <= m.index && m.index <= row1 {
		return r, false
	}
	r.First, _ = m.cell(r.First)
	r.Last, _ = m.cell(r.Last)
	return r, true
}

// sheetRemoval loses every reference into one sheet.
type sheetRemoval struct {
	sheet string
}

func (m sheetRemoval) cell(ref CellRef) (CellRef, bool) { return ref, ref.Sheet != m.sheet }

func (m sheetRemoval) area(r RangeRef) (RangeRef, bool) { return r, r.Sheet() != m.sheet }

const refErrorToken = "#REF!"

// rewriteReferences applies m to every reference in formula, owned by
// sheet. Lost references become #REF!. References are replaced in reverse
// order so earlier token positions stay valid. Unqualified references stay
// unqualified; untouched references keep their original spelling.
func rewriteReferences(formula, sheet string, m refRewrite) (string, bool) {
	if len(formula) == 0 || formula[0] != '=' {
		return formula, false
	}
	body := formula[1:]
	tokens := Tokenize(body)
	changed := false
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if !tok.IsIdentifier() {
			continue
		}
		ref := classifyReference(tok.Text, sheet)
		var replacement string
		switch ref.kind {
		case refCell:
			moved, ok := m.cell(ref.cell)
			switch {
			case !ok:
				replacement = refErrorToken
			case moved == ref.cell:
				continue
			case ref.local:
				replacement = moved.CellName()
			default:
				replacement = moved.String()
			}
		case refRange:
			moved, ok := m.area(ref.area)
			switch {
			case !ok:
				replacement = refErrorToken
			case moved == ref.area:
				continue
			case ref.local:
				replacement = moved.First.CellName() + ":" + moved.Last.CellName()
			default:
				replacement = moved.String()
			}
		default:
			continue
		}
		body = body[:tok.Pos] + replacement + body[tok.Pos+len(tok.Text):]
		changed = true
	}
	return "=" + body, changed
}

// AddRow inserts an empty row before index (index == Rows() appends).
// Formulas are renumbered to keep pointing at the cells they read, then the
// workbook is recalculated.
func (w *Workbook) AddRow(sheet string, index int) error {
	if w.busy {
		return ErrReentrant
	}
	s, err := w.Sheet(sheet)
	if err != nil {
		return err
	}
	if index < 0 || index > len(s.rows) {
		return fmt.Errorf("add row %d to %q: %w", index+1, sheet, ErrOutOfBounds)
	}
	return w.restructure(nil, rowInsert{sheet: sheet, index: index}, func() {
		s.rows = slices.Insert(s.rows, index, w.newRow(s, index))
		w.renumber(s, index+1)
	})
}

// RemoveRow destroys a row. Formulas reading its cells are rewritten to
// #REF! and settle as ReferenceError; references below it move up.
func (w *Workbook) RemoveRow(sheet string, index int) error {
	if w.busy {
		return ErrReentrant
	}
	s, err := w.Sheet(sheet)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("remove row %d from %q: %w", index+1, sheet, ErrOutOfBounds)
	}
	destroyed := slices.Clone(s.rows[index])
	return w.restructure(destroyed, rowRemoval{sheet: sheet, index: index}, func() {
		s.rows = slices.Delete(s.rows, index, index+1)
		w.renumber(s, index)
	})
}

// RemoveSheet destroys a sheet. Every reference into it becomes #REF!.
func (w *Workbook) RemoveSheet(name string) error {
	if w.busy {
		return ErrReentrant
	}
	s, err := w.Sheet(name)
	if err != nil {
		return err
	}
	return w.restructure(s.cellIDs(), sheetRemoval{sheet: name}, func() {
		w.sheets = slices.DeleteFunc(w.sheets, func(x *Sheet) bool { return x == s })
		delete(w.byName, name)
	})
}

// renumber refreshes the row index of every cell from row 'from' down.
func (w *Workbook) renumber(s *Sheet, from int) {
	for r := from; r < len(s.rows); r++ {
		for _, id := range s.rows[r] {
			w.cells[id].row = r
		}
	}
}

// restructure runs a structural edit: edges of destroyed cells are severed,
// the layout is changed, every surviving formula is rewritten through m and
// rebuilt if it changed, destroyed slots are released and the workbook is
// fully recalculated.
func (w *Workbook) restructure(destroyed []CellID, m refRewrite, mutate func()) error {
	gone := make(map[CellID]bool, len(destroyed))
	for _, id := range destroyed {
		gone[id] = true
	}
	orphans := make(map[CellID]bool)
	for _, id := range destroyed {
		for _, dep := range w.severCell(id, gone) {
			orphans[dep] = true
		}
	}

	mutate()

	rebuilt := 0
	for _, id := range w.expressionCells() {
		c := w.cells[id]
		formula, changed := rewriteReferences(c.formula, c.sheet.name, m)
		if !changed && !orphans[id] {
			continue
		}
		w.assign(c, formula)
		rebuilt++
	}

	for _, id := range destroyed {
		if n := len(w.cells[id].dependents); n != 0 {
			err := fmt.Errorf("destroyed cell %s still has %d dependents: %w", w.cells[id].Ref(), n, ErrInternal)
			w.log.Error("structural edit left dangling edges", "error", err)
			return err
		}
		delete(w.dirty, id)
		w.cells[id] = nil
	}
	w.log.Debug("structure changed", "destroyed", len(destroyed), "rebuilt", rebuilt)

	w.markDirty(w.expressionCells()...)
	return w.recompute()
}
