package xlcalc

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
)

// Workbook owns every sheet and cell, the dependency graph between cells and
// the set of cells awaiting recalculation. It is not safe for concurrent use.
type Workbook struct {
	opts *Options
	log  *slog.Logger

	cells  []*Cell // arena; destroyed cells leave nil slots
	sheets []*Sheet
	byName map[string]*Sheet
	dirty  map[CellID]struct{}

	busy        bool
	rt          *runtime
	compileOpts []expr.Option
}

// NewWorkbook creates an empty workbook with the given options.
func NewWorkbook(opts ...Option) *Workbook {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	w := &Workbook{
		opts:   o,
		log:    o.logger,
		byName: make(map[string]*Sheet),
		dirty:  make(map[CellID]struct{}),
	}
	w.rt = &runtime{wb: w}
	w.compileOpts = w.rt.compileOptions(o.functions)
	return w
}

// AddSheet appends a sheet with rows x cols pre-allocated empty cells.
// Formulas that referenced the sheet before it existed are resolved again.
func (w *Workbook) AddSheet(name string, rows, cols int) error {
	if w.busy {
		return ErrReentrant
	}
	if err := validateSheetName(name); err != nil {
		return err
	}
	if _, ok := w.byName[name]; ok {
		return fmt.Errorf("add sheet %q: %w", name, ErrSheetExists)
	}
	if rows < 0 || cols < 0 {
		return fmt.Errorf("add sheet %q with %dx%d cells: %w", name, rows, cols, ErrOutOfBounds)
	}
	s := &Sheet{name: name, cols: cols, rows: make([][]CellID, rows)}
	for r := range s.rows {
		s.rows[r] = w.newRow(s, r)
	}
	w.sheets = append(w.sheets, s)
	w.byName[name] = s
	w.log.Debug("sheet added", "sheet", name, "rows", rows, "cols", cols)

	var retry []CellID
	for _, c := range w.cells {
		if c != nil && c.kind == KindExpression && c.buildErr != nil {
			w.assign(c, c.formula)
			retry = append(retry, c.id)
		}
	}
	if len(retry) == 0 {
		return nil
	}
	w.markDirty(retry...)
	return w.recompute()
}

func validateSheetName(name string) error {
	if name == "" || strings.ContainsRune(name, '!') || strings.HasPrefix(name, "'") {
		return fmt.Errorf("sheet name %q: %w", name, ErrInvalidSheetName)
	}
	return nil
}

func (w *Workbook) newRow(s *Sheet, row int) []CellID {
	ids := make([]CellID, s.cols)
	for col := range ids {
		id := CellID(len(w.cells))
		w.cells = append(w.cells, newCell(id, s, row, col))
		ids[col] = id
	}
	return ids
}

// Sheets returns the sheet names in creation order.
func (w *Workbook) Sheets() []string {
	names := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		names[i] = s.name
	}
	return names
}

// Sheet returns the named sheet.
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	s, ok := w.byName[name]
	if !ok {
		return nil, fmt.Errorf("sheet %q: %w", name, ErrSheetNotFound)
	}
	return s, nil
}

// Cell returns the cell at a zero-based position.
func (w *Workbook) Cell(sheet string, row, col int) (*Cell, error) {
	s, err := w.Sheet(sheet)
	if err != nil {
		return nil, err
	}
	if !s.contains(row, col) {
		return nil, fmt.Errorf("cell %s: %w", NewCellRef(sheet, row, col), ErrOutOfBounds)
	}
	return w.cells[s.rows[row][col]], nil
}

// CellAt returns the cell at an address such as "Sheet1!B2".
func (w *Workbook) CellAt(address string) (*Cell, error) {
	ref, err := ParseCellReference(address)
	if err != nil {
		return nil, err
	}
	return w.Cell(ref.Sheet, ref.Row, ref.Col)
}

// Cells yields every live cell in sheet order, row by row.
func (w *Workbook) Cells() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for _, s := range w.sheets {
			for _, id := range s.cellIDs() {
				if !yield(w.cells[id]) {
					return
				}
			}
		}
	}
}

// lookup resolves a reference to a live cell handle.
func (w *Workbook) lookup(ref CellRef) (CellID, error) {
	c, err := w.Cell(ref.Sheet, ref.Row, ref.Col)
	if err != nil {
		return 0, err
	}
	return c.id, nil
}

// SetCellFormula stores text in a cell and recalculates everything that
// depends on it. Text starting with "=" is a formula; anything else is a
// number or string literal. Formula failures settle in the cell and are
// never returned; an error means the address or sheet does not exist.
func (w *Workbook) SetCellFormula(sheet string, row, col int, text string) error {
	if w.busy {
		return ErrReentrant
	}
	c, err := w.Cell(sheet, row, col)
	if err != nil {
		return err
	}
	w.assign(c, text)
	w.markDirty(c.id)
	return w.recompute()
}

// Set is SetCellFormula taking an address such as "Sheet1!A1".
func (w *Workbook) Set(address, text string) error {
	ref, err := ParseCellReference(address)
	if err != nil {
		return err
	}
	return w.SetCellFormula(ref.Sheet, ref.Row, ref.Col, text)
}

// SetBatch assigns many cells and recalculates once. Addresses are checked
// before any cell is changed.
func (w *Workbook) SetBatch(entries map[string]string) error {
	if w.busy {
		return ErrReentrant
	}
	addrs := slices.Sorted(maps.Keys(entries))
	cells := make([]*Cell, len(addrs))
	for i, addr := range addrs {
		c, err := w.CellAt(addr)
		if err != nil {
			return err
		}
		cells[i] = c
	}
	ids := make([]CellID, len(cells))
	for i, c := range cells {
		w.assign(c, entries[addrs[i]])
		ids[i] = c.id
	}
	w.log.Debug("batch assigned", "cells", len(ids))
	w.markDirty(ids...)
	return w.recompute()
}

// assign replaces the cell text and rebuilds its edges and program together.
func (w *Workbook) assign(c *Cell, text string) {
	c.setText(text)
	w.rebuildDependencies(c)
	if c.kind != KindExpression || c.buildErr != nil {
		return
	}
	prog, err := w.compile(c.formula, c.sheet.name)
	if err != nil {
		c.buildErr = asFormulaError(err)
		return
	}
	c.program = prog
}

// GetCellValue returns the computed value or error code of a cell.
func (w *Workbook) GetCellValue(sheet string, row, col int) (Value, error) {
	c, err := w.Cell(sheet, row, col)
	if err != nil {
		return Value{}, err
	}
	return c.Value(), nil
}

// Get is GetCellValue taking an address.
func (w *Workbook) Get(address string) (Value, error) {
	c, err := w.CellAt(address)
	if err != nil {
		return Value{}, err
	}
	return c.Value(), nil
}

// GetDisplayText returns the cell value rendered by the configured Formatter.
func (w *Workbook) GetDisplayText(sheet string, row, col int) (string, error) {
	c, err := w.Cell(sheet, row, col)
	if err != nil {
		return "", err
	}
	return w.opts.formatter.Format(c.Ref(), c.Value()), nil
}

// State returns the recalculation state of the cell at address.
func (w *Workbook) State(address string) (CellState, error) {
	c, err := w.CellAt(address)
	if err != nil {
		return StateClean, err
	}
	return c.state, nil
}

// Dependencies returns the cells read by the formula at address, in the
// order they first appear.
func (w *Workbook) Dependencies(address string) ([]CellRef, error) {
	c, err := w.CellAt(address)
	if err != nil {
		return nil, err
	}
	refs := make([]CellRef, len(c.deps))
	for i, d := range c.deps {
		refs[i] = w.cells[d.Cell].Ref()
	}
	return refs, nil
}

// Dependents returns the cells whose formulas read address, in sheet order.
func (w *Workbook) Dependents(address string) ([]CellRef, error) {
	c, err := w.CellAt(address)
	if err != nil {
		return nil, err
	}
	ids := w.sortByPosition(slices.Collect(maps.Keys(c.dependents)))
	refs := make([]CellRef, len(ids))
	for i, id := range ids {
		refs[i] = w.cells[id].Ref()
	}
	return refs, nil
}

// Recalculate marks every formula cell dirty and recomputes the workbook.
func (w *Workbook) Recalculate() error {
	if w.busy {
		return ErrReentrant
	}
	w.markDirty(w.expressionCells()...)
	return w.recompute()
}

func (w *Workbook) expressionCells() []CellID {
	var ids []CellID
	for _, s := range w.sheets {
		for _, id := range s.cellIDs() {
			if w.cells[id].kind == KindExpression {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// sortByPosition orders handles by sheet order, then row, then column.
func (w *Workbook) sortByPosition(ids []CellID) []CellID {
	order := make(map[*Sheet]int, len(w.sheets))
	for i, s := range w.sheets {
		order[s] = i
	}
	slices.SortFunc(ids, func(a, b CellID) int {
		ca, cb := w.cells[a], w.cells[b]
		return cmp.Or(
			cmp.Compare(order[ca.sheet], order[cb.sheet]),
			cmp.Compare(ca.row, cb.row),
			cmp.Compare(ca.col, cb.col),
		)
	})
	return ids
}
