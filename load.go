package xlcalc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned by Open for files it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// layout collects the sheets and extents needed to hold a set of cells and
// the cells their formulas reference.
type layout struct {
	order    []string
	size     map[string][2]int // rows, cols
	maxCells int
}

func newLayout(opts []Option) *layout {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &layout{size: make(map[string][2]int), maxCells: o.maxCells}
}

func (l *layout) sheet(name string) {
	if _, ok := l.size[name]; !ok {
		l.order = append(l.order, name)
		l.size[name] = [2]int{}
	}
}

func (l *layout) grow(ref CellRef) {
	l.sheet(ref.Sheet)
	s := l.size[ref.Sheet]
	l.size[ref.Sheet] = [2]int{max(s[0], ref.Row+1), max(s[1], ref.Col+1)}
}

// growFormula extends sheets that already exist to cover the references of
// a formula. References to unknown sheets, and references that would make a
// sheet larger than maxCells, are left to fail as #REF!.
func (l *layout) growFormula(sheet, text string) {
	if !strings.HasPrefix(text, "=") {
		return
	}
	for _, tok := range Tokenize(text[1:]) {
		if !tok.IsIdentifier() {
			continue
		}
		ref := classifyReference(tok.Text, sheet)
		switch ref.kind {
		case refCell:
			l.growWithin(ref.cell.Sheet, ref.cell.Row, ref.cell.Col)
		case refRange:
			_, _, row1, col1 := ref.area.Bounds()
			l.growWithin(ref.area.Sheet(), row1, col1)
		}
	}
}

// growWithin grows an existing sheet to hold (row, col) unless that would
// exceed the cell budget.
func (l *layout) growWithin(sheet string, row, col int) {
	s, ok := l.size[sheet]
	if !ok {
		return
	}
	rows, cols := max(s[0], row+1), max(s[1], col+1)
	if rows > l.maxCells/cols {
		return
	}
	l.size[sheet] = [2]int{rows, cols}
}

// check rejects sheets that the cells themselves made too large.
func (l *layout) check() error {
	for _, name := range l.order {
		s := l.size[name]
		if s[1] > 0 && s[0] > l.maxCells/s[1] {
			return fmt.Errorf("sheet %q needs %dx%d cells, limit is %d: %w", name, s[0], s[1], l.maxCells, ErrOutOfBounds)
		}
	}
	return nil
}

// build creates the workbook, adds the sheets and assigns every cell in one
// batch.
func (l *layout) build(cells map[string]string, opts []Option) (*Workbook, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	w := NewWorkbook(opts...)
	for _, name := range l.order {
		s := l.size[name]
		if err := w.AddSheet(name, s[0], s[1]); err != nil {
			return nil, err
		}
	}
	if err := w.SetBatch(cells); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadJSON reads an address map such as {"Sheet1!A1": "=B1+1", "Sheet1!B1": 2}
// and returns the recalculated workbook. Sheets are sized to fit every
// address and every reference into a sheet that appears in the map.
func LoadJSON(r io.Reader, opts ...Option) (*Workbook, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode workbook JSON: %w", err)
	}
	cells := make(map[string]string, len(raw))
	refs := make(map[string]CellRef, len(raw))
	l := newLayout(opts)
	for addr, v := range raw {
		ref, err := ParseCellReference(addr)
		if err != nil {
			return nil, fmt.Errorf("workbook JSON: %w", err)
		}
		text, err := jsonCellText(v)
		if err != nil {
			return nil, fmt.Errorf("workbook JSON %s: %w", addr, err)
		}
		cells[addr] = text
		refs[addr] = ref
	}
	for _, addr := range slices.Sorted(maps.Keys(refs)) {
		l.grow(refs[addr])
	}
	for _, addr := range slices.Sorted(maps.Keys(cells)) {
		l.growFormula(refs[addr].Sheet, cells[addr])
	}
	return l.build(cells, opts)
}

func jsonCellText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		if x {
			return "=TRUE", nil
		}
		return "=FALSE", nil
	default:
		return "", fmt.Errorf("unsupported cell value %T", v)
	}
}

// LoadExcelize reads every sheet of an open excelize file. Formula cells
// keep their formula; other cells take their raw value.
func LoadExcelize(f *excelize.File, opts ...Option) (*Workbook, error) {
	cells := make(map[string]string)
	refs := make(map[string]CellRef)
	l := newLayout(opts)
	for _, sheet := range f.GetSheetList() {
		l.sheet(sheet)
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		nrows, ncols := len(rows), 0
		for _, row := range rows {
			ncols = max(ncols, len(row))
		}
		if dim, err := f.GetSheetDimension(sheet); err == nil && dim != "" {
			_, last, _ := strings.Cut(dim, ":")
			if last == "" {
				last = dim
			}
			if col, row, err := excelize.CellNameToCoordinates(last); err == nil {
				nrows, ncols = max(nrows, row), max(ncols, col)
			}
		}
		if ncols > 0 && nrows > l.maxCells/ncols {
			return nil, fmt.Errorf("sheet %q spans %dx%d cells, limit is %d: %w", sheet, nrows, ncols, l.maxCells, ErrOutOfBounds)
		}
		for r := 0; r < nrows; r++ {
			for c := 0; c < ncols; c++ {
				ref := NewCellRef(sheet, r, c)
				name := ref.CellName()
				text := ""
				if formula, err := f.GetCellFormula(sheet, name); err == nil && formula != "" {
					text = "=" + strings.TrimPrefix(formula, "=")
				} else if r < len(rows) && c < len(rows[r]) {
					text = rows[r][c]
				}
				l.grow(ref)
				if text == "" {
					continue
				}
				addr := ref.String()
				cells[addr] = text
				refs[addr] = ref
			}
		}
	}
	for _, addr := range slices.Sorted(maps.Keys(cells)) {
		l.growFormula(refs[addr].Sheet, cells[addr])
	}
	return l.build(cells, opts)
}

// OpenXLSX reads an .xlsx workbook from disk.
func OpenXLSX(path string, opts ...Option) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return LoadExcelize(f, opts...)
}

// Open reads a workbook from a .json address map or an .xlsx/.xlsm file.
func Open(path string, opts ...Option) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		return LoadJSON(f, opts...)
	case ".xlsx", ".xlsm":
		return OpenXLSX(path, opts...)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}
