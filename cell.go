package xlcalc

import (
	"math"
	"strconv"
	"strings"
)

// CellID is a handle into the workbook's cell arena.
type CellID int

// FormulaKind classifies the text stored in a cell.
type FormulaKind int

const (
	KindEmpty FormulaKind = iota
	KindNumber
	KindString
	KindExpression
)

func (k FormulaKind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindExpression:
		return "Expression"
	default:
		return "Empty"
	}
}

// CellState is the recalculation state of a cell.
type CellState int

const (
	StateClean CellState = iota
	StateDirty
	StateEvaluating
	StateError
)

func (s CellState) String() string {
	switch s {
	case StateDirty:
		return "Dirty"
	case StateEvaluating:
		return "Evaluating"
	case StateError:
		return "Error"
	default:
		return "Clean"
	}
}

// Dependency is one outgoing edge: the reference text as resolved from the
// formula and the cell it points at. Cells pulled in through a range share
// the range's text.
type Dependency struct {
	Ref  string
	Cell CellID
}

// Cell is a single addressable unit of a sheet.
type Cell struct {
	id    CellID
	sheet *Sheet
	row   int
	col   int

	formula string
	kind    FormulaKind
	value   any // nil, float64, string or bool
	err     *FormulaError
	state   CellState

	program  *Program
	buildErr *FormulaError // reference or compile failure found when the formula was set

	deps       []*Dependency
	dependents map[CellID]struct{}
}

func newCell(id CellID, sheet *Sheet, row, col int) *Cell {
	return &Cell{
		id:         id,
		sheet:      sheet,
		row:        row,
		col:        col,
		dependents: make(map[CellID]struct{}),
	}
}

// ID returns the arena handle of the cell.
func (c *Cell) ID() CellID { return c.id }

// Ref returns the current address of the cell.
func (c *Cell) Ref() CellRef { return NewCellRef(c.sheet.name, c.row, c.col) }

// Formula returns the raw text last assigned to the cell.
func (c *Cell) Formula() string { return c.formula }

// Kind returns how the cell text was classified.
func (c *Cell) Kind() FormulaKind { return c.kind }

// State returns the recalculation state.
func (c *Cell) State() CellState { return c.state }

// Err returns the settled error, or nil.
func (c *Cell) Err() *FormulaError { return c.err }

// Value returns the computed value.
func (c *Cell) Value() Value {
	if c.state == StateError && c.err != nil {
		return Value{Type: TypeError, Err: c.err.Kind}
	}
	return valueOf(c.value)
}

// Program returns the compiled formula, nil for literals and cells whose
// formula could not be built.
func (c *Cell) Program() *Program { return c.program }

// setText classifies raw text and stores literal values directly.
func (c *Cell) setText(text string) {
	c.formula = text
	c.program = nil
	c.buildErr = nil
	switch {
	case text == "":
		c.kind = KindEmpty
		c.value = nil
	case strings.HasPrefix(text, "="):
		c.kind = KindExpression
	default:
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			c.kind = KindNumber
			c.value = f
		} else {
			c.kind = KindString
			c.value = text
		}
	}
}

// ValueType tags the variant held by a Value.
type ValueType int

const (
	TypeBlank ValueType = iota
	TypeNumber
	TypeText
	TypeBool
	TypeError
)

func (t ValueType) String() string {
	switch t {
	case TypeNumber:
		return "Number"
	case TypeText:
		return "Text"
	case TypeBool:
		return "Bool"
	case TypeError:
		return "Error"
	default:
		return "Blank"
	}
}

// Value is a computed cell value or the error code that replaced it.
type Value struct {
	Type   ValueType
	Number float64
	Text   string
	Bool   bool
	Err    ErrorKind
}

// IsError reports whether the value is an error code.
func (v Value) IsError() bool { return v.Type == TypeError }

// String renders the value in general format.
func (v Value) String() string {
	switch v.Type {
	case TypeNumber:
		return formatNumber(v.Number)
	case TypeText:
		return v.Text
	case TypeBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case TypeError:
		return v.Err.Code()
	default:
		return ""
	}
}

// Any returns the value as a plain Go value: nil, float64, string, bool or
// the error code string.
func (v Value) Any() any {
	switch v.Type {
	case TypeNumber:
		return v.Number
	case TypeText:
		return v.Text
	case TypeBool:
		return v.Bool
	case TypeError:
		return v.Err.Code()
	default:
		return nil
	}
}

func valueOf(x any) Value {
	switch t := x.(type) {
	case float64:
		return Value{Type: TypeNumber, Number: t}
	case string:
		return Value{Type: TypeText, Text: t}
	case bool:
		return Value{Type: TypeBool, Bool: t}
	default:
		return Value{Type: TypeBlank}
	}
}

// formatNumber prints whole and short fractional numbers without an
// exponent and falls back to %g for very large or small magnitudes.
func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e15 || abs < 1e-9) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
