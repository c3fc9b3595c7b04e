package xlcalc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// CellRef is a sheet-qualified cell position. Row and Col are zero-based.
type CellRef struct {
	Sheet string
	Row   int
	Col   int
}

// NewCellRef creates a CellRef with explicit sheet, row, col.
func NewCellRef(sheet string, row, col int) CellRef {
	return CellRef{Sheet: sheet, Row: row, Col: col}
}

// String formats the CellRef as "Sheet1!A1", or "A1" if no sheet is set.
// Sheet names that the tokenizer would split are quoted: "'My Sheet'!A1".
func (c CellRef) String() string {
	if c.Sheet == "" {
		return c.CellName()
	}
	return QuoteSheet(c.Sheet) + "!" + c.CellName()
}

// CellName returns just the cell part like "A1" without sheet name.
func (c CellRef) CellName() string {
	return IndexToLetter(c.Col) + strconv.Itoa(c.Row+1)
}

// RangeRef is a rectangle between two corners on one sheet. The corners are
// kept as written; a reversed range like A10:A1 is valid.
type RangeRef struct {
	First CellRef
	Last  CellRef
}

// String formats the range as "Sheet1!A1:C5".
func (r RangeRef) String() string {
	if r.First.Sheet == "" {
		return r.First.CellName() + ":" + r.Last.CellName()
	}
	return QuoteSheet(r.First.Sheet) + "!" + r.First.CellName() + ":" + r.Last.CellName()
}

// Sheet returns the sheet the range lives on.
func (r RangeRef) Sheet() string { return r.First.Sheet }

// Bounds returns the normalized rectangle.
func (r RangeRef) Bounds() (row0, col0, row1, col1 int) {
	return min(r.First.Row, r.Last.Row), min(r.First.Col, r.Last.Col),
		max(r.First.Row, r.Last.Row), max(r.First.Col, r.Last.Col)
}

// Cells enumerates every cell of the rectangle, row by row.
func (r RangeRef) Cells() []CellRef {
	row0, col0, row1, col1 := r.Bounds()
	cells := make([]CellRef, 0, (row1-row0+1)*(col1-col0+1))
	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			cells = append(cells, NewCellRef(r.First.Sheet, row, col))
		}
	}
	return cells
}

// Contains returns true if the given cell reference is within this range.
func (r RangeRef) Contains(ref CellRef) bool {
	if ref.Sheet != r.First.Sheet {
		return false
	}
	row0, col0, row1, col1 := r.Bounds()
	return ref.Row >= row0 && ref.Row <= row1 && ref.Col >= col0 && ref.Col <= col1
}

// LetterToIndex converts a column name to a 0-based column index.
// "A"→0, "Z"→25, "AA"→26. Case-insensitive. Names past "XFD" are
// accepted; only non-letters (or an index overflowing int) fail.
func LetterToIndex(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column name: %w", ErrInvalidReference)
	}
	for i := 0; i < len(letters); i++ {
		if !isAlpha(letters[i]) {
			return 0, fmt.Errorf("invalid column name %q: %w", letters, ErrInvalidReference)
		}
	}
	if n, err := excelize.ColumnNameToNumber(letters); err == nil {
		return n - 1, nil
	}
	// past XFD excelize refuses the name; sheets here are not bounded by
	// the xlsx column limit.
	col := 0
	for i := 0; i < len(letters); i++ {
		ch := letters[i] &^ 0x20
		if col > (math.MaxInt-26)/26 {
			return 0, fmt.Errorf("column %q is too wide: %w", letters, ErrInvalidReference)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// IndexToLetter converts a 0-based column index to a column name.
// 0→"A", 25→"Z", 26→"AA", 702→"AAA"
func IndexToLetter(col int) string {
	if col < 0 {
		return ""
	}
	var buf []byte
	col++ // convert to 1-based for algorithm
	for col > 0 {
		col-- // adjust for 0-indexed letter
		buf = append(buf, byte('A'+col%26))
		col /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// IsCellReference reports whether s is a sheet-qualified single cell like
// "Sheet1!B5".
func IsCellReference(s string) bool {
	_, err := ParseCellReference(s)
	return err == nil
}

// IsRangeReference reports whether s is a sheet-qualified range like
// "Sheet1!A1:B5".
func IsRangeReference(s string) bool {
	_, err := ParseRangeReference(s)
	return err == nil
}

// ParseCellReference parses "Sheet1!B5" (or "'My Sheet'!$B$5").
func ParseCellReference(s string) (CellRef, error) {
	sheet, rest, ok := splitSheet(s)
	if !ok {
		return CellRef{}, fmt.Errorf("cell reference %q has no sheet: %w", s, ErrInvalidReference)
	}
	row, col, err := parseCellName(rest)
	if err != nil {
		return CellRef{}, fmt.Errorf("invalid cell reference %q: %w", s, err)
	}
	return NewCellRef(sheet, row, col), nil
}

// ParseRangeReference parses "Sheet1!A1:C5". The second corner may repeat the
// same sheet qualifier ("Sheet1!A1:Sheet1!C5"). Corners are not reordered.
func ParseRangeReference(s string) (RangeRef, error) {
	sheet, rest, ok := splitSheet(s)
	if !ok {
		return RangeRef{}, fmt.Errorf("range reference %q has no sheet: %w", s, ErrInvalidReference)
	}
	first, last, found := strings.Cut(rest, ":")
	if !found {
		return RangeRef{}, fmt.Errorf("invalid range reference (missing ':') %q: %w", s, ErrInvalidReference)
	}
	if strings.ContainsRune(last, '!') {
		sheet2, rest2, ok := splitSheet(last)
		if !ok || sheet2 != sheet {
			return RangeRef{}, fmt.Errorf("range %q spans sheets: %w", s, ErrInvalidReference)
		}
		last = rest2
	}
	row0, col0, err := parseCellName(first)
	if err != nil {
		return RangeRef{}, fmt.Errorf("invalid range reference %q: %w", s, err)
	}
	row1, col1, err := parseCellName(last)
	if err != nil {
		return RangeRef{}, fmt.Errorf("invalid range reference %q: %w", s, err)
	}
	return RangeRef{First: NewCellRef(sheet, row0, col0), Last: NewCellRef(sheet, row1, col1)}, nil
}

// Qualify prefixes an unqualified reference ("A1", "A1:B2") with sheet.
// Qualified references are returned unchanged.
func Qualify(sheet, s string) string {
	if _, _, ok := splitSheet(s); ok {
		return s
	}
	return QuoteSheet(sheet) + "!" + s
}

// hasSheet reports whether s carries a sheet qualifier.
func hasSheet(s string) bool {
	_, _, ok := splitSheet(s)
	return ok
}

// QuoteSheet quotes a sheet name when it could not be read back as a single
// formula identifier.
func QuoteSheet(name string) string {
	if name == "" {
		return name
	}
	plain := true
	for i, r := range name {
		if i == 0 && unicode.IsDigit(r) {
			plain = false
			break
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// splitSheet separates "Sheet!rest". Quoted names ('My Sheet'!A1) are
// unquoted; an empty sheet name is not a qualifier.
func splitSheet(s string) (sheet, rest string, ok bool) {
	if strings.HasPrefix(s, "'") {
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] != '\'' {
				b.WriteByte(s[i])
				continue
			}
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			if i+1 < len(s) && s[i+1] == '!' && b.Len() > 0 {
				return b.String(), s[i+2:], true
			}
			return "", s, false
		}
		return "", s, false
	}
	idx := strings.IndexByte(s, '!')
	if idx <= 0 {
		return "", s, false
	}
	return s[:idx], s[idx+1:], true
}

// parseCellName parses "A1" (or "$A$1") into row=0, col=0.
func parseCellName(name string) (row, col int, err error) {
	name = strings.ReplaceAll(name, "$", "")
	i := 0
	for i < len(name) && isAlpha(name[i]) {
		i++
	}
	if i == 0 || i == len(name) {
		return 0, 0, fmt.Errorf("invalid cell name %q: %w", name, ErrInvalidReference)
	}
	col, err = LetterToIndex(name[:i])
	if err != nil {
		return 0, 0, err
	}
	rowStr := name[i:]
	for j := 0; j < len(rowStr); j++ {
		if rowStr[j] < '0' || rowStr[j] > '9' {
			return 0, 0, fmt.Errorf("invalid row in cell name %q: %w", name, ErrInvalidReference)
		}
	}
	rowNum, err := strconv.Atoi(rowStr)
	if err != nil || rowNum < 1 {
		return 0, 0, fmt.Errorf("invalid row number in cell name %q: %w", name, ErrInvalidReference)
	}
	return rowNum - 1, col, nil // convert 1-based row to 0-based
}

// isLocalCellName reports whether s is an unqualified "A1"-style name.
func isLocalCellName(s string) bool {
	_, _, err := parseCellName(s)
	return err == nil
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
