package xlcalc

// Sheet is a named grid of pre-allocated cells. Every row has the same
// number of columns.
type Sheet struct {
	name string
	cols int
	rows [][]CellID
}

// Name returns the sheet name.
func (s *Sheet) Name() string { return s.name }

// Rows returns the number of rows.
func (s *Sheet) Rows() int { return len(s.rows) }

// Cols returns the number of columns.
func (s *Sheet) Cols() int { return s.cols }

func (s *Sheet) contains(row, col int) bool {
	return row >= 0 && row < len(s.rows) && col >= 0 && col < s.cols
}

// cellIDs returns every cell handle, row by row.
func (s *Sheet) cellIDs() []CellID {
	ids := make([]CellID, 0, len(s.rows)*s.cols)
	for _, row := range s.rows {
		ids = append(ids, row...)
	}
	return ids
}
