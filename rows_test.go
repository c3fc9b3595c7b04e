package xlcalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveCells(w *Workbook) int {
	n := 0
	for _, c := range w.cells {
		if c != nil {
			n++
		}
	}
	return n
}

func TestRemoveRow_ReferenceBecomesRefError(t *testing.T) {
	w := NewWorkbook()
	require.NoError(t, w.AddSheet("Sheet1", 3, 3))
	require.NoError(t, w.AddSheet("Sheet2", 3, 3))
	require.NoError(t, w.SetBatch(map[string]string{
		"Sheet1!A1": "=Sheet2!B1",
		"Sheet2!B1": "=C1",
		"Sheet2!C1": "4",
	}))
	require.Equal(t, 4.0, numberAt(t, w, "Sheet1!A1"))

	require.NoError(t, w.RemoveRow("Sheet2", 0))
	a1 := cellAt(t, w, "Sheet1!A1")
	assert.Equal(t, "=#REF!", a1.Formula())
	assert.Equal(t, ReferenceError, errorAt(t, w, "Sheet1!A1"))
	assert.Empty(t, a1.deps)
	assertGraphConsistent(t, w)

	s, _ := w.Sheet("Sheet2")
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, 15, liveCells(w))
}

func TestRemoveRow_NoDanglingEdges(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!A1": "=B2",
		"Sheet1!B2": "=C3",
		"Sheet1!C2": "=B2*2",
		"Sheet1!C3": "5",
	})
	require.Equal(t, 5.0, numberAt(t, w, "Sheet1!A1"))

	require.NoError(t, w.RemoveRow("Sheet1", 1))
	assert.Equal(t, "=#REF!", cellAt(t, w, "Sheet1!A1").Formula())
	assert.Equal(t, ReferenceError, errorAt(t, w, "Sheet1!A1"))

	// C3 moved up to C2 and nothing reads it any more.
	c := cellAt(t, w, "Sheet1!C2")
	assert.Equal(t, "5", c.Formula())
	assert.Empty(t, c.dependents)
	assertGraphConsistent(t, w)
}

func TestRemoveRow_ShiftsReferences(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!B1": "1",
		"Sheet1!B2": "2",
		"Sheet1!B3": "3",
		"Sheet1!B4": "4",
		"Sheet1!C5": "=B4*2",
		"Sheet1!C6": "=SUM(B1:B2)",
		"Sheet1!C7": "=SUM(B1:B4)",
		"Sheet1!C8": "=Sheet1!$B$4+B1",
	})
	require.NoError(t, w.RemoveRow("Sheet1", 2))

	assert.Equal(t, "=B3*2", cellAt(t, w, "Sheet1!C4").Formula())
	assert.Equal(t, 8.0, numberAt(t, w, "Sheet1!C4"))
	assert.Equal(t, "=SUM(B1:B2)", cellAt(t, w, "Sheet1!C5").Formula())
	assert.Equal(t, 3.0, numberAt(t, w, "Sheet1!C5"))
	assert.Equal(t, "=SUM(#REF!)", cellAt(t, w, "Sheet1!C6").Formula())
	assert.Equal(t, ReferenceError, errorAt(t, w, "Sheet1!C6"))
	assert.Equal(t, "=Sheet1!B3+B1", cellAt(t, w, "Sheet1!C7").Formula())
	assert.Equal(t, 5.0, numberAt(t, w, "Sheet1!C7"))

	s, _ := w.Sheet("Sheet1")
	assert.Equal(t, 9, s.Rows())
	assertGraphConsistent(t, w)
}

func TestAddRow(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!B1": "1",
		"Sheet1!B2": "2",
		"Sheet1!C1": "=SUM(B1:B2)",
		"Sheet1!C2": "=$B$2*10",
	})
	require.NoError(t, w.AddSheet("Sheet2", 1, 1))
	require.NoError(t, w.Set("Sheet2!A1", "=Sheet1!B2+1"))

	require.NoError(t, w.AddRow("Sheet1", 1))

	assert.Equal(t, "=SUM(B1:B3)", cellAt(t, w, "Sheet1!C1").Formula())
	assert.Equal(t, 3.0, numberAt(t, w, "Sheet1!C1"))
	assert.Equal(t, "=B3*10", cellAt(t, w, "Sheet1!C3").Formula())
	assert.Equal(t, 20.0, numberAt(t, w, "Sheet1!C3"))
	assert.Equal(t, "=Sheet1!B3+1", cellAt(t, w, "Sheet2!A1").Formula())
	assert.Equal(t, 3.0, numberAt(t, w, "Sheet2!A1"))

	// the new row is empty and part of the sheet
	for col := range 5 {
		c, err := w.Cell("Sheet1", 1, col)
		require.NoError(t, err)
		assert.Equal(t, KindEmpty, c.Kind())
		assert.Equal(t, 1, c.Ref().Row)
	}
	s, _ := w.Sheet("Sheet1")
	assert.Equal(t, 11, s.Rows())

	// a value written into the new row is picked up by the widened range
	require.NoError(t, w.Set("Sheet1!B2", "10"))
	assert.Equal(t, 13.0, numberAt(t, w, "Sheet1!C1"))
	assertGraphConsistent(t, w)
}

func TestAddRow_Append(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{"Sheet1!A1": "=A10"})
	require.NoError(t, w.AddRow("Sheet1", 10))
	assert.Equal(t, "=A10", cellAt(t, w, "Sheet1!A1").Formula())
	require.NoError(t, w.Set("Sheet1!A11", "3"))
	assert.Equal(t, 0.0, numberAt(t, w, "Sheet1!A1"))
}

func TestRowBounds(t *testing.T) {
	w := newTestWorkbook(t, nil)
	assert.ErrorIs(t, w.AddRow("Sheet1", 11), ErrOutOfBounds)
	assert.ErrorIs(t, w.AddRow("Sheet1", -1), ErrOutOfBounds)
	assert.ErrorIs(t, w.RemoveRow("Sheet1", 10), ErrOutOfBounds)
	assert.ErrorIs(t, w.RemoveRow("Nope", 0), ErrSheetNotFound)
}

func TestRemoveSheet(t *testing.T) {
	w := NewWorkbook()
	require.NoError(t, w.AddSheet("Sheet1", 2, 2))
	require.NoError(t, w.AddSheet("Sheet2", 2, 2))
	require.NoError(t, w.SetBatch(map[string]string{
		"Sheet1!A1": "=Sheet2!A1*2",
		"Sheet1!B1": "=A1+1",
		"Sheet2!A1": "5",
		"Sheet2!B1": "=Sheet1!B2",
	}))
	require.Equal(t, 10.0, numberAt(t, w, "Sheet1!A1"))

	require.NoError(t, w.RemoveSheet("Sheet2"))
	assert.Equal(t, []string{"Sheet1"}, w.Sheets())
	assert.Equal(t, "=#REF!*2", cellAt(t, w, "Sheet1!A1").Formula())
	assert.Equal(t, ReferenceError, errorAt(t, w, "Sheet1!A1"))
	assert.Equal(t, ReferenceError, errorAt(t, w, "Sheet1!B1"))
	assert.Empty(t, cellAt(t, w, "Sheet1!B2").dependents)
	assert.Equal(t, 4, liveCells(w))
	assertGraphConsistent(t, w)

	assert.ErrorIs(t, w.RemoveSheet("Sheet2"), ErrSheetNotFound)
	_, err := w.Get("Sheet2!A1")
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestRewriteReferences(t *testing.T) {
	insert := rowInsert{sheet: "Sheet1", index: 1}
	removal := rowRemoval{sheet: "Sheet1", index: 1}
	tests := []struct {
		name    string
		formula string
		sheet   string
		m       refRewrite
		want    string
		changed bool
	}{
		{"literal", "42", "Sheet1", insert, "42", false},
		{"above the insert", "=A1+1", "Sheet1", insert, "=A1+1", false},
		{"below the insert", "=A2+A3", "Sheet1", insert, "=A3+A4", true},
		{"other sheet unaffected", "=A2", "Sheet2", insert, "=A2", false},
		{"qualified from other sheet", "=Sheet1!A2", "Sheet2", insert, "=Sheet1!A3", true},
		{"range grows", "=SUM(A1:A5)", "Sheet1", insert, "=SUM(A1:A6)", true},
		{"removed cell", "=A2*2", "Sheet1", removal, "=#REF!*2", true},
		{"moved up", "=A3 + A1", "Sheet1", removal, "=A2 + A1", true},
		{"range covering removed row", "=SUM(A1:B3)", "Sheet1", removal, "=SUM(#REF!)", true},
		{"range below removed row", "=SUM(A3:A4)", "Sheet1", removal, "=SUM(A2:A3)", true},
		{"strings untouched", `="A2"&A2`, "Sheet1", removal, `="A2"&#REF!`, true},
		{"sheet removal", "=Sheet2!A1+A1", "Sheet1", sheetRemoval{sheet: "Sheet2"}, "=#REF!+A1", true},
		{"quoted sheet", "='My Sheet'!A2", "Sheet1", rowInsert{sheet: "My Sheet", index: 0}, "='My Sheet'!A3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := rewriteReferences(tt.formula, tt.sheet, tt.m)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}
