package xlcalc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// testdataDir returns the path to the testdata directory, creating it if needed.
func testdataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join("testdata")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

// newBudgetFile builds an in-memory workbook with formulas and no cached
// values.
// Layout:
//
//	Sheet1: A1: 2      A2: 3        A3: =SUM(A1:A2)   B3: "total"
//	Other:  B2: =Sheet1!A3*2        C2: "double"
func newBudgetFile(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 2))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 3))
	require.NoError(t, f.SetCellFormula("Sheet1", "A3", "SUM(A1:A2)"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", "total"))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetCellFormula("Other", "B2", "Sheet1!A3*2"))
	require.NoError(t, f.SetCellValue("Other", "C2", "double"))
	return f
}

// createBudgetFile saves newBudgetFile to testdata and returns its path.
func createBudgetFile(t *testing.T, name string) string {
	t.Helper()
	f := newBudgetFile(t)
	defer f.Close()
	path := filepath.Join(testdataDir(t), name)
	require.NoError(t, f.SaveAs(path))
	return path
}
