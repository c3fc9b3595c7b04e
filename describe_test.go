package xlcalc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!A1": "=B1+C1",
		"Sheet1!B1": "2",
		"Sheet1!C1": "3",
		"Sheet1!D1": "=SUM(B1:C1)",
	})
	out := w.Describe()

	assert.True(t, strings.HasPrefix(out, "Workbook: 1 sheet(s)\n"))
	assert.Contains(t, out, "Sheet1 (10x5)")
	assert.Contains(t, out, "  A1: =B1+C1 -> 5 [Clean]")
	assert.Contains(t, out, "    reads: Sheet1!B1, Sheet1!C1")
	assert.Contains(t, out, "  B1: 2 -> 2 [Clean]\n    read by: Sheet1!A1, Sheet1!D1")
	assert.Contains(t, out, "    reads: Sheet1!B1:C1\n")
	assert.NotContains(t, out, "E1:")
}

func TestDescribe_Errors(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!A1": "=1/0",
		"Sheet1!B1": "=A1",
	})
	out := w.Describe()
	assert.Contains(t, out, "  A1: =1/0 -> #DIV/0! [Error]")
	assert.Contains(t, out, "  B1: =A1 -> #DIV/0! [Error]\n    error from: Sheet1!A1")
}

func TestDescribe_OrderFollowsSheets(t *testing.T) {
	w := NewWorkbook()
	require.NoError(t, w.AddSheet("Zeta", 1, 1))
	require.NoError(t, w.AddSheet("My Sheet", 1, 1))
	require.NoError(t, w.Set("My Sheet!A1", "=Zeta!A1"))
	out := w.Describe()

	zeta := strings.Index(out, "Zeta (1x1)")
	mine := strings.Index(out, "'My Sheet' (1x1)")
	require.GreaterOrEqual(t, zeta, 0)
	require.GreaterOrEqual(t, mine, 0)
	assert.Less(t, zeta, mine)
	assert.Contains(t, out, "read by: 'My Sheet'!A1")
}
