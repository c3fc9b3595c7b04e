package xlcalc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=A1+1", `GET_CELL("Sheet1!A1") + 1.0`},
		{"=SUM(A1:A3)", `SUM( GET_RANGE("Sheet1!A1:A3") )`},
		{"=Other!B2*2.5", `GET_CELL("Other!B2") * 2.5`},
		{"=$A$1", `GET_CELL("Sheet1!A1")`},
		{"=A1<>B1", `GET_CELL("Sheet1!A1") != GET_CELL("Sheet1!B1")`},
		{"=A1=1", `GET_CELL("Sheet1!A1") == 1.0`},
		{"=A1>=1", `GET_CELL("Sheet1!A1") >= 1.0`},
		{`="a b"`, `"a b"`},
		{"=TRUE", `true`},
		{"=#N/A", `ERROR("#N/A")`},
		{"='My Sheet'!A1", `GET_CELL("'My Sheet'!A1")`},
		{"=MAX(A1, 2; 3)", `MAX( GET_CELL("Sheet1!A1") , 2.0 , 3.0 )`},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := Translate(tt.formula, "Sheet1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslate_If(t *testing.T) {
	got, err := Translate("=IF(A1>0,1,2)", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, `( TRUTHY( GET_CELL("Sheet1!A1") > 0.0 ) ? ( 1.0 ) : ( 2.0 ))`, got)

	got, err = Translate("=IF(A1,1)", "Sheet1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, ") : false)"), got)
}

func TestTranslate_IfArity(t *testing.T) {
	for _, f := range []string{"=IF(1)", "=IF(1,2,3,4)", "=IF()"} {
		_, err := Translate(f, "Sheet1")
		assert.ErrorIs(t, err, NameError, f)
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	a, err := Translate("=SUM(A1:B2)*IF(C1>D1, 2, 3)", "Sheet1")
	require.NoError(t, err)
	b, err := Translate("=SUM(A1:B2)*IF(C1>D1, 2, 3)", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// The output changes only where a reference changes.
	c, err := Translate("=SUM(A1:B2)*IF(C1>D2, 2, 3)", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(a, "Sheet1!D1", "Sheet1!D2", 1), c)

	// References are resolved against the owning sheet.
	d, err := Translate("=SUM(A1:B2)*IF(C1>D1, 2, 3)", "Other")
	require.NoError(t, err)
	assert.Equal(t, strings.ReplaceAll(a, "Sheet1!", "Other!"), d)
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		formula string
		kind    ErrorKind
	}{
		{"A1+1", NameError},
		{"=", NameError},
		{"=(1", NameError},
		{"=1)", NameError},
		{"=1,2", NameError},
		{"=A1 & B1", NameError},
		{"=SUM", NameError},
		{"=GET_CELL(1)", NameError},
		{"=ADD(1, 2)", NameError},
		{"=Sheet1!A1:B", ReferenceError},
		{"=#BAD", ReferenceError},
	}
	for _, tt := range tests {
		_, err := Translate(tt.formula, "Sheet1")
		assert.ErrorIs(t, err, tt.kind, tt.formula)
	}
}

func TestCompile_UnknownName(t *testing.T) {
	w := NewWorkbook()
	_, err := w.compile("=foo(1)", "Sheet1")
	assert.ErrorIs(t, err, NameError)
	_, err = w.compile("=SUM(1, 2)", "Sheet1")
	assert.NoError(t, err)
}

func TestNumberLiteral(t *testing.T) {
	assert.Equal(t, "1.0", numberLiteral("1"))
	assert.Equal(t, "2.5", numberLiteral("2.5"))
	assert.Equal(t, "0.5", numberLiteral(".5"))
	assert.Equal(t, "100000000000000000000.0", numberLiteral("100000000000000000000"))
}

func TestSettleResult(t *testing.T) {
	v, fe := settleResult(nil)
	assert.Nil(t, fe)
	assert.Equal(t, 0.0, v)

	v, fe = settleResult(3)
	assert.Nil(t, fe)
	assert.Equal(t, 3.0, v)

	_, fe = settleResult([]any{1.0})
	require.NotNil(t, fe)
	assert.Equal(t, ValueError, fe.Kind)
}
