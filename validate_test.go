package xlcalc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuesFor(issues []ValidationIssue, addr string) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range issues {
		if issue.CellRef.String() == addr {
			out = append(out, issue)
		}
	}
	return out
}

func TestValidate_CleanWorkbook(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!A1": "1",
		"Sheet1!B1": "=SUM(A1:A3)*2",
		"Sheet1!C1": `=IF(B1>1, "big", "small")`,
	})
	assert.Empty(t, w.Validate())
}

func TestValidate_DivisionByZeroIsWarning(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!A1": "=1/0",
		"Sheet1!B1": "=A1+1",
	})
	issues := w.Validate()
	require.Len(t, issues, 1, "errors inherited from A1 are reported only at A1")
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Sheet1!A1", issues[0].CellRef.String())
	assert.Contains(t, issues[0].Message, "#DIV/0!")
}

func TestValidate_BrokenReference(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{"Sheet1!A1": "=Nope!A1+1"})
	issues := issuesFor(w.Validate(), "Sheet1!A1")
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "#REF!")
	assert.Contains(t, issues[0].Message, "Nope!A1")
}

func TestValidate_Cycle(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{
		"Sheet1!A1": "=B1",
		"Sheet1!B1": "=A1",
	})
	issues := w.Validate()
	require.Len(t, issues, 2)
	for _, issue := range issues {
		assert.Equal(t, SeverityError, issue.Severity)
		assert.Contains(t, issue.Message, "#CIRCULAR!")
	}
}

func TestValidate_FunctionCase(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{"Sheet1!A1": "=sum(B1:B2)"})
	issues := issuesFor(w.Validate(), "Sheet1!A1")
	require.Len(t, issues, 2)

	var warned bool
	for _, issue := range issues {
		if issue.Severity == SeverityWarning {
			warned = true
			assert.Contains(t, issue.Message, "sum is not SUM")
		} else {
			assert.Contains(t, issue.Message, "#NAME?")
		}
	}
	assert.True(t, warned)
}

func TestValidate_UnbalancedParentheses(t *testing.T) {
	w := newTestWorkbook(t, map[string]string{"Sheet1!A1": "=SUM(1,2"})
	issues := issuesFor(w.Validate(), "Sheet1!A1")
	var found bool
	for _, issue := range issues {
		assert.Equal(t, SeverityError, issue.Severity)
		found = found || strings.Contains(issue.Message, "unbalanced parentheses")
	}
	assert.True(t, found, "issues: %v", issues)
}

func TestValidate_IssueOrder(t *testing.T) {
	w := NewWorkbook()
	require.NoError(t, w.AddSheet("A", 2, 2))
	require.NoError(t, w.AddSheet("B", 2, 2))
	require.NoError(t, w.SetBatch(map[string]string{
		"B!A1": "=1/0",
		"A!B2": "=#N/A",
		"A!A1": "=X!A1",
	}))
	var refs []string
	for _, issue := range w.Validate() {
		refs = append(refs, issue.CellRef.String())
	}
	assert.Equal(t, []string{"A!A1", "A!B2", "B!A1"}, refs)
}

func TestValidate_IssueString(t *testing.T) {
	issue := ValidationIssue{
		Severity: SeverityError,
		CellRef:  NewCellRef("Sheet1", 1, 0),
		Message:  "=Nope!A1 evaluates to #REF!",
	}
	assert.Equal(t, "[ERROR] Sheet1!A2: =Nope!A1 evaluates to #REF!", issue.String())

	issue.Severity = SeverityWarning
	assert.True(t, strings.HasPrefix(issue.String(), "[WARN] "))
}
