package xlcalc

import (
	"fmt"
	"strings"

	"github.com/xuri/efp"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // Formula cannot produce a value
	SeverityWarning                 // Formula evaluates but likely not as intended
)

// ValidationIssue represents a single problem found in a formula cell.
type ValidationIssue struct {
	Severity Severity
	CellRef  CellRef
	Message  string
}

// String formats the issue as "[ERROR] Sheet1!A2: message" or "[WARN] ...".
func (v ValidationIssue) String() string {
	sev := "ERROR"
	if v.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s", sev, v.CellRef, v.Message)
}

// Validate lints every formula in the workbook: structure as read by the
// efp Excel formula parser, references and syntax as built by the engine,
// and the error each cell settled in. Issues are returned in sheet order.
func (w *Workbook) Validate() []ValidationIssue {
	var issues []ValidationIssue
	for _, id := range w.expressionCells() {
		c := w.cells[id]
		issues = append(issues, checkFormulaStructure(c.Ref(), c.formula)...)
		issues = append(issues, checkFunctionCase(c.Ref(), c.formula)...)
		issues = append(issues, checkCellError(c)...)
	}
	return issues
}

// checkFormulaStructure tokenizes with efp and reports tokens it cannot
// classify and unbalanced function or group brackets.
func checkFormulaStructure(ref CellRef, formula string) (issues []ValidationIssue) {
	defer func() {
		if r := recover(); r != nil {
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				CellRef:  ref,
				Message:  fmt.Sprintf("formula %q cannot be parsed: %v", formula, r),
			})
		}
	}()
	ps := efp.ExcelParser()
	depth := 0
	for _, tok := range ps.Parse(formula) {
		switch {
		case tok.TType == efp.TokenTypeUnknown:
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				CellRef:  ref,
				Message:  fmt.Sprintf("unrecognized token %q in %q", tok.TValue, formula),
			})
		case tok.TSubType == efp.TokenSubTypeStart:
			depth++
		case tok.TSubType == efp.TokenSubTypeStop:
			depth--
		}
	}
	if depth != 0 {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			CellRef:  ref,
			Message:  fmt.Sprintf("unbalanced parentheses in %q", formula),
		})
	}
	return issues
}

// checkFunctionCase warns about builtins written in the wrong case, which
// the engine treats as unknown names.
func checkFunctionCase(ref CellRef, formula string) []ValidationIssue {
	var issues []ValidationIssue
	toks := Tokenize(strings.TrimPrefix(formula, "="))
	for i, tok := range toks {
		if !tok.IsIdentifier() || i+1 >= len(toks) || toks[i+1].Text != "(" {
			continue
		}
		upper := strings.ToUpper(tok.Text)
		if upper != tok.Text && functionNames[upper] {
			issues = append(issues, ValidationIssue{
				Severity: SeverityWarning,
				CellRef:  ref,
				Message:  fmt.Sprintf("function names are case-sensitive: %s is not %s", tok.Text, upper),
			})
		}
	}
	return issues
}

// checkCellError reports the error a formula settled in. Errors inherited
// from another cell are reported only at their source.
func checkCellError(c *Cell) []ValidationIssue {
	if c.state != StateError || c.err == nil {
		return nil
	}
	inherited := c.buildErr == nil && c.err.Ref != "" && c.err.Err == nil
	if inherited && c.err.Kind != CircularReference {
		return nil
	}
	sev := SeverityWarning
	switch c.err.Kind {
	case ReferenceError, NameError, CircularReference:
		sev = SeverityError
	}
	msg := fmt.Sprintf("%s evaluates to %s", c.formula, c.err.Kind.Code())
	if c.err.Err != nil {
		msg += ": " + c.err.Err.Error()
	} else if c.err.Ref != "" {
		msg += " (" + c.err.Ref + ")"
	}
	return []ValidationIssue{{Severity: sev, CellRef: c.Ref(), Message: msg}}
}
