package xlcalc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// Program is a compiled formula. Source is the expr program the formula was
// translated to; it depends only on the formula text and its owning sheet.
type Program struct {
	Source  string
	program *vm.Program
}

// Names of the runtime surface formulas are translated against. Formulas may
// not use them directly.
const (
	fnGetCell  = "GET_CELL"
	fnGetRange = "GET_RANGE"
	fnTruthy   = "TRUTHY"
	fnError    = "ERROR"
)

var operatorFuncs = map[string]string{
	"+":  "ADD",
	"-":  "SUB",
	"*":  "MUL",
	"/":  "DIV",
	"==": "EQ",
	"!=": "NE",
	"<":  "LT",
	"<=": "LE",
	">":  "GT",
	">=": "GE",
}

var unaryFuncs = map[string]string{
	"-": "NEG",
	"+": "POS",
}

func isReservedName(name string) bool {
	switch name {
	case fnGetCell, fnGetRange, fnTruthy, fnError:
		return true
	}
	for _, fn := range operatorFuncs {
		if fn == name {
			return true
		}
	}
	for _, fn := range unaryFuncs {
		if fn == name {
			return true
		}
	}
	return false
}

// compile translates a formula ("=..." text) owned by sheet into an expr
// program bound to this workbook's runtime. Failures are NameError.
func (w *Workbook) compile(formula, sheet string) (*Program, error) {
	src, err := Translate(formula, sheet)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(src, w.compileOpts...)
	if err != nil {
		return nil, newFormulaError(NameError, "", fmt.Errorf("compile %q: %w", formula, err))
	}
	return &Program{Source: src, program: prog}, nil
}

// ifFrame tracks an open IF( call while translating.
type ifFrame struct {
	isIf bool
	args int // separators seen at this depth
}

// Translate rewrites a formula into expr source against the runtime surface:
// references become GET_CELL/GET_RANGE calls with their sheet-qualified
// text, IF becomes a lazy ternary and spreadsheet operators become their
// expr spelling. Operator semantics are applied later by an AST patch.
func Translate(formula, sheet string) (string, error) {
	body, ok := strings.CutPrefix(formula, "=")
	if !ok {
		return "", newFormulaError(NameError, "", fmt.Errorf("formula %q does not start with '='", formula))
	}
	tokens := Tokenize(body)
	var (
		out    []string
		frames []ifFrame
		fail   = func(format string, args ...any) (string, error) {
			return "", newFormulaError(NameError, "", fmt.Errorf(format, args...))
		}
	)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case TokenValue:
			switch tok.Sub {
			case SubNumber:
				out = append(out, numberLiteral(tok.Text))
			case SubString:
				text := strings.TrimPrefix(tok.Text, `"`)
				text = strings.TrimSuffix(text, `"`)
				out = append(out, strconv.Quote(text))
			default:
				s, err := translateIdentifier(tok.Text, sheet)
				if err != nil {
					return "", err
				}
				out = append(out, s)
			}

		case TokenFunction:
			if i+1 >= len(tokens) || tokens[i+1].Text != "(" {
				return fail("function %s used without arguments", tok.Text)
			}
			i++
			if tok.Text == "IF" {
				frames = append(frames, ifFrame{isIf: true})
				out = append(out, "(", fnTruthy+"(")
				continue
			}
			frames = append(frames, ifFrame{})
			out = append(out, tok.Text+"(")

		case TokenParen:
			if tok.Text == "(" {
				frames = append(frames, ifFrame{})
				out = append(out, "(")
				continue
			}
			if len(frames) == 0 {
				return fail("unbalanced ')' at %d", tok.Pos)
			}
			f := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			if !f.isIf {
				out = append(out, ")")
				continue
			}
			switch f.args {
			case 1:
				out = append(out, ") : false)")
			case 2:
				out = append(out, "))")
			default:
				return fail("IF takes 2 or 3 arguments")
			}

		case TokenSeparator:
			if len(frames) == 0 {
				return fail("argument separator outside a function call at %d", tok.Pos)
			}
			f := &frames[len(frames)-1]
			if !f.isIf {
				out = append(out, ",")
				continue
			}
			switch f.args {
			case 0:
				out = append(out, ") ? (")
			case 1:
				out = append(out, ") : (")
			default:
				return fail("IF takes 2 or 3 arguments")
			}
			f.args++

		case TokenOperator:
			op := tok.Text
			if i+1 < len(tokens) {
				next := tokens[i+1]
				adjacent := next.Kind == TokenOperator && next.Pos == tok.Pos+len(tok.Text)
				switch {
				case adjacent && op == "<" && next.Text == ">":
					op, i = "!=", i+1
				case adjacent && (op == "<" || op == ">") && next.Text == "=":
					op, i = op+"=", i+1
				}
			}
			if op == "=" {
				op = "=="
			}
			if _, ok := operatorFuncs[op]; !ok {
				return fail("unknown operator %q at %d", tok.Text, tok.Pos)
			}
			out = append(out, op)
		}
	}
	if len(frames) > 0 {
		return fail("missing ')'")
	}
	if len(out) == 0 {
		return fail("empty formula")
	}
	return strings.Join(out, " "), nil
}

// translateIdentifier maps a Value/Identifier token to expr source.
func translateIdentifier(text, sheet string) (string, error) {
	ref := classifyReference(text, sheet)
	switch ref.kind {
	case refCell:
		return fnGetCell + "(" + strconv.Quote(ref.cell.String()) + ")", nil
	case refRange:
		return fnGetRange + "(" + strconv.Quote(ref.area.String()) + ")", nil
	case refError:
		return fnError + "(" + strconv.Quote(ref.code.Code()) + ")", nil
	case refBroken:
		return "", newFormulaError(ReferenceError, text, ErrInvalidReference)
	}
	switch strings.ToUpper(text) {
	case "TRUE":
		return "true", nil
	case "FALSE":
		return "false", nil
	}
	if isReservedName(text) {
		return "", newFormulaError(NameError, text, fmt.Errorf("%s is reserved", text))
	}
	return text, nil
}

// numberLiteral renders a numeric token as an expr float literal so every
// number in a formula is float64 at run time.
func numberLiteral(text string) string {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// operatorPatcher routes arithmetic and comparison operators through the
// runtime helpers so one coercion rule applies everywhere.
type operatorPatcher struct{}

func (operatorPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.BinaryNode:
		fn, ok := operatorFuncs[n.Operator]
		if !ok {
			return
		}
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: fn},
			Arguments: []ast.Node{n.Left, n.Right},
		})
	case *ast.UnaryNode:
		fn, ok := unaryFuncs[n.Operator]
		if !ok {
			return
		}
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: fn},
			Arguments: []ast.Node{n.Node},
		})
	}
}

// evaluate runs the compiled formula of c. It never panics; every failure
// comes back as a FormulaError.
func (w *Workbook) evaluate(c *Cell) (result any, ferr *FormulaError) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			ferr = newFormulaError(NameError, "", fmt.Errorf("panic: %v", r))
		}
	}()
	if c.program == nil {
		return nil, newFormulaError(NameError, "", errors.New("formula is not compiled"))
	}
	w.rt.failure = nil
	out, err := expr.Run(c.program.program, w.rt.env)
	if err != nil {
		var fe *FormulaError
		if errors.As(err, &fe) {
			return nil, fe
		}
		if w.rt.failure != nil {
			return nil, w.rt.failure
		}
		return nil, newFormulaError(NameError, "", err)
	}
	return settleResult(out)
}

// settleResult normalizes a program result into a storable cell value.
func settleResult(out any) (any, *FormulaError) {
	switch v := out.(type) {
	case nil:
		return 0.0, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, newFormulaError(NumError, "", nil)
		}
		return v, nil
	case int:
		return float64(v), nil
	case string, bool:
		return v, nil
	case []any:
		return nil, newFormulaError(ValueError, "", errors.New("a range cannot be a cell value"))
	default:
		return nil, newFormulaError(ValueError, "", fmt.Errorf("unsupported result %T", out))
	}
}
