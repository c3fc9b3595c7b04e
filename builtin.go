package xlcalc

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/expr-lang/expr"
)

// runtime is the value-lookup surface compiled formulas call into. It is
// bound to one workbook.
type runtime struct {
	wb      *Workbook
	env     map[string]any
	failure *FormulaError // last classified failure raised by a helper
}

// compileOptions builds the expr options shared by every formula of the
// workbook: builtins, operator helpers and the registered custom functions.
func (r *runtime) compileOptions(custom map[string]Function) []expr.Option {
	r.env = map[string]any{}
	opts := []expr.Option{
		expr.Env(r.env),
		expr.DisableAllBuiltins(),
		expr.Optimize(false),
		expr.Patch(operatorPatcher{}),
	}
	builtins := r.builtins()
	for _, name := range slices.Sorted(maps.Keys(builtins)) {
		opts = append(opts, expr.Function(name, builtins[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(custom)) {
		if _, ok := builtins[name]; ok || !isFunctionName(name) {
			r.wb.log.Warn("custom function ignored", "name", name)
			continue
		}
		opts = append(opts, expr.Function(name, r.custom(name, custom[name])))
	}
	return opts
}

// isFunctionName reports whether name can be called from a formula: an
// identifier that the tokenizer will not read as a cell reference.
func isFunctionName(name string) bool {
	if name == "" || isLocalCellName(name) {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

type builtinFunc = func(args ...any) (any, error)

func (r *runtime) builtins() map[string]builtinFunc {
	fns := map[string]builtinFunc{
		fnGetCell:  r.getCell,
		fnGetRange: r.getRange,
		fnTruthy:   r.truthy,
		fnError:    r.raise,
		"NEG":      r.unary(func(x float64) float64 { return -x }),
		"POS":      r.unary(func(x float64) float64 { return x }),
		"ADD":      r.arith(func(x, y float64) (float64, bool) { return x + y, true }),
		"SUB":      r.arith(func(x, y float64) (float64, bool) { return x - y, true }),
		"MUL":      r.arith(func(x, y float64) (float64, bool) { return x * y, true }),
		"DIV": r.arith(func(x, y float64) (float64, bool) {
			if y == 0 {
				return 0, false
			}
			return x / y, true
		}),
		"EQ":      r.compare(func(c int) bool { return c == 0 }),
		"NE":      r.compare(func(c int) bool { return c != 0 }),
		"LT":      r.compare(func(c int) bool { return c < 0 }),
		"LE":      r.compare(func(c int) bool { return c <= 0 }),
		"GT":      r.compare(func(c int) bool { return c > 0 }),
		"GE":      r.compare(func(c int) bool { return c >= 0 }),
		"SUM":     r.sum,
		"AVERAGE": r.average,
		"MAX":     r.extreme(func(x, best float64) bool { return x > best }),
		"MIN":     r.extreme(func(x, best float64) bool { return x < best }),
		"AND":     r.logical(true),
		"OR":      r.logical(false),
	}
	return fns
}

// fail records and returns a classified failure. The record survives when
// expr wraps the returned error.
func (r *runtime) fail(kind ErrorKind, ref string, cause error) (any, error) {
	fe := newFormulaError(kind, ref, cause)
	r.failure = fe
	return nil, fe
}

func (r *runtime) refArg(args []any) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected one reference")
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("reference must be text, got %T", args[0])
	}
	return s, nil
}

// cellValue returns the value of a referenced cell, raising its error.
func (r *runtime) cellValue(ref CellRef, text string) (any, error) {
	id, err := r.wb.lookup(ref)
	if err != nil {
		return r.fail(ReferenceError, text, err)
	}
	c := r.wb.cells[id]
	switch c.state {
	case StateError:
		return r.fail(c.err.Kind, text, nil)
	case StateEvaluating:
		return r.fail(CircularReference, text, nil)
	}
	return c.value, nil
}

func (r *runtime) getCell(args ...any) (any, error) {
	text, err := r.refArg(args)
	if err != nil {
		return r.fail(NameError, "", err)
	}
	ref, err := ParseCellReference(text)
	if err != nil {
		return r.fail(ReferenceError, text, err)
	}
	return r.cellValue(ref, text)
}

func (r *runtime) getRange(args ...any) (any, error) {
	text, err := r.refArg(args)
	if err != nil {
		return r.fail(NameError, "", err)
	}
	area, err := ParseRangeReference(text)
	if err != nil {
		return r.fail(ReferenceError, text, err)
	}
	cells := area.Cells()
	values := make([]any, 0, len(cells))
	for _, ref := range cells {
		v, err := r.cellValue(ref, text)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (r *runtime) truthy(args ...any) (any, error) {
	if len(args) != 1 {
		return r.fail(ValueError, "", errors.New("condition expected"))
	}
	b, ok := toBool(args[0])
	if !ok {
		return r.fail(ValueError, "", fmt.Errorf("%q is not a condition", toText(args[0])))
	}
	return b, nil
}

func (r *runtime) raise(args ...any) (any, error) {
	code, _ := r.refArg(args)
	kind, ok := ParseErrorToken(code)
	if !ok {
		kind = NameError
	}
	return r.fail(kind, "", nil)
}

func (r *runtime) unary(op func(float64) float64) builtinFunc {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return r.fail(ValueError, "", errors.New("one operand expected"))
		}
		x, ok := toNumber(args[0])
		if !ok {
			return r.fail(ValueError, "", fmt.Errorf("%q is not a number", toText(args[0])))
		}
		return op(x), nil
	}
}

func (r *runtime) arith(op func(x, y float64) (float64, bool)) builtinFunc {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return r.fail(ValueError, "", errors.New("two operands expected"))
		}
		x, ok := toNumber(args[0])
		if !ok {
			return r.fail(ValueError, "", fmt.Errorf("%q is not a number", toText(args[0])))
		}
		y, ok := toNumber(args[1])
		if !ok {
			return r.fail(ValueError, "", fmt.Errorf("%q is not a number", toText(args[1])))
		}
		z, ok := op(x, y)
		if !ok {
			return r.fail(DivisionByZero, "", nil)
		}
		return z, nil
	}
}

func (r *runtime) compare(test func(int) bool) builtinFunc {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return r.fail(ValueError, "", errors.New("two operands expected"))
		}
		if isRange(args[0]) || isRange(args[1]) {
			return r.fail(ValueError, "", errors.New("cannot compare a range"))
		}
		return test(compareValues(args[0], args[1])), nil
	}
}

func isRange(v any) bool {
	_, ok := v.([]any)
	return ok
}

// numbers collects the numeric arguments of an aggregate. Blanks and values
// that do not coerce are skipped.
func numbers(args []any) []float64 {
	var out []float64
	for _, v := range flatten(args) {
		if v == nil {
			continue
		}
		if f, ok := toNumber(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *runtime) sum(args ...any) (any, error) {
	total := 0.0
	for _, f := range numbers(args) {
		total += f
	}
	return total, nil
}

func (r *runtime) average(args ...any) (any, error) {
	nums := numbers(args)
	if len(nums) == 0 {
		return r.fail(DivisionByZero, "", errors.New("AVERAGE of no numbers"))
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	return total / float64(len(nums)), nil
}

func (r *runtime) extreme(better func(x, best float64) bool) builtinFunc {
	return func(args ...any) (any, error) {
		nums := numbers(args)
		if len(nums) == 0 {
			return 0.0, nil
		}
		best := nums[0]
		for _, f := range nums[1:] {
			if better(f, best) {
				best = f
			}
		}
		return best, nil
	}
}

// logical implements AND (all) and OR (any). Blank cells are ignored.
func (r *runtime) logical(all bool) builtinFunc {
	return func(args ...any) (any, error) {
		seen := false
		for _, v := range flatten(args) {
			if v == nil {
				continue
			}
			b, ok := toBool(v)
			if !ok {
				return r.fail(ValueError, "", fmt.Errorf("%q is not a condition", toText(v)))
			}
			seen = true
			if b != all {
				return !all, nil
			}
		}
		if !seen {
			return r.fail(ValueError, "", errors.New("no conditions"))
		}
		return all, nil
	}
}

// custom adapts a registered Function. A returned FormulaError or ErrorKind
// keeps its kind; other errors become ValueError.
func (r *runtime) custom(name string, fn Function) builtinFunc {
	return func(args ...any) (any, error) {
		out, err := fn(args...)
		if err != nil {
			var fe *FormulaError
			if errors.As(err, &fe) {
				r.failure = fe
				return nil, fe
			}
			var kind ErrorKind
			if errors.As(err, &kind) {
				return r.fail(kind, name, nil)
			}
			return r.fail(ValueError, name, err)
		}
		return out, nil
	}
}
