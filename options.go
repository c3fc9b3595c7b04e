package xlcalc

import "log/slog"

// Function is an extra builtin made callable from formulas. Range arguments
// arrive as []any; cell values are nil, float64, string or bool.
type Function func(args ...any) (any, error)

// Options holds configuration for the Workbook.
type Options struct {
	logger    *slog.Logger
	listeners []Listener
	formatter Formatter
	functions map[string]Function
	maxCells  int
}

// DefaultMaxLoadCells is the largest sheet, in cells, that the loaders
// allocate unless WithMaxLoadCells says otherwise.
const DefaultMaxLoadCells = 1 << 22

func defaultOptions() *Options {
	return &Options{
		logger:    slog.New(slog.DiscardHandler),
		formatter: GeneralFormatter{},
		maxCells:  DefaultMaxLoadCells,
	}
}

// Option configures the Workbook.
type Option func(*Options)

// WithLogger sets the structured logger used for recalculation diagnostics
// (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithListener adds a listener that is notified of every cell settled by a
// recalculation.
func WithListener(l Listener) Option {
	return func(o *Options) { o.listeners = append(o.listeners, l) }
}

// WithFormatter sets the presentation policy used by GetDisplayText.
func WithFormatter(f Formatter) Option {
	return func(o *Options) {
		if f != nil {
			o.formatter = f
		}
	}
}

// WithFunction registers a custom function callable by name from formulas,
// e.g. WithFunction("DOUBLE", ...) enables "=DOUBLE(A1)".
func WithFunction(name string, fn Function) Option {
	return func(o *Options) {
		if o.functions == nil {
			o.functions = make(map[string]Function)
		}
		o.functions[name] = fn
	}
}

// WithMaxLoadCells bounds the size of each sheet created by LoadJSON and
// LoadExcelize. Formula references never grow a sheet past it; they fail
// as #REF! instead. A file whose own cells need a larger sheet is rejected.
func WithMaxLoadCells(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxCells = n
		}
	}
}
