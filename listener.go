package xlcalc

import (
	"strconv"
	"strings"
)

// CellEvent describes a cell settled by a recalculation.
type CellEvent struct {
	Ref     CellRef
	Formula string
	Value   Value
}

// Listener is notified once per settled cell per recalculation, after the
// whole batch has been evaluated. Implement it to repaint a view or log
// changes. Listeners run inside the recalculation; editing the workbook from
// a listener fails with ErrReentrant.
type Listener interface {
	CellChanged(ev CellEvent)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ev CellEvent)

func (f ListenerFunc) CellChanged(ev CellEvent) { f(ev) }

// Formatter turns a computed value into display text.
type Formatter interface {
	Format(ref CellRef, v Value) string
}

// GeneralFormatter renders values the way Value.String does.
type GeneralFormatter struct{}

func (GeneralFormatter) Format(_ CellRef, v Value) string { return v.String() }

// DecimalFormatter renders numbers with a fixed number of decimal places and
// an optional thousands separator. Other values use general format.
type DecimalFormatter struct {
	Places    int
	Thousands bool
}

func (f DecimalFormatter) Format(_ CellRef, v Value) string {
	if v.Type != TypeNumber {
		return v.String()
	}
	s := strconv.FormatFloat(v.Number, 'f', max(f.Places, 0), 64)
	if !f.Thousands {
		return s
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}
