package xlcalc

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of a formula failure settled in a cell.
type ErrorKind uint8

const (
	ErrorNone ErrorKind = iota
	ReferenceError
	DivisionByZero
	NameError
	ValueError
	NumError
	NullError
	NotAvailable
	CircularReference
)

// errorCodes maps kinds to the short tokens shown in cells.
var errorCodes = map[ErrorKind]string{
	ReferenceError:    "#REF!",
	DivisionByZero:    "#DIV/0!",
	NameError:         "#NAME?",
	ValueError:        "#VALUE!",
	NumError:          "#NUM!",
	NullError:         "#NULL!",
	NotAvailable:      "#N/A",
	CircularReference: "#CIRCULAR!",
}

// Code returns the short error token, e.g. "#DIV/0!". ErrorNone has no code.
func (k ErrorKind) Code() string {
	return errorCodes[k]
}

// String returns a readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "None"
	case ReferenceError:
		return "ReferenceError"
	case DivisionByZero:
		return "DivisionByZero"
	case NameError:
		return "NameError"
	case ValueError:
		return "ValueError"
	case NumError:
		return "NumError"
	case NullError:
		return "NullError"
	case NotAvailable:
		return "NotAvailable"
	case CircularReference:
		return "CircularReference"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error lets a kind be used as an errors.Is target:
//
//	errors.Is(err, xlcalc.DivisionByZero)
func (k ErrorKind) Error() string {
	if code := k.Code(); code != "" {
		return code
	}
	return k.String()
}

// ParseErrorToken maps a short error token back to its kind.
func ParseErrorToken(s string) (ErrorKind, bool) {
	for k, code := range errorCodes {
		if code == s {
			return k, true
		}
	}
	return ErrorNone, false
}

// FormulaError is a failure converted at the cell boundary.
type FormulaError struct {
	Kind ErrorKind
	Ref  string // reference or name that caused it, if known
	Err  error  // underlying cause, if any
}

func newFormulaError(kind ErrorKind, ref string, cause error) *FormulaError {
	return &FormulaError{Kind: kind, Ref: ref, Err: cause}
}

func (e *FormulaError) Error() string {
	msg := e.Kind.Code()
	if e.Ref != "" {
		msg += " " + e.Ref
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormulaError) Unwrap() error { return e.Err }

// Is matches an ErrorKind target with the same kind.
func (e *FormulaError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// asFormulaError converts any failure into a FormulaError. Failures that are
// not already classified become NameError.
func asFormulaError(err error) *FormulaError {
	if err == nil {
		return nil
	}
	var fe *FormulaError
	if errors.As(err, &fe) {
		return fe
	}
	return newFormulaError(NameError, "", err)
}

// API-level errors. Formula failures are never returned through these; they
// settle in the cell instead.
var (
	ErrSheetNotFound    = errors.New("sheet not found")
	ErrSheetExists      = errors.New("sheet already exists")
	ErrInvalidSheetName = errors.New("invalid sheet name")
	ErrOutOfBounds      = errors.New("address out of bounds")
	ErrInvalidReference = errors.New("invalid reference")
	ErrReentrant        = errors.New("recalculation is not reentrant")
	ErrInternal         = errors.New("internal consistency failure")
)
