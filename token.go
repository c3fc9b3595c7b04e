package xlcalc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a formula token.
type TokenKind int

const (
	TokenValue TokenKind = iota
	TokenOperator
	TokenParen
	TokenSeparator
	TokenFunction
)

func (k TokenKind) String() string {
	switch k {
	case TokenValue:
		return "Value"
	case TokenOperator:
		return "Operator"
	case TokenParen:
		return "Parenthesis"
	case TokenSeparator:
		return "Separator"
	case TokenFunction:
		return "Function"
	default:
		return "Unknown"
	}
}

// SubKind refines TokenValue tokens.
type SubKind int

const (
	SubNone SubKind = iota
	SubNumber
	SubString
	SubIdentifier
)

// Token is one lexeme of a formula body. Pos is the byte offset of Text in
// the tokenized input.
type Token struct {
	Text string
	Kind TokenKind
	Sub  SubKind
	Pos  int
}

// IsIdentifier reports whether the token is a bare word (reference or name).
func (t Token) IsIdentifier() bool {
	return t.Kind == TokenValue && t.Sub == SubIdentifier
}

// functionNames are the builtins recognized by the tokenizer. Matching is
// case-sensitive.
var functionNames = map[string]bool{
	"IF":      true,
	"SUM":     true,
	"AVERAGE": true,
	"MAX":     true,
	"MIN":     true,
	"AND":     true,
	"OR":      true,
}

// Tokenize splits a formula body (leading "=" already stripped) into tokens
// in input order. Whitespace separates tokens and is never emitted.
func Tokenize(formula string) []Token {
	var tokens []Token
	pos := 0
	for pos < len(formula) {
		r, size := utf8.DecodeRuneInString(formula[pos:])
		switch {
		case unicode.IsSpace(r):
			pos += size
		case r == '"':
			end := scanString(formula, pos)
			tokens = append(tokens, Token{Text: formula[pos:end], Kind: TokenValue, Sub: SubString, Pos: pos})
			pos = end
		case isDigit(r) || (r == '.' && pos+1 < len(formula) && isDigit(rune(formula[pos+1]))):
			end := scanNumber(formula, pos)
			tokens = append(tokens, Token{Text: formula[pos:end], Kind: TokenValue, Sub: SubNumber, Pos: pos})
			pos = end
		case r == '#':
			end := scanErrorLiteral(formula, pos)
			tokens = append(tokens, Token{Text: formula[pos:end], Kind: TokenValue, Sub: SubIdentifier, Pos: pos})
			pos = end
		case isIdentStart(r):
			end := scanIdentifier(formula, pos)
			text := formula[pos:end]
			kind, sub := TokenValue, SubIdentifier
			if functionNames[text] {
				kind, sub = TokenFunction, SubNone
			}
			tokens = append(tokens, Token{Text: text, Kind: kind, Sub: sub, Pos: pos})
			pos = end
		case r == '(' || r == ')':
			tokens = append(tokens, Token{Text: string(r), Kind: TokenParen, Pos: pos})
			pos += size
		case r == ',' || r == ';':
			tokens = append(tokens, Token{Text: string(r), Kind: TokenSeparator, Pos: pos})
			pos += size
		default:
			// + - * / = < > and anything unrecognized; the compiler rejects
			// operators it has no meaning for.
			tokens = append(tokens, Token{Text: formula[pos : pos+size], Kind: TokenOperator, Pos: pos})
			pos += size
		}
	}
	return tokens
}

// scanString returns the end of a string literal starting at a quote. An
// unterminated string runs to the end of input.
func scanString(s string, start int) int {
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return len(s)
	}
	return start + 1 + end + 1
}

// scanNumber accepts digits with at most one decimal point.
func scanNumber(s string, start int) int {
	seenDot := false
	i := start
	for i < len(s) {
		c := s[i]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if c < '0' || c > '9' {
			break
		}
		i++
	}
	return i
}

// scanErrorLiteral consumes a known error token such as "#REF!". Any other
// '#' word is scanned as an identifier.
func scanErrorLiteral(s string, start int) int {
	for _, code := range errorCodes {
		if strings.HasPrefix(s[start:], code) {
			return start + len(code)
		}
	}
	return scanIdentifier(s, start)
}

// scanIdentifier consumes a reference or name: letters, digits, '_', '.',
// '!', ':', '$' and apostrophe-quoted sheet names ('My Sheet'!A1).
func scanIdentifier(s string, start int) int {
	i := start
	if s[i] == '#' {
		i++
	}
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '\'' {
			i = scanQuoted(s, i)
			continue
		}
		if !isIdentPart(r) {
			break
		}
		i += size
	}
	return i
}

// scanQuoted consumes a quoted sheet name where '' escapes a quote.
func scanQuoted(s string, start int) int {
	i := start + 1
	for i < len(s) {
		if s[i] == '\'' {
			if i+1 < len(s) && s[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$' || r == '\''
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '.' || r == '!' || r == ':' || r == '$'
}
