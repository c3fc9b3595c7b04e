package xlcalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTexts(tokens []Token) []string {
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}
	return texts
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize(`SUM(Sheet1!A1:A3; 2.5) + "x y"`)
	want := []Token{
		{Text: "SUM", Kind: TokenFunction, Pos: 0},
		{Text: "(", Kind: TokenParen, Pos: 3},
		{Text: "Sheet1!A1:A3", Kind: TokenValue, Sub: SubIdentifier, Pos: 4},
		{Text: ";", Kind: TokenSeparator, Pos: 16},
		{Text: "2.5", Kind: TokenValue, Sub: SubNumber, Pos: 18},
		{Text: ")", Kind: TokenParen, Pos: 21},
		{Text: "+", Kind: TokenOperator, Pos: 23},
		{Text: `"x y"`, Kind: TokenValue, Sub: SubString, Pos: 25},
	}
	assert.Equal(t, want, tokens)
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   "))
}

func TestTokenize_UnterminatedString(t *testing.T) {
	tokens := Tokenize(`"abc`)
	require.Len(t, tokens, 1)
	assert.Equal(t, `"abc`, tokens[0].Text)
	assert.Equal(t, SubString, tokens[0].Sub)
}

func TestTokenize_NumberWithOneDot(t *testing.T) {
	assert.Equal(t, []string{"1.2", ".3"}, tokenTexts(Tokenize("1.2.3")))
	assert.Equal(t, []string{".5", "*", "2"}, tokenTexts(Tokenize(".5*2")))
}

func TestTokenize_FunctionsAreCaseSensitive(t *testing.T) {
	tokens := Tokenize("sum(A1)")
	require.NotEmpty(t, tokens)
	assert.Equal(t, TokenValue, tokens[0].Kind)
	assert.True(t, tokens[0].IsIdentifier())

	tokens = Tokenize("SUM(A1)")
	assert.Equal(t, TokenFunction, tokens[0].Kind)
}

func TestTokenize_QuotedSheet(t *testing.T) {
	tokens := Tokenize(`'My Sheet'!B2*2`)
	assert.Equal(t, []string{"'My Sheet'!B2", "*", "2"}, tokenTexts(tokens))
	assert.True(t, tokens[0].IsIdentifier())
}

func TestTokenize_ErrorLiteral(t *testing.T) {
	tokens := Tokenize("#REF!+#DIV/0!")
	assert.Equal(t, []string{"#REF!", "+", "#DIV/0!"}, tokenTexts(tokens))
	assert.True(t, tokens[0].IsIdentifier())
	assert.True(t, tokens[2].IsIdentifier())
}

func TestTokenize_Unicode(t *testing.T) {
	tokens := Tokenize("Données!A1 * 2")
	assert.Equal(t, []string{"Données!A1", "*", "2"}, tokenTexts(tokens))
	assert.Equal(t, len("Données!A1 "), tokens[1].Pos)
}

func TestTokenize_ComparisonOperators(t *testing.T) {
	tokens := Tokenize("A1<>B1")
	assert.Equal(t, []string{"A1", "<", ">", "B1"}, tokenTexts(tokens))
	for _, tok := range tokens[1:3] {
		assert.Equal(t, TokenOperator, tok.Kind)
	}
}

func TestTokenize_AbsoluteReference(t *testing.T) {
	assert.Equal(t, []string{"$A$1", "+", "Sheet1!$B2"}, tokenTexts(Tokenize("$A$1+Sheet1!$B2")))
}

func TestTokenKind_String(t *testing.T) {
	assert.Equal(t, "Function", TokenFunction.String())
	assert.Equal(t, "Parenthesis", TokenParen.String())
	assert.Equal(t, "Unknown", TokenKind(99).String())
}
