package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/lexer"
)

func scanAll(src string) []lexer.Token {
	l := lexer.New(src)
	var toks []lexer.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == lexer.EOF {
			return toks
		}
	}
}

func kinds(toks []lexer.Token) []lexer.Kind {
	ks := make([]lexer.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){},.-+;*/! != = == < <= > >=")
	require.Equal(t, []lexer.Kind{
		lexer.LeftParen, lexer.RightParen, lexer.LeftBrace, lexer.RightBrace,
		lexer.Comma, lexer.Dot, lexer.Minus, lexer.Plus, lexer.Semicolon,
		lexer.Star, lexer.Slash, lexer.Bang, lexer.BangEqual, lexer.Equal,
		lexer.EqualEqual, lexer.Less, lexer.LessEqual, lexer.Greater,
		lexer.GreaterEqual, lexer.EOF,
	}, kinds(toks))
}

func TestScanKeywordsVsIdentifiers(t *testing.T) {
	toks := scanAll("class forest for fun")
	require.Equal(t, []lexer.Kind{lexer.Class, lexer.Identifier, lexer.For, lexer.Fun, lexer.EOF}, kinds(toks))
}

func TestScanNumberLiteral(t *testing.T) {
	toks := scanAll("123 4.5")
	require.Len(t, toks, 3)
	require.Equal(t, lexer.Number, toks[0].Kind)
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, lexer.Number, toks[1].Kind)
	require.Equal(t, "4.5", toks[1].Lexeme)
}

func TestScanStringLiteral(t *testing.T) {
	toks := scanAll(`"hello world"`)
	require.Equal(t, lexer.String, toks[0].Kind)
	require.Equal(t, `"hello world"`, toks[0].Lexeme)
}

func TestUnterminatedStringIsErrorToken(t *testing.T) {
	toks := scanAll(`"oops`)
	require.Equal(t, lexer.Error, toks[0].Kind)
}

func TestLineCommentIsSkipped(t *testing.T) {
	toks := scanAll("1 // comment\n2")
	require.Equal(t, []lexer.Kind{lexer.Number, lexer.Number, lexer.EOF}, kinds(toks))
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[1].Line)
}

func TestUnexpectedCharacterIsErrorToken(t *testing.T) {
	toks := scanAll("@")
	require.Equal(t, lexer.Error, toks[0].Kind)
}
