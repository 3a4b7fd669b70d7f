package compiler

import "testing"

func TestLexerTokenTypes(t *testing.T) {
	src := `var x = 1 + 2.5; "hi" == true`
	lex := NewLexer(src, "t.lum")

	var got []TokenType
	for {
		tok := lex.Next()
		got = append(got, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}

	want := []TokenType{
		TokenVar, TokenIdent, TokenAssign, TokenNumber, TokenPlus, TokenNumber,
		TokenSemicolon, TokenString, TokenEq, TokenTrue, TokenEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("token %d = %s, want %s", i, got[i], w)
		}
	}
}

func TestLexerPositionsAreOneBased(t *testing.T) {
	lex := NewLexer("x", "t.lum")
	tok := lex.Next()
	if tok.Pos.Line != 1 || tok.Pos.Col != 1 {
		t.Errorf("Pos = %+v, want line 1 col 1", tok.Pos)
	}
}

func TestLexerOctalLiteral(t *testing.T) {
	// §9: a number token starting with 0 whose remaining digits are all
	// 0-7 keeps its literal intact; the parser reads it as octal.
	lex := NewLexer("017", "t.lum")
	tok := lex.Next()
	if tok.Type != TokenNumber {
		t.Fatalf("got %s, want NUMBER", tok.Type)
	}
	if tok.Literal != "017" {
		t.Errorf("Literal = %q, want %q", tok.Literal, "017")
	}
}

func TestLexerNoKeywordNew(t *testing.T) {
	// A class is called like a function (§4.4) — there is no `new`
	// keyword in the grammar, so the identifier lexes as a plain name.
	lex := NewLexer("new", "t.lum")
	tok := lex.Next()
	if tok.Type != TokenIdent {
		t.Errorf("`new` lexed as %s, want IDENT", tok.Type)
	}
}
