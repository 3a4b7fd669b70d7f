package lspserver

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/lumen-lang/lumen/compiler"
)

func TestCompileForDiagnosticsOK(t *testing.T) {
	if _, err := compileForDiagnostics("var x = 1;"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompileForDiagnosticsParseError(t *testing.T) {
	_, err := compileForDiagnostics("var x = ;")
	if _, ok := err.(*compiler.ParseError); !ok {
		t.Fatalf("err = %v (%T), want *compiler.ParseError", err, err)
	}
}

func TestCompileForDiagnosticsSemanticError(t *testing.T) {
	// "eval" is a plain identifier token, reserved only by the semantic
	// pass, so this reaches CheckProgram rather than failing to parse.
	_, err := compileForDiagnostics("var eval = 1;")
	if _, ok := err.(*compiler.SemanticError); !ok {
		t.Fatalf("err = %v (%T), want *compiler.SemanticError", err, err)
	}
}

func TestPositionOfConvertsToZeroBased(t *testing.T) {
	err := &compiler.ParseError{Pos: compiler.Position{Line: 3, Col: 5}, Message: "boom"}
	line, col, msg := positionOf(err)
	if line != 2 || col != 4 {
		t.Errorf("got line=%d col=%d, want line=2 col=4", line, col)
	}
	if msg != "boom" {
		t.Errorf("msg = %q, want %q", msg, "boom")
	}
}

func TestPositionOfUnknownErrorDefaultsToOrigin(t *testing.T) {
	line, col, msg := positionOf(errPlain("plain error"))
	if line != 0 || col != 0 {
		t.Errorf("got line=%d col=%d, want 0,0", line, col)
	}
	if msg != "plain error" {
		t.Errorf("msg = %q, want %q", msg, "plain error")
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func TestZeroBasedClampsAtOrigin(t *testing.T) {
	line, col := zeroBased(compiler.Position{Line: 1, Col: 1})
	if line != 0 || col != 0 {
		t.Errorf("got line=%d col=%d, want 0,0", line, col)
	}
}

func TestExtractWordFindsIdentifierUnderCursor(t *testing.T) {
	text := "var helloWorld = 1;"
	got := extractWord(text, protocol.Position{Line: 0, Character: 6})
	if got != "helloWorld" {
		t.Errorf("extractWord = %q, want %q", got, "helloWorld")
	}
}

func TestExtractWordAtBoundaryIsEmpty(t *testing.T) {
	text := "x = 1;"
	got := extractWord(text, protocol.Position{Line: 0, Character: 2})
	if got != "" {
		t.Errorf("extractWord at a space = %q, want empty", got)
	}
}

func TestExtractWordOutOfRangeLineIsEmpty(t *testing.T) {
	got := extractWord("x;", protocol.Position{Line: 5, Character: 0})
	if got != "" {
		t.Errorf("extractWord on a missing line = %q, want empty", got)
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil || !*p {
		t.Errorf("boolPtr(true) = %v, want a pointer to true", p)
	}
}
