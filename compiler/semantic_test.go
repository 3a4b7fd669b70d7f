package compiler

import "testing"

func checkSrc(t *testing.T, src string) error {
	t.Helper()
	prog := parseSrc(t, src)
	return CheckProgram(prog)
}

func TestSemanticOK(t *testing.T) {
	if err := checkSrc(t, "var x = 1; function f() { return x; } class A(x) {}"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSemanticReservedLvalueVarDecl(t *testing.T) {
	// "this" is a keyword token, so it can never reach this check as a
	// VarDecl name — "eval" and "arguments" are plain identifiers that
	// are reserved only by this semantic pass, not the grammar.
	err := checkSrc(t, "var eval = 1;")
	if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
}

func TestSemanticReservedLvalueAssign(t *testing.T) {
	err := checkSrc(t, "arguments = 1;")
	if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
}

func TestSemanticReservedParamName(t *testing.T) {
	err := checkSrc(t, "function f(eval) { return eval; }")
	if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
}

func TestSemanticDuplicateObjectKey(t *testing.T) {
	err := checkSrc(t, "var o = {a: 1, a: 2};")
	se, ok := err.(*SemanticError)
	if !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
	if se.Message != `duplicate object key "a"` {
		t.Errorf("Message = %q", se.Message)
	}
}

func TestSemanticDuplicateClassName(t *testing.T) {
	err := checkSrc(t, "class A() {} class A() {}")
	if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
}

func TestSemanticDuplicateMember(t *testing.T) {
	err := checkSrc(t, "class A() { var x = 1; var x = 2; }")
	if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
}

func TestSemanticExtendsUndefinedBase(t *testing.T) {
	err := checkSrc(t, "class B() extends A {}")
	se, ok := err.(*SemanticError)
	if !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
	if se.Message != `class "B" extends undefined base "A"` {
		t.Errorf("Message = %q", se.Message)
	}
}

func TestSemanticExtendsDefinedBaseOK(t *testing.T) {
	// Declaration order doesn't matter — base classes are collected
	// across the whole top-level before the extends check runs.
	if err := checkSrc(t, "class B() extends A {} class A() {}"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSemanticImportMustPrecedeOtherStatements(t *testing.T) {
	err := checkSrc(t, "var x = 1; import \"foo\";")
	se, ok := err.(*SemanticError)
	if !ok {
		t.Fatalf("err = %v (%T), want *SemanticError", err, err)
	}
	if se.Message != "import must precede all non-import statements" {
		t.Errorf("Message = %q", se.Message)
	}
}
