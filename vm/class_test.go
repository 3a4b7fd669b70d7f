package vm

import "testing"

func TestIsSubclassOfSelf(t *testing.T) {
	a := NewClass("A", nil, NewFieldMap(), NewUserFunction("A", nil, nil), Null)
	if !a.IsSubclassOf(a) {
		t.Error("a class should be a subclass of itself")
	}
}

func TestIsSubclassOfAncestor(t *testing.T) {
	a := NewClass("A", nil, NewFieldMap(), NewUserFunction("A", nil, nil), Null)
	b := NewClass("B", a, NewFieldMap(), NewUserFunction("B", nil, nil), Null)
	c := NewClass("C", b, NewFieldMap(), NewUserFunction("C", nil, nil), Null)
	if !c.IsSubclassOf(a) {
		t.Error("C descends from A through B, want IsSubclassOf(A) = true")
	}
	if !c.IsSubclassOf(b) {
		t.Error("C descends directly from B, want IsSubclassOf(B) = true")
	}
}

func TestIsSubclassOfUnrelated(t *testing.T) {
	a := NewClass("A", nil, NewFieldMap(), NewUserFunction("A", nil, nil), Null)
	x := NewClass("X", nil, NewFieldMap(), NewUserFunction("X", nil, nil), Null)
	if a.IsSubclassOf(x) {
		t.Error("unrelated classes should not be subclasses of each other")
	}
}

func TestSetEnvReplacesPrevious(t *testing.T) {
	a := NewClass("A", nil, NewFieldMap(), NewUserFunction("A", nil, nil), Null)
	obj := NewObject(nil)
	a.SetEnv(obj)
	if a.Env != obj {
		t.Errorf("Env = %v, want the object just set", a.Env)
	}
}

func TestNewClassShellThenBindCtor(t *testing.T) {
	shell := NewClassShell("Shell", nil, NewFieldMap())
	if shell.Ctor != nil {
		t.Error("NewClassShell should leave Ctor unbound")
	}
	ctor := NewUserFunction("Shell", nil, nil)
	shell.BindCtor(ctor)
	if shell.Ctor != ctor {
		t.Errorf("Ctor = %v, want the bound function", shell.Ctor)
	}
}
