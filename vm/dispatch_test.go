package vm

import "testing"

func TestResolveCallableBareFunction(t *testing.T) {
	fn := NewUserFunction("f", nil, nil)
	gotFn, env, this, err := resolveCallable(fn)
	if err != nil {
		t.Fatalf("resolveCallable: %v", err)
	}
	if gotFn != fn || env != nil || this != nil {
		t.Errorf("got (%v, %v, %v), want (%v, nil, nil)", gotFn, env, this, fn)
	}
}

func TestResolveCallableClosurePrependsEnv(t *testing.T) {
	fn := NewUserFunction("f", nil, nil)
	env := NewObject(RootClass)
	closure := NewClosure(fn, env)
	gotFn, gotEnv, this, err := resolveCallable(closure)
	if err != nil {
		t.Fatalf("resolveCallable: %v", err)
	}
	if gotFn != fn || gotEnv != Value(env) || this != nil {
		t.Errorf("got (%v, %v, %v)", gotFn, gotEnv, this)
	}
}

// TestResolveCallableClassBindsSelfAndEnv grounds the instantiation
// path a constructor chain relies on: calling a Class binds the class
// itself as `this` (so the synthetic preamble can stamp the freshly
// allocated instance) and prepends its captured environment as a
// closure would.
func TestResolveCallableClassBindsSelfAndEnv(t *testing.T) {
	ctor := NewUserFunction("ctor", nil, nil)
	env := NewObject(RootClass)
	class := &Class{Name: "A", Members: NewFieldMap(), Ctor: ctor, Env: env}
	gotFn, gotEnv, this, err := resolveCallable(class)
	if err != nil {
		t.Fatalf("resolveCallable: %v", err)
	}
	if gotFn != ctor {
		t.Errorf("fn = %v, want ctor", gotFn)
	}
	if gotEnv != Value(env) {
		t.Errorf("env = %v, want %v", gotEnv, env)
	}
	if this != Value(class) {
		t.Errorf("this = %v, want the class itself", this)
	}
}

func TestResolveCallableObjectWithCallField(t *testing.T) {
	inner := NewUserFunction("inner", nil, nil)
	obj := NewObject(RootClass)
	if err := obj.WriteField("call", inner, false); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	gotFn, _, this, err := resolveCallable(obj)
	if err != nil {
		t.Fatalf("resolveCallable: %v", err)
	}
	if gotFn != inner {
		t.Errorf("fn = %v, want inner", gotFn)
	}
	if this != Value(obj) {
		t.Errorf("this = %v, want the object itself", this)
	}
}

func TestResolveCallableObjectWithoutCallFieldErrors(t *testing.T) {
	obj := NewObject(RootClass)
	if _, _, _, err := resolveCallable(obj); err == nil {
		t.Fatal("expected not-callable error for an object with no call field")
	}
}

func TestResolveCallableNumberErrors(t *testing.T) {
	if _, _, _, err := resolveCallable(Number(1)); err == nil {
		t.Fatal("expected not-callable error for a number")
	}
}
