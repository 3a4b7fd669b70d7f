package natives

import (
	"testing"

	"github.com/lumen-lang/lumen/vm"
)

func TestAssertFnPassesOnTruthy(t *testing.T) {
	f := vm.NewNativeFunction("t", nil, assertFn)
	v := vm.NewVM()
	if _, err := v.Call(f, vm.Null, []vm.Value{vm.True, vm.NewString("ok")}); err != nil {
		t.Fatalf("assert on a truthy value should not error: %v", err)
	}
}

func TestAssertFnRaisesOnFalsy(t *testing.T) {
	f := vm.NewNativeFunction("t", nil, assertFn)
	v := vm.NewVM()
	_, err := v.Call(f, vm.Null, []vm.Value{vm.False, vm.NewString("boom")})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "Assertion failed: boom" {
		t.Errorf("err = %q, want %q", err.Error(), "Assertion failed: boom")
	}
}

func TestRaiseErrorFnCarriesMessage(t *testing.T) {
	f := vm.NewNativeFunction("t", nil, raiseErrorFn)
	v := vm.NewVM()
	_, err := v.Call(f, vm.Null, []vm.Value{vm.NewString("custom failure")})
	if err == nil || err.Error() != "custom failure" {
		t.Errorf("err = %v, want %q", err, "custom failure")
	}
}

func TestNewArrayFnAllocatesNullFilled(t *testing.T) {
	got := callNative(t, newArrayFn, vm.Number(3))
	arr, ok := got.(*vm.Array)
	if !ok {
		t.Fatalf("got %T, want *vm.Array", got)
	}
	if arr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", arr.Len())
	}
	if arr.Get(0) != vm.Null {
		t.Errorf("Get(0) = %v, want Null", arr.Get(0))
	}
}

func TestMakeClosureFnBindsEnv(t *testing.T) {
	env := vm.NewObject(vm.RootClass)
	fn := vm.NewUserFunction("f", nil, nil)
	got := callNative(t, makeClosureFn, env, fn)
	if _, ok := got.(*vm.Closure); !ok {
		t.Fatalf("got %T, want *vm.Closure", got)
	}
}

func TestMakeClosureFnRejectsNonFunction(t *testing.T) {
	env := vm.NewObject(vm.RootClass)
	f := vm.NewNativeFunction("t", nil, makeClosureFn)
	v := vm.NewVM()
	if _, err := v.Call(f, vm.Null, []vm.Value{env, vm.Number(1)}); err == nil {
		t.Fatal("expected an error for a non-function second argument")
	}
}

func TestExportSymbolFnRecordsName(t *testing.T) {
	env := vm.NewObject(vm.RootClass)
	if _, err := (func() (vm.Value, error) {
		f := vm.NewNativeFunction("t", nil, exportSymbolFn)
		v := vm.NewVM()
		return v.Call(f, vm.Null, []vm.Value{env, vm.NewString("foo")})
	})(); err != nil {
		t.Fatalf("exportSymbolFn: %v", err)
	}
	exportsVal := vm.ReadField(env, "@exports")
	arr, ok := exportsVal.(*vm.Array)
	if !ok || arr.Len() != 1 {
		t.Fatalf("@exports = %v, want a one-element array", exportsVal)
	}
	name, ok := arr.Get(0).(*vm.StringValue)
	if !ok || name.Go() != "foo" {
		t.Errorf("@exports[0] = %v, want %q", arr.Get(0), "foo")
	}
}

func TestImportModuleFnRequiresResolver(t *testing.T) {
	old := ModuleResolver
	ModuleResolver = nil
	defer func() { ModuleResolver = old }()

	f := vm.NewNativeFunction("t", nil, importModuleFn)
	v := vm.NewVM()
	_, err := v.Call(f, vm.Null, []vm.Value{vm.Null, vm.NewString("foo")})
	if err == nil {
		t.Fatal("expected an error when no resolver is installed")
	}
}

func TestImportModuleFnDelegatesToResolver(t *testing.T) {
	old := ModuleResolver
	exports := vm.NewObject(vm.RootClass)
	ModuleResolver = func(path string) (vm.Value, error) {
		if path != "foo" {
			t.Errorf("resolver got path %q, want %q", path, "foo")
		}
		return exports, nil
	}
	defer func() { ModuleResolver = old }()

	got := callNative(t, importModuleFn, vm.Null, vm.NewString("foo"))
	if got != vm.Value(exports) {
		t.Errorf("got %v, want the resolver's exports object", got)
	}
}

func TestIteratorFnWalksArray(t *testing.T) {
	arr := vm.NewArrayFrom([]vm.Value{vm.Number(10), vm.Number(20)})
	it := callNative(t, iteratorFn, arr)
	obj, ok := it.(*vm.Object)
	if !ok {
		t.Fatalf("got %T, want *vm.Object", it)
	}
	headVal, _ := obj.ReadField("head")
	head, ok := headVal.(*vm.Function)
	if !ok {
		t.Fatalf("head field = %T, want *vm.Function", headVal)
	}
	v := vm.NewVM()
	first, err := v.Call(head, vm.Null, nil)
	if err != nil {
		t.Fatalf("head(): %v", err)
	}
	if n, ok := first.(vm.NumberValue); !ok || float64(n) != 10 {
		t.Errorf("head() = %v, want 10", first)
	}
}

func TestIteratorFnRejectsNonArray(t *testing.T) {
	f := vm.NewNativeFunction("t", nil, iteratorFn)
	v := vm.NewVM()
	if _, err := v.Call(f, vm.Null, []vm.Value{vm.Number(1)}); err == nil {
		t.Fatal("expected an error iterating a non-array")
	}
}

func TestNotTypeEqualFn(t *testing.T) {
	got := callNative(t, notTypeEqualFn, vm.Null, vm.Null)
	if b, ok := got.(vm.BoolValue); !ok || bool(b) {
		t.Errorf("notTypeEqual(null, null) = %v, want false", got)
	}
	got = callNative(t, notTypeEqualFn, vm.Null, vm.Number(1))
	if b, ok := got.(vm.BoolValue); !ok || !bool(b) {
		t.Errorf("notTypeEqual(null, 1) = %v, want true", got)
	}
}
