// Package natives registers the handful of primitives the codegen
// pass emits calls to directly (@makeClosure, @newArray, @iterator,
// @exportSymbol, @importModule) plus the assert/error helpers every
// test script relies on, onto a fresh global scope.
package natives

import (
	"github.com/lumen-lang/lumen/vm"
)

// Install registers every core native onto globals, the object passed
// as the environment value of the top-level routine.
func Install(globals vm.Value) error {
	for _, n := range []struct {
		header  string
		fn      vm.NativeFn
		isConst bool
	}{
		{"function assert(value, text)", assertFn, true},
		{"function RaiseError(text)", raiseErrorFn, true},
		{"function @deepFreeze(value)", deepFreezeFn, true},
		{"function @newArray(length)", newArrayFn, true},
		{"function @makeClosure(env, fn)", makeClosureFn, true},
		{"function @exportSymbol(env, name)", exportSymbolFn, true},
		{"function @importModule(env, path)", importModuleFn, true},
		{"function @iterator(seq)", iteratorFn, true},
		{"function @notTypeEqual(a, b)", notTypeEqualFn, true},
		{"function @object()", objectFn, true},
		{"function @setClass(receiver, class)", setClassFn, true},
		{"function @bindClassEnv(class, env)", bindClassEnvFn, true},
		{"function @add(a, b)", addFn, true},
		{"function @sub(a, b)", subFn, true},
		{"function @mul(a, b)", mulFn, true},
		{"function @div(a, b)", divFn, true},
		{"function @mod(a, b)", modFn, true},
		{"function @eq(a, b)", eqFn, true},
		{"function @neq(a, b)", neqFn, true},
		{"function @lt(a, b)", ltFn, true},
		{"function @lte(a, b)", lteFn, true},
		{"function @gt(a, b)", gtFn, true},
		{"function @gte(a, b)", gteFn, true},
		{"function @neg(a)", negFn, true},
		{"function @not(a)", notFn, true},
		{"function @toBool(a)", toBoolFn, true},
	} {
		if err := vm.AddNative(n.header, n.fn, globals, n.isConst); err != nil {
			return err
		}
	}
	installArrayMembers()
	return nil
}

// assert raises a runtime error carrying the given text when value is
// falsy, grounded on the reference suite's assertFunction.
func assertFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	value := ctx.GetParam(0)
	if !vm.ToBool(value) {
		text := vm.ToString(ctx.GetParam(1))
		return nil, vm.NewRuntimeError("Assertion failed: %s", text)
	}
	return vm.Null, nil
}

// RaiseError lets scripts throw a custom runtime error with a message.
func raiseErrorFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return nil, vm.NewRuntimeError("%s", vm.ToString(ctx.GetParam(0)))
}

// deepFreeze is the callable form of vm.DeepFreeze, exposed as a
// native so user code (and the synthetic codegen it drives) can invoke
// it like any other function.
func deepFreezeFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.DeepFreeze(ctx.GetParam(0)), nil
}

// newArray backs the array-literal lowering (§4.3 Array literal):
// allocate an array pre-sized to length, filled with null.
func newArrayFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	length := int(vm.ToDouble(ctx.GetParam(0)))
	arr := vm.NewArray()
	if err := arr.SetLength(length); err != nil {
		return nil, err
	}
	return arr, nil
}

// makeClosure backs closure creation at a function expression's
// definition site (§4.3 Closures): binds fn to env.
func makeClosureFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	fnVal := ctx.GetParam(1)
	fn, ok := fnVal.(*vm.Function)
	if !ok {
		return nil, vm.NewRuntimeError("@makeClosure: expected a function, got %s", vm.TypeOf(fnVal))
	}
	return vm.NewClosure(fn, ctx.GetParam(0)), nil
}

// exportSymbol backs `export X` (§4.3 Export/Import): marks name as
// exported on env by writing it into a reserved field. The actual
// module-resolution host mechanics live outside the VM core; this
// native only records the intent the way the codegen contract expects.
func exportSymbolFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	env := ctx.GetParam(0)
	name := vm.ToString(ctx.GetParam(1))
	exportsVal := vm.ReadField(env, "@exports")
	exportsArr, ok := exportsVal.(*vm.Array)
	if !ok {
		exportsArr = vm.NewArray()
		if err := vm.WriteField(env, "@exports", exportsArr, false); err != nil {
			return nil, err
		}
	}
	if err := exportsArr.Push(vm.NewString(name)); err != nil {
		return nil, err
	}
	return vm.Null, nil
}

// importModule backs `import path` (§4.3 Export/Import). Resolution of
// path to a loaded module's globals is a host concern (cmd/lumen); this
// native raises if invoked without a host-installed resolver, since the
// core cannot open files on its own.
var ModuleResolver func(path string) (vm.Value, error)

func importModuleFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	path := vm.ToString(ctx.GetParam(1))
	if ModuleResolver == nil {
		return nil, vm.NewRuntimeError("import %q: no module resolver installed", path)
	}
	return ModuleResolver(path)
}

// iterator backs `for (x in seq)` lowering (§4.3 Control flow): Arrays
// get a cursor-based iterator exposing head()/tail() methods; anything
// else is an error, since the core does not define a generic protocol
// beyond what codegen's lowering expects.
func iteratorFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	seq := ctx.GetParam(0)
	arr, ok := seq.(*vm.Array)
	if !ok {
		return nil, vm.NewRuntimeError("@iterator: expected an array, got %s", vm.TypeOf(seq))
	}
	return newArrayIterator(arr, 0), nil
}

// arrayIterator is an Object whose "head" field is a native returning
// the element at the current cursor and whose "tail" field is a native
// returning the next iterator (or null at the end), matching the
// lowering codegen emits for `for (x in seq)`.
func newArrayIterator(arr *vm.Array, pos int) vm.Value {
	if pos >= arr.Len() {
		return vm.Null
	}
	obj := vm.NewObject(vm.RootClass)
	head := vm.NewNativeFunction("head", nil, func(*vm.ExecutionContext) (vm.Value, error) {
		return arr.Get(pos), nil
	})
	tail := vm.NewNativeFunction("tail", nil, func(*vm.ExecutionContext) (vm.Value, error) {
		return newArrayIterator(arr, pos+1), nil
	})
	if err := vm.WriteField(obj, "head", head, true); err != nil {
		return vm.Null
	}
	if err := vm.WriteField(obj, "tail", tail, true); err != nil {
		return vm.Null
	}
	return obj
}

// notTypeEqual backs the `!==`-style comparison the reference iterator
// loop condition lowers to (iterator != null), independent of to-bool
// coercion.
func notTypeEqualFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	a, b := ctx.GetParam(0), ctx.GetParam(1)
	return vm.Bool(!(a.Kind() == b.Kind() && vm.Equals(a, b))), nil
}
