package natives

import (
	"math"

	"github.com/lumen-lang/lumen/vm"
)

// objectFn backs object-literal lowering (§4.3 Object literal): an
// empty, mutable Object of the root class, properties written onto it
// one WR_FIELD at a time by the caller.
func objectFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.NewObject(vm.RootClass), nil
}

// bindClassEnvFn backs a class declaration's one-time capture of its
// defining environment, run immediately after the class constant is
// pushed (§4.3 `new`/class instantiation): later calls to the class
// rely on this being set, since resolveCallable injects it the same
// way a closure injects its captured environment.
func bindClassEnvFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	class, ok := ctx.GetParam(0).(*vm.Class)
	if !ok {
		return nil, vm.NewRuntimeError("@bindClassEnv: expected a class, got %s", vm.TypeOf(ctx.GetParam(0)))
	}
	class.SetEnv(ctx.GetParam(1))
	return class, nil
}

// setClassFn backs `new`/class instantiation step 2 (§4.3): called with
// (receiver, class), it stamps receiver's class when receiver is
// already an Object (an instance built by a deeper parent constructor,
// being re-stamped with this more-derived class on the way back up the
// chain) or allocates a fresh Object of class when receiver is still a
// bare Class value (the foot of the chain, where `this` was bound to
// the class itself per the call-dispatch rule for calling a class).
func setClassFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	class, ok := ctx.GetParam(1).(*vm.Class)
	if !ok {
		return nil, vm.NewRuntimeError("@setClass: expected a class, got %s", vm.TypeOf(ctx.GetParam(1)))
	}
	if obj, ok := ctx.GetParam(0).(*vm.Object); ok {
		obj.SetClass(class)
		return obj, nil
	}
	return vm.NewObject(class), nil
}

// numericBinary wraps a float64 binary op as an @add/@sub/etc. native,
// grounded on ops.go's ToDouble coercion (§4.1 "to-double").
func numericBinary(f func(a, b float64) float64) vm.NativeFn {
	return func(ctx *vm.ExecutionContext) (vm.Value, error) {
		a, b := ctx.GetParam(0), ctx.GetParam(1)
		return vm.Number(f(vm.ToDouble(a), vm.ToDouble(b))), nil
	}
}

// addFn implements `+`: string concatenation when either operand is a
// string, numeric addition otherwise (§4.1 value operations).
func addFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	a, b := ctx.GetParam(0), ctx.GetParam(1)
	if vm.TypeOf(a) == "string" || vm.TypeOf(b) == "string" {
		return vm.NewString(vm.ToString(a) + vm.ToString(b)), nil
	}
	return vm.Number(vm.ToDouble(a) + vm.ToDouble(b)), nil
}

var subFn = numericBinary(func(a, b float64) float64 { return a - b })
var mulFn = numericBinary(func(a, b float64) float64 { return a * b })
var divFn = numericBinary(func(a, b float64) float64 { return a / b })

func modFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	a, b := vm.ToDouble(ctx.GetParam(0)), vm.ToDouble(ctx.GetParam(1))
	return vm.Number(math.Mod(a, b)), nil
}

func eqFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(vm.Equals(ctx.GetParam(0), ctx.GetParam(1))), nil
}

func neqFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(!vm.Equals(ctx.GetParam(0), ctx.GetParam(1))), nil
}

func ltFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(vm.Compare(ctx.GetParam(0), ctx.GetParam(1)) < 0), nil
}

func lteFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(vm.Compare(ctx.GetParam(0), ctx.GetParam(1)) <= 0), nil
}

func gtFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(vm.Compare(ctx.GetParam(0), ctx.GetParam(1)) > 0), nil
}

func gteFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(vm.Compare(ctx.GetParam(0), ctx.GetParam(1)) >= 0), nil
}

func negFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Number(-vm.ToDouble(ctx.GetParam(0))), nil
}

func notFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(!vm.ToBool(ctx.GetParam(0))), nil
}

func toBoolFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	return vm.Bool(vm.ToBool(ctx.GetParam(0))), nil
}
