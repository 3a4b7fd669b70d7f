package natives

import "github.com/lumen-lang/lumen/vm"

// installArrayMembers registers the array literal lowering's "push"
// method (§4.3 Array literal) on the global Array class as a built-in
// class member.
func installArrayMembers() {
	vm.AddMember(vm.ArrayClass, "push", vm.NewNativeFunction("push", []string{"value"}, pushFn))
}

func pushFn(ctx *vm.ExecutionContext) (vm.Value, error) {
	arr, ok := ctx.GetThis().(*vm.Array)
	if !ok {
		return nil, vm.NewRuntimeError("push: receiver is not an array")
	}
	if err := arr.Push(ctx.GetParam(0)); err != nil {
		return nil, err
	}
	return arr, nil
}
