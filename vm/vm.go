package vm

import "github.com/lumen-lang/lumen/bytecode"

// TraceFunc receives one line of interpreter trace per instruction (§6
// "trace log ... when enableTraceLog() is invoked"). Wired to a real
// logger by the cmd/lumen harness.
type TraceFunc func(frameDepth, block, instr int, op bytecode.Op)

// VM interprets compiled routines against a single shared operand
// stack and reference-counted heap (§4.4, §5). It is not safe for
// concurrent use; the engine is single-threaded by design.
type VM struct {
	stack       []Value
	frames      []*Frame
	pendingThis Value // owned ref set by WR_THISP, consumed by the next CALL
	Trace       TraceFunc
}

// NewVM creates an interpreter with an empty stack and no active calls.
func NewVM() *VM {
	return &VM{}
}

// Run invokes fn with the given already-owned argument values and no
// bound this, as the host's evaluate() entry point does for a script's
// top-level routine.
func (vm *VM) Run(fn *Function, args []Value) (Value, error) {
	return vm.invoke(fn, Null, args)
}

// Call invokes fn as a method with this bound, for host code (natives,
// the LSP server, CLI harness) driving a callback into user code.
func (vm *VM) Call(fn *Function, this Value, args []Value) (Value, error) {
	return vm.invoke(fn, Retain(this), args)
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return nil, errStackUnderflow()
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

// peekAt returns (without removing) the value at offset from the top;
// offset 0 is the top itself.
func (vm *VM) peekAt(offset int) (Value, error) {
	idx := len(vm.stack) - 1 - offset
	if idx < 0 || idx >= len(vm.stack) {
		return nil, errStackUnderflow()
	}
	return vm.stack[idx], nil
}

// invoke runs fn with already-owned this/args, dispatching to a native
// Go function or entering the routine's block graph, per the Call
// Convention of §4.2 steps 4-6.
func (vm *VM) invoke(fn *Function, this Value, args []Value) (Value, error) {
	frame := &Frame{Routine: fn.Routine, This: this, Params: args}
	defer frame.release()

	if fn.Native != nil {
		ctx := &ExecutionContext{vm: vm, frame: frame}
		return fn.Native(ctx)
	}

	vm.frames = append(vm.frames, frame)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()

	result, err := vm.execRoutine(frame)
	if err != nil {
		if rt, ok := err.(*RuntimeError); ok {
			rt.withBlockRoutine(frame.Block, len(vm.frames)-1)
		}
		return nil, err
	}
	return result, nil
}

// execRoutine runs frame's block graph one block at a time (§4.4 Main
// loop) until a terminal block is reached, returning the single value
// it must leave on the stack (§8 invariant 3).
func (vm *VM) execRoutine(frame *Frame) (Value, error) {
	block := 0
	for {
		frame.Block = block
		blk := frame.Routine.Blocks[block]
		if err := vm.execBlock(frame, block, blk.Code); err != nil {
			return nil, err
		}
		if blk.IsTerminal() {
			return vm.pop()
		}
		next := blk.Next[0]
		if !blk.IsUnconditional() {
			cond, err := vm.pop()
			if err != nil {
				return nil, err
			}
			truth := ToBool(cond)
			Release(cond)
			if truth {
				next = blk.Next[1]
			}
		}
		block = next
	}
}

func (vm *VM) execBlock(frame *Frame, blockIdx int, code []byte) error {
	pos := 0
	for pos < len(code) {
		instrStart := pos
		op, next, err := bytecode.Decode(code, pos)
		if err != nil {
			return NewRuntimeError("%s", err.Error()).withInstruction(instrStart)
		}
		pos = next
		if vm.Trace != nil {
			vm.Trace(len(vm.frames)-1, blockIdx, instrStart, op)
		}
		if err := vm.exec1(frame, op); err != nil {
			if rt, ok := err.(*RuntimeError); ok {
				rt.withInstruction(instrStart)
			}
			return err
		}
	}
	return nil
}

// exec1 dispatches a single decoded instruction, mutating the shared
// operand stack and this frame's params/pending-this state (§4.2).
func (vm *VM) exec1(frame *Frame, op bytecode.Op) error {
	switch op.Family {
	case bytecode.FamNOP:
		return nil

	case bytecode.FamPOP:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		Release(v)
		return nil

	case bytecode.FamSWAP:
		n := len(vm.stack)
		if n < 2 {
			return errStackUnderflow()
		}
		vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
		return nil

	case bytecode.FamRdField:
		return vm.execRdField()
	case bytecode.FamWrField:
		return vm.execWrField(false)
	case bytecode.FamNewConstField:
		return vm.execWrField(true)
	case bytecode.FamRdIndex:
		return vm.execRdIndex()
	case bytecode.FamWrIndex:
		return vm.execWrIndex()
	case bytecode.FamRdParam:
		return vm.execRdParam(frame)
	case bytecode.FamWrParam:
		return vm.execWrParam(frame)

	case bytecode.FamNumParams:
		vm.push(Number(float64(frame.NumParams())))
		return nil

	case bytecode.FamPushThis:
		vm.push(Retain(frame.This))
		return nil

	case bytecode.FamWrThisP:
		top, err := vm.peekAt(0)
		if err != nil {
			return err
		}
		if vm.pendingThis != nil {
			Release(vm.pendingThis)
		}
		vm.pendingThis = Retain(top)
		return nil

	case bytecode.FamCopy:
		v, err := vm.peekAt(op.N)
		if err != nil {
			return err
		}
		vm.push(Retain(v))
		return nil

	case bytecode.FamWrite:
		top, err := vm.peekAt(0)
		if err != nil {
			return err
		}
		idx := len(vm.stack) - 1 - (op.N + 1)
		if idx < 0 {
			return errStackUnderflow()
		}
		Release(vm.stack[idx])
		vm.stack[idx] = Retain(top)
		return nil

	case bytecode.FamPushConst:
		if op.N < 0 || op.N >= len(frame.Routine.Constants) {
			return NewRuntimeError("constant index %d out of range", op.N)
		}
		vm.push(Retain(frame.Routine.Constants[op.N]))
		return nil

	case bytecode.FamCall:
		return vm.execCall(op.N)

	default:
		return NewRuntimeError("unhandled opcode family %v", op.Family)
	}
}

func (vm *VM) execRdField() error {
	name, err := vm.pop()
	if err != nil {
		return err
	}
	obj, err := vm.pop()
	if err != nil {
		Release(name)
		return err
	}
	val := ReadField(obj, ToString(name))
	vm.push(Retain(val))
	Release(name)
	Release(obj)
	return nil
}

func (vm *VM) execWrField(asConst bool) error {
	value, err := vm.pop()
	if err != nil {
		return err
	}
	name, err := vm.pop()
	if err != nil {
		Release(value)
		return err
	}
	obj, err := vm.pop()
	if err != nil {
		Release(value)
		Release(name)
		return err
	}
	if err := WriteField(obj, ToString(name), value, asConst); err != nil {
		Release(value)
		Release(name)
		Release(obj)
		return err
	}
	vm.push(value)
	Release(name)
	Release(obj)
	return nil
}

func (vm *VM) execRdIndex() error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	container, err := vm.pop()
	if err != nil {
		Release(key)
		return err
	}
	val, gerr := GetAt(container, key)
	if gerr != nil {
		Release(key)
		Release(container)
		return gerr
	}
	vm.push(Retain(val))
	Release(key)
	Release(container)
	return nil
}

func (vm *VM) execWrIndex() error {
	value, err := vm.pop()
	if err != nil {
		return err
	}
	key, err := vm.pop()
	if err != nil {
		Release(value)
		return err
	}
	container, err := vm.pop()
	if err != nil {
		Release(value)
		Release(key)
		return err
	}
	if serr := SetAt(container, key, value); serr != nil {
		Release(value)
		Release(key)
		Release(container)
		return serr
	}
	vm.push(value)
	Release(key)
	Release(container)
	return nil
}

func (vm *VM) execRdParam(frame *Frame) error {
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	if !IsInteger(idx) {
		Release(idx)
		vm.push(Null)
		return nil
	}
	i := int(ToDouble(idx))
	Release(idx)
	vm.push(Retain(frame.Param(i)))
	return nil
}

func (vm *VM) execWrParam(frame *Frame) error {
	value, err := vm.pop()
	if err != nil {
		return err
	}
	idx, err := vm.pop()
	if err != nil {
		Release(value)
		return err
	}
	if !IsInteger(idx) || int(ToDouble(idx)) < 0 || int(ToDouble(idx)) >= frame.NumParams() {
		Release(idx)
		Release(value)
		vm.push(Null)
		return nil
	}
	i := int(ToDouble(idx))
	Release(idx)
	frame.SetParam(i, value)
	vm.push(value)
	return nil
}

// execCall implements the Call Convention of §4.2.
func (vm *VM) execCall(n int) error {
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	if len(vm.stack) < n {
		Release(callee)
		return errStackUnderflow()
	}
	args := make([]Value, n)
	copy(args, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]

	fn, closureEnv, boundThis, rerr := resolveCallable(callee)
	if rerr != nil {
		Release(callee)
		releaseEach(args)
		return rerr
	}

	var this Value
	if boundThis != nil {
		if vm.pendingThis != nil {
			Release(vm.pendingThis)
			vm.pendingThis = nil
		}
		this = Retain(boundThis)
	} else if vm.pendingThis != nil {
		this = vm.pendingThis
		vm.pendingThis = nil
	} else {
		this = Null
	}

	if closureEnv != nil {
		withEnv := make([]Value, 0, len(args)+1)
		withEnv = append(withEnv, Retain(closureEnv))
		withEnv = append(withEnv, args...)
		args = withEnv
	}

	result, ierr := vm.invoke(fn, this, args)
	Release(callee)
	if ierr != nil {
		return ierr
	}
	vm.push(result)
	return nil
}

func releaseEach(vs []Value) {
	for _, v := range vs {
		Release(v)
	}
}
