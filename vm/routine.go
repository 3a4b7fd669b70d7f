package vm

import "github.com/lumen-lang/lumen/bytecode"

// Block is a straight-line run of instructions ending in two successor
// indices. next[0] is taken on false / fallthrough, next[1] on true; a
// terminal block has both equal to -1, and an unconditionally-jumping
// block has next[0] == next[1] (§3 Bytecode Model).
type Block struct {
	Code  []byte
	Next  [2]int
}

// IsTerminal reports whether this block has no successor.
func (b *Block) IsTerminal() bool { return b.Next[0] == -1 && b.Next[1] == -1 }

// IsUnconditional reports whether this block always continues to the
// same successor regardless of any popped boolean.
func (b *Block) IsUnconditional() bool { return b.Next[0] == b.Next[1] }

// Routine is a compiled unit: a constant pool plus a directed block
// graph. Execution always starts at Blocks[0].
type Routine struct {
	Name      string
	Constants []Value
	Blocks    []*Block

	// NumParams is informational; the call frame's own parameter count
	// comes from the call site (natives/closures may call with a
	// different arity than the declaration, per §4.2's RD_PARAM
	// "null if out of range").
	NumParams int
	ParamNames []string

	// SourceMap maps (block, instruction-offset) to a source position
	// (§6). Codegen does not fill it, and neither runtime errors nor the
	// trace logger read it.
	SourceMap map[BlockOffset]SourcePos
}

// BlockOffset keys a SourceMap entry.
type BlockOffset struct {
	Block      int
	Instr      int
}

// SourcePos is a human-facing source location.
type SourcePos struct {
	File string
	Line int
	Col  int
}

// NewRoutine creates an empty routine with a single empty terminal
// block, ready for codegen to extend.
func NewRoutine(name string) *Routine {
	r := &Routine{Name: name, SourceMap: make(map[BlockOffset]SourcePos)}
	r.Blocks = append(r.Blocks, &Block{Next: [2]int{-1, -1}})
	return r
}

// AddConstant interns value into the constant pool, returning its index.
// Numbers and strings are deduplicated by value; heap values are not
// (object identity matters for them).
func (r *Routine) AddConstant(value Value) (int, error) {
	for i, c := range r.Constants {
		if constEqual(c, value) {
			return i, nil
		}
	}
	if len(r.Constants) >= maxConstants {
		return 0, NewRuntimeError("constant pool overflow: routine already has %d constants", len(r.Constants))
	}
	idx := len(r.Constants)
	r.Constants = append(r.Constants, Retain(value))
	return idx, nil
}

// maxConstants is the codegen-enforced cap on a routine's constant
// pool (§7): lower than the ~16448 the 8/16-bit PUSHC encoding could
// address, chosen as the implementation's own policy limit.
const maxConstants = 8256

func constEqual(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case NumberValue:
		return av == b.(NumberValue)
	case BoolValue:
		return av == b.(BoolValue)
	case nullValue:
		return true
	case *StringValue:
		return av.s == b.(*StringValue).s
	default:
		return a == b
	}
}

// Disassemble renders block i's instructions as text.
func (r *Routine) Disassemble(block int) (string, error) {
	return bytecode.Disassemble(r.Blocks[block].Code)
}
