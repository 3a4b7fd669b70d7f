package bytecode

import "fmt"

// DisassembleInstruction decodes the instruction at pos and returns its
// text form plus the position of the next instruction, the block-local
// counterpart of the teacher's per-Chunk disassembler.
func DisassembleInstruction(code []byte, pos int) (string, int, error) {
	op, next, err := Decode(code, pos)
	if err != nil {
		return "", next, err
	}
	switch op.Family {
	case FamCall, FamCopy, FamWrite, FamPushConst:
		return fmt.Sprintf("%04d  %s %d", pos, op.Family, op.N), next, nil
	default:
		return fmt.Sprintf("%04d  %s", pos, op.Family), next, nil
	}
}

// Disassemble renders every instruction of code as one line per
// instruction.
func Disassemble(code []byte) (string, error) {
	var out string
	pos := 0
	for pos < len(code) {
		line, next, err := DisassembleInstruction(code, pos)
		if err != nil {
			return out, err
		}
		if out != "" {
			out += "\n"
		}
		out += line
		pos = next
	}
	return out, nil
}
