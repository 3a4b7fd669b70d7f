package vm

import (
	"github.com/tliron/commonlog"

	"github.com/lumen-lang/lumen/bytecode"
)

// NewCommonLogTrace builds a TraceFunc that writes one structured log
// line per instruction to log, the shape described by §6's "trace log
// (one line per instruction) when enableTraceLog() is invoked".
func NewCommonLogTrace(log commonlog.Logger) TraceFunc {
	return func(frameDepth, block, instr int, op bytecode.Op) {
		log.Debugf("depth=%d block=%d instr=%d op=%s n=%d", frameDepth, block, instr, op.Family, op.N)
	}
}
