package compiler

import (
	"fmt"

	"github.com/lumen-lang/lumen/bytecode"
	"github.com/lumen-lang/lumen/vm"
)

// CodegenError is the error taxonomy's "codegen limit" class (§7):
// constant pool overflow, local-offset overflow, call arity overflow —
// anything the instruction encoding itself rejects.
type CodegenError struct {
	Pos     Position
	Message string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("%s: codegen error: %s", e.Pos, e.Message)
}

// funcGen holds the mutable state for compiling one routine: the
// routine under construction, the block currently being appended to,
// the compile-time stack-depth counter, and the lexical scope stack
// (§4.3).
type funcGen struct {
	routine *vm.Routine
	block   int
	b       *bytecode.Builder
	depth   int
	scope   *scope
}

func newFuncGen(name string) *funcGen {
	r := vm.NewRoutine(name)
	return &funcGen{routine: r, block: 0, b: bytecode.NewBuilder()}
}

func (fg *funcGen) emit(op bytecode.Op) error {
	if err := fg.b.Emit(op); err != nil {
		return &CodegenError{Message: err.Error()}
	}
	fg.depth += bytecode.StackDelta(op)
	return nil
}

func (fg *funcGen) constant(v vm.Value) (int, error) {
	idx, err := fg.routine.AddConstant(v)
	if err != nil {
		return 0, &CodegenError{Message: err.Error()}
	}
	return idx, nil
}

func (fg *funcGen) pushConstValue(v vm.Value) error {
	idx, err := fg.constant(v)
	if err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamPushConst, N: idx})
}

func (fg *funcGen) pushNumber(f float64) error  { return fg.pushConstValue(vm.Number(f)) }
func (fg *funcGen) pushString(s string) error    { return fg.pushConstValue(vm.NewString(s)) }
func (fg *funcGen) pushNull() error              { return fg.pushConstValue(vm.Null) }
func (fg *funcGen) pushBool(b bool) error        { return fg.pushConstValue(vm.Bool(b)) }

// getEnv copies the environment value that the routine's preamble
// places at the bottom of its locals region (local absolute index 0)
// onto the top of the stack (§4.3 "getEnv convention").
func (fg *funcGen) getEnv() error {
	return fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: fg.depth - 1})
}

func (fg *funcGen) newBlock() int {
	idx := len(fg.routine.Blocks)
	fg.routine.Blocks = append(fg.routine.Blocks, &vm.Block{Next: [2]int{-1, -1}})
	return idx
}

func (fg *funcGen) flush() {
	fg.routine.Blocks[fg.block].Code = fg.b.Bytes()
}

// gotoBlock closes the current block with an unconditional edge to
// target and begins emitting into target.
func (fg *funcGen) gotoBlock(target int) {
	fg.flush()
	fg.routine.Blocks[fg.block].Next = [2]int{target, target}
	fg.block = target
	fg.b = bytecode.NewBuilder()
}

// branch closes the current block with a conditional edge, consuming
// the boolean the VM pops at the block boundary (§4.2 Conditional
// Branching) — codegen's own depth counter mirrors that pop.
func (fg *funcGen) branch(whenFalse, whenTrue int) {
	fg.flush()
	fg.routine.Blocks[fg.block].Next = [2]int{whenFalse, whenTrue}
	fg.depth--
}

func (fg *funcGen) enterBlockAt(idx int) {
	fg.block = idx
	fg.b = bytecode.NewBuilder()
}

func (fg *funcGen) terminate() {
	fg.flush()
	fg.routine.Blocks[fg.block].Next = [2]int{-1, -1}
}

// collapseToOne implements the return/fallthrough lowering of §4.3:
// the current top becomes the routine's sole surviving value by
// overwriting the deepest (env) slot and popping everything above it.
func (fg *funcGen) collapseToOne() error {
	if fg.depth > 1 {
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrite, N: fg.depth - 2}); err != nil {
			return err
		}
	}
	for fg.depth > 1 {
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return err
		}
	}
	return nil
}

// CompileProgram compiles a whole script into its top-level routine.
// The caller invokes the result with a single argument: the globals
// object serving as this routine's environment.
func CompileProgram(prog *Program) (*vm.Routine, error) {
	registeredClasses = make(map[string]*vm.Class)
	if err := resolveTopLevelClasses(prog.Stmts); err != nil {
		return nil, err
	}

	fg := newFuncGen("script")
	fg.routine.NumParams = 1
	fg.routine.ParamNames = []string{"@env"}
	fg.scope = newFunctionRoot(nil)
	if err := fg.emitPreamble(); err != nil {
		return nil, err
	}
	if err := fg.genBody(prog.Stmts); err != nil {
		return nil, err
	}
	return fg.routine, nil
}

// emitPreamble reads parameter 0 (the environment) and pushes it as
// local slot 0, establishing the getEnv convention for this routine.
func (fg *funcGen) emitPreamble() error {
	if err := fg.pushNumber(0); err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamRdParam})
}

// genBody compiles a function/script body: every statement in order,
// then — if execution falls through without an explicit return —
// collapses to a single trailing value (the last statement's
// expression, or null), matching the scripting convention the
// end-to-end examples rely on (a script's value is its last
// expression).
func (fg *funcGen) genBody(stmts []Stmt) error {
	terminated, err := fg.genStmtsWithTail(stmts)
	if err != nil {
		return err
	}
	if !terminated {
		if err := fg.collapseToOne(); err != nil {
			return err
		}
		fg.terminate()
	}
	return nil
}

// genStmtsWithTail compiles stmts in order; if the last statement is
// an expression statement, its value is left on the stack instead of
// popped. Returns whether control flow definitely terminated (a
// `return` was compiled) before falling off the end.
func (fg *funcGen) genStmtsWithTail(stmts []Stmt) (bool, error) {
	for i, s := range stmts {
		isLast := i == len(stmts)-1
		if isLast {
			if es, ok := s.(*ExprStmt); ok {
				if err := fg.genExpr(es.Value); err != nil {
					return false, err
				}
				return false, nil
			}
		}
		terminated, err := fg.genStmt(s)
		if err != nil {
			return false, err
		}
		if terminated {
			return true, nil
		}
	}
	if err := fg.pushNull(); err != nil {
		return false, err
	}
	return false, nil
}

// genStmtListDiscard compiles stmts for their effects only, leaving
// the stack exactly as it found it (every declared local popped at
// scope exit), the convention used for if/for/for-in bodies.
func (fg *funcGen) genStmtListDiscard(stmts []Stmt) (bool, error) {
	entryDepth := fg.depth
	parent := fg.scope
	fg.scope = newBlockScope(parent)
	terminated := false
	for _, s := range stmts {
		t, err := fg.genStmt(s)
		if err != nil {
			fg.scope = parent
			return false, err
		}
		if t {
			terminated = true
			break
		}
	}
	fg.scope = parent
	if terminated {
		return true, nil
	}
	for fg.depth > entryDepth {
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return false, err
		}
	}
	return false, nil
}

// genStmt compiles one statement. The returned bool reports whether
// this statement unconditionally returned (ending the block).
func (fg *funcGen) genStmt(s Stmt) (bool, error) {
	switch st := s.(type) {
	case *VarDecl:
		return false, fg.genVarDecl(st)
	case *ExprStmt:
		if err := fg.genExpr(st.Value); err != nil {
			return false, err
		}
		return false, fg.emit(bytecode.Op{Family: bytecode.FamPOP})
	case *ReturnStmt:
		if st.Value != nil {
			if err := fg.genExpr(st.Value); err != nil {
				return false, err
			}
		} else if err := fg.pushNull(); err != nil {
			return false, err
		}
		if err := fg.collapseToOne(); err != nil {
			return false, err
		}
		fg.terminate()
		return true, nil
	case *IfStmt:
		return fg.genIfStmt(st)
	case *ForStmt:
		return false, fg.genForStmt(st)
	case *ForInStmt:
		return false, fg.genForInStmt(st)
	case *FunctionDecl:
		return false, fg.genFunctionDecl(st)
	case *ClassDecl:
		return false, fg.genClassDecl(st)
	case *ExportStmt:
		return false, fg.genExportStmt(st)
	case *ImportStmt:
		return false, fg.genImportStmt(st)
	default:
		return false, &CodegenError{Pos: s.Pos(), Message: fmt.Sprintf("unsupported statement %T", s)}
	}
}

func (fg *funcGen) genVarDecl(d *VarDecl) error {
	s := fg.scope
	for s != nil && s.kind != scopeParams {
		s = s.parent
	}
	if s == nil { // script level: the variable is a field of the environment
		var value Expr = &NullLit{PosVal: d.PosVal}
		if d.Value != nil {
			value = d.Value
		}
		assign := &AssignExpr{PosVal: d.PosVal, Op: TokenAssign, Target: &Ident{PosVal: d.PosVal, Name: d.Name}, Value: value}
		if err := fg.genExpr(assign); err != nil {
			return err
		}
		return fg.emit(bytecode.Op{Family: bytecode.FamPOP})
	}
	if d.Value != nil {
		if err := fg.genExpr(d.Value); err != nil {
			return err
		}
	} else if err := fg.pushNull(); err != nil {
		return err
	}
	if fg.scope == nil || fg.scope.kind != scopeBlock {
		fg.scope = newBlockScope(fg.scope)
	}
	fg.scope.declareLocal(d.Name, fg.depth-1)
	return nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (fg *funcGen) genIfStmt(st *IfStmt) (bool, error) {
	if err := fg.genExpr(st.Cond); err != nil {
		return false, err
	}
	thenBlk := fg.newBlock()
	joinBlk := fg.newBlock()
	elseBlk := joinBlk
	hasElse := len(st.Else) > 0
	if hasElse || st.IsExpr {
		elseBlk = fg.newBlock()
	}
	fg.branch(elseBlk, thenBlk)
	depthAtBranch := fg.depth

	fg.enterBlockAt(thenBlk)
	fg.depth = depthAtBranch
	var thenVal Expr
	thenTerminated, err := fg.genIfArm(st.Then, st.IsExpr, &thenVal)
	if err != nil {
		return false, err
	}
	if !thenTerminated {
		fg.gotoBlock(joinBlk)
	}

	elseTerminated := false
	if hasElse {
		fg.enterBlockAt(elseBlk)
		fg.depth = depthAtBranch
		var elseVal Expr
		elseTerminated, err = fg.genIfArm(st.Else, st.IsExpr, &elseVal)
		if err != nil {
			return false, err
		}
		if !elseTerminated {
			fg.gotoBlock(joinBlk)
		}
	} else if st.IsExpr {
		fg.enterBlockAt(elseBlk)
		fg.depth = depthAtBranch
		if err := fg.pushNull(); err != nil {
			return false, err
		}
		fg.gotoBlock(joinBlk)
	}

	fg.enterBlockAt(joinBlk)
	fg.depth = depthAtBranch
	if st.IsExpr {
		fg.depth++
	}
	if thenTerminated && elseTerminated {
		// Every arm returned: the join block is unreachable. Leave it
		// as an empty terminal block so nothing references invalid
		// successors.
		fg.terminate()
		return true, nil
	}
	return false, nil
}

// genIfArm compiles one arm's statement list. For an if used as an
// expression, the arm's value is the trailing expression (or null);
// for an if used as a statement, the arm is compiled for effect only.
func (fg *funcGen) genIfArm(stmts []Stmt, isExpr bool, _ *Expr) (bool, error) {
	if isExpr {
		return fg.genStmtsWithTail(stmts)
	}
	return fg.genStmtListDiscard(stmts)
}

func (fg *funcGen) genForStmt(st *ForStmt) error {
	if st.Init != nil {
		if _, err := fg.genStmt(st.Init); err != nil {
			return err
		}
	}
	entryDepth := fg.depth
	condBlk := fg.newBlock()
	bodyBlk := fg.newBlock()
	afterBlk := fg.newBlock()

	fg.gotoBlock(condBlk)
	if st.Cond != nil {
		if err := fg.genExpr(st.Cond); err != nil {
			return err
		}
	} else if err := fg.pushBool(true); err != nil {
		return err
	}
	fg.branch(afterBlk, bodyBlk)

	fg.enterBlockAt(bodyBlk)
	fg.depth = entryDepth
	terminated, err := fg.genStmtListDiscard(st.Body)
	if err != nil {
		return err
	}
	if !terminated {
		if st.Post != nil {
			if _, err := fg.genStmt(st.Post); err != nil {
				return err
			}
		}
		fg.gotoBlock(condBlk)
	}

	fg.enterBlockAt(afterBlk)
	fg.depth = entryDepth
	return nil
}

// genForInStmt lowers `for (x in seq) body` to the @iterator head/tail
// protocol (§4.3 Control flow).
func (fg *funcGen) genForInStmt(st *ForInStmt) error {
	if err := fg.genExpr(st.Seq); err != nil {
		return err
	}
	if err := fg.genCallNative("@iterator", 1); err != nil {
		return err
	}
	entryDepth := fg.depth // iterator now on stack, at absolute index entryDepth-1

	condBlk := fg.newBlock()
	bodyBlk := fg.newBlock()
	afterBlk := fg.newBlock()

	fg.gotoBlock(condBlk)
	iterOffset := fg.depth - entryDepth // 0 while iterator sits at top of locals region
	if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: iterOffset}); err != nil {
		return err
	}
	if err := fg.pushNull(); err != nil {
		return err
	}
	if err := fg.genCallNative("@notTypeEqual", 2); err != nil {
		return err
	}
	fg.branch(afterBlk, bodyBlk)

	fg.enterBlockAt(bodyBlk)
	fg.depth = entryDepth
	// x = iter.head()
	if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
		return err
	}
	if err := fg.pushString("head"); err != nil {
		return err
	}
	if err := fg.emit(bytecode.Op{Family: bytecode.FamRdField}); err != nil {
		return err
	}
	if err := fg.emit(bytecode.Op{Family: bytecode.FamCall, N: 0}); err != nil {
		return err
	}
	loopScope := newBlockScope(fg.scope)
	loopScope.declareLocal(st.VarName, fg.depth-1)
	parentScope := fg.scope
	fg.scope = loopScope

	bodyEntryDepth := fg.depth
	terminated, err := fg.genStmtListDiscard(st.Body)
	fg.scope = parentScope
	if err != nil {
		return err
	}
	_ = bodyEntryDepth
	if !terminated {
		// pop x, advance iterator: iter = iter.tail()
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
			return err
		}
		if err := fg.pushString("tail"); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamRdField}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCall, N: 0}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrite, N: 0}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return err
		}
		fg.gotoBlock(condBlk)
	}

	fg.enterBlockAt(afterBlk)
	fg.depth = entryDepth
	if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
		return err
	}
	return nil
}

// genCallNative resolves name via an environment field read and calls
// it against argCount values already sitting on the stack (used for
// the synthetic @-prefixed natives codegen invokes directly). getEnv
// always addresses the fixed bottom-of-locals slot regardless of how
// many arguments already sit above it, so the resolved callee lands
// directly on top, exactly where CALL expects it — no reordering of
// the already-pushed arguments is needed.
func (fg *funcGen) genCallNative(name string, argCount int) error {
	if err := fg.getEnv(); err != nil {
		return err
	}
	if err := fg.pushString(name); err != nil {
		return err
	}
	if err := fg.emit(bytecode.Op{Family: bytecode.FamRdField}); err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamCall, N: argCount})
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (fg *funcGen) genExpr(e Expr) error {
	switch ex := e.(type) {
	case *NumberLit:
		return fg.pushNumber(ex.Value)
	case *StringLit:
		return fg.pushString(ex.Value)
	case *BoolLit:
		return fg.pushBool(ex.Value)
	case *NullLit:
		return fg.pushNull()
	case *ThisExpr:
		return fg.emit(bytecode.Op{Family: bytecode.FamPushThis})
	case *Ident:
		return fg.genIdentRead(ex.Name)
	case *BinaryExpr:
		return fg.genBinaryExpr(ex)
	case *UnaryExpr:
		return fg.genUnaryExpr(ex)
	case *AssignExpr:
		return fg.genAssignExpr(ex)
	case *CallExpr:
		return fg.genCallExpr(ex)
	case *MemberExpr:
		return fg.genMemberRead(ex)
	case *IndexExpr:
		return fg.genIndexRead(ex)
	case *FunctionExpr:
		return fg.genFunctionExpr(ex)
	case *ObjectLit:
		return fg.genObjectLit(ex)
	case *ArrayLit:
		return fg.genArrayLit(ex)
	case *ifExprWrapper:
		_, err := fg.genIfStmt(ex.IfStmt)
		return err
	default:
		return &CodegenError{Pos: e.Pos(), Message: fmt.Sprintf("unsupported expression %T", e)}
	}
}

func (fg *funcGen) genIdentRead(name string) error {
	res, idx := fg.scope.lookup(name)
	switch res {
	case resParam:
		if err := fg.pushNumber(float64(idx)); err != nil {
			return err
		}
		return fg.emit(bytecode.Op{Family: bytecode.FamRdParam})
	case resLocal:
		return fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: fg.depth - idx - 1})
	default:
		if err := fg.getEnv(); err != nil {
			return err
		}
		if err := fg.pushString(name); err != nil {
			return err
		}
		return fg.emit(bytecode.Op{Family: bytecode.FamRdField})
	}
}

var binaryNatives = map[TokenType]string{
	TokenPlus: "@add", TokenMinus: "@sub", TokenStar: "@mul", TokenSlash: "@div", TokenPercent: "@mod",
	TokenEq: "@eq", TokenNotEq: "@neq", TokenLt: "@lt", TokenLtEq: "@lte", TokenGt: "@gt", TokenGtEq: "@gte",
}

func (fg *funcGen) genBinaryExpr(ex *BinaryExpr) error {
	if ex.Op == TokenAndAnd || ex.Op == TokenOrOr {
		return fg.genLogical(ex)
	}
	if err := fg.genExpr(ex.Left); err != nil {
		return err
	}
	if err := fg.genExpr(ex.Right); err != nil {
		return err
	}
	return fg.emitBinaryOp(ex.Op)
}

// emitBinaryOp invokes the environment-resolved arithmetic/comparison
// native for op against the top two stack values.
func (fg *funcGen) emitBinaryOp(op TokenType) error {
	name, ok := binaryNatives[op]
	if !ok {
		return &CodegenError{Message: fmt.Sprintf("unsupported operator %s", op)}
	}
	return fg.genCallNative(name, 2)
}

// genLogical implements short-circuit `&&`/`||` (§4.3): evaluate lhs,
// duplicate it, branch on its truthiness; the untaken path's operand
// is never evaluated.
func (fg *funcGen) genLogical(ex *BinaryExpr) error {
	if err := fg.genExpr(ex.Left); err != nil {
		return err
	}
	if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
		return err
	}
	shortCircuitBlk := fg.newBlock()
	continueBlk := fg.newBlock()
	joinBlk := fg.newBlock()
	if err := fg.toBoolNative(); err != nil {
		return err
	}
	if ex.Op == TokenOrOr {
		fg.branch(continueBlk, shortCircuitBlk)
	} else {
		fg.branch(shortCircuitBlk, continueBlk)
	}
	entryDepth := fg.depth

	fg.enterBlockAt(shortCircuitBlk)
	fg.depth = entryDepth
	fg.gotoBlock(joinBlk)

	fg.enterBlockAt(continueBlk)
	fg.depth = entryDepth
	if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
		return err
	}
	if err := fg.genExpr(ex.Right); err != nil {
		return err
	}
	fg.gotoBlock(joinBlk)

	fg.enterBlockAt(joinBlk)
	fg.depth = entryDepth
	return nil
}

func (fg *funcGen) toBoolNative() error { return fg.genCallNative("@toBool", 1) }

func (fg *funcGen) genUnaryExpr(ex *UnaryExpr) error {
	if err := fg.genExpr(ex.Operand); err != nil {
		return err
	}
	switch ex.Op {
	case TokenMinus:
		return fg.genCallNative("@neg", 1)
	case TokenBang:
		return fg.genCallNative("@not", 1)
	default:
		return &CodegenError{Pos: ex.Pos(), Message: "unsupported unary operator"}
	}
}

func (fg *funcGen) genCallExpr(ex *CallExpr) error {
	// Closures/functions read via member access become bound calls:
	// `obj.method(args)` sets this via WR_THISP so the callee sees obj.
	// The object is re-fetched by its known compile-time offset after
	// the arguments are pushed, rather than reordering already-pushed
	// values, since CALL needs the resolved callee on top.
	if mem, ok := ex.Callee.(*MemberExpr); ok {
		if err := fg.genExpr(mem.Object); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrThisP}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return err
		}
		for _, a := range ex.Args {
			if err := fg.genExpr(a); err != nil {
				return err
			}
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: len(ex.Args)}); err != nil {
			return err
		}
		if err := fg.pushString(mem.Name); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamRdField}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCall, N: len(ex.Args)}); err != nil {
			return err
		}
		// The object pushed at entry is still sitting below the
		// result; collapse it away.
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrite, N: 0}); err != nil {
			return err
		}
		return fg.emit(bytecode.Op{Family: bytecode.FamPOP})
	}

	for _, a := range ex.Args {
		if err := fg.genExpr(a); err != nil {
			return err
		}
	}
	if err := fg.genExpr(ex.Callee); err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamCall, N: len(ex.Args)})
}

func (fg *funcGen) genMemberRead(ex *MemberExpr) error {
	if err := fg.genExpr(ex.Object); err != nil {
		return err
	}
	if err := fg.pushString(ex.Name); err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamRdField})
}

func (fg *funcGen) genIndexRead(ex *IndexExpr) error {
	if err := fg.genExpr(ex.Object); err != nil {
		return err
	}
	if err := fg.genExpr(ex.IndexVal); err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamRdIndex})
}

// ---------------------------------------------------------------------------
// Assignment, including the three lvalue forms of §4.3
// ---------------------------------------------------------------------------

func (fg *funcGen) genAssignExpr(a *AssignExpr) error {
	switch target := a.Target.(type) {
	case *Ident:
		return fg.genAssignIdent(target.Name, a)
	case *MemberExpr:
		return fg.genAssignDual(a, func() error {
			if err := fg.genExpr(target.Object); err != nil {
				return err
			}
			return fg.pushString(target.Name)
		}, bytecode.FamRdField, bytecode.FamWrField)
	case *IndexExpr:
		return fg.genAssignDual(a, func() error {
			if err := fg.genExpr(target.Object); err != nil {
				return err
			}
			return fg.genExpr(target.IndexVal)
		}, bytecode.FamRdIndex, bytecode.FamWrIndex)
	default:
		return &CodegenError{Pos: a.Pos(), Message: "invalid assignment target"}
	}
}

func (fg *funcGen) genAssignIdent(name string, a *AssignExpr) error {
	res, idx := fg.scope.lookup(name)
	switch res {
	case resParam:
		if a.Op == TokenAssign {
			if err := fg.pushNumber(float64(idx)); err != nil {
				return err
			}
			if err := fg.genExpr(a.Value); err != nil {
				return err
			}
			return fg.emit(bytecode.Op{Family: bytecode.FamWrParam})
		}
		if err := fg.pushNumber(float64(idx)); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamRdParam}); err != nil {
			return err
		}
		if err := fg.genExpr(a.Value); err != nil {
			return err
		}
		if err := fg.emitBinaryOp(compoundOp(a.Op)); err != nil {
			return err
		}
		return fg.emit(bytecode.Op{Family: bytecode.FamWrParam})
	case resLocal:
		if a.Op != TokenAssign {
			if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: fg.depth - idx - 1}); err != nil {
				return err
			}
		}
		if err := fg.genExpr(a.Value); err != nil {
			return err
		}
		if a.Op != TokenAssign {
			if err := fg.emitBinaryOp(compoundOp(a.Op)); err != nil {
				return err
			}
		}
		return fg.emit(bytecode.Op{Family: bytecode.FamWrite, N: fg.depth - 2 - idx})
	default:
		return fg.genAssignDual(a, func() error {
			if err := fg.getEnv(); err != nil {
				return err
			}
			return fg.pushString(name)
		}, bytecode.FamRdField, bytecode.FamWrField)
	}
}

// genAssignDual implements the Member/Indexed lvalue forms: pushBase
// leaves [A,B] (object+name, or container+key); rd/wr are the matching
// zero-payload instruction families.
func (fg *funcGen) genAssignDual(a *AssignExpr, pushBase func() error, rd, wr bytecode.Family) error {
	if err := pushBase(); err != nil {
		return err
	}
	if a.Op != TokenAssign {
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 1}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 1}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: rd}); err != nil {
			return err
		}
	}
	if err := fg.genExpr(a.Value); err != nil {
		return err
	}
	if a.Op != TokenAssign {
		if err := fg.emitBinaryOp(compoundOp(a.Op)); err != nil {
			return err
		}
	}
	return fg.emit(bytecode.Op{Family: wr})
}

func compoundOp(op TokenType) TokenType {
	switch op {
	case TokenPlusAssign:
		return TokenPlus
	case TokenMinusAssign:
		return TokenMinus
	case TokenStarAssign:
		return TokenStar
	case TokenSlashAssign:
		return TokenSlash
	default:
		return TokenPlus
	}
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// genObjectLit implements §4.3's Object literal lowering: Object(),
// then for each property CP 0 (dup), PUSHC(name), value, WR_FIELD, POP.
func (fg *funcGen) genObjectLit(ex *ObjectLit) error {
	if err := fg.genCallNative("@object", 0); err != nil {
		return err
	}
	for i, key := range ex.Keys {
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
			return err
		}
		if err := fg.pushString(key); err != nil {
			return err
		}
		if err := fg.genExpr(ex.Values[i]); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrField}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return err
		}
	}
	return nil
}

// genArrayLit implements §4.3's Array literal lowering via @newArray
// and repeated push() calls.
func (fg *funcGen) genArrayLit(ex *ArrayLit) error {
	if err := fg.pushNumber(0); err != nil {
		return err
	}
	if err := fg.genCallNative("@newArray", 1); err != nil {
		return err
	}
	for _, el := range ex.Elements {
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil { // dup array
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrThisP}); err != nil { // this = array
			return err
		}
		if err := fg.genExpr(el); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 1}); err != nil { // dup array again
			return err
		}
		if err := fg.pushString("push"); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamRdField}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCall, N: 1}); err != nil {
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil { // discard push() result
			return err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil { // discard the array dup
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Functions and closures (§4.3 Closures)
// ---------------------------------------------------------------------------

func (fg *funcGen) genFunctionExpr(ex *FunctionExpr) error {
	fn, err := compileFunctionBody(ex.Name, ex.Params, ex.Body)
	if err != nil {
		return err
	}
	if err := fg.getEnv(); err != nil {
		return err
	}
	if err := fg.pushConstValue(fn); err != nil {
		return err
	}
	return fg.genCallNative("@makeClosure", 2)
}

func (fg *funcGen) genFunctionDecl(d *FunctionDecl) error {
	if err := fg.genFunctionExpr(d.Fn); err != nil {
		return err
	}
	if fg.scope == nil || fg.scope.kind != scopeBlock {
		fg.scope = newBlockScope(fg.scope)
	}
	fg.scope.declareLocal(d.Fn.Name, fg.depth-1)
	return nil
}

// compileFunctionBody compiles a nested function/closure body into its
// own routine. Free names resolve through the environment the
// enclosing @makeClosure binds at the call site, not through the
// outer Go-level scope chain — matching §4.3's resolution order.
func compileFunctionBody(name string, params []string, body []Stmt) (*vm.Function, error) {
	fg := newFuncGen(name)
	fg.routine.NumParams = len(params) + 1
	fg.routine.ParamNames = append([]string{"@env"}, params...)
	fg.scope = newFunctionRoot(nil)
	if err := fg.emitPreamble(); err != nil {
		return nil, err
	}
	fg.scope = newParamsScope(fg.scope, params)
	if err := fg.genBody(body); err != nil {
		return nil, err
	}
	return vm.NewUserFunction(name, params, fg.routine), nil
}

// ---------------------------------------------------------------------------
// Classes (§4.3 `new` / class instantiation)
// ---------------------------------------------------------------------------

func (fg *funcGen) genExportStmt(st *ExportStmt) error {
	if err := fg.getEnv(); err != nil {
		return err
	}
	if err := fg.pushString(st.Name); err != nil {
		return err
	}
	return fg.genCallNative("@exportSymbol", 2)
}

func (fg *funcGen) genImportStmt(st *ImportStmt) error {
	if err := fg.getEnv(); err != nil {
		return err
	}
	if err := fg.pushString(st.Path); err != nil {
		return err
	}
	if err := fg.genCallNative("@importModule", 2); err != nil {
		return err
	}
	return fg.emit(bytecode.Op{Family: bytecode.FamPOP})
}

// genClassDecl synthesizes the class's constructor per §4.3: call the
// parent constructor, stamp the receiver with the child class, then
// initialize declared members. The resulting Class value is bound as
// a local the same way a function declaration is.
func (fg *funcGen) genClassDecl(d *ClassDecl) error {
	classVal, err := fg.buildClassValue(d)
	if err != nil {
		return err
	}
	if err := fg.pushConstValue(classVal); err != nil {
		return err
	}
	// Bind the class's defining environment once, at declaration time,
	// so later calls to it (which auto-inject Env the way a closure
	// auto-injects its captured one) resolve free names correctly.
	if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
		return err
	}
	if err := fg.getEnv(); err != nil {
		return err
	}
	if err := fg.genCallNative("@bindClassEnv", 2); err != nil {
		return err
	}
	if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
		return err
	}
	if fg.scope == nil || fg.scope.kind != scopeBlock {
		fg.scope = newBlockScope(fg.scope)
	}
	fg.scope.declareLocal(d.Name, fg.depth-1)
	return nil
}

// registeredClasses lets a child class's constructor resolve its
// parent by name at codegen time. resolveTopLevelClasses populates it
// in dependency order before genBody compiles a single statement, so a
// class built here is always looked up already-complete regardless of
// which order the two ClassDecls appear in source — matching
// semantic.go's checkTopLevel, which validates every class's Extends
// against the complete set of top-level classes rather than against
// only the ones seen so far.
var registeredClasses = map[string]*vm.Class{}

// resolveTopLevelClasses builds every top-level class's vm.Class value
// before the script's statements are compiled in source order, parent
// before child, so buildClassValue's registeredClasses lookup never
// depends on whether a base class happens to appear earlier in the
// file than its subclass. genClassDecl's later call to buildClassValue
// for the same declaration then just returns the cached value.
func resolveTopLevelClasses(stmts []Stmt) error {
	byName := make(map[string]*ClassDecl)
	for _, s := range stmts {
		if cd, ok := s.(*ClassDecl); ok {
			byName[cd.Name] = cd
		}
	}

	fg := newFuncGen("")
	building := make(map[string]bool)
	var resolve func(d *ClassDecl) error
	resolve = func(d *ClassDecl) error {
		if _, ok := registeredClasses[d.Name]; ok {
			return nil
		}
		if building[d.Name] {
			return &CodegenError{Pos: d.Pos(), Message: fmt.Sprintf("class %q's extends chain cycles back to itself", d.Name)}
		}
		building[d.Name] = true
		if parentDecl, ok := byName[d.Extends]; d.Extends != "" && ok {
			if err := resolve(parentDecl); err != nil {
				return err
			}
		}
		_, err := fg.buildClassValue(d)
		building[d.Name] = false
		return err
	}

	for _, s := range stmts {
		if cd, ok := s.(*ClassDecl); ok {
			if err := resolve(cd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fg *funcGen) buildClassValue(d *ClassDecl) (*vm.Class, error) {
	if cached, ok := registeredClasses[d.Name]; ok {
		return cached, nil
	}

	var parent *vm.Class
	if d.Extends != "" {
		parent = registeredClasses[d.Extends]
	}

	ctorParams := d.Params
	if parent != nil && !d.HasExtendsArgs {
		ctorParams = append(append([]string{}, parentParamNames(parent)...), d.Params...)
	}

	members := vm.NewFieldMap()
	for _, m := range d.Members {
		members.WriteNewConst(m.Name, vm.Null)
	}

	// The constructor's own body pushes this class as a constant (to
	// stamp freshly allocated instances with it), so the class is
	// allocated before its constructor routine is compiled and
	// registered under its own name immediately, letting the body refer
	// to itself.
	class := vm.NewClassShell(d.Name, parent, members)
	registeredClasses[d.Name] = class

	ctorFn, err := compileConstructor(d, parent, class, ctorParams)
	if err != nil {
		delete(registeredClasses, d.Name)
		return nil, err
	}
	class.BindCtor(ctorFn)
	return class, nil
}

func parentParamNames(c *vm.Class) []string {
	if c.Ctor == nil {
		return nil
	}
	return c.Ctor.Params
}

// compileConstructor builds the synthetic constructor routine for a
// class declaration, implementing §4.3's `new`/class instantiation. A
// class is called like any other function: calling it binds `this` to
// the class value itself (§4.4 call dispatch polymorphism), so the
// constructor's own body is responsible for turning that into a real
// instance. It never relies on re-reading `this` after entry — the
// receiver is tracked purely through the operand stack from here on,
// per §9's note that the this-register/PUSH_THIS relationship during
// field initializers is subtle since the constructor returns the new
// object explicitly:
//  1. Calls the parent constructor (if any), forwarding this routine's
//     own `this` as the parent's `this` via WR_THISP, and takes its
//     result — an instance already stamped up to the parent's class —
//     as the receiver going forward.
//  2. Otherwise, `this` itself (the class, at the foot of the chain) is
//     the receiver.
//  3. Stamps the receiver with this class via @setClass, allocating a
//     fresh Object the first time a bare Class reaches it.
//  4. Initializes declared members, then any declared parameter not
//     already written as a field.
func compileConstructor(d *ClassDecl, parent *vm.Class, class *vm.Class, ctorParams []string) (*vm.Function, error) {
	fg := newFuncGen(d.Name + ".ctor")
	fg.routine.NumParams = len(ctorParams) + 1
	fg.routine.ParamNames = append([]string{"@env"}, ctorParams...)
	fg.scope = newFunctionRoot(nil)
	if err := fg.emitPreamble(); err != nil {
		return nil, err
	}
	fg.scope = newParamsScope(fg.scope, ctorParams)

	if err := fg.emit(bytecode.Op{Family: bytecode.FamPushThis}); err != nil {
		return nil, err
	}
	if parent != nil {
		// Forward this routine's own `this` as the parent's `this` (the
		// parent ctor is a bare Function; CALL only binds a `this` that
		// WR_THISP explicitly set since the last call).
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrThisP}); err != nil {
			return nil, err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return nil, err
		}
		if err := fg.getEnv(); err != nil { // parent.Ctor is a bare Function: CALL never auto-supplies its @env arg
			return nil, err
		}
		var args []Expr
		if d.HasExtendsArgs {
			args = d.ExtendsArgs
		} else {
			for _, name := range parentParamNames(parent) {
				args = append(args, &Ident{Name: name})
			}
		}
		for _, a := range args {
			if err := fg.genExpr(a); err != nil {
				return nil, err
			}
		}
		if err := fg.pushConstValue(parent.Ctor); err != nil { // callee must land on top, above every arg
			return nil, err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCall, N: len(args) + 1}); err != nil {
			return nil, err
		}
		// receiver (an instance, stamped up through the parent's class)
		// now sits on top, replacing the forwarded `this`.
	}
	// No parent: the PUSH_THIS above is still on top, holding the class
	// itself — the receiver @setClass will allocate a fresh instance from.

	if err := fg.pushConstValue(class); err != nil {
		return nil, err
	}
	if err := fg.genCallNative("@setClass", 2); err != nil {
		return nil, err
	}

	assignedParams := make(map[string]bool)
	for _, m := range d.Members {
		assignedParams[m.Name] = true
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
			return nil, err
		}
		if err := fg.pushString(m.Name); err != nil {
			return nil, err
		}
		if m.Value != nil {
			if err := fg.genExpr(m.Value); err != nil {
				return nil, err
			}
		} else if err := fg.genIdentRead(m.Name); err != nil {
			return nil, err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrField}); err != nil {
			return nil, err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return nil, err
		}
	}
	for _, name := range d.Params {
		if assignedParams[name] {
			continue
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamCopy, N: 0}); err != nil {
			return nil, err
		}
		if err := fg.pushString(name); err != nil {
			return nil, err
		}
		if err := fg.genIdentRead(name); err != nil {
			return nil, err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamWrField}); err != nil {
			return nil, err
		}
		if err := fg.emit(bytecode.Op{Family: bytecode.FamPOP}); err != nil {
			return nil, err
		}
	}

	if err := fg.collapseToOne(); err != nil {
		return nil, err
	}
	fg.terminate()

	return vm.NewUserFunction(d.Name, ctorParams, fg.routine), nil
}
