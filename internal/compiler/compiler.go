// Package compiler implements spec §4.F: it lowers a list of
// internal/ast statements into an internal/bytecode Module, resolving
// locals/upvalues/globals and patching control-flow jumps as it goes.
//
// Grounded on other_examples' mna-nenuphar (lang/compiler/compiler.go),
// nooga-paserati (pkg/compiler/compiler.go) and rmay-nuxvm
// (pkg/lux/compiler.go): all three are single-pass AST-to-bytecode
// compilers built around an explicit context/scope stack, which is
// exactly the shape spec §4.F specifies (a Locals list plus an
// Upvalue recipe list per function-like context).
package compiler

import (
	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/wisperr"
)

// kind distinguishes the four context shapes spec §4.F's scope rules
// depend on: a bare script, a free function, a method and an
// initializer each reserve/initialize slot 0 differently and accept
// different `return` forms.
type kind int

const (
	kindScript kind = iota
	kindFunction
	kindMethod
	kindInitializer
)

// localVar is one entry of a context's flat Locals stack (spec §4.F).
type localVar struct {
	name        string
	depth       int
	initialized bool
	captured    bool
}

// context corresponds to one function-like scope: the chunk being
// written, its locals, and its upvalue recipes (spec §4.F).
type context struct {
	enclosing *context
	kind      kind

	chunkIndex int
	locals     []localVar
	upvalues   []bytecode.UpvalueRecipe
	scopeDepth int

	name  string
	arity int
}

// Compiler lowers a parsed program to a bytecode.Module.
type Compiler struct {
	module  *bytecode.Module
	current *context
	errs    []error
}

// scratchImportGlobal is a reserved global-table key used as a one-slot
// scratch register while binding selective-import names (see
// importStmt): the bytecode opcode set has no stack-rotate
// instruction, so a name bound by `import "x" for y;` is routed through
// this throwaway global rather than left stranded under the Import
// value IMPORT_GLOBAL's peek semantics leave on the stack.
const scratchImportGlobal = "$import"

// Compile lowers stmts (the whole of a parsed source file) to a Module.
// Compile errors are collected and returned rather than stopping at the
// first one (spec §7: "compilation aborts after collecting all errors
// at the top level").
func Compile(stmts []ast.Stmt) (*bytecode.Module, []error) {
	c := &Compiler{module: bytecode.NewModule()}
	c.current = &context{kind: kindScript, chunkIndex: 0}
	c.reserveSlotZero()
	for _, s := range stmts {
		c.statement(s)
	}
	c.emitOp(bytecode.OpNil)
	c.emitOp(bytecode.OpReturn)
	return c.module, c.errs
}

func (c *Compiler) chunk() *bytecode.Chunk { return &c.module.Chunks[c.current.chunkIndex] }

func (c *Compiler) errorf(kind wisperr.Kind, line int, format string, args ...any) {
	c.errs = append(c.errs, wisperr.NewCompileError(kind, line, format, args...))
}

// reserveSlotZero marks every context's slot 0 as declared and
// initialized immediately (spec §4.F: named `this` for methods/
// initializers, unnamed for free functions and top level).
func (c *Compiler) reserveSlotZero() {
	name := ""
	if c.current.kind == kindMethod || c.current.kind == kindInitializer {
		name = "this"
	}
	c.current.locals = append(c.current.locals, localVar{name: name, depth: 0, initialized: true})
}

// --- emission helpers ---

func (c *Compiler) emitByte(b byte) int { return c.chunk().WriteByte(b) }
func (c *Compiler) emitOp(op bytecode.Op) int { return c.chunk().WriteOp(op) }
func (c *Compiler) emitU32(v uint32) int      { return c.chunk().WriteU32(v) }
func (c *Compiler) emitU16(v uint16) int      { return c.chunk().WriteU16(v) }

// emitJump emits op followed by a 2-byte placeholder and returns the
// placeholder's offset for a later PatchJump (spec §4.E).
func (c *Compiler) emitJump(op bytecode.Op) int {
	c.emitOp(op)
	return c.chunk().WriteI16(0)
}

func (c *Compiler) patchJumpHere(placeholder int) {
	c.chunk().PatchJump(placeholder, c.chunk().Len())
}

// emitLoop emits JUMP with a placeholder pre-patched back to loopStart
// (a backward jump, per spec §4.F's `while` rule).
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpJump)
	off := c.chunk().WriteI16(0)
	c.chunk().PatchJump(off, loopStart)
}

// --- scope discipline (spec §4.F) ---

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

// endScope pops every local declared at or past the scope being closed,
// emitting CLOSE_UPVALUE for captured locals and POP otherwise.
func (c *Compiler) endScope() {
	c.current.scopeDepth--
	locals := c.current.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.current.scopeDepth {
		if locals[len(locals)-1].captured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.current.locals = locals
}

// --- variable resolution (spec §4.F) ---

// resolveLocal scans ctx's locals innermost-out for name.
func resolveLocal(ctx *context, name string) (slot int, found bool, initialized bool) {
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		if ctx.locals[i].name == name {
			return i, true, ctx.locals[i].initialized
		}
	}
	return 0, false, false
}

// resolveUpvalue implements spec §4.F's upvalue resolution: if name is
// a local of some enclosing context, mark it captured there and thread
// an Upvalue(Local)/Upvalue(Upvalue) recipe chain down to ctx.
func resolveUpvalue(ctx *context, name string) (int, bool) {
	if ctx.enclosing == nil {
		return 0, false
	}
	if slot, found, _ := resolveLocal(ctx.enclosing, name); found {
		ctx.enclosing.locals[slot].captured = true
		return addUpvalue(ctx, bytecode.UpvalueRecipe{Source: bytecode.FromLocal, Index: uint16(slot)}), true
	}
	if up, found := resolveUpvalue(ctx.enclosing, name); found {
		return addUpvalue(ctx, bytecode.UpvalueRecipe{Source: bytecode.FromUpvalue, Index: uint16(up)}), true
	}
	return 0, false
}

// addUpvalue appends recipe to ctx's upvalue list, deduplicating an
// identical existing recipe so multiple references to the same
// captured variable share one upvalue slot.
func addUpvalue(ctx *context, recipe bytecode.UpvalueRecipe) int {
	for i, u := range ctx.upvalues {
		if u == recipe {
			return i
		}
	}
	ctx.upvalues = append(ctx.upvalues, recipe)
	return len(ctx.upvalues) - 1
}

// declareVariable registers name in the current scope: a no-op at
// global scope (handled later by defineVariable), a fresh uninitialized
// local otherwise, rejecting a duplicate name at the same depth.
func (c *Compiler) declareVariable(name string, line int) {
	if c.current.scopeDepth == 0 {
		return
	}
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		l := c.current.locals[i]
		if l.depth < c.current.scopeDepth {
			break
		}
		if l.name == name {
			c.errorf(wisperr.KindLocalAlreadyDefined, line, "%q already defined in this scope", name)
		}
	}
	c.current.locals = append(c.current.locals, localVar{name: name, depth: c.current.scopeDepth})
}

// defineVariable finishes a declaration: DEFINE_GLOBAL at global scope,
// or marking the most recent local initialized otherwise.
func (c *Compiler) defineVariable(name string) {
	if c.current.scopeDepth > 0 {
		c.current.locals[len(c.current.locals)-1].initialized = true
		return
	}
	idx := c.module.AddIdentifier(name)
	c.emitOp(bytecode.OpDefineGlobal)
	c.emitU32(idx)
}

// resolveVariable compiles a read of name: LOCAL, UPVALUE or GLOBAL per
// spec §4.F.
func (c *Compiler) resolveVariable(name string, line int) {
	if slot, found, initialized := resolveLocal(c.current, name); found {
		if !initialized {
			c.errorf(wisperr.KindLocalNotInitialized, line, "cannot read local %q in its own initializer", name)
		}
		c.emitOp(bytecode.OpGetLocal)
		c.emitU16(uint16(slot))
		return
	}
	if idx, found := resolveUpvalue(c.current, name); found {
		c.emitOp(bytecode.OpGetUpvalue)
		c.emitU16(uint16(idx))
		return
	}
	identIdx := c.module.AddIdentifier(name)
	c.emitOp(bytecode.OpGetGlobal)
	c.emitU32(identIdx)
}

// assignVariable compiles a write of value (already compiled, left on
// the stack) to name: SET_LOCAL, SET_UPVALUE or SET_GLOBAL.
func (c *Compiler) assignVariable(name string, line int) {
	if slot, found, _ := resolveLocal(c.current, name); found {
		c.emitOp(bytecode.OpSetLocal)
		c.emitU16(uint16(slot))
		return
	}
	if idx, found := resolveUpvalue(c.current, name); found {
		c.emitOp(bytecode.OpSetUpvalue)
		c.emitU16(uint16(idx))
		return
	}
	identIdx := c.module.AddIdentifier(name)
	c.emitOp(bytecode.OpSetGlobal)
	c.emitU32(identIdx)
}

// --- statements ---

func (c *Compiler) statement(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ExpressionStmt:
		c.expression(s.Expr)
		c.emitOp(bytecode.OpPop)
	case *ast.PrintStmt:
		c.expression(s.Expr)
		c.emitOp(bytecode.OpPrint)
	case *ast.VarStmt:
		c.varStmt(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, inner := range s.Stmts {
			c.statement(inner)
		}
		c.endScope()
	case *ast.IfStmt:
		c.ifStmt(s)
	case *ast.WhileStmt:
		c.whileStmt(s)
	case *ast.ReturnStmt:
		c.returnStmt(s)
	case *ast.FunctionStmt:
		c.funcDeclStmt(s)
	case *ast.ClassStmt:
		c.classStmt(s)
	case *ast.ImportStmt:
		c.importStmt(s)
	default:
		c.errorf(wisperr.KindSyntaxError, 0, "unsupported statement %T", s)
	}
}

func (c *Compiler) varStmt(s *ast.VarStmt) {
	c.declareVariable(s.Name, s.Line)
	if s.Init != nil {
		c.expression(s.Init)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.defineVariable(s.Name)
}

func (c *Compiler) ifStmt(s *ast.IfStmt) {
	c.expression(s.Cond)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement(s.Then)
	if s.Else != nil {
		elseJump := c.emitJump(bytecode.OpJump)
		c.patchJumpHere(thenJump)
		c.emitOp(bytecode.OpPop)
		c.statement(s.Else)
		c.patchJumpHere(elseJump)
	} else {
		c.patchJumpHere(thenJump)
	}
}

func (c *Compiler) whileStmt(s *ast.WhileStmt) {
	loopStart := c.chunk().Len()
	c.expression(s.Cond)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement(s.Body)
	c.emitLoop(loopStart)
	c.patchJumpHere(exitJump)
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) returnStmt(s *ast.ReturnStmt) {
	if c.current.kind == kindScript {
		c.errorf(wisperr.KindSyntaxError, s.Line, "cannot return from top-level code")
		return
	}
	if s.Value == nil {
		if c.current.kind == kindInitializer {
			c.emitOp(bytecode.OpGetLocal)
			c.emitU16(0)
		} else {
			c.emitOp(bytecode.OpNil)
		}
		c.emitOp(bytecode.OpReturn)
		return
	}
	if c.current.kind == kindInitializer {
		c.errorf(wisperr.KindReturnFromInitializer, s.Line, "cannot return a value from an initializer")
		return
	}
	c.expression(s.Value)
	c.emitOp(bytecode.OpReturn)
}

// funcDeclStmt compiles a free function declaration: declare/define its
// name as a variable (so recursive calls resolve) before compiling the
// body, matching the teacher-grounded single-pass compilers' "declare
// before body" convention so a function can call itself.
func (c *Compiler) funcDeclStmt(s *ast.FunctionStmt) {
	c.declareVariable(s.Name, s.Line)
	if c.current.scopeDepth > 0 {
		c.current.locals[len(c.current.locals)-1].initialized = true
	}
	c.compileFunction(s, kindFunction)
	c.defineVariable(s.Name)
}

// compileFunction opens a new context/chunk, compiles params+body, and
// emits CLOSURE in the enclosing chunk referencing the resulting
// ClosureProto (spec §4.F "Functions").
func (c *Compiler) compileFunction(s *ast.FunctionStmt, k kind) {
	chunkIdx := c.module.AddChunk()
	enclosing := c.current
	c.current = &context{enclosing: enclosing, kind: k, chunkIndex: chunkIdx, name: s.Name, arity: len(s.Params)}
	c.reserveSlotZero()

	c.beginScopeNoEmit() // params live at depth 1, no CLOSE_UPVALUE/POP needed on exit (function end truncates the whole frame)
	for _, p := range s.Params {
		c.declareVariable(p, s.Line)
		c.current.locals[len(c.current.locals)-1].initialized = true
	}
	for _, stmt := range s.Body {
		c.statement(stmt)
	}
	if k == kindInitializer {
		c.emitOp(bytecode.OpGetLocal)
		c.emitU16(0)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.emitOp(bytecode.OpReturn)

	proto := bytecode.ClosureProto{
		Function: bytecode.FunctionProto{Name: s.Name, ChunkIndex: chunkIdx, Arity: len(s.Params)},
		Upvalues: c.current.upvalues,
	}
	c.current = enclosing
	idx := c.module.AddClosure(proto)
	c.emitOp(bytecode.OpClosure)
	c.emitU32(idx)
}

// beginScopeNoEmit increments scopeDepth without being paired with an
// endScope that emits cleanup ops: the function's whole frame is
// discarded by the Fiber's EndFrame when it returns (spec §4.G), so
// there is no need to individually POP/CLOSE_UPVALUE its top-level
// locals first.
func (c *Compiler) beginScopeNoEmit() { c.current.scopeDepth++ }

func (c *Compiler) classStmt(s *ast.ClassStmt) {
	if s.Superclass != "" {
		c.errorf(wisperr.KindInvalidSuper, s.Line, "inheritance is not supported")
	}
	c.declareVariable(s.Name, s.Line)
	classIdx := c.module.AddClass(bytecode.ClassProto{Name: s.Name})
	c.emitOp(bytecode.OpClass)
	c.emitByte(byte(classIdx))
	c.defineVariable(s.Name)

	// Re-push the class for method binding (spec §4.F).
	c.resolveVariable(s.Name, s.Line)
	for _, m := range s.Methods {
		k := kindMethod
		if m.IsInit {
			k = kindInitializer
		}
		c.compileFunction(m, k)
		identIdx := c.module.AddIdentifier(m.Name)
		c.emitOp(bytecode.OpMethod)
		c.emitU32(identIdx)
	}
	c.emitOp(bytecode.OpPop) // discard the re-pushed class reference
}

// importStmt compiles both the bare `import "path";` form and the
// selective `import "path" for a, b;` form (spec §6.1, §9 Open
// Questions — resolved per DESIGN.md as "bind each name via the same
// lookup IMPORT_GLOBAL performs").
func (c *Compiler) importStmt(s *ast.ImportStmt) {
	strIdx := c.module.AddString(s.Path)
	c.emitOp(bytecode.OpImport)
	c.emitU32(strIdx)

	if len(s.Names) == 0 {
		c.emitOp(bytecode.OpPop)
		return
	}

	scratch := c.module.AddIdentifier(scratchImportGlobal)
	for i, name := range s.Names {
		if i > 0 {
			c.emitOp(bytecode.OpImport) // cached by now: pushes the same Import -> [Import]
			c.emitU32(strIdx)
		}
		identIdx := c.module.AddIdentifier(name)
		c.emitOp(bytecode.OpImportGlobal) // peek Import, push its global -> [Import, value]
		c.emitU32(identIdx)
		c.emitOp(bytecode.OpDefineGlobal) // pop value into scratch -> [Import]
		c.emitU32(scratch)
		c.emitOp(bytecode.OpPop) // discard the Import -> []

		c.declareVariable(name, s.Line)
		c.emitOp(bytecode.OpGetGlobal) // -> [value]
		c.emitU32(scratch)
		c.defineVariable(name) // local: marks value as the new local; global: pops+stores
	}
}

// --- expressions ---

func (c *Compiler) expression(e ast.Expr) {
	switch e := e.(type) {
	case *ast.Number:
		idx := c.module.AddNumber(e.Value)
		c.emitOp(bytecode.OpConstant)
		c.emitU32(bytecode.EncodeNumberConstant(idx))
	case *ast.String:
		idx := c.module.AddString(e.Value)
		c.emitOp(bytecode.OpConstant)
		c.emitU32(bytecode.EncodeStringConstant(idx))
	case *ast.Boolean:
		if e.Value {
			c.emitOp(bytecode.OpTrue)
		} else {
			c.emitOp(bytecode.OpFalse)
		}
	case *ast.Nil:
		c.emitOp(bytecode.OpNil)
	case *ast.This:
		if c.current.kind != kindMethod && c.current.kind != kindInitializer {
			c.errorf(wisperr.KindInvalidThis, e.Line, "'this' outside a method")
			return
		}
		c.emitOp(bytecode.OpGetLocal)
		c.emitU16(0)
	case *ast.Variable:
		c.resolveVariable(e.Name, e.Line)
	case *ast.Assign:
		c.expression(e.Value)
		c.assignVariable(e.Name, e.Line)
	case *ast.Unary:
		c.expression(e.Operand)
		switch e.Op {
		case ast.OpMinus:
			c.emitOp(bytecode.OpNegate)
		case ast.OpBang:
			c.emitOp(bytecode.OpNot)
		}
	case *ast.Binary:
		c.binary(e)
	case *ast.Logical:
		c.logical(e)
	case *ast.Call:
		c.call(e)
	case *ast.Get:
		c.expression(e.Object)
		identIdx := c.module.AddIdentifier(e.Name)
		c.emitOp(bytecode.OpGetProperty)
		c.emitU32(identIdx)
	case *ast.Set:
		c.expression(e.Object)
		c.expression(e.Value)
		identIdx := c.module.AddIdentifier(e.Name)
		c.emitOp(bytecode.OpSetProperty)
		c.emitU32(identIdx)
	case *ast.Grouping:
		c.expression(e.Inner)
	default:
		c.errorf(wisperr.KindSyntaxError, 0, "unsupported expression %T", e)
	}
}

// binary lowers comparison operators per spec §6.1's stated desugaring:
// `<= -> GREATER; NOT`, `>= -> LESS; NOT`, `!= -> EQUAL; NOT`.
func (c *Compiler) binary(e *ast.Binary) {
	c.expression(e.Left)
	c.expression(e.Right)
	switch e.Op {
	case ast.OpAdd:
		c.emitOp(bytecode.OpAdd)
	case ast.OpSub:
		c.emitOp(bytecode.OpSubtract)
	case ast.OpMul:
		c.emitOp(bytecode.OpMultiply)
	case ast.OpDiv:
		c.emitOp(bytecode.OpDivide)
	case ast.OpEqual:
		c.emitOp(bytecode.OpEqual)
	case ast.OpNotEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case ast.OpLess:
		c.emitOp(bytecode.OpLess)
	case ast.OpLessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	case ast.OpGreater:
		c.emitOp(bytecode.OpGreater)
	case ast.OpGreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	}
}

// logical lowers `and`/`or` with short-circuit jumps (spec §4.F).
func (c *Compiler) logical(e *ast.Logical) {
	c.expression(e.Left)
	switch e.Op {
	case ast.OpAnd:
		endJump := c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
		c.expression(e.Right)
		c.patchJumpHere(endJump)
	case ast.OpOr:
		elseJump := c.emitJump(bytecode.OpJumpIfFalse)
		endJump := c.emitJump(bytecode.OpJump)
		c.patchJumpHere(elseJump)
		c.emitOp(bytecode.OpPop)
		c.expression(e.Right)
		c.patchJumpHere(endJump)
	}
}

// call lowers a call expression, using INVOKE when the callee is a
// direct property access (spec §4.H: "INVOKE ... calls it directly ...
// without materializing a BoundMethod").
func (c *Compiler) call(e *ast.Call) {
	if get, ok := e.Callee.(*ast.Get); ok {
		c.expression(get.Object)
		for _, a := range e.Args {
			c.expression(a)
		}
		identIdx := c.module.AddIdentifier(get.Name)
		c.emitOp(bytecode.OpInvoke)
		c.emitByte(byte(len(e.Args)))
		c.emitU32(identIdx)
		return
	}
	c.expression(e.Callee)
	for _, a := range e.Args {
		c.expression(a)
	}
	c.emitOp(bytecode.OpCall)
	c.emitByte(byte(len(e.Args)))
}
