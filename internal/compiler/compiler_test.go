package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/parser"
)

func compileChunk0(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	stmts, perrs := parser.Parse(src)
	require.Empty(t, perrs)
	module, cerrs := compiler.Compile(stmts)
	require.Empty(t, cerrs)
	return module
}

// TestForLoopDesugaringMatchesManualWhile exercises spec §8's
// round-trip property: `for(init;cond;incr) body` and its manual
// `{ init; while(cond){ body; incr; } }` desugaring must compile to
// byte-equal chunks (up to identifier pool ordering, which is identical
// here since both programs reference the same identifiers in the same
// order).
func TestForLoopDesugaringMatchesManualWhile(t *testing.T) {
	forSrc := `var x = 0; for (var i = 0; i < 5; i = i + 1) x = x + i; print x;`
	whileSrc := `var x = 0; { var i = 0; while (i < 5) { x = x + i; i = i + 1; } } print x;`

	forModule := compileChunk0(t, forSrc)
	whileModule := compileChunk0(t, whileSrc)

	require.Equal(t, whileModule.Chunks[0].Code, forModule.Chunks[0].Code)
	require.Equal(t, whileModule.Numbers, forModule.Numbers)
	require.Equal(t, whileModule.Identifiers, forModule.Identifiers)
}

func TestLocalRedeclarationInSameScopeIsCompileError(t *testing.T) {
	stmts, perrs := parser.Parse(`{ var x = 1; var x = 2; }`)
	require.Empty(t, perrs)
	_, cerrs := compiler.Compile(stmts)
	require.NotEmpty(t, cerrs)
}

func TestLocalCannotReadItsOwnInitializer(t *testing.T) {
	stmts, perrs := parser.Parse(`{ var x = x; }`)
	require.Empty(t, perrs)
	_, cerrs := compiler.Compile(stmts)
	require.NotEmpty(t, cerrs)
}

func TestThisOutsideMethodIsCompileError(t *testing.T) {
	stmts, perrs := parser.Parse(`print this;`)
	require.Empty(t, perrs)
	_, cerrs := compiler.Compile(stmts)
	require.NotEmpty(t, cerrs)
}

func TestClosureCapturesEnclosingLocalAsUpvalue(t *testing.T) {
	// inc's ClosureProto is added to the module before make's own (its
	// compileFunction call returns, and so calls AddClosure, before the
	// enclosing make() finishes compiling its body), so inc is index 0.
	module := compileChunk0(t, `fun make() { var x = 0; fun inc() { return x; } return inc; }`)
	require.Len(t, module.Closures, 2)
	inc := module.Closures[0]
	require.Equal(t, "inc", inc.Function.Name)
	require.Len(t, inc.Upvalues, 1)
	require.Equal(t, bytecode.FromLocal, inc.Upvalues[0].Source)
}
