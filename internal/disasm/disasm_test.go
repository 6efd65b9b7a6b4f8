package disasm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/disasm"
	"github.com/wisplang/wisp/internal/parser"
)

func TestDisassembleModuleMentionsCompiledOpcodes(t *testing.T) {
	stmts, perrs := parser.Parse(`
	var x = 1 + 2;
	fun f(a) { if (a) { return a; } else { return nil; } }
	class C { init() { this.x = 1; } get() { return this.x; } }
	print f(C().get());
	`)
	require.Empty(t, perrs)
	module, cerrs := compiler.Compile(stmts)
	require.Empty(t, cerrs)

	var buf strings.Builder
	disasm.Module(&buf, module)
	out := buf.String()

	require.Contains(t, out, "CONSTANT")
	require.Contains(t, out, "ADD")
	require.Contains(t, out, "CLASS")
	require.Contains(t, out, "METHOD")
	require.Contains(t, out, "CLOSURE")
	require.Contains(t, out, "RETURN")
	require.Contains(t, out, "== chunk 0 ==")
}
