// Package wisp is the embedding API facade spec.md §6.3 describes: a
// thin re-export of internal/runtime's VM plus the compile pipeline
// (internal/lexer -> internal/parser -> internal/compiler), so an
// embedder never needs to import internal/ packages directly. Grounded
// on cmd/viewcore/main.go's "CLI is a thin shell over a library" shape,
// generalized one level further: here, even the CLI shell (cmd/wisp,
// cmd/wispdump) goes through this facade rather than internal/runtime
// directly.
package wisp

import (
	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/config"
	"github.com/wisplang/wisp/internal/parser"
	"github.com/wisplang/wisp/internal/runtime"
)

// VM re-exports runtime.VM, the interpreter instance an embedder drives.
type VM = runtime.VM

// BuiltinClass re-exports runtime.BuiltinClass, the three builtin
// classes (String, List, Object) SetMethod installs natives onto.
type BuiltinClass = runtime.BuiltinClass

const (
	ClassString = runtime.ClassString
	ClassList   = runtime.ClassList
	ClassObject = runtime.ClassObject
)

// Module re-exports bytecode.Module, the compiled unit Compile produces
// and Interpret/VM.Interpret consume.
type Module = bytecode.Module

// New creates a VM using cfg's tunables (spec §4.A's heap reservation,
// §5's GC initial threshold, §4.G's fiber stack depth).
func New(cfg config.Config) (*VM, error) {
	return runtime.New(cfg.HeapReservationBytes, cfg.GCInitialThreshold, cfg.FiberStackSlots)
}

// Compile runs the full source-to-bytecode pipeline: lex, parse,
// compile. If parsing reports syntax errors they are returned without
// compiling; otherwise the compiler's errors are returned. Each error
// carries a source line number (spec §7: "compilation aborts after
// collecting all errors").
func Compile(src string) (*Module, []error) {
	stmts, perrs := parser.Parse(src)
	if len(perrs) > 0 {
		return nil, perrs
	}
	return compiler.Compile(stmts)
}

// Run compiles src and interprets it on vm in one call, the shape
// cmd/wisp's `run` subcommand drives directly.
func Run(vm *VM, src string) error {
	module, errs := Compile(src)
	if len(errs) > 0 {
		return errs[0]
	}
	return vm.Interpret(module)
}
