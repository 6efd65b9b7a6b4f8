package runtime_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/compiler"
	"github.com/wisplang/wisp/internal/config"
	"github.com/wisplang/wisp/internal/parser"
	"github.com/wisplang/wisp/internal/runtime"
	"github.com/wisplang/wisp/internal/stdlib"
	"github.com/wisplang/wisp/internal/wisperr"
)

// newVM builds a VM sized for tests: a 1 MiB heap reservation and a
// 4 KiB collection threshold.
func newVM(t *testing.T) *runtime.VM {
	t.Helper()
	vm, err := runtime.New(1<<20, 4<<10, config.DefaultFiberStackSlots)
	require.NoError(t, err)
	require.NoError(t, stdlib.Install(vm))
	t.Cleanup(func() { _ = vm.Close() })
	return vm
}

// run compiles and interprets src on a fresh VM, returning everything
// PRINT wrote (one element per call, newline stripped).
func run(t *testing.T, src string) []string {
	t.Helper()
	vm := newVM(t)
	var out []string
	vm.SetPrint(func(s string) { out = append(out, s) })

	stmts, errs := parser.Parse(src)
	require.Empty(t, errs, "parse errors")
	module, cerrs := compiler.Compile(stmts)
	require.Empty(t, cerrs, "compile errors")

	require.NoError(t, vm.Interpret(module))
	return out
}

// runErr compiles and interprets src, returning the runtime error (if
// any) instead of asserting success.
func runErr(t *testing.T, src string) error {
	t.Helper()
	vm := newVM(t)
	vm.SetPrint(func(string) {})

	stmts, errs := parser.Parse(src)
	require.Empty(t, errs, "parse errors")
	module, cerrs := compiler.Compile(stmts)
	require.Empty(t, cerrs, "compile errors")

	return vm.Interpret(module)
}

// Table-driven end-to-end scenarios, spec §8's numbered table.
func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "arithmetic precedence",
			src:  `print 1 + 2 * 3;`,
			want: []string{"7"},
		},
		{
			name: "for loop desugaring",
			src:  `var x = 0; for (var i = 0; i < 5; i = i + 1) x = x + i; print x;`,
			want: []string{"10"},
		},
		{
			name: "closure capture and mutation",
			src: `fun make() { var x = 0; fun inc() { x = x + 1; return x; } return inc; }
			      var f = make(); print f(); print f(); print f();`,
			want: []string{"1", "2", "3"},
		},
		{
			name: "class, init, method, field",
			src:  `class C { init(n) { this.n = n; } get() { return this.n; } } print C(42).get();`,
			want: []string{"42"},
		},
		{
			name: "string concatenation and equality",
			src:  `print "ab" + "cd" == "abcd";`,
			want: []string{"true"},
		},
		{
			name: "accumulation loop",
			src:  `var s = 0; var i = 0; while (i < 10000) { s = s + i; i = i + 1; } print s;`,
			want: []string{"49995000"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, run(t, tc.src))
		})
	}
}

func TestPrimitiveLiteralPrintForms(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`print nil;`, "nil"},
		{`print true;`, "true"},
		{`print false;`, "false"},
		{`print 7;`, "7"},
		{`print 7.0;`, "7"},
		{`print 7.5;`, "7.5"},
		{`print "hello";`, "hello"},
		{`print "";`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			require.Equal(t, []string{tc.want}, run(t, tc.src))
		})
	}
}

func TestBoundaryBehaviors(t *testing.T) {
	t.Run("zero is truthy", func(t *testing.T) {
		require.Equal(t, []string{"yes"}, run(t, `if (0) print "yes"; else print "no";`))
	})
	t.Run("empty string is truthy", func(t *testing.T) {
		require.Equal(t, []string{"yes"}, run(t, `if ("") print "yes"; else print "no";`))
	})
	t.Run("assignment to undefined global is a runtime error", func(t *testing.T) {
		err := runErr(t, `x = 1;`)
		require.Error(t, err)
		require.True(t, errors.Is(err, wisperr.KindGlobalNotDefined), "got %v", err)
	})
	t.Run("calling a class with args but no init is an arity error", func(t *testing.T) {
		err := runErr(t, `class C {} C(1, 2);`)
		require.Error(t, err)
		require.True(t, errors.Is(err, wisperr.KindIncorrectArity), "got %v", err)
	})
	t.Run("bare return in initializer returns this", func(t *testing.T) {
		require.Equal(t, []string{"<C instance>"}, run(t, `class C { init() { return; } } print C();`))
	})
	t.Run("return with expression in initializer is a compile error", func(t *testing.T) {
		stmts, perrs := parser.Parse(`class C { init() { return 1; } }`)
		require.Empty(t, perrs)
		_, cerrs := compiler.Compile(stmts)
		require.NotEmpty(t, cerrs)
		require.True(t, errors.Is(cerrs[0], wisperr.KindReturnFromInitializer), "got %v", cerrs[0])
	})
}

func TestUndefinedPropertyRaisesRuntimeError(t *testing.T) {
	err := runErr(t, `class C {} C().missing;`)
	require.Error(t, err)
	require.True(t, errors.Is(err, wisperr.KindUndefinedProperty), "got %v", err)
}

func TestInvalidCalleeRaisesRuntimeError(t *testing.T) {
	err := runErr(t, `var x = 1; x();`)
	require.Error(t, err)
	require.True(t, errors.Is(err, wisperr.KindInvalidCallee), "got %v", err)
}

func TestIncorrectArityOnClosureCall(t *testing.T) {
	err := runErr(t, `fun f(a, b) { return a + b; } f(1);`)
	require.Error(t, err)
	require.True(t, errors.Is(err, wisperr.KindIncorrectArity), "got %v", err)
}

func TestLogicalOperatorShortCircuit(t *testing.T) {
	out := run(t, `
	fun loud(v) { print v; return v; }
	if (false and loud("and-rhs")) {}
	if (true or loud("or-rhs")) {}
	print "done";
	`)
	require.Equal(t, []string{"done"}, out)
}

func TestStdlibListAndStringLen(t *testing.T) {
	out := run(t, `
	var l = List();
	l.append(1);
	l.append(2);
	print l.len();
	print "ab".len();
	`)
	require.Equal(t, []string{"2", "2"}, out)
}

func TestImportAndSelectiveImport(t *testing.T) {
	vm := newVM(t)
	var out []string
	vm.SetPrint(func(s string) { out = append(out, s) })

	libStmts, perrs := parser.Parse(`var greeting = "hi"; var n = 7;`)
	require.Empty(t, perrs)
	libModule, cerrs := compiler.Compile(libStmts)
	require.Empty(t, cerrs)

	vm.SetImport(func(path string) (*bytecode.Module, bool) {
		if path == "lib" {
			return libModule, true
		}
		return nil, false
	})

	mainStmts, perrs := parser.Parse(`import "lib" for greeting, n; print greeting; print n;`)
	require.Empty(t, perrs)
	mainModule, cerrs := compiler.Compile(mainStmts)
	require.Empty(t, cerrs)

	require.NoError(t, vm.Interpret(mainModule))
	require.Equal(t, []string{"hi", "7"}, out)
}

func TestUnknownImportRaisesRuntimeError(t *testing.T) {
	vm := newVM(t)
	vm.SetPrint(func(string) {})
	vm.SetImport(func(string) (*bytecode.Module, bool) { return nil, false })

	stmts, perrs := parser.Parse(`import "nope";`)
	require.Empty(t, perrs)
	module, cerrs := compiler.Compile(stmts)
	require.Empty(t, cerrs)

	err := vm.Interpret(module)
	require.Error(t, err)
	require.True(t, errors.Is(err, wisperr.KindUnknownImport), "got %v", err)
}
