package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/parser"
)

func TestParsePrecedenceClimbing(t *testing.T) {
	stmts, errs := parser.Parse("1 + 2 * 3;")
	require.Empty(t, errs)
	require.Len(t, stmts, 1)

	expr := stmts[0].(*ast.ExpressionStmt).Expr.(*ast.Binary)
	require.Equal(t, ast.OpAdd, expr.Op)
	require.IsType(t, &ast.Number{}, expr.Left)
	mul := expr.Right.(*ast.Binary)
	require.Equal(t, ast.OpMul, mul.Op)
}

func TestParseForLoopDesugarsToBlockWithWhile(t *testing.T) {
	stmts, errs := parser.Parse("for (var i = 0; i < 5; i = i + 1) print i;")
	require.Empty(t, errs)
	require.Len(t, stmts, 1)

	outer := stmts[0].(*ast.BlockStmt)
	require.Len(t, outer.Stmts, 2)
	require.IsType(t, &ast.VarStmt{}, outer.Stmts[0])

	loop := outer.Stmts[1].(*ast.WhileStmt)
	body := loop.Body.(*ast.BlockStmt)
	require.Len(t, body.Stmts, 2)
	require.IsType(t, &ast.PrintStmt{}, body.Stmts[0])
	require.IsType(t, &ast.ExpressionStmt{}, body.Stmts[1])
}

func TestParseForLoopWithOmittedConditionDefaultsTrue(t *testing.T) {
	stmts, errs := parser.Parse("for (;;) print 1;")
	require.Empty(t, errs)
	outer := stmts[0].(*ast.BlockStmt)
	loop := outer.Stmts[0].(*ast.WhileStmt)
	cond := loop.Cond.(*ast.Boolean)
	require.True(t, cond.Value)
}

func TestParseClassWithMethodsAndInit(t *testing.T) {
	stmts, errs := parser.Parse(`class Counter { init(n) { this.n = n; } get() { return this.n; } }`)
	require.Empty(t, errs)
	class := stmts[0].(*ast.ClassStmt)
	require.Equal(t, "Counter", class.Name)
	require.Len(t, class.Methods, 2)
	require.True(t, class.Methods[0].IsInit)
	require.False(t, class.Methods[1].IsInit)
}

func TestParseImportSelectiveForm(t *testing.T) {
	stmts, errs := parser.Parse(`import "mathlib" for sqrt, pi;`)
	require.Empty(t, errs)
	imp := stmts[0].(*ast.ImportStmt)
	require.Equal(t, "mathlib", imp.Path)
	require.Equal(t, []string{"sqrt", "pi"}, imp.Names)
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	stmts, errs := parser.Parse(`a = b = 1;`)
	require.Empty(t, errs)
	assign := stmts[0].(*ast.ExpressionStmt).Expr.(*ast.Assign)
	require.Equal(t, "a", assign.Name)
	inner := assign.Value.(*ast.Assign)
	require.Equal(t, "b", inner.Name)
}

func TestParseInvalidAssignmentTargetIsError(t *testing.T) {
	_, errs := parser.Parse(`1 + 1 = 2;`)
	require.NotEmpty(t, errs)
}

func TestParseLogicalShortCircuitOperators(t *testing.T) {
	stmts, errs := parser.Parse(`print a and b or c;`)
	require.Empty(t, errs)
	top := stmts[0].(*ast.PrintStmt).Expr.(*ast.Logical)
	require.Equal(t, ast.OpOr, top.Op)
	left := top.Left.(*ast.Logical)
	require.Equal(t, ast.OpAnd, left.Op)
}

func TestParseSuperIsRejected(t *testing.T) {
	_, errs := parser.Parse(`print super;`)
	require.NotEmpty(t, errs)
}

func TestParseUnterminatedBlockIsError(t *testing.T) {
	_, errs := parser.Parse(`{ print 1;`)
	require.NotEmpty(t, errs)
}

func TestParseMethodChainAndPropertyGet(t *testing.T) {
	stmts, errs := parser.Parse(`a.b.c();`)
	require.Empty(t, errs)
	call := stmts[0].(*ast.ExpressionStmt).Expr.(*ast.Call)
	get := call.Callee.(*ast.Get)
	require.Equal(t, "c", get.Name)
	inner := get.Object.(*ast.Get)
	require.Equal(t, "b", inner.Name)
}
