// Package parser implements the AST builder spec §1 calls out as an
// external collaborator: a Pratt/recursive-descent parser over
// internal/lexer's token stream, yielding the internal/ast node kinds
// spec §6.1 specifies. Hand-written, stdlib only (see DESIGN.md).
package parser

import (
	"fmt"

	"github.com/wisplang/wisp/internal/ast"
	"github.com/wisplang/wisp/internal/lexer"
	"github.com/wisplang/wisp/internal/wisperr"
)

// Parser turns a token stream into a slice of top-level ast.Stmt.
type Parser struct {
	lex     *lexer.Lexer
	prev    lexer.Token
	cur     lexer.Token
	errs    []error
	panicking bool
}

// New returns a Parser over src.
func New(src string) *Parser {
	p := &Parser{lex: lexer.New(src)}
	p.advance()
	return p
}

// Parse compiles the whole token stream to a list of statements,
// collecting every syntax error encountered at the top level (spec §7:
// "compilation aborts after collecting all errors at the top level").
func Parse(src string) ([]ast.Stmt, []error) {
	p := New(src)
	var stmts []ast.Stmt
	for p.cur.Kind != lexer.EOF {
		stmts = append(stmts, p.declaration())
	}
	return stmts, p.errs
}

func (p *Parser) advance() {
	p.prev = p.cur
	for {
		p.cur = p.lex.Next()
		if p.cur.Kind != lexer.Error {
			break
		}
		p.errorAtCurrent(p.cur.Lexeme)
	}
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur.Kind == k }

func (p *Parser) match(k lexer.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(k lexer.Kind, msg string) lexer.Token {
	if p.cur.Kind == k {
		tok := p.cur
		p.advance()
		return tok
	}
	p.errorAtCurrent(msg)
	return p.cur
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.cur, msg) }

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.errs = append(p.errs, wisperr.NewCompileError(wisperr.KindSyntaxError, tok.Line, "%s", msg))
}

// synchronize discards tokens until a likely statement boundary, so one
// syntax error doesn't cascade into spurious follow-on errors (spec
// §7's "collecting all errors" implies some recovery strategy).
func (p *Parser) synchronize() {
	p.panicking = false
	for p.cur.Kind != lexer.EOF {
		if p.prev.Kind == lexer.Semicolon {
			return
		}
		switch p.cur.Kind {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For, lexer.If,
			lexer.While, lexer.Print, lexer.Return, lexer.Import:
			return
		}
		p.advance()
	}
}

// --- statements ---

func (p *Parser) declaration() ast.Stmt {
	var s ast.Stmt
	switch {
	case p.match(lexer.Class):
		s = p.classDecl()
	case p.match(lexer.Fun):
		s = p.funDecl()
	case p.match(lexer.Var):
		s = p.varDecl()
	case p.match(lexer.Import):
		s = p.importStmt()
	default:
		s = p.statement()
	}
	if p.panicking {
		p.synchronize()
	}
	return s
}

func (p *Parser) classDecl() ast.Stmt {
	line := p.prev.Line
	name := p.consume(lexer.Identifier, "expected class name").Lexeme
	var super string
	if p.match(lexer.Less) {
		super = p.consume(lexer.Identifier, "expected superclass name").Lexeme
	}
	p.consume(lexer.LeftBrace, "expected '{' before class body")
	var methods []*ast.FunctionStmt
	for !p.check(lexer.RightBrace) && !p.check(lexer.EOF) {
		mname := p.consume(lexer.Identifier, "expected method name").Lexeme
		fn := p.function(mname, true)
		methods = append(methods, fn)
	}
	p.consume(lexer.RightBrace, "expected '}' after class body")
	return &ast.ClassStmt{Name: name, Superclass: super, Methods: methods, Line: line}
}

func (p *Parser) funDecl() ast.Stmt {
	name := p.consume(lexer.Identifier, "expected function name").Lexeme
	return p.function(name, false)
}

func (p *Parser) function(name string, isMethod bool) *ast.FunctionStmt {
	line := p.prev.Line
	p.consume(lexer.LeftParen, "expected '(' after name")
	var params []string
	if !p.check(lexer.RightParen) {
		for {
			params = append(params, p.consume(lexer.Identifier, "expected parameter name").Lexeme)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume(lexer.RightParen, "expected ')' after parameters")
	p.consume(lexer.LeftBrace, "expected '{' before body")
	body := p.block()
	return &ast.FunctionStmt{
		Name: name, Params: params, Body: body,
		IsMethod: isMethod, IsInit: isMethod && name == "init",
		Line: line,
	}
}

func (p *Parser) varDecl() ast.Stmt {
	line := p.prev.Line
	name := p.consume(lexer.Identifier, "expected variable name").Lexeme
	var init ast.Expr
	if p.match(lexer.Equal) {
		init = p.expression()
	}
	p.consume(lexer.Semicolon, "expected ';' after variable declaration")
	return &ast.VarStmt{Name: name, Init: init, Line: line}
}

func (p *Parser) importStmt() ast.Stmt {
	line := p.prev.Line
	pathTok := p.consume(lexer.String, "expected import path string")
	path := unquote(pathTok.Lexeme)
	var names []string
	if p.match(lexer.For) {
		for {
			names = append(names, p.consume(lexer.Identifier, "expected imported name").Lexeme)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume(lexer.Semicolon, "expected ';' after import")
	return &ast.ImportStmt{Path: path, Names: names, Line: line}
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(lexer.Print):
		return p.printStmt()
	case p.match(lexer.LeftBrace):
		line := p.prev.Line
		return &ast.BlockStmt{Stmts: p.block(), Line: line}
	case p.match(lexer.If):
		return p.ifStmt()
	case p.match(lexer.While):
		return p.whileStmt()
	case p.match(lexer.For):
		return p.forStmt()
	case p.match(lexer.Return):
		return p.returnStmt()
	default:
		return p.exprStmt()
	}
}

func (p *Parser) block() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(lexer.RightBrace) && !p.check(lexer.EOF) {
		stmts = append(stmts, p.declaration())
	}
	p.consume(lexer.RightBrace, "expected '}' after block")
	return stmts
}

func (p *Parser) printStmt() ast.Stmt {
	line := p.prev.Line
	e := p.expression()
	p.consume(lexer.Semicolon, "expected ';' after value")
	return &ast.PrintStmt{Expr: e, Line: line}
}

func (p *Parser) exprStmt() ast.Stmt {
	line := p.cur.Line
	e := p.expression()
	p.consume(lexer.Semicolon, "expected ';' after expression")
	return &ast.ExpressionStmt{Expr: e, Line: line}
}

func (p *Parser) ifStmt() ast.Stmt {
	line := p.prev.Line
	p.consume(lexer.LeftParen, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(lexer.RightParen, "expected ')' after condition")
	then := p.statement()
	var els ast.Stmt
	if p.match(lexer.Else) {
		els = p.statement()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Line: line}
}

func (p *Parser) whileStmt() ast.Stmt {
	line := p.prev.Line
	p.consume(lexer.LeftParen, "expected '(' after 'while'")
	cond := p.expression()
	p.consume(lexer.RightParen, "expected ')' after condition")
	body := p.statement()
	return &ast.WhileStmt{Cond: cond, Body: body, Line: line}
}

// forStmt desugars `for (init; cond; incr) body` into
// `{ init; while (cond) { body; incr; } }` per spec §4.F, producing the
// identical AST shape a hand-written desugaring would.
func (p *Parser) forStmt() ast.Stmt {
	line := p.prev.Line
	p.consume(lexer.LeftParen, "expected '(' after 'for'")

	var init ast.Stmt
	switch {
	case p.match(lexer.Semicolon):
		init = nil
	case p.match(lexer.Var):
		init = p.varDecl()
	default:
		init = p.exprStmt()
	}

	var cond ast.Expr
	if !p.check(lexer.Semicolon) {
		cond = p.expression()
	}
	p.consume(lexer.Semicolon, "expected ';' after loop condition")
	if cond == nil {
		cond = &ast.Boolean{Value: true, Line: line}
	}

	var incr ast.Expr
	if !p.check(lexer.RightParen) {
		incr = p.expression()
	}
	p.consume(lexer.RightParen, "expected ')' after for clauses")

	body := p.statement()
	if incr != nil {
		body = &ast.BlockStmt{Stmts: []ast.Stmt{body, &ast.ExpressionStmt{Expr: incr, Line: line}}, Line: line}
	}
	loop := &ast.WhileStmt{Cond: cond, Body: body, Line: line}
	if init != nil {
		return &ast.BlockStmt{Stmts: []ast.Stmt{init, loop}, Line: line}
	}
	return &ast.BlockStmt{Stmts: []ast.Stmt{loop}, Line: line}
}

func (p *Parser) returnStmt() ast.Stmt {
	line := p.prev.Line
	var val ast.Expr
	if !p.check(lexer.Semicolon) {
		val = p.expression()
	}
	p.consume(lexer.Semicolon, "expected ';' after return value")
	return &ast.ReturnStmt{Value: val, Line: line}
}

// --- expressions (precedence climbing) ---

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

func (p *Parser) expression() ast.Expr { return p.parsePrecedence(precAssignment) }

func (p *Parser) parsePrecedence(min precedence) ast.Expr {
	left := p.unaryOrPrimary()
	for {
		prec, ok := infixPrecedence(p.cur.Kind)
		if !ok || prec < min {
			break
		}
		left = p.infix(left)
	}
	return left
}

func infixPrecedence(k lexer.Kind) (precedence, bool) {
	switch k {
	case lexer.Equal:
		return precAssignment, true
	case lexer.Or:
		return precOr, true
	case lexer.And:
		return precAnd, true
	case lexer.EqualEqual, lexer.BangEqual:
		return precEquality, true
	case lexer.Less, lexer.LessEqual, lexer.Greater, lexer.GreaterEqual:
		return precComparison, true
	case lexer.Plus, lexer.Minus:
		return precTerm, true
	case lexer.Star, lexer.Slash:
		return precFactor, true
	case lexer.LeftParen, lexer.Dot:
		return precCall, true
	}
	return precNone, false
}

func (p *Parser) infix(left ast.Expr) ast.Expr {
	switch p.cur.Kind {
	case lexer.Equal:
		line := p.cur.Line
		p.advance()
		value := p.parsePrecedence(precAssignment)
		switch t := left.(type) {
		case *ast.Variable:
			return &ast.Assign{Name: t.Name, Value: value, Line: line}
		case *ast.Get:
			return &ast.Set{Object: t.Object, Name: t.Name, Value: value, Line: line}
		default:
			p.errorAt(p.prev, "invalid assignment target")
			return left
		}
	case lexer.Or:
		line := p.cur.Line
		p.advance()
		right := p.parsePrecedence(precOr + 1)
		return &ast.Logical{Op: ast.OpOr, Left: left, Right: right, Line: line}
	case lexer.And:
		line := p.cur.Line
		p.advance()
		right := p.parsePrecedence(precAnd + 1)
		return &ast.Logical{Op: ast.OpAnd, Left: left, Right: right, Line: line}
	case lexer.LeftParen:
		return p.finishCall(left)
	case lexer.Dot:
		line := p.cur.Line
		p.advance()
		name := p.consume(lexer.Identifier, "expected property name after '.'").Lexeme
		return &ast.Get{Object: left, Name: name, Line: line}
	default:
		op, ok := binaryOpFor(p.cur.Kind)
		if !ok {
			return left
		}
		line := p.cur.Line
		prec, _ := infixPrecedence(p.cur.Kind)
		p.advance()
		right := p.parsePrecedence(prec + 1)
		return &ast.Binary{Op: op, Left: left, Right: right, Line: line}
	}
}

func binaryOpFor(k lexer.Kind) (ast.BinaryOp, bool) {
	switch k {
	case lexer.Plus:
		return ast.OpAdd, true
	case lexer.Minus:
		return ast.OpSub, true
	case lexer.Star:
		return ast.OpMul, true
	case lexer.Slash:
		return ast.OpDiv, true
	case lexer.EqualEqual:
		return ast.OpEqual, true
	case lexer.BangEqual:
		return ast.OpNotEqual, true
	case lexer.Less:
		return ast.OpLess, true
	case lexer.LessEqual:
		return ast.OpLessEqual, true
	case lexer.Greater:
		return ast.OpGreater, true
	case lexer.GreaterEqual:
		return ast.OpGreaterEqual, true
	}
	return 0, false
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	line := p.cur.Line
	p.advance() // '('
	var args []ast.Expr
	if !p.check(lexer.RightParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume(lexer.RightParen, "expected ')' after arguments")
	return &ast.Call{Callee: callee, Args: args, Line: line}
}

func (p *Parser) unaryOrPrimary() ast.Expr {
	switch p.cur.Kind {
	case lexer.Bang:
		line := p.cur.Line
		p.advance()
		operand := p.parsePrecedence(precUnary)
		return &ast.Unary{Op: ast.OpBang, Operand: operand, Line: line}
	case lexer.Minus:
		line := p.cur.Line
		p.advance()
		operand := p.parsePrecedence(precUnary)
		return &ast.Unary{Op: ast.OpMinus, Operand: operand, Line: line}
	}
	return p.primary()
}

func (p *Parser) primary() ast.Expr {
	tok := p.cur
	switch tok.Kind {
	case lexer.Number:
		p.advance()
		return &ast.Number{Value: parseFloat(tok.Lexeme), Line: tok.Line}
	case lexer.String:
		p.advance()
		return &ast.String{Value: unquote(tok.Lexeme), Line: tok.Line}
	case lexer.True:
		p.advance()
		return &ast.Boolean{Value: true, Line: tok.Line}
	case lexer.False:
		p.advance()
		return &ast.Boolean{Value: false, Line: tok.Line}
	case lexer.Nil:
		p.advance()
		return &ast.Nil{Line: tok.Line}
	case lexer.This:
		p.advance()
		return &ast.This{Line: tok.Line}
	case lexer.Super:
		p.advance()
		if !p.panicking {
			p.panicking = true
			p.errs = append(p.errs, wisperr.NewCompileError(wisperr.KindInvalidSuper, tok.Line, "'super' is not supported"))
		}
		return &ast.Nil{Line: tok.Line}
	case lexer.Identifier:
		p.advance()
		return &ast.Variable{Name: tok.Lexeme, Line: tok.Line}
	case lexer.LeftParen:
		p.advance()
		inner := p.expression()
		p.consume(lexer.RightParen, "expected ')' after expression")
		return &ast.Grouping{Inner: inner, Line: tok.Line}
	}
	p.errorAtCurrent("expected expression")
	p.advance()
	return &ast.Nil{Line: tok.Line}
}

func unquote(lexeme string) string {
	if len(lexeme) >= 2 {
		return lexeme[1 : len(lexeme)-1]
	}
	return lexeme
}

func parseFloat(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0
	}
	return f
}
