// Package parser parses formula source text into a syntax tree.
package parser

import (
	"fmt"
	"strconv"

	"github.com/venlark/ticktree/pkg/formula/ast"
	"github.com/venlark/ticktree/pkg/formula/lexer"
	"github.com/venlark/ticktree/pkg/formula/token"
	"github.com/venlark/ticktree/pkg/name"
)

// Precedence levels for operators.
const (
	_ int = iota
	LOWEST
	OR          // ||
	AND         // &&
	EQUALS      // == or !=
	LESSGREATER // < <= > >=
	SUM         // + or -
	PRODUCT     // * / %
	PREFIX      // -x
)

var precedences = map[token.TokenType]int{
	token.OR:     OR,
	token.AND:    AND,
	token.EQ:     EQUALS,
	token.NOT_EQ: EQUALS,
	token.LT:     LESSGREATER,
	token.LTE:    LESSGREATER,
	token.GT:     LESSGREATER,
	token.GTE:    LESSGREATER,
	token.PLUS:   SUM,
	token.MINUS:  SUM,
	token.MULT:   PRODUCT,
	token.DIV:    PRODUCT,
	token.MOD:    PRODUCT,
}

var infixKinds = map[token.TokenType]ast.Kind{
	token.OR:     ast.KindOr,
	token.AND:    ast.KindAnd,
	token.EQ:     ast.KindEq,
	token.NOT_EQ: ast.KindNeq,
	token.LT:     ast.KindLt,
	token.LTE:    ast.KindLteq,
	token.GT:     ast.KindGt,
	token.GTE:    ast.KindGteq,
	token.PLUS:   ast.KindAdd,
	token.MINUS:  ast.KindSub,
	token.MULT:   ast.KindMul,
	token.DIV:    ast.KindDiv,
	token.MOD:    ast.KindMod,
}

// Parser parses a single formula into an *ast.Node.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  token.Token
	peekToken token.Token
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	// Load curToken and peekToken.
	p.nextToken()
	p.nextToken()

	return p
}

// Errors returns the syntax errors encountered so far.
func (p *Parser) Errors() []string {
	return p.errors
}

// Parse consumes the whole input and returns the expression root, or nil
// if any syntax error occurred.
func (p *Parser) Parse() *ast.Node {
	root := p.parseExpression(LOWEST)
	if root == nil {
		return nil
	}

	p.nextToken()
	if p.curToken.Type != token.EOF {
		p.addError("unexpected %q after expression", p.curToken.Literal)
		return nil
	}
	if len(p.errors) > 0 {
		return nil
	}
	return root
}

func (p *Parser) parseExpression(precedence int) *ast.Node {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for !p.peekTokenIs(token.EOF) && precedence < p.peekPrecedence() {
		if _, ok := infixKinds[p.peekToken.Type]; !ok {
			return left
		}
		p.nextToken()
		left = p.parseInfix(left)
		if left == nil {
			return nil
		}
	}

	return left
}

func (p *Parser) parsePrefix() *ast.Node {
	switch p.curToken.Type {
	case token.IDENT:
		return ast.NewIdent(name.New(p.curToken.Literal))
	case token.NUMBER:
		return p.parseNumberLiteral()
	case token.NAME_LIT:
		return ast.NewConstName(name.New(p.curToken.Literal))
	case token.TRUE:
		return ast.NewConstBool(true)
	case token.FALSE:
		return ast.NewConstBool(false)
	case token.BANG:
		// Logical not binds looser than comparison: !a == b reads as
		// !(a == b). Parsing the operand at AND level consumes a whole
		// comparison (or a further !) but stops at && and ||.
		p.nextToken()
		child := p.parseExpression(AND)
		if child == nil {
			return nil
		}
		return ast.NewNot(child)
	case token.MINUS:
		return p.parseNegation()
	case token.LPAREN:
		return p.parseGroupedExpression()
	default:
		p.addError("unexpected %q", p.curToken.Literal)
		return nil
	}
}

func (p *Parser) parseNumberLiteral() *ast.Node {
	value, err := strconv.ParseFloat(p.curToken.Literal, 32)
	if err != nil {
		p.addError("could not parse %q as a number", p.curToken.Literal)
		return nil
	}
	return ast.NewConstNumber(float32(value))
}

// parseNegation parses unary minus. A negated number literal becomes a
// negative constant; anything else lowers to a subtraction from zero so
// the rest of the pipeline only sees binary arithmetic.
func (p *Parser) parseNegation() *ast.Node {
	p.nextToken()
	operand := p.parseExpression(PREFIX)
	if operand == nil {
		return nil
	}
	if operand.Kind == ast.KindConstNumber {
		operand.Number = -operand.Number
		return operand
	}
	return ast.NewBinary(ast.KindSub, ast.NewConstNumber(0), operand)
}

func (p *Parser) parseInfix(left *ast.Node) *ast.Node {
	kind := infixKinds[p.curToken.Type]
	precedence := p.curPrecedence()

	// Comparisons are non-associative and do not chain.
	if kindIsComparison(kind) && left.IsComparison() && !left.Paren {
		p.addError("comparison operators do not chain")
		return nil
	}

	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	if kindIsComparison(kind) && right.IsComparison() && !right.Paren {
		p.addError("comparison operators do not chain")
		return nil
	}

	return ast.NewBinary(kind, left, right)
}

func kindIsComparison(kind ast.Kind) bool {
	switch kind {
	case ast.KindEq, ast.KindNeq, ast.KindLt, ast.KindLteq, ast.KindGt, ast.KindGteq:
		return true
	}
	return false
}

func (p *Parser) parseGroupedExpression() *ast.Node {
	p.nextToken()

	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	exp.Paren = true

	return exp
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()

	if p.curToken.Type == token.ILLEGAL {
		p.addError("illegal character %q", p.curToken.Literal)
	}
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError("expected %q, got %q", string(t), p.peekToken.Literal)
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors,
		fmt.Sprintf("syntax error at line %d, column %d: %s", p.curToken.Line, p.curToken.Column, msg))
}
