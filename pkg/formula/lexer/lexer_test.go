package lexer

import (
	"testing"

	"github.com/venlark/ticktree/pkg/formula/token"
)

func TestNextToken(t *testing.T) {
	input := `NumA / NumC >= 2.5 && !(flag == 'idle') || true != false % -3`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.IDENT, "NumA"},
		{token.DIV, "/"},
		{token.IDENT, "NumC"},
		{token.GTE, ">="},
		{token.NUMBER, "2.5"},
		{token.AND, "&&"},
		{token.BANG, "!"},
		{token.LPAREN, "("},
		{token.IDENT, "flag"},
		{token.EQ, "=="},
		{token.NAME_LIT, "idle"},
		{token.RPAREN, ")"},
		{token.OR, "||"},
		{token.TRUE, "true"},
		{token.NOT_EQ, "!="},
		{token.FALSE, "false"},
		{token.MOD, "%"},
		{token.MINUS, "-"},
		{token.NUMBER, "3"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d]: wrong token type, expected %q, got %q (%q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d]: wrong literal, expected %q, got %q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextTokenPositions(t *testing.T) {
	l := New("a <\nbb")

	tok := l.NextToken()
	if tok.Line != 1 || tok.Column != 1 {
		t.Errorf("token %q at line %d column %d, want 1:1", tok.Literal, tok.Line, tok.Column)
	}
	tok = l.NextToken()
	if tok.Line != 1 || tok.Column != 3 {
		t.Errorf("token %q at line %d column %d, want 1:3", tok.Literal, tok.Line, tok.Column)
	}
	tok = l.NextToken()
	if tok.Line != 2 {
		t.Errorf("token %q at line %d, want line 2", tok.Literal, tok.Line)
	}
}

func TestIllegalTokens(t *testing.T) {
	tests := []struct {
		input string
		want  token.TokenType
	}{
		{"a & b", token.ILLEGAL},
		{"a | b", token.ILLEGAL},
		{"a = b", token.ILLEGAL},
		{"#", token.ILLEGAL},
		{"'unterminated", token.ILLEGAL},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			for {
				tok := l.NextToken()
				if tok.Type == token.ILLEGAL {
					return
				}
				if tok.Type == token.EOF {
					t.Fatalf("input %q produced no ILLEGAL token", tt.input)
				}
			}
		})
	}
}
