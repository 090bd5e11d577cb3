// Package formula compiles boolean and arithmetic expressions over a
// typed variable schema into compact register bytecode, and evaluates
// that bytecode against a variable pack.
//
// The pipeline is: lexer/parser (subpackages) producing an ast.Node,
// then type-check, constant-fold, constant-gather, register allocation
// and code generation in this package, yielding an immutable
// ExpressionData executed by Evaluator.
package formula

import "github.com/venlark/ticktree/pkg/formula/ast"

// ExpType is the type of an expression result or of a schema variable.
// Bool is a valid expression result and operand but not a valid variable
// type.
type ExpType = ast.ExpType

const (
	TypeUninitialised = ast.TypeUninitialised
	TypeNumber        = ast.TypeNumber
	TypeName          = ast.TypeName
	TypeBool          = ast.TypeBool
)

// SlotIndex addresses registers, constant-table entries and variable
// slots in compiled bytecode operands.
type SlotIndex = uint16
