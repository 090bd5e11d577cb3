package formula

import (
	"fmt"
	"math"

	"github.com/venlark/ticktree/pkg/formula/ast"
	"github.com/venlark/ticktree/pkg/formula/lexer"
	"github.com/venlark/ticktree/pkg/formula/opcode"
	"github.com/venlark/ticktree/pkg/formula/parser"
)

// Compiler compiles formula source text against a variable layout.
// Compilation is fail-first: the first failing pass aborts, leaves the
// error in the reporter and yields no program.
type Compiler struct {
	layout *VariableLayout
	errors ErrorReporter
}

// NewCompiler creates a Compiler for the given layout.
func NewCompiler(layout *VariableLayout) *Compiler {
	if layout == nil {
		panic("formula: compiler needs a layout")
	}
	return &Compiler{layout: layout}
}

// Errors returns the compile error reporter.
func (c *Compiler) Errors() *ErrorReporter {
	return &c.errors
}

// Compile runs the full pipeline on src and returns the compiled
// program, or nil if compilation failed.
func (c *Compiler) Compile(src string) *ExpressionData {
	p := parser.New(lexer.New(src))
	root := p.Parse()
	if root == nil {
		for _, msg := range p.Errors() {
			c.errors.AddError(CategorySyntax, CodeSyntaxError, msg)
		}
		if c.errors.Count() == 0 {
			c.errors.AddError(CategoryInternal, CodeInternalError, "parser returned no expression")
		}
		return nil
	}

	if !c.typeCheck(root) {
		return nil
	}
	root, ok := c.constFold(root)
	if !ok {
		return nil
	}

	writer := newDataWriter()
	gatherConsts(root, writer)

	var maxRegister SlotIndex
	allocateRegisters(root, 0, &maxRegister)

	if root.Type == TypeName {
		c.errors.AddError(CategoryConst, CodeConstNameExpression,
			"expressions that evaluate to a Name type are not supported")
		return nil
	}

	if root.IsConst() {
		switch root.Type {
		case TypeBool:
			// There is no boolean constant table; the operand itself is
			// the value.
			v := SlotIndex(0)
			if root.Bool {
				v = 1
			}
			writer.emit(opcode.Encode(opcode.SimpleBoolVal, opcode.SourceConstant, opcode.SourceConstant), 0, v, 0)
		case TypeNumber:
			writer.emit(opcode.Encode(opcode.SimpleNumVal, opcode.SourceConstant, opcode.SourceConstant), 0, root.ConstSlot, 0)
		}
	} else if root.Kind == ast.KindIdent {
		// A bare variable has no inner node to emit; load it into register
		// 0 by adding it to a zero constant.
		zero := writer.addNumericConst(0)
		writer.emit(opcode.Encode(opcode.SimpleAdd, opcode.SourceConstant, opcode.SourceVariable), 0, zero, root.VarSlot)
	} else {
		emitCode(root, writer)
	}

	data := writer.data
	data.RegCount = maxRegister + 1
	data.ResultType = root.Type
	return data
}

/*
 * Type-check pass
 */

// typeCheck resolves identifiers against the layout and infers the type
// of every node, post-order.
func (c *Compiler) typeCheck(n *ast.Node) bool {
	if n.Left != nil && !c.typeCheck(n.Left) {
		return false
	}
	if n.Right != nil && !c.typeCheck(n.Right) {
		return false
	}

	switch n.Kind {
	case ast.KindConstNumber, ast.KindConstName, ast.KindConstBool:
		return true

	case ast.KindIdent:
		if !c.layout.Exists(n.Name) {
			c.errors.AddError(CategoryIdentifier, CodeIdentifierNotFound,
				fmt.Sprintf("variable %q does not exist", n.Name.String()))
			return false
		}
		n.VarSlot = c.layout.IndexOf(n.Name)
		n.Type = c.layout.TypeOf(n.Name)
		return true

	case ast.KindNot:
		if n.Left.Type != TypeBool {
			c.errors.AddError(CategoryTypeCheck, CodeLogicTypeError,
				fmt.Sprintf("right side of %s must be boolean", n.Operator()))
			return false
		}
		n.Type = TypeBool
		return true

	case ast.KindAnd, ast.KindOr:
		if n.Left.Type != TypeBool || n.Right.Type != TypeBool {
			c.errors.AddError(CategoryTypeCheck, CodeLogicTypeError,
				fmt.Sprintf("both sides of %s must be boolean", n.Operator()))
			return false
		}
		n.Type = TypeBool
		return true

	case ast.KindEq, ast.KindNeq, ast.KindLt, ast.KindLteq, ast.KindGt, ast.KindGteq:
		n.Type = TypeBool
		if n.Left.Type != n.Right.Type {
			c.errors.AddError(CategoryTypeCheck, CodeComparisonTypeError,
				fmt.Sprintf("both sides of %s must be the same type", n.Operator()))
			return false
		}
		if n.Left.Type == TypeBool || n.Left.Type == TypeName {
			if n.Kind != ast.KindEq && n.Kind != ast.KindNeq {
				c.errors.AddError(CategoryTypeCheck, CodeComparisonTypeError,
					fmt.Sprintf("operator %s is invalid with %v operands", n.Operator(), n.Left.Type))
				return false
			}
		}
		return true

	case ast.KindAdd, ast.KindSub, ast.KindMul, ast.KindDiv, ast.KindMod:
		if n.Left.Type != TypeNumber || n.Right.Type != TypeNumber {
			c.errors.AddError(CategoryTypeCheck, CodeArithmeticTypeError,
				fmt.Sprintf("both sides of %s must be numeric", n.Operator()))
			return false
		}
		n.Type = TypeNumber
		return true

	default:
		c.errors.AddError(CategoryInternal, CodeInternalError, "unknown node kind")
		return false
	}
}

/*
 * Constant-fold pass
 */

// constFold rewrites constant subtrees bottom-up and returns the
// replacement for n. Replaced subtrees are simply dropped; the tree is
// single-owner.
func (c *Compiler) constFold(n *ast.Node) (*ast.Node, bool) {
	if n.Left != nil {
		folded, ok := c.constFold(n.Left)
		if !ok {
			return nil, false
		}
		n.Left = folded
	}
	if n.Right != nil {
		folded, ok := c.constFold(n.Right)
		if !ok {
			return nil, false
		}
		n.Right = folded
	}

	switch n.Kind {
	case ast.KindNot:
		if n.Left.IsConst() {
			return ast.NewConstBool(!n.Left.Bool), true
		}

	case ast.KindAnd:
		if n.Left.IsConst() || n.Right.IsConst() {
			leftVal := !n.Left.IsConst() || n.Left.Bool
			rightVal := !n.Right.IsConst() || n.Right.Bool
			switch {
			case !(leftVal && rightVal):
				return ast.NewConstBool(false), true
			case n.Left.IsConst():
				return n.Right, true
			default:
				return n.Left, true
			}
		}

	case ast.KindOr:
		if n.Left.IsConst() || n.Right.IsConst() {
			leftVal := n.Left.IsConst() && n.Left.Bool
			rightVal := n.Right.IsConst() && n.Right.Bool
			switch {
			case leftVal || rightVal:
				return ast.NewConstBool(true), true
			case n.Left.IsConst():
				return n.Right, true
			default:
				return n.Left, true
			}
		}

	case ast.KindEq, ast.KindNeq, ast.KindLt, ast.KindLteq, ast.KindGt, ast.KindGteq:
		return c.foldComparison(n)

	case ast.KindAdd, ast.KindSub, ast.KindMul, ast.KindDiv, ast.KindMod:
		if n.Left.IsConst() && n.Right.IsConst() {
			return c.foldArithmetic(n)
		}
	}

	return n, true
}

func (c *Compiler) foldComparison(n *ast.Node) (*ast.Node, bool) {
	// Boolean equality against a constant reduces to the other operand
	// or its negation, keeping booleans register-only in the bytecode.
	if n.Left.Type == TypeBool && n.Left.IsConst() != n.Right.IsConst() {
		constVal, other := n.Left, n.Right
		if n.Right.IsConst() {
			constVal, other = n.Right, n.Left
		}
		want := constVal.Bool
		if n.Kind == ast.KindNeq {
			want = !want
		}
		if want {
			return other, true
		}
		negated := ast.NewNot(other)
		negated.Type = TypeBool
		return negated, true
	}

	if !n.Left.IsConst() || !n.Right.IsConst() {
		return n, true
	}

	var result bool
	switch n.Left.Type {
	case TypeBool:
		switch n.Kind {
		case ast.KindEq:
			result = n.Left.Bool == n.Right.Bool
		case ast.KindNeq:
			result = n.Left.Bool != n.Right.Bool
		}
	case TypeName:
		switch n.Kind {
		case ast.KindEq:
			result = n.Left.Name == n.Right.Name
		case ast.KindNeq:
			result = n.Left.Name != n.Right.Name
		}
	case TypeNumber:
		l, r := n.Left.Number, n.Right.Number
		switch n.Kind {
		case ast.KindEq:
			result = l == r
		case ast.KindNeq:
			result = l != r
		case ast.KindLt:
			result = l < r
		case ast.KindLteq:
			result = l <= r
		case ast.KindGt:
			result = l > r
		case ast.KindGteq:
			result = l >= r
		}
	}

	return ast.NewConstBool(result), true
}

func (c *Compiler) foldArithmetic(n *ast.Node) (*ast.Node, bool) {
	l, r := n.Left.Number, n.Right.Number
	var result float32

	switch n.Kind {
	case ast.KindAdd:
		result = l + r
	case ast.KindSub:
		result = l - r
	case ast.KindMul:
		result = l * r
	case ast.KindDiv:
		if r == 0 {
			c.errors.AddError(CategoryMath, CodeDivideByZero,
				fmt.Sprintf("divide by zero detected: %v/%v", l, r))
			return nil, false
		}
		result = l / r
	case ast.KindMod:
		if r == 0 {
			c.errors.AddError(CategoryMath, CodeDivideByZero,
				fmt.Sprintf("divide by zero detected: %v%%%v", l, r))
			return nil, false
		}
		// IEEE remainder, matching the evaluator.
		result = float32(math.Remainder(float64(l), float64(r)))
	}

	return ast.NewConstNumber(result), true
}

/*
 * Constant-gather pass
 */

// gatherConsts assigns constant-table slots to every constant leaf.
func gatherConsts(n *ast.Node, w *dataWriter) {
	if n.Left != nil {
		gatherConsts(n.Left, w)
	}
	if n.Right != nil {
		gatherConsts(n.Right, w)
	}

	switch n.Kind {
	case ast.KindConstNumber:
		n.ConstSlot = w.addNumericConst(n.Number)
	case ast.KindConstName:
		n.ConstSlot = w.addNameConst(n.Name)
	case ast.KindConstBool:
		n.ConstSlot = 0
	}
}

/*
 * Register allocation pass
 */

// allocateRegisters assigns a scratch register to every inner node. A
// node evaluates its left child into its own register and its right
// child into the next one; evaluation is strictly post-order, so the
// value is consumed before any sibling reuses the slot.
func allocateRegisters(n *ast.Node, useRegister SlotIndex, maxRegister *SlotIndex) {
	if n.IsLeaf() {
		return
	}

	n.Reg = useRegister
	if useRegister > *maxRegister {
		*maxRegister = useRegister
	}

	allocateRegisters(n.Left, useRegister, maxRegister)
	if n.Right != nil {
		allocateRegisters(n.Right, useRegister+1, maxRegister)
	}
}

/*
 * Code generation pass
 */

// resultInfo describes where a node's value comes from at runtime.
type resultInfo struct {
	source opcode.Source
	index  SlotIndex
}

func nodeResult(n *ast.Node) resultInfo {
	switch n.Kind {
	case ast.KindConstNumber, ast.KindConstName, ast.KindConstBool:
		return resultInfo{source: opcode.SourceConstant, index: n.ConstSlot}
	case ast.KindIdent:
		return resultInfo{source: opcode.SourceVariable, index: n.VarSlot}
	default:
		return resultInfo{source: opcode.SourceRegister, index: n.Reg}
	}
}

// emitCode walks post-order, emitting one instruction per inner node,
// specialised by operand source. Operand order is canonicalised before
// emission to keep the instruction set small.
func emitCode(n *ast.Node, w *dataWriter) {
	if n.IsLeaf() {
		return
	}

	emitCode(n.Left, w)
	if n.Right != nil {
		emitCode(n.Right, w)
	}

	left := nodeResult(n.Left)
	right := left
	if n.Right != nil {
		right = nodeResult(n.Right)
	}

	var simple opcode.SimpleOp

	switch n.Kind {
	case ast.KindNot:
		simple = opcode.SimpleNot
	case ast.KindAnd:
		simple = opcode.SimpleAnd
	case ast.KindOr:
		simple = opcode.SimpleOr

	case ast.KindAdd, ast.KindSub, ast.KindMul, ast.KindDiv, ast.KindMod:
		// Commutative operators swap a register operand to the right and
		// a constant/variable pair to constant-first, reducing the number
		// of encodings the evaluator must recognise.
		if n.Kind == ast.KindAdd || n.Kind == ast.KindMul {
			if (left.source == opcode.SourceRegister && right.source != opcode.SourceRegister) ||
				(left.source == opcode.SourceVariable && right.source == opcode.SourceConstant) {
				left, right = right, left
			}
		}
		switch n.Kind {
		case ast.KindAdd:
			simple = opcode.SimpleAdd
		case ast.KindSub:
			simple = opcode.SimpleSub
		case ast.KindMul:
			simple = opcode.SimpleMul
		case ast.KindDiv:
			simple = opcode.SimpleDiv
		case ast.KindMod:
			simple = opcode.SimpleMod
		}

	case ast.KindEq, ast.KindNeq, ast.KindLt, ast.KindLteq, ast.KindGt, ast.KindGteq:
		simple = emitComparisonCanonical(n, &left, &right)

	default:
		panic("emitCode: leaf kind reached inner-node emission")
	}

	w.emit(opcode.Encode(simple, left.source, right.source), n.Reg, left.index, right.index)
}

// emitComparisonCanonical picks the comparison opcode, swapping operands
// (and flipping the relation) where the canonical operand order demands.
func emitComparisonCanonical(n *ast.Node, left, right *resultInfo) opcode.SimpleOp {
	kind := n.Kind

	switch n.Left.Type {
	case TypeNumber:
		if (left.source == opcode.SourceRegister && right.source != opcode.SourceRegister) ||
			(left.source == opcode.SourceConstant && right.source == opcode.SourceVariable) {
			*left, *right = *right, *left
			switch kind {
			case ast.KindLt:
				kind = ast.KindGt
			case ast.KindLteq:
				kind = ast.KindGteq
			case ast.KindGt:
				kind = ast.KindLt
			case ast.KindGteq:
				kind = ast.KindLteq
			}
		}
		switch kind {
		case ast.KindEq:
			return opcode.SimpleNumEq
		case ast.KindNeq:
			return opcode.SimpleNumNeq
		case ast.KindLt:
			return opcode.SimpleNumLt
		case ast.KindLteq:
			return opcode.SimpleNumLteq
		case ast.KindGt:
			return opcode.SimpleNumGt
		case ast.KindGteq:
			return opcode.SimpleNumGteq
		}

	case TypeName:
		// Name constants only pair with variables; keep the constant on
		// the left.
		if right.source == opcode.SourceConstant {
			*left, *right = *right, *left
		}
		if n.Kind == ast.KindEq {
			return opcode.SimpleNameEq
		}
		return opcode.SimpleNameNeq

	case TypeBool:
		if n.Kind == ast.KindEq {
			return opcode.SimpleBoolEq
		}
		return opcode.SimpleXor
	}

	panic("emitComparisonCanonical: untyped comparison")
}
