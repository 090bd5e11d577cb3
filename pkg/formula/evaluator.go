package formula

import (
	"math"

	"github.com/venlark/ticktree/pkg/formula/opcode"
	"github.com/venlark/ticktree/pkg/name"
)

// Evaluator executes compiled formulas against one variable pack. The
// register file is reused across evaluations. An evaluator is not safe
// for concurrent use.
//
// Booleans are carried in registers as 0 and 1; Name values never pass
// through registers, since Name-typed results are rejected at compile
// time and Name comparisons write a boolean.
type Evaluator struct {
	vars       *VariablePack
	reg        []float32
	resultType ExpType
	errors     ErrorReporter
}

// NewEvaluator creates an Evaluator over vars.
func NewEvaluator(vars *VariablePack) *Evaluator {
	if vars == nil {
		panic("formula: evaluator needs a variable pack")
	}
	return &Evaluator{vars: vars}
}

// Errors returns the runtime error reporter.
func (e *Evaluator) Errors() *ErrorReporter {
	return &e.errors
}

// Reset clears any errors from a previous evaluation.
func (e *Evaluator) Reset() {
	e.errors.Reset()
}

// ResultType returns the result type of the last evaluated program.
func (e *Evaluator) ResultType() ExpType {
	return e.resultType
}

// BoolResult returns the boolean result of the last evaluation.
func (e *Evaluator) BoolResult() bool {
	if len(e.reg) == 0 {
		return false
	}
	return e.reg[0] != 0
}

// NumberResult returns the numeric result of the last evaluation.
func (e *Evaluator) NumberResult() float32 {
	return e.reg[0]
}

// Evaluate runs data to completion. Division or remainder by zero
// aborts execution and leaves a Math error in the reporter.
func (e *Evaluator) Evaluate(data *ExpressionData) {
	e.errors.Reset()
	e.resultType = data.ResultType

	if cap(e.reg) < int(data.RegCount) {
		e.reg = make([]float32, data.RegCount)
	} else {
		e.reg = e.reg[:data.RegCount]
	}

	for ip := 0; ip+1 < len(data.Code); ip += 2 {
		wordA := data.Code[ip]
		wordB := data.Code[ip+1]

		op := opcode.Op(wordA >> 16)
		outReg := SlotIndex(wordA)
		leftOp := SlotIndex(wordB >> 16)
		rightOp := SlotIndex(wordB)

		if !opcode.Valid(op) {
			e.errors.AddError(CategoryInternal, CodeInternalError, "invalid opcode "+op.String())
			return
		}

		simple := op.Simple()
		leftSrc := op.LeftSource()
		rightSrc := op.RightSource()

		var result float32

		switch simple {
		case opcode.SimpleAdd, opcode.SimpleSub, opcode.SimpleMul, opcode.SimpleDiv, opcode.SimpleMod:
			left := e.numOperand(data, leftSrc, leftOp)
			right := e.numOperand(data, rightSrc, rightOp)
			switch simple {
			case opcode.SimpleAdd:
				result = left + right
			case opcode.SimpleSub:
				result = left - right
			case opcode.SimpleMul:
				result = left * right
			case opcode.SimpleDiv:
				if right == 0 {
					e.logDivideByZero()
					return
				}
				result = left / right
			case opcode.SimpleMod:
				if right == 0 {
					e.logDivideByZero()
					return
				}
				result = float32(math.Remainder(float64(left), float64(right)))
			}

		case opcode.SimpleAnd, opcode.SimpleOr, opcode.SimpleXor, opcode.SimpleBoolEq:
			left := e.reg[leftOp] != 0
			right := e.reg[rightOp] != 0
			var b bool
			switch simple {
			case opcode.SimpleAnd:
				b = left && right
			case opcode.SimpleOr:
				b = left || right
			case opcode.SimpleXor:
				b = left != right
			case opcode.SimpleBoolEq:
				b = left == right
			}
			result = boolToFloat(b)

		case opcode.SimpleNot:
			result = boolToFloat(e.reg[leftOp] == 0)

		case opcode.SimpleNameEq, opcode.SimpleNameNeq:
			left := e.nameOperand(data, leftSrc, leftOp)
			right := e.nameOperand(data, rightSrc, rightOp)
			if simple == opcode.SimpleNameEq {
				result = boolToFloat(left == right)
			} else {
				result = boolToFloat(left != right)
			}

		case opcode.SimpleNumEq, opcode.SimpleNumNeq, opcode.SimpleNumLt,
			opcode.SimpleNumGt, opcode.SimpleNumLteq, opcode.SimpleNumGteq:
			left := e.numOperand(data, leftSrc, leftOp)
			right := e.numOperand(data, rightSrc, rightOp)
			var b bool
			switch simple {
			case opcode.SimpleNumEq:
				b = left == right
			case opcode.SimpleNumNeq:
				b = left != right
			case opcode.SimpleNumLt:
				b = left < right
			case opcode.SimpleNumGt:
				b = left > right
			case opcode.SimpleNumLteq:
				b = left <= right
			case opcode.SimpleNumGteq:
				b = left >= right
			}
			result = boolToFloat(b)

		case opcode.SimpleNumVal:
			result = data.ConstFloats[leftOp]

		case opcode.SimpleBoolVal:
			// The operand is the literal value; booleans have no
			// constant table.
			result = boolToFloat(leftOp > 0)
		}

		e.reg[outReg] = result
	}
}

func (e *Evaluator) numOperand(data *ExpressionData, src opcode.Source, idx SlotIndex) float32 {
	switch src {
	case opcode.SourceConstant:
		return data.ConstFloats[idx]
	case opcode.SourceVariable:
		return e.vars.Number(idx)
	default:
		return e.reg[idx]
	}
}

func (e *Evaluator) nameOperand(data *ExpressionData, src opcode.Source, idx SlotIndex) name.Name {
	if src == opcode.SourceConstant {
		return data.ConstNames[idx]
	}
	return e.vars.Name(idx)
}

func (e *Evaluator) logDivideByZero() {
	e.errors.AddError(CategoryMath, CodeDivideByZero, "divide by zero error")
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
