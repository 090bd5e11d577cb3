package bt

import (
	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/name"
)

// invalidBehaviourIndex marks that no behaviour exec is active.
const invalidBehaviourIndex = 0xffff

// Evaluator ticks one compiled tree against one variable pack. It owns
// the per-agent tick state: the sequence resume counters and the active
// behaviour exec. Evaluators sharing a RuntimeData are independent; a
// single Evaluator is not re-entrant.
type Evaluator struct {
	errors ErrorReporter

	rt  *RuntimeData
	ctx Context

	currNodeName     name.Name
	currBehaviourIdx uint16
	currExec         BehaviourExec
	seqCounters      []uint16

	expEval *formula.Evaluator
}

// NewEvaluator creates an Evaluator for rt. The pack must outlive the
// evaluator and use the layout the tree was compiled against.
func NewEvaluator(rt *RuntimeData, world any, vars *formula.VariablePack) *Evaluator {
	e := &Evaluator{
		rt:               rt,
		currBehaviourIdx: invalidBehaviourIndex,
		seqCounters:      make([]uint16, rt.seqNodeCount),
		expEval:          formula.NewEvaluator(vars),
	}
	e.ctx = Context{Errors: &e.errors, World: world, Vars: vars}
	return e
}

// Errors returns the runtime error reporter. It is reset at the start
// of every tick.
func (e *Evaluator) Errors() *ErrorReporter {
	return &e.errors
}

// CurrentNodeName returns the name of the last behaviour node reached,
// for diagnostics.
func (e *Evaluator) CurrentNodeName() name.Name {
	return e.currNodeName
}

// Reset interrupts any active behaviour exec (running its Cleanup) and
// clears all sequence resume counters. Call it before discarding an
// evaluator whose tree may still have a behaviour in flight.
func (e *Evaluator) Reset() {
	if e.currExec != nil {
		e.currExec.Cleanup(&e.ctx)
		e.currExec = nil
	}
	e.currBehaviourIdx = invalidBehaviourIndex
	for i := range e.seqCounters {
		e.seqCounters[i] = 0
	}
}

// Tick walks the bytecode once from the top and returns the tree's
// result for this tick.
//
// A tick that never reaches an EXEC_BEHAVIOUR leaves the previously
// active exec alive; its state is retained until a later tick either
// executes it again or starts a different behaviour. This is the
// intended contract for sparse ticking, not a leak.
func (e *Evaluator) Tick() Result {
	e.errors.Reset()

	result := ResultUndefined

	for ip := 0; ip < len(e.rt.code); ip++ {
		op, operand := unpackWord(e.rt.code[ip])

		switch op {
		case OpIndicateNodeStart:
			e.currNodeName = e.rt.nodeNames[operand]

		case OpSetFail:
			result = ResultFailure

		case OpSetSuccess:
			result = ResultSuccess

		case OpStoreSeqIdx:
			ip++
			e.seqCounters[operand] = uint16(e.rt.code[ip] & 0xffff)

		case OpCondStoreSeqIdx:
			ip++
			if result == ResultInProgress {
				e.seqCounters[operand] = uint16(e.rt.code[ip] & 0xffff)
			} else {
				e.seqCounters[operand] = 0
			}

		case OpEvalExpr:
			e.expEval.Reset()
			e.expEval.Evaluate(e.rt.expressions[operand])

			if e.expEval.Errors().Count() > 0 {
				result = ResultFailure
				e.errors.CombineFormula(e.expEval.Errors())
			} else if e.expEval.BoolResult() {
				result = ResultSuccess
			} else {
				result = ResultFailure
			}

		case OpExecBehaviour:
			result = e.execBehaviour(operand)

		case OpJumpTable:
			counter := e.seqCounters[operand]
			// -1 to account for the loop increment.
			ip = int(e.rt.code[ip+1+int(counter)]&0xffff) - 1

		case OpJumpNotFail:
			if result != ResultFailure {
				ip = int(operand) - 1
			}

		case OpJumpNotSuccess:
			if result != ResultSuccess {
				ip = int(operand) - 1
			}

		default:
			e.errors.AddError(CategoryInternal, CodeInternalError, "invalid behaviour tree opcode")
			return ResultFailure
		}
	}

	if result == ResultUndefined {
		result = ResultFailure
	}
	return result
}

// execBehaviour runs the behaviour lifecycle for one EXEC_BEHAVIOUR
// instruction. Switching to a different behaviour cleans up the old
// exec first; that cleanup is the only interruption signal an executor
// receives.
func (e *Evaluator) execBehaviour(idx uint16) Result {
	if e.currBehaviourIdx != idx {
		if e.currExec != nil {
			e.currExec.Cleanup(&e.ctx)
			e.currExec = nil
		}

		e.currBehaviourIdx = idx
		spec := e.rt.behaviourSpecs[idx]
		e.currExec = spec.NewExec(e.currNodeName, &e.ctx)
		e.currExec.Init(e.currNodeName, &e.ctx)
	}

	result := e.currExec.Execute(&e.ctx)
	if result == ResultUndefined {
		e.errors.AddError(CategoryInternal, CodeInternalError,
			"behaviour exec returned Undefined")
		result = ResultFailure
	}

	if result != ResultInProgress {
		e.currExec.Cleanup(&e.ctx)
		e.currExec = nil
		e.currBehaviourIdx = invalidBehaviourIndex
	}

	return result
}
