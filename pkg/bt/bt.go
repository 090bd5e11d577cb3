// Package bt compiles behaviour trees into a linear bytecode and ticks
// them with a small virtual machine.
//
// A tree is authored programmatically from Sequence, Selector, Condition
// and Behaviour nodes. Conditions are formula source text compiled
// against the agent's variable layout; behaviours are host-supplied
// actions described by a BehaviourSpec and executed through a
// per-activation BehaviourExec. Compilation produces an immutable
// RuntimeData that any number of Evaluators may share; each Evaluator
// owns its tick state (sequence resume counters and the active
// behaviour exec).
package bt

import (
	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/name"
)

// Result is the outcome of a node or of a whole tick.
type Result uint8

const (
	// ResultUndefined only appears while a tick is in flight; it must
	// never escape a leaf.
	ResultUndefined Result = iota

	ResultSuccess
	ResultFailure
	ResultInProgress
)

// String returns the result name for logs and tests.
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultFailure:
		return "Failure"
	case ResultInProgress:
		return "InProgress"
	default:
		return "Undefined"
	}
}

// Context is passed to behaviour specs and execs. World is host-owned
// opaque state; Vars is the agent's variable pack, which execs may
// mutate between instructions.
type Context struct {
	Errors *ErrorReporter
	World  any
	Vars   *formula.VariablePack
}

// BehaviourExec is one activation of a behaviour. A fresh exec is
// created each time a behaviour leaf becomes active; Cleanup runs
// exactly once when the behaviour finishes or is interrupted by another
// behaviour node, after which the exec is discarded.
type BehaviourExec interface {
	// Init is called once, before the first Execute.
	Init(origin name.Name, ctx *Context)
	// Execute is called on every tick where the behaviour runs,
	// including the first. It must not return ResultUndefined.
	Execute(ctx *Context) Result
	// Cleanup is called when the behaviour has stopped or is being
	// interrupted.
	Cleanup(ctx *Context)
}

// BehaviourSpec describes a behaviour at authoring time. The compiler
// clones the spec for each referencing node, so one spec value can back
// several leaves.
type BehaviourSpec interface {
	// Duplicate returns a deep copy owned by the compiled runtime.
	Duplicate() BehaviourSpec
	// CompileExpressions compiles any formulas the behaviour carries.
	// Errors go to ctx.Errors.
	CompileExpressions(ctx *Context)
	// NewExec creates an exec for one activation. It is called on a
	// shared runtime and must not mutate the spec.
	NewExec(origin name.Name, ctx *Context) BehaviourExec
}
