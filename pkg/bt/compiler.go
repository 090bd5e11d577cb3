package bt

import (
	"context"
	"log/slog"

	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/logger"
	"github.com/venlark/ticktree/pkg/name"
)

// RuntimeData is a compiled behaviour tree. It is immutable after
// compilation and may be shared by reference across evaluators; each
// evaluator keeps its own tick state.
type RuntimeData struct {
	layout         *formula.VariableLayout
	seqNodeCount   uint16
	seqChildCounts []uint16
	code           []uint32
	expressions    []*formula.ExpressionData
	nodeNames      []name.Name
	behaviourSpecs []BehaviourSpec
}

// SequenceCount returns the number of Sequence nodes in the tree.
func (rt *RuntimeData) SequenceCount() uint16 {
	return rt.seqNodeCount
}

// Layout returns the variable layout the tree was compiled against.
// Evaluator packs must use the same layout.
func (rt *RuntimeData) Layout() *formula.VariableLayout {
	return rt.layout
}

// invalidAddress fills jump operands until label fix-up resolves them.
const invalidAddress = 0xcdcd

type fixup struct {
	address  uint16
	label    int
	highHalf bool
}

// compilerContext carries the emission state for one compile: the
// bytecode under construction, the label table and the fix-up list for
// forward references.
type compilerContext struct {
	errors           *ErrorReporter
	rt               *RuntimeData
	behaviourContext *Context

	fixups    []fixup
	labels    map[int]uint16
	nextLabel int
}

func newCompilerContext(errors *ErrorReporter, behaviourContext *Context) *compilerContext {
	return &compilerContext{
		errors:           errors,
		rt:               &RuntimeData{},
		behaviourContext: behaviourContext,
		labels:           make(map[int]uint16),
	}
}

func (ctx *compilerContext) allocateLabel() int {
	label := ctx.nextLabel
	ctx.nextLabel++
	return label
}

// emitLabel binds label to the current bytecode offset.
func (ctx *compilerContext) emitLabel(label int) {
	ctx.labels[label] = uint16(len(ctx.rt.code))
}

func (ctx *compilerContext) recordFixup(address uint16, highHalf bool, label int) {
	ctx.fixups = append(ctx.fixups, fixup{address: address, label: label, highHalf: highHalf})
}

// emitOp appends a one-word instruction and returns its address.
func (ctx *compilerContext) emitOp(op Op, operand uint16) uint16 {
	ctx.rt.code = append(ctx.rt.code, packWord(op, operand))
	return uint16(len(ctx.rt.code) - 1)
}

// emitOpPair appends a two-word instruction; operand B sits in the low
// half of the second word.
func (ctx *compilerContext) emitOpPair(op Op, operandA, operandB uint16) uint16 {
	ctx.rt.code = append(ctx.rt.code, packWord(op, operandA), uint32(operandB))
	return uint16(len(ctx.rt.code) - 2)
}

// emitData appends a raw data word and returns its address.
func (ctx *compilerContext) emitData(high, low uint16) uint16 {
	ctx.rt.code = append(ctx.rt.code, uint32(high)<<16|uint32(low))
	return uint16(len(ctx.rt.code) - 1)
}

func (ctx *compilerContext) storeExpression(data *formula.ExpressionData) uint16 {
	ctx.rt.expressions = append(ctx.rt.expressions, data)
	return uint16(len(ctx.rt.expressions) - 1)
}

func (ctx *compilerContext) storeNodeName(n name.Name) uint16 {
	ctx.rt.nodeNames = append(ctx.rt.nodeNames, n)
	return uint16(len(ctx.rt.nodeNames) - 1)
}

func (ctx *compilerContext) storeBehaviourSpec(spec BehaviourSpec) uint16 {
	ctx.rt.behaviourSpecs = append(ctx.rt.behaviourSpecs, spec)
	return uint16(len(ctx.rt.behaviourSpecs) - 1)
}

func (ctx *compilerContext) incrementSeqNodeCount(childCount uint16) uint16 {
	count := ctx.rt.seqNodeCount
	ctx.rt.seqNodeCount++
	ctx.rt.seqChildCounts = append(ctx.rt.seqChildCounts, childCount)
	return count
}

// fixupLabels rewrites every recorded forward reference with the
// resolved label offset, editing one half of the word without
// disturbing the other.
func (ctx *compilerContext) fixupLabels() {
	for _, f := range ctx.fixups {
		address, ok := ctx.labels[f.label]
		if !ok {
			ctx.errors.AddError(CategoryInternal, CodeInternalError, "unresolved label in fix-up")
			continue
		}

		word := ctx.rt.code[f.address]
		if f.highHalf {
			word = uint32(address)<<16 | (word & 0xffff)
		} else {
			word = (word & 0xffff0000) | uint32(address)
		}
		ctx.rt.code[f.address] = word
	}
}

/*
 * Node compilation
 */

func (n *ConditionNode) compile(ctx *compilerContext) {
	comp := formula.NewCompiler(ctx.behaviourContext.Vars.Layout())
	data := comp.Compile(n.conditionText)

	switch {
	case comp.Errors().Count() > 0:
		ctx.errors.CombineFormula(comp.Errors())
	case data.ResultType != formula.TypeBool:
		ctx.errors.AddError(CategoryExpressionType, CodeConditionTypeNotBool,
			"condition node expressions must be a boolean type")
	default:
		exprIdx := ctx.storeExpression(data)
		ctx.emitOp(OpEvalExpr, exprIdx)
	}
}

func (n *BehaviourNode) compile(ctx *compilerContext) {
	spec := n.spec.Duplicate()
	spec.CompileExpressions(ctx.behaviourContext)

	behaviourIdx := ctx.storeBehaviourSpec(spec)
	nameIdx := ctx.storeNodeName(name.New(n.nodeName))

	ctx.emitOp(OpIndicateNodeStart, nameIdx)
	ctx.emitOp(OpExecBehaviour, behaviourIdx)
}

func (n *SequenceNode) compile(ctx *compilerContext) {
	seqIdx := ctx.incrementSeqNodeCount(uint16(len(n.children)))
	endLabel := ctx.allocateLabel()

	// The jump table resumes the sequence at whichever child was in
	// progress at the end of the previous tick.
	ctx.emitOp(OpJumpTable, seqIdx)
	entryLabels := make([]int, len(n.children))
	for i := range n.children {
		entryLabels[i] = ctx.allocateLabel()
		addr := ctx.emitData(invalidAddress, invalidAddress)
		ctx.recordFixup(addr, false, entryLabels[i])
	}

	for i, child := range n.children {
		ctx.emitLabel(entryLabels[i])
		child.compile(ctx)

		ctx.emitOpPair(OpCondStoreSeqIdx, seqIdx, uint16(i))
		jumpInstr := ctx.emitOp(OpJumpNotSuccess, invalidAddress)
		ctx.recordFixup(jumpInstr, true, endLabel)
	}

	// Reached only when every child succeeded.
	ctx.emitOpPair(OpStoreSeqIdx, seqIdx, 0)
	ctx.emitOp(OpSetSuccess, 0)

	ctx.emitLabel(endLabel)
}

func (n *SelectorNode) compile(ctx *compilerContext) {
	endLabel := ctx.allocateLabel()

	for _, child := range n.children {
		child.compile(ctx)

		jumpInstr := ctx.emitOp(OpJumpNotFail, invalidAddress)
		ctx.recordFixup(jumpInstr, true, endLabel)
	}

	ctx.emitLabel(endLabel)
}

/*
 * Compiler
 */

// Compiler lowers an authoring tree to RuntimeData. Condition errors
// accumulate across the tree, so a single build surfaces every broken
// formula.
type Compiler struct {
	errors ErrorReporter
	vars   *formula.VariablePack
	world  any
	log    *slog.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLogger sets the logger used for the post-compile bytecode dump.
func WithLogger(log *slog.Logger) CompilerOption {
	return func(c *Compiler) {
		c.log = log
	}
}

// NewCompiler creates a Compiler. Conditions compile against the layout
// of vars; world is handed to behaviour specs during compilation.
func NewCompiler(vars *formula.VariablePack, world any, opts ...CompilerOption) *Compiler {
	c := &Compiler{vars: vars, world: world}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get()
	}
	return c
}

// Errors returns the compile error reporter.
func (c *Compiler) Errors() *ErrorReporter {
	return &c.errors
}

// Compile lowers root and returns the runtime data, or nil if any node
// failed to compile.
func (c *Compiler) Compile(root Node) *RuntimeData {
	behaviourContext := &Context{Errors: &c.errors, World: c.world, Vars: c.vars}
	ctx := newCompilerContext(&c.errors, behaviourContext)

	root.compile(ctx)

	if c.errors.Count() > 0 {
		return nil
	}

	ctx.fixupLabels()
	if c.errors.Count() > 0 {
		return nil
	}

	ctx.rt.layout = c.vars.Layout()

	if c.log.Enabled(context.Background(), slog.LevelDebug) {
		c.log.Debug("behaviour tree compiled", "bytecode", "\n"+Disassemble(ctx.rt))
	}

	return ctx.rt
}
