package bt

import (
	"strings"
	"testing"

	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/name"
)

func TestCompileEmitsJumpTablePerSequence(t *testing.T) {
	vars := formula.NewVariablePack(branchLayout(), name.Name{}, 0)
	world := &logWorld{}

	tree := NewSequence("outer",
		NewBehaviour("a", &countSpec{initialCount: 1}),
		NewSequence("inner",
			NewBehaviour("b", &countSpec{initialCount: 1}),
			NewBehaviour("c", &countSpec{initialCount: 1}),
		),
	)

	rt := compileTree(t, vars, world, tree)

	if rt.seqNodeCount != 2 {
		t.Errorf("seqNodeCount = %d, want 2", rt.seqNodeCount)
	}
	if len(rt.seqChildCounts) != 2 || rt.seqChildCounts[0] != 2 || rt.seqChildCounts[1] != 2 {
		t.Errorf("seqChildCounts = %v, want [2 2]", rt.seqChildCounts)
	}
	if len(rt.behaviourSpecs) != 3 || len(rt.nodeNames) != 3 {
		t.Errorf("tables sized %d specs / %d names, want 3 / 3",
			len(rt.behaviourSpecs), len(rt.nodeNames))
	}
}

func TestCompileResolvesAllFixups(t *testing.T) {
	vars := formula.NewVariablePack(branchLayout(), name.Name{}, 0)
	world := &logWorld{}

	tree := NewSelector("root",
		NewSequence("seq1",
			NewCondition("cond1", "branch == 1"),
			NewBehaviour("count1", &countSpec{initialCount: 1}),
		),
		NewSequence("seq2",
			NewCondition("cond2", "branch == 2"),
			NewBehaviour("count2", &countSpec{initialCount: 2}),
		),
	)

	rt := compileTree(t, vars, world, tree)

	codeLen := uint16(len(rt.code))
	for ip := 0; ip < len(rt.code); ip++ {
		op, operand := unpackWord(rt.code[ip])
		switch op {
		case OpJumpNotFail, OpJumpNotSuccess:
			if operand == invalidAddress || operand > codeLen {
				t.Errorf("unresolved jump operand %#x at %d", operand, ip)
			}
		case OpJumpTable:
			for i := uint16(0); i < rt.seqChildCounts[operand]; i++ {
				ip++
				target := uint16(rt.code[ip] & 0xffff)
				if target == invalidAddress || target >= codeLen {
					t.Errorf("unresolved jump-table target %#x at %d", target, ip)
				}
			}
		case OpStoreSeqIdx, OpCondStoreSeqIdx:
			ip++
		}
	}
}

func TestCompileAccumulatesConditionErrors(t *testing.T) {
	vars := formula.NewVariablePack(branchLayout(), name.Name{}, 0)
	world := &logWorld{}

	tree := NewSelector("root",
		NewCondition("bad-ident", "missing == 1"),
		NewCondition("bad-type", "branch + 1"),
		NewCondition("bad-syntax", "branch =="),
	)

	comp := NewCompiler(vars, world)
	if rt := comp.Compile(tree); rt != nil {
		t.Fatal("expected compilation to fail")
	}

	if comp.Errors().Count() != 3 {
		t.Fatalf("error count = %d, want 3: %+v", comp.Errors().Count(), comp.Errors().All())
	}

	if got := comp.Errors().Error(0); got.Code != CodeIdentifierNotFound {
		t.Errorf("first error code = %v, want IdentifierNotFound", got.Code)
	}
	if got := comp.Errors().Error(1); got.Code != CodeConditionTypeNotBool || got.Category != CategoryExpressionType {
		t.Errorf("second error = %+v, want ExpressionType/ConditionTypeNotBool", got)
	}
	if got := comp.Errors().Error(2); got.Code != CodeSyntaxError {
		t.Errorf("third error code = %v, want SyntaxError", got.Code)
	}
}

func TestCompileClonesBehaviourSpecs(t *testing.T) {
	vars := formula.NewVariablePack(branchLayout(), name.Name{}, 0)
	world := &logWorld{}

	shared := &countSpec{initialCount: 2}
	tree := NewSequence("root",
		NewBehaviour("first", shared),
		NewBehaviour("second", shared),
	)

	rt := compileTree(t, vars, world, tree)

	if rt.behaviourSpecs[0] == BehaviourSpec(shared) || rt.behaviourSpecs[1] == BehaviourSpec(shared) {
		t.Error("runtime holds the authoring spec instead of a clone")
	}
	if rt.behaviourSpecs[0] == rt.behaviourSpecs[1] {
		t.Error("each referencing node needs its own clone")
	}
}

func TestDisassembleListsEveryInstruction(t *testing.T) {
	vars := formula.NewVariablePack(branchLayout(), name.Name{}, 0)
	world := &logWorld{}

	tree := NewSequence("root",
		NewCondition("gate", "branch > 0"),
		NewBehaviour("count1", &countSpec{initialCount: 1}),
	)

	rt := compileTree(t, vars, world, tree)
	text := Disassemble(rt)

	for _, want := range []string{
		"JUMP_TABLE seq=0",
		"jump target",
		"EVAL_EXPR expr=0",
		"INDICATE_NODE_START count1",
		"EXEC_BEHAVIOUR spec=0",
		"COND_STORE_SEQIDX seq=0",
		"JUMP_NOT_SUCCESS",
		"STORE_SEQIDX seq=0",
		"SET_SUCCESS",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %q:\n%s", want, text)
		}
	}
}
