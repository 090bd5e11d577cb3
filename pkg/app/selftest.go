package app

import (
	"fmt"
	"io"

	"github.com/venlark/ticktree/pkg/bt"
	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/name"
)

// The self-test suite exercises the compiled pipeline end to end. It
// backs the `ticktree test` command and mirrors the scenarios the unit
// tests cover, but runs them through the public API only.

type selfTest struct {
	name string
	run  func() error
}

// runSelfTests executes every scenario, printing one line per test, and
// returns an error when any failed.
func runSelfTests(w io.Writer) error {
	tests := []selfTest{
		{"expression/arithmetic", testExpressionArithmetic},
		{"expression/comparison", testExpressionComparison},
		{"expression/names", testExpressionNames},
		{"expression/errors", testExpressionErrors},
		{"bt/sequence", testSequence},
		{"bt/selector", testSelector},
	}

	failed := 0
	for _, test := range tests {
		if err := test.run(); err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", test.name, err)
		} else {
			fmt.Fprintf(w, "ok    %s\n", test.name)
		}
	}

	fmt.Fprintf(w, "%d/%d tests passed\n", len(tests)-failed, len(tests))
	if failed > 0 {
		return fmt.Errorf("%d self tests failed", failed)
	}
	return nil
}

func numberScenarioPack() (*formula.VariableLayout, *formula.VariablePack) {
	layout := formula.NewVariableLayout()
	layout.AddVariable(name.New("NumA"), formula.TypeNumber)
	layout.AddVariable(name.New("NumB"), formula.TypeNumber)
	layout.AddVariable(name.New("NumC"), formula.TypeNumber)
	layout.AddVariable(name.New("NameC"), formula.TypeName)
	layout.AddVariable(name.New("NameD"), formula.TypeName)

	pack := formula.NewVariablePack(layout, name.Name{}, 0)
	pack.SetNumberVar(name.New("NumA"), 5)
	pack.SetNumberVar(name.New("NumB"), -3)
	pack.SetNumberVar(name.New("NumC"), 2)
	pack.SetNameVar(name.New("NameC"), name.New("C"))
	pack.SetNameVar(name.New("NameD"), name.New("D"))
	return layout, pack
}

func evalScenario(src string) (*formula.Evaluator, error) {
	layout, pack := numberScenarioPack()

	comp := formula.NewCompiler(layout)
	data := comp.Compile(src)
	if data == nil {
		return nil, fmt.Errorf("compile of %q failed: %+v", src, comp.Errors().All())
	}

	eval := formula.NewEvaluator(pack)
	eval.Evaluate(data)
	if eval.Errors().Count() > 0 {
		return eval, fmt.Errorf("evaluate of %q failed: %+v", src, eval.Errors().All())
	}
	return eval, nil
}

func expectNumber(src string, want float32) error {
	eval, err := evalScenario(src)
	if err != nil {
		return err
	}
	if got := eval.NumberResult(); got != want {
		return fmt.Errorf("%q = %v, want %v", src, got, want)
	}
	return nil
}

func expectBool(src string, want bool) error {
	eval, err := evalScenario(src)
	if err != nil {
		return err
	}
	if got := eval.BoolResult(); got != want {
		return fmt.Errorf("%q = %v, want %v", src, got, want)
	}
	return nil
}

func testExpressionArithmetic() error {
	checks := []struct {
		src  string
		want float32
	}{
		{"NumA / NumC", 2.5},
		{"-10 / -2", 5},
		{"-12 % -5", -2},
		{"4 + NumA", 9},
	}
	for _, check := range checks {
		if err := expectNumber(check.src, check.want); err != nil {
			return err
		}
	}
	return nil
}

func testExpressionComparison() error {
	checks := []struct {
		src  string
		want bool
	}{
		{"(NumA == 5) != (NumB > 0)", true},
		{"NumA > 3 || NumB > 3 && NumA < 0", true},
	}
	for _, check := range checks {
		if err := expectBool(check.src, check.want); err != nil {
			return err
		}
	}
	return nil
}

func testExpressionNames() error {
	if err := expectBool("NameC == 'C'", true); err != nil {
		return err
	}
	if err := expectBool("NameC == NameD", false); err != nil {
		return err
	}

	layout, _ := numberScenarioPack()
	comp := formula.NewCompiler(layout)
	if data := comp.Compile("'A'"); data != nil {
		return fmt.Errorf("compiling a bare name literal must fail")
	}
	if comp.Errors().Count() == 0 || comp.Errors().Error(0).Code != formula.CodeConstNameExpression {
		return fmt.Errorf("expected ConstNameExpression, got %+v", comp.Errors().All())
	}
	return nil
}

func testExpressionErrors() error {
	layout, pack := numberScenarioPack()

	comp := formula.NewCompiler(layout)
	data := comp.Compile("NumA / (NumA - 5)")
	if data == nil {
		return fmt.Errorf("compile failed: %+v", comp.Errors().All())
	}

	eval := formula.NewEvaluator(pack)
	eval.Evaluate(data)
	if eval.Errors().Count() == 0 {
		return fmt.Errorf("expected a runtime divide-by-zero")
	}
	if info := eval.Errors().Error(0); info.Code != formula.CodeDivideByZero {
		return fmt.Errorf("expected DivideByZero, got %+v", info)
	}
	return nil
}

/*
 * Behaviour tree scenarios
 */

type traceEntry struct {
	name  string
	count uint32
}

type traceWorld struct {
	entries []traceEntry
}

type countExec struct {
	name      name.Name
	currCount uint32
}

func (x *countExec) Init(origin name.Name, ctx *bt.Context) {}

func (x *countExec) Execute(ctx *bt.Context) bt.Result {
	world := ctx.World.(*traceWorld)
	world.entries = append(world.entries, traceEntry{name: x.name.String(), count: x.currCount})
	x.currCount--
	if x.currCount > 0 {
		return bt.ResultInProgress
	}
	return bt.ResultSuccess
}

func (x *countExec) Cleanup(ctx *bt.Context) {}

type countSpec struct {
	initialCount uint32
}

func (s *countSpec) Duplicate() bt.BehaviourSpec {
	copySpec := *s
	return &copySpec
}

func (s *countSpec) CompileExpressions(ctx *bt.Context) {}

func (s *countSpec) NewExec(origin name.Name, ctx *bt.Context) bt.BehaviourExec {
	return &countExec{name: origin, currCount: s.initialCount}
}

func compareTrace(want []traceEntry, got []traceEntry) error {
	if len(want) != len(got) {
		return fmt.Errorf("trace length %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("trace[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	return nil
}

func testSequence() error {
	layout := formula.NewVariableLayout()
	layout.AddVariable(name.New("branch"), formula.TypeNumber)
	vars := formula.NewVariablePack(layout, name.Name{}, 0)
	world := &traceWorld{}

	tree := bt.NewSequence("root-seq",
		bt.NewBehaviour("count1", &countSpec{initialCount: 1}),
		bt.NewBehaviour("count2", &countSpec{initialCount: 2}),
		bt.NewBehaviour("count3", &countSpec{initialCount: 3}),
	)

	comp := bt.NewCompiler(vars, world)
	rt := comp.Compile(tree)
	if rt == nil {
		return fmt.Errorf("tree compile failed: %+v", comp.Errors().All())
	}

	eval := bt.NewEvaluator(rt, world, vars)
	var last bt.Result
	for i := 0; i < 4; i++ {
		last = eval.Tick()
	}

	if last != bt.ResultSuccess {
		return fmt.Errorf("final tick = %v, want Success", last)
	}

	return compareTrace([]traceEntry{
		{"count1", 1},
		{"count2", 2},
		{"count2", 1},
		{"count3", 3},
		{"count3", 2},
		{"count3", 1},
	}, world.entries)
}

func testSelector() error {
	layout := formula.NewVariableLayout()
	layout.AddVariable(name.New("branch"), formula.TypeNumber)
	vars := formula.NewVariablePack(layout, name.Name{}, 0)
	world := &traceWorld{}

	tree := bt.NewSelector("root-sel",
		bt.NewSequence("seq1",
			bt.NewCondition("cond1", "branch == 1"),
			bt.NewBehaviour("count1", &countSpec{initialCount: 1}),
		),
		bt.NewSequence("seq2",
			bt.NewCondition("cond2", "branch == 2"),
			bt.NewBehaviour("count2", &countSpec{initialCount: 2}),
		),
		bt.NewSequence("seq3",
			bt.NewCondition("cond3", "branch == 3"),
			bt.NewBehaviour("count3", &countSpec{initialCount: 3}),
		),
	)

	comp := bt.NewCompiler(vars, world)
	rt := comp.Compile(tree)
	if rt == nil {
		return fmt.Errorf("tree compile failed: %+v", comp.Errors().All())
	}

	eval := bt.NewEvaluator(rt, world, vars)
	branch := name.New("branch")
	for _, value := range []float32{0, 2, 1, 2, 2, 2} {
		vars.SetNumberVar(branch, value)
		eval.Tick()
	}

	return compareTrace([]traceEntry{
		{"count2", 2},
		{"count1", 1},
		{"count2", 2},
		{"count2", 1},
		{"count2", 2},
	}, world.entries)
}
