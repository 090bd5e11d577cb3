package playground

import (
	"math"

	"github.com/venlark/ticktree/pkg/bt"
	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/name"
)

// moveSpec walks the agent towards a target resolved from the world on
// every tick.
type moveSpec struct {
	target func(*agentWorld) point
}

func newMoveSpec(target func(*agentWorld) point) *moveSpec {
	return &moveSpec{target: target}
}

func (s *moveSpec) Duplicate() bt.BehaviourSpec {
	copySpec := *s
	return &copySpec
}

func (s *moveSpec) CompileExpressions(ctx *bt.Context) {}

func (s *moveSpec) NewExec(origin name.Name, ctx *bt.Context) bt.BehaviourExec {
	return &moveExec{target: s.target}
}

type moveExec struct {
	target func(*agentWorld) point
}

func (x *moveExec) Init(origin name.Name, ctx *bt.Context) {}

func (x *moveExec) Execute(ctx *bt.Context) bt.Result {
	world := ctx.World.(*agentWorld)
	dest := x.target(world)

	if stepTowards(&world.agent, dest, 2.5) {
		return bt.ResultSuccess
	}

	fatigue := name.New("fatigue")
	ctx.Vars.SetNumberVar(fatigue, ctx.Vars.NumberVar(fatigue)+0.2)
	return bt.ResultInProgress
}

func (x *moveExec) Cleanup(ctx *bt.Context) {}

// eatSpec feeds the agent until hunger is low.
type eatSpec struct{}

func (s *eatSpec) Duplicate() bt.BehaviourSpec {
	copySpec := *s
	return &copySpec
}

func (s *eatSpec) CompileExpressions(ctx *bt.Context) {}

func (s *eatSpec) NewExec(origin name.Name, ctx *bt.Context) bt.BehaviourExec {
	return &eatExec{}
}

type eatExec struct{}

func (x *eatExec) Init(origin name.Name, ctx *bt.Context) {
	ctx.Vars.SetNameVar(name.New("mood"), name.New("feeding"))
}

func (x *eatExec) Execute(ctx *bt.Context) bt.Result {
	hunger := name.New("hunger")
	value := ctx.Vars.NumberVar(hunger) - 12
	if value < 0 {
		value = 0
	}
	ctx.Vars.SetNumberVar(hunger, value)

	if value > 5 {
		return bt.ResultInProgress
	}
	return bt.ResultSuccess
}

func (x *eatExec) Cleanup(ctx *bt.Context) {
	ctx.Vars.SetNameVar(name.New("mood"), name.New("content"))
}

// napSpec rests the agent until fatigue is low.
type napSpec struct{}

func (s *napSpec) Duplicate() bt.BehaviourSpec {
	copySpec := *s
	return &copySpec
}

func (s *napSpec) CompileExpressions(ctx *bt.Context) {}

func (s *napSpec) NewExec(origin name.Name, ctx *bt.Context) bt.BehaviourExec {
	return &napExec{}
}

type napExec struct{}

func (x *napExec) Init(origin name.Name, ctx *bt.Context) {
	ctx.Vars.SetNameVar(name.New("mood"), name.New("sleepy"))
}

func (x *napExec) Execute(ctx *bt.Context) bt.Result {
	fatigue := name.New("fatigue")
	value := ctx.Vars.NumberVar(fatigue) - 15
	if value < 0 {
		value = 0
	}
	ctx.Vars.SetNumberVar(fatigue, value)

	if value > 5 {
		return bt.ResultInProgress
	}
	return bt.ResultSuccess
}

func (x *napExec) Cleanup(ctx *bt.Context) {
	ctx.Vars.SetNameVar(name.New("mood"), name.New("rested"))
}

// wanderSpec strolls to random field positions. Its pace formula is
// compiled once per referencing node through the spec's expression
// hook: a brisk walk while fresh, a crawl when worn out.
type wanderSpec struct {
	brisk *formula.ExpressionData
}

func (s *wanderSpec) Duplicate() bt.BehaviourSpec {
	copySpec := *s
	return &copySpec
}

func (s *wanderSpec) CompileExpressions(ctx *bt.Context) {
	comp := formula.NewCompiler(ctx.Vars.Layout())
	s.brisk = comp.Compile("fatigue < 50")
	if comp.Errors().Count() > 0 {
		ctx.Errors.CombineFormula(comp.Errors())
	}
}

func (s *wanderSpec) NewExec(origin name.Name, ctx *bt.Context) bt.BehaviourExec {
	return &wanderExec{brisk: s.brisk, eval: formula.NewEvaluator(ctx.Vars)}
}

type wanderExec struct {
	brisk *formula.ExpressionData
	eval  *formula.Evaluator
	dest  point
}

func (x *wanderExec) Init(origin name.Name, ctx *bt.Context) {
	world := ctx.World.(*agentWorld)
	x.dest = point{
		x: 10 + world.nextRand()*(screenWidth-20),
		y: 10 + world.nextRand()*(screenHeight-20),
	}
}

func (x *wanderExec) Execute(ctx *bt.Context) bt.Result {
	world := ctx.World.(*agentWorld)

	speed := float32(0.8)
	x.eval.Evaluate(x.brisk)
	if x.eval.Errors().Count() == 0 && x.eval.BoolResult() {
		speed = 1.6
	}

	if stepTowards(&world.agent, x.dest, speed) {
		return bt.ResultSuccess
	}

	fatigue := name.New("fatigue")
	ctx.Vars.SetNumberVar(fatigue, ctx.Vars.NumberVar(fatigue)+0.1)
	return bt.ResultInProgress
}

func (x *wanderExec) Cleanup(ctx *bt.Context) {}

// stepTowards moves p towards dest by at most speed and reports whether
// it arrived.
func stepTowards(p *point, dest point, speed float32) bool {
	dx := dest.x - p.x
	dy := dest.y - p.y

	distSq := dx*dx + dy*dy
	if distSq <= speed*speed {
		p.x, p.y = dest.x, dest.y
		return true
	}

	dist := float32(math.Sqrt(float64(distSq)))
	p.x += dx / dist * speed
	p.y += dy / dist * speed
	return false
}
