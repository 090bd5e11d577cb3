// Package playground runs a small Ebitengine visualisation of a
// behaviour-tree-driven agent. The agent wanders a field, getting
// hungrier and more tired; a selector over its needs sends it to the
// food patch or its nest, with every decision made by compiled
// conditions over the agent's variable pack.
package playground

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/venlark/ticktree/pkg/bt"
	"github.com/venlark/ticktree/pkg/formula"
	"github.com/venlark/ticktree/pkg/logger"
	"github.com/venlark/ticktree/pkg/name"
)

const (
	screenWidth  = 320
	screenHeight = 240

	// One behaviour tree tick every few frames keeps the motion
	// readable at 60 fps.
	framesPerTick = 6
)

var (
	backgroundColor = color.RGBA{0x20, 0x30, 0x20, 0xff}
	agentColor      = color.RGBA{0xf0, 0xd0, 0x40, 0xff}
	foodColor       = color.RGBA{0xd0, 0x40, 0x40, 0xff}
	nestColor       = color.RGBA{0x40, 0x80, 0xd0, 0xff}
	textColor       = color.White

	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

// point is a field position.
type point struct {
	x, y float32
}

// agentWorld is the world data shared with the behaviour execs.
type agentWorld struct {
	agent point
	food  point
	nest  point

	rng uint64 // xorshift state for wander targets
}

// nextRand is a small xorshift so headless runs are reproducible.
func (w *agentWorld) nextRand() float32 {
	w.rng ^= w.rng << 13
	w.rng ^= w.rng >> 7
	w.rng ^= w.rng << 17
	return float32(w.rng%1000) / 1000
}

// Game drives the behaviour tree and renders the field.
type Game struct {
	vars *formula.VariablePack
	eval *bt.Evaluator

	world      *agentWorld
	lastResult bt.Result

	frame     int
	ticksDone int
	tickLimit int // 0 means unlimited

	log *slog.Logger
}

// Option configures a Game.
type Option func(*Game)

// WithTickLimit stops the game after n behaviour tree ticks.
func WithTickLimit(n int) Option {
	return func(g *Game) {
		g.tickLimit = n
	}
}

// WithLogger sets the game's logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Game) {
		g.log = log
	}
}

// New builds the playground: schema, pack, tree and evaluator.
func New(opts ...Option) (*Game, error) {
	layout := formula.NewVariableLayout()
	layout.AddVariable(name.New("hunger"), formula.TypeNumber)
	layout.AddVariable(name.New("fatigue"), formula.TypeNumber)
	layout.AddVariable(name.New("mood"), formula.TypeName)

	vars := formula.NewVariablePack(layout, name.New("content"), 0)

	world := &agentWorld{
		agent: point{x: screenWidth / 2, y: screenHeight / 2},
		food:  point{x: 40, y: 40},
		nest:  point{x: screenWidth - 40, y: screenHeight - 40},
		rng:   0x9e3779b97f4a7c15,
	}

	tree := bt.NewSelector("agent",
		bt.NewSequence("feed",
			bt.NewCondition("hungry", "hunger >= 60"),
			bt.NewBehaviour("goto-food", newMoveSpec(func(w *agentWorld) point { return w.food })),
			bt.NewBehaviour("eat", &eatSpec{}),
		),
		bt.NewSequence("sleep",
			bt.NewCondition("tired", "fatigue >= 70 && hunger < 60"),
			bt.NewBehaviour("goto-nest", newMoveSpec(func(w *agentWorld) point { return w.nest })),
			bt.NewBehaviour("nap", &napSpec{}),
		),
		bt.NewBehaviour("wander", &wanderSpec{}),
	)

	g := &Game{
		vars:  vars,
		world: world,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get()
	}

	comp := bt.NewCompiler(vars, world, bt.WithLogger(g.log))
	rt := comp.Compile(tree)
	if rt == nil {
		return nil, fmt.Errorf("behaviour tree compile failed: %+v", comp.Errors().All())
	}

	g.eval = bt.NewEvaluator(rt, world, vars)
	return g, nil
}

// step runs one behaviour tree tick plus the ambient need growth.
func (g *Game) step() {
	hunger := name.New("hunger")
	fatigue := name.New("fatigue")

	g.vars.SetNumberVar(hunger, g.vars.NumberVar(hunger)+0.8)
	g.vars.SetNumberVar(fatigue, g.vars.NumberVar(fatigue)+0.3)

	g.lastResult = g.eval.Tick()
	g.ticksDone++

	if g.eval.Errors().Count() > 0 {
		g.log.Error("tick reported errors", "errors", fmt.Sprintf("%+v", g.eval.Errors().All()))
	}
}

// Done reports whether the tick budget is spent.
func (g *Game) Done() bool {
	return g.tickLimit > 0 && g.ticksDone >= g.tickLimit
}

// TicksDone returns the number of ticks run so far.
func (g *Game) TicksDone() int {
	return g.ticksDone
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	g.frame++
	if g.frame%framesPerTick == 0 {
		g.step()
	}
	if g.Done() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	vector.DrawFilledRect(screen, g.world.food.x-6, g.world.food.y-6, 12, 12, foodColor, false)
	vector.DrawFilledRect(screen, g.world.nest.x-8, g.world.nest.y-5, 16, 10, nestColor, false)
	vector.DrawFilledRect(screen, g.world.agent.x-4, g.world.agent.y-4, 8, 8, agentColor, false)

	status := fmt.Sprintf("node: %s\nhunger: %4.1f  fatigue: %4.1f  mood: %s\nresult: %s",
		g.eval.CurrentNodeName().String(),
		g.vars.NumberVar(name.New("hunger")),
		g.vars.NumberVar(name.New("fatigue")),
		g.vars.NameVar(name.New("mood")).String(),
		g.lastResult)

	op := &text.DrawOptions{}
	op.GeoM.Translate(4, 4)
	op.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, status, defaultFace, op)
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// Run opens a window and runs the playground, or ticks it headlessly
// when headless is set. A tick budget of 0 runs until the window
// closes; headless runs need a budget.
func Run(headless bool, ticks int) error {
	if headless && ticks <= 0 {
		return errors.New("headless runs need a tick budget")
	}

	game, err := New(WithTickLimit(ticks))
	if err != nil {
		return err
	}

	if headless {
		for !game.Done() {
			game.step()
		}
		logger.Get().Info("playground finished", "ticks", game.TicksDone())
		return nil
	}

	ebiten.SetWindowSize(screenWidth*2, screenHeight*2)
	ebiten.SetWindowTitle("ticktree playground")
	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}
