package formula

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/venlark/ticktree/pkg/formula/opcode"
	"github.com/venlark/ticktree/pkg/name"
)

// Property-based tests for the compiler and evaluator. Expressions are
// generated from a seed so that shrinking stays meaningful: the same
// seed always produces the same source text.

// randomNumericExpr builds a random numeric expression over NumA, NumB
// and NumC plus small integer constants. Division and remainder are
// excluded so generated programs cannot trip divide-by-zero.
func randomNumericExpr(rng *rand.Rand, depth int) string {
	if depth <= 0 || rng.Intn(3) == 0 {
		switch rng.Intn(4) {
		case 0:
			return "NumA"
		case 1:
			return "NumB"
		case 2:
			return "NumC"
		default:
			return fmt.Sprintf("%d", rng.Intn(9)+1)
		}
	}
	ops := []string{"+", "-", "*"}
	op := ops[rng.Intn(len(ops))]
	return fmt.Sprintf("(%s %s %s)", randomNumericExpr(rng, depth-1), op, randomNumericExpr(rng, depth-1))
}

// randomBoolExpr combines comparisons of numeric subexpressions with
// logic operators.
func randomBoolExpr(rng *rand.Rand, depth int) string {
	if depth <= 0 || rng.Intn(3) == 0 {
		cmps := []string{"==", "!=", "<", "<=", ">", ">="}
		cmp := cmps[rng.Intn(len(cmps))]
		return fmt.Sprintf("(%s %s %s)", randomNumericExpr(rng, 1), cmp, randomNumericExpr(rng, 1))
	}
	if rng.Intn(4) == 0 {
		return "!" + randomBoolExpr(rng, depth-1)
	}
	ops := []string{"&&", "||"}
	op := ops[rng.Intn(len(ops))]
	return fmt.Sprintf("(%s %s %s)", randomBoolExpr(rng, depth-1), op, randomBoolExpr(rng, depth-1))
}

func mustCompile(layout *VariableLayout, src string) *ExpressionData {
	comp := NewCompiler(layout)
	data := comp.Compile(src)
	if data == nil {
		panic(fmt.Sprintf("compile of %q failed: %+v", src, comp.Errors().All()))
	}
	return data
}

func propertyPack(layout *VariableLayout, a, b, c float32) *VariablePack {
	pack := NewVariablePack(layout, name.Name{}, 0)
	pack.SetNumberVar(name.New("NumA"), a)
	pack.SetNumberVar(name.New("NumB"), b)
	pack.SetNumberVar(name.New("NumC"), c)
	return pack
}

func evalCompiled(layout *VariableLayout, data *ExpressionData, a, b, c float32) (float32, bool) {
	eval := NewEvaluator(propertyPack(layout, a, b, c))
	eval.Evaluate(data)
	if eval.Errors().Count() > 0 {
		return 0, false
	}
	return eval.NumberResult(), true
}

// TestPropertyCompileIdempotent verifies that compiling the same source
// against the same layout twice yields byte-identical programs.
func TestPropertyCompileIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("same source compiles to identical bytecode", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			src := randomBoolExpr(rng, 3)
			layout := testLayout()

			first := mustCompile(layout, src)
			second := mustCompile(layout, src)

			if first.RegCount != second.RegCount || len(first.Code) != len(second.Code) {
				return false
			}
			for i := range first.Code {
				if first.Code[i] != second.Code[i] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestPropertyBytecodeWellFormed verifies the register and table
// discipline of every emitted instruction, and that bytecode length is
// always even.
func TestPropertyBytecodeWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every operand index is in range", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			src := randomBoolExpr(rng, 3)
			layout := testLayout()
			data := mustCompile(layout, src)

			if len(data.Code)%2 != 0 {
				return false
			}

			operandOK := func(simple opcode.SimpleOp, src opcode.Source, idx SlotIndex) bool {
				switch src {
				case opcode.SourceRegister:
					return idx < data.RegCount
				case opcode.SourceConstant:
					if simple == opcode.SimpleNameEq || simple == opcode.SimpleNameNeq {
						return int(idx) < len(data.ConstNames)
					}
					if simple == opcode.SimpleBoolVal {
						return idx <= 1
					}
					return int(idx) < len(data.ConstFloats)
				case opcode.SourceVariable:
					if simple == opcode.SimpleNameEq || simple == opcode.SimpleNameNeq {
						return idx < layout.NameCount()
					}
					return idx < layout.NumberCount()
				}
				return false
			}

			for ip := 0; ip < len(data.Code); ip += 2 {
				op := opcode.Op(data.Code[ip] >> 16)
				outReg := SlotIndex(data.Code[ip])
				left := SlotIndex(data.Code[ip+1] >> 16)
				right := SlotIndex(data.Code[ip+1])

				if !opcode.Valid(op) {
					return false
				}
				if outReg >= data.RegCount {
					return false
				}
				simple := op.Simple()
				if !operandOK(simple, op.LeftSource(), left) {
					return false
				}
				// NOT and the value loads ignore the right operand.
				if simple != opcode.SimpleNot && simple != opcode.SimpleNumVal && simple != opcode.SimpleBoolVal {
					if !operandOK(simple, op.RightSource(), right) {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestPropertyConstTablesDeduplicated verifies that the constant tables
// never contain a duplicate value.
func TestPropertyConstTablesDeduplicated(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("constant tables hold no duplicates", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			src := randomBoolExpr(rng, 3)
			data := mustCompile(testLayout(), src)

			floats := map[float32]bool{}
			for _, v := range data.ConstFloats {
				if floats[v] {
					return false
				}
				floats[v] = true
			}
			names := map[name.Name]bool{}
			for _, v := range data.ConstNames {
				if names[v] {
					return false
				}
				names[v] = true
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestPropertyComparisonLaws verifies the equality-complement and
// relation-swap laws on arbitrary variable values.
func TestPropertyComparisonLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	layout := testLayout()
	evalBoolWith := func(src string, a, b float32) bool {
		data := mustCompile(layout, src)
		eval := NewEvaluator(propertyPack(layout, a, b, 0))
		eval.Evaluate(data)
		return eval.BoolResult()
	}

	properties.Property("a == b is the complement of a != b", prop.ForAll(
		func(a, b float32) bool {
			return evalBoolWith("NumA == NumB", a, b) != evalBoolWith("NumA != NumB", a, b)
		},
		gen.Float32Range(-1000, 1000),
		gen.Float32Range(-1000, 1000),
	))

	properties.Property("a < b equals b > a, and a <= b equals b >= a", prop.ForAll(
		func(a, b float32) bool {
			lt := evalBoolWith("NumA < NumB", a, b) == evalBoolWith("NumB > NumA", a, b)
			lteq := evalBoolWith("NumA <= NumB", a, b) == evalBoolWith("NumB >= NumA", a, b)
			return lt && lteq
		},
		gen.Float32Range(-1000, 1000),
		gen.Float32Range(-1000, 1000),
	))

	properties.Property("double negation is identity", prop.ForAll(
		func(a, b float32) bool {
			return evalBoolWith("!!(NumA < NumB)", a, b) == evalBoolWith("NumA < NumB", a, b)
		},
		gen.Float32Range(-1000, 1000),
		gen.Float32Range(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestPropertyFoldSoundness verifies that evaluating a compiled
// expression matches evaluating the same expression with the variables
// substituted as constants, i.e. constant folding computes the same
// arithmetic the evaluator does.
func TestPropertyFoldSoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	layout := testLayout()

	properties.Property("folded constants match evaluated variables", prop.ForAll(
		func(seed int64, a, b, c int) bool {
			rng := rand.New(rand.NewSource(seed))
			src := randomNumericExpr(rng, 3)

			av, bv, cv := float32(a%50), float32(b%50), float32(c%50)

			variable := mustCompile(layout, src)
			got, ok := evalCompiled(layout, variable, av, bv, cv)
			if !ok {
				return false
			}

			// Substitute the values as literals; the whole expression
			// folds to a single constant at compile time.
			substituted := src
			substituted = strings.ReplaceAll(substituted, "NumA", formatNum(av))
			substituted = strings.ReplaceAll(substituted, "NumB", formatNum(bv))
			substituted = strings.ReplaceAll(substituted, "NumC", formatNum(cv))

			folded := mustCompile(layout, substituted)
			if len(folded.Code) != 2 {
				return false
			}
			want, ok := evalCompiled(layout, folded, 0, 0, 0)
			return ok && got == want
		},
		gen.Int64(),
		gen.Int(),
		gen.Int(),
		gen.Int(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func formatNum(v float32) string {
	if v < 0 {
		return fmt.Sprintf("(0 - %v)", -v)
	}
	return fmt.Sprintf("%v", v)
}

