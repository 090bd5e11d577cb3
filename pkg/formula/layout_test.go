package formula

import (
	"testing"

	"github.com/venlark/ticktree/pkg/name"
)

func TestLayoutSlotAssignment(t *testing.T) {
	layout := NewVariableLayout()

	// The two type spaces are indexed independently, in insertion order.
	if got := layout.AddVariable(name.New("a"), TypeNumber); got != 0 {
		t.Errorf("first Number slot = %d, want 0", got)
	}
	if got := layout.AddVariable(name.New("n"), TypeName); got != 0 {
		t.Errorf("first Name slot = %d, want 0", got)
	}
	if got := layout.AddVariable(name.New("b"), TypeNumber); got != 1 {
		t.Errorf("second Number slot = %d, want 1", got)
	}
	if layout.NumberCount() != 2 || layout.NameCount() != 1 {
		t.Errorf("counts = %d/%d, want 2/1", layout.NumberCount(), layout.NameCount())
	}
}

func TestLayoutReAdd(t *testing.T) {
	layout := NewVariableLayout()
	first := layout.AddVariable(name.New("a"), TypeNumber)

	// Matching re-add is a no-op and returns the original slot.
	if got := layout.AddVariable(name.New("a"), TypeNumber); got != first {
		t.Errorf("re-add returned slot %d, want %d", got, first)
	}
	if layout.NumberCount() != 1 {
		t.Errorf("NumberCount = %d, want 1", layout.NumberCount())
	}
}

func TestLayoutTypeMismatchPanics(t *testing.T) {
	layout := NewVariableLayout()
	layout.AddVariable(name.New("a"), TypeNumber)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on mismatched re-add")
		}
	}()
	layout.AddVariable(name.New("a"), TypeName)
}

func TestLayoutBoolVariablePanics(t *testing.T) {
	layout := NewVariableLayout()

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on a Bool variable")
		}
	}()
	layout.AddVariable(name.New("flag"), TypeBool)
}

func TestPackInitialValues(t *testing.T) {
	layout := NewVariableLayout()
	layout.AddVariable(name.New("a"), TypeNumber)
	layout.AddVariable(name.New("b"), TypeNumber)
	layout.AddVariable(name.New("n"), TypeName)

	idle := name.New("idle")
	pack := NewVariablePack(layout, idle, 7)

	if pack.Number(0) != 7 || pack.Number(1) != 7 {
		t.Error("Number slots not filled with the init value")
	}
	if pack.Name(0) != idle {
		t.Error("Name slot not filled with the init value")
	}
	if pack.Layout() != layout {
		t.Error("pack does not reference its layout")
	}
}
