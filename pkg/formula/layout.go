package formula

import (
	"fmt"

	"github.com/venlark/ticktree/pkg/name"
)

type layoutInfo struct {
	typ  ExpType
	slot SlotIndex
}

// VariableLayout is the ordered schema of an agent's variables. Number
// and Name variables occupy two disjoint slot spaces, each assigned in
// insertion order from zero. A layout is immutable once the schema is
// set up and may be shared by reference.
type VariableLayout struct {
	entries     map[name.Name]layoutInfo
	numberCount SlotIndex
	nameCount   SlotIndex
}

// NewVariableLayout creates an empty layout.
func NewVariableLayout() *VariableLayout {
	return &VariableLayout{entries: make(map[name.Name]layoutInfo)}
}

// AddVariable registers a variable and returns its slot. Re-adding an
// existing variable with the same type returns the existing slot.
// Registering with a mismatched type, or with TypeBool, is a programming
// error and panics.
func (l *VariableLayout) AddVariable(n name.Name, typ ExpType) SlotIndex {
	if info, ok := l.entries[n]; ok {
		if info.typ != typ {
			panic(fmt.Sprintf("variable %q re-added as %v, previously %v", n.String(), typ, info.typ))
		}
		return info.slot
	}

	var slot SlotIndex
	switch typ {
	case TypeNumber:
		slot = l.numberCount
		l.numberCount++
	case TypeName:
		slot = l.nameCount
		l.nameCount++
	default:
		panic(fmt.Sprintf("variable %q has invalid type %v", n.String(), typ))
	}

	l.entries[n] = layoutInfo{typ: typ, slot: slot}
	return slot
}

// Exists reports whether the layout contains n.
func (l *VariableLayout) Exists(n name.Name) bool {
	_, ok := l.entries[n]
	return ok
}

// TypeOf returns the type of n, or TypeUninitialised if absent.
func (l *VariableLayout) TypeOf(n name.Name) ExpType {
	info, ok := l.entries[n]
	if !ok {
		return TypeUninitialised
	}
	return info.typ
}

// IndexOf returns the slot of n. The variable must exist.
func (l *VariableLayout) IndexOf(n name.Name) SlotIndex {
	info, ok := l.entries[n]
	if !ok {
		panic(fmt.Sprintf("variable %q not in layout", n.String()))
	}
	return info.slot
}

// NumberCount returns the number of Number slots.
func (l *VariableLayout) NumberCount() SlotIndex {
	return l.numberCount
}

// NameCount returns the number of Name slots.
func (l *VariableLayout) NameCount() SlotIndex {
	return l.nameCount
}

// VariablePack holds runtime values for one layout. A pack is owned by a
// single evaluator; the host may read and write it between ticks.
type VariablePack struct {
	layout  *VariableLayout
	numbers []float32
	names   []name.Name
}

// NewVariablePack creates a pack sized to layout, with every Number slot
// set to initNumber and every Name slot set to initName.
func NewVariablePack(layout *VariableLayout, initName name.Name, initNumber float32) *VariablePack {
	p := &VariablePack{
		layout:  layout,
		numbers: make([]float32, layout.NumberCount()),
		names:   make([]name.Name, layout.NameCount()),
	}
	for i := range p.numbers {
		p.numbers[i] = initNumber
	}
	for i := range p.names {
		p.names[i] = initName
	}
	return p
}

// Layout returns the schema this pack was built from.
func (p *VariablePack) Layout() *VariableLayout {
	return p.layout
}

// Number returns the value in a Number slot.
func (p *VariablePack) Number(slot SlotIndex) float32 {
	return p.numbers[slot]
}

// Name returns the value in a Name slot.
func (p *VariablePack) Name(slot SlotIndex) name.Name {
	return p.names[slot]
}

// SetNumber stores into a Number slot.
func (p *VariablePack) SetNumber(slot SlotIndex, v float32) {
	p.numbers[slot] = v
}

// SetName stores into a Name slot.
func (p *VariablePack) SetName(slot SlotIndex, v name.Name) {
	p.names[slot] = v
}

// NumberVar returns the value of a Number variable by name.
func (p *VariablePack) NumberVar(n name.Name) float32 {
	return p.numbers[p.layout.IndexOf(n)]
}

// NameVar returns the value of a Name variable by name.
func (p *VariablePack) NameVar(n name.Name) name.Name {
	return p.names[p.layout.IndexOf(n)]
}

// SetNumberVar stores a Number variable by name.
func (p *VariablePack) SetNumberVar(n name.Name, v float32) {
	p.numbers[p.layout.IndexOf(n)] = v
}

// SetNameVar stores a Name variable by name.
func (p *VariablePack) SetNameVar(n name.Name, v name.Name) {
	p.names[p.layout.IndexOf(n)] = v
}
