package formula

import (
	"github.com/venlark/ticktree/pkg/formula/opcode"
	"github.com/venlark/ticktree/pkg/name"
)

// ExpressionData is a compiled formula. It is immutable after
// compilation and may be shared by reference across evaluators.
//
// Code always holds an even number of words: each instruction is a pair.
// Word A packs opcode<<16 | result register; word B packs left<<16 |
// right operand.
type ExpressionData struct {
	ResultType  ExpType
	RegCount    SlotIndex
	Code        []uint32
	ConstFloats []float32
	ConstNames  []name.Name
}

// dataWriter accumulates an ExpressionData during code generation.
type dataWriter struct {
	data *ExpressionData
}

func newDataWriter() *dataWriter {
	return &dataWriter{data: &ExpressionData{}}
}

// addNumericConst interns value in the float constant table and returns
// its slot. The table is de-duplicated by value equality.
func (w *dataWriter) addNumericConst(value float32) SlotIndex {
	for i, v := range w.data.ConstFloats {
		if v == value {
			return SlotIndex(i)
		}
	}
	w.data.ConstFloats = append(w.data.ConstFloats, value)
	return SlotIndex(len(w.data.ConstFloats) - 1)
}

// addNameConst interns value in the name constant table and returns its
// slot. De-duplication is by handle identity.
func (w *dataWriter) addNameConst(value name.Name) SlotIndex {
	for i, v := range w.data.ConstNames {
		if v == value {
			return SlotIndex(i)
		}
	}
	w.data.ConstNames = append(w.data.ConstNames, value)
	return SlotIndex(len(w.data.ConstNames) - 1)
}

// emit appends one two-word instruction.
func (w *dataWriter) emit(op opcode.Op, resultReg, leftOperand, rightOperand SlotIndex) {
	wordA := uint32(op)<<16 | uint32(resultReg)
	wordB := uint32(leftOperand)<<16 | uint32(rightOperand)

	w.data.Code = append(w.data.Code, wordA, wordB)
}
