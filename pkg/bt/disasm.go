package bt

import (
	"fmt"
	"strings"
)

// Disassemble renders compiled bytecode as one instruction per line,
// for debug logging and tests. Jump-table data words are listed under
// their JUMP_TABLE instruction.
func Disassemble(rt *RuntimeData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "addr  high   low  instr\n")
	fmt.Fprintf(&b, "----  ----  ----  -----\n")

	line := func(ip int, word uint32, detail string) {
		fmt.Fprintf(&b, "%4d %5d %5d  %s\n", ip, word>>16, word&0xffff, detail)
	}

	for ip := 0; ip < len(rt.code); ip++ {
		word := rt.code[ip]
		op, operand := unpackWord(word)

		switch op {
		case OpIndicateNodeStart:
			line(ip, word, op.String()+" "+rt.nodeNames[operand].String())

		case OpSetFail, OpSetSuccess:
			line(ip, word, op.String())

		case OpStoreSeqIdx, OpCondStoreSeqIdx:
			line(ip, word, fmt.Sprintf("%s seq=%d", op, operand))
			ip++
			line(ip, rt.code[ip], "  value to store")

		case OpEvalExpr:
			line(ip, word, fmt.Sprintf("%s expr=%d", op, operand))

		case OpExecBehaviour:
			line(ip, word, fmt.Sprintf("%s spec=%d", op, operand))

		case OpJumpTable:
			line(ip, word, fmt.Sprintf("%s seq=%d", op, operand))
			for i := uint16(0); i < rt.seqChildCounts[operand]; i++ {
				ip++
				line(ip, rt.code[ip], "  jump target")
			}

		case OpJumpNotFail, OpJumpNotSuccess:
			line(ip, word, fmt.Sprintf("%s addr=%d", op, operand))

		default:
			line(ip, word, "INVALID")
		}
	}

	return b.String()
}
