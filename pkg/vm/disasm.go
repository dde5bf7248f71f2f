package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable listing with a name header.
func (p Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; ferrite program v%d, %d instructions\n", ProgramVersion, len(p)))

	// Collect jump targets so the listing can mark them.
	targets := make(map[uint32]bool)
	for _, in := range p {
		if in.Op.IsJump() || in.Op == OpCall {
			targets[in.Operand1] = true
		}
	}

	for pc, in := range p {
		marker := " "
		if targets[uint32(pc)] {
			marker = ">"
		}
		sb.WriteString(fmt.Sprintf("%s %04d  %s\n", marker, pc, in.String()))
	}
	return sb.String()
}
