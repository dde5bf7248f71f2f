package vm

import "fmt"

// Opcode identifies a machine instruction. The numbering is part of the
// binary instruction encoding and must not be reordered.
type Opcode byte

const (
	// ========================================================================
	// Control (0-0)
	// ========================================================================

	OpHalt Opcode = 0 // Stop the fetch loop

	// ========================================================================
	// Register loads and arithmetic (1-7)
	// ========================================================================

	OpLoad Opcode = 1 // Rd = imm
	OpAdd  Opcode = 2 // Rd = Rs1 + Rs2, clamped to MaxUint32 on overflow
	OpSub  Opcode = 3 // Rd = Rs1 - Rs2, clamped to 0 on underflow
	OpMul  Opcode = 4 // Rd = Rs1 * Rs2, clamped to MaxUint32 on overflow
	OpDiv  Opcode = 5 // Rd = Rs1 / Rs2
	OpMod  Opcode = 6 // Rd = Rs1 % Rs2
	OpCmp  Opcode = 7 // cmp_flag = sign(Rs1 - Rs2)

	// ========================================================================
	// Jumps (8-13) - target is an instruction index, validated at dispatch
	// ========================================================================

	OpJmp Opcode = 8  // Unconditional jump
	OpJeq Opcode = 9  // Jump if cmp_flag == 0
	OpJne Opcode = 10 // Jump if cmp_flag != 0
	OpJgt Opcode = 11 // Jump if cmp_flag > 0
	OpJlt Opcode = 12 // Jump if cmp_flag < 0
	OpJge Opcode = 13 // Jump if cmp_flag >= 0

	// ========================================================================
	// Stack (14-15)
	// ========================================================================

	OpPush Opcode = 14 // Push Rs onto the stack
	OpPop  Opcode = 15 // Pop top of stack into Rd

	// ========================================================================
	// Memory (16-18)
	// ========================================================================

	OpStore   Opcode = 16 // memory[addr..addr+4] = Rs (little-endian)
	OpLoadMem Opcode = 17 // Rd = memory[addr..addr+4]
	OpMemcpy  Opcode = 18 // memmove(dest, src, len), len taken from Rlen

	// ========================================================================
	// Subroutines (19-20)
	// ========================================================================

	OpCall Opcode = 19 // Push pc+1 as return address, jump to addr
	OpRet  Opcode = 20 // Pop return address, resume there
)

// OperandRole describes how an instruction field is interpreted, for the
// disassembler and the assembler.
type OperandRole uint8

const (
	RoleNone    OperandRole = iota // Field unused
	RoleReg                        // Register index 0-15
	RoleImm                        // Immediate 32-bit value
	RoleAddr                       // Byte address into memory
	RoleTarget                     // Instruction index into the program
	RoleLenReg                     // Register whose value is a byte length
)

// OpcodeInfo provides metadata about each opcode for disassembly, assembly,
// and validation.
type OpcodeInfo struct {
	Name     string      // Mnemonic
	Dest     OperandRole // Interpretation of the dest_reg field
	Operand1 OperandRole // Interpretation of operand1
	Operand2 OperandRole // Interpretation of operand2
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpHalt: {"HALT", RoleNone, RoleNone, RoleNone},
	OpLoad: {"LOAD", RoleReg, RoleImm, RoleNone},

	OpAdd: {"ADD", RoleReg, RoleReg, RoleReg},
	OpSub: {"SUB", RoleReg, RoleReg, RoleReg},
	OpMul: {"MUL", RoleReg, RoleReg, RoleReg},
	OpDiv: {"DIV", RoleReg, RoleReg, RoleReg},
	OpMod: {"MOD", RoleReg, RoleReg, RoleReg},
	OpCmp: {"CMP", RoleNone, RoleReg, RoleReg},

	OpJmp: {"JMP", RoleNone, RoleTarget, RoleNone},
	OpJeq: {"JEQ", RoleNone, RoleTarget, RoleNone},
	OpJne: {"JNE", RoleNone, RoleTarget, RoleNone},
	OpJgt: {"JGT", RoleNone, RoleTarget, RoleNone},
	OpJlt: {"JLT", RoleNone, RoleTarget, RoleNone},
	OpJge: {"JGE", RoleNone, RoleTarget, RoleNone},

	OpPush: {"PUSH", RoleNone, RoleReg, RoleNone},
	OpPop:  {"POP", RoleReg, RoleNone, RoleNone},

	OpStore:   {"STORE", RoleNone, RoleReg, RoleAddr},
	OpLoadMem: {"LOAD_MEM", RoleReg, RoleAddr, RoleNone},
	OpMemcpy:  {"MEMCPY", RoleLenReg, RoleAddr, RoleAddr},

	OpCall: {"CALL", RoleNone, RoleTarget, RoleNone},
	OpRet:  {"RET", RoleNone, RoleNone, RoleNone},
}

// Info returns metadata for an opcode. Unknown opcodes get a synthetic
// UNKNOWN entry rather than an error; IsValid distinguishes them.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return op.Info().Name
}

// IsValid reports whether the opcode is part of the instruction set.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump reports whether this opcode is a conditional or unconditional jump.
func (op Opcode) IsJump() bool {
	return op >= OpJmp && op <= OpJge
}

// IsConditional reports whether this opcode consults the comparison flag.
func (op Opcode) IsConditional() bool {
	return op >= OpJeq && op <= OpJge
}

// OpcodeByName resolves a mnemonic to its opcode. Used by the assembler.
func OpcodeByName(name string) (Opcode, bool) {
	for op, info := range opcodeInfoTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}

// AllOpcodes returns every defined opcode, useful for testing that all
// opcodes have metadata and dispatch entries.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	return ops
}
