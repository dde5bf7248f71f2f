package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// InstructionSize is the encoded size of one instruction in bytes:
// opcode (1) + dest_reg (1) + operand1 (4) + operand2 (4).
const InstructionSize = 10

// ProgramVersion is the current program container format version.
// Increment when making incompatible changes to the format.
const ProgramVersion uint16 = 1

// Magic bytes for program files: "FEPR" (FErrite PRogram).
var ProgramMagic = []byte{'F', 'E', 'P', 'R'}

// Instruction is the fixed-shape instruction record. Interpretation of the
// fields is opcode-dependent: Dest names a register for opcodes that write
// one (and the length register for MEMCPY), Operand1 and Operand2 carry
// register indices, immediates, byte addresses, or jump targets per the
// opcode metadata table.
type Instruction struct {
	Op       Opcode
	Dest     uint8
	Operand1 uint32
	Operand2 uint32
}

// Program is an ordered sequence of instructions. The engine borrows a
// Program for the duration of a load; it never copies or mutates it.
type Program []Instruction

// String renders the instruction in assembler form.
func (in Instruction) String() string {
	info := in.Op.Info()
	var parts []string
	field := func(role OperandRole, v uint32) {
		switch role {
		case RoleNone:
		case RoleReg, RoleLenReg:
			parts = append(parts, fmt.Sprintf("R%d", v))
		case RoleImm:
			parts = append(parts, fmt.Sprintf("%d", v))
		case RoleAddr:
			parts = append(parts, fmt.Sprintf("@%d", v))
		case RoleTarget:
			parts = append(parts, fmt.Sprintf("%d", v))
		}
	}
	field(info.Dest, uint32(in.Dest))
	field(info.Operand1, in.Operand1)
	field(info.Operand2, in.Operand2)
	if len(parts) == 0 {
		return info.Name
	}
	return info.Name + " " + strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Instruction constructors
// ---------------------------------------------------------------------------

// Halt stops the fetch loop.
func Halt() Instruction { return Instruction{Op: OpHalt} }

// Load sets register rd to the immediate value imm.
func Load(rd uint8, imm uint32) Instruction {
	return Instruction{Op: OpLoad, Dest: rd, Operand1: imm}
}

// Add computes rd = rs1 + rs2.
func Add(rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: OpAdd, Dest: rd, Operand1: uint32(rs1), Operand2: uint32(rs2)}
}

// Sub computes rd = rs1 - rs2.
func Sub(rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: OpSub, Dest: rd, Operand1: uint32(rs1), Operand2: uint32(rs2)}
}

// Mul computes rd = rs1 * rs2.
func Mul(rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: OpMul, Dest: rd, Operand1: uint32(rs1), Operand2: uint32(rs2)}
}

// Div computes rd = rs1 / rs2.
func Div(rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: OpDiv, Dest: rd, Operand1: uint32(rs1), Operand2: uint32(rs2)}
}

// Mod computes rd = rs1 % rs2.
func Mod(rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: OpMod, Dest: rd, Operand1: uint32(rs1), Operand2: uint32(rs2)}
}

// Cmp sets the comparison flag to sign(rs1 - rs2).
func Cmp(rs1, rs2 uint8) Instruction {
	return Instruction{Op: OpCmp, Operand1: uint32(rs1), Operand2: uint32(rs2)}
}

// Jmp jumps unconditionally to the instruction at index target.
func Jmp(target uint32) Instruction { return Instruction{Op: OpJmp, Operand1: target} }

// Jeq jumps to target if the comparison flag is zero.
func Jeq(target uint32) Instruction { return Instruction{Op: OpJeq, Operand1: target} }

// Jne jumps to target if the comparison flag is nonzero.
func Jne(target uint32) Instruction { return Instruction{Op: OpJne, Operand1: target} }

// Jgt jumps to target if the comparison flag is positive.
func Jgt(target uint32) Instruction { return Instruction{Op: OpJgt, Operand1: target} }

// Jlt jumps to target if the comparison flag is negative.
func Jlt(target uint32) Instruction { return Instruction{Op: OpJlt, Operand1: target} }

// Jge jumps to target if the comparison flag is non-negative.
func Jge(target uint32) Instruction { return Instruction{Op: OpJge, Operand1: target} }

// Push pushes the value of register rs onto the stack.
func Push(rs uint8) Instruction { return Instruction{Op: OpPush, Operand1: uint32(rs)} }

// Pop pops the top of the stack into register rd.
func Pop(rd uint8) Instruction { return Instruction{Op: OpPop, Dest: rd} }

// Store writes the 4-byte value of register rs to memory at addr.
func Store(rs uint8, addr uint32) Instruction {
	return Instruction{Op: OpStore, Operand1: uint32(rs), Operand2: addr}
}

// LoadMem reads a 4-byte value from memory at addr into register rd.
func LoadMem(rd uint8, addr uint32) Instruction {
	return Instruction{Op: OpLoadMem, Dest: rd, Operand1: addr}
}

// Memcpy copies R[lenReg] bytes from src to dest within memory, handling
// overlapping ranges like a safe move.
func Memcpy(lenReg uint8, dest, src uint32) Instruction {
	return Instruction{Op: OpMemcpy, Dest: lenReg, Operand1: dest, Operand2: src}
}

// Call pushes the return address and jumps to the instruction at addr.
func Call(addr uint32) Instruction { return Instruction{Op: OpCall, Operand1: addr} }

// Ret pops the return address and resumes there.
func Ret() Instruction { return Instruction{Op: OpRet} }

// ---------------------------------------------------------------------------
// Binary codec
// ---------------------------------------------------------------------------

// AppendBinary appends the fixed 10-byte encoding of the instruction.
// Operands are big-endian.
func (in Instruction) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(in.Op), in.Dest)
	buf = binary.BigEndian.AppendUint32(buf, in.Operand1)
	buf = binary.BigEndian.AppendUint32(buf, in.Operand2)
	return buf
}

// DecodeInstruction decodes one instruction record from data.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) < InstructionSize {
		return Instruction{}, newError(KindInvalidInstruction, "decode",
			fmt.Sprintf("truncated instruction: need %d bytes, got %d", InstructionSize, len(data)),
			"check that the program data was not cut short")
	}
	in := Instruction{
		Op:       Opcode(data[0]),
		Dest:     data[1],
		Operand1: binary.BigEndian.Uint32(data[2:6]),
		Operand2: binary.BigEndian.Uint32(data[6:10]),
	}
	if !in.Op.IsValid() {
		return Instruction{}, newError(KindInvalidInstruction, "decode",
			fmt.Sprintf("unknown opcode %d", data[0]),
			"the program was produced by an incompatible encoder")
	}
	return in, nil
}

// Serialize encodes the program to bytes for storage or transport.
// Format:
//
//	[magic:4] [version:2] [count:4] [instructions: count * 10 bytes]
func (p Program) Serialize() []byte {
	buf := make([]byte, 0, 10+len(p)*InstructionSize)
	buf = append(buf, ProgramMagic...)
	buf = binary.BigEndian.AppendUint16(buf, ProgramVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
	for _, in := range p {
		buf = in.AppendBinary(buf)
	}
	return buf
}

// DeserializeProgram decodes a program from its serialized form.
func DeserializeProgram(data []byte) (Program, error) {
	if len(data) < 10 {
		return nil, newError(KindInvalidInstruction, "deserialize",
			fmt.Sprintf("program header too short: %d bytes", len(data)),
			"check that the program data was not cut short")
	}
	if string(data[0:4]) != string(ProgramMagic) {
		return nil, newError(KindInvalidInstruction, "deserialize",
			fmt.Sprintf("invalid program magic %q", data[0:4]),
			"the file is not a ferrite program")
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version > ProgramVersion {
		return nil, newError(KindUnsupportedOperation, "deserialize",
			fmt.Sprintf("program version %d is newer than supported version %d", version, ProgramVersion),
			"re-encode the program with a matching tool version")
	}
	count := binary.BigEndian.Uint32(data[6:10])
	body := data[10:]
	if uint64(len(body)) < uint64(count)*InstructionSize {
		return nil, newError(KindInvalidInstruction, "deserialize",
			fmt.Sprintf("program body truncated: want %d instructions, have %d bytes", count, len(body)),
			"check that the program data was not cut short")
	}
	p := make(Program, count)
	for i := range p {
		in, err := DecodeInstruction(body[i*InstructionSize:])
		if err != nil {
			return nil, err
		}
		p[i] = in
	}
	return p, nil
}
