package vm

import (
	"encoding/binary"
	"fmt"
)

// NumRegisters is the size of the general-purpose register file.
const NumRegisters = 16

// DefaultMemorySize is the default size of the byte-addressable memory
// region (64 KiB).
const DefaultMemorySize = 65536

// MachineState is the mutable data the engine operates on. It is owned
// exclusively by one Engine and mutated only by instruction handlers during
// dispatch. Registers, memory, and stack deliberately survive program
// reloads; only the program counter is reset by a load.
type MachineState struct {
	Registers [NumRegisters]uint32
	Memory    []byte
	Stack     []uint32
	SP        int  // Logical stack depth; len(Stack) is authoritative
	PC        int  // Index of the current instruction
	CmpFlag   int8 // Tri-state result of the last CMP: -1, 0, or +1
}

// newMachineState allocates zeroed machine state with the given memory size.
func newMachineState(memorySize int) *MachineState {
	return &MachineState{
		Memory: make([]byte, memorySize),
		Stack:  make([]uint32, 0, 64),
	}
}

// reg reads a register after validating the index.
func (s *MachineState) reg(op, operand string, index uint32) (uint32, *Error) {
	if index >= NumRegisters {
		return 0, errInvalidRegister(op, operand, index)
	}
	return s.Registers[index], nil
}

// setReg writes a register after validating the index.
func (s *MachineState) setReg(op string, index uint32, value uint32) *Error {
	if index >= NumRegisters {
		return errInvalidRegister(op, "destination", index)
	}
	s.Registers[index] = value
	return nil
}

// push appends a value to the stack.
func (s *MachineState) push(v uint32) {
	s.Stack = append(s.Stack, v)
	s.SP++
}

// pop removes and returns the top of the stack.
func (s *MachineState) pop(op string) (uint32, *Error) {
	if len(s.Stack) == 0 {
		return 0, errStackUnderflow(op)
	}
	v := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	s.SP--
	return v, nil
}

// checkRange validates that [addr, addr+size) lies inside memory. The
// arithmetic is done in 64 bits so addr+size cannot wrap.
func (s *MachineState) checkRange(op string, addr, size uint32) *Error {
	if uint64(addr)+uint64(size) > uint64(len(s.Memory)) {
		return errMemoryRange(op, addr, size, len(s.Memory))
	}
	return nil
}

// storeWord writes a 32-bit value at addr in little-endian order.
// The caller must have bounds-checked the range.
func (s *MachineState) storeWord(addr uint32, v uint32) {
	binary.LittleEndian.PutUint32(s.Memory[addr:addr+4], v)
}

// loadWord reads a 32-bit little-endian value at addr.
// The caller must have bounds-checked the range.
func (s *MachineState) loadWord(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(s.Memory[addr : addr+4])
}

// Snapshot is a read-only view of engine state, safe to take in any engine
// state. Observers receive it around every dispatch.
type Snapshot struct {
	PC              int
	CmpFlag         int8
	StackDepth      int
	Registers       [NumRegisters]uint32
	LastInstruction string
}

// String renders a compact one-line summary of the snapshot.
func (s Snapshot) String() string {
	return fmt.Sprintf("pc=%d cmp=%d depth=%d last=%q", s.PC, s.CmpFlag, s.StackDepth, s.LastInstruction)
}
