package vm

import (
	"fmt"
	"math"
)

// dispatch decodes the instruction's opcode and executes the corresponding
// operation. Every operation validates its own operands before touching
// state, so an error return means state was mutated only where the contract
// says it is (the clamped arithmetic cases).
func (e *Engine) dispatch(in Instruction) *Error {
	switch in.Op {
	case OpHalt:
		e.running = false
		return nil
	case OpLoad:
		return e.state.setReg("LOAD", uint32(in.Dest), in.Operand1)
	case OpAdd, OpSub, OpMul:
		return e.execArith(in)
	case OpDiv, OpMod:
		return e.execDivMod(in)
	case OpCmp:
		return e.execCmp(in)
	case OpJmp, OpJeq, OpJne, OpJgt, OpJlt, OpJge:
		return e.execJump(in)
	case OpPush:
		return e.execPush(in)
	case OpPop:
		return e.execPop(in)
	case OpStore:
		return e.execStore(in)
	case OpLoadMem:
		return e.execLoadMem(in)
	case OpMemcpy:
		return e.execMemcpy(in)
	case OpCall:
		return e.execCall(in)
	case OpRet:
		return e.execRet(in)
	default:
		return newError(KindInvalidInstruction, "dispatch",
			fmt.Sprintf("unknown opcode %d", byte(in.Op)),
			"the program was produced by an incompatible encoder")
	}
}

// execArith handles ADD, SUB, and MUL. Overflow clamps the destination to
// the representable extreme and underflow clamps it to zero; the write
// happens before the failure is reported so callers observe a defined state.
func (e *Engine) execArith(in Instruction) *Error {
	op := in.Op.String()
	a, err := e.state.reg(op, "operand1", in.Operand1)
	if err != nil {
		return err
	}
	b, err := e.state.reg(op, "operand2", in.Operand2)
	if err != nil {
		return err
	}
	if uint32(in.Dest) >= NumRegisters {
		return errInvalidRegister(op, "destination", uint32(in.Dest))
	}

	switch in.Op {
	case OpAdd:
		sum := uint64(a) + uint64(b)
		if sum > math.MaxUint32 {
			e.state.Registers[in.Dest] = math.MaxUint32
			return newError(KindIntegerOverflow, op,
				fmt.Sprintf("%d + %d exceeds the 32-bit range", a, b),
				"the destination register was clamped to MaxUint32")
		}
		e.state.Registers[in.Dest] = uint32(sum)
	case OpSub:
		if b > a {
			e.state.Registers[in.Dest] = 0
			return newError(KindIntegerUnderflow, op,
				fmt.Sprintf("%d - %d underflows", a, b),
				"the destination register was clamped to 0")
		}
		e.state.Registers[in.Dest] = a - b
	case OpMul:
		prod := uint64(a) * uint64(b)
		if prod > math.MaxUint32 {
			e.state.Registers[in.Dest] = math.MaxUint32
			return newError(KindIntegerOverflow, op,
				fmt.Sprintf("%d * %d exceeds the 32-bit range", a, b),
				"the destination register was clamped to MaxUint32")
		}
		e.state.Registers[in.Dest] = uint32(prod)
	}
	return nil
}

// execDivMod handles DIV and MOD. A zero divisor reports DivisionByZero and
// never writes the destination register.
func (e *Engine) execDivMod(in Instruction) *Error {
	op := in.Op.String()
	a, err := e.state.reg(op, "operand1", in.Operand1)
	if err != nil {
		return err
	}
	b, err := e.state.reg(op, "operand2", in.Operand2)
	if err != nil {
		return err
	}
	if uint32(in.Dest) >= NumRegisters {
		return errInvalidRegister(op, "destination", uint32(in.Dest))
	}
	if b == 0 {
		return errDivisionByZero(op)
	}
	if in.Op == OpDiv {
		e.state.Registers[in.Dest] = a / b
	} else {
		e.state.Registers[in.Dest] = a % b
	}
	return nil
}

func (e *Engine) execCmp(in Instruction) *Error {
	a, err := e.state.reg("CMP", "operand1", in.Operand1)
	if err != nil {
		return err
	}
	b, err := e.state.reg("CMP", "operand2", in.Operand2)
	if err != nil {
		return err
	}
	switch {
	case a < b:
		e.state.CmpFlag = -1
	case a > b:
		e.state.CmpFlag = 1
	default:
		e.state.CmpFlag = 0
	}
	return nil
}

// execJump validates the target before mutating pc, then applies the jump
// when the flag condition holds.
func (e *Engine) execJump(in Instruction) *Error {
	target := in.Operand1
	if target >= uint32(len(e.program)) {
		return errInvalidTarget(in.Op.String(), target, len(e.program))
	}

	taken := false
	switch in.Op {
	case OpJmp:
		taken = true
	case OpJeq:
		taken = e.state.CmpFlag == 0
	case OpJne:
		taken = e.state.CmpFlag != 0
	case OpJgt:
		taken = e.state.CmpFlag > 0
	case OpJlt:
		taken = e.state.CmpFlag < 0
	case OpJge:
		taken = e.state.CmpFlag >= 0
	}
	if taken {
		e.state.PC = int(target)
		e.jumped = true
	}
	return nil
}

func (e *Engine) execPush(in Instruction) *Error {
	v, err := e.state.reg("PUSH", "operand1", in.Operand1)
	if err != nil {
		return err
	}
	e.state.push(v)
	return nil
}

func (e *Engine) execPop(in Instruction) *Error {
	if uint32(in.Dest) >= NumRegisters {
		return errInvalidRegister("POP", "destination", uint32(in.Dest))
	}
	v, err := e.state.pop("POP")
	if err != nil {
		return err
	}
	e.state.Registers[in.Dest] = v
	return nil
}

func (e *Engine) execStore(in Instruction) *Error {
	v, err := e.state.reg("STORE", "operand1", in.Operand1)
	if err != nil {
		return err
	}
	addr := in.Operand2
	if err := e.state.checkRange("STORE", addr, 4); err != nil {
		return err
	}
	e.state.storeWord(addr, v)
	e.observer.RecordMemoryAccess(addr, true, 4, v)
	return nil
}

func (e *Engine) execLoadMem(in Instruction) *Error {
	if uint32(in.Dest) >= NumRegisters {
		return errInvalidRegister("LOAD_MEM", "destination", uint32(in.Dest))
	}
	addr := in.Operand1
	if err := e.state.checkRange("LOAD_MEM", addr, 4); err != nil {
		return err
	}
	v := e.state.loadWord(addr)
	e.state.Registers[in.Dest] = v
	e.observer.RecordMemoryAccess(addr, false, 4, v)
	return nil
}

// execMemcpy copies R[len] bytes from the source to the destination
// address, copying forward when dest < src and backward when dest > src so
// overlapping ranges behave like a safe move.
func (e *Engine) execMemcpy(in Instruction) *Error {
	length, err := e.state.reg("MEMCPY", "length register", uint32(in.Dest))
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	dest, src := in.Operand1, in.Operand2
	if err := e.state.checkRange("MEMCPY", dest, length); err != nil {
		return err
	}
	if err := e.state.checkRange("MEMCPY", src, length); err != nil {
		return err
	}
	mem := e.state.Memory
	switch {
	case dest < src:
		for i := uint32(0); i < length; i++ {
			mem[dest+i] = mem[src+i]
		}
	case dest > src:
		for i := length; i > 0; i-- {
			mem[dest+i-1] = mem[src+i-1]
		}
	}
	return nil
}

func (e *Engine) execCall(in Instruction) *Error {
	target := in.Operand1
	if target >= uint32(len(e.program)) {
		return errInvalidTarget("CALL", target, len(e.program))
	}
	e.state.push(uint32(e.state.PC + 1))
	e.state.PC = int(target)
	e.jumped = true
	return nil
}

func (e *Engine) execRet(in Instruction) *Error {
	ra, err := e.state.pop("RET")
	if err != nil {
		return err
	}
	if ra > uint32(len(e.program)) {
		return errInvalidTarget("RET", ra, len(e.program))
	}
	e.state.PC = int(ra)
	e.jumped = true
	return nil
}
