// Package vm implements the ferrite register machine.
//
// The machine executes a fixed instruction set against 16 general-purpose
// 32-bit registers, a bounded byte-addressable memory region, and a single
// growable operand stack that doubles as the call-return stack. Every
// operation bounds-checks its register indices and memory ranges before
// touching state, and arithmetic overflow is clamped to a defined value
// before the failure is reported, so a failed run always leaves the machine
// in an inspectable state.
//
// The package contains:
//   - Opcode enumeration and per-opcode metadata
//   - The fixed 10-byte instruction record and its binary codec
//   - The typed error taxonomy shared by every operation
//   - Machine state (registers, memory, stack, comparison flag)
//   - The fetch-execute engine with its Idle/Loaded/Running/Halted/Failed
//     state machine and observer hooks
//   - An execution-count driven hot-path instruction cache
//   - A disassembler
//
// Basic usage:
//
//	eng, err := vm.NewEngine(vm.Config{})
//	if err != nil { ... }
//	if err := eng.LoadProgram(program); err != nil { ... }
//	if err := eng.Run(); err != nil { ... }
//	sum, _ := eng.Register(3)
//
// The engine is single-threaded: Run blocks the calling goroutine until the
// program halts or an instruction fails, and no concurrent access to engine
// state is supported.
package vm
