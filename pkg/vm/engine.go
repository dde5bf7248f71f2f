package vm

import (
	"fmt"
)

// EngineState tracks the engine lifecycle.
type EngineState int

const (
	StateIdle    EngineState = iota // No program loaded
	StateLoaded                     // Program set, pc = 0
	StateRunning                    // Inside the fetch loop
	StateHalted                     // HALT executed or pc ran off the end
	StateFailed                     // An instruction failure propagated out
)

// String returns a human-readable state name.
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("EngineState(%d)", int(s))
	}
}

// Observer receives execution events. Implementations must treat the
// snapshot as read-only; they see engine state but may not influence it.
// The zero observer (nil) is replaced with a no-op.
type Observer interface {
	// BeginInstruction is called immediately before each dispatch.
	BeginInstruction(s Snapshot)
	// EndInstruction is called after each successful dispatch. A non-nil
	// error aborts the run.
	EndInstruction(s Snapshot) error
	// RecordMemoryAccess is called by STORE and LOAD_MEM after a successful
	// bounds-checked access.
	RecordMemoryAccess(addr uint32, isWrite bool, size int, value uint32)
}

// nopObserver is the default observer; it ignores everything.
type nopObserver struct{}

func (nopObserver) BeginInstruction(Snapshot)                     {}
func (nopObserver) EndInstruction(Snapshot) error                 { return nil }
func (nopObserver) RecordMemoryAccess(uint32, bool, int, uint32)  {}

// Config carries engine construction options.
type Config struct {
	// MemorySize is the size of the byte-addressable region in bytes.
	// Zero selects the default of 64 KiB.
	MemorySize int
	// HotThreshold is the execution count above which an instruction is
	// promoted into the hot-path cache. Zero selects the default of 1000.
	HotThreshold uint64
	// Observer receives pre/post-instruction and memory-access events.
	// Nil disables instrumentation.
	Observer Observer
}

// Engine owns machine state and drives the fetch-execute loop. An Engine is
// exclusively owned by one goroutine for its entire lifetime; none of its
// methods are safe for concurrent use.
type Engine struct {
	state   *MachineState
	program Program
	status  EngineState

	running bool // Loop condition; cleared by HALT
	jumped  bool // Set when an instruction overrode pc this step

	hot          *hotPathCache
	hotThreshold uint64
	observer     Observer

	lastInstruction Instruction
	hasLast         bool
}

// NewEngine creates an engine with zeroed registers, zeroed memory of the
// configured size, and an empty stack.
func NewEngine(cfg Config) (*Engine, error) {
	size := cfg.MemorySize
	if size == 0 {
		size = DefaultMemorySize
	}
	if size < 0 {
		return nil, newError(KindInvalidConfiguration, "init",
			fmt.Sprintf("memory size %d is negative", size),
			"configure a positive memory size")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	log.Debugf("engine created: memory=%d bytes", size)
	return &Engine{
		state:        newMachineState(size),
		status:       StateIdle,
		observer:     obs,
		hotThreshold: cfg.HotThreshold,
	}, nil
}

// LoadProgram prepares a program for execution. The engine borrows the
// program; callers must not mutate it until Run returns. Loading resets the
// program counter and the hot-path statistics but deliberately preserves
// registers, memory, and stack contents from any previous run.
func (e *Engine) LoadProgram(p Program) error {
	if e.status == StateRunning {
		return newError(KindInvalidFunctionCall, "loadProgram",
			"cannot load a program while one is running",
			"wait for Run to return before loading")
	}
	if len(p) == 0 {
		return newError(KindInvalidInstruction, "loadProgram",
			"program is empty",
			"load at least one instruction")
	}
	e.program = p
	e.state.PC = 0
	e.jumped = false
	e.running = false
	e.hasLast = false
	e.hot = newHotPathCache(len(p), e.hotThreshold)
	e.status = StateLoaded
	log.Debugf("program loaded: %d instructions", len(p))
	return nil
}

// Run executes the loaded program until HALT, until the program counter
// runs off the end, or until the first instruction failure. It blocks the
// calling goroutine; there is no suspension or cancellation mid-run.
func (e *Engine) Run() error {
	if e.status != StateLoaded {
		return newError(KindInvalidFunctionCall, "run",
			fmt.Sprintf("engine is %s, not loaded", e.status),
			"call LoadProgram before Run")
	}
	e.status = StateRunning
	e.running = true

	for e.running && e.state.PC < len(e.program) {
		pc := e.state.PC
		in := e.fetch(pc)

		e.observer.BeginInstruction(e.snapshot())

		if err := e.dispatch(in); err != nil {
			e.status = StateFailed
			e.lastInstruction = in
			e.hasLast = true
			return err.WithLocation(pc, in)
		}

		// Exactly one increment per dispatched instruction.
		e.hot.record(pc)
		e.lastInstruction = in
		e.hasLast = true

		if err := e.observer.EndInstruction(e.snapshot()); err != nil {
			e.status = StateFailed
			return fmt.Errorf("observer aborted run at pc=%d: %w", pc, err)
		}

		// HALT leaves pc pointing at itself.
		if !e.running {
			break
		}

		if e.jumped {
			e.jumped = false
		} else {
			e.state.PC++
		}

		if e.state.PC%MaintenanceInterval == 0 {
			e.hot.maintain(e.program)
		}
	}

	e.status = StateHalted
	return nil
}

// fetch returns the instruction at pc, consulting the hot-path cache first.
// Cache hits return the same instruction value; the cache is never allowed
// to change semantics.
func (e *Engine) fetch(pc int) Instruction {
	if in := e.hot.lookup(pc); in != nil {
		return *in
	}
	return e.program[pc]
}

// State returns the engine lifecycle state.
func (e *Engine) State() EngineState {
	return e.status
}

// Register returns the value of register index.
func (e *Engine) Register(index uint32) (uint32, error) {
	if index >= NumRegisters {
		return 0, errInvalidRegister("getRegister", "index", index)
	}
	return e.state.Registers[index], nil
}

// MemorySize returns the size of the memory region in bytes.
func (e *Engine) MemorySize() int {
	return len(e.state.Memory)
}

// DebugSnapshot returns a read-only view of the machine, safe to call in
// any engine state.
func (e *Engine) DebugSnapshot() Snapshot {
	return e.snapshot()
}

// HotPathStats summarizes the hot-path cache for the current program.
func (e *Engine) HotPathStats() HotPathStats {
	if e.hot == nil {
		return HotPathStats{}
	}
	return e.hot.stats()
}

// ExecutionCount returns how many times the instruction at pc has been
// dispatched since the program was loaded.
func (e *Engine) ExecutionCount(pc int) uint64 {
	if e.hot == nil {
		return 0
	}
	return e.hot.executionCount(pc)
}

func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		PC:         e.state.PC,
		CmpFlag:    e.state.CmpFlag,
		StackDepth: len(e.state.Stack),
		Registers:  e.state.Registers,
	}
	if e.hasLast {
		s.LastInstruction = e.lastInstruction.String()
	}
	return s
}

// ---------------------------------------------------------------------------
// Whole-machine image for snapshot save/restore
// ---------------------------------------------------------------------------

// MachineImage is a full copy of machine state, used by the snapshot layer
// to persist and restore a machine between runs.
type MachineImage struct {
	Registers [NumRegisters]uint32
	Memory    []byte
	Stack     []uint32
	PC        int
	CmpFlag   int8
}

// Dump copies the full machine state into an image.
func (e *Engine) Dump() MachineImage {
	img := MachineImage{
		Registers: e.state.Registers,
		Memory:    make([]byte, len(e.state.Memory)),
		Stack:     make([]uint32, len(e.state.Stack)),
		PC:        e.state.PC,
		CmpFlag:   e.state.CmpFlag,
	}
	copy(img.Memory, e.state.Memory)
	copy(img.Stack, e.state.Stack)
	return img
}

// Restore replaces machine state with the contents of an image. The memory
// region is resized to match the image. Restoring mid-run is rejected.
func (e *Engine) Restore(img MachineImage) error {
	if e.status == StateRunning {
		return newError(KindInvalidFunctionCall, "restore",
			"cannot restore state while a program is running",
			"wait for Run to return before restoring")
	}
	e.state.Registers = img.Registers
	e.state.Memory = make([]byte, len(img.Memory))
	copy(e.state.Memory, img.Memory)
	e.state.Stack = make([]uint32, len(img.Stack))
	copy(e.state.Stack, img.Stack)
	e.state.SP = len(img.Stack)
	e.state.PC = img.PC
	e.state.CmpFlag = img.CmpFlag
	return nil
}
