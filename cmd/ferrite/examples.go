package main

import "github.com/ferrite-vm/ferrite/pkg/vm"

// Built-in example programs, mostly useful for demos and smoke testing a
// build without writing assembly first.

var exampleNames = []string{"arith", "loop", "subroutine", "memcpy"}

var exampleDescriptions = map[string]string{
	"arith":      "load two constants, add them, halt",
	"loop":       "count to 100000 with CMP/JLT (hot enough to exercise the path cache)",
	"subroutine": "CALL/RET with arguments passed on the stack",
	"memcpy":     "store words, then move an overlapping block",
}

var examplePrograms = map[string]vm.Program{
	"arith": {
		vm.Load(1, 5),
		vm.Load(2, 10),
		vm.Add(3, 1, 2),
		vm.Halt(),
	},

	"loop": {
		vm.Load(2, 1),      // 0: step
		vm.Load(3, 100000), // 1: limit
		vm.Add(1, 1, 2),    // 2: i += step
		vm.Cmp(1, 3),       // 3
		vm.Jlt(2),          // 4
		vm.Halt(),          // 5
	},

	// Doubles the stacked argument. CALL pushes the return address on the
	// shared stack, so the callee saves it in R15 before reaching the
	// argument and restores it before RET.
	"subroutine": {
		vm.Load(1, 21),  // 0
		vm.Push(1),      // 1: argument
		vm.Call(5),      // 2
		vm.Pop(3),       // 3: result
		vm.Halt(),       // 4
		vm.Pop(15),      // 5: return address
		vm.Pop(4),       // 6: argument
		vm.Add(4, 4, 4), // 7
		vm.Push(4),      // 8: result
		vm.Push(15),     // 9: restore return address
		vm.Ret(),        // 10
	},

	"memcpy": {
		vm.Load(1, 0x04030201), // 0
		vm.Store(1, 0),         // 1
		vm.Load(1, 0x08070605), // 2
		vm.Store(1, 4),         // 3
		vm.Load(5, 8),          // 4: copy length
		vm.Memcpy(5, 16, 0),    // 5
		vm.LoadMem(2, 16),      // 6
		vm.LoadMem(3, 20),      // 7
		vm.Halt(),              // 8
	},
}
