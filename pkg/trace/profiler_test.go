package trace

import (
	"strings"
	"testing"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

func profiledRun(t *testing.T, p *Profiler, prog vm.Program) *vm.Engine {
	t.Helper()
	eng, err := vm.NewEngine(vm.Config{MemorySize: 256, Observer: p})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.LoadProgram(prog); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return eng
}

func TestProfilerCountsOpcodes(t *testing.T) {
	p := NewProfiler()
	profiledRun(t, p, vm.Program{
		vm.Load(2, 1),  // step
		vm.Load(3, 4),  // limit
		vm.Add(1, 1, 2),
		vm.Cmp(1, 3),
		vm.Jlt(2),
		vm.Halt(),
	})
	if got := p.Count(vm.OpLoad); got != 2 {
		t.Errorf("LOAD count = %d, want 2", got)
	}
	if got := p.Count(vm.OpAdd); got != 4 {
		t.Errorf("ADD count = %d, want 4", got)
	}
	if got := p.Count(vm.OpJlt); got != 4 {
		t.Errorf("JLT count = %d, want 4", got)
	}
	if got := p.Count(vm.OpHalt); got != 1 {
		t.Errorf("HALT count = %d, want 1", got)
	}
	if got := p.Instructions(); got != 2+4+4+4+1 {
		t.Errorf("total = %d, want 15", got)
	}
}

func TestProfilerMemoryTraffic(t *testing.T) {
	p := NewProfiler()
	profiledRun(t, p, vm.Program{
		vm.Load(1, 42),
		vm.Store(1, 0),
		vm.LoadMem(2, 0),
		vm.LoadMem(3, 0),
		vm.Halt(),
	})
	if p.memWrites != 1 || p.bytesWritten != 4 {
		t.Errorf("writes = %d (%d bytes), want 1 (4 bytes)", p.memWrites, p.bytesWritten)
	}
	if p.memReads != 2 || p.bytesRead != 8 {
		t.Errorf("reads = %d (%d bytes), want 2 (8 bytes)", p.memReads, p.bytesRead)
	}
}

func TestProfilerTopN(t *testing.T) {
	p := NewProfiler()
	profiledRun(t, p, vm.Program{
		vm.Load(1, 1),
		vm.Load(2, 2),
		vm.Load(3, 3),
		vm.Add(4, 1, 2),
		vm.Halt(),
	})
	top := p.TopN(2)
	if len(top) != 2 {
		t.Fatalf("TopN(2) returned %d entries", len(top))
	}
	if top[0].Op != vm.OpLoad || top[0].Count != 3 {
		t.Errorf("top entry = %+v, want LOAD x3", top[0])
	}
	// ADD and HALT tie at 1; ADD has the lower opcode value.
	if top[1].Op != vm.OpAdd {
		t.Errorf("second entry = %+v, want ADD", top[1])
	}
}

func TestProfilerReport(t *testing.T) {
	p := NewProfiler()
	profiledRun(t, p, vm.Program{vm.Load(1, 5), vm.Halt()})
	report := p.Report()
	if !strings.Contains(report, p.RunID) {
		t.Error("report does not carry the run ID")
	}
	if !strings.Contains(report, "LOAD") || !strings.Contains(report, "HALT") {
		t.Errorf("report missing opcode lines:\n%s", report)
	}
	if !strings.Contains(report, "2 instructions") {
		t.Errorf("report missing instruction total:\n%s", report)
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	if NewProfiler().RunID == NewProfiler().RunID {
		t.Error("two profilers share a run ID")
	}
}

func TestMultiFansOut(t *testing.T) {
	p1 := NewProfiler()
	p2 := NewProfiler()
	tr := NewTracer("test.trace")
	eng, err := vm.NewEngine(vm.Config{MemorySize: 64, Observer: Multi{tr, p1, p2}})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.LoadProgram(vm.Program{vm.Load(1, 1), vm.Halt()}); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p1.Instructions() != 2 || p2.Instructions() != 2 {
		t.Errorf("fan-out counts = %d/%d, want 2/2", p1.Instructions(), p2.Instructions())
	}
}
