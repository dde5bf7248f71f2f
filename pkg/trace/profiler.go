package trace

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

// Profiler aggregates execution statistics per opcode: how many times each
// one ran, plus memory traffic totals. Each profiler carries a unique run
// ID so reports from different runs can be told apart.
type Profiler struct {
	RunID string

	counts       map[vm.Opcode]uint64
	instructions uint64
	memReads     uint64
	memWrites    uint64
	bytesRead    uint64
	bytesWritten uint64

	firstSeen time.Time
	lastSeen  time.Time
}

// NewProfiler creates an empty profiler with a fresh run ID.
func NewProfiler() *Profiler {
	return &Profiler{
		RunID:  uuid.NewString(),
		counts: make(map[vm.Opcode]uint64),
	}
}

func (p *Profiler) BeginInstruction(s vm.Snapshot) {
	if p.firstSeen.IsZero() {
		p.firstSeen = time.Now()
	}
}

func (p *Profiler) EndInstruction(s vm.Snapshot) error {
	p.lastSeen = time.Now()
	p.instructions++
	if op, ok := vm.OpcodeByName(opName(s.LastInstruction)); ok {
		p.counts[op]++
	}
	return nil
}

func (p *Profiler) RecordMemoryAccess(addr uint32, isWrite bool, size int, value uint32) {
	if isWrite {
		p.memWrites++
		p.bytesWritten += uint64(size)
	} else {
		p.memReads++
		p.bytesRead += uint64(size)
	}
}

// opName extracts the mnemonic from a rendered instruction.
func opName(rendered string) string {
	if i := strings.IndexByte(rendered, ' '); i >= 0 {
		return rendered[:i]
	}
	return rendered
}

// Instructions returns the total number of instructions profiled.
func (p *Profiler) Instructions() uint64 {
	return p.instructions
}

// Elapsed returns the wall time between the first and last observed
// instruction.
func (p *Profiler) Elapsed() time.Duration {
	if p.firstSeen.IsZero() {
		return 0
	}
	return p.lastSeen.Sub(p.firstSeen)
}

// Count returns how many times the given opcode executed.
func (p *Profiler) Count(op vm.Opcode) uint64 {
	return p.counts[op]
}

// OpcodeCount pairs an opcode with its execution count.
type OpcodeCount struct {
	Op    vm.Opcode
	Count uint64
}

// TopN returns the n most executed opcodes, most frequent first. Ties
// break on opcode order so the result is deterministic.
func (p *Profiler) TopN(n int) []OpcodeCount {
	all := make([]OpcodeCount, 0, len(p.counts))
	for op, c := range p.counts {
		all = append(all, OpcodeCount{Op: op, Count: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Op < all[j].Op
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Report renders a human-readable profile summary.
func (p *Profiler) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s: %d instructions in %s\n", p.RunID, p.instructions, p.Elapsed().Round(time.Microsecond))
	fmt.Fprintf(&sb, "memory: %d reads (%d bytes), %d writes (%d bytes)\n",
		p.memReads, p.bytesRead, p.memWrites, p.bytesWritten)
	for _, oc := range p.TopN(len(p.counts)) {
		pct := float64(oc.Count) * 100 / float64(p.instructions)
		fmt.Fprintf(&sb, "  %-10s %10d  %5.1f%%\n", oc.Op, oc.Count, pct)
	}
	return sb.String()
}
