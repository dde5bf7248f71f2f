// Package trace provides execution observers: a tracer that logs every
// instruction and a profiler that aggregates per-opcode statistics. Both
// implement vm.Observer and can be combined with Multi.
package trace

import (
	"github.com/tliron/commonlog"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

// Tracer logs each instruction boundary and memory access. It is meant for
// debugging program behavior; with no log backend configured it is inert.
type Tracer struct {
	log commonlog.Logger
}

// NewTracer creates a tracer logging under the given scope.
func NewTracer(scope string) *Tracer {
	return &Tracer{log: commonlog.GetLogger(scope)}
}

func (t *Tracer) BeginInstruction(s vm.Snapshot) {
	t.log.Debugf("pc=%04d flag=%+d sp=%d", s.PC, s.CmpFlag, s.StackDepth)
}

func (t *Tracer) EndInstruction(s vm.Snapshot) error {
	t.log.Debugf("pc=%04d done: %s", s.PC, s.LastInstruction)
	return nil
}

func (t *Tracer) RecordMemoryAccess(addr uint32, isWrite bool, size int, value uint32) {
	if isWrite {
		t.log.Debugf("mem write @%d size=%d value=%d", addr, size, value)
	} else {
		t.log.Debugf("mem read  @%d size=%d value=%d", addr, size, value)
	}
}

// Multi fans observer callbacks out to several observers in order. The
// first EndInstruction error aborts the run; later observers in the list
// still see BeginInstruction for the instruction that was aborted.
type Multi []vm.Observer

func (m Multi) BeginInstruction(s vm.Snapshot) {
	for _, o := range m {
		o.BeginInstruction(s)
	}
}

func (m Multi) EndInstruction(s vm.Snapshot) error {
	for _, o := range m {
		if err := o.EndInstruction(s); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordMemoryAccess(addr uint32, isWrite bool, size int, value uint32) {
	for _, o := range m {
		o.RecordMemoryAccess(addr, isWrite, size, value)
	}
}
