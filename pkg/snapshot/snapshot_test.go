package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

func haltedEngine(t *testing.T) (*vm.Engine, vm.Program) {
	t.Helper()
	eng, err := vm.NewEngine(vm.Config{MemorySize: 128})
	if err != nil {
		t.Fatal(err)
	}
	prog := vm.Program{
		vm.Load(1, 42),
		vm.Store(1, 16),
		vm.Push(1),
		vm.Cmp(1, 2),
		vm.Halt(),
	}
	if err := eng.LoadProgram(prog); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return eng, prog
}

func TestCaptureApplyRoundTrip(t *testing.T) {
	eng, prog := haltedEngine(t)
	img := Capture(eng, prog)

	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	fresh, err := vm.NewEngine(vm.Config{MemorySize: 16})
	if err != nil {
		t.Fatal(err)
	}
	restoredProg, err := loaded.Apply(fresh)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(restoredProg) != len(prog) {
		t.Fatalf("restored program has %d instructions, want %d", len(restoredProg), len(prog))
	}

	if v, _ := fresh.Register(1); v != 42 {
		t.Errorf("R1 = %d, want 42", v)
	}
	if fresh.MemorySize() != 128 {
		t.Errorf("memory size = %d, want 128 (resized to match the image)", fresh.MemorySize())
	}
	snap := fresh.DebugSnapshot()
	if snap.PC != 4 {
		t.Errorf("pc = %d, want 4", snap.PC)
	}
	if snap.CmpFlag != 1 {
		t.Errorf("cmp flag = %d, want 1", snap.CmpFlag)
	}
	if snap.StackDepth != 1 {
		t.Errorf("stack depth = %d, want 1", snap.StackDepth)
	}

	// Restored memory is intact and the restored program still runs.
	if err := fresh.LoadProgram(vm.Program{vm.LoadMem(2, 16), vm.Halt()}); err != nil {
		t.Fatal(err)
	}
	if err := fresh.Run(); err != nil {
		t.Fatal(err)
	}
	if v, _ := fresh.Register(2); v != 42 {
		t.Errorf("restored memory: R2 = %d, want 42", v)
	}
}

func TestCaptureWithoutProgram(t *testing.T) {
	eng, _ := haltedEngine(t)
	img := Capture(eng, nil)
	if img.Program != nil {
		t.Fatal("image carries a program, want none")
	}
	fresh, err := vm.NewEngine(vm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	prog, err := img.Apply(fresh)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if prog != nil {
		t.Error("Apply returned a program for a stateless image")
	}
}

func TestFileRoundTrip(t *testing.T) {
	eng, prog := haltedEngine(t)
	path := filepath.Join(t.TempDir(), "state.fesn")
	if err := SaveFile(path, Capture(eng, prog)); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	img, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if img.PC != 4 {
		t.Errorf("pc = %d, want 4", img.PC)
	}
}

func TestReadRejectsBadInput(t *testing.T) {
	eng, prog := haltedEngine(t)
	var buf bytes.Buffer
	if err := Write(&buf, Capture(eng, prog)); err != nil {
		t.Fatal(err)
	}
	valid := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:3]},
		{"bad magic", append([]byte("XXXX"), valid[4:]...)},
		{"future version", append(append([]byte{}, valid[:4]...), append([]byte{0, 99}, valid[6:]...)...)},
		{"corrupt body", valid[:8]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(bytes.NewReader(tt.data)); err == nil {
				t.Error("Read accepted corrupted input")
			}
		})
	}
}

func TestApplyRejectsBadRegisterCount(t *testing.T) {
	img := &Image{Registers: make([]uint32, 3)}
	eng, err := vm.NewEngine(vm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := img.Apply(eng); err == nil {
		t.Error("Apply accepted an image with the wrong register count")
	}
}
