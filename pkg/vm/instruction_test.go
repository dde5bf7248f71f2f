package vm

import (
	"math"
	"testing"
)

func TestInstructionCodecRoundTrip(t *testing.T) {
	prog := Program{
		Halt(),
		Load(15, math.MaxUint32),
		Add(3, 1, 2),
		Div(0, 14, 15),
		Cmp(1, 2),
		Jge(1),
		Push(7),
		Pop(8),
		Store(1, 4096),
		LoadMem(2, 0),
		Memcpy(5, 128, 256),
		Call(2),
		Ret(),
	}
	data := prog.Serialize()
	wantLen := 10 + len(prog)*InstructionSize
	if len(data) != wantLen {
		t.Fatalf("serialized length = %d, want %d", len(data), wantLen)
	}

	got, err := DeserializeProgram(data)
	if err != nil {
		t.Fatalf("DeserializeProgram failed: %v", err)
	}
	if len(got) != len(prog) {
		t.Fatalf("decoded %d instructions, want %d", len(got), len(prog))
	}
	for i := range prog {
		if got[i] != prog[i] {
			t.Errorf("instruction %d: got %v, want %v", i, got[i], prog[i])
		}
	}
}

func TestDeserializeRejectsBadInput(t *testing.T) {
	valid := Program{Halt(), Load(1, 5)}.Serialize()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func(b []byte) []byte { return nil }},
		{"short header", func(b []byte) []byte { return b[:6] }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"future version", func(b []byte) []byte { b[5] = 99; return b }},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-3] }},
		{"unknown opcode", func(b []byte) []byte { b[10] = 0xFF; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), valid...)
			if _, err := DeserializeProgram(tt.mutate(data)); err == nil {
				t.Error("DeserializeProgram accepted corrupted input")
			}
		})
	}
}

func TestDecodeInstructionTruncated(t *testing.T) {
	data := Halt().AppendBinary(nil)
	if _, err := DecodeInstruction(data[:InstructionSize-1]); err == nil {
		t.Error("DecodeInstruction accepted a truncated record")
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{Halt(), "HALT"},
		{Load(1, 500), "LOAD R1, 500"},
		{Add(3, 1, 2), "ADD R3, R1, R2"},
		{Cmp(1, 2), "CMP R1, R2"},
		{Jlt(7), "JLT 7"},
		{Push(4), "PUSH R4"},
		{Pop(5), "POP R5"},
		{Store(1, 64), "STORE R1, @64"},
		{LoadMem(2, 64), "LOAD_MEM R2, @64"},
		{Memcpy(5, 0, 128), "MEMCPY R5, @0, @128"},
		{Call(9), "CALL 9"},
		{Ret(), "RET"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDisassembleMarksTargets(t *testing.T) {
	prog := Program{
		Load(1, 0),
		Jmp(3),
		Halt(),
		Halt(),
	}
	listing := prog.DisassembleWithName("demo")
	if want := "; === demo ==="; !containsLine(listing, want) {
		t.Errorf("listing missing header %q:\n%s", want, listing)
	}
	if want := "> 0003  HALT"; !containsLine(listing, want) {
		t.Errorf("listing missing marked target %q:\n%s", want, listing)
	}
	if want := "  0002  HALT"; !containsLine(listing, want) {
		t.Errorf("listing missing unmarked line %q:\n%s", want, listing)
	}
}

func containsLine(s, line string) bool {
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] != '\n' {
			i++
		}
		if s[:i] == line {
			return true
		}
		if i == len(s) {
			break
		}
		s = s[i+1:]
	}
	return false
}
