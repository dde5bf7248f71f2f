// Package snapshot persists and restores machine state. A snapshot captures
// the full machine image (registers, memory, stack, pc, comparison flag)
// plus the serialized program, so a run can be resumed or inspected later.
//
// The on-disk format is a 6-byte header (magic "FESN" plus a big-endian
// format version) followed by a canonical CBOR encoding of the image.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

var log = commonlog.GetLogger("ferrite.snapshot")

// Magic identifies a snapshot file: "FESN" (FErrite SNapshot).
var Magic = []byte{'F', 'E', 'S', 'N'}

// Version is the current snapshot format version.
const Version uint16 = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is the serializable form of a stopped machine.
type Image struct {
	SavedAt   time.Time `cbor:"saved_at"`
	Registers []uint32  `cbor:"registers"`
	Memory    []byte    `cbor:"memory"`
	Stack     []uint32  `cbor:"stack"`
	PC        int       `cbor:"pc"`
	CmpFlag   int8      `cbor:"cmp_flag"`
	Program   []byte    `cbor:"program,omitempty"`
}

// Capture builds an image from an engine and, optionally, the program it
// was running.
func Capture(eng *vm.Engine, prog vm.Program) *Image {
	m := eng.Dump()
	img := &Image{
		SavedAt:   time.Now().UTC(),
		Registers: m.Registers[:],
		Memory:    m.Memory,
		Stack:     m.Stack,
		PC:        m.PC,
		CmpFlag:   m.CmpFlag,
	}
	if prog != nil {
		img.Program = prog.Serialize()
	}
	return img
}

// Apply restores the image's machine state into an engine and returns the
// embedded program, if any.
func (img *Image) Apply(eng *vm.Engine) (vm.Program, error) {
	if len(img.Registers) != vm.NumRegisters {
		return nil, fmt.Errorf("snapshot: image has %d registers, want %d", len(img.Registers), vm.NumRegisters)
	}
	var m vm.MachineImage
	copy(m.Registers[:], img.Registers)
	m.Memory = img.Memory
	m.Stack = img.Stack
	m.PC = img.PC
	m.CmpFlag = img.CmpFlag
	if err := eng.Restore(m); err != nil {
		return nil, fmt.Errorf("snapshot: restore: %w", err)
	}
	if len(img.Program) == 0 {
		return nil, nil
	}
	prog, err := vm.DeserializeProgram(img.Program)
	if err != nil {
		return nil, fmt.Errorf("snapshot: embedded program: %w", err)
	}
	return prog, nil
}

// Write encodes the image to w.
func Write(w io.Writer, img *Image) error {
	header := make([]byte, 0, 6)
	header = append(header, Magic...)
	header = binary.BigEndian.AppendUint16(header, Version)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}
	data, err := cborEncMode.Marshal(img)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("snapshot: write body: %w", err)
	}
	return nil
}

// Read decodes an image from r.
func Read(r io.Reader) (*Image, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	if string(header[0:4]) != string(Magic) {
		return nil, fmt.Errorf("snapshot: invalid magic %q", header[0:4])
	}
	if v := binary.BigEndian.Uint16(header[4:6]); v > Version {
		return nil, fmt.Errorf("snapshot: version %d is newer than supported version %d", v, Version)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read body: %w", err)
	}
	var img Image
	if err := cbor.Unmarshal(body, &img); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &img, nil
}

// SaveFile writes the image to path.
func SaveFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()
	if err := Write(f, img); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	log.Debugf("snapshot saved to %s (%d bytes of memory)", path, len(img.Memory))
	return nil
}

// LoadFile reads an image from path.
func LoadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()
	return Read(f)
}
