// Package asm implements a line-oriented assembler for ferrite programs.
//
// The source format mirrors the disassembler's rendering. Each line holds at
// most one instruction, written as a mnemonic followed by comma-separated
// operands:
//
//	LOAD R1, 5
//	STORE R1, @64
//	CMP R1, R2
//	JLT loop
//
// Operands are registers (R0..R15), immediates (decimal or 0x-prefixed hex),
// memory addresses (@addr), and jump targets (a label or an absolute
// instruction index). A label is an identifier followed by a colon, alone or
// in front of an instruction, and names the address of the next instruction.
// Semicolons start comments that run to the end of the line.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

var log = commonlog.GetLogger("ferrite.asm")

// Error is an assembly failure tied to a source line.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func errorf(line int, format string, args ...any) *Error {
	return &Error{Line: line, Message: fmt.Sprintf(format, args...)}
}

// pending is a parsed instruction whose jump target may still be a label.
type pending struct {
	line  int
	in    vm.Instruction
	label string // unresolved target label, empty if none
}

// Assemble translates assembly source into a program. Label resolution is
// two-pass: the first pass parses instructions and records label addresses,
// the second patches label operands.
func Assemble(source string) (vm.Program, error) {
	labels := make(map[string]uint32)
	var items []pending

	for i, raw := range strings.Split(source, "\n") {
		line := i + 1
		text := stripComment(raw)

		// Peel off any leading labels.
		for {
			head, rest, found := cutLabel(text)
			if !found {
				break
			}
			if !isIdentifier(head) {
				return nil, errorf(line, "invalid label %q", head)
			}
			if _, dup := labels[head]; dup {
				return nil, errorf(line, "label %q defined twice", head)
			}
			labels[head] = uint32(len(items))
			text = rest
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		item, err := parseInstruction(line, text)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, errorf(0, "source contains no instructions")
	}

	prog := make(vm.Program, len(items))
	for i, item := range items {
		if item.label != "" {
			target, ok := labels[item.label]
			if !ok {
				return nil, errorf(item.line, "undefined label %q", item.label)
			}
			item.in.Operand1 = target
		}
		prog[i] = item.in
	}
	log.Debugf("assembled %d instructions, %d labels", len(prog), len(labels))
	return prog, nil
}

// stripComment removes a trailing comment.
func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// cutLabel splits "name: rest" into the label name and the remainder.
// A colon inside an operand list never matches because labels are cut
// before the mnemonic is parsed and identifiers cannot contain spaces.
func cutLabel(text string) (label, rest string, found bool) {
	text = strings.TrimSpace(text)
	i := strings.IndexByte(text, ':')
	if i < 0 {
		return "", text, false
	}
	head := strings.TrimSpace(text[:i])
	if head == "" || strings.ContainsAny(head, " \t,") {
		return "", text, false
	}
	return head, text[i+1:], true
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}

// parseInstruction parses one instruction line into a pending record.
func parseInstruction(line int, text string) (pending, error) {
	mnemonic := text
	var operandText string
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		mnemonic = text[:i]
		operandText = strings.TrimSpace(text[i+1:])
	}

	op, ok := vm.OpcodeByName(strings.ToUpper(mnemonic))
	if !ok {
		return pending{}, errorf(line, "unknown mnemonic %q", mnemonic)
	}
	info := op.Info()

	var fields []string
	if operandText != "" {
		fields = strings.Split(operandText, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
	}

	roles := operandRoles(info)
	if len(fields) != len(roles) {
		return pending{}, errorf(line, "%s takes %d operands, got %d", info.Name, len(roles), len(fields))
	}

	item := pending{line: line, in: vm.Instruction{Op: op}}
	slot := 0 // next Operand field to fill
	for i, role := range roles {
		field := fields[i]
		switch role {
		case vm.RoleReg, vm.RoleLenReg:
			r, err := parseRegister(line, field)
			if err != nil {
				return pending{}, err
			}
			if i == 0 && (info.Dest == vm.RoleReg || info.Dest == vm.RoleLenReg) {
				item.in.Dest = r
			} else {
				item.setOperand(&slot, uint32(r))
			}
		case vm.RoleImm:
			v, err := parseNumber(line, field)
			if err != nil {
				return pending{}, err
			}
			item.setOperand(&slot, v)
		case vm.RoleAddr:
			v, err := parseAddress(line, field)
			if err != nil {
				return pending{}, err
			}
			item.setOperand(&slot, v)
		case vm.RoleTarget:
			if isIdentifier(field) {
				item.label = field
				slot++
			} else {
				v, err := parseNumber(line, field)
				if err != nil {
					return pending{}, errorf(line, "invalid jump target %q", field)
				}
				item.setOperand(&slot, v)
			}
		}
	}
	return item, nil
}

// setOperand fills Operand1 then Operand2.
func (p *pending) setOperand(slot *int, v uint32) {
	if *slot == 0 {
		p.in.Operand1 = v
	} else {
		p.in.Operand2 = v
	}
	*slot++
}

// operandRoles flattens the opcode's operand metadata into the textual
// operand order: destination register first when present, then the operand
// fields that carry a value.
func operandRoles(info vm.OpcodeInfo) []vm.OperandRole {
	var roles []vm.OperandRole
	for _, r := range []vm.OperandRole{info.Dest, info.Operand1, info.Operand2} {
		if r != vm.RoleNone {
			roles = append(roles, r)
		}
	}
	return roles
}

func parseRegister(line int, field string) (uint8, error) {
	if len(field) < 2 || (field[0] != 'R' && field[0] != 'r') {
		return 0, errorf(line, "expected a register (R0-R%d), got %q", vm.NumRegisters-1, field)
	}
	n, err := strconv.ParseUint(field[1:], 10, 8)
	if err != nil || n >= vm.NumRegisters {
		return 0, errorf(line, "register %q out of range (valid: R0-R%d)", field, vm.NumRegisters-1)
	}
	return uint8(n), nil
}

func parseAddress(line int, field string) (uint32, error) {
	if !strings.HasPrefix(field, "@") {
		return 0, errorf(line, "expected a memory address (@n), got %q", field)
	}
	return parseNumber(line, field[1:])
}

func parseNumber(line int, field string) (uint32, error) {
	n, err := strconv.ParseUint(field, 0, 32)
	if err != nil {
		return 0, errorf(line, "invalid number %q", field)
	}
	return uint32(n), nil
}
