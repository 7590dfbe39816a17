package patchscript

import (
	"fmt"
	"strings"

	"gitlab.com/stephen-fox/pagewatch/diff"
	"gitlab.com/stephen-fox/pagewatch/memory"
)

const (
	// DefaultName is used when a script name is empty.
	DefaultName = "DefaultMacroName"

	// UndoPrefix is prepended to an apply script's name to
	// produce the name of its undo script.
	UndoPrefix = "Undo"
)

const (
	// Apply scripts write the modified (current) values.
	Apply Direction = iota

	// Undo scripts write the original values.
	Undo
)

// Direction selects which side of a change a script writes.
type Direction int

func (o Direction) String() string {
	switch o {
	case Apply:
		return "apply"
	case Undo:
		return "undo"
	default:
		return fmt.Sprintf("unknown direction %d", int(o))
	}
}

// Instruction writes one byte.
type Instruction struct {
	Address memory.Address
	Value   byte

	// Comment is optional. It is rendered after the instruction.
	Comment string
}

// Script is a named sequence of byte writes.
type Script struct {
	Name         string
	Direction    Direction
	Instructions []Instruction
}

// Addresses returns the address of each instruction in order.
func (o Script) Addresses() []memory.Address {
	addrs := make([]memory.Address, len(o.Instructions))
	for i, inst := range o.Instructions {
		addrs[i] = inst.Address
	}
	return addrs
}

// Synthesize converts changes into a script named name. Apply scripts
// write each change's new value and Undo scripts write its old value.
// An empty name is replaced with DefaultName. Characters that are not
// valid in a C or Go identifier are replaced with underscores.
func Synthesize(name string, changes []diff.Change, direction Direction) Script {
	script := Script{
		Name:         Name(name),
		Direction:    direction,
		Instructions: make([]Instruction, len(changes)),
	}

	for i, c := range changes {
		value := c.New
		if direction == Undo {
			value = c.Old
		}

		script.Instructions[i] = Instruction{
			Address: c.Address,
			Value:   value,
		}
	}

	return script
}

// SynthesizePair returns the apply script for changes under name
// and the undo script under UndoPrefix + name.
func SynthesizePair(name string, changes []diff.Change) (Script, Script) {
	applyName := Name(name)

	return Synthesize(applyName, changes, Apply),
		Synthesize(UndoPrefix+applyName, changes, Undo)
}

// Name normalizes a user-supplied script name.
func Name(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}

	b := []byte(name)
	for i, c := range b {
		if !isIdentChar(c) {
			b[i] = '_'
		}
	}

	if b[0] >= '0' && b[0] <= '9' {
		b = append([]byte{'_'}, b...)
	}

	return string(b)
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
