// Package asmkit decodes machine code so that byte-level changes can be
// described in terms of the instructions they touch.
package asmkit

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/x86/x86asm"
)

const (
	SkipSyntax  DisassemblySyntax = ""
	ATTSyntax   DisassemblySyntax = "att"
	GoSyntax    DisassemblySyntax = "go"
	IntelSyntax DisassemblySyntax = "intel"
)

type DisassemblySyntax string

type DisassemblerConfig struct {
	Syntax     DisassemblySyntax
	ArchConfig interface{}
}

type X86Config struct {
	Bits int
}

type ARMConfig struct {
	Mode armasm.Mode
}

// ConfigForPlatform returns a DisassemblerConfig using Intel syntax
// (or GNU syntax for ARM) for one of "x86_32", "x86_64" or "arm".
func ConfigForPlatform(platform string) (DisassemblerConfig, error) {
	switch platform {
	case "x86_32":
		return DisassemblerConfig{Syntax: IntelSyntax, ArchConfig: X86Config{Bits: 32}}, nil
	case "x86_64":
		return DisassemblerConfig{Syntax: IntelSyntax, ArchConfig: X86Config{Bits: 64}}, nil
	case "arm":
		return DisassemblerConfig{Syntax: ATTSyntax, ArchConfig: ARMConfig{Mode: armasm.ModeARM}}, nil
	default:
		return DisassemblerConfig{}, fmt.Errorf("unsupported platform: %q", platform)
	}
}

func NewDisassemblerOrExit(config DisassemblerConfig) *Disassembler {
	d, err := NewDisassembler(config)
	if err != nil {
		DefaultExitFn(fmt.Errorf("failed to create disassembler - %w", err))
	}
	return d
}

func NewDisassembler(config DisassemblerConfig) (*Disassembler, error) {
	switch assertedConfig := config.ArchConfig.(type) {
	case ARMConfig:
		var disassemblyFn func(inst armasm.Inst) string
		switch config.Syntax {
		case SkipSyntax:
			// Do nothing.
		case ATTSyntax:
			disassemblyFn = armasm.GNUSyntax
		default:
			return nil, fmt.Errorf("unsupported syntax type for arm: %q", config.Syntax)
		}

		return &Disassembler{
			disassOneInstFn: func(remainingInsts []byte) (Inst, error) {
				armInst, err := armasm.Decode(remainingInsts, assertedConfig.Mode)
				if err != nil {
					return Inst{}, err
				}

				var disassembly string
				if disassemblyFn != nil {
					disassembly = disassemblyFn(armInst)
				}

				return Inst{
					Bin:  copySlice(remainingInsts, armInst.Len),
					Len:  armInst.Len,
					Dis:  disassembly,
					Inst: armInst,
				}, nil
			},
		}, nil
	case X86Config:
		if assertedConfig.Bits != 16 && assertedConfig.Bits != 32 && assertedConfig.Bits != 64 {
			return nil, fmt.Errorf("unsupported x86 mode: %d bits", assertedConfig.Bits)
		}

		var disassemblyFn func(inst x86asm.Inst) string
		switch config.Syntax {
		case SkipSyntax:
			// Do nothing.
		case ATTSyntax:
			disassemblyFn = func(inst x86asm.Inst) string {
				return x86asm.GNUSyntax(inst, 0, nil)
			}
		case GoSyntax:
			disassemblyFn = func(inst x86asm.Inst) string {
				return x86asm.GoSyntax(inst, 0, nil)
			}
		case IntelSyntax:
			disassemblyFn = func(inst x86asm.Inst) string {
				return x86asm.IntelSyntax(inst, 0, nil)
			}
		default:
			return nil, fmt.Errorf("unsupported syntax type for x86: %q", config.Syntax)
		}

		return &Disassembler{
			disassOneInstFn: func(remainingInsts []byte) (Inst, error) {
				x86Inst, err := x86asm.Decode(remainingInsts, assertedConfig.Bits)
				if err != nil {
					return Inst{}, err
				}

				var disassembly string
				if disassemblyFn != nil {
					disassembly = disassemblyFn(x86Inst)
				}

				return Inst{
					Bin:  copySlice(remainingInsts, x86Inst.Len),
					Len:  x86Inst.Len,
					Dis:  disassembly,
					Inst: x86Inst,
				}, nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported config type: %T", assertedConfig)
	}
}

func copySlice(src []byte, numBytes int) []byte {
	cp := make([]byte, numBytes)

	copy(cp, src[0:numBytes])

	return cp
}

type Disassembler struct {
	disassOneInstFn func(remainingInsts []byte) (Inst, error)
}

// All decodes every instruction in rawInstructions, calling
// onDecodeFn for each one. It stops at the first decode error.
func (o *Disassembler) All(rawInstructions []byte, onDecodeFn func(Inst) error) error {
	index := 0

	for index < len(rawInstructions) {
		inst, err := o.disassOneInstFn(rawInstructions[index:])
		if err != nil {
			return fmt.Errorf("failed to decode instruction at offset %d - %w - remaining data: 0x%x",
				index, err, rawInstructions[index:])
		}

		inst.Index = index

		err = onDecodeFn(inst)
		if err != nil {
			return fmt.Errorf("on decode function failed for instruction at offset %d (%q) - %w",
				index, inst.Dis, err)
		}

		index += inst.Len
	}

	return nil
}

// Next decodes the first instruction in rawInstructions.
func (o *Disassembler) Next(rawInstructions []byte) (Inst, error) {
	return o.disassOneInstFn(rawInstructions)
}

// Covering performs a single linear sweep over code and returns,
// for each offset, the instruction containing it. offsets must be
// sorted in ascending order. Bytes that cannot be decoded are skipped
// one at a time; an offset that lands on such a byte maps to an
// Inst with a zero Len.
func (o *Disassembler) Covering(code []byte, offsets []int) []Inst {
	results := make([]Inst, len(offsets))
	next := 0

	for next < len(offsets) && offsets[next] < 0 {
		next++
	}

	index := 0

	for index < len(code) && next < len(offsets) {
		inst, err := o.disassOneInstFn(code[index:])
		if err != nil || inst.Len <= 0 {
			for next < len(offsets) && offsets[next] == index {
				results[next] = Inst{Index: index}
				next++
			}

			index++
			continue
		}

		inst.Index = index
		end := index + inst.Len

		for next < len(offsets) && offsets[next] < end {
			results[next] = inst
			next++
		}

		index = end
	}

	return results
}

type Inst struct {
	Bin   []byte
	Len   int
	Index int
	Dis   string
	Inst  interface{}
}
