package asmkit_test

import (
	"encoding/hex"
	"fmt"
	"log"

	"gitlab.com/stephen-fox/pagewatch/asmkit"
)

func ExampleDisassembler_All() {
	// exit(1) syscall shellcode by Charles Stevenson:
	// http://shell-storm.org/shellcode/files/shellcode-55.php
	insts, err := hex.DecodeString("31c04089c3cd80")
	if err != nil {
		log.Fatalln(err)
	}

	disass := asmkit.NewDisassemblerOrExit(asmkit.DisassemblerConfig{
		Syntax:     asmkit.IntelSyntax,
		ArchConfig: asmkit.X86Config{Bits: 32},
	})

	err = disass.All(insts, func(inst asmkit.Inst) error {
		fmt.Println(inst.Dis)
		return nil
	})
	if err != nil {
		log.Fatalln(err)
	}

	// Output:
	// xor eax, eax
	// inc eax
	// mov ebx, eax
	// int 0x80
}
