package patchscript_test

import (
	"fmt"
	"os"

	"gitlab.com/stephen-fox/pagewatch/diff"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
)

func ExampleSynthesizePair() {
	changes := []diff.Change{
		{Address: 0x40100a, Old: 0x90, New: 0xcc},
	}

	apply, undo := patchscript.SynthesizePair("Breakpoint", changes)

	fmt.Print(apply.String(patchscript.SyntaxC))
	fmt.Print(undo.String(patchscript.SyntaxC))

	// Output:
	// void Breakpoint(HANDLE ProcessHandle)
	// {
	// 	BYTE Buffer0 = 0xcc;
	// 	WriteProcessMemory(ProcessHandle, (PVOID)0x40100a, &Buffer0, 1, NULL);
	// }
	// void UndoBreakpoint(HANDLE ProcessHandle)
	// {
	// 	BYTE Buffer0 = 0x90;
	// 	WriteProcessMemory(ProcessHandle, (PVOID)0x40100a, &Buffer0, 1, NULL);
	// }
}

func ExampleRender_go() {
	apply := patchscript.Synthesize("", []diff.Change{
		{Address: 0x40100a, Old: 0x90, New: 0xcc},
	}, patchscript.Apply)

	err := patchscript.Render(os.Stdout, apply, patchscript.SyntaxGo)
	if err != nil {
		fmt.Println(err)
	}

	// Output:
	// func DefaultMacroName(process windows.Handle) error {
	// 	for _, w := range []struct {
	// 		addr uintptr
	// 		b    byte
	// 	}{
	// 		{addr: 0x40100a, b: 0xcc},
	// 	} {
	// 		err := windows.WriteProcessMemory(process, w.addr, &w.b, 1, nil)
	// 		if err != nil {
	// 			return fmt.Errorf("failed to write 0x%x to 0x%x - %w", w.b, w.addr, err)
	// 		}
	// 	}
	//
	// 	return nil
	// }
}
