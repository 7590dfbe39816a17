package memory_test

import (
	"fmt"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

func ExampleEnumerateMonitoredRegions() {
	arena := memory.NewArena().
		AddModule(memory.Module{Name: "game.exe", Base: 0x400000, ImageSize: 0x4000}).
		MapOrExit(0x400000, make([]byte, 0x1000), memory.ProtectionReadOnly).
		MapOrExit(0x401000, make([]byte, 0x2000), memory.ProtectionExecuteRead).
		MapOrExit(0x403000, make([]byte, 0x1000), memory.ProtectionReadWrite)

	regions := memory.EnumerateMonitoredRegionsOrExit(arena, "game.exe")

	for _, r := range regions {
		fmt.Println(r)
	}

	// Output:
	// 0x400000-0x401000 r-- (0x1000 bytes)
	// 0x401000-0x403000 r-x (0x2000 bytes)
}
