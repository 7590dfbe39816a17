// Package patchscript turns byte-level changes into replayable patch
// scripts.
//
// Every detected modification produces a pair of scripts. The apply
// script writes the modified values, and the undo script writes the
// original values back. Both scripts target the same addresses in the
// same order. Scripts are rendered as small routines that take a
// single process handle parameter, so they can be pasted into a
// program and run against the target without further editing:
//
//	void DefaultMacroName(HANDLE ProcessHandle)
//	{
//		BYTE Buffer0 = 0xcc;
//		WriteProcessMemory(ProcessHandle, (PVOID)0x40100a, &Buffer0, 1, NULL);
//	}
//
// Rendered C routines can be parsed back with Parse and executed
// against any memory.Writer with Replay.
package patchscript
