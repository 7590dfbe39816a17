package patchscript

import (
	"fmt"
	"log"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

// ReplayOrExit calls Replay. memory.DefaultExitFn is invoked if
// an error occurs.
func ReplayOrExit(w memory.Writer, script Script, optLogger *log.Logger) {
	err := Replay(w, script, optLogger)
	if err != nil {
		memory.DefaultExitFn(fmt.Errorf("failed to replay %s script %q - %w",
			script.Direction, script.Name, err))
	}
}

// Replay executes the script's writes against w in order, one byte
// per write. It stops at the first failure and returns
// a *memory.WriteError naming the address.
func Replay(w memory.Writer, script Script, optLogger *log.Logger) error {
	for _, inst := range script.Instructions {
		err := w.WriteMemory(inst.Address, []byte{inst.Value})
		if err != nil {
			return &memory.WriteError{Address: inst.Address, Err: err}
		}

		if optLogger != nil {
			optLogger.Printf("%s: wrote 0x%02x to %s",
				script.Name, inst.Value, inst.Address.HexString())
		}
	}

	return nil
}
