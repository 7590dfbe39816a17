package patchscript

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"gitlab.com/stephen-fox/pagewatch/diff"
	"gitlab.com/stephen-fox/pagewatch/memory"
)

func TestSynthesizePair_DefaultName(t *testing.T) {
	changes := []diff.Change{{Address: 0x1000, Old: 0x90, New: 0xcc}}

	for _, name := range []string{"", "   "} {
		apply, undo := SynthesizePair(name, changes)

		if apply.Name != DefaultName {
			t.Fatalf("expected apply name %q - got %q", DefaultName, apply.Name)
		}

		if undo.Name != UndoPrefix+DefaultName {
			t.Fatalf("expected undo name %q - got %q", UndoPrefix+DefaultName, undo.Name)
		}

		if apply.Direction != Apply || undo.Direction != Undo {
			t.Fatalf("unexpected directions: %s, %s", apply.Direction, undo.Direction)
		}
	}
}

func TestSynthesizePair_Values(t *testing.T) {
	changes := []diff.Change{
		{Address: 0x1000, Old: 0x90, New: 0xcc},
		{Address: 0x1001, Old: 0x55, New: 0xc3},
	}

	apply, undo := SynthesizePair("NopOut", changes)

	if apply.Name != "NopOut" || undo.Name != "UndoNopOut" {
		t.Fatalf("unexpected names: %q, %q", apply.Name, undo.Name)
	}

	for i, c := range changes {
		if apply.Instructions[i].Address != c.Address || undo.Instructions[i].Address != c.Address {
			t.Fatalf("instruction %d does not target %s", i, c.Address)
		}

		if apply.Instructions[i].Value != c.New {
			t.Fatalf("apply %d: expected 0x%02x - got 0x%02x", i, c.New, apply.Instructions[i].Value)
		}

		if undo.Instructions[i].Value != c.Old {
			t.Fatalf("undo %d: expected 0x%02x - got 0x%02x", i, c.Old, undo.Instructions[i].Value)
		}
	}
}

func TestName(t *testing.T) {
	tests := map[string]string{
		"":             DefaultName,
		"Hook":         "Hook",
		" spaced out ": "spaced_out",
		"1st-patch":    "_1st_patch",
	}

	for in, exp := range tests {
		got := Name(in)
		if got != exp {
			t.Fatalf("Name(%q): expected %q - got %q", in, exp, got)
		}
	}
}

func TestReplay_ApplyThenUndoRestores(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	const base memory.Address = 0x401000

	for round := 0; round < 20; round++ {
		original := make([]byte, 256)
		rng.Read(original)

		modified := bytes.Clone(original)
		for i := 1 + rng.Intn(10); i > 0; i-- {
			offset := rng.Intn(len(modified))
			modified[offset] = original[offset] ^ byte(1+rng.Intn(255))
		}

		changes, err := diff.Bytes(base, original, modified)
		if err != nil {
			t.Fatal(err)
		}

		apply, undo := SynthesizePair("", changes)

		arena := memory.NewArena()
		arena.MapOrExit(base, original, memory.ProtectionExecuteRead)

		err = Replay(arena, apply, nil)
		if err != nil {
			t.Fatal(err)
		}

		got, err := arena.ReadMemory(base, uint64(len(original)))
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(got, modified) {
			t.Fatalf("round %d: apply script did not reproduce the modification", round)
		}

		err = Replay(arena, undo, nil)
		if err != nil {
			t.Fatal(err)
		}

		got, err = arena.ReadMemory(base, uint64(len(original)))
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(got, original) {
			t.Fatalf("round %d: undo script did not restore the original bytes", round)
		}
	}
}

func TestReplay_WriteError(t *testing.T) {
	arena := memory.NewArena()
	arena.MapOrExit(0x1000, make([]byte, 0x10), memory.ProtectionReadOnly)

	script := Script{
		Name: "Broken",
		Instructions: []Instruction{
			{Address: 0x1000, Value: 1},
			{Address: 0x2000, Value: 2},
		},
	}

	err := Replay(arena, script, nil)

	var writeErr *memory.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected a *memory.WriteError - got %T: %v", err, err)
	}

	if writeErr.Address != 0x2000 {
		t.Fatalf("expected failure at 0x2000 - got %s", writeErr.Address)
	}
}

func TestRender_C(t *testing.T) {
	apply, _ := SynthesizePair("", []diff.Change{
		{Address: 0x40100a, Old: 0x90, New: 0xcc},
		{Address: 0x40100b, Old: 0x90, New: 0xc3},
	})
	apply.Instructions[0].Comment = "int3"

	exp := `void DefaultMacroName(HANDLE ProcessHandle)
{
	BYTE Buffer0 = 0xcc; // int3
	WriteProcessMemory(ProcessHandle, (PVOID)0x40100a, &Buffer0, 1, NULL);
	BYTE Buffer1 = 0xc3;
	WriteProcessMemory(ProcessHandle, (PVOID)0x40100b, &Buffer1, 1, NULL);
}
`

	got := apply.String(SyntaxC)
	if got != exp {
		t.Fatalf("expected:\n%s\ngot:\n%s", exp, got)
	}
}

func TestRender_UnknownSyntax(t *testing.T) {
	err := Render(&strings.Builder{}, Script{}, "cobol")
	if err == nil {
		t.Fatal("expected an error for an unknown syntax")
	}
}

func TestParse_RenderedScripts(t *testing.T) {
	changes := []diff.Change{
		{Address: 0x7ff6a0001000, Old: 0x48, New: 0xe9},
		{Address: 0x7ff6a0001001, Old: 0x89, New: 0x00},
	}

	apply, undo := SynthesizePair("Detour", changes)
	apply.Instructions[0].Comment = "jmp 0x7ff6a0001005"

	buf := bytes.NewBuffer(nil)
	for _, s := range []Script{apply, undo} {
		err := Render(buf, s, SyntaxC)
		if err != nil {
			t.Fatal(err)
		}

		buf.WriteString("\n")
	}

	scripts, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(scripts) != 2 {
		t.Fatalf("expected 2 scripts - got %d", len(scripts))
	}

	for i, exp := range []Script{apply, undo} {
		got := scripts[i]
		if got.Name != exp.Name || got.Direction != exp.Direction {
			t.Fatalf("script %d: expected %q (%s) - got %q (%s)",
				i, exp.Name, exp.Direction, got.Name, got.Direction)
		}

		if len(got.Instructions) != len(exp.Instructions) {
			t.Fatalf("script %d: expected %d instructions - got %d",
				i, len(exp.Instructions), len(got.Instructions))
		}

		for j := range exp.Instructions {
			if got.Instructions[j] != exp.Instructions[j] {
				t.Fatalf("script %d instruction %d: expected %+v - got %+v",
					i, j, exp.Instructions[j], got.Instructions[j])
			}
		}
	}
}

func TestParse_DecimalFormat(t *testing.T) {
	src := `void Hook(HANDLE ProcessHandle)
{
	BYTE Buffer0 = 204L;
	WriteProcessMemory(ProcessHandle, (PVOID)4198410L, &Buffer0, 1, NULL);

}
void UndoHook(HANDLE ProcessHandle)
{
	BYTE Buffer0 = 144L;
	WriteProcessMemory(ProcessHandle, (PVOID)4198410L, &Buffer0, 1, NULL);

}
`

	scripts, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}

	if len(scripts) != 2 {
		t.Fatalf("expected 2 scripts - got %d", len(scripts))
	}

	if scripts[0].Direction != Apply {
		t.Fatalf("expected apply direction - got %s", scripts[0].Direction)
	}

	s := scripts[1]
	if s.Direction != Undo {
		t.Fatalf("expected undo direction - got %s", s.Direction)
	}

	exp := Instruction{Address: 0x40100a, Value: 0x90}
	if len(s.Instructions) != 1 || s.Instructions[0] != exp {
		t.Fatalf("expected %+v - got %+v", exp, s.Instructions)
	}
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{
		"int main() {}",
		"void A(HANDLE P)\n{\n\tWriteProcessMemory(P, (PVOID)0x1, &Missing, 1, NULL);\n}\n",
		"void A(HANDLE P)\n{\n\tBYTE Buffer0 = 0x1;\n",
		"void A(HANDLE P)\n{\n\tBYTE Buffer0 = 0x100;\n}\n",
		"void A(HANDLE P)\n{\n\tBYTE Buffer0 = 0x1;\n\tWriteProcessMemory(Other, (PVOID)0x1, &Buffer0, 1, NULL);\n}\n",
	}

	for i, in := range inputs {
		_, err := Parse(strings.NewReader(in))
		if err == nil {
			t.Fatalf("input %d: expected an error", i)
		}
	}
}

func TestParse_UndoPrefixWithoutPair(t *testing.T) {
	src := `void UndoHook(HANDLE ProcessHandle)
{
	BYTE Buffer0 = 0xcc;
	WriteProcessMemory(ProcessHandle, (PVOID)0x40100a, &Buffer0, 1, NULL);
}
void Undocumented(HANDLE ProcessHandle)
{
	BYTE Buffer0 = 0xc3;
	WriteProcessMemory(ProcessHandle, (PVOID)0x40100b, &Buffer0, 1, NULL);
}
void UndoUndoHook(HANDLE ProcessHandle)
{
	BYTE Buffer0 = 0x90;
	WriteProcessMemory(ProcessHandle, (PVOID)0x40100a, &Buffer0, 1, NULL);
}
`

	scripts, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}

	exp := []Direction{Apply, Apply, Undo}
	if len(scripts) != len(exp) {
		t.Fatalf("expected %d scripts - got %d", len(exp), len(scripts))
	}

	for i := range exp {
		if scripts[i].Direction != exp[i] {
			t.Fatalf("script %q: expected %s - got %s",
				scripts[i].Name, exp[i], scripts[i].Direction)
		}
	}
}

func TestScript_StringUnknownSyntaxFallsBackToC(t *testing.T) {
	script := Synthesize("Hook", []diff.Change{{Address: 0x1000, Old: 0x90, New: 0xcc}}, Apply)

	got := script.String(Syntax("rust"))
	if got == "" || got != script.String(SyntaxC) {
		t.Fatalf("expected the C rendering - got %q", got)
	}
}
