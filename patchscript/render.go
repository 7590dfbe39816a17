package patchscript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	// SyntaxC renders a C routine calling WriteProcessMemory.
	SyntaxC Syntax = "c"

	// SyntaxGo renders a Go function calling
	// golang.org/x/sys/windows.WriteProcessMemory.
	SyntaxGo Syntax = "go"
)

// Syntax is the language a script is rendered in.
type Syntax string

// Syntaxes returns the supported syntaxes.
func Syntaxes() []Syntax {
	return []Syntax{SyntaxC, SyntaxGo}
}

// ParseSyntax validates s.
func ParseSyntax(s string) (Syntax, error) {
	for _, syntax := range Syntaxes() {
		if string(syntax) == s {
			return syntax, nil
		}
	}

	return "", fmt.Errorf("unsupported script syntax: %q", s)
}

// String renders the script using syntax. Unknown syntaxes fall back
// to SyntaxC.
func (o Script) String(syntax Syntax) string {
	if _, err := ParseSyntax(string(syntax)); err != nil {
		syntax = SyntaxC
	}

	buf := &strings.Builder{}
	_ = Render(buf, o, syntax)
	return buf.String()
}

// Render writes the script to w as a routine in the specified syntax.
func Render(w io.Writer, script Script, syntax Syntax) error {
	bw := bufio.NewWriter(w)

	var err error
	switch syntax {
	case SyntaxGo:
		err = renderGo(bw, script)
	case SyntaxC, "":
		err = renderC(bw, script)
	default:
		return fmt.Errorf("unsupported script syntax: %q", syntax)
	}
	if err != nil {
		return err
	}

	return bw.Flush()
}

func renderC(w *bufio.Writer, script Script) error {
	fmt.Fprintf(w, "void %s(HANDLE ProcessHandle)\n{\n", Name(script.Name))

	for i, inst := range script.Instructions {
		fmt.Fprintf(w, "\tBYTE Buffer%d = 0x%02x;%s\n", i, inst.Value, comment(inst.Comment))
		fmt.Fprintf(w, "\tWriteProcessMemory(ProcessHandle, (PVOID)0x%x, &Buffer%d, 1, NULL);\n",
			uint64(inst.Address), i)
	}

	_, err := w.WriteString("}\n")
	return err
}

func renderGo(w *bufio.Writer, script Script) error {
	fmt.Fprintf(w, "func %s(process windows.Handle) error {\n", Name(script.Name))
	w.WriteString("\tfor _, w := range []struct {\n")
	w.WriteString("\t\taddr uintptr\n")
	w.WriteString("\t\tb    byte\n")
	w.WriteString("\t}{\n")

	for _, inst := range script.Instructions {
		fmt.Fprintf(w, "\t\t{addr: 0x%x, b: 0x%02x},%s\n",
			uint64(inst.Address), inst.Value, comment(inst.Comment))
	}

	w.WriteString("\t} {\n")
	w.WriteString("\t\terr := windows.WriteProcessMemory(process, w.addr, &w.b, 1, nil)\n")
	w.WriteString("\t\tif err != nil {\n")
	w.WriteString("\t\t\treturn fmt.Errorf(\"failed to write 0x%x to 0x%x - %w\", w.b, w.addr, err)\n")
	w.WriteString("\t\t}\n")
	w.WriteString("\t}\n\n")
	w.WriteString("\treturn nil\n")

	_, err := w.WriteString("}\n")
	return err
}

func comment(c string) string {
	c = strings.TrimSpace(strings.ReplaceAll(c, "\n", " "))
	if c == "" {
		return ""
	}

	return " // " + c
}
