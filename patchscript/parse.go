package patchscript

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

var (
	cHeaderRe = regexp.MustCompile(`^void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(\s*HANDLE\s+([A-Za-z_][A-Za-z0-9_]*)\s*\)`)
	cBufferRe = regexp.MustCompile(`^BYTE\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(0[xX][0-9a-fA-F]+|[0-9]+)[lL]?\s*;\s*(?://(.*))?$`)
	cWriteRe  = regexp.MustCompile(`^WriteProcessMemory\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*,\s*\(PVOID\)\s*(0[xX][0-9a-fA-F]+|[0-9]+)[lL]?\s*,\s*&([A-Za-z_][A-Za-z0-9_]*)\s*,\s*1\s*,\s*NULL\s*\)\s*;`)
)

// Parse reads C routines produced by Render with SyntaxC. Values and
// addresses may be hex ("0xcc") or decimal with an optional "L"
// suffix ("204L").
//
// A routine is marked as an Undo script only when it is named
// UndoPrefix + X and a routine named X appears before it, which is
// how SynthesizePair output is rendered. Every other routine is an
// Apply script, including one named "UndoHook" on its own.
func Parse(r io.Reader) ([]Script, error) {
	var scripts []Script
	var current *Script
	var handleName string
	buffers := make(map[string]bufferDecl)

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "", "{":
			continue
		case "}":
			if current == nil {
				return nil, fmt.Errorf("line %d: unexpected end of routine", lineNum)
			}

			scripts = append(scripts, *current)
			current = nil
			buffers = make(map[string]bufferDecl)
			continue
		}

		if current == nil {
			matches := cHeaderRe.FindStringSubmatch(line)
			if matches == nil {
				return nil, fmt.Errorf("line %d: expected routine declaration - got %q", lineNum, line)
			}

			current = &Script{Name: matches[1]}

			handleName = matches[2]
			continue
		}

		if matches := cBufferRe.FindStringSubmatch(line); matches != nil {
			value, err := parseUint(matches[2], 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: failed to parse byte value - %w", lineNum, err)
			}

			buffers[matches[1]] = bufferDecl{
				value:   byte(value),
				comment: strings.TrimSpace(matches[3]),
			}
			continue
		}

		if matches := cWriteRe.FindStringSubmatch(line); matches != nil {
			if matches[1] != handleName {
				return nil, fmt.Errorf("line %d: write uses handle %q instead of parameter %q",
					lineNum, matches[1], handleName)
			}

			addr, err := parseUint(matches[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: failed to parse address - %w", lineNum, err)
			}

			decl, hasIt := buffers[matches[3]]
			if !hasIt {
				return nil, fmt.Errorf("line %d: buffer %q is not declared", lineNum, matches[3])
			}

			current.Instructions = append(current.Instructions, Instruction{
				Address: memory.Address(addr),
				Value:   decl.value,
				Comment: decl.comment,
			})
			continue
		}

		return nil, fmt.Errorf("line %d: unknown statement %q", lineNum, line)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read script - %w", err)
	}

	if current != nil {
		return nil, fmt.Errorf("routine %q is missing its closing brace", current.Name)
	}

	markUndoScripts(scripts)

	return scripts, nil
}

// markUndoScripts marks each script that is the undo half of a pair.
func markUndoScripts(scripts []Script) {
	applyNames := make(map[string]struct{})

	for i := range scripts {
		name := scripts[i].Name

		target := strings.TrimPrefix(name, UndoPrefix)
		if target != name {
			if _, paired := applyNames[target]; paired {
				scripts[i].Direction = Undo
				delete(applyNames, target)
				continue
			}
		}

		applyNames[name] = struct{}{}
	}
}

type bufferDecl struct {
	value   byte
	comment string
}

func parseUint(s string, bits int) (uint64, error) {
	s = strings.TrimRight(s, "lL")

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, bits)
	}

	return strconv.ParseUint(s, 10, bits)
}
