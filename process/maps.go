package process

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

// mapping is one line of a /proc/<pid>/maps file.
type mapping struct {
	start  memory.Address
	end    memory.Address
	perms  string
	offset uint64
	path   string
}

func (o mapping) region() memory.Region {
	return memory.Region{
		Base:       o.start,
		Size:       uint64(o.end - o.start),
		Protection: protectionFromPerms(o.perms),
	}
}

// protectionFromPerms converts a maps permission string such
// as "r-xp" to a memory.Protection. The sharing flag is ignored.
func protectionFromPerms(perms string) memory.Protection {
	if len(perms) < 3 {
		return memory.ProtectionOther
	}

	p, err := memory.ParseProtection(perms[:3])
	if err != nil {
		return memory.ProtectionOther
	}

	return p
}

// parseMaps parses the contents of a /proc/<pid>/maps file.
//
// Each line looks like:
//
//	55d0c0a00000-55d0c0a02000 r--p 00000000 08:01 1234   /usr/bin/cat
func parseMaps(r io.Reader) ([]mapping, error) {
	var mappings []mapping

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields - got %d",
				lineNum, len(fields))
		}

		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("line %d: malformed address range: %q", lineNum, fields[0])
		}

		start, err := strconv.ParseUint(bounds[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to parse start address - %w", lineNum, err)
		}

		end, err := strconv.ParseUint(bounds[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to parse end address - %w", lineNum, err)
		}

		if end <= start {
			return nil, fmt.Errorf("line %d: end address 0x%x is not after start address 0x%x",
				lineNum, end, start)
		}

		offset, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to parse offset - %w", lineNum, err)
		}

		var path string
		if len(fields) > 5 {
			// Paths may contain spaces.
			path = strings.Join(fields[5:], " ")
		}

		mappings = append(mappings, mapping{
			start:  memory.Address(start),
			end:    memory.Address(end),
			perms:  fields[1],
			offset: offset,
			path:   path,
		})
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read maps - %w", err)
	}

	return mappings, nil
}

// moduleFromMappings returns the span of every mapping backed by the
// file at path, or by a file whose base name is path.
func moduleFromMappings(mappings []mapping, name string) (memory.Module, bool) {
	var module memory.Module
	var end memory.Address
	found := false

	for _, m := range mappings {
		if m.path == "" || (m.path != name && baseName(m.path) != name) {
			continue
		}

		if !found || m.start < module.Base {
			module.Base = m.start
		}

		if m.end > end {
			end = m.end
		}

		module.Name = m.path
		found = true
	}

	if !found {
		return memory.Module{}, false
	}

	module.ImageSize = uint64(end - module.Base)

	return module, true
}

// regionFromMappings returns the mapping containing addr, or the hole
// around addr with memory.ProtectionNoAccess. mappings must be sorted.
func regionFromMappings(mappings []mapping, addr memory.Address) memory.Region {
	holeStart := memory.Address(0)

	for _, m := range mappings {
		if addr >= m.start && addr < m.end {
			return m.region()
		}

		if m.start > addr {
			return memory.Region{
				Base:       holeStart,
				Size:       uint64(m.start - holeStart),
				Protection: memory.ProtectionNoAccess,
			}
		}

		holeStart = m.end
	}

	return memory.Region{
		Base:       holeStart,
		Size:       ^uint64(0) - uint64(holeStart),
		Protection: memory.ProtectionNoAccess,
	}
}

func baseName(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}

	return path[i+1:]
}
