package process

import (
	"strings"
	"testing"

	"gitlab.com/stephen-fox/pagewatch/memory"
)

const testMaps = `55d0c0a00000-55d0c0a02000 r--p 00000000 08:01 1234                       /usr/bin/cat
55d0c0a02000-55d0c0a07000 r-xp 00002000 08:01 1234                       /usr/bin/cat
55d0c0a07000-55d0c0a0a000 r--p 00007000 08:01 1234                       /usr/bin/cat
55d0c0a0b000-55d0c0a0c000 rw-p 0000a000 08:01 1234                       /usr/bin/cat
55d0c1e5e000-55d0c1e7f000 rw-p 00000000 00:00 0                          [heap]
7f2a1c000000-7f2a1c001000 ---p 00000000 00:00 0
7f2a1c200000-7f2a1c228000 r--p 00000000 08:01 5678                       /opt/my app/libc.so.6
7ffd2b3c1000-7ffd2b3c3000 r-xs 00000000 00:00 0                          [vdso]
`

func TestParseMaps(t *testing.T) {
	mappings, err := parseMaps(strings.NewReader(testMaps))
	if err != nil {
		t.Fatal(err)
	}

	if len(mappings) != 8 {
		t.Fatalf("expected 8 mappings - got %d", len(mappings))
	}

	second := mappings[1]
	if second.start != 0x55d0c0a02000 || second.end != 0x55d0c0a07000 ||
		second.offset != 0x2000 || second.path != "/usr/bin/cat" {
		t.Fatalf("unexpected mapping: %+v", second)
	}

	if mappings[5].path != "" {
		t.Fatalf("expected anonymous mapping - got path %q", mappings[5].path)
	}

	if mappings[6].path != "/opt/my app/libc.so.6" {
		t.Fatalf("expected path with a space - got %q", mappings[6].path)
	}
}

func TestParseMaps_Malformed(t *testing.T) {
	for _, input := range []string{
		"55d0c0a00000 r--p 00000000 08:01 1234 /usr/bin/cat\n",
		"zz-55d0c0a02000 r--p 00000000 08:01 1234 /usr/bin/cat\n",
		"2000-1000 r--p 00000000 08:01 1234 /usr/bin/cat\n",
		"1000-2000 r--p\n",
	} {
		_, err := parseMaps(strings.NewReader(input))
		if err == nil {
			t.Fatalf("expected an error for %q", input)
		}
	}
}

func TestProtectionFromPerms(t *testing.T) {
	tests := map[string]memory.Protection{
		"r-xp": memory.ProtectionExecuteRead,
		"r--p": memory.ProtectionReadOnly,
		"rw-p": memory.ProtectionReadWrite,
		"---p": memory.ProtectionNoAccess,
		"rwxs": memory.ProtectionExecuteReadWrite,
		"-w-p": memory.ProtectionOther,
		"r":    memory.ProtectionOther,
	}

	for perms, exp := range tests {
		got := protectionFromPerms(perms)
		if got != exp {
			t.Fatalf("%q: expected %s - got %s", perms, exp, got)
		}
	}
}

func TestModuleFromMappings(t *testing.T) {
	mappings, err := parseMaps(strings.NewReader(testMaps))
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"cat", "/usr/bin/cat"} {
		module, found := moduleFromMappings(mappings, name)
		if !found {
			t.Fatalf("%q: module not found", name)
		}

		if module.Base != 0x55d0c0a00000 || module.ImageSize != 0xc000 {
			t.Fatalf("%q: unexpected module: %s", name, module)
		}
	}

	_, found := moduleFromMappings(mappings, "[heap]")
	if !found {
		t.Fatal("expected pseudo-paths to be resolvable")
	}

	_, found = moduleFromMappings(mappings, "bash")
	if found {
		t.Fatal("expected unmapped module to not be found")
	}
}

func TestRegionFromMappings(t *testing.T) {
	mappings, err := parseMaps(strings.NewReader(testMaps))
	if err != nil {
		t.Fatal(err)
	}

	region := regionFromMappings(mappings, 0x55d0c0a03000)
	exp := memory.Region{Base: 0x55d0c0a02000, Size: 0x5000, Protection: memory.ProtectionExecuteRead}
	if region != exp {
		t.Fatalf("expected %s - got %s", exp, region)
	}

	hole := regionFromMappings(mappings, 0x55d0c0a0a800)
	exp = memory.Region{Base: 0x55d0c0a0a000, Size: 0x1000, Protection: memory.ProtectionNoAccess}
	if hole != exp {
		t.Fatalf("expected %s - got %s", exp, hole)
	}

	first := regionFromMappings(mappings, 0x1000)
	if first.Base != 0 || first.End() != 0x55d0c0a00000 {
		t.Fatalf("unexpected leading hole: %s", first)
	}
}

func TestEnumerateFromMaps(t *testing.T) {
	mappings, err := parseMaps(strings.NewReader(testMaps))
	if err != nil {
		t.Fatal(err)
	}

	regions, err := memory.EnumerateMonitoredRegions(mapsSpace(mappings), "cat")
	if err != nil {
		t.Fatal(err)
	}

	exp := []memory.Region{
		{Base: 0x55d0c0a00000, Size: 0x2000, Protection: memory.ProtectionReadOnly},
		{Base: 0x55d0c0a02000, Size: 0x5000, Protection: memory.ProtectionExecuteRead},
		{Base: 0x55d0c0a07000, Size: 0x3000, Protection: memory.ProtectionReadOnly},
	}

	if len(regions) != len(exp) {
		t.Fatalf("expected %v - got %v", exp, regions)
	}

	for i := range exp {
		if regions[i] != exp[i] {
			t.Fatalf("region %d: expected %s - got %s", i, exp[i], regions[i])
		}
	}
}

type mapsSpace []mapping

func (o mapsSpace) ResolveModule(name string) (memory.Module, error) {
	module, _ := moduleFromMappings(o, name)
	return module, nil
}

func (o mapsSpace) QueryRegion(addr memory.Address) (memory.Region, error) {
	return regionFromMappings(o, addr), nil
}
