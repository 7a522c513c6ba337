package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"extmem/platform"
)

func runTestScript(t *testing.T, desc *platform.Description, script string, strictMode bool) (string, error) {
	t.Helper()

	b, err := bootBoard(desc, "")
	require.NoError(t, err)
	defer b.Close()

	var out bytes.Buffer
	s := newSession(b, &out)
	s.strict = strictMode
	err = s.run(strings.NewReader(script))
	return out.String(), err
}

func TestScriptScenario(t *testing.T) {
	desc, err := platform.Load("testdata/scenario.yaml")
	require.NoError(t, err)

	script, err := os.ReadFile("testdata/scenario.txt")
	require.NoError(t, err)

	out, err := runTestScript(t, desc, string(script), false)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"reserve 0x2000 read,write ram -> 0x10000000",
		"reserve 0x1000 read,write ram -> 0x10002000",
		"unmap 0x10000000 -> ok",
		"reserve 0x3000 read,write ram -> 0x10003000",
		"reserve 0x2000 read,write ram -> 0x10000000",
		"maxfree read,write ram -> 0xfa000",
		"",
	}, "\n"), out)
}

func TestScriptMappings(t *testing.T) {
	desc, err := platform.Lookup("unified-64k")
	require.NoError(t, err)

	out, err := runTestScript(t, desc, `
map 0x100000 64Kb ram read,write
map 0x100000 0x8000 ram read,write
map 0x100000 0x20000 ram read,write
map 0x100000 0x20000 ram read,write shared
v2p 0x3c070010
p2v 0x100010 ram data
caps 0x100010
unmap 0x3c070000
v2p 0x3c070010
mmap 0x12345 0x100 instruction
freepages data
munmap 1
munmap 1
`, false)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"map 0x100000 64Kb ram read,write -> 0x3c070000",
		"map 0x100000 0x8000 ram read,write -> 0x3c070000 (already mapped)",
		"map 0x100000 0x20000 ram read,write -> error: paddr block overlaps an existing mapping",
		"map 0x100000 0x20000 ram read,write shared -> 0x3c080000",
		"v2p 0x3c070010 -> ram:0x100010",
		"p2v 0x100010 ram data -> 0x3c070010",
		"caps 0x100010 -> read|write",
		"unmap 0x3c070000 -> ok",
		"v2p 0x3c070010 -> error: no mapped block matches address",
		"mmap 0x12345 0x100 instruction -> 0x42072345 handle 1",
		"freepages data -> 502",
		"munmap 1 -> ok",
		"munmap 1 -> error: invalid mmap handle",
		"",
	}, "\n"), out)
}

func TestScriptBankWindow(t *testing.T) {
	desc, err := platform.Lookup("bank-window")
	require.NoError(t, err)

	out, err := runTestScript(t, desc, `
halloc 64Kb
walloc 32Kb
hmap p0 w1 32Kb 0 32Kb
hfree p0
hunmap w1 0x3fbe0000 32Kb
hfree p0
wfree w1
`, false)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"halloc 64Kb -> p0",
		"walloc 32Kb -> w1 at 0x3fbe0000",
		"hmap p0 w1 32Kb 0 32Kb -> 0x3fbe0000",
		"hfree p0 -> error: block still mapped",
		"hunmap w1 0x3fbe0000 32Kb -> ok",
		"hfree p0 -> ok",
		"wfree w1 -> ok",
		"",
	}, "\n"), out)
}

func TestScriptErrors(t *testing.T) {
	unified, err := platform.Lookup("unified-64k")
	require.NoError(t, err)
	banks, err := platform.Lookup("bank-window")
	require.NoError(t, err)

	specs := []struct {
		name   string
		desc   *platform.Description
		script string
		strict bool
		expErr string
	}{
		{"unknown op", unified, "frobnicate 1", false, "line 1: frobnicate: unknown operation"},
		{"bad number", unified, "\nunmap zz", false, "line 2: unmap"},
		{"arg count", unified, "reserve 0x1000", false, "expected 3 argument(s), got 1"},
		{"bad caps", unified, "reserve 0x1000 fly ram", false, "caps \"fly\""},
		{"bad kind", unified, "mmap 0 0x100 sideways", false, "unknown address kind"},
		{"unaligned map", unified, "map 0x108000 0x10000 ram read", true, "line 1: vmm: invalid argument"},
		{"no regions", banks, "reserve 0x1000 read ram", false, "has no MMU regions"},
		{"no bank window", unified, "halloc 32Kb", false, "has no bank window"},
		{"unknown handle", banks, "hfree p9", false, "unknown physical handle"},
		{"strict", unified, "unmap 0x1000\nreserve 0x1000 read ram", true, "line 1: vmm: no mapped block matches address"},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			_, err := runTestScript(t, spec.desc, spec.script, spec.strict)
			require.ErrorContains(t, err, spec.expErr)
		})
	}
}
