package asmindex

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// listing extracts one named listing from the txtar fixture.
func listing(t *testing.T, name string) []byte {
	t.Helper()
	archive, err := txtar.ParseFile("testdata/listings.txtar")
	require.NoError(t, err)
	for _, f := range archive.Files {
		if f.Name == name {
			return f.Data
		}
	}
	t.Fatalf("no listing %q in fixture", name)
	return nil
}

func TestParseTwoFunctions(t *testing.T) {
	idx, err := Parse(bytes.NewReader(listing(t, "two_functions")))
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	functions := idx.Functions()
	assert.Equal(t, "A", functions[0].Name)
	assert.Equal(t, uint32(0x10), functions[0].Start)
	assert.Equal(t, uint32(0x20), functions[0].End)
	assert.Equal(t, "B", functions[1].Name)
	assert.Equal(t, uint32(0x20), functions[1].Start)
	assert.Equal(t, uint32(0x30), functions[1].End)

	// The last instruction of A is a call-style branch to B.
	instrs := functions[0].Instructions
	require.Equal(t, 4, len(instrs))
	assert.Equal(t, uint32(0x1f), instrs[3].Addr)
	assert.True(t, instrs[3].Instruction.IsBranch())
	assert.Equal(t, "B", instrs[3].Instruction.Dest)
	assert.False(t, instrs[0].Instruction.IsBranch())

	fn, ok := idx.Resolve(0x10)
	require.True(t, ok)
	assert.Equal(t, "A", fn.Name)

	fn, ok = idx.Resolve(0x1f)
	require.True(t, ok)
	assert.Equal(t, "A", fn.Name)

	fn, ok = idx.Resolve(0x20)
	require.True(t, ok)
	assert.Equal(t, "B", fn.Name)

	_, ok = idx.Resolve(0x30)
	assert.False(t, ok)

	callees, unresolved, err := idx.DirectCallees("A")
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	require.Equal(t, 1, len(callees))
	assert.Equal(t, "B", callees[0].Name)
}

func TestDirectCalleesDeduplicates(t *testing.T) {
	idx, err := Parse(bytes.NewReader(listing(t, "dedup")))
	require.NoError(t, err)

	callees, unresolved, err := idx.DirectCallees("C")
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	require.Equal(t, 2, len(callees))
	// Deduplicated by name, first-seen order.
	assert.Equal(t, "D", callees[0].Name)
	assert.Equal(t, "E", callees[1].Name)
}

func TestDirectCalleesUnresolved(t *testing.T) {
	idx, err := Parse(bytes.NewReader(listing(t, "unresolved_callee")))
	require.NoError(t, err)

	callees, unresolved, err := idx.DirectCallees("F")
	require.NoError(t, err)
	require.Equal(t, 1, len(callees))
	assert.Equal(t, "H", callees[0].Name)
	assert.Equal(t, []string{"G"}, unresolved)
}

func TestDirectCalleesUnknownFunction(t *testing.T) {
	idx, err := Parse(bytes.NewReader(listing(t, "two_functions")))
	require.NoError(t, err)

	_, _, err = idx.DirectCallees("missing")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestParseRejectsEmptyFunction(t *testing.T) {
	_, err := Parse(bytes.NewReader(listing(t, "empty_function")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFunction)
	assert.Contains(t, err.Error(), "I")
}

func TestParseRejectsOverlappingRanges(t *testing.T) {
	_, err := Parse(bytes.NewReader(listing(t, "overlapping")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlappingRanges)
}

func TestParseReportsBadAddressWithLine(t *testing.T) {
	_, err := Parse(bytes.NewReader(listing(t, "overflow_address")))
	require.Error(t, err)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Line)
}

func TestParseIgnoresInstructionsBeforeFirstHeader(t *testing.T) {
	content := " 10:\tb580      \tpush\t{r7, lr}\n" +
		"00000020 <B>:\n" +
		" 20:\t4770      \tbx\tlr\n"
	idx, err := Parse(bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
	assert.Equal(t, "B", idx.Functions()[0].Name)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("testdata/does_not_exist.asm")
	assert.Error(t, err)
}
