package asmindex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cyclicListing = "00000010 <A>:\n" +
	" 10:\tf000 f806 \tbl\t20 <B>\n" +
	" 14:\t4770      \tbx\tlr\n" +
	"00000020 <B>:\n" +
	" 20:\tf000 f806 \tbl\t30 <C>\n" +
	" 24:\tf7ff fffe \tbl\t10 <A>\n" +
	" 28:\tf000 f800 \tbl\t40 <X>\n" +
	" 2c:\t4770      \tbx\tlr\n" +
	"00000030 <C>:\n" +
	" 30:\t4770      \tbx\tlr\n"

func TestReachableHandlesCycles(t *testing.T) {
	idx, err := Parse(bytes.NewReader([]byte(cyclicListing)))
	require.NoError(t, err)

	callees, unresolved, err := idx.Reachable("A")
	require.NoError(t, err)

	names := make([]string, len(callees))
	for i, fn := range callees {
		names[i] = fn.Name
	}
	// B via the direct edge, C via B, and A itself through the back edge.
	assert.ElementsMatch(t, []string{"A", "B", "C"}, names)
	assert.Equal(t, []string{"X"}, unresolved)
}

func TestReachableLeaf(t *testing.T) {
	idx, err := Parse(bytes.NewReader([]byte(cyclicListing)))
	require.NoError(t, err)

	callees, unresolved, err := idx.Reachable("C")
	require.NoError(t, err)
	assert.Empty(t, callees)
	assert.Empty(t, unresolved)
}

func TestReachableUnknownRoot(t *testing.T) {
	idx, err := Parse(bytes.NewReader([]byte(cyclicListing)))
	require.NoError(t, err)

	_, _, err = idx.Reachable("missing")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}
