package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInternsByPartialKey(t *testing.T) {
	rec := NewRecorder(0x2000, 100*time.Millisecond)

	// Identical (used bytes, offset) key, differing range evidence.
	rec.Record(RamSnapshot{UsedBytes: 64, StackPtrOffset: 32,
		Ranges: []Range{{Start: 0x100, End: 0x140}}})
	rec.Record(RamSnapshot{UsedBytes: 64, StackPtrOffset: 32,
		Ranges: []Range{{Start: 0x110, End: 0x150}}})
	rec.Record(RamSnapshot{UsedBytes: 64, StackPtrOffset: 32,
		Ranges: []Range{{Start: 0x120, End: 0x160}}})

	assert.Equal(t, 1, len(rec.Variants))
	assert.Equal(t, []int{0, 0, 0}, rec.Records)
	assert.Equal(t, 3, rec.Samples())
}

func TestRecordDistinctVariants(t *testing.T) {
	rec := NewRecorder(0x2000, 100*time.Millisecond)
	rec.Record(RamSnapshot{UsedBytes: 10, StackPtrOffset: 8})
	rec.Record(RamSnapshot{UsedBytes: 20, StackPtrOffset: 8})
	rec.Record(RamSnapshot{UsedBytes: 10, StackPtrOffset: 8})
	rec.Record(RamSnapshot{UsedBytes: 10, StackPtrOffset: 16})

	assert.Equal(t, 3, len(rec.Variants))
	assert.Equal(t, []int{0, 1, 0, 2}, rec.Records)
}

func TestReplayPreservesOrderAndRestarts(t *testing.T) {
	rec := NewRecorder(0x2000, 100*time.Millisecond)
	rec.Record(RamSnapshot{UsedBytes: 10, StackPtrOffset: 8})
	rec.Record(RamSnapshot{UsedBytes: 20, StackPtrOffset: 8})
	rec.Record(RamSnapshot{UsedBytes: 10, StackPtrOffset: 8})

	replay := rec.GetRecords()
	var course []uint32
	for s, ok := replay.Next(); ok; s, ok = replay.Next() {
		course = append(course, s.UsedBytes)
	}
	assert.Equal(t, []uint32{10, 20, 10}, course)

	// Replay is restartable and independent.
	replay.Reset()
	first, ok := replay.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(10), first.UsedBytes)

	other := rec.GetRecords()
	s, ok := other.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(10), s.UsedBytes)
}

func TestRecorderJSONRoundTrip(t *testing.T) {
	rec := NewRecorder(0x1800, 100*time.Millisecond)
	rec.Record(RamSnapshot{
		UsedBytes:      64,
		StackPtrOffset: 32,
		Ranges:         []Range{{Start: 0x20001000, End: 0x20001040}},
		InstrPtr:       HexAddr(0x08000198),
		Function:       "main",
	})

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"instr_ptr":"0x08000198"`)

	var decoded Recorder
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec.Interval, decoded.Interval)
	assert.Equal(t, rec.StaticRAMSize, decoded.StaticRAMSize)
	require.Equal(t, 1, len(decoded.Variants))
	assert.Equal(t, HexAddr(0x08000198), decoded.Variants[0].InstrPtr)
	assert.Equal(t, rec.Records, decoded.Records)
}
