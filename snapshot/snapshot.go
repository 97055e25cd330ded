// Package snapshot holds the RAM usage sample type, the deduplicating
// time-series recorder and the derived summary statistics.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// HexAddr is a uint32 address that serializes as a zero-padded "0x" hex
// string for operator-facing records.
type HexAddr uint32

func (a HexAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%08x", uint32(a)))
}

func (a *HexAddr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	*a = HexAddr(v)
	return nil
}

// Range is a half-open address range [Start, End).
type Range struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Len returns the number of bytes the range covers.
func (r Range) Len() uint32 {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%#08x..%#08x] len: %d", r.Start, r.End, r.Len())
}

// RamSnapshot is one sample of stack RAM usage. Ranges carry the touched
// address spans as evidence; they are deliberately excluded from the equality
// key so that the recorder's variant table stays bounded by distinct
// (UsedBytes, StackPtrOffset) states.
type RamSnapshot struct {
	UsedBytes      uint32  `json:"used_bytes"`
	StackPtrOffset uint32  `json:"stack_ptr_offset"`
	Ranges         []Range `json:"ranges"`
	InstrPtr       HexAddr `json:"instr_ptr"`
	Function       string  `json:"function"`
}

// Equal reports sample equality under the recorder's deduplication key.
func (s RamSnapshot) Equal(other RamSnapshot) bool {
	return s.UsedBytes == other.UsedBytes && s.StackPtrOffset == other.StackPtrOffset
}

// Compare orders snapshots by UsedBytes, then StackPtrOffset.
func (s RamSnapshot) Compare(other RamSnapshot) int {
	if s.UsedBytes != other.UsedBytes {
		if s.UsedBytes < other.UsedBytes {
			return -1
		}
		return 1
	}
	if s.StackPtrOffset != other.StackPtrOffset {
		if s.StackPtrOffset < other.StackPtrOffset {
			return -1
		}
		return 1
	}
	return 0
}

func (s RamSnapshot) String() string {
	ranges := make([]string, len(s.Ranges))
	for i, r := range s.Ranges {
		ranges[i] = r.String()
	}
	return fmt.Sprintf(
		"RamSnapshot { instruction: 0x%08x, used_bytes: %d, stack_ptr_offset: %d, ranges: [%s], function: %s }",
		uint32(s.InstrPtr), s.UsedBytes, s.StackPtrOffset, strings.Join(ranges, ", "), s.Function)
}
