// Package ramscan walks painted stack memory from the stack top downward and
// reconstructs which address ranges the firmware has touched.
package ramscan

import (
	"fmt"

	"github.com/embtrace/stackpaint/asmindex"
	"github.com/embtrace/stackpaint/probe"
	"github.com/embtrace/stackpaint/snapshot"
)

const (
	// Sentinel is the paint byte written to RAM before firmware execution.
	Sentinel byte = 0x55

	// MergeThreshold is the longest run of sentinel-valued bytes tolerated
	// inside an open range. Isolated sentinel-valued data bytes occur in
	// otherwise-used regions.
	MergeThreshold = 20

	// AbortThreshold is the untouched-run length interpreted as the bottom
	// of stack usage.
	AbortThreshold = 128

	// UnresolvedFunction labels samples whose program counter has no owning
	// function in the index. Live addresses routinely stray outside indexed
	// ranges (library code, interrupt vectors).
	UnresolvedFunction = "<unresolved>"
)

// Scanner samples stack RAM usage through a probe core, labelling each sample
// with the function owning the current program counter. The zero thresholds
// are replaced by the package defaults.
type Scanner struct {
	Core  probe.Core
	Index *asmindex.Index

	Sentinel       byte
	MergeThreshold int
	AbortThreshold int
}

// New creates a scanner with the default sentinel and thresholds.
func New(core probe.Core, index *asmindex.Index) *Scanner {
	return &Scanner{
		Core:           core,
		Index:          index,
		Sentinel:       Sentinel,
		MergeThreshold: MergeThreshold,
		AbortThreshold: AbortThreshold,
	}
}

// usedRange accumulates one touched span while scanning downward. start is
// the first (highest) touched address seen.
type usedRange struct {
	start uint32
}

// complete closes the span into a range with the lower bound as end; the scan
// walks from high to low addresses.
func (r usedRange) complete(end uint32) snapshot.Range {
	return snapshot.Range{Start: end, End: r.start}
}

// Scan walks addresses from one below stackTop, strictly decreasing, one byte
// per step, and returns one populated sample. The walk runs with the core
// halted; a core already halted on entry is left halted on exit.
func (s *Scanner) Scan(stackTop uint32) (snapshot.RamSnapshot, error) {
	merge := s.MergeThreshold
	if merge == 0 {
		merge = MergeThreshold
	}
	abort := s.AbortThreshold
	if abort == 0 {
		abort = AbortThreshold
	}
	sentinel := s.Sentinel
	if sentinel == 0 {
		sentinel = Sentinel
	}

	var snap snapshot.RamSnapshot
	err := probe.WithHalted(s.Core, func(core probe.Core) error {
		var (
			ranges    []snapshot.Range
			open      *usedRange
			noise     int // length of the current untouched run
			usedBytes uint32
		)
		addr := stackTop - 1
		for {
			b, err := core.ReadByte(addr)
			if err != nil {
				// Unmapped or inaccessible: no more frames below. The
				// lowest touched byte sits above the pending noise run.
				if open != nil {
					ranges = append(ranges, open.complete(addr+1+uint32(noise)))
					open = nil
				}
				break
			}
			if b != sentinel {
				usedBytes++
				if open == nil {
					open = &usedRange{start: addr}
				}
				noise = 0
			} else {
				noise++
				if open != nil && noise > merge {
					// The merge window ran out: close the range,
					// compensating its lower bound for the trailing
					// untouched bytes.
					ranges = append(ranges, open.complete(addr+uint32(noise)))
					open = nil
				}
				if noise > abort {
					if open != nil {
						ranges = append(ranges, open.complete(addr+uint32(noise)))
					}
					break
				}
			}
			addr--
		}

		// Ranges were discovered top-down; report them ascending.
		for i, j := 0, len(ranges)-1; i < j; i, j = i+1, j-1 {
			ranges[i], ranges[j] = ranges[j], ranges[i]
		}

		stackPtr, err := core.ReadRegister(probe.RegSP)
		if err != nil {
			return fmt.Errorf("reading stack pointer: %w", err)
		}
		instrPtr, err := core.ReadRegister(probe.RegPC)
		if err != nil {
			return fmt.Errorf("reading program counter: %w", err)
		}

		function := UnresolvedFunction
		if fn, ok := s.Index.Resolve(instrPtr); ok {
			function = fn.Name
		}

		snap = snapshot.RamSnapshot{
			UsedBytes:      usedBytes,
			StackPtrOffset: stackTop - stackPtr,
			Ranges:         ranges,
			InstrPtr:       snapshot.HexAddr(instrPtr),
			Function:       function,
		}
		return nil
	})
	if err != nil {
		return snapshot.RamSnapshot{}, err
	}
	return snap, nil
}

// Paint writes the sentinel to every byte of [lo, hi). It must run before
// firmware execution begins so that later scans can tell touched bytes apart.
func Paint(core probe.Core, lo, hi uint32, sentinel byte) error {
	for addr := lo; addr < hi; addr++ {
		if err := core.WriteByte(addr, sentinel); err != nil {
			return fmt.Errorf("painting %#08x: %w", addr, err)
		}
	}
	return nil
}
