// Package asmindex builds a queryable function table from a textual
// disassembly listing. It does not decode instructions; it only tracks
// addresses, function boundaries and call targets.
package asmindex

import (
	"errors"
	"fmt"
)

var (
	// ErrFunctionNotFound is returned by name lookups for absent functions.
	ErrFunctionNotFound = errors.New("function not found in index")

	// ErrEmptyFunction marks a function header with no instruction lines
	// before the next header or end of stream. Such a function has no
	// derivable address range.
	ErrEmptyFunction = errors.New("function has no instructions")

	// ErrOverlappingRanges marks two functions whose address ranges overlap.
	ErrOverlappingRanges = errors.New("function address ranges overlap")
)

// Instruction is one parsed instruction line. Dest is non-empty when the
// instruction is a call-style branch (`bl ... <target>`) and names the
// destination function.
type Instruction struct {
	Text string
	Dest string
}

// IsBranch reports whether the instruction is a call-style branch.
func (i Instruction) IsBranch() bool {
	return i.Dest != ""
}

// AddrInstruction pairs an instruction with its address.
type AddrInstruction struct {
	Addr        uint32
	Instruction Instruction
}

// Function is one function of the listing. Start is inclusive, End exclusive.
// Instructions are in increasing address order. Functions are immutable once
// the index is built.
type Function struct {
	Name         string
	Start        uint32
	End          uint32
	Instructions []AddrInstruction
}

// Contains reports whether addr falls inside the function's range.
func (f Function) Contains(addr uint32) bool {
	return addr >= f.Start && addr < f.End
}

// Index is an ordered, read-only collection of functions. Safe for shared
// read access once built.
type Index struct {
	functions []Function
}

// Len returns the number of indexed functions.
func (x *Index) Len() int {
	return len(x.functions)
}

// Functions returns a copy of the function table in listing order.
func (x *Index) Functions() []Function {
	out := make([]Function, len(x.functions))
	copy(out, x.functions)
	return out
}

// Resolve returns a copy of the function whose range contains addr. Live
// addresses routinely stray outside indexed ranges (library code, interrupt
// vectors), so a miss is an ordinary outcome, not an error.
func (x *Index) Resolve(addr uint32) (Function, bool) {
	for _, f := range x.functions {
		if f.Contains(addr) {
			return f, true
		}
	}
	return Function{}, false
}

// Lookup returns a copy of the function with the given name.
func (x *Index) Lookup(name string) (Function, bool) {
	for _, f := range x.functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// DirectCallees returns the functions directly called from name, deduplicated
// by destination name in first-seen order. Destinations named by a branch but
// absent from the index are returned in unresolved instead of failing the
// whole query. Only direct branches are inspected; callers needing full
// reachability must apply their own traversal on top.
func (x *Index) DirectCallees(name string) (callees []Function, unresolved []string, err error) {
	fn, ok := x.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%q: %w", name, ErrFunctionNotFound)
	}
	seen := make(map[string]bool)
	for _, ins := range fn.Instructions {
		if !ins.Instruction.IsBranch() {
			continue
		}
		dest := ins.Instruction.Dest
		if seen[dest] {
			continue
		}
		seen[dest] = true
		target, ok := x.Lookup(dest)
		if !ok {
			unresolved = append(unresolved, dest)
			continue
		}
		callees = append(callees, target)
	}
	return callees, unresolved, nil
}

// validate checks the invariants the parser cannot enforce structurally:
// ranges must be ascending and pairwise non-overlapping. Ranges are derived
// positionally from listing order, so a violation means a malformed listing.
func (x *Index) validate() error {
	for i := 1; i < len(x.functions); i++ {
		prev, cur := x.functions[i-1], x.functions[i]
		if cur.Start < prev.End {
			return fmt.Errorf("%q [%#x..%#x) and %q [%#x..%#x): %w",
				prev.Name, prev.Start, prev.End,
				cur.Name, cur.Start, cur.End,
				ErrOverlappingRanges)
		}
	}
	return nil
}
