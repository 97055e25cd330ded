package ramscan

import (
	"fmt"

	"github.com/embtrace/stackpaint/probe"
)

// CPUSnapshot is a lightweight sample: registers only, no byte walk. Used by
// the tight timed measuring loop where a full scan would distort timing.
type CPUSnapshot struct {
	InstrPtr       uint32 `json:"instr_ptr"`
	StackPtrOffset uint32 `json:"stack_ptr_offset"`
	Function       string `json:"function"`
}

// ProbeCPU reads the stack pointer and program counter under the scoped-halt
// contract and resolves the program counter through the index.
func (s *Scanner) ProbeCPU(stackTop uint32) (CPUSnapshot, error) {
	var snap CPUSnapshot
	err := probe.WithHalted(s.Core, func(core probe.Core) error {
		stackPtr, err := core.ReadRegister(probe.RegSP)
		if err != nil {
			return fmt.Errorf("reading stack pointer: %w", err)
		}
		instrPtr, err := core.ReadRegister(probe.RegPC)
		if err != nil {
			return fmt.Errorf("reading program counter: %w", err)
		}
		snap.InstrPtr = instrPtr
		snap.StackPtrOffset = stackTop - stackPtr
		snap.Function = UnresolvedFunction
		if fn, ok := s.Index.Resolve(instrPtr); ok {
			snap.Function = fn.Name
		}
		return nil
	})
	return snap, err
}
