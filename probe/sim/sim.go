// Package sim provides an in-memory target core. It backs the test suite and
// the --driver=sim path of the monitor command; a hardware probe session
// plugs in behind the same probe.Core interface.
package sim

import (
	"fmt"

	"github.com/embtrace/stackpaint/probe"
)

// Target simulates one execution core with a single RAM region.
type Target struct {
	ramStart uint32
	ram      []byte

	sp     uint32
	pc     uint32
	halted bool

	// OnResume, when set, is invoked on every transition from halted to
	// running. It lets a workload mutate memory and registers between
	// polling ticks.
	OnResume func(t *Target)
}

// New creates a halted target with a zeroed RAM region [ramStart, ramEnd).
func New(ramStart, ramEnd uint32) *Target {
	return &Target{
		ramStart: ramStart,
		ram:      make([]byte, ramEnd-ramStart),
		halted:   true,
	}
}

// RAMStart returns the first mapped RAM address.
func (t *Target) RAMStart() uint32 { return t.ramStart }

// RAMEnd returns the first address past mapped RAM.
func (t *Target) RAMEnd() uint32 { return t.ramStart + uint32(len(t.ram)) }

// SetRegisters places the stack pointer and program counter.
func (t *Target) SetRegisters(sp, pc uint32) {
	t.sp = sp
	t.pc = pc
}

func (t *Target) ReadByte(addr uint32) (byte, error) {
	if addr < t.ramStart || addr >= t.RAMEnd() {
		return 0, fmt.Errorf("read at %#08x: %w", addr, probe.ErrUnmapped)
	}
	return t.ram[addr-t.ramStart], nil
}

func (t *Target) WriteByte(addr uint32, value byte) error {
	if addr < t.ramStart || addr >= t.RAMEnd() {
		return fmt.Errorf("write at %#08x: %w", addr, probe.ErrUnmapped)
	}
	t.ram[addr-t.ramStart] = value
	return nil
}

func (t *Target) ReadRegister(reg probe.Register) (uint32, error) {
	switch reg {
	case probe.RegSP:
		return t.sp, nil
	case probe.RegPC:
		return t.pc, nil
	default:
		return 0, fmt.Errorf("unknown register %d", reg)
	}
}

func (t *Target) Halt() error {
	t.halted = true
	return nil
}

func (t *Target) Run() error {
	if t.halted && t.OnResume != nil {
		t.OnResume(t)
	}
	t.halted = false
	return nil
}

func (t *Target) Step() error {
	if t.OnResume != nil {
		t.OnResume(t)
	}
	return nil
}

func (t *Target) Halted() (bool, error) {
	return t.halted, nil
}

func (t *Target) RunTo(addr uint32) error {
	if err := t.Run(); err != nil {
		return err
	}
	t.pc = addr
	return t.Halt()
}

var _ probe.Core = (*Target)(nil)
