// Package probe defines the memory/register access boundary of a debug-probe
// session. The real probe driver is an external collaborator; only the
// capability the scanner needs is specified here.
package probe

import "errors"

// ErrUnmapped is returned by ReadByte for addresses outside mapped memory.
// The scanner treats it as "reached the bottom of stack usage".
var ErrUnmapped = errors.New("address not mapped")

// Register identifies a core register readable through the probe.
type Register int

const (
	RegSP Register = iota // stack pointer
	RegPC                 // program counter
)

// Core is the halt/run and memory/register access capability of one target
// execution core. All calls may block on hardware I/O. Implementations are
// not safe for concurrent use; a scan and its bracketing halt/resume must be
// driven by one goroutine.
type Core interface {
	ReadByte(addr uint32) (byte, error)
	WriteByte(addr uint32, value byte) error
	ReadRegister(reg Register) (uint32, error)

	Halt() error
	Run() error
	Step() error
	Halted() (bool, error)

	// RunTo resumes execution until addr is hit (hardware breakpoint).
	RunTo(addr uint32) error
}

// WithHalted runs fn with the core halted and restores the prior run state on
// every exit path. The discipline is reentrant: only the state observed on
// entry is restored, so nested accesses never leave the target in a different
// run state than they found it.
func WithHalted(core Core, fn func(Core) error) (err error) {
	wasHalted, err := core.Halted()
	if err != nil {
		return err
	}
	if !wasHalted {
		if err := core.Halt(); err != nil {
			return err
		}
		defer func() {
			if rerr := core.Run(); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}
	return fn(core)
}
