// Package monitor drives the polling loop of a measuring run: halt, scan,
// resume, sleep, repeat. The loop is single-threaded and poll-driven; its
// only termination mechanism is the wall-clock deadline owned here, not by
// the scanner.
package monitor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/embtrace/stackpaint/probe"
	"github.com/embtrace/stackpaint/ramscan"
	"github.com/embtrace/stackpaint/snapshot"
)

// Mode selects how a session samples the target.
type Mode string

const (
	// ModeLooping scans on the polling interval until the deadline.
	ModeLooping Mode = "looping"
	// ModeStepping single-steps under operator control, scanning after
	// every step.
	ModeStepping Mode = "stepping"
	// ModeSingleShot scans once, runs to the start address, scans again.
	ModeSingleShot Mode = "single-shot"
	// ModeLoopMeasure samples registers only on a tight timed loop.
	ModeLoopMeasure Mode = "loop-measure"
)

// ParseMode validates a mode name from the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLooping, ModeStepping, ModeSingleShot, ModeLoopMeasure:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown analysis mode %q", s)
	}
}

// Session owns one measuring run. It must be driven by a single goroutine.
type Session struct {
	Core     probe.Core
	Scanner  *ramscan.Scanner
	Recorder *snapshot.Recorder

	StackTop  uint32
	Interval  time.Duration
	Deadline  time.Duration
	StartAddr *uint32

	// Input supplies operator commands in stepping mode.
	Input io.Reader
	// Broadcaster, when set, receives every snapshot as it is recorded.
	Broadcaster *Broadcaster

	Logger zerolog.Logger

	// CPURecords holds the samples of a loop-measure run.
	CPURecords []ramscan.CPUSnapshot
}

// Run executes the selected analysis mode to completion.
func (s *Session) Run(mode Mode) error {
	s.Logger.Info().Str("mode", string(mode)).Msg("start measuring")
	switch mode {
	case ModeLooping:
		return s.runLooping()
	case ModeStepping:
		return s.runStepping()
	case ModeSingleShot:
		return s.runSingleShot()
	case ModeLoopMeasure:
		return s.runLoopMeasure()
	default:
		return fmt.Errorf("unknown analysis mode %q", mode)
	}
}

func (s *Session) runLooping() error {
	if s.StartAddr != nil {
		if err := s.Core.RunTo(*s.StartAddr); err != nil {
			return fmt.Errorf("running to start address %#x: %w", *s.StartAddr, err)
		}
	}
	if err := s.resumeIfHalted(); err != nil {
		return err
	}

	start := time.Now()
	for {
		if err := s.sample(); err != nil {
			return err
		}
		time.Sleep(s.Interval)
		if time.Since(start) > s.Deadline {
			return nil
		}
	}
}

func (s *Session) runStepping() error {
	if s.StartAddr != nil {
		if err := s.Core.RunTo(*s.StartAddr); err != nil {
			return fmt.Errorf("running to start address %#x: %w", *s.StartAddr, err)
		}
	}

	input := bufio.NewScanner(s.Input)
	for {
		if err := s.Core.Step(); err != nil {
			return fmt.Errorf("stepping: %w", err)
		}
		if err := s.sample(); err != nil {
			return err
		}
		if !input.Scan() {
			return input.Err()
		}
		if strings.HasPrefix(input.Text(), "c") {
			return nil
		}
	}
}

func (s *Session) runSingleShot() error {
	if s.StartAddr == nil {
		return fmt.Errorf("single-shot mode needs a start address")
	}

	before, err := s.Scanner.Scan(s.StackTop)
	if err != nil {
		return err
	}
	s.Recorder.Record(before)
	s.Logger.Info().Stringer("snapshot", before).Msg("start stack usage")

	if err := s.Core.RunTo(*s.StartAddr); err != nil {
		return fmt.Errorf("running to start address %#x: %w", *s.StartAddr, err)
	}

	after, err := s.Scanner.Scan(s.StackTop)
	if err != nil {
		return err
	}
	s.Recorder.Record(after)
	s.Logger.Info().Stringer("snapshot", after).Msg("at point stack usage")
	return nil
}

func (s *Session) runLoopMeasure() error {
	if s.StartAddr == nil {
		return fmt.Errorf("loop-measure mode needs a start address")
	}
	if err := s.Core.RunTo(*s.StartAddr); err != nil {
		return fmt.Errorf("running to start address %#x: %w", *s.StartAddr, err)
	}
	if err := s.resumeIfHalted(); err != nil {
		return err
	}

	start := time.Now()
	for {
		snap, err := s.Scanner.ProbeCPU(s.StackTop)
		if err != nil {
			return err
		}
		s.CPURecords = append(s.CPURecords, snap)
		s.Logger.Debug().
			Uint32("stack_ptr_offset", snap.StackPtrOffset).
			Str("function", snap.Function).
			Msg("cpu sample")
		time.Sleep(s.Interval)
		if time.Since(start) > s.Deadline {
			return nil
		}
	}
}

// sample takes one full scan, records it and broadcasts it.
func (s *Session) sample() error {
	snap, err := s.Scanner.Scan(s.StackTop)
	if err != nil {
		return err
	}
	s.Recorder.Record(snap)
	s.Logger.Debug().
		Uint32("used_bytes", snap.UsedBytes).
		Uint32("stack_ptr_offset", snap.StackPtrOffset).
		Str("function", snap.Function).
		Msg("sample")
	if s.Broadcaster != nil {
		s.Broadcaster.Publish(snap)
	}
	return nil
}

func (s *Session) resumeIfHalted() error {
	halted, err := s.Core.Halted()
	if err != nil {
		return err
	}
	if halted {
		if err := s.Core.Run(); err != nil {
			return fmt.Errorf("resuming target: %w", err)
		}
	}
	return nil
}
