package asmindex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var (
	// Line shapes of an objdump-style listing.
	functionHeaderRegex = regexp.MustCompile(`^([0-9a-fA-F]+) <(.+)>:$`)
	instructionRegex    = regexp.MustCompile(`^ ([0-9a-fA-F]+):\t(.*)$`)
	branchRegex         = regexp.MustCompile(`.+\tbl.+<(.+)>`)
)

// ParseError reports a malformed listing line. Line numbers start at 1.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("listing line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// accumulator collects the instructions of the function currently open while
// scanning the listing.
type accumulator struct {
	name         string
	start        uint32
	instructions []AddrInstruction
}

// complete closes the accumulator into a Function. The range end is the
// address of the last instruction + 1, so a function without instructions
// cannot be completed.
func (a *accumulator) complete() (Function, error) {
	if len(a.instructions) == 0 {
		return Function{}, fmt.Errorf("%q at %#x: %w", a.name, a.start, ErrEmptyFunction)
	}
	return Function{
		Name:         a.name,
		Start:        a.start,
		End:          a.instructions[len(a.instructions)-1].Addr + 1,
		Instructions: a.instructions,
	}, nil
}

// ParseFile parses the listing at path into an Index.
func ParseFile(path string) (*Index, error) {
	fpath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error resolving absolute filepath: %w", err)
	}
	file, err := os.Open(fpath)
	if err != nil {
		return nil, fmt.Errorf("error opening listing: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Parse(file)
}

// Parse reads a line-oriented disassembly listing and builds the function
// table. Lines matching neither shape are ignored, as are instruction lines
// appearing before the first function header.
func Parse(r io.Reader) (*Index, error) {
	idx := &Index{}
	var open *accumulator

	finalize := func() error {
		if open == nil {
			return nil
		}
		fn, err := open.complete()
		if err != nil {
			return err
		}
		idx.functions = append(idx.functions, fn)
		open = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		switch {
		case functionHeaderRegex.MatchString(line):
			matches := functionHeaderRegex.FindStringSubmatch(line)
			addr, err := parseAddr(matches[1], lineNum)
			if err != nil {
				return nil, err
			}
			if err := finalize(); err != nil {
				return nil, err
			}
			open = &accumulator{name: matches[2], start: addr}
		case instructionRegex.MatchString(line):
			matches := instructionRegex.FindStringSubmatch(line)
			addr, err := parseAddr(matches[1], lineNum)
			if err != nil {
				return nil, err
			}
			if open != nil {
				open.instructions = append(open.instructions, AddrInstruction{
					Addr:        addr,
					Instruction: parseInstruction(matches[2]),
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineNum + 1, Err: fmt.Errorf("reading listing: %w", err)}
	}
	if err := finalize(); err != nil {
		return nil, err
	}
	if err := idx.validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// parseInstruction classifies an instruction line body. A call-style branch
// names its destination function in angle brackets.
func parseInstruction(text string) Instruction {
	if matches := branchRegex.FindStringSubmatch(text); matches != nil {
		return Instruction{Text: text, Dest: matches[1]}
	}
	return Instruction{Text: text}
}

func parseAddr(field string, line int) (uint32, error) {
	addr, err := strconv.ParseUint(field, 16, 32)
	if err != nil {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("invalid address %q: %w", field, err)}
	}
	return uint32(addr), nil
}
