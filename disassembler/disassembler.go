// Package disassembler renders a firmware ELF image to the textual listing
// the index parser consumes, by shelling out to objdump.
package disassembler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Objdump disassembles ELF images with an objdump binary. Tool overrides the
// binary name; when empty, the cross toolchain is preferred over the host
// objdump.
type Objdump struct {
	Tool string
}

// New returns an Objdump using the first objdump binary found on PATH.
func New() *Objdump {
	for _, tool := range []string{"arm-none-eabi-objdump", "llvm-objdump", "objdump"} {
		if _, err := exec.LookPath(tool); err == nil {
			return &Objdump{Tool: tool}
		}
	}
	return &Objdump{Tool: "objdump"}
}

// Disassemble writes the listing of target to outputPath and returns the
// path. When outputPath is empty, a file under the system temp directory is
// used.
func (o *Objdump) Disassemble(target, outputPath string) (string, error) {
	absPath, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path of target: %w", err)
	}

	//nolint:gosec
	cmd := exec.Command(o.Tool, "-d", absPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to disassemble %s: %w\nOutput:\n%s", target, err, string(output))
	}

	if outputPath == "" {
		outputPath = filepath.Join(os.TempDir(), "stackpaint_listing.asm")
	}
	absOutputPath, err := filepath.Abs(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path of output file: %w", err)
	}
	if err := os.WriteFile(absOutputPath, output, 0600); err != nil {
		return "", fmt.Errorf("failed to write listing: %w", err)
	}
	return absOutputPath, nil
}
