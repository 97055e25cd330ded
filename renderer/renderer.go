package renderer

import (
	"io"

	"github.com/embtrace/stackpaint/snapshot"
)

// Report bundles everything a renderer needs: the raw recorder state and the
// derived statistics of one monitoring run.
type Report struct {
	Recorder   *snapshot.Recorder      `json:"recorder"`
	Statistics *snapshot.RamStatistics `json:"statistics"`
}

// Renderer defines the interface for rendering a monitoring report in
// different formats.
type Renderer interface {
	// Render writes the report in the desired format to the provided writer.
	Render(report *Report, output io.Writer) error

	// Format returns the name of the output format (e.g., "json", "text").
	Format() string
}
