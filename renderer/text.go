// Package renderer provides a way to render monitoring reports in different
// formats.
package renderer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/embtrace/stackpaint/profile"
)

// TextRenderer formats the monitoring report in a structured text format.
type TextRenderer struct {
	profile *profile.TargetProfile
}

// NewTextRenderer creates a new instance of TextRenderer.
func NewTextRenderer(profile *profile.TargetProfile) Renderer {
	return &TextRenderer{profile: profile}
}

// Render formats and writes the monitoring report for operator consumption.
func (r *TextRenderer) Render(report *Report, output io.Writer) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05 UTC")
	rec := report.Recorder
	stats := report.Statistics

	var b strings.Builder

	b.WriteString("==============================\n")
	b.WriteString("Stack Paint Analysis Report\n")
	b.WriteString("==============================\n\n")
	b.WriteString(fmt.Sprintf("Chip: %s\n", r.profile.Chip))
	b.WriteString(fmt.Sprintf("Language: %s\n", r.profile.Language))
	b.WriteString(fmt.Sprintf("Timestamp: %s\n", timestamp))
	b.WriteString(fmt.Sprintf("Interval: %s\n", rec.Interval))
	b.WriteString(fmt.Sprintf("Static RAM size: %d bytes\n\n", rec.StaticRAMSize))

	b.WriteString("------------------------------\n")
	b.WriteString("Summary\n")
	b.WriteString("------------------------------\n")
	b.WriteString(fmt.Sprintf("Samples: %d\n", rec.Samples()))
	b.WriteString(fmt.Sprintf("Distinct states: %d\n", len(rec.Variants)))
	b.WriteString(fmt.Sprintf("Max memory usage: %d bytes\n", stats.MaxMemUsage))
	b.WriteString(fmt.Sprintf("Max stack pointer offset: %d bytes\n", stats.MaxStackPtrOffset))
	b.WriteString(fmt.Sprintf("Median stack pointer offset: %d bytes\n\n", stats.MedianStackPtrOffset))

	b.WriteString("------------------------------\n")
	b.WriteString("Snapshot variants\n")
	b.WriteString("------------------------------\n")
	for i, v := range rec.Variants {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, v.String()))
		for _, rg := range v.Ranges {
			b.WriteString(fmt.Sprintf("   %s\n", rg.String()))
		}
	}
	b.WriteString("\n")

	b.WriteString("------------------------------\n")
	b.WriteString("Courses\n")
	b.WriteString("------------------------------\n")
	b.WriteString(fmt.Sprintf("Stack pointer offset: %s\n", formatCourse(stats.StackPtrCourse)))
	b.WriteString(fmt.Sprintf("Memory usage: %s\n", formatCourse(stats.MemUsageCourse)))
	b.WriteString("End of Report\n")

	_, err := output.Write([]byte(b.String()))
	return err
}

func formatCourse(course []uint32) string {
	parts := make([]string, len(course))
	for i, v := range course {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Format returns the format type.
func (r *TextRenderer) Format() string {
	return "text"
}
