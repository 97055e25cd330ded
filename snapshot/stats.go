package snapshot

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoSamples is returned when statistics are requested over an empty
// record list. An empty input is a contract violation, not a silent zero.
var ErrNoSamples = errors.New("no samples recorded")

// RamStatistics is the derived, read-only summary of one monitoring run.
// The course slices preserve sample order.
type RamStatistics struct {
	MedianStackPtrOffset uint32   `json:"median_stack_ptr_offset"`
	MaxStackPtrOffset    uint32   `json:"max_stack_ptr_offset"`
	MaxMemUsage          uint32   `json:"max_mem_usage"`
	StackPtrCourse       []uint32 `json:"stack_ptr_course"`
	MemUsageCourse       []uint32 `json:"mem_usage_course"`
}

// CalculateStatistics derives summary statistics over the full chronological
// series: median and maximum stack-pointer offset, maximum memory usage, and
// both signal courses.
func (r *Recorder) CalculateStatistics() (*RamStatistics, error) {
	if len(r.Records) == 0 {
		return nil, ErrNoSamples
	}

	stackPtrCourse := make([]uint32, len(r.Records))
	memUsageCourse := make([]uint32, len(r.Records))
	for i, idx := range r.Records {
		stackPtrCourse[i] = r.Variants[idx].StackPtrOffset
		memUsageCourse[i] = r.Variants[idx].UsedBytes
	}

	sortedOffsets := append([]uint32(nil), stackPtrCourse...)
	sort.Slice(sortedOffsets, func(i, j int) bool { return sortedOffsets[i] < sortedOffsets[j] })
	median, err := percentileOfSorted(sortedOffsets, 50.0)
	if err != nil {
		return nil, err
	}

	sortedUsage := append([]uint32(nil), memUsageCourse...)
	sort.Slice(sortedUsage, func(i, j int) bool { return sortedUsage[i] < sortedUsage[j] })

	return &RamStatistics{
		MedianStackPtrOffset: median,
		MaxStackPtrOffset:    sortedOffsets[len(sortedOffsets)-1],
		MaxMemUsage:          sortedUsage[len(sortedUsage)-1],
		StackPtrCourse:       stackPtrCourse,
		MemUsageCourse:       memUsageCourse,
	}, nil
}

// percentileOfSorted extracts the pct percentile of a sorted sample set using
// linear interpolation at rank (pct/100)*(n-1); the interpolated term is
// truncated to keep the fixed-point semantics of the recorded signals.
// Unsorted input yields a nonsensical value.
func percentileOfSorted(sorted []uint32, pct float64) (uint32, error) {
	if len(sorted) == 0 {
		return 0, ErrNoSamples
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentile %v out of range [0, 100]", pct)
	}
	if len(sorted) == 1 {
		return sorted[0], nil
	}
	if pct == 100 {
		return sorted[len(sorted)-1], nil
	}
	rank := (pct / 100) * float64(len(sorted)-1)
	lrank := int(rank)
	d := rank - float64(lrank)
	lo := sorted[lrank]
	hi := sorted[lrank+1]
	return lo + uint32(float64(hi-lo)*d), nil
}
