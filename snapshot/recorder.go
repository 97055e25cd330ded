package snapshot

import "time"

// Recorder stores a long, highly repetitive polling series compactly: every
// distinct snapshot variant is interned once, and the chronological series is
// a list of indices into the variant table. Stack usage is frequently stable
// between ticks, so storage is O(distinct states) for variants plus one small
// index per sample. A Recorder must be driven by a single goroutine.
type Recorder struct {
	Interval      time.Duration `json:"analyse_interval"`
	StaticRAMSize uint32        `json:"static_ram_size"`
	Variants      []RamSnapshot `json:"snapshot_variants"`
	Records       []int         `json:"records"`
}

// NewRecorder creates an empty recorder for one monitoring run.
func NewRecorder(staticRAMSize uint32, interval time.Duration) *Recorder {
	return &Recorder{
		Interval:      interval,
		StaticRAMSize: staticRAMSize,
	}
}

// Record appends one sample. If an interned variant equals s under the
// (UsedBytes, StackPtrOffset) key, its index is appended; otherwise s becomes
// a new variant. The first sample with a given key wins: later samples with
// the same key but different range evidence are recorded as that variant.
func (r *Recorder) Record(s RamSnapshot) {
	for i, v := range r.Variants {
		if v.Equal(s) {
			r.Records = append(r.Records, i)
			return
		}
	}
	r.Variants = append(r.Variants, s)
	r.Records = append(r.Records, len(r.Variants)-1)
}

// Samples returns the number of recorded samples.
func (r *Recorder) Samples() int {
	return len(r.Records)
}

// GetRecords returns a replay of the recorded series in chronological order.
// The replay does not mutate the recorder; multiple replays iterate
// independently.
func (r *Recorder) GetRecords() *Replay {
	return &Replay{recorder: r}
}

// Replay iterates the recorded series against the variant table.
type Replay struct {
	recorder *Recorder
	pos      int
}

// Next returns the next snapshot in chronological order, or false when the
// series is exhausted.
func (it *Replay) Next() (RamSnapshot, bool) {
	if it.pos == len(it.recorder.Records) {
		return RamSnapshot{}, false
	}
	s := it.recorder.Variants[it.recorder.Records[it.pos]]
	it.pos++
	return s, true
}

// Reset restarts the replay from the first sample.
func (it *Replay) Reset() {
	it.pos = 0
}
