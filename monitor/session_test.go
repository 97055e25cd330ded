package monitor

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embtrace/stackpaint/asmindex"
	"github.com/embtrace/stackpaint/probe/sim"
	"github.com/embtrace/stackpaint/ramscan"
	"github.com/embtrace/stackpaint/snapshot"
)

const (
	ramStart = uint32(0x20000000)
	ramEnd   = uint32(0x20000200)
	stackTop = ramEnd
)

func testIndex(t *testing.T) *asmindex.Index {
	t.Helper()
	listing := "00000010 <main>:\n" +
		" 10:\tb580      \tpush\t{r7, lr}\n" +
		" 14:\t4770      \tbx\tlr\n" +
		"00000020 <loop>:\n" +
		" 20:\tb580      \tpush\t{r7, lr}\n" +
		" 24:\t4770      \tbx\tlr\n"
	idx, err := asmindex.Parse(bytes.NewReader([]byte(listing)))
	require.NoError(t, err)
	return idx
}

func testSession(t *testing.T) (*Session, *sim.Target) {
	t.Helper()
	target := sim.New(ramStart, ramEnd)
	require.NoError(t, ramscan.Paint(target, ramStart, ramEnd, ramscan.Sentinel))
	target.SetRegisters(stackTop, 0x10)
	target.SimulateStack(stackTop, []sim.Frame{
		{PC: 0x10, Size: 32},
		{PC: 0x20, Size: 32},
	}, ramscan.Sentinel)

	index := testIndex(t)
	session := &Session{
		Core:     target,
		Scanner:  ramscan.New(target, index),
		Recorder: snapshot.NewRecorder(ramEnd-stackTop, time.Millisecond),
		StackTop: stackTop,
		Interval: time.Millisecond,
		Deadline: 20 * time.Millisecond,
		Input:    strings.NewReader(""),
		Logger:   zerolog.Nop(),
	}
	return session, target
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"looping", "stepping", "single-shot", "loop-measure"} {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, Mode(name), mode)
	}
	_, err := ParseMode("warp")
	assert.Error(t, err)
}

func TestLoopingRecordsSamples(t *testing.T) {
	session, _ := testSession(t)
	require.NoError(t, session.Run(ModeLooping))

	assert.Greater(t, session.Recorder.Samples(), 0)
	stats, err := session.Recorder.CalculateStatistics()
	require.NoError(t, err)
	assert.Greater(t, stats.MaxMemUsage, uint32(0))
}

func TestSteppingStopsOnContinue(t *testing.T) {
	session, _ := testSession(t)
	session.Input = strings.NewReader("\n\nc\n")
	require.NoError(t, session.Run(ModeStepping))

	// One sample per step: two empty lines plus the terminating "c".
	assert.Equal(t, 3, session.Recorder.Samples())
}

func TestSingleShotNeedsStartAddr(t *testing.T) {
	session, _ := testSession(t)
	err := session.Run(ModeSingleShot)
	assert.Error(t, err)
}

func TestSingleShotRecordsBeforeAndAfter(t *testing.T) {
	session, _ := testSession(t)
	start := uint32(0x20)
	session.StartAddr = &start
	require.NoError(t, session.Run(ModeSingleShot))
	assert.Equal(t, 2, session.Recorder.Samples())
}

func TestLoopMeasureCollectsCPUSamples(t *testing.T) {
	session, _ := testSession(t)
	start := uint32(0x10)
	session.StartAddr = &start
	require.NoError(t, session.Run(ModeLoopMeasure))
	assert.Greater(t, len(session.CPURecords), 0)
	assert.Equal(t, 0, session.Recorder.Samples())
}
