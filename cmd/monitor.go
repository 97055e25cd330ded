// Package cmd defines all the commands for the cli
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/embtrace/stackpaint/asmindex"
	"github.com/embtrace/stackpaint/disassembler"
	"github.com/embtrace/stackpaint/firmware"
	"github.com/embtrace/stackpaint/monitor"
	"github.com/embtrace/stackpaint/probe"
	"github.com/embtrace/stackpaint/probe/sim"
	"github.com/embtrace/stackpaint/profile"
	"github.com/embtrace/stackpaint/ramscan"
	"github.com/embtrace/stackpaint/renderer"
	"github.com/embtrace/stackpaint/snapshot"
)

var (
	ProfileFlag = &cli.PathFlag{
		Name:     "profile",
		Usage:    "Path to the target profile config file",
		Required: true,
	}
	ListingFlag = &cli.PathFlag{
		Name:     "listing",
		Usage:    "Path to the disassembly listing of the firmware. Generated with objdump from the firmware image when omitted",
		Required: false,
	}
	FirmwareFlag = &cli.PathFlag{
		Name:     "firmware",
		Usage:    "Path to the firmware ELF image. Supplies the stack-top address",
		Required: false,
	}
	ModeFlag = &cli.StringFlag{
		Name:  "mode",
		Usage: "Analysis mode. Options: looping, stepping, single-shot, loop-measure",
		Value: "looping",
	}
	StartAddrFlag = &cli.StringFlag{
		Name:     "start-addr",
		Usage:    "Hex address to run to before measurement begins",
		Required: false,
	}
	NoFlashFlag = &cli.BoolFlag{
		Name:  "no-flash",
		Usage: "Skip flashing; only reset and halt the target",
	}
	FormatFlag = &cli.StringFlag{
		Name:        "format",
		Usage:       "format of the report. Options: json, text",
		Required:    false,
		DefaultText: "text",
	}
	ReportOutputPathFlag = &cli.PathFlag{
		Name:     "report-output-path",
		Usage:    "output file path for report. Default: stdout",
		Required: false,
	}
	RecordOutputPathFlag = &cli.PathFlag{
		Name:  "record-output-path",
		Usage: "output file path for the raw recorder state",
		Value: "record.json",
	}
	VerboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log every sample",
	}
)

func CreateMonitorCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "monitor",
		Usage:       "Measures stack RAM usage of a running firmware image",
		Description: "Measures stack RAM usage of a running firmware image",
		Action:      action,
		Flags: []cli.Flag{
			ProfileFlag,
			ListingFlag,
			FirmwareFlag,
			ModeFlag,
			StartAddrFlag,
			NoFlashFlag,
			FormatFlag,
			ReportOutputPathFlag,
			RecordOutputPathFlag,
			VerboseFlag,
		},
	}
}

var MonitorCommand = CreateMonitorCommand(Monitor)

func Monitor(ctx *cli.Context) error {
	logger := newLogger(ctx.Bool(VerboseFlag.Name))

	prof, err := profile.LoadProfile(ctx.Path(ProfileFlag.Name))
	if err != nil {
		return fmt.Errorf("error loading profile: %w", err)
	}

	mode, err := monitor.ParseMode(ctx.String(ModeFlag.Name))
	if err != nil {
		return err
	}

	listingPath, err := resolveListing(ctx)
	if err != nil {
		return err
	}
	index, err := asmindex.ParseFile(listingPath)
	if err != nil {
		return fmt.Errorf("error indexing listing: %w", err)
	}
	logger.Info().Int("functions", index.Len()).Msg("listing indexed")

	startAddr, err := parseStartAddr(ctx.String(StartAddrFlag.Name))
	if err != nil {
		return err
	}

	stackTop, err := resolveStackTop(ctx, prof)
	if err != nil {
		return err
	}
	logger.Info().Str("stack_top", fmt.Sprintf("%#08x", stackTop)).Msg("stack top resolved")

	core, err := newCore(prof, index, stackTop)
	if err != nil {
		return err
	}

	if err := prepareTarget(core, prof, ctx.Bool(NoFlashFlag.Name), logger); err != nil {
		return err
	}

	recorder := snapshot.NewRecorder(prof.RAMEnd-stackTop, prof.Interval())
	scanner := ramscan.New(core, index)
	scanner.Sentinel = prof.Sentinel
	scanner.MergeThreshold = prof.MergeThreshold
	scanner.AbortThreshold = prof.AbortThreshold

	session := &monitor.Session{
		Core:      core,
		Scanner:   scanner,
		Recorder:  recorder,
		StackTop:  stackTop,
		Interval:  prof.Interval(),
		Deadline:  prof.Deadline(),
		StartAddr: startAddr,
		Input:     os.Stdin,
		Logger:    logger,
	}

	runCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()
	group, runCtx := errgroup.WithContext(runCtx)

	if prof.ListenAddr != "" {
		broadcaster, err := monitor.NewBroadcaster(prof.ListenAddr)
		if err != nil {
			return fmt.Errorf("error starting broadcast listener: %w", err)
		}
		session.Broadcaster = broadcaster
		logger.Info().Stringer("addr", broadcaster.Addr()).Msg("broadcasting snapshots")
		group.Go(func() error {
			return broadcaster.Serve(runCtx)
		})
	}

	group.Go(func() error {
		defer cancel()
		return session.Run(mode)
	})

	err = group.Wait()
	if session.Broadcaster != nil {
		_ = session.Broadcaster.Close()
	}
	if err != nil {
		return err
	}

	if mode == monitor.ModeLoopMeasure {
		return writeCPURecords(session.CPURecords, os.Stdout)
	}

	if err := writeRecord(recorder, ctx.Path(RecordOutputPathFlag.Name)); err != nil {
		return err
	}
	return writeReport(recorder, prof, ctx.String(FormatFlag.Name), ctx.Path(ReportOutputPathFlag.Name))
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func parseStartAddr(s string) (*uint32, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid start address %q: %w", s, err)
	}
	addr := uint32(v)
	return &addr, nil
}

// resolveListing returns the listing to index, disassembling the firmware
// image when no pre-rendered listing was supplied.
func resolveListing(ctx *cli.Context) (string, error) {
	if path := ctx.Path(ListingFlag.Name); path != "" {
		return path, nil
	}
	firmwarePath := ctx.Path(FirmwareFlag.Name)
	if firmwarePath == "" {
		return "", fmt.Errorf("either a listing or a firmware image is required")
	}
	return disassembler.New().Disassemble(firmwarePath, "")
}

// resolveStackTop reads the stack top from the firmware image's vector table,
// falling back to the top of the profile's RAM region when no image is given.
func resolveStackTop(ctx *cli.Context, prof *profile.TargetProfile) (uint32, error) {
	path := ctx.Path(FirmwareFlag.Name)
	if path == "" {
		return prof.RAMEnd, nil
	}
	return firmware.StackTop(path, firmware.Language(prof.Language))
}

// newCore opens the probe driver named by the profile.
func newCore(prof *profile.TargetProfile, index *asmindex.Index, stackTop uint32) (probe.Core, error) {
	switch prof.Driver {
	case "sim":
		target := sim.New(prof.RAMStart, prof.RAMEnd)
		target.SetRegisters(stackTop, 0)
		installDemoWorkload(target, index, stackTop, prof.Sentinel)
		return target, nil
	default:
		return nil, fmt.Errorf("probe driver %q not supported", prof.Driver)
	}
}

// installDemoWorkload gives the simulated core a plausible behavior: it walks
// through the first indexed functions as if calling deeper and deeper,
// touching one synthetic stack frame per function.
func installDemoWorkload(target *sim.Target, index *asmindex.Index, stackTop uint32, sentinel byte) {
	functions := index.Functions()
	if len(functions) > 3 {
		functions = functions[:3]
	}
	frames := make([]sim.Frame, len(functions))
	for i, fn := range functions {
		frames[i] = sim.Frame{PC: fn.Start, Size: uint32(32 * (i + 1))}
	}
	target.SimulateStack(stackTop, frames, sentinel)
}

// prepareTarget paints RAM with the sentinel and resets the core. Flashing
// itself is owned by the probe session layer; the simulated target treats it
// as a reset.
func prepareTarget(core probe.Core, prof *profile.TargetProfile, noFlash bool, logger zerolog.Logger) error {
	if err := core.Halt(); err != nil {
		return fmt.Errorf("halting target: %w", err)
	}
	logger.Info().
		Str("from", fmt.Sprintf("%#08x", prof.RAMStart)).
		Str("to", fmt.Sprintf("%#08x", prof.RAMEnd)).
		Msg("painting RAM")
	if err := ramscan.Paint(core, prof.RAMStart, prof.RAMEnd, prof.Sentinel); err != nil {
		return err
	}
	if !noFlash {
		logger.Info().Msg("flash requested: delegated to the probe driver")
	}
	return nil
}

func writeRecord(recorder *snapshot.Recorder, path string) error {
	data, err := json.Marshal(recorder)
	if err != nil {
		return fmt.Errorf("serializing record: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func writeCPURecords(records []ramscan.CPUSnapshot, output *os.File) error {
	return json.NewEncoder(output).Encode(records)
}

// writeReport outputs the statistics report in the specified format.
func writeReport(recorder *snapshot.Recorder, prof *profile.TargetProfile, format, outputPath string) error {
	stats, err := recorder.CalculateStatistics()
	if err != nil {
		return fmt.Errorf("calculating statistics: %w", err)
	}

	var output *os.File
	if outputPath == "" {
		output = os.Stdout
	} else {
		absPath, err := filepath.Abs(outputPath)
		if err != nil {
			return fmt.Errorf("unable to determine absolute path: %w", err)
		}
		output, err = os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("unable to open output file: %w", err)
		}
		defer func() {
			_ = output.Close()
		}()
	}

	var rendererInstance renderer.Renderer
	switch format {
	case "", "text":
		rendererInstance = renderer.NewTextRenderer(prof)
	case "json":
		rendererInstance = renderer.NewJSONRenderer()
	default:
		return fmt.Errorf("invalid format: %s", format)
	}

	return rendererInstance.Render(&renderer.Report{Recorder: recorder, Statistics: stats}, output)
}
