package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/embtrace/stackpaint/profile"
	"github.com/embtrace/stackpaint/snapshot"
)

var RecordFlag = &cli.PathFlag{
	Name:     "record",
	Usage:    "Path to a saved recorder state (record.json)",
	Required: true,
}

func CreateStatsCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "stats",
		Usage:       "Recomputes the statistics report from a saved record",
		Description: "Recomputes the statistics report from a saved record",
		Action:      action,
		Flags: []cli.Flag{
			ProfileFlag,
			RecordFlag,
			FormatFlag,
			ReportOutputPathFlag,
		},
	}
}

var StatsCommand = CreateStatsCommand(Stats)

func Stats(ctx *cli.Context) error {
	prof, err := profile.LoadProfile(ctx.Path(ProfileFlag.Name))
	if err != nil {
		return fmt.Errorf("error loading profile: %w", err)
	}

	data, err := os.ReadFile(ctx.Path(RecordFlag.Name))
	if err != nil {
		return fmt.Errorf("error reading record: %w", err)
	}
	var recorder snapshot.Recorder
	if err := json.Unmarshal(data, &recorder); err != nil {
		return fmt.Errorf("error parsing record: %w", err)
	}

	return writeReport(&recorder, prof, ctx.String(FormatFlag.Name), ctx.Path(ReportOutputPathFlag.Name))
}
