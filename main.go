package main

import (
	"context"
	"log"
	"os"

	"github.com/embtrace/stackpaint/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = os.Args[0]
	app.Usage = "Embedded Stack Paint Analyzer"
	app.Description = "Embedded Stack Paint Analyzer"
	app.Commands = []*cli.Command{
		cmd.MonitorCommand,
		cmd.CalleesCommand,
		cmd.StatsCommand,
	}
	err := app.RunContext(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
