package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/embtrace/stackpaint/asmindex"
)

var (
	FunctionNameFlag = &cli.StringFlag{
		Name:     "function",
		Usage:    "Name of the function whose direct callees to list",
		Required: true,
	}
	TransitiveFlag = &cli.BoolFlag{
		Name:  "transitive",
		Usage: "list the full reachable set instead of direct callees only",
	}
)

func CreateCalleesCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "callees",
		Usage:       "Lists the functions directly called by a function",
		Description: "Lists the functions directly called by a function",
		Action:      action,
		Flags: []cli.Flag{
			ListingFlag,
			FunctionNameFlag,
			TransitiveFlag,
		},
	}
}

var CalleesCommand = CreateCalleesCommand(Callees)

func Callees(ctx *cli.Context) error {
	listingPath := ctx.Path(ListingFlag.Name)
	if listingPath == "" {
		return fmt.Errorf("a listing is required")
	}
	index, err := asmindex.ParseFile(listingPath)
	if err != nil {
		return fmt.Errorf("error indexing listing: %w", err)
	}

	function := ctx.String(FunctionNameFlag.Name)
	var (
		callees    []asmindex.Function
		unresolved []string
	)
	if ctx.Bool(TransitiveFlag.Name) {
		callees, unresolved, err = index.Reachable(function)
	} else {
		callees, unresolved, err = index.DirectCallees(function)
	}
	if err != nil {
		return err
	}

	for _, fn := range callees {
		fmt.Fprintf(os.Stdout, "%s [%#08x..%#08x)\n", fn.Name, fn.Start, fn.End)
	}
	for _, name := range unresolved {
		fmt.Fprintf(os.Stderr, "unresolved callee: %s\n", name)
	}
	return nil
}
