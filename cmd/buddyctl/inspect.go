package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/pkg/layout"
	"github.com/joshuapare/buddykit/pkg/report"
)

var inspectAlloc []string

func init() {
	cmd := newInspectCmd()
	cmd.Flags().StringSliceVar(&inspectAlloc, "alloc", nil, "Allocate these sizes before inspecting")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the layout of a new pool",
		Long: `The inspect command creates a pool with the configured bounds, optionally
performs some allocations, validates every invariant and prints the block
layout and free lists.

Example:
  buddyctl inspect --size 4096 --min-order 8
  buddyctl inspect --size 4096 --min-order 8 --alloc 1,100,500
  buddyctl inspect --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect()
		},
	}
}

// InspectOutput is the JSON form of inspect.
type InspectOutput struct {
	Report report.Report `json:"report"`
	layout.Layout
}

func runInspect() error {
	p, log, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Destroy()
		_ = log.Sync()
	}()

	for _, arg := range inspectAlloc {
		size, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", arg, err)
		}
		if _, _, err := p.Alloc(size); err != nil {
			return fmt.Errorf("alloc %d: %w", size, err)
		}
	}

	out, err := inspectPool(p)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out)
	}

	if !quiet {
		if err := report.WriteText(os.Stdout, out.Report, language.English); err != nil {
			return err
		}
	}
	printInfo("\nBlocks:\n")
	for _, b := range out.Blocks {
		printInfo("  0x%08X  order %2d  %s\n", b.Offset, b.Order, b.State)
	}
	printInfo("\nFree lists:\n")
	for _, l := range out.Lists {
		printInfo("  %2d  %v\n", l.Order, l.Offsets)
	}
	if out.Valid {
		printInfo("\nInvariants: OK\n")
	} else {
		printInfo("\nInvariants: FAILED (%s)\n", out.Issue)
	}
	return nil
}

func inspectPool(p *buddy.Pool) (InspectOutput, error) {
	l, err := layout.Capture(p)
	return InspectOutput{Report: report.Build(p), Layout: l}, err
}
