package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/buddykit/buddy"
)

func init() {
	rootCmd.AddCommand(newOrderCmd())
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <bytes>...",
		Short: "Print the order needed for byte counts",
		Long: `The order command prints, for each byte count, the smallest order k with
2^k >= bytes, and the order of the block an allocation of that many bytes
would reserve once the header is added.

Example:
  buddyctl order 1 16 1024 0x100000
  buddyctl order 100 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(args)
		},
	}
}

// OrderInfo is one row of the order command output.
type OrderInfo struct {
	Bytes      uint64 `json:"bytes"`
	Order      uint   `json:"order"`
	AllocOrder uint   `json:"alloc_order"`
	BlockSize  uint64 `json:"block_size"`
}

func orderInfo(n uint64) OrderInfo {
	info := OrderInfo{Bytes: n, Order: buddy.OrderFor(n)}
	if n <= ^uint64(0)-buddy.HeaderSize {
		info.AllocOrder = buddy.OrderFor(n + buddy.HeaderSize)
	} else {
		info.AllocOrder = 64
	}
	if info.AllocOrder < 64 {
		info.BlockSize = uint64(1) << info.AllocOrder
	}
	return info
}

func runOrder(args []string) error {
	rows := make([]OrderInfo, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid byte count %q: %w", arg, err)
		}
		rows = append(rows, orderInfo(n))
	}

	if jsonOut {
		return printJSON(rows)
	}
	printInfo("%-20s %6s %12s %22s\n", "BYTES", "ORDER", "ALLOC ORDER", "BLOCK SIZE")
	for _, r := range rows {
		printInfo("%-20d %6d %12d %22d\n", r.Bytes, r.Order, r.AllocOrder, r.BlockSize)
	}
	return nil
}
