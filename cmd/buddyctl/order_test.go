package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderCommand(t *testing.T) {
	resetGlobals(t)

	output, err := captureOutput(t, func() error {
		return runOrder([]string{"1", "16", "1024", "0x100000"})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"BYTES", "ALLOC ORDER"})

	jsonOut = true
	output, err = captureOutput(t, func() error {
		return runOrder([]string{"1", "16", "1024", "0x100000", "18446744073709551615"})
	})
	require.NoError(t, err)

	var rows []OrderInfo
	assertJSON(t, output, &rows)
	require.Equal(t, []OrderInfo{
		{Bytes: 1, Order: 0, AllocOrder: 5, BlockSize: 32},
		{Bytes: 16, Order: 4, AllocOrder: 6, BlockSize: 64},
		{Bytes: 1024, Order: 10, AllocOrder: 11, BlockSize: 2048},
		{Bytes: 1 << 20, Order: 20, AllocOrder: 21, BlockSize: 1 << 21},
		{Bytes: 1<<64 - 1, Order: 64, AllocOrder: 64, BlockSize: 0},
	}, rows)
}

func TestOrderCommand_InvalidArg(t *testing.T) {
	resetGlobals(t)
	_, err := captureOutput(t, func() error {
		return runOrder([]string{"12", "lots"})
	})
	require.ErrorContains(t, err, `invalid byte count "lots"`)
}
