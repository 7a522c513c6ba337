package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newBankCmd())
}

func newBankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bank",
		Short: "Show the bank-switch window of a platform",
		Long: `The bank command boots the bank-switch allocator and prints the pool
sizes and the state of every window block.

Example:
  mmuctl bank -p bank-window`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBank()
		},
	}
}

type bankJSON struct {
	BlockSize      uint64 `json:"block_size"`
	PhysSize       uint64 `json:"phys_size"`
	FreeSize       uint64 `json:"free_size"`
	WindowSize     uint64 `json:"window_size"`
	FreeWindowSize uint64 `json:"free_window_size"`
}

func runBank() error {
	desc, err := loadDescription()
	if err != nil {
		return err
	}

	b, err := bootBoard(desc, devicePath)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.banks == nil {
		return fmt.Errorf("platform %s has no bank window", desc.Name)
	}

	if jsonOut {
		return printJSON(bankJSON{
			BlockSize:      uint64(b.banks.BlockSize()),
			PhysSize:       uint64(b.banks.PhysSize()),
			FreeSize:       uint64(b.banks.FreeSize()),
			WindowSize:     uint64(b.banks.WindowSize()),
			FreeWindowSize: uint64(b.banks.FreeWindowSize()),
		})
	}

	printInfo("Platform %s: %s of physical memory through a %s window\n",
		desc.Name, b.banks.PhysSize(), b.banks.WindowSize())
	if quiet {
		return nil
	}
	return b.banks.Dump(os.Stdout)
}
