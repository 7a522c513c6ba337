package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"extmem/kernel/mm"
)

func init() {
	rootCmd.AddCommand(newRegionsCmd())
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "Show the coalesced MMU regions of a platform",
		Long: `The regions command boots the region allocator and prints the regions
left after the reserved ranges of the firmware image are deducted and
adjacent regions with identical capabilities are merged.

Example:
  mmuctl regions -p split-bus
  mmuctl regions -c board.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions()
		},
	}
}

type regionJSON struct {
	LinearStart string `json:"linear_start"`
	LinearEnd   string `json:"linear_end"`
	Caps        string `json:"caps"`
	Targets     string `json:"targets"`
	BusMask     uint32 `json:"bus_mask"`
	MaxFreeSlot string `json:"max_free_slot"`
	Blocks      int    `json:"blocks"`
}

func runRegions() error {
	desc, err := loadDescription()
	if err != nil {
		return err
	}

	b, err := bootBoard(desc, devicePath)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.space == nil {
		return fmt.Errorf("platform %s has no MMU regions", desc.Name)
	}

	regions := b.space.Regions()
	if jsonOut {
		out := make([]regionJSON, 0, len(regions))
		for _, r := range regions {
			out = append(out, regionJSON{
				LinearStart: hex(r.LinearStart),
				LinearEnd:   hex(r.LinearEnd),
				Caps:        r.Caps.String(),
				Targets:     r.Targets.String(),
				BusMask:     r.BusMask,
				MaxFreeSlot: hex(r.MaxFreeSlot),
				Blocks:      r.BlockCount,
			})
		}
		return printJSON(out)
	}

	printInfo("Platform %s, page size %s\n", desc.Name, desc.PageSize)
	for i, r := range regions {
		printInfo("  region %d: [0x%08x - 0x%08x) %s, caps: %s, targets: %s, bus: 0x%x\n",
			i, r.LinearStart, r.LinearEnd, mm.Size(r.Size), r.Caps, r.Targets, r.BusMask)
	}
	return nil
}
