package main

import (
	"github.com/spf13/cobra"

	"extmem/platform"
)

func init() {
	rootCmd.AddCommand(newPlatformsCmd())
}

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the built-in platform descriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlatforms()
		},
	}
}

func runPlatforms() error {
	names := platform.Names()
	if jsonOut {
		return printJSON(names)
	}

	for _, name := range names {
		d, err := platform.Lookup(name)
		if err != nil {
			return err
		}
		printInfo("%-12s page %s, %d cores, %d mmus, %d regions, bank window: %t\n",
			name, d.PageSize, d.Cores, d.MMUs, len(d.Regions), d.Himem != nil)
	}
	return nil
}
