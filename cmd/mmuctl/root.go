package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"extmem/kernel/kfmt"
	"extmem/platform"
)

var (
	// Global flags
	platformName string
	configPath   string
	devicePath   string
	verbose      bool
	quiet        bool
	jsonOut      bool
)

var rootCmd = &cobra.Command{
	Use:   "mmuctl",
	Short: "Exercise the external memory address-space allocators",
	Long: `mmuctl builds the region allocator and the bank-switch allocator for a
platform description and runs operations against them. Descriptions are
either built in (see "mmuctl platforms") or loaded from a YAML file.

By default the allocators drive an in-memory HAL. With --device the MMU
tables and cache controller are reached through a memory-mapped register
file described by the mmio section of the platform description.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && !quiet {
			kfmt.SetOutputSink(os.Stderr)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&platformName, "platform", "p", "unified-64k", "Built-in platform description")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Load the platform description from a YAML file")
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "Drive the hardware through this register file instead of the fake HAL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print allocator log output to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadDescription returns the description selected by the global flags.
func loadDescription() (*platform.Description, error) {
	if configPath != "" {
		printVerbose("Loading platform description: %s\n", configPath)
		return platform.Load(configPath)
	}
	return platform.Lookup(platformName)
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
