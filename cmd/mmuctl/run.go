package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	strict  bool
	dumpEnd bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&strict, "strict", false, "Stop at the first operation that fails")
	cmd.Flags().BoolVar(&dumpEnd, "dump", false, "Dump every allocator after the script")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script|->",
		Short: "Run an allocation script against a platform",
		Long: `The run command boots the allocators of a platform and executes one
operation per line of the script. Numbers accept the 0x prefix and Kb/Mb
suffixes; capability and target lists are comma separated.

Region allocator:
  reserve <size> <caps> <target>
  map <paddr> <size> <target> <caps> [shared]
  unmap <vaddr>
  maxfree <caps> <target>
  v2p <vaddr>
  p2v <paddr> <target> <data|instruction>
  caps <paddr>
  dump

Flash mappings:
  mmap <src> <size> <data|instruction>
  munmap <handle>
  freepages <data|instruction>
  mmaps

Bank window:
  halloc <size>          walloc <size>
  hmap <p#> <w#> <physOffset> <winOffset> <length>
  hunmap <w#> <ptr> <length>
  hfree <p#>             wfree <w#>
  hdump

Example:
  mmuctl run ops.txt --dump
  echo "reserve 64Kb read,write ram" | mmuctl run -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(args[0])
		},
	}
}

func runScript(path string) error {
	desc, err := loadDescription()
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	b, err := bootBoard(desc, devicePath)
	if err != nil {
		return err
	}
	defer b.Close()

	var out io.Writer = os.Stdout
	if quiet {
		out = io.Discard
	}

	s := newSession(b, out)
	s.strict = strict
	if err = s.run(in); err != nil {
		return err
	}

	if verbose && b.space != nil {
		b.space.DumpEarly()
	}

	if dumpEnd {
		return dumpBoard(b, os.Stdout)
	}
	return nil
}

// dumpBoard writes the state of every allocator of b to w.
func dumpBoard(b *board, w io.Writer) error {
	if b.space != nil {
		if _, err := io.WriteString(w, "# regions\n"); err != nil {
			return err
		}
		if err := b.space.Dump(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "# flash mappings\n"); err != nil {
			return err
		}
		if err := b.flash.Dump(w); err != nil {
			return err
		}
	}

	if b.banks != nil {
		if _, err := io.WriteString(w, "# bank window\n"); err != nil {
			return err
		}
		return b.banks.Dump(w)
	}
	return nil
}
