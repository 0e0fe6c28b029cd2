package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [file]",
		Short: "Print digests",
		Long: `Without file, prints "digest  path" for every known file. With file, prints
the digest computed now with the active sidecars, without recording it.

Examples:
  remdups hash
  remdups hash photos/img_0001.jpg`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHash,
	}
}

func runHash(_ *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, line := range s.store.Lines() {
			fmt.Println(line)
		}
		return nil
	}

	digest, err := s.store.Fingerprint(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", digest, args[0])

	return nil
}
