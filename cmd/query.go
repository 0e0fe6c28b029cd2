package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"remdups/pkg/duplicates"
)

func buildDupsOfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dupsof <file>",
		Short: "List the files with the same digest as file",
		Long: `Prints every known file sharing the digest of file, file included. file is
a path relative to the working directory or a substring that matches exactly
one known path.

Examples:
  remdups dupsof photos/img_0001.jpg
  remdups dupsof img_0001`,
		Args: cobra.ExactArgs(1),
		RunE: runDupsOf,
	}
}

func runDupsOf(_ *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	paths, err := duplicates.WhereFile(s.store, args[0])
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Println(p)
	}

	return nil
}

func buildDupsOfTailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dupsoftail <tail>",
		Short: "List the duplicate groups whose common path ends with tail",
		Long: `Prints the duplicate groups whose common path suffix ends with tail, one
path per line and a blank line after each group.

Examples:
  remdups dupsoftail img_0001.jpg
  remdups dupsoftail 2019/img_0001.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: runDupsOfTail,
	}
}

func runDupsOfTail(_ *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	res := duplicates.New(duplicates.WithDir(s.dir)).FindDuplicates(s.store.DigestPaths(), duplicates.Options{})
	for _, g := range duplicates.WhereTail(res.WithTail, args[0]) {
		for _, p := range g.Paths {
			fmt.Println(p)
		}
		fmt.Println()
	}

	return nil
}
