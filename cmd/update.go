package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/log"
	"github.com/spf13/cobra"

	"remdups/pkg/config"
	"remdups/pkg/progress"
	"remdups/pkg/scanner"
)

var (
	updateFilters  []string
	updateExcludes []string
)

func buildUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [fromdir]",
		Short: "Hash new files into the sidecar files",
		Long: `Walks fromdir (default: the working directory) and hashes every file the
sidecar files do not know yet. Files are appended to the sidecars after each
directory, so an interrupted run loses little work.

A fromdir outside the working directory is recorded with its root, which lets
cp and mv scripts recreate its layout below the working directory.

Globs match the base name or the path relative to fromdir; ** spans
directories. An exclude glob starting with ! re-includes what an earlier
one excluded.

Examples:
  remdups update                              # Working directory
  remdups update -f '*.jpg' -f '*.png'        # Images only
  remdups update -e cache -e '!cache/keep'    # Skip cache except cache/keep
  remdups update /media/card                  # Another tree`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUpdate,
	}

	cmd.Flags().StringArrayVarP(&updateFilters, "filter", "f", nil, "Only hash files matching glob (repeatable)")
	cmd.Flags().StringArrayVarP(&updateExcludes, "exclude", "e", nil, "Skip files and directories matching glob (repeatable)")

	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	sc, err := scanner.New(s.store, scanner.Options{
		Include:   stringsOption(cmd.Flags(), "filter", s.cfg.Filter, updateFilters),
		Exclude:   stringsOption(cmd.Flags(), "exclude", s.cfg.Exclude, updateExcludes),
		SkipFiles: []string{config.FileName},
		OnFile:    func(path string) { log.Debugf("hashed %s", path) },
	})
	if err != nil {
		return err
	}

	bar := progress.NewBar("Hashing", os.Stderr)
	startTime := time.Now()
	added := 0

	for _, err := range sc.Scan(root) {
		if err != nil {
			bar.Finish()
			return fmt.Errorf("update %s: %w", root, err)
		}
		added++
		bar.Increment()
	}
	bar.Finish()

	printSummary(
		fmt.Sprintf("New files:    %d", added),
		fmt.Sprintf("Known files:  %d", s.store.Len()),
		fmt.Sprintf("Sidecars:     %d", len(s.store.Sidecars())),
		fmt.Sprintf("Elapsed:      %v", time.Since(startTime).Round(time.Millisecond)),
	)

	return nil
}
