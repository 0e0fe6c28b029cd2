package main

import (
	"github.com/spf13/cobra"
)

var (
	workDir string
	verbose bool
)

func buildRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remdups",
		Short: "Find duplicate files and write scripts to remove, copy or move them",
		Long: `remdups hashes the files below the working directory once and keeps the
digests in sidecar files (.remdups_<strategy>.<algorithm>), so later runs only
hash new files. From the digests it groups duplicates and writes a script you
review before running it. remdups itself never deletes or moves anything.

Sidecars:
  The strategy code is c (content), b (first block), d (name + mtime),
  e (EXIF metadata) or n (name); the algorithm is sha512, sha384, sha256,
  sha224, sha1 or md5. Every sidecar present is used and the digests are
  concatenated. Without any sidecar .remdups_c.sha256 is created.

Examples:
  # Hash new files below the current directory
    remdups update

  # Write a shell script removing all but one file of each group
    remdups rm -s remove.sh

  # Keep files under "originals" when there is a choice
    remdups rm -s remove.sh -i originals

  # Hash a second tree, then copy its files here named by date
    remdups update /media/card
    remdups cp -s import.py -r "%Y/%m/%Y%m%d_%H%M%S"

Settings:
  Defaults for most flags can be put in .remdups.yaml in the working directory.
  Flags given on the command line win.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runUpdate,
	}

	cmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "Working directory holding the sidecar files")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	return cmd
}
