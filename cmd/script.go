package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"remdups/pkg/config"
	"remdups/pkg/duplicates"
	"remdups/pkg/progress"
	"remdups/pkg/script"
)

var (
	scriptPath      string
	onlySameName    bool
	safeCompare     bool
	keepIn          []string
	keepOut         []string
	commentOut      []string
	htmlFilesSuffix string
	renameScheme    string
)

func buildScriptCommand(op script.Operation) *cobra.Command {
	var short, long string
	switch op {
	case script.Remove:
		short = "Write a script removing duplicates"
		long = `Writes a script with one remove command per duplicate. In every group one
file is kept: its command is commented out with "keep:".

The keeper is the shortest path, unless --keep-in or --keep-out narrow the
choice. Files containing a --comment-out substring, and files inside the asset
folder of a saved web page, are commented out with "protected:". Removing a
saved page also removes its asset folder.

Examples:
  remdups rm -s remove.sh                      # POSIX shell
  remdups rm -s remove.bat -i originals        # Batch, prefer originals
  remdups rm -s remove.py --safe -o tmp        # Python, byte-compare groups`
	case script.Copy:
		short = "Write a script copying files into the working directory"
		long = `Writes a script copying one file per duplicate group and every unique file
into the working directory. Duplicates are listed commented out with "dup:".

Targets are named with the --sort strftime scheme applied to the modification
time, or else keep their path below the root they were hashed from with
"update fromdir". Without --sort, files already in the working directory stay
where they are: they are listed as "keep:" or "dup:" comments and are preferred
as the kept file of their group.

Examples:
  remdups cp -s import.sh
  remdups cp -s import.py -r "%Y/%m/%Y%m%d_%H%M%S"`
	case script.Move:
		short = "Write a script moving files into the working directory"
		long = `Like cp, but the script moves the files.

Examples:
  remdups mv -s import.sh
  remdups mv -s import.bat -r "%Y%m%d_%H%M%S"`
	}

	cmd := &cobra.Command{
		Use:   op.String(),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScript(cmd, op)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&scriptPath, "script", "s", "", "Script to write; .sh, .bat or .py selects the dialect")
	f.BoolVarP(&onlySameName, "only-same-name", "n", false, "Only groups whose files share a name")
	f.BoolVar(&safeCompare, "safe", false, "Split groups by comparing file contents byte by byte")
	f.StringArrayVarP(&keepIn, "keep-in", "i", nil, "Prefer keeping files containing this substring (repeatable)")
	f.StringArrayVarP(&keepOut, "keep-out", "o", nil, "Prefer keeping files not containing this substring (repeatable)")
	f.StringArrayVarP(&commentOut, "comment-out", "c", nil, "Never touch files containing this substring (repeatable)")
	f.StringVarP(&htmlFilesSuffix, "html-files-suffix", "x", config.DefaultAssetsSuffix, "Suffix of the asset folder of saved web pages")
	if op != script.Remove {
		f.StringVarP(&renameScheme, "sort", "r", "", "strftime scheme naming targets by modification time")
	}
	_ = cmd.MarkFlagRequired("script")

	return cmd
}

func runScript(cmd *cobra.Command, op script.Operation) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	opts := duplicates.Options{
		OnlySameName: boolOption(cmd.Flags(), "only-same-name", s.cfg.OnlySameName, onlySameName),
		Safe:         boolOption(cmd.Flags(), "safe", s.cfg.Safe, safeCompare),
	}

	var bar *progress.Bar
	if opts.Safe {
		bar = progress.NewBar("Comparing", os.Stderr)
		opts.OnProgress = bar.Update
	}

	index := s.store.DigestPaths()
	res := duplicates.New(duplicates.WithDir(s.dir)).FindDuplicates(index, opts)
	if bar != nil {
		bar.Finish()
	}

	var singles []string
	if op != script.Remove {
		singles = duplicates.Singletons(index, res)
	}

	r, err := script.New(script.Config{
		Operation:    op,
		Dialect:      script.DialectFor(scriptPath),
		KeepIn:       stringsOption(cmd.Flags(), "keep-in", s.cfg.KeepIn, keepIn),
		KeepOut:      stringsOption(cmd.Flags(), "keep-out", s.cfg.KeepOut, keepOut),
		CommentOut:   stringsOption(cmd.Flags(), "comment-out", s.cfg.CommentOut, commentOut),
		AssetsSuffix: stringOption(cmd.Flags(), "html-files-suffix", s.cfg.HTMLFilesSuffix, htmlFilesSuffix),
		RenameScheme: renameOption(cmd, op, s.cfg.Sort),
	}, script.WithDir(s.dir), script.WithRoots(s.store.Root))
	if err != nil {
		return err
	}

	out, err := r.Render(res, singles)
	if err != nil {
		return fmt.Errorf("render %s script: %w", op, err)
	}

	target := scriptPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.dir, target)
	}
	if err := os.WriteFile(target, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	bytesLabel := "Reclaimable:  "
	if op != script.Remove {
		bytesLabel = "To transfer:  "
	}
	printSummary(
		fmt.Sprintf("Script:       %s (%s)", target, script.DialectFor(scriptPath)),
		fmt.Sprintf("Groups:       %d", out.Groups),
		fmt.Sprintf("Files:        %d", out.Actions),
		bytesLabel+humanize.Bytes(uint64(out.Bytes)),
	)

	return nil
}

func renameOption(cmd *cobra.Command, op script.Operation, fromFile string) string {
	if op == script.Remove {
		return ""
	}
	return stringOption(cmd.Flags(), "sort", fromFile, renameScheme)
}
