package main

import (
	"os"

	"remdups/pkg/script"
)

func main() {
	rootCmd := buildRootCommand()
	rootCmd.AddCommand(buildUpdateCommand())
	rootCmd.AddCommand(buildScriptCommand(script.Remove))
	rootCmd.AddCommand(buildScriptCommand(script.Copy))
	rootCmd.AddCommand(buildScriptCommand(script.Move))
	rootCmd.AddCommand(buildDupsOfCommand())
	rootCmd.AddCommand(buildDupsOfTailCommand())
	rootCmd.AddCommand(buildHashCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
