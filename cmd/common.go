package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/log"
	"github.com/spf13/pflag"

	"remdups/pkg/config"
	"remdups/pkg/hashstore"
)

// session is the state every command starts from.
type session struct {
	dir   string
	cfg   config.Config
	store *hashstore.Store
}

func openSession() (*session, error) {
	dir, err := validateAndResolvePath(workDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	configureLogging(cfg)

	store, err := hashstore.Open(dir, hashstore.Options{})
	if err != nil {
		return nil, fmt.Errorf("open hash store: %w", err)
	}
	log.Debugf("working directory %s, sidecars %v, %d known files", dir, store.Sidecars(), store.Len())

	return &session{dir: dir, cfg: cfg, store: store}, nil
}

func validateAndResolvePath(targetDir string) (string, error) {
	info, err := os.Stat(targetDir)
	if err != nil {
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", targetDir)
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path: %w", err)
	}

	return absPath, nil
}

func configureLogging(cfg config.Config) {
	if verbose || cfg.Verbose {
		log.SetLevel(log.DEBUG)
		return
	}
	log.SetLevel(log.NOTICE)
}

// stringsOption returns the flag value when given on the command line,
// the settings file value otherwise.
func stringsOption(flags *pflag.FlagSet, name string, fromFile, fromFlag []string) []string {
	if flags.Changed(name) {
		return fromFlag
	}
	return fromFile
}

func stringOption(flags *pflag.FlagSet, name, fromFile, fromFlag string) string {
	if flags.Changed(name) || fromFile == "" {
		return fromFlag
	}
	return fromFile
}

func boolOption(flags *pflag.FlagSet, name string, fromFile, fromFlag bool) bool {
	if flags.Changed(name) {
		return fromFlag
	}
	return fromFile
}

func printSummary(lines ...string) {
	fmt.Println("=== Summary ===")
	for _, line := range lines {
		fmt.Println(line)
	}
}
