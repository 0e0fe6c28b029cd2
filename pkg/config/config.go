// Package config loads the optional per-directory settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up in the working directory.
const FileName = ".remdups.yaml"

// DefaultAssetsSuffix names the folder browsers save page assets in.
const DefaultAssetsSuffix = "_files"

// ErrInvalid is returned when the settings file does not parse.
var ErrInvalid = errors.New("invalid config file")

// Config holds the settings a command line flag can also set.
type Config struct {
	KeepIn          []string `yaml:"keep_in"`
	KeepOut         []string `yaml:"keep_out"`
	CommentOut      []string `yaml:"comment_out"`
	HTMLFilesSuffix string   `yaml:"html_files_suffix"`
	Filter          []string `yaml:"filter"`
	Exclude         []string `yaml:"exclude"`
	Sort            string   `yaml:"sort"`
	OnlySameName    bool     `yaml:"only_same_name"`
	Safe            bool     `yaml:"safe"`
	Verbose         bool     `yaml:"verbose"`
}

// Default returns the settings used without a settings file.
func Default() Config {
	return Config{HTMLFilesSuffix: DefaultAssetsSuffix}
}

// Load reads FileName from dir. A missing file yields Default.
func Load(dir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("%w %s: %v", ErrInvalid, path, err)
	}

	return cfg, nil
}
