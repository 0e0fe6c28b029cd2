package hashstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"remdups/pkg/fingerprint"
)

// Prefix starts the file name of every sidecar.
const Prefix = ".remdups_"

var (
	// ErrMalformedLine is returned when a sidecar line is not digest<TAB>path[<TAB>root].
	ErrMalformedLine = errors.New("malformed sidecar line")
	// ErrUnsupportedPath is returned for paths that cannot be stored in a line.
	ErrUnsupportedPath = errors.New("path contains tab or newline")
)

// Sidecar is one persisted (strategy, algorithm) digest file.
type Sidecar struct {
	Strategy  fingerprint.Strategy
	Algorithm fingerprint.Algorithm
}

// DefaultSidecar is created when a directory has no sidecar yet.
var DefaultSidecar = Sidecar{Strategy: fingerprint.Content, Algorithm: fingerprint.SHA256}

// FileName returns the sidecar file name, e.g. ".remdups_c.sha256".
func (s Sidecar) FileName() string {
	return Prefix + s.Strategy.Code() + "." + s.Algorithm.String()
}

func (s Sidecar) String() string {
	return s.Strategy.String() + "/" + s.Algorithm.String()
}

// AllSidecars returns every possible sidecar in discovery order.
func AllSidecars() []Sidecar {
	all := make([]Sidecar, 0, len(fingerprint.Strategies)*len(fingerprint.Algorithms))
	for _, s := range fingerprint.Strategies {
		for _, a := range fingerprint.Algorithms {
			all = append(all, Sidecar{Strategy: s, Algorithm: a})
		}
	}
	return all
}

// SidecarNames returns the file names of all possible sidecars.
func SidecarNames() []string {
	all := AllSidecars()
	names := make([]string, len(all))
	for i, sc := range all {
		names[i] = sc.FileName()
	}
	return names
}

// ParseSidecarName reports whether name is a sidecar file name and which one.
func ParseSidecarName(name string) (Sidecar, bool) {
	rest, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return Sidecar{}, false
	}
	code, algo, ok := strings.Cut(rest, ".")
	if !ok {
		return Sidecar{}, false
	}
	s, err := fingerprint.ParseStrategy(code)
	if err != nil {
		return Sidecar{}, false
	}
	a, err := fingerprint.ParseAlgorithm(algo)
	if err != nil {
		return Sidecar{}, false
	}
	return Sidecar{Strategy: s, Algorithm: a}, true
}

// Discover returns the sidecars present in dir in discovery order.
// When none exists, an empty default sidecar is created and returned.
func Discover(dir string) ([]Sidecar, error) {
	var found []Sidecar
	for _, sc := range AllSidecars() {
		info, err := os.Stat(filepath.Join(dir, sc.FileName()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat sidecar %s: %w", sc.FileName(), err)
		}
		if info.Mode().IsRegular() {
			found = append(found, sc)
		}
	}

	if len(found) > 0 {
		return found, nil
	}

	path := filepath.Join(dir, DefaultSidecar.FileName())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("create sidecar: %w", err)
	}

	return []Sidecar{DefaultSidecar}, nil
}

// entry is one sidecar line.
type entry struct {
	digest string
	path   string
	root   string // source root tag, empty for the working tree
}

func (e entry) line() string {
	if e.root == "" {
		return e.digest + "\t" + e.path + "\n"
	}
	return e.digest + "\t" + e.path + "\t" + e.root + "\n"
}

func checkStorable(path string) error {
	if strings.ContainsAny(path, "\t\r\n") {
		return fmt.Errorf("%w: %q", ErrUnsupportedPath, path)
	}
	return nil
}

// readSidecar reads all entries of a sidecar file in order.
func readSidecar(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sidecar: %w", err)
	}
	defer f.Close()

	var entries []entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 || len(fields) > 3 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), lineNum, ErrMalformedLine)
		}

		e := entry{digest: fields[0], path: fields[1]}
		if len(fields) == 3 {
			e.root = fields[2]
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}

	return entries, nil
}

// appendSidecar appends entries to a sidecar file and syncs it.
func appendSidecar(path string, entries []entry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sidecar: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := w.WriteString(e.line()); err != nil {
			f.Close()
			return fmt.Errorf("write sidecar: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync sidecar: %w", err)
	}

	return f.Close()
}
