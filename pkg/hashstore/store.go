// Package hashstore persists file digests in append-only sidecar files so that
// unchanged files are never hashed twice across runs.
//
// Each active sidecar holds one (strategy, algorithm) digest per file. The digest
// of a file is the concatenation of its sidecar digests in discovery order.
package hashstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"remdups/pkg/fingerprint"
)

// ErrUnknownPath is returned when a path has no recorded digest.
var ErrUnknownPath = errors.New("path not in hash store")

// Options configures a Store.
type Options struct {
	Fingerprinter *fingerprint.Fingerprinter
}

// Store maps relative paths to digests and digests to sorted paths.
type Store struct {
	dir      string
	sidecars []Sidecar
	fp       *fingerprint.Fingerprinter

	pathDigest  map[string]string
	digestPaths map[string][]string
	roots       map[string]string

	// partial holds paths missing from at least one sidecar.
	partial map[string][]string
	pending [][]entry
}

// Open discovers the sidecars in dir and loads them.
func Open(dir string, opts Options) (*Store, error) {
	sidecars, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	s := New(dir, sidecars, opts)
	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// New creates an empty Store for dir with a fixed set of active sidecars.
func New(dir string, sidecars []Sidecar, opts Options) *Store {
	fp := opts.Fingerprinter
	if fp == nil {
		fp = fingerprint.New()
	}

	s := &Store{
		dir:      dir,
		sidecars: append([]Sidecar(nil), sidecars...),
		fp:       fp,
	}
	s.Clear()

	return s
}

// Normalize converts a path to the form used as store key.
func Normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Dir returns the directory holding the sidecars.
func (s *Store) Dir() string {
	return s.dir
}

// Sidecars returns the active sidecars in discovery order.
func (s *Store) Sidecars() []Sidecar {
	return append([]Sidecar(nil), s.sidecars...)
}

// Clear drops all in-memory state. Sidecar files are left untouched.
func (s *Store) Clear() {
	s.pathDigest = make(map[string]string)
	s.digestPaths = make(map[string][]string)
	s.roots = make(map[string]string)
	s.partial = make(map[string][]string)
	s.pending = make([][]entry, len(s.sidecars))
}

// Load reads every active sidecar, replacing the in-memory state.
func (s *Store) Load() error {
	s.Clear()

	for i, sc := range s.sidecars {
		entries, err := readSidecar(filepath.Join(s.dir, sc.FileName()))
		if err != nil {
			return fmt.Errorf("load %s: %w", sc.FileName(), err)
		}

		for _, e := range entries {
			path := Normalize(e.path)
			slots, ok := s.partial[path]
			if !ok {
				slots = make([]string, len(s.sidecars))
				s.partial[path] = slots
			}
			slots[i] = e.digest
			if e.root != "" {
				s.roots[path] = Normalize(e.root)
			}
		}
	}

	for path, slots := range s.partial {
		if complete(slots) {
			s.record(path, strings.Join(slots, ""))
			delete(s.partial, path)
		}
	}

	return nil
}

func complete(slots []string) bool {
	for _, d := range slots {
		if d == "" {
			return false
		}
	}
	return true
}

// Fingerprint computes the digest of path for the active sidecars.
func (s *Store) Fingerprint(path string) (string, error) {
	slots, err := s.fingerprintSlots(Normalize(path), nil)
	if err != nil {
		return "", err
	}
	return strings.Join(slots, ""), nil
}

// fingerprintSlots computes one digest per sidecar, reusing the non-empty
// entries of known.
func (s *Store) fingerprintSlots(path string, known []string) ([]string, error) {
	slots := make([]string, len(s.sidecars))
	file := s.abs(path)

	for i, sc := range s.sidecars {
		if i < len(known) && known[i] != "" {
			slots[i] = known[i]
			continue
		}

		h := sc.Algorithm.New()
		if _, err := s.fp.Feed(h, file, sc.Strategy); err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", path, err)
		}
		slots[i] = hex.EncodeToString(h.Sum(nil))
	}

	return slots, nil
}

// Add fingerprints path, records it under its digest and buffers the sidecar
// writes. root is the source root tag of the path, empty for the working tree.
func (s *Store) Add(path, root string) (string, error) {
	path = Normalize(path)
	if err := checkStorable(path); err != nil {
		return "", err
	}
	if root != "" {
		root = Normalize(root)
		if err := checkStorable(root); err != nil {
			return "", err
		}
	}

	known := s.partial[path]
	slots, err := s.fingerprintSlots(path, known)
	if err != nil {
		return "", err
	}

	for i, d := range slots {
		if i < len(known) && known[i] != "" {
			continue
		}
		s.pending[i] = append(s.pending[i], entry{digest: d, path: path, root: root})
	}

	delete(s.partial, path)
	if root != "" {
		s.roots[path] = root
	} else {
		delete(s.roots, path)
	}

	digest := strings.Join(slots, "")
	s.record(path, digest)

	return digest, nil
}

// Flush appends all buffered entries to their sidecars and clears the buffer.
func (s *Store) Flush() error {
	for i, buf := range s.pending {
		if len(buf) == 0 {
			continue
		}

		name := s.sidecars[i].FileName()
		if err := appendSidecar(filepath.Join(s.dir, name), buf); err != nil {
			return fmt.Errorf("flush %s: %w", name, err)
		}
		s.pending[i] = nil
	}

	return nil
}

// pendingCount returns the number of buffered, unflushed entries.
func (s *Store) pendingCount() int {
	n := 0
	for _, buf := range s.pending {
		n += len(buf)
	}
	return n
}

// Invalidate forgets path, including any unflushed write for it.
func (s *Store) Invalidate(path string) {
	path = Normalize(path)
	s.unrecord(path)
	delete(s.roots, path)
	delete(s.partial, path)

	for i, buf := range s.pending {
		kept := buf[:0]
		for _, e := range buf {
			if e.path != path {
				kept = append(kept, e)
			}
		}
		s.pending[i] = kept
	}
}

func (s *Store) record(path, digest string) {
	s.unrecord(path)
	s.pathDigest[path] = digest

	paths := s.digestPaths[digest]
	i := sort.SearchStrings(paths, path)
	paths = append(paths, "")
	copy(paths[i+1:], paths[i:])
	paths[i] = path
	s.digestPaths[digest] = paths
}

func (s *Store) unrecord(path string) {
	digest, ok := s.pathDigest[path]
	if !ok {
		return
	}
	delete(s.pathDigest, path)

	paths := s.digestPaths[digest]
	i := sort.SearchStrings(paths, path)
	if i < len(paths) && paths[i] == path {
		paths = append(paths[:i], paths[i+1:]...)
	}
	if len(paths) == 0 {
		delete(s.digestPaths, digest)
		return
	}
	s.digestPaths[digest] = paths
}

// Known reports whether path has a complete digest.
func (s *Store) Known(path string) bool {
	_, ok := s.pathDigest[Normalize(path)]
	return ok
}

// Digest returns the digest of path.
func (s *Store) Digest(path string) (string, bool) {
	d, ok := s.pathDigest[Normalize(path)]
	return d, ok
}

// Paths returns the sorted paths sharing digest.
func (s *Store) Paths(digest string) []string {
	return append([]string(nil), s.digestPaths[digest]...)
}

// Root returns the source root tag of path, empty for the working tree.
func (s *Store) Root(path string) string {
	return s.roots[Normalize(path)]
}

// Len returns the number of known paths.
func (s *Store) Len() int {
	return len(s.pathDigest)
}

// Files returns all known paths sorted.
func (s *Store) Files() []string {
	files := make([]string, 0, len(s.pathDigest))
	for p := range s.pathDigest {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

// DigestPaths returns a copy of the digest to paths index.
func (s *Store) DigestPaths() map[string][]string {
	index := make(map[string][]string, len(s.digestPaths))
	for d, paths := range s.digestPaths {
		index[d] = append([]string(nil), paths...)
	}
	return index
}

// Duplicates returns the other paths sharing the digest of path.
func (s *Store) Duplicates(path string) ([]string, error) {
	path = Normalize(path)
	digest, ok := s.Digest(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}

	var others []string
	for _, p := range s.Paths(digest) {
		if p != path {
			others = append(others, p)
		}
	}
	return others, nil
}

// Lines lists "digest  path" for every known path, sorted by path.
func (s *Store) Lines() []string {
	files := s.Files()
	lines := make([]string, len(files))
	for i, p := range files {
		lines[i] = s.pathDigest[p] + "  " + p
	}
	return lines
}

func (s *Store) abs(path string) string {
	native := filepath.FromSlash(path)
	if filepath.IsAbs(native) {
		return native
	}
	return filepath.Join(s.dir, native)
}
