// Package scanner walks a directory tree in a deterministic order and records
// every file the hash store has not seen yet.
package scanner

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/log"
	mapset "github.com/deckarep/golang-set/v2"

	"remdups/pkg/hashstore"
)

// ErrBadPattern is returned for an include or exclude glob that does not parse.
var ErrBadPattern = errors.New("invalid glob pattern")

// Store is the part of the hash store the scanner drives.
type Store interface {
	Dir() string
	Known(path string) bool
	Add(path, root string) (string, error)
	Flush() error
}

// Options configures the scanner behavior.
type Options struct {
	// Include admits only files whose name or relative path matches one of
	// the globs. Empty admits every file.
	Include []string
	// Exclude drops files and directories matching a glob. A glob starting
	// with "!" re-includes what an earlier glob excluded; the last match wins.
	Exclude []string
	// SkipFiles lists base names never recorded, in addition to the sidecars.
	SkipFiles []string
	// OnFile is called after each newly recorded file.
	OnFile func(path string)
}

type pattern struct {
	glob   string
	negate bool
}

// Scanner feeds new files of a tree into a Store.
type Scanner struct {
	store     Store
	include   []string
	exclude   []pattern
	hasNegate bool
	skipFiles mapset.Set[string]
	onFile    func(string)
}

// New creates a Scanner. Globs are validated up front.
func New(store Store, opts Options) (*Scanner, error) {
	s := &Scanner{
		store:     store,
		skipFiles: mapset.NewSet(hashstore.SidecarNames()...),
		onFile:    opts.OnFile,
	}
	s.skipFiles.Append(opts.SkipFiles...)

	for _, glob := range opts.Include {
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, glob)
		}
		s.include = append(s.include, glob)
	}

	for _, glob := range opts.Exclude {
		p := pattern{glob: glob}
		if len(glob) > 1 && glob[0] == '!' {
			p = pattern{glob: glob[1:], negate: true}
			s.hasNegate = true
		}
		if !doublestar.ValidatePattern(p.glob) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, glob)
		}
		s.exclude = append(s.exclude, p)
	}

	return s, nil
}

// Scan walks root and yields the store key of every newly recorded file.
// Files of a directory are visited in name order before its subdirectories,
// and the store is flushed after each directory. The first error ends the
// sequence. A root inside the store directory, absolute or not, yields keys
// relative to the store directory. Paths below any other root keep that root
// as prefix and are tagged with it.
func (s *Scanner) Scan(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		abs := s.resolve(root)
		w := walk{
			Scanner: s,
			root:    hashstore.Normalize(root),
			yield:   yield,
		}
		if rel, ok := s.inside(abs); ok {
			w.root = rel
		} else {
			w.tag = w.root
		}
		w.dir(abs, "", false)
	}
}

func (s *Scanner) resolve(root string) string {
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	return filepath.Join(s.store.Dir(), root)
}

// inside returns abs relative to the store directory when it lies below it.
func (s *Scanner) inside(abs string) (string, bool) {
	base, err := filepath.Abs(s.store.Dir())
	if err != nil {
		return "", false
	}
	target, err := filepath.Abs(abs)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", false
	}
	rel = hashstore.Normalize(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

type walk struct {
	*Scanner
	root  string
	tag   string
	yield func(string, error) bool
}

// dir processes one directory level and reports whether walking continues.
func (w *walk) dir(abs, rel string, inherited bool) bool {
	entries, err := os.ReadDir(abs)
	if err != nil {
		w.yield("", fmt.Errorf("read directory %s: %w", abs, err))
		return false
	}

	type subdir struct {
		abs, rel string
		excluded bool
	}
	var subdirs []subdir

	for _, entry := range entries {
		name := entry.Name()
		childRel := path.Join(rel, name)

		if entry.IsDir() {
			excluded := w.excluded(childRel, name, inherited)
			if excluded && !w.hasNegate {
				continue
			}
			subdirs = append(subdirs, subdir{filepath.Join(abs, name), childRel, excluded})
			continue
		}

		if !entry.Type().IsRegular() || w.skipFiles.Contains(name) {
			continue
		}
		if w.excluded(childRel, name, inherited) || !w.included(childRel, name) {
			continue
		}

		key := w.key(childRel)
		if w.store.Known(key) {
			continue
		}

		if _, err := w.store.Add(key, w.tag); err != nil {
			w.stop(err)
			return false
		}
		if w.onFile != nil {
			w.onFile(key)
		}
		if !w.yield(key, nil) {
			if err := w.store.Flush(); err != nil {
				log.Warningf("flush after interrupted scan: %v", err)
			}
			return false
		}
	}

	if err := w.store.Flush(); err != nil {
		w.yield("", err)
		return false
	}

	for _, sd := range subdirs {
		if !w.dir(sd.abs, sd.rel, sd.excluded) {
			return false
		}
	}

	return true
}

// stop flushes what was recorded so far and reports cause.
func (w *walk) stop(cause error) {
	if err := w.store.Flush(); err != nil {
		log.Warningf("flush after failed scan: %v", err)
	}
	w.yield("", cause)
}

func (w *walk) key(rel string) string {
	if w.root == "." {
		return rel
	}
	return hashstore.Normalize(path.Join(w.root, rel))
}

func (s *Scanner) excluded(rel, name string, inherited bool) bool {
	excluded := inherited
	for _, p := range s.exclude {
		if matches(p.glob, rel, name) {
			excluded = !p.negate
		}
	}
	return excluded
}

func (s *Scanner) included(rel, name string) bool {
	if len(s.include) == 0 {
		return true
	}
	for _, glob := range s.include {
		if matches(glob, rel, name) {
			return true
		}
	}
	return false
}

func matches(glob, rel, name string) bool {
	if ok, _ := doublestar.Match(glob, rel); ok {
		return true
	}
	ok, _ := doublestar.Match(glob, name)
	return ok
}
