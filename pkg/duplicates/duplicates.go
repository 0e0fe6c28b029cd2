// Package duplicates partitions hashed files into duplicate groups.
// Files are duplicates if they share a digest; in safe mode groups are further
// split by a byte-exact comparison.
package duplicates

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cenkalti/log"
	mapset "github.com/deckarep/golang-set/v2"

	"remdups/pkg/progress"
)

// Group is a set of at least two files sharing a digest.
type Group struct {
	Tail  string   // common path suffix, possibly labelled "group N: "
	Paths []string // sorted
}

// Result holds the groups without and with a common tail.
type Result struct {
	NoTail   []Group
	WithTail []Group
}

// Groups returns all groups, the no-tail ones first.
func (r Result) Groups() []Group {
	groups := make([]Group, 0, len(r.NoTail)+len(r.WithTail))
	groups = append(groups, r.NoTail...)
	return append(groups, r.WithTail...)
}

// FileCount returns the number of files in all groups.
func (r Result) FileCount() int {
	n := 0
	for _, g := range r.Groups() {
		n += len(g.Paths)
	}
	return n
}

// CompareFunc reports whether two files have identical content.
type CompareFunc func(a, b string) (bool, error)

// Options configures FindDuplicates.
type Options struct {
	// OnlySameName drops groups whose members have no common tail.
	OnlySameName bool
	// Safe splits groups by byte-exact comparison.
	Safe bool
	// OnProgress reports refined groups during a safe run.
	OnProgress func(processed, total int)
}

// Detector finds duplicate groups.
type Detector struct {
	dir     string
	compare CompareFunc
}

// Option configures a Detector.
type Option func(*Detector)

// WithDir resolves relative paths against dir before comparing.
func WithDir(dir string) Option {
	return func(d *Detector) {
		d.dir = dir
	}
}

// WithCompare replaces the byte-exact file comparison.
func WithCompare(fn CompareFunc) Option {
	return func(d *Detector) {
		if fn != nil {
			d.compare = fn
		}
	}
}

// New creates a new Detector.
func New(opts ...Option) *Detector {
	d := &Detector{}
	d.compare = d.filesEqual
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) filesEqual(a, b string) (bool, error) {
	return FilesEqual(d.resolve(a), d.resolve(b))
}

func (d *Detector) resolve(path string) string {
	native := filepath.FromSlash(path)
	if d.dir == "" || filepath.IsAbs(native) {
		return native
	}
	return filepath.Join(d.dir, native)
}

// FindDuplicates groups the paths of every digest with two or more members.
func (d *Detector) FindDuplicates(index map[string][]string, opts Options) Result {
	var noTail, withTail []Group

	for _, paths := range candidates(index) {
		g := Group{Tail: CommonTail(paths), Paths: paths}
		if g.Tail == "" {
			noTail = append(noTail, g)
		} else {
			withTail = append(withTail, g)
		}
	}

	sort.SliceStable(withTail, func(i, j int) bool {
		return withTail[i].Tail < withTail[j].Tail
	})

	if opts.OnlySameName {
		noTail = nil
	}

	if opts.Safe {
		total := len(noTail) + len(withTail)
		done := 0
		step := func() {
			done++
			progress.Emit(opts.OnProgress, done, total)
		}
		noTail = d.refine(noTail, step)
		withTail = d.refine(withTail, step)
	}

	return Result{NoTail: noTail, WithTail: withTail}
}

// candidates returns the sorted member lists of all digests with duplicates,
// ordered by their first member.
func candidates(index map[string][]string) [][]string {
	var sets [][]string
	for _, paths := range index {
		if len(paths) < 2 {
			continue
		}
		sorted := append([]string(nil), paths...)
		sort.Strings(sorted)
		sets = append(sets, sorted)
	}

	sort.Slice(sets, func(i, j int) bool {
		return sets[i][0] < sets[j][0]
	})

	return sets
}

// refine splits each group into sub-groups of byte-identical files.
// Sub-groups of one file are dropped; later sub-groups get an ordinal label.
func (d *Detector) refine(groups []Group, step func()) []Group {
	var out []Group

	for _, g := range groups {
		files := g.Paths
		ordinal := 0

		for len(files) > 1 {
			first := files[0]
			same := []string{first}
			var rest []string

			for _, other := range files[1:] {
				equal, err := d.compare(first, other)
				if err != nil {
					log.Warningf("compare %s with %s: %v; treating as identical", first, other, err)
					equal = true
				}
				if equal {
					same = append(same, other)
				} else {
					rest = append(rest, other)
				}
			}

			if len(same) > 1 {
				tail := g.Tail
				if ordinal > 0 {
					tail = fmt.Sprintf("group %d: %s", ordinal, g.Tail)
				}
				out = append(out, Group{Tail: tail, Paths: same})
				ordinal++
			}
			files = rest
		}

		step()
	}

	return out
}

// CommonTail returns the longest common "/"-separated suffix of paths.
func CommonTail(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	split := make([][]string, len(paths))
	for i, p := range paths {
		split[i] = strings.Split(p, "/")
	}

	var tail []string
	for depth := 1; ; depth++ {
		first := split[0]
		if depth > len(first) {
			break
		}
		token := first[len(first)-depth]

		same := true
		for _, parts := range split[1:] {
			if depth > len(parts) || parts[len(parts)-depth] != token {
				same = false
				break
			}
		}
		if !same {
			break
		}
		tail = append(tail, token)
	}

	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return strings.Join(tail, "/")
}

// Singletons returns the sorted paths of index that belong to no group of res.
// This covers digests with one member as well as files dropped by the
// same-name filter or split off by a safe comparison.
func Singletons(index map[string][]string, res Result) []string {
	grouped := mapset.NewThreadUnsafeSet[string]()
	for _, g := range res.Groups() {
		grouped.Append(g.Paths...)
	}

	var single []string
	for _, paths := range index {
		for _, p := range paths {
			if !grouped.Contains(p) {
				single = append(single, p)
			}
		}
	}
	sort.Strings(single)
	return single
}
