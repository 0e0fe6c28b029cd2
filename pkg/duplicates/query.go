package duplicates

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"remdups/pkg/hashstore"
)

// ErrAmbiguous is returned when a substring matches more than one file.
var ErrAmbiguous = errors.New("ambiguous file reference")

// ErrNotFound is returned when a substring matches no file.
var ErrNotFound = errors.New("no such file in hash store")

// Index is the read side of the hash store used by lookups.
type Index interface {
	Known(path string) bool
	Duplicates(path string) ([]string, error)
	Files() []string
}

// WhereTail returns the groups whose tail ends with tail.
func WhereTail(groups []Group, tail string) []Group {
	var matched []Group
	for _, g := range groups {
		if strings.HasSuffix(g.Tail, tail) {
			matched = append(matched, g)
		}
	}
	return matched
}

// WhereFile returns every path sharing the digest of the file named by ref,
// the file itself included, sorted. ref is an exact store key or a substring
// matching exactly one key.
func WhereFile(idx Index, ref string) ([]string, error) {
	key := hashstore.Normalize(ref)
	if !idx.Known(key) {
		var matches []string
		for _, p := range idx.Files() {
			if strings.Contains(p, ref) {
				matches = append(matches, p)
			}
		}

		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		case 1:
			key = matches[0]
		default:
			return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguous, ref, strings.Join(matches, ", "))
		}
	}

	others, err := idx.Duplicates(key)
	if err != nil {
		return nil, err
	}
	paths := append(others, key)
	sort.Strings(paths)
	return paths, nil
}
