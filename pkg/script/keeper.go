package script

import (
	"sort"
	"strings"
)

// Keeper selects the member of a group that stays in place.
//
// Each keep-in substring yields the members containing it, each keep-out
// substring the members not containing it, and the unfiltered members are
// always a candidate too. Every candidate list is ordered by path length,
// empty lists are dropped, and the first path of the shortest list wins.
func Keeper(paths, keepIn, keepOut []string) string {
	if len(paths) == 0 {
		return ""
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var candidates [][]string
	add := func(keep func(string) bool) {
		var list []string
		for _, p := range sorted {
			if keep(p) {
				list = append(list, p)
			}
		}
		if len(list) == 0 {
			return
		}
		sort.SliceStable(list, func(i, j int) bool {
			return len(list[i]) < len(list[j])
		})
		candidates = append(candidates, list)
	}

	for _, in := range keepIn {
		add(func(p string) bool { return strings.Contains(p, in) })
	}
	for _, out := range keepOut {
		add(func(p string) bool { return !strings.Contains(p, out) })
	}
	add(func(string) bool { return true })

	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) < len(candidates[j])
	})

	return candidates[0][0]
}
