package script

import (
	"fmt"
	"path"
	"strings"
)

// destination returns where p goes in a copy or move script. Destinations of
// acted files are reserved, later collisions get a numeric suffix.
func (st *render) destination(p string, acted bool) (string, error) {
	var dst string
	if st.scheme != nil {
		info, err := st.fsys.Stat(st.resolve(p))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		dst = st.scheme.FormatString(info.ModTime()) + strings.ToLower(path.Ext(p))
	} else {
		root := ""
		if st.roots != nil {
			root = st.roots(p)
		}
		if root == "" || !strings.HasPrefix(p, root) {
			return "", fmt.Errorf("%w: %s", ErrNoDestination, p)
		}
		dst = strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if dst == "" {
			return "", fmt.Errorf("%w: %s", ErrNoDestination, p)
		}
	}

	dst = path.Clean(dst)
	if dst == ".." || strings.HasPrefix(dst, "../") || path.IsAbs(dst) {
		return "", fmt.Errorf("%w: %s for %s", ErrPathEscape, dst, p)
	}

	if !acted {
		return dst, nil
	}

	candidate := dst
	for n := 1; st.reserved.Contains(candidate); n++ {
		candidate = withCounter(dst, n)
	}
	st.reserved.Add(candidate)

	return candidate, nil
}

// withCounter inserts "_n" before the extension: "a/photo.jpg" becomes
// "a/photo_2.jpg" for n 2.
func withCounter(name string, n int) string {
	ext := path.Ext(name)
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s_%d%s", base, n, ext)
}
