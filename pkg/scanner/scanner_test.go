package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remdups/internal/testutil"
	"remdups/pkg/hashstore"
)

func openStore(t *testing.T, dir string) *hashstore.Store {
	t.Helper()
	s, err := hashstore.Open(dir, hashstore.Options{})
	require.NoError(t, err)
	return s
}

func collect(t *testing.T, s *Scanner, root string) []string {
	t.Helper()
	var paths []string
	for p, err := range s.Scan(root) {
		require.NoError(t, err)
		paths = append(paths, p)
	}
	return paths
}

func TestScan_DeterministicOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CreateTree(t, dir, map[string]string{
		"b.txt":       "b",
		"a.txt":       "a",
		"z/inner.txt": "i",
		"m/deep/x":    "x",
		"m/c.txt":     "c",
	})

	sc, err := New(openStore(t, dir), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a.txt",
		"b.txt",
		"m/c.txt",
		"m/deep/x",
		"z/inner.txt",
	}, collect(t, sc, "."))
}

func TestScan_IsIncremental(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CreateTree(t, dir, map[string]string{
		"sub/a.txt":   "same",
		"other/a.txt": "same",
		"x/y/a.txt":   "same",
	})

	store := openStore(t, dir)
	sc, err := New(store, Options{})
	require.NoError(t, err)

	assert.Len(t, collect(t, sc, "."), 3)

	sidecar := filepath.Join(dir, ".remdups_c.sha256")
	before, err := os.Stat(sidecar)
	require.NoError(t, err)

	assert.Empty(t, collect(t, sc, "."), "second scan finds nothing new")

	after, err := os.Stat(sidecar)
	require.NoError(t, err)
	assert.Equal(t, before.Size(), after.Size())

	// A fresh session sees the persisted entries too.
	sc2, err := New(openStore(t, dir), Options{})
	require.NoError(t, err)
	assert.Empty(t, collect(t, sc2, "."))

	testutil.CreateFile(t, filepath.Join(dir, "new.txt"), "new")
	assert.Equal(t, []string{"new.txt"}, collect(t, sc2, "."))
}

func TestScan_SkipsSidecars(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range hashstore.SidecarNames() {
		testutil.CreateFile(t, filepath.Join(dir, name), "")
	}
	testutil.CreateFile(t, filepath.Join(dir, "sub", ".remdups_c.md5"), "")

	store := openStore(t, dir)
	require.Len(t, store.Sidecars(), 30)

	sc, err := New(store, Options{SkipFiles: []string{"settings.yaml"}})
	require.NoError(t, err)
	testutil.CreateFile(t, filepath.Join(dir, "deep", "settings.yaml"), "x: 1")
	assert.Empty(t, collect(t, sc, "."))

	for _, name := range hashstore.SidecarNames() {
		assert.Empty(t, testutil.ReadLines(t, filepath.Join(dir, name)), name)
	}
}

func TestScan_Filters(t *testing.T) {
	t.Parallel()

	tree := map[string]string{
		"a.jpg":          "1",
		"b.png":          "2",
		"keep.jpg":       "3",
		"cache/c.jpg":    "4",
		"cache/keep.jpg": "5",
		"docs/d.txt":     "6",
	}

	tests := []struct {
		name    string
		opts    Options
		want    []string
		wantErr bool
	}{
		{
			name: "include by base name",
			opts: Options{Include: []string{"*.jpg"}},
			want: []string{"a.jpg", "keep.jpg", "cache/c.jpg", "cache/keep.jpg"},
		},
		{
			name: "exclude directory",
			opts: Options{Exclude: []string{"cache"}},
			want: []string{"a.jpg", "b.png", "keep.jpg", "docs/d.txt"},
		},
		{
			name: "negation re-includes",
			opts: Options{Exclude: []string{"*.jpg", "!keep.jpg"}},
			want: []string{"b.png", "keep.jpg", "cache/keep.jpg", "docs/d.txt"},
		},
		{
			name: "negation reaches into excluded directory",
			opts: Options{Exclude: []string{"cache", "!cache/keep.jpg"}},
			want: []string{"a.jpg", "b.png", "keep.jpg", "cache/keep.jpg", "docs/d.txt"},
		},
		{
			name: "doublestar path glob",
			opts: Options{Include: []string{"**/*.txt"}},
			want: []string{"docs/d.txt"},
		},
		{
			name: "include matches nothing",
			opts: Options{Include: []string{"*.no"}},
		},
		{
			name:    "bad pattern",
			opts:    Options{Exclude: []string{"[unclosed"}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			testutil.CreateTree(t, dir, tree)

			sc, err := New(openStore(t, dir), tc.opts)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadPattern)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, collect(t, sc, "."))
		})
	}
}

func TestScan_FromOtherRoot(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	src := t.TempDir()
	testutil.CreateTree(t, src, map[string]string{
		"img.jpg":     "a",
		"sub/img.jpg": "a",
	})

	store := openStore(t, work)
	var seen []string
	sc, err := New(store, Options{OnFile: func(p string) { seen = append(seen, p) }})
	require.NoError(t, err)

	got := collect(t, sc, src)
	root := hashstore.Normalize(src)
	assert.Equal(t, []string{root + "/img.jpg", root + "/sub/img.jpg"}, got)
	assert.Equal(t, got, seen)
	for _, p := range got {
		assert.Equal(t, root, store.Root(p))
	}

	lines := testutil.ReadLines(t, filepath.Join(work, ".remdups_c.sha256"))
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\t"+root)
}

func TestScan_AbsoluteRootInsideStoreDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CreateTree(t, dir, map[string]string{
		"a.txt":     "a",
		"sub/b.txt": "b",
	})

	store := openStore(t, dir)
	sc, err := New(store, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, collect(t, sc, "."))
	assert.Empty(t, collect(t, sc, dir), "known files are not hashed again")
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, store.Files())
	for _, p := range store.Files() {
		assert.Empty(t, store.Root(p))
	}
}

func TestScan_SubdirectoryRootIsUntagged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CreateTree(t, dir, map[string]string{
		"sub/b.txt":      "b",
		"sub/deep/c.txt": "c",
		"other/d.txt":    "d",
	})

	store := openStore(t, dir)
	sc, err := New(store, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"sub/b.txt", "sub/deep/c.txt"}, collect(t, sc, filepath.Join(dir, "sub")))
	assert.Equal(t, []string{"other/d.txt"}, collect(t, sc, "other"))
	for _, p := range store.Files() {
		assert.Empty(t, store.Root(p), p)
	}

	lines := testutil.ReadLines(t, filepath.Join(dir, ".remdups_c.sha256"))
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Len(t, strings.Split(line, "\t"), 2, line)
	}
}

func TestScan_FlushesPerDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CreateTree(t, dir, map[string]string{
		"a.txt":     "a",
		"b.txt":     "b",
		"sub/c.txt": "c",
	})

	sc, err := New(openStore(t, dir), Options{})
	require.NoError(t, err)

	sidecar := filepath.Join(dir, ".remdups_c.sha256")
	for p, err := range sc.Scan(".") {
		require.NoError(t, err)
		if p == "sub/c.txt" {
			assert.Len(t, testutil.ReadLines(t, sidecar), 2, "top level flushed before descending")
			break
		}
	}

	assert.Len(t, testutil.ReadLines(t, sidecar), 3, "interrupted scan keeps what was recorded")
}

type failingStore struct {
	dir     string
	added   []string
	flushes int
}

func (f *failingStore) Dir() string       { return f.dir }
func (f *failingStore) Known(string) bool { return false }
func (f *failingStore) Flush() error      { f.flushes++; return nil }
func (f *failingStore) Add(p, _ string) (string, error) {
	if p == "b.txt" {
		return "", errors.New("permission denied")
	}
	f.added = append(f.added, p)
	return "d", nil
}

func TestScan_FingerprintErrorAborts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CreateTree(t, dir, map[string]string{
		"a.txt":     "a",
		"b.txt":     "b",
		"c.txt":     "c",
		"sub/d.txt": "d",
	})

	store := &failingStore{dir: dir}
	sc, err := New(store, Options{})
	require.NoError(t, err)

	var paths []string
	var scanErr error
	for p, err := range sc.Scan(".") {
		if err != nil {
			scanErr = err
			break
		}
		paths = append(paths, p)
	}

	require.Error(t, scanErr)
	assert.Contains(t, scanErr.Error(), "permission denied")
	assert.Equal(t, []string{"a.txt"}, paths)
	assert.Equal(t, []string{"a.txt"}, store.added)
	assert.Equal(t, 1, store.flushes)
}

func TestScan_MissingRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sc, err := New(openStore(t, dir), Options{})
	require.NoError(t, err)

	for _, err := range sc.Scan("does-not-exist") {
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read directory")
	}
}
