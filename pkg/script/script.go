// Package script renders duplicate groups into remove, copy or move scripts
// for a shell, batch or Python surface.
package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/lestrrat-go/strftime"

	"remdups/pkg/duplicates"
)

var (
	// ErrNoDestination is returned when a copy or move target cannot be
	// derived: no rename scheme is set and a file outside the working
	// directory has no source root.
	ErrNoDestination = errors.New("no destination for file")
	// ErrPathEscape is returned when a destination leaves the working directory.
	ErrPathEscape = errors.New("destination escapes working directory")
	// ErrUnknownOperation is returned for an operation name other than rm, cp or mv.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrBadRenameScheme is returned for a rename scheme strftime rejects.
	ErrBadRenameScheme = errors.New("invalid rename scheme")
)

// Operation is what a script does with the files it lists.
type Operation int

const (
	// Remove deletes duplicates, leaving the keeper.
	Remove Operation = iota
	// Copy copies keepers and unique files into the working directory.
	Copy
	// Move moves keepers and unique files into the working directory.
	Move
)

// ParseOperation maps "rm", "cp" and "mv" to an Operation.
func ParseOperation(name string) (Operation, error) {
	switch name {
	case "rm":
		return Remove, nil
	case "cp":
		return Copy, nil
	case "mv":
		return Move, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
}

func (o Operation) String() string {
	switch o {
	case Remove:
		return "rm"
	case Copy:
		return "cp"
	case Move:
		return "mv"
	default:
		return "unknown"
	}
}

const (
	labelKeep      = "keep"
	labelDuplicate = "dup"
	labelProtected = "protected"
)

// Config selects what a Renderer emits.
type Config struct {
	Operation Operation
	Dialect   Dialect
	// KeepIn prefers keepers containing one of the substrings.
	KeepIn []string
	// KeepOut prefers keepers not containing one of the substrings.
	KeepOut []string
	// CommentOut protects files containing one of the substrings.
	CommentOut []string
	// AssetsSuffix names the folder a browser stores next to a saved page,
	// e.g. "_files" for "page.html". Empty disables asset handling.
	AssetsSuffix string
	// RenameScheme is a strftime pattern naming copy and move targets after
	// their modification time.
	RenameScheme string
}

// FS is the file system the renderer inspects.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// RootFunc returns the source root tag of a path, "" for the working tree.
type RootFunc func(path string) string

// Renderer turns duplicate groups into script lines.
type Renderer struct {
	cfg    Config
	scheme *strftime.Strftime
	fsys   FS
	dir    string
	roots  RootFunc
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFS replaces the operating system file system.
func WithFS(fsys FS) Option {
	return func(r *Renderer) {
		if fsys != nil {
			r.fsys = fsys
		}
	}
}

// WithDir resolves relative paths against dir when inspecting files.
func WithDir(dir string) Option {
	return func(r *Renderer) {
		r.dir = dir
	}
}

// WithRoots sets the lookup of source root tags used for destinations.
func WithRoots(roots RootFunc) Option {
	return func(r *Renderer) {
		r.roots = roots
	}
}

// New creates a Renderer, validating the rename scheme.
func New(cfg Config, opts ...Option) (*Renderer, error) {
	r := &Renderer{cfg: cfg, fsys: osFS{}}
	for _, opt := range opts {
		opt(r)
	}

	switch cfg.Operation {
	case Remove, Copy, Move:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperation, cfg.Operation)
	}

	if cfg.RenameScheme != "" {
		scheme, err := strftime.New(cfg.RenameScheme)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRenameScheme, err)
		}
		r.scheme = scheme
	}

	return r, nil
}

// Script is a rendered script.
type Script struct {
	Lines []string
	// Groups counts the rendered duplicate groups.
	Groups int
	// Actions counts the files the script acts on.
	Actions int
	// Bytes sums the sizes of the files the script acts on.
	Bytes int64
}

// String returns the script text, one line per command.
func (s *Script) String() string {
	if len(s.Lines) == 0 {
		return ""
	}
	return strings.Join(s.Lines, "\n") + "\n"
}

type render struct {
	*Renderer
	reserved mapset.Set[string]
	script   *Script
}

// Render emits the script for res. singles are the files outside every group;
// copy and move scripts relocate those not already in place. The output only depends on the
// arguments and the inspected files.
func (r *Renderer) Render(res duplicates.Result, singles []string) (*Script, error) {
	st := &render{
		Renderer: r,
		reserved: mapset.NewSet[string](),
		script:   &Script{},
	}

	transfer := r.cfg.Operation != Remove
	var unique []string
	if transfer {
		st.reserveInPlace(res, singles)
		for _, p := range singles {
			if !st.inPlace(p) {
				unique = append(unique, p)
			}
		}
		sort.Strings(unique)
	}
	if len(res.NoTail)+len(res.WithTail)+len(unique) == 0 {
		return st.script, nil
	}

	d := r.cfg.Dialect
	c := d.Comment()

	st.emit(d.Preamble()...)
	st.emit(c + " vim: set fdm=marker")

	if err := st.section("No Same Tail", res.NoTail); err != nil {
		return nil, err
	}
	if err := st.section("With Same Tail", res.WithTail); err != nil {
		return nil, err
	}

	if len(unique) > 0 {
		st.emit("", c+" Unique {{{")
		for _, p := range unique {
			if err := st.file(p, ""); err != nil {
				return nil, err
			}
		}
		st.emit(c + " }}}")
	}

	if !transfer {
		if cmd := d.Cleanup(); cmd != "" {
			st.emit("", cmd)
		}
	}

	return st.script, nil
}

func (st *render) emit(lines ...string) {
	st.script.Lines = append(st.script.Lines, lines...)
}

func (st *render) section(title string, groups []duplicates.Group) error {
	if len(groups) == 0 {
		return nil
	}

	c := st.cfg.Dialect.Comment()
	st.emit("", c+" "+title+" {{{")
	for _, g := range groups {
		if err := st.group(g); err != nil {
			return err
		}
	}
	st.emit(c + " }}}")

	return nil
}

func (st *render) group(g duplicates.Group) error {
	c := st.cfg.Dialect.Comment()
	keep := Keeper(st.keeperCandidates(g.Paths), st.cfg.KeepIn, st.cfg.KeepOut)

	paths := append([]string(nil), g.Paths...)
	sort.Strings(paths)

	st.emit("", c+":"+g.Tail+"{{{")
	for _, p := range paths {
		if err := st.file(p, st.label(p, keep)); err != nil {
			return err
		}
	}
	st.emit(c + ":}}}")
	st.script.Groups++

	return nil
}

// label returns the marker of p, "" when the script acts on it.
func (st *render) label(p, keep string) string {
	if st.protected(p) {
		return labelProtected
	}
	if st.cfg.Operation == Remove {
		if p == keep {
			return labelKeep
		}
		return ""
	}
	if p == keep {
		return ""
	}
	return labelDuplicate
}

func (st *render) file(p, label string) error {
	d := st.cfg.Dialect
	prefix := ""
	if label != "" {
		prefix = d.Comment() + " " + label + ": "
	}
	if st.cfg.Operation != Remove && st.inPlace(p) {
		if label == "" {
			label = labelKeep
		}
		st.emit(d.Comment() + " " + label + ": " + d.Quote(p))
		return nil
	}

	acted := label == ""
	assets, hasAssets := st.assets(p)

	if st.cfg.Operation == Remove {
		st.emit(prefix + d.Remove(p))
		if hasAssets {
			st.emit(prefix + d.RemoveDir(assets))
		}
	} else {
		dst, err := st.destination(p, acted)
		if err != nil {
			return err
		}
		st.emit(prefix + d.Transfer(st.cfg.Operation, p, dst))
		if hasAssets {
			dstAssets := strings.TrimSuffix(dst, path.Ext(dst)) + st.cfg.AssetsSuffix
			st.emit(prefix + d.TransferDir(st.cfg.Operation, assets, dstAssets))
		}
	}

	if acted {
		st.script.Actions++
		if info, err := st.fsys.Stat(st.resolve(p)); err == nil {
			st.script.Bytes += info.Size()
		}
	}

	return nil
}

// inPlace reports whether p already sits in the working directory at its
// copy or move destination. Only paths without a source root qualify, and only
// when no rename scheme relocates them.
func (st *render) inPlace(p string) bool {
	if st.scheme != nil {
		return false
	}
	if st.roots != nil && st.roots(p) != "" {
		return false
	}
	if path.IsAbs(p) || filepath.IsAbs(filepath.FromSlash(p)) {
		return false
	}
	return p != ".." && !strings.HasPrefix(p, "../")
}

// keeperCandidates narrows a copy or move group to its in-place members, if any.
func (st *render) keeperCandidates(paths []string) []string {
	if st.cfg.Operation == Remove {
		return paths
	}
	var local []string
	for _, p := range paths {
		if st.inPlace(p) {
			local = append(local, p)
		}
	}
	if len(local) == 0 {
		return paths
	}
	return local
}

// reserveInPlace claims the paths of in-place files so no transferred file
// overwrites them.
func (st *render) reserveInPlace(res duplicates.Result, singles []string) {
	for _, g := range res.Groups() {
		for _, p := range g.Paths {
			if st.inPlace(p) {
				st.reserved.Add(path.Clean(p))
			}
		}
	}
	for _, p := range singles {
		if st.inPlace(p) {
			st.reserved.Add(path.Clean(p))
		}
	}
}

// protected reports whether p must not be touched: it contains a comment-out
// substring or lies in the asset folder of a saved web page.
func (st *render) protected(p string) bool {
	for _, s := range st.cfg.CommentOut {
		if s != "" && strings.Contains(p, s) {
			return true
		}
	}

	suffix := st.cfg.AssetsSuffix
	if suffix == "" {
		return false
	}
	i := strings.Index(p, suffix+"/")
	if i < 0 {
		return false
	}
	page := p[:i]
	return st.exists(page+".html") || st.exists(page+".htm")
}

// assets returns the asset folder of a saved web page p, if it exists.
func (st *render) assets(p string) (string, bool) {
	ext := path.Ext(p)
	if st.cfg.AssetsSuffix == "" || !strings.HasPrefix(strings.ToLower(ext), ".htm") {
		return "", false
	}

	dir := strings.TrimSuffix(p, ext) + st.cfg.AssetsSuffix
	info, err := st.fsys.Stat(st.resolve(dir))
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

func (st *render) exists(p string) bool {
	_, err := st.fsys.Stat(st.resolve(p))
	return err == nil
}

func (r *Renderer) resolve(p string) string {
	native := filepath.FromSlash(p)
	if r.dir == "" || filepath.IsAbs(native) {
		return native
	}
	return filepath.Join(r.dir, native)
}
