package script

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Dialect is the scripting surface a script is written for.
type Dialect int

const (
	// Shell emits POSIX shell commands.
	Shell Dialect = iota
	// Batch emits Windows cmd commands.
	Batch
	// Python emits os/shutil calls.
	Python
)

// DialectFor picks the dialect from the script file extension, falling back
// to the platform default.
func DialectFor(scriptPath string) Dialect {
	switch strings.ToLower(filepath.Ext(scriptPath)) {
	case ".sh":
		return Shell
	case ".bat", ".cmd":
		return Batch
	case ".py":
		return Python
	}
	if runtime.GOOS == "windows" {
		return Batch
	}
	return Shell
}

func (d Dialect) String() string {
	switch d {
	case Shell:
		return "shell"
	case Batch:
		return "batch"
	case Python:
		return "python"
	default:
		return "unknown"
	}
}

// Comment returns the line comment marker.
func (d Dialect) Comment() string {
	if d == Batch {
		return "REM"
	}
	return "#"
}

// Quote renders p as a literal argument.
func (d Dialect) Quote(p string) string {
	switch d {
	case Batch:
		p = strings.ReplaceAll(p, "/", `\`)
		return `"` + strings.ReplaceAll(p, "%", "%%") + `"`
	case Python:
		if utf8.ValidString(p) {
			return strconv.Quote(p)
		}
		return "os.fsdecode(" + pythonBytes(p) + ")"
	default:
		return "'" + strings.ReplaceAll(toUnix(p), "'", `'\''`) + "'"
	}
}

// pythonBytes renders p as a Python bytes literal, escaping every byte
// outside printable ASCII.
func pythonBytes(p string) string {
	var b strings.Builder
	b.WriteString(`b"`)
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' || c == '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, `\x%02x`, c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// toUnix turns a drive path like `C:\a\b` into `/C/a/b`.
func toUnix(p string) string {
	if len(p) < 2 || p[1] != ':' || !isLetter(p[0]) {
		return p
	}
	rest := strings.ReplaceAll(p[2:], `\`, "/")
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return "/" + p[:1] + rest
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Preamble returns the lines a script of this dialect starts with.
func (d Dialect) Preamble() []string {
	if d == Python {
		return []string{"import os", "import shutil"}
	}
	return nil
}

// Remove returns the command deleting file p.
func (d Dialect) Remove(p string) string {
	switch d {
	case Batch:
		return "del /f " + d.Quote(p)
	case Python:
		return "os.remove(" + d.Quote(p) + ")"
	default:
		return "rm -f " + d.Quote(p)
	}
}

// RemoveDir returns the command deleting directory p recursively.
func (d Dialect) RemoveDir(p string) string {
	switch d {
	case Batch:
		return "rmdir /s /q " + d.Quote(p)
	case Python:
		return "shutil.rmtree(" + d.Quote(p) + ")"
	default:
		return "rm -rf " + d.Quote(p)
	}
}

// Transfer returns the command copying or moving file src to dst, creating
// the parent directory of dst first.
func (d Dialect) Transfer(op Operation, src, dst string) string {
	var cmd string
	switch d {
	case Batch:
		verb := "copy /y"
		if op == Move {
			verb = "move /y"
		}
		cmd = verb + " " + d.Quote(src) + " " + d.Quote(dst)
	case Python:
		fn := "shutil.copy2"
		if op == Move {
			fn = "shutil.move"
		}
		cmd = fn + "(" + d.Quote(src) + ", " + d.Quote(dst) + ")"
	default:
		verb := "cp -p"
		if op == Move {
			verb = "mv"
		}
		cmd = verb + " " + d.Quote(src) + " " + d.Quote(dst)
	}
	return d.withParent(dst, cmd)
}

// TransferDir returns the command copying or moving directory src to dst.
func (d Dialect) TransferDir(op Operation, src, dst string) string {
	var cmd string
	switch d {
	case Batch:
		if op == Move {
			cmd = "move /y " + d.Quote(src) + " " + d.Quote(dst)
		} else {
			cmd = "xcopy /e /i /y " + d.Quote(src) + " " + d.Quote(dst)
		}
	case Python:
		if op == Move {
			cmd = "shutil.move(" + d.Quote(src) + ", " + d.Quote(dst) + ")"
		} else {
			cmd = "shutil.copytree(" + d.Quote(src) + ", " + d.Quote(dst) + ", dirs_exist_ok=True)"
		}
	default:
		verb := "cp -rp"
		if op == Move {
			verb = "mv"
		}
		cmd = verb + " " + d.Quote(src) + " " + d.Quote(dst)
	}
	return d.withParent(dst, cmd)
}

func (d Dialect) withParent(dst, cmd string) string {
	parent := path.Dir(dst)
	if parent == "." || parent == "/" {
		return cmd
	}
	switch d {
	case Batch:
		return "if not exist " + d.Quote(parent) + " mkdir " + d.Quote(parent) + " & " + cmd
	case Python:
		return "os.makedirs(" + d.Quote(parent) + ", exist_ok=True); " + cmd
	default:
		return "mkdir -p " + d.Quote(parent) + " && " + cmd
	}
}

// Cleanup returns the command deleting empty directories below the working
// directory, or "" when the dialect has none.
func (d Dialect) Cleanup() string {
	switch d {
	case Batch:
		return `for /f "delims=" %%d in ('dir /s /b /ad ^| sort /r') do rd "%%d" 2>nul`
	case Shell:
		return "find . -type d -empty -delete"
	default:
		return ""
	}
}
