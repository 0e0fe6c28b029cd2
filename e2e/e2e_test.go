package e2e

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var builtBinaryPath string

type cmdResult struct {
	stdout string
	stderr string
	err    error
}

func (r cmdResult) combinedOutput() string {
	return r.stdout + r.stderr
}

func resolveRepoRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve repo root")
	}

	root := filepath.Dir(filepath.Dir(filename))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repo root: %w", err)
	}

	return absRoot, nil
}

func TestMain(m *testing.M) {
	repoRoot, err := resolveRepoRoot()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize e2e tests: %v\n", err)
		os.Exit(1)
	}

	binDir, err := os.MkdirTemp("", "remdups-e2e-bin-*")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to create temp directory for binary: %v\n", err)
		os.Exit(1)
	}

	binPath := filepath.Join(binDir, "remdups")
	if runtime.GOOS == "windows" {
		binPath += ".exe"
	}

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd")
	cmd.Dir = repoRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to build remdups: %v\n%s\n", err, string(output))
		_ = os.RemoveAll(binDir)
		os.Exit(1)
	}

	builtBinaryPath = binPath

	exitCode := m.Run()
	_ = os.RemoveAll(binDir)
	os.Exit(exitCode)
}

func binaryPath(t *testing.T) string {
	t.Helper()

	if builtBinaryPath == "" {
		t.Fatal("binary path not initialized")
	}

	return builtBinaryPath
}

func runBinary(t *testing.T, binPath string, args ...string) cmdResult {
	t.Helper()

	timeout := 30 * time.Second
	if deadline, ok := t.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binPath, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		if stderr.Len() > 0 && !strings.HasSuffix(stderr.String(), "\n") {
			stderr.WriteString("\n")
		}
		stderr.WriteString("command timed out after " + timeout.String())
	}

	return cmdResult{
		stdout: stdout.String(),
		stderr: stderr.String(),
		err:    err,
	}
}

func writeFile(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set file times: %v", err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected path to exist: %s (error: %v)", path, err)
	}
}

func assertMissing(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected file to be missing: %s", path)
	} else if !os.IsNotExist(err) {
		t.Fatalf("expected path to be missing: %s (unexpected error: %v)", path, err)
	}
}

func assertCommandFailed(t *testing.T, result cmdResult, keywords ...string) {
	t.Helper()

	if result.err == nil {
		t.Fatalf("expected command to fail\nstdout:\n%s\nstderr:\n%s", result.stdout, result.stderr)
	}

	combined := strings.ToLower(result.combinedOutput())
	for _, keyword := range keywords {
		if !strings.Contains(combined, strings.ToLower(keyword)) {
			t.Fatalf("expected output to contain %q\n%s", keyword, result.combinedOutput())
		}
	}
}


func assertSucceeded(t *testing.T, result cmdResult) {
	t.Helper()

	if result.err != nil {
		t.Fatalf("command failed: %v\nstdout:\n%s\nstderr:\n%s", result.err, result.stdout, result.stderr)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func containsLine(lines []string, want string) bool {
	for _, line := range lines {
		if line == want {
			return true
		}
	}
	return false
}

// runShellScript executes a generated script with sh inside dir.
func runShellScript(t *testing.T, dir, script string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not run on windows")
	}
	shPath, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	cmd := exec.Command(shPath, script)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("script %s failed: %v\n%s", script, err, output)
	}
}

func createDuplicateTree(t *testing.T, root string) {
	t.Helper()

	modTime := time.Date(2019, 7, 1, 12, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(root, "sub", "a.txt"), "same", modTime)
	writeFile(t, filepath.Join(root, "other", "a.txt"), "same", modTime)
	writeFile(t, filepath.Join(root, "x", "y", "a.txt"), "same", modTime)
	writeFile(t, filepath.Join(root, "single.txt"), "alone", modTime)
}

func TestUpdateThenRemoveScript(t *testing.T) {
	t.Parallel()

	bin := binaryPath(t)
	dir := t.TempDir()
	createDuplicateTree(t, dir)

	result := runBinary(t, bin, "-C", dir, "update")
	assertSucceeded(t, result)
	if !strings.Contains(result.stdout, "New files:    4") {
		t.Fatalf("unexpected update output:\n%s", result.stdout)
	}

	result = runBinary(t, bin, "-C", dir, "update")
	assertSucceeded(t, result)
	if !strings.Contains(result.stdout, "New files:    0") {
		t.Fatalf("second update must find nothing new:\n%s", result.stdout)
	}

	result = runBinary(t, bin, "-C", dir, "rm", "-s", "remove.sh")
	assertSucceeded(t, result)

	lines := readLines(t, filepath.Join(dir, "remove.sh"))
	for _, want := range []string{
		"# vim: set fdm=marker",
		"#:a.txt{{{",
		"rm -f 'other/a.txt'",
		"# keep: rm -f 'sub/a.txt'",
		"rm -f 'x/y/a.txt'",
		"find . -type d -empty -delete",
	} {
		if !containsLine(lines, want) {
			t.Fatalf("script misses %q:\n%s", want, strings.Join(lines, "\n"))
		}
	}

	runShellScript(t, dir, "remove.sh")

	assertExists(t, filepath.Join(dir, "sub", "a.txt"))
	assertExists(t, filepath.Join(dir, "single.txt"))
	assertMissing(t, filepath.Join(dir, "other", "a.txt"))
	assertMissing(t, filepath.Join(dir, "x"))
}

func TestUpdateWithAbsoluteWorkDirKeepsOneCopy(t *testing.T) {
	t.Parallel()

	bin := binaryPath(t)
	dir := t.TempDir()
	createDuplicateTree(t, dir)

	assertSucceeded(t, runBinary(t, bin, "-C", dir, "update"))
	result := runBinary(t, bin, "-C", dir, "update", dir)
	assertSucceeded(t, result)
	if !strings.Contains(result.stdout, "New files:    0") {
		t.Fatalf("absolute work dir was hashed again:\n%s", result.stdout)
	}

	assertSucceeded(t, runBinary(t, bin, "-C", dir, "rm", "-s", "remove.sh"))
	runShellScript(t, dir, "remove.sh")

	assertExists(t, filepath.Join(dir, "sub", "a.txt"))
	assertExists(t, filepath.Join(dir, "single.txt"))
	assertMissing(t, filepath.Join(dir, "other", "a.txt"))
	assertMissing(t, filepath.Join(dir, "x", "y", "a.txt"))
}

func TestCopyScriptFromOtherTree(t *testing.T) {
	t.Parallel()

	bin := binaryPath(t)
	work := t.TempDir()
	src := t.TempDir()

	modTime := time.Date(2019, 7, 1, 12, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(src, "2019", "img.jpg"), "photo", modTime)
	writeFile(t, filepath.Join(src, "copy", "img.jpg"), "photo", modTime)
	writeFile(t, filepath.Join(src, "doc.txt"), "text", modTime)

	assertSucceeded(t, runBinary(t, bin, "-C", work, "update", src))

	result := runBinary(t, bin, "-C", work, "cp", "-s", "import.sh")
	assertSucceeded(t, result)
	if !strings.Contains(result.stdout, "Files:        2") {
		t.Fatalf("unexpected cp output:\n%s", result.stdout)
	}

	runShellScript(t, work, "import.sh")

	assertExists(t, filepath.Join(work, "2019", "img.jpg"))
	assertExists(t, filepath.Join(work, "doc.txt"))
	assertMissing(t, filepath.Join(work, "copy", "img.jpg"))
	assertExists(t, filepath.Join(src, "copy", "img.jpg"))
}

func TestDefaultCommandUpdates(t *testing.T) {
	t.Parallel()

	bin := binaryPath(t)
	dir := t.TempDir()
	createDuplicateTree(t, dir)

	result := runBinary(t, bin, "-C", dir)
	assertSucceeded(t, result)
	assertExists(t, filepath.Join(dir, ".remdups_c.sha256"))

	result = runBinary(t, bin, "-C", dir, "dupsof", "x/y")
	assertSucceeded(t, result)
	if result.stdout != "other/a.txt\nsub/a.txt\nx/y/a.txt\n" {
		t.Fatalf("unexpected dupsof output:\n%s", result.stdout)
	}
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()

	bin := binaryPath(t)
	dir := t.TempDir()
	createDuplicateTree(t, dir)
	assertSucceeded(t, runBinary(t, bin, "-C", dir, "update"))

	assertCommandFailed(t, runBinary(t, bin, "-C", dir, "rm"), "required flag", "script")
	assertCommandFailed(t, runBinary(t, bin, "-C", dir, "dupsof", "a.txt"), "ambiguous")
	assertCommandFailed(t, runBinary(t, bin, "-C", dir, "mv", "-s", "m.sh", "-r", "%"), "invalid rename scheme")
	assertMissing(t, filepath.Join(dir, "m.sh"))
	assertCommandFailed(t, runBinary(t, bin, "-C", filepath.Join(dir, "missing"), "update"), "cannot access directory")
}
