package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/distr1/backupd/internal/model"
)

func TestGlobBasic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "A")
	writeFile(t, filepath.Join(dir, "b.txt"), "B")
	writeFile(t, filepath.Join(dir, "skip.bin"), "X")

	r, err := New(model.SourceDescriptor{Glob: &model.GlobSource{
		SrcDir:   dir,
		Patterns: []string{"*.txt"},
	}}, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := readAllEntries(t, r)
	var names []string
	for path, content := range got {
		names = append(names, path)
		_ = content
	}
	sort.Strings(names)
	if want := []string{"a.txt", "b.txt"}; !equalStrings(names, want) {
		t.Fatalf("got entries %v, want %v", names, want)
	}
	if got["a.txt"] != "A" || got["b.txt"] != "B" {
		t.Fatalf("content mismatch: %v", got)
	}
}

func TestGlobRecursiveDoubleStarAndPrefix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub", "deep", "f.log"), "deep")
	writeFile(t, filepath.Join(dir, "top.log"), "top")

	r, err := New(model.SourceDescriptor{Glob: &model.GlobSource{
		SrcDir:    dir,
		DstPrefix: "logs",
		Patterns:  []string{"**/*.log", "*.log"},
	}}, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := readAllEntries(t, r)
	if got["logs/sub/deep/f.log"] != "deep" {
		t.Fatalf("missing deep entry, got %v", got)
	}
	if got["logs/top.log"] != "top" {
		t.Fatalf("missing top entry, got %v", got)
	}
}

func TestGlobUnreadableFileIsSkippedNotFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.txt"), "ok")
	blocked := filepath.Join(dir, "blocked.txt")
	writeFile(t, blocked, "secret")
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(blocked, 0o644)

	if os.Geteuid() == 0 {
		t.Skip("running as root, permission denial is not enforced")
	}

	r, err := New(model.SourceDescriptor{Glob: &model.GlobSource{
		SrcDir:   dir,
		Patterns: []string{"*.txt"},
	}}, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var skips []error
	got := make(map[string]string)
	err = r.Read(context.Background(), func(e model.ArchiveEntry) error {
		b := readAll(t, e)
		got[e.LogicalPath] = b
		return nil
	}, func(e error) {
		skips = append(skips, e)
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got["ok.txt"] != "ok" {
		t.Fatalf("expected ok.txt to be archived, got %v", got)
	}
	if _, ok := got["blocked.txt"]; ok {
		t.Fatalf("blocked.txt should have been skipped, not archived")
	}
	if len(skips) != 1 {
		t.Fatalf("expected exactly one skip, got %d: %v", len(skips), skips)
	}
}

func TestCompileGlobPatternCharacterClass(t *testing.T) {
	t.Parallel()
	re, err := compileGlobPattern("file[0-9].txt")
	if err != nil {
		t.Fatalf("compileGlobPattern: %v", err)
	}
	if !re.MatchString("file3.txt") {
		t.Fatal("expected file3.txt to match")
	}
	if re.MatchString("fileA.txt") {
		t.Fatal("expected fileA.txt not to match")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func readAll(t *testing.T, e model.ArchiveEntry) string {
	t.Helper()
	b, err := io.ReadAll(e.Data)
	if err != nil {
		t.Fatalf("reading entry %s: %v", e.LogicalPath, err)
	}
	return string(b)
}

func readAllEntries(t *testing.T, r Reader) map[string]string {
	t.Helper()
	got := make(map[string]string)
	err := r.Read(context.Background(), func(e model.ArchiveEntry) error {
		got[e.LogicalPath] = readAll(t, e)
		return nil
	}, func(err error) {
		t.Fatalf("unexpected skip: %v", err)
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return got
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
