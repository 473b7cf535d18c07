package indexer

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveFiles_NonGlob(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "movies.txt")
	writeFile(t, file, "x")

	paths, err := ResolveFiles([]string{file})
	if err != nil {
		t.Fatalf("ResolveFiles failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != file {
		t.Errorf("expected [%s], got %v", file, paths)
	}
}

func TestResolveFiles_NonGlob_Directory(t *testing.T) {
	if _, err := ResolveFiles([]string{t.TempDir()}); err == nil {
		t.Error("expected error for directory path")
	}
}

func TestResolveFiles_SingleLevelGlob(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "b.txt"), "b")
	writeFile(t, filepath.Join(tmpDir, "a.txt"), "a")
	writeFile(t, filepath.Join(tmpDir, "notes.md"), "skip")
	writeFile(t, filepath.Join(tmpDir, "nested", "c.txt"), "nested, not matched by *")
	if err := os.Mkdir(filepath.Join(tmpDir, "dir.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := ResolveFiles([]string{filepath.Join(tmpDir, "*.txt")})
	if err != nil {
		t.Fatalf("ResolveFiles failed: %v", err)
	}

	want := []string{filepath.Join(tmpDir, "a.txt"), filepath.Join(tmpDir, "b.txt")}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestResolveFiles_RecursiveGlob(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "top.txt"), "1")
	writeFile(t, filepath.Join(tmpDir, "a", "one.txt"), "2")
	writeFile(t, filepath.Join(tmpDir, "a", "b", "two.txt"), "3")
	writeFile(t, filepath.Join(tmpDir, "a", "b", "skip.json"), "{}")

	paths, err := ResolveFiles([]string{filepath.Join(tmpDir, "**", "*.txt")})
	if err != nil {
		t.Fatalf("ResolveFiles failed: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("expected 3 files, got %d: %v", len(paths), paths)
	}
}

func TestResolveFiles_Deduplicates(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "movies.txt")
	writeFile(t, file, "x")

	paths, err := ResolveFiles([]string{file, filepath.Join(tmpDir, "*.txt")})
	if err != nil {
		t.Fatalf("ResolveFiles failed: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("expected 1 path, got %v", paths)
	}
}

func TestResolveFiles_RelativePattern(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "chunks", "one.txt"), "1")
	t.Chdir(tmpDir)

	for _, pattern := range []string{"chunks/*.txt", "./chunks/*.txt", "**/*.txt"} {
		paths, err := ResolveFiles([]string{pattern})
		if err != nil {
			t.Fatalf("%s: ResolveFiles failed: %v", pattern, err)
		}
		if len(paths) != 1 || !filepath.IsAbs(paths[0]) {
			t.Errorf("%s: expected one absolute path, got %v", pattern, paths)
		}
	}
}

func TestResolveFiles_NoMatches(t *testing.T) {
	if _, err := ResolveFiles([]string{filepath.Join(t.TempDir(), "*.txt")}); err == nil {
		t.Error("expected error when nothing matches")
	}
}
