package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mxcd/patchforge/internal/configuration"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestInstall(t *testing.T) {
	sourceDir := t.TempDir()
	treeDir := t.TempDir()

	writeFile(t, filepath.Join(sourceDir, "Cargo.toml"), "[package]\nname = \"xatu\"\n")
	writeFile(t, filepath.Join(sourceDir, "src", "lib.rs"), "pub fn init() {}\n")

	installer := NewInstaller(treeDir)
	specs := []*configuration.OverlaySpec{
		{Source: sourceDir, Destination: "xatu"},
	}

	if err := installer.Install(specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readFile(t, filepath.Join(treeDir, "xatu", "src", "lib.rs")); got != "pub fn init() {}\n" {
		t.Errorf("unexpected copied content: %q", got)
	}
	if got := readFile(t, filepath.Join(treeDir, "xatu", "Cargo.toml")); got != "[package]\nname = \"xatu\"\n" {
		t.Errorf("unexpected copied content: %q", got)
	}
}

func TestInstallReplacesExistingDestination(t *testing.T) {
	sourceDir := t.TempDir()
	treeDir := t.TempDir()

	writeFile(t, filepath.Join(sourceDir, "src", "lib.rs"), "new content\n")
	// Stale destination with a file the new overlay does not carry
	writeFile(t, filepath.Join(treeDir, "xatu", "src", "lib.rs"), "old content\n")
	writeFile(t, filepath.Join(treeDir, "xatu", "stale.rs"), "should disappear\n")

	installer := NewInstaller(treeDir)
	specs := []*configuration.OverlaySpec{
		{Source: sourceDir, Destination: "xatu"},
	}

	if err := installer.Install(specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readFile(t, filepath.Join(treeDir, "xatu", "src", "lib.rs")); got != "new content\n" {
		t.Errorf("expected destination to be replaced, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(treeDir, "xatu", "stale.rs")); !os.IsNotExist(err) {
		t.Error("expected stale file to be removed, destinations are replaced not merged")
	}
}

func TestInstallIdempotent(t *testing.T) {
	sourceDir := t.TempDir()
	treeDir := t.TempDir()

	writeFile(t, filepath.Join(sourceDir, "src", "lib.rs"), "content\n")

	installer := NewInstaller(treeDir)
	specs := []*configuration.OverlaySpec{
		{Source: sourceDir, Destination: "xatu"},
	}

	for i := 0; i < 3; i++ {
		if err := installer.Install(specs); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}

	if got := readFile(t, filepath.Join(treeDir, "xatu", "src", "lib.rs")); got != "content\n" {
		t.Errorf("expected stable end state, got %q", got)
	}
}

func TestInstallMissingSource(t *testing.T) {
	installer := NewInstaller(t.TempDir())
	specs := []*configuration.OverlaySpec{
		{Source: filepath.Join(t.TempDir(), "does-not-exist"), Destination: "xatu"},
	}

	if err := installer.Install(specs); err == nil {
		t.Fatal("expected error for missing overlay source")
	}
}
