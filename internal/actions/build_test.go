package actions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mxcd/patchforge/internal/configuration"
)

const validPatch = `diff --git a/src/lib.rs b/src/lib.rs
--- a/src/lib.rs
+++ b/src/lib.rs
@@ -1,2 +1,3 @@
 pub mod api;
+pub mod observer;
 pub mod sync;
`

const malformedPatch = `diff --git a/src/lib.rs b/src/lib.rs
--- a/src/lib.rs
+++ b/src/lib.rs
@@ -1,5 +1,6 @@
 pub mod api;
`

func testIdentity() configuration.Identity {
	return configuration.Identity{
		Organization: "sigp",
		Repository:   "lighthouse",
		Reference:    "stable",
	}
}

func TestPersistPatch(t *testing.T) {
	tests := []struct {
		name        string
		existing    string
		patchText   string
		wantUpdated bool
		wantOnDisk  string
	}{
		{
			name:        "new patch file is written",
			patchText:   validPatch,
			wantUpdated: true,
			wantOnDisk:  validPatch,
		},
		{
			name:        "identical content is not rewritten",
			existing:    validPatch,
			patchText:   validPatch,
			wantUpdated: false,
			wantOnDisk:  validPatch,
		},
		{
			name:        "changed content replaces the file",
			existing:    "old content\n",
			patchText:   validPatch,
			wantUpdated: true,
			wantOnDisk:  validPatch,
		},
		{
			name:        "empty patch is not persisted",
			patchText:   "",
			wantUpdated: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patchDir := t.TempDir()
			config := &configuration.Config{PatchDirectory: patchDir}
			identity := testIdentity()
			patchPath := filepath.Join(patchDir, "sigp", "lighthouse", "stable.patch")

			if tt.existing != "" {
				if err := os.MkdirAll(filepath.Dir(patchPath), 0755); err != nil {
					t.Fatalf("failed to create patch directory: %v", err)
				}
				if err := os.WriteFile(patchPath, []byte(tt.existing), 0644); err != nil {
					t.Fatalf("failed to write existing patch: %v", err)
				}
			}

			gotPath, updated, err := persistPatch(config, identity, tt.patchText)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotPath != patchPath {
				t.Errorf("expected path %s, got %s", patchPath, gotPath)
			}
			if updated != tt.wantUpdated {
				t.Errorf("expected updated=%v, got %v", tt.wantUpdated, updated)
			}

			if tt.wantOnDisk != "" {
				data, err := os.ReadFile(patchPath)
				if err != nil {
					t.Fatalf("failed to read patch file: %v", err)
				}
				if string(data) != tt.wantOnDisk {
					t.Errorf("unexpected patch content:\n%s", data)
				}
			} else if tt.existing == "" {
				if _, err := os.Stat(patchPath); !os.IsNotExist(err) {
					t.Error("expected no patch file to be written")
				}
			}
		})
	}
}

func TestValidatePatchSet(t *testing.T) {
	identity := testIdentity()

	tests := []struct {
		name       string
		files      map[string]string
		wantChecks int
		wantErr    bool
	}{
		{
			name: "all patches valid",
			files: map[string]string{
				"stable.patch":            validPatch,
				"stable-0001-extra.patch": validPatch,
			},
			wantChecks: 2,
		},
		{
			name: "malformed extension reported",
			files: map[string]string{
				"stable.patch":            validPatch,
				"stable-0001-extra.patch": malformedPatch,
			},
			wantChecks: 2,
			wantErr:    true,
		},
		{
			name:       "missing patch set is not an error",
			files:      nil,
			wantChecks: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patchDir := t.TempDir()
			for name, content := range tt.files {
				path := filepath.Join(patchDir, "sigp", "lighthouse", name)
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					t.Fatalf("failed to create patch directory: %v", err)
				}
				if err := os.WriteFile(path, []byte(content), 0644); err != nil {
					t.Fatalf("failed to write patch: %v", err)
				}
			}

			config := &configuration.Config{
				Upstream:        &configuration.Upstream{Identity: identity},
				PatchDirectory:  patchDir,
				DefaultIdentity: &identity,
			}

			checks, err := validatePatchSet(config)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(checks) != tt.wantChecks {
				t.Errorf("expected %d checks, got %d", tt.wantChecks, len(checks))
			}

			invalid := 0
			for _, check := range checks {
				if !check.Valid {
					invalid++
					if check.Error == "" {
						t.Error("invalid check has no error message")
					}
				}
			}
			if tt.wantErr && invalid == 0 {
				t.Error("expected at least one invalid check")
			}
		})
	}
}
