package actions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), ".patchforge.yml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestLoadConfigSubstitutesExactlyOnce(t *testing.T) {
	// A secret may legitimately contain ${...} text; substitution must not
	// run a second time over the substituted value.
	t.Setenv("PATCHFORGE_TEST_TOKEN", "literal-${NOT_A_VAR}-suffix")

	configPath := writeConfig(t, `upstream:
  organization: sigp
  repository: lighthouse
  reference: stable
workingDirectory: work
auth:
  httpsToken: "${PATCHFORGE_TEST_TOKEN}"
`)

	config, err := loadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error for a valid configuration: %v", err)
	}
	if config.Auth.HTTPSToken != "literal-${NOT_A_VAR}-suffix" {
		t.Errorf("expected the substituted token verbatim, got %q", config.Auth.HTTPSToken)
	}
}

func TestLoadConfigValidationFailure(t *testing.T) {
	configPath := writeConfig(t, "workingDirectory: work\n")

	_, err := loadConfig(configPath)
	if err == nil {
		t.Fatal("expected error for config without upstream")
	}
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}
