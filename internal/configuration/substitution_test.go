package configuration

import (
	"strings"
	"testing"
)

func TestSubstituteVariables(t *testing.T) {
	t.Setenv("PATCHFORGE_TEST_TOKEN", "secret-token")
	t.Setenv("PATCHFORGE_TEST_HOST", "git.internal")

	ctx := NewSubstitutionContext()

	tests := []struct {
		name        string
		input       string
		want        string
		wantErr     bool
		errContains string
	}{
		{
			name:  "no placeholders",
			input: "https://github.com/sigp/lighthouse",
			want:  "https://github.com/sigp/lighthouse",
		},
		{
			name:  "single environment variable",
			input: "${PATCHFORGE_TEST_TOKEN}",
			want:  "secret-token",
		},
		{
			name:  "embedded environment variable",
			input: "https://${PATCHFORGE_TEST_HOST}/sigp/lighthouse",
			want:  "https://git.internal/sigp/lighthouse",
		},
		{
			name:  "multiple variables",
			input: "${PATCHFORGE_TEST_HOST}:${PATCHFORGE_TEST_TOKEN}",
			want:  "git.internal:secret-token",
		},
		{
			name:        "unset variable",
			input:       "${PATCHFORGE_TEST_DOES_NOT_EXIST}",
			wantErr:     true,
			errContains: "not set",
		},
		{
			name:        "malformed sops reference",
			input:       "${SOPS[missing-bracket}",
			wantErr:     true,
			errContains: "SOPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.SubstituteVariables(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain '%s', got '%v'", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestSubstituteInConfig(t *testing.T) {
	t.Setenv("PATCHFORGE_TEST_TOKEN", "secret-token")

	config := &Config{
		Upstream: &Upstream{
			Identity: Identity{Organization: "sigp", Repository: "lighthouse", Reference: "stable"},
		},
		Auth: &AuthConfig{HTTPSToken: "${PATCHFORGE_TEST_TOKEN}"},
	}

	ctx := NewSubstitutionContext()
	if err := ctx.SubstituteInConfig(config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Auth.HTTPSToken != "secret-token" {
		t.Errorf("expected substituted token, got '%s'", config.Auth.HTTPSToken)
	}
}

func TestGetYAMLValue(t *testing.T) {
	data := map[string]interface{}{
		"github": map[string]interface{}{
			"token": "abc123",
		},
		"flat": "value",
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "nested path", path: "github.token", want: "abc123"},
		{name: "flat path", path: "flat", want: "value"},
		{name: "missing key", path: "github.missing", wantErr: true},
		{name: "traverse into scalar", path: "flat.deeper", wantErr: true},
		{name: "empty path", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetYAMLValue(data, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected '%s', got '%v'", tt.want, got)
			}
		})
	}
}
