package configuration

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// SubstitutionContext holds the state for variable substitution
type SubstitutionContext struct {
	sopsCache map[string]map[string]interface{} // Cache for loaded SOPS files
}

// NewSubstitutionContext creates a new substitution context
func NewSubstitutionContext() *SubstitutionContext {
	return &SubstitutionContext{
		sopsCache: make(map[string]map[string]interface{}),
	}
}

// SubstituteVariables replaces environment variables and SOPS references in the input string
// Supports:
// - ${VAR_NAME} for environment variables
// - ${SOPS[path/to/file.yml].yaml.path.to.value} for SOPS encrypted files
func (ctx *SubstitutionContext) SubstituteVariables(input string) (string, error) {
	// Pattern to match ${...} placeholders
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)

	result := input
	matches := pattern.FindAllStringSubmatch(input, -1)

	for _, match := range matches {
		if len(match) < 2 {
			continue
		}

		placeholder := match[0] // Full match: ${...}
		expression := match[1]  // Content inside: VAR_NAME or SOPS[...]...

		var value string
		var err error

		if strings.HasPrefix(expression, "SOPS[") {
			value, err = ctx.resolveSOPSReference(expression)
			if err != nil {
				return "", fmt.Errorf("failed to resolve SOPS reference %s: %w", placeholder, err)
			}
		} else {
			value = os.Getenv(expression)
			if value == "" {
				return "", fmt.Errorf("environment variable %s is not set", expression)
			}
		}

		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result, nil
}

// resolveSOPSReference resolves a SOPS reference like SOPS[file.yml].path.to.value
func (ctx *SubstitutionContext) resolveSOPSReference(expression string) (string, error) {
	// Format: SOPS[path/to/file.yml].yaml.path.to.value
	if !strings.HasPrefix(expression, "SOPS[") {
		return "", fmt.Errorf("invalid SOPS reference format: %s", expression)
	}

	closeBracketIdx := strings.Index(expression, "]")
	if closeBracketIdx == -1 {
		return "", fmt.Errorf("invalid SOPS reference format (missing ]): %s", expression)
	}

	filePath := expression[5:closeBracketIdx] // path between SOPS[ and ]
	yamlPath := ""

	if closeBracketIdx+1 < len(expression) {
		if expression[closeBracketIdx+1] != '.' {
			return "", fmt.Errorf("invalid SOPS reference format (expected . after ]): %s", expression)
		}
		yamlPath = expression[closeBracketIdx+2:] // Skip ].
	}

	if yamlPath == "" {
		return "", fmt.Errorf("SOPS reference must include a YAML path: %s", expression)
	}

	data, err := ctx.loadSOPSFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to load SOPS file %s: %w", filePath, err)
	}

	value, err := GetYAMLValue(data, yamlPath)
	if err != nil {
		return "", fmt.Errorf("failed to access path %s in SOPS file %s: %w", yamlPath, filePath, err)
	}

	return fmt.Sprintf("%v", value), nil
}

// loadSOPSFile loads and decrypts a SOPS file, with caching
func (ctx *SubstitutionContext) loadSOPSFile(filePath string) (map[string]interface{}, error) {
	if data, ok := ctx.sopsCache[filePath]; ok {
		return data, nil
	}

	data, err := DecryptSOPSFile(filePath)
	if err != nil {
		return nil, err
	}

	ctx.sopsCache[filePath] = data
	return data, nil
}

// SubstituteInConfig substitutes variables in every configuration field that
// may carry secrets or environment-specific values.
func (ctx *SubstitutionContext) SubstituteInConfig(config *Config) error {
	var err error

	if config.Upstream != nil && config.Upstream.URL != "" {
		config.Upstream.URL, err = ctx.SubstituteVariables(config.Upstream.URL)
		if err != nil {
			return fmt.Errorf("failed to substitute URL in upstream: %w", err)
		}
	}

	if config.Auth != nil {
		if config.Auth.SSHKeyFile != "" {
			config.Auth.SSHKeyFile, err = ctx.SubstituteVariables(config.Auth.SSHKeyFile)
			if err != nil {
				return fmt.Errorf("failed to substitute sshKeyFile in auth: %w", err)
			}
		}
		if config.Auth.HTTPSToken != "" {
			config.Auth.HTTPSToken, err = ctx.SubstituteVariables(config.Auth.HTTPSToken)
			if err != nil {
				return fmt.Errorf("failed to substitute httpsToken in auth: %w", err)
			}
		}
	}

	return nil
}

// GetYAMLValue retrieves a value from a nested YAML structure using dot notation
// Example: "credentials.token" accesses data["credentials"]["token"]
func GetYAMLValue(data map[string]interface{}, path string) (interface{}, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	parts := strings.Split(path, ".")
	current := interface{}(data)

	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid path: empty segment at position %d", i)
		}

		switch v := current.(type) {
		case map[string]interface{}:
			value, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("path not found: %s (missing key '%s')", path, part)
			}
			current = value
		case map[interface{}]interface{}:
			// YAML sometimes uses interface{} keys
			value, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("path not found: %s (missing key '%s')", path, part)
			}
			current = value
		default:
			return nil, fmt.Errorf("path not found: %s (cannot traverse into non-map at '%s')", path, part)
		}
	}

	return current, nil
}
