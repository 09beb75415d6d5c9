package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/mxcd/patchforge/internal/patch"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type ValidateOptions struct {
	ConfigPath   string
	OutputFormat string
}

// patchCheck is the structural validation verdict for one patch file.
type patchCheck struct {
	Patch string `json:"patch" yaml:"patch"`
	Valid bool   `json:"valid" yaml:"valid"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Validate checks the configuration and then structurally validates every
// patch the configured upstream identity resolves to.
func Validate(options *ValidateOptions) error {
	log.Debug().Str("config", options.ConfigPath).Msg("Loading configuration...")

	config, err := configuration.LoadConfiguration(options.ConfigPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return &ConfigError{Err: fmt.Errorf("configuration load error: %w", err)}
	}

	validationResult := configuration.ValidateConfiguration(config)

	var checks []patchCheck
	var structuralErr error
	if validationResult.Valid {
		checks, structuralErr = validatePatchSet(config)
	}

	if err := outputValidationResult(validationResult, checks, options.OutputFormat); err != nil {
		log.Error().Err(err).Msg("Failed to output validation results")
		return fmt.Errorf("output error: %w", err)
	}

	if !validationResult.Valid {
		return &ConfigError{Err: fmt.Errorf("configuration validation failed")}
	}
	if structuralErr != nil {
		return structuralErr
	}

	log.Info().Msg("Configuration and patch set are valid")
	return nil
}

// validatePatchSet resolves the upstream identity's patch set and runs the
// structural validator over every patch. A missing patch set is not a
// validation failure; the build will create one.
func validatePatchSet(config *configuration.Config) ([]patchCheck, error) {
	resolver := patch.NewResolver(os.DirFS(config.PatchDirectory), *config.DefaultIdentity)
	set, err := resolver.Resolve(config.Upstream.Identity)
	if err != nil {
		var resolutionErr *patch.ResolutionError
		if errors.As(err, &resolutionErr) {
			log.Warn().Str("identity", config.Upstream.Identity.String()).Msg("No patch set found, nothing to validate")
			return nil, nil
		}
		return nil, err
	}

	var checks []patchCheck
	var firstErr error
	for _, patchFile := range set.Patches {
		check := patchCheck{Patch: patchFile.Path, Valid: true}
		if err := patch.Validate(patchFile); err != nil {
			check.Valid = false
			check.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}
		checks = append(checks, check)
	}
	return checks, firstErr
}

func outputValidationResult(result *configuration.ValidationResult, checks []patchCheck, format string) error {
	switch format {
	case "table":
		return outputValidationTable(result, checks)
	case "json":
		return outputValidationJSON(result, checks)
	case "yaml":
		return outputValidationYAML(result, checks)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputValidationTable(result *configuration.ValidationResult, checks []patchCheck) error {
	if !result.Valid {
		fmt.Println("✗ Configuration validation failed:")
		fmt.Println()
		for _, err := range result.Errors {
			fmt.Printf("  • %s\n", err.Error())
		}
		fmt.Printf("\nTotal errors: %d\n", len(result.Errors))
		return nil
	}

	fmt.Println("✓ Configuration is valid")

	invalid := 0
	for _, check := range checks {
		if check.Valid {
			fmt.Printf("  ✓ %s\n", check.Patch)
		} else {
			fmt.Printf("  ✗ %s: %s\n", check.Patch, check.Error)
			invalid++
		}
	}
	if invalid > 0 {
		fmt.Printf("\nMalformed patches: %d\n", invalid)
	}
	return nil
}

func outputValidationJSON(result *configuration.ValidationResult, checks []patchCheck) error {
	output := map[string]interface{}{
		"valid":      result.Valid,
		"errorCount": len(result.Errors),
		"errors":     result.Errors,
		"patches":    checks,
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func outputValidationYAML(result *configuration.ValidationResult, checks []patchCheck) error {
	output := map[string]interface{}{
		"valid":      result.Valid,
		"errorCount": len(result.Errors),
		"errors":     result.Errors,
		"patches":    checks,
	}
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	return encoder.Encode(output)
}
