package configuration

import (
	"fmt"
	"path"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains the results of configuration validation
type ValidationResult struct {
	Valid  bool
	Errors []*ValidationError
}

// AddError adds a validation error to the result
func (r *ValidationResult) AddError(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, &ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateConfiguration performs validation on the configuration
func ValidateConfiguration(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:  true,
		Errors: make([]*ValidationError, 0),
	}

	validateUpstream(config, result)

	if strings.TrimSpace(config.WorkingDirectory) == "" {
		result.AddError("workingDirectory", "working directory cannot be empty")
	}
	if strings.TrimSpace(config.PatchDirectory) == "" {
		result.AddError("patchDirectory", "patch directory cannot be empty")
	}

	if config.DefaultIdentity != nil {
		validateIdentity("defaultIdentity", config.DefaultIdentity, result)
	}

	validateOverlays(config, result)
	validateInjections(config, result)

	if config.Exclusions != nil {
		for i, manifest := range config.Exclusions.ManagedManifests {
			field := fmt.Sprintf("exclusions.managedManifests[%d]", i)
			validateRelativePath(field, manifest, result)
		}
		if config.Exclusions.Lockfile != "" {
			validateRelativePath("exclusions.lockfile", config.Exclusions.Lockfile, result)
		}
	}

	if config.Build != nil && len(config.Build.Command) == 0 {
		result.AddError("build.command", "build command cannot be empty")
	}

	return result
}

func validateUpstream(config *Config, result *ValidationResult) {
	if config.Upstream == nil {
		result.AddError("upstream", "upstream configuration is required")
		return
	}
	validateIdentity("upstream", &config.Upstream.Identity, result)
}

func validateIdentity(fieldPrefix string, identity *Identity, result *ValidationResult) {
	if strings.TrimSpace(identity.Organization) == "" {
		result.AddError(fmt.Sprintf("%s.organization", fieldPrefix), "organization cannot be empty")
	}
	if strings.TrimSpace(identity.Repository) == "" {
		result.AddError(fmt.Sprintf("%s.repository", fieldPrefix), "repository cannot be empty")
	}
	if strings.TrimSpace(identity.Reference) == "" {
		result.AddError(fmt.Sprintf("%s.reference", fieldPrefix), "reference cannot be empty")
	}
}

func validateOverlays(config *Config, result *ValidationResult) {
	destinations := make(map[string]bool)
	for i, overlay := range config.Overlays {
		fieldPrefix := fmt.Sprintf("overlays[%d]", i)

		if strings.TrimSpace(overlay.Source) == "" {
			result.AddError(fmt.Sprintf("%s.source", fieldPrefix), "overlay source cannot be empty")
		}

		if strings.TrimSpace(overlay.Destination) == "" {
			result.AddError(fmt.Sprintf("%s.destination", fieldPrefix), "overlay destination cannot be empty")
			continue
		}

		validateRelativePath(fmt.Sprintf("%s.destination", fieldPrefix), overlay.Destination, result)

		if destinations[overlay.Destination] {
			result.AddError(fmt.Sprintf("%s.destination", fieldPrefix), fmt.Sprintf("duplicate overlay destination: %s", overlay.Destination))
		}
		destinations[overlay.Destination] = true
	}
}

func validateInjections(config *Config, result *ValidationResult) {
	for i, injection := range config.Injections {
		fieldPrefix := fmt.Sprintf("injections[%d]", i)

		if strings.TrimSpace(injection.File) == "" {
			result.AddError(fmt.Sprintf("%s.file", fieldPrefix), "injection file cannot be empty")
		} else {
			validateRelativePath(fmt.Sprintf("%s.file", fieldPrefix), injection.File, result)
		}
		if strings.TrimSpace(injection.After) == "" {
			result.AddError(fmt.Sprintf("%s.after", fieldPrefix), "injection marker cannot be empty")
		}
		if strings.TrimSpace(injection.Line) == "" {
			result.AddError(fmt.Sprintf("%s.line", fieldPrefix), "injection line cannot be empty")
		}
	}
}

// validateRelativePath rejects paths that escape the working tree.
func validateRelativePath(field, p string, result *ValidationResult) {
	if strings.HasPrefix(p, "/") {
		result.AddError(field, fmt.Sprintf("path must be relative to the working tree: %s", p))
		return
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		result.AddError(field, fmt.Sprintf("path must not escape the working tree: %s", p))
	}
}
