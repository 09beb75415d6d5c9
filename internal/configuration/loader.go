package configuration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadConfiguration reads and parses the configuration from the given path.
// If the path is a directory, it loads all .yml/.yaml files within it and
// merges them. Environment variable and SOPS substitution is applied to the
// merged result.
func LoadConfiguration(configPath string) (*Config, error) {
	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access configuration path: %w", err)
	}

	var config *Config
	if fileInfo.IsDir() {
		config, err = loadConfigurationFromDirectory(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		config, err = loadSingleConfigurationFile(configPath)
		if err != nil {
			return nil, err
		}
	}

	// Perform variable substitution
	ctx := NewSubstitutionContext()
	if err := ctx.SubstituteInConfig(config); err != nil {
		return nil, fmt.Errorf("failed to substitute variables: %w", err)
	}

	applyDefaults(config)

	return config, nil
}

// loadSingleConfigurationFile reads and parses a single configuration file
func loadSingleConfigurationFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	return &config, nil
}

// loadConfigurationFromDirectory loads all .yml/.yaml files from a directory
// and merges them into a single configuration
func loadConfigurationFromDirectory(dirPath string) (*Config, error) {
	merged := &Config{}
	fileCount := 0

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Only scan the top level of the configuration directory
			if path != dirPath {
				return fs.SkipDir
			}
			return nil
		}
		if !isYAMLFile(d.Name()) {
			return nil
		}

		log.Debug().Str("file", path).Msg("Loading configuration file")

		config, err := loadSingleConfigurationFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}

		mergeConfig(merged, config)
		fileCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fileCount == 0 {
		return nil, fmt.Errorf("no .yml or .yaml configuration files found in directory: %s", dirPath)
	}

	log.Debug().Int("files", fileCount).Msg("Merged configuration files")
	return merged, nil
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}

// mergeConfig merges src into dst. List sections are appended, scalar
// sections are replaced when set in src (last file wins).
func mergeConfig(dst, src *Config) {
	if src.Upstream != nil {
		dst.Upstream = src.Upstream
	}
	if src.WorkingDirectory != "" {
		dst.WorkingDirectory = src.WorkingDirectory
	}
	if src.PatchDirectory != "" {
		dst.PatchDirectory = src.PatchDirectory
	}
	if src.DefaultIdentity != nil {
		dst.DefaultIdentity = src.DefaultIdentity
	}
	if src.Exclusions != nil {
		dst.Exclusions = src.Exclusions
	}
	if src.Build != nil {
		dst.Build = src.Build
	}
	if src.Auth != nil {
		dst.Auth = src.Auth
	}
	if src.DisableWorkflows {
		dst.DisableWorkflows = true
	}
	dst.Overlays = append(dst.Overlays, src.Overlays...)
	dst.Injections = append(dst.Injections, src.Injections...)
}

// applyDefaults fills derivable fields that were left empty.
func applyDefaults(config *Config) {
	if config.DefaultIdentity == nil && config.Upstream != nil {
		config.DefaultIdentity = &Identity{
			Organization: config.Upstream.Organization,
			Repository:   config.Upstream.Repository,
			Reference:    config.Upstream.Reference,
		}
	}
	if config.PatchDirectory == "" {
		config.PatchDirectory = "patches"
	}
}
