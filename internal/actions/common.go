package actions

import (
	"fmt"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/mxcd/patchforge/internal/git"
	"github.com/rs/zerolog/log"
)

// ConfigError wraps configuration load, substitution and validation
// failures so the CLI can map them to a dedicated exit code.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// loadConfig loads and validates the configuration. Variable substitution
// already happens inside LoadConfiguration; running it a second time would
// mangle substituted values that themselves contain ${...} text. Any
// failure comes back as a *ConfigError.
func loadConfig(configPath string) (*configuration.Config, error) {
	log.Debug().Str("config", configPath).Msg("Loading configuration...")

	config, err := configuration.LoadConfiguration(configPath)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("configuration load error: %w", err)}
	}

	validationResult := configuration.ValidateConfiguration(config)
	if !validationResult.Valid {
		for _, validationErr := range validationResult.Errors {
			log.Error().Str("field", validationErr.Field).Msg(validationErr.Message)
		}
		return nil, &ConfigError{Err: fmt.Errorf("configuration validation failed with %d error(s)", len(validationResult.Errors))}
	}

	log.Debug().Msg("Configuration loaded successfully")
	return config, nil
}

func newGitClient(config *configuration.Config) git.Client {
	var sshKeyFile, httpsToken string
	if config.Auth != nil {
		sshKeyFile = config.Auth.SSHKeyFile
		httpsToken = config.Auth.HTTPSToken
	}
	return git.NewShellClient(sshKeyFile, httpsToken)
}
