package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/mxcd/patchforge/internal/patch"
	"github.com/rs/zerolog/log"
)

type SaveOptions struct {
	ConfigPath string
	Write      bool
}

// SaveResult reports what the generator produced.
type SaveResult struct {
	PatchPath    string `json:"patchPath" yaml:"patchPath"`
	PatchUpdated bool   `json:"patchUpdated" yaml:"patchUpdated"`
	NoChanges    bool   `json:"noChanges" yaml:"noChanges"`
}

// Save regenerates the patch from the current working tree. Without
// --write the patch text goes to stdout for inspection; with it the patch
// is persisted under the upstream identity's path.
func Save(ctx context.Context, options *SaveOptions) (*SaveResult, error) {
	config, err := loadConfig(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(config.WorkingDirectory); err != nil {
		return nil, fmt.Errorf("working tree %s does not exist, run apply first", config.WorkingDirectory)
	}

	gitClient := newGitClient(config)
	generator := patch.NewGenerator(gitClient, config.WorkingDirectory, config.ExclusionSet())
	patchText, err := generator.Generate(ctx)
	if err != nil {
		return nil, err
	}

	if patchText == "" {
		log.Info().Msg("Working tree holds no changes beyond the pipeline's own artifacts")
		return &SaveResult{NoChanges: true}, nil
	}

	if !options.Write {
		fmt.Print(patchText)
		return &SaveResult{PatchUpdated: true}, nil
	}

	result := &SaveResult{}
	result.PatchPath, result.PatchUpdated, err = persistPatch(config, config.Upstream.Identity, patchText)
	if err != nil {
		return nil, err
	}

	if result.PatchUpdated {
		log.Info().Str("patch", result.PatchPath).Msg("Patch file updated")
	} else {
		log.Info().Str("patch", result.PatchPath).Msg("Patch file unchanged")
	}
	return result, nil
}
