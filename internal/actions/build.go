package actions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/mxcd/patchforge/internal/patch"
	"github.com/rs/zerolog/log"
)

type BuildOptions struct {
	ConfigPath     string
	DiscardChanges bool
	SkipBuild      bool
}

// BuildResult summarizes one full pipeline run.
type BuildResult struct {
	CommitHash        string `json:"commitHash" yaml:"commitHash"`
	Identity          string `json:"identity" yaml:"identity"`
	FellBack          bool   `json:"fellBack" yaml:"fellBack"`
	PatchesApplied    int    `json:"patchesApplied" yaml:"patchesApplied"`
	WorkflowsDisabled int    `json:"workflowsDisabled" yaml:"workflowsDisabled"`
	BuildRan          bool   `json:"buildRan" yaml:"buildRan"`
	PatchPath         string `json:"patchPath" yaml:"patchPath"`
	PatchUpdated      bool   `json:"patchUpdated" yaml:"patchUpdated"`
}

// Build runs the full pipeline: check out the upstream, apply the patch
// set, install overlays, perform manifest injections, run the external
// build and regenerate the patch. The regenerated patch is persisted under
// the upstream identity's path only when its content changed.
func Build(ctx context.Context, options *BuildOptions) (*BuildResult, error) {
	config, err := loadConfig(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	gitClient := newGitClient(config)

	pipeline, err := runPipeline(ctx, config, gitClient, options.DiscardChanges)
	if err != nil {
		return nil, err
	}

	buildRan := false
	if !options.SkipBuild && config.Build != nil && len(config.Build.Command) > 0 {
		if err := runExternalBuild(ctx, config); err != nil {
			return nil, err
		}
		buildRan = true
	} else {
		log.Info().Msg("Skipping external build")
	}

	generator := patch.NewGenerator(gitClient, config.WorkingDirectory, config.ExclusionSet())
	patchText, err := generator.Generate(ctx)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		CommitHash:        pipeline.CommitHash,
		Identity:          config.Upstream.Identity.String(),
		FellBack:          pipeline.Set.FellBack,
		PatchesApplied:    pipeline.PatchesApplied,
		WorkflowsDisabled: pipeline.WorkflowsDisabled,
		BuildRan:          buildRan,
	}

	// The regenerated patch flattens the whole applied set. It is stored
	// under the identity that was requested, not the one the resolver fell
	// back to, so a new upstream version gets its own patch file.
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

// runExternalBuild executes the configured build command inside the
// working tree, streaming its output through.
func runExternalBuild(ctx context.Context, config *configuration.Config) error {
	command := config.Build.Command
	log.Info().Strs("command", command).Msg("Running external build")

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = config.WorkingDirectory
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("external build failed: %w", err)
	}
	return nil
}

// persistPatch writes the generated patch to the identity's base patch
// path unless the file already holds identical content. It reports the
// path written to and whether the file changed.
func persistPatch(config *configuration.Config, identity configuration.Identity, patchText string) (string, bool, error) {
	patchPath := filepath.Join(config.PatchDirectory, filepath.FromSlash(identity.BasePatchPath()))

	existing, err := os.ReadFile(patchPath)
	if err == nil && bytes.Equal(existing, []byte(patchText)) {
		return patchPath, false, nil
	}

	if patchText == "" {
		log.Warn().Msg("Generated patch is empty, nothing to persist")
		return patchPath, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(patchPath), 0755); err != nil {
		return patchPath, false, fmt.Errorf("failed to create patch directory: %w", err)
	}
	if err := os.WriteFile(patchPath, []byte(patchText), 0644); err != nil {
		return patchPath, false, fmt.Errorf("failed to write patch file: %w", err)
	}
	return patchPath, true, nil
}
