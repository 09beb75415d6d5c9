package actions

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/mxcd/patchforge/internal/git"
	"github.com/mxcd/patchforge/internal/inject"
	"github.com/mxcd/patchforge/internal/overlay"
	"github.com/mxcd/patchforge/internal/patch"
	"github.com/rs/zerolog/log"
)

// pipelineResult captures what the apply pipeline did to the working tree.
type pipelineResult struct {
	CommitHash        string
	Set               *patch.Set
	PatchesApplied    int
	WorkflowsDisabled int
}

// runPipeline acquires the working tree and runs the full apply sequence:
// resolve, validate, apply patches, install overlays, inject manifest lines
// and disable workflows. Patch validation happens for every patch of the
// set before the first one touches the tree.
func runPipeline(ctx context.Context, config *configuration.Config, gitClient git.Client, discardChanges bool) (*pipelineResult, error) {
	workingDir := config.WorkingDirectory

	// An existing tree with local changes is only reset when explicitly
	// authorized; otherwise the changes would be silently lost.
	if _, err := os.Stat(workingDir); err == nil {
		clean, err := gitClient.IsClean(ctx, workingDir)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect working tree: %w", err)
		}
		if !clean {
			if !discardChanges {
				return nil, fmt.Errorf("working tree %s has local changes, re-run with --discard-changes to reset it", workingDir)
			}
			log.Warn().Str("dir", workingDir).Msg("Discarding local changes in working tree")
			if err := gitClient.ResetHard(ctx, workingDir); err != nil {
				return nil, fmt.Errorf("failed to reset working tree: %w", err)
			}
			if err := gitClient.CleanUntracked(ctx, workingDir); err != nil {
				return nil, fmt.Errorf("failed to clean working tree: %w", err)
			}
		}
	}

	commitHash, err := gitClient.EnsureCheckout(ctx, config.Upstream.CloneURL(), config.Upstream.Reference, workingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to check out upstream: %w", err)
	}

	log.Info().
		Str("upstream", config.Upstream.Identity.String()).
		Str("commit", commitHash).
		Msg("Upstream working tree ready")

	resolver := patch.NewResolver(os.DirFS(config.PatchDirectory), *config.DefaultIdentity)
	set, err := resolver.Resolve(config.Upstream.Identity)
	if err != nil {
		return nil, err
	}

	for _, patchFile := range set.Patches {
		if err := patch.Validate(patchFile); err != nil {
			return nil, err
		}
	}
	log.Debug().Int("patches", len(set.Patches)).Msg("Patch set validated")

	applier := patch.NewApplier(gitClient, workingDir)
	applied, err := applier.ApplyAll(ctx, set)
	if err != nil {
		var conflictErr *patch.ConflictError
		if errors.As(err, &conflictErr) {
			printConflictReport(conflictErr.Report)
		}
		return nil, err
	}

	installer := overlay.NewInstaller(workingDir)
	if err := installer.Install(config.Overlays); err != nil {
		return nil, err
	}

	injector := inject.NewInjector(workingDir)
	if err := injector.Inject(config.Injections); err != nil {
		return nil, err
	}

	disabled := 0
	if config.DisableWorkflows {
		disabled, err = inject.DisableWorkflows(workingDir)
		if err != nil {
			return nil, err
		}
	}

	return &pipelineResult{
		CommitHash:        commitHash,
		Set:               set,
		PatchesApplied:    applied,
		WorkflowsDisabled: disabled,
	}, nil
}
