package patch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/mxcd/patchforge/internal/git"
	"github.com/mxcd/patchforge/internal/inject"
	"github.com/rs/zerolog/log"
)

// Generator regenerates a clean patch from a modified working tree. Before
// diffing it strips everything the pipeline itself put there (overlay
// trees, script-managed manifest edits, lockfile churn, workflow-disabling
// renames and leftover reject fragments) so only genuine source edits end
// up in the patch. Exclusion
// happens on the tree before diffing, not by filtering diff text, so
// excluded content can never leak into the result.
//
// Every step is idempotent and safe to run on an already-clean tree.
type Generator struct {
	git        git.Client
	dir        string
	exclusions *configuration.ExclusionSet
}

// NewGenerator creates a generator for the working tree at dir.
func NewGenerator(gitClient git.Client, dir string, exclusions *configuration.ExclusionSet) *Generator {
	return &Generator{
		git:        gitClient,
		dir:        dir,
		exclusions: exclusions,
	}
}

// Generate strips non-patch artifacts and returns the unified diff of the
// remaining modifications. An empty string with a nil error means the tree
// holds no meaningful changes. A *GenerationError is returned when the tree
// reports modifications but the computed diff is empty.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	log.Debug().Strs("exclusions", g.exclusions.Paths()).Msg("Stripping pipeline artifacts before diffing")

	if err := g.removeOverlays(ctx); err != nil {
		return "", err
	}
	if err := g.revertManagedManifests(ctx); err != nil {
		return "", err
	}
	if err := g.revertLockfile(ctx); err != nil {
		return "", err
	}
	if err := g.restoreWorkflows(); err != nil {
		return "", err
	}
	if err := g.sweepRejectArtifacts(); err != nil {
		return "", err
	}

	entries, err := g.git.Status(ctx, g.dir)
	if err != nil {
		return "", fmt.Errorf("failed to query tree status: %w", err)
	}
	if len(entries) == 0 {
		log.Info().Msg("Working tree holds no patch-worthy changes")
		return "", nil
	}

	diff, err := g.git.Diff(ctx, g.dir)
	if err != nil {
		return "", fmt.Errorf("failed to diff working tree: %w", err)
	}
	if strings.TrimSpace(diff) == "" {
		modified := make([]string, 0, len(entries))
		for _, entry := range entries {
			modified = append(modified, entry.Path)
		}
		return "", &GenerationError{Modified: modified}
	}

	if err := g.assertExclusionsAbsent(diff); err != nil {
		return "", err
	}

	log.Info().Int("modifiedPaths", len(entries)).Msg("Generated patch from working tree")
	return diff, nil
}

// assertExclusionsAbsent guards the exclusion invariant: the generated
// diff must not reference any excluded path. Exclusion happens on the tree
// before diffing, so a hit here means a strip step failed.
func (g *Generator) assertExclusionsAbsent(diff string) error {
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "diff --git a/") {
			continue
		}
		idx := strings.LastIndex(line, " b/")
		if idx < 0 {
			continue
		}
		target := line[idx+len(" b/"):]
		if g.exclusions.Contains(target) {
			return fmt.Errorf("generated patch references excluded path %s", target)
		}
	}
	return nil
}

// removeOverlays deletes every overlay destination and restores any tracked
// content the overlay had overwritten.
func (g *Generator) removeOverlays(ctx context.Context) error {
	for _, overlay := range g.exclusions.Overlays {
		abs := filepath.Join(g.dir, filepath.FromSlash(overlay))
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("failed to remove overlay %s: %w", overlay, err)
		}

		tracked, err := g.git.IsTracked(ctx, g.dir, overlay)
		if err != nil {
			return err
		}
		if tracked {
			if err := g.git.RevertPaths(ctx, g.dir, overlay); err != nil {
				return fmt.Errorf("failed to restore tracked content under overlay %s: %w", overlay, err)
			}
		}

		log.Debug().Str("overlay", overlay).Msg("Removed overlay tree")
	}
	return nil
}

// revertManagedManifests restores every script-managed manifest to its
// committed content. Their changes come from dependency injection, not
// from patch-worthy edits.
func (g *Generator) revertManagedManifests(ctx context.Context) error {
	var tracked []string
	for _, manifest := range g.exclusions.ManagedManifests {
		isTracked, err := g.git.IsTracked(ctx, g.dir, manifest)
		if err != nil {
			return err
		}
		if isTracked {
			tracked = append(tracked, manifest)
		}
	}
	if len(tracked) == 0 {
		return nil
	}

	if err := g.git.RevertPaths(ctx, g.dir, tracked...); err != nil {
		return fmt.Errorf("failed to revert managed manifests: %w", err)
	}
	log.Debug().Strs("manifests", tracked).Msg("Reverted script-managed manifests")
	return nil
}

// revertLockfile restores the dependency lockfile if and only if it
// differs. Lockfile churn is build-environment noise, never signal.
func (g *Generator) revertLockfile(ctx context.Context) error {
	lockfile := g.exclusions.Lockfile
	if lockfile == "" {
		return nil
	}

	entries, err := g.git.Status(ctx, g.dir)
	if err != nil {
		return fmt.Errorf("failed to query tree status: %w", err)
	}

	for _, entry := range entries {
		if entry.Path != lockfile {
			continue
		}
		if entry.Code == "??" {
			// Lockfile generated by the build but not part of upstream
			if err := os.Remove(filepath.Join(g.dir, filepath.FromSlash(lockfile))); err != nil {
				return fmt.Errorf("failed to remove generated lockfile: %w", err)
			}
		} else {
			if err := g.git.RevertPaths(ctx, g.dir, lockfile); err != nil {
				return fmt.Errorf("failed to revert lockfile: %w", err)
			}
		}
		log.Debug().Str("lockfile", lockfile).Msg("Reverted lockfile drift")
		return nil
	}
	return nil
}

// restoreWorkflows undoes the CI-disabling renames so the generated patch
// never contains workflow rename drift.
func (g *Generator) restoreWorkflows() error {
	restored, err := inject.RestoreWorkflows(g.dir)
	if err != nil {
		return fmt.Errorf("failed to restore disabled workflows: %w", err)
	}
	if restored > 0 {
		log.Debug().Int("workflows", restored).Msg("Reverted workflow-disabling renames")
	}
	return nil
}

// sweepRejectArtifacts removes leftover .rej/.orig fragments from earlier
// failed applications.
func (g *Generator) sweepRejectArtifacts() error {
	return filepath.WalkDir(g.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".rej") || strings.HasSuffix(d.Name(), ".orig") {
			log.Debug().Str("file", path).Msg("Removing leftover patch artifact")
			return os.Remove(path)
		}
		return nil
	})
}
