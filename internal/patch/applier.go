package patch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mxcd/patchforge/internal/git"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Applier applies an ordered patch set to a working tree. Each patch goes
// through an escalating strategy ladder:
//
//  1. forward dry-run, then a real application
//  2. reverse dry-run: success means the patch is already applied; skip it
//  3. three-way merge application
//  4. reject-mode diagnosis: collect the rejected hunks into a
//     ConflictReport, restore the tree and fail
//
// Patches are applied strictly in set order; a later patch may depend on an
// earlier one's result.
type Applier struct {
	git git.Client
	dir string
}

// NewApplier creates an applier for the working tree at dir.
func NewApplier(gitClient git.Client, dir string) *Applier {
	return &Applier{
		git: gitClient,
		dir: dir,
	}
}

// ApplyAll applies every patch of the set in order and returns the number
// of patches that actually changed the tree. Already-applied patches are
// skipped without error and without counting. On conflict the tree is
// restored to the state before the failing patch and a *ConflictError is
// returned.
func (a *Applier) ApplyAll(ctx context.Context, set *Set) (int, error) {
	bar := progressbar.NewOptions(len(set.Patches),
		progressbar.OptionSetDescription("Applying patches:"),
		progressbar.OptionSetItsString("patch"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	applied := 0
	for _, patchFile := range set.Patches {
		bar.Add(1)
		n, err := a.applyOne(ctx, patchFile)
		if err != nil {
			fmt.Printf("\n")
			return applied, err
		}
		applied += n
	}

	bar.Finish()
	fmt.Printf("\n")

	log.Info().
		Int("applied", applied).
		Int("total", len(set.Patches)).
		Msg("Applied patch set")

	return applied, nil
}

// applyOne runs one patch through the strategy ladder. It returns 1 when
// the patch changed the tree and 0 when it was already applied.
func (a *Applier) applyOne(ctx context.Context, patchFile *File) (int, error) {
	// Strategy 1: forward dry-run, then the real application
	if err := a.git.ApplyCheck(ctx, a.dir, patchFile.Data); err == nil {
		if err := a.git.Apply(ctx, a.dir, patchFile.Data); err != nil {
			return 0, fmt.Errorf("patch %s passed dry-run but failed to apply: %w", patchFile.Name, err)
		}
		log.Debug().Str("patch", patchFile.Name).Msg("Patch applied")
		return 1, nil
	}

	// Strategy 2: reverse dry-run detects an already-applied patch
	if err := a.git.ApplyCheckReverse(ctx, a.dir, patchFile.Data); err == nil {
		log.Info().Str("patch", patchFile.Name).Msg("Patch already applied, skipping")
		return 0, nil
	}

	// The remaining strategies may leave partial state behind; snapshot the
	// outstanding tree delta so it can be restored on failure.
	snapshot, err := a.git.Diff(ctx, a.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot tree before patch %s: %w", patchFile.Name, err)
	}

	// Strategy 3: three-way merge against each hunk's recorded blob
	if err := a.git.ApplyThreeWay(ctx, a.dir, patchFile.Data); err == nil {
		log.Info().Str("patch", patchFile.Name).Msg("Patch applied via three-way merge")
		return 1, nil
	}
	if err := a.restore(ctx, snapshot); err != nil {
		return 0, err
	}

	// Strategy 4: diagnose via reject mode, then restore
	log.Warn().Str("patch", patchFile.Name).Msg("Patch applies by no strategy, collecting conflict report")
	report, diagErr := a.diagnose(ctx, patchFile)
	if err := a.restore(ctx, snapshot); err != nil {
		return 0, err
	}
	if diagErr != nil {
		return 0, diagErr
	}

	return 0, &ConflictError{Patch: patchFile.Name, Report: report}
}

// diagnose performs a best-effort reject-mode application and parses the
// resulting reject fragments into a structured report. The caller is
// responsible for restoring the tree afterwards.
func (a *Applier) diagnose(ctx context.Context, patchFile *File) (*ConflictReport, error) {
	// Expected to fail; the interesting output is the .rej fragments
	_ = a.git.ApplyReject(ctx, a.dir, patchFile.Data)

	report := &ConflictReport{Patch: patchFile.Name}

	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".rej") {
			return nil
		}

		rel, err := filepath.Rel(a.dir, path)
		if err != nil {
			return err
		}
		target := filepath.ToSlash(strings.TrimSuffix(rel, ".rej"))

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		hunks := parseRejectContent(target, data)
		a.annotateDivergence(target, hunks)
		report.Hunks = append(report.Hunks, hunks...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect reject fragments for patch %s: %w", patchFile.Name, err)
	}

	return report, nil
}

// annotateDivergence fills each hunk's Divergence field by comparing its
// expected pre-patch text with the actual file region.
func (a *Applier) annotateDivergence(target string, hunks []RejectedHunk) {
	content, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(target)))
	if err != nil {
		// Target missing entirely; the hunk listing alone has to do
		return
	}

	for i := range hunks {
		hunkRange, err := ParseHunkHeader(hunks[i].Header)
		if err != nil {
			continue
		}
		actual := fileRegion(string(content), hunkRange.OldStart, hunkRange.OldLines)
		hunks[i].Divergence = divergence(hunks[i].ExpectedOld(), actual)
	}
}

// restore returns the tree to the snapshotted state: discard everything,
// then replay the snapshot delta.
func (a *Applier) restore(ctx context.Context, snapshot string) error {
	if err := a.git.ResetHard(ctx, a.dir); err != nil {
		return fmt.Errorf("failed to restore tree: %w", err)
	}
	if err := a.git.CleanUntracked(ctx, a.dir); err != nil {
		return fmt.Errorf("failed to restore tree: %w", err)
	}
	if strings.TrimSpace(snapshot) == "" {
		return nil
	}
	if err := a.git.Apply(ctx, a.dir, []byte(snapshot)); err != nil {
		return fmt.Errorf("failed to replay tree snapshot: %w", err)
	}
	return nil
}
