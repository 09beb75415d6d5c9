package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
)

type ApplyOptions struct {
	ConfigPath     string
	DiscardChanges bool
}

// Apply prepares the working tree without building: check out the
// upstream, apply the patch set, install overlays and perform the manifest
// injections. This is the half of the pipeline used for iterating on
// patches by hand.
func Apply(ctx context.Context, options *ApplyOptions) error {
	config, err := loadConfig(options.ConfigPath)
	if err != nil {
		return err
	}
	gitClient := newGitClient(config)

	pipeline, err := runPipeline(ctx, config, gitClient, options.DiscardChanges)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("🔧 Working tree prepared")
	t.AppendRow(table.Row{"Upstream", config.Upstream.Identity.String()})
	t.AppendRow(table.Row{"Commit", pipeline.CommitHash})
	t.AppendRow(table.Row{"Patch set", pipeline.Set.Identity.String()})
	t.AppendRow(table.Row{"Fallback used", pipeline.Set.FellBack})
	t.AppendRow(table.Row{"Patches applied", fmt.Sprintf("%d/%d", pipeline.PatchesApplied, len(pipeline.Set.Patches))})
	t.AppendRow(table.Row{"Overlays installed", len(config.Overlays)})
	t.AppendRow(table.Row{"Workflows disabled", pipeline.WorkflowsDisabled})
	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Println()

	log.Info().Str("dir", config.WorkingDirectory).Msg("Working tree is ready for editing")
	return nil
}
