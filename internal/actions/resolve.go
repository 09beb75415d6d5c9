package actions

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mxcd/patchforge/internal/patch"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type ResolveOptions struct {
	ConfigPath   string
	OutputFormat string
}

// resolveOutput is the serializable view of a resolved patch set.
type resolveOutput struct {
	Requested string   `json:"requested" yaml:"requested"`
	Resolved  string   `json:"resolved" yaml:"resolved"`
	FellBack  bool     `json:"fellBack" yaml:"fellBack"`
	Patches   []string `json:"patches" yaml:"patches"`
}

// Resolve shows which patch set the configured upstream identity maps to,
// without touching the working tree.
func Resolve(options *ResolveOptions) error {
	config, err := loadConfig(options.ConfigPath)
	if err != nil {
		return err
	}

	resolver := patch.NewResolver(os.DirFS(config.PatchDirectory), *config.DefaultIdentity)
	set, err := resolver.Resolve(config.Upstream.Identity)
	if err != nil {
		return err
	}

	output := &resolveOutput{
		Requested: config.Upstream.Identity.String(),
		Resolved:  set.Identity.String(),
		FellBack:  set.FellBack,
	}
	for _, patchFile := range set.Patches {
		output.Patches = append(output.Patches, patchFile.Path)
	}

	if err := outputResolveResult(output, options.OutputFormat); err != nil {
		log.Error().Err(err).Msg("Failed to output resolution result")
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}

func outputResolveResult(output *resolveOutput, format string) error {
	switch format {
	case "table":
		return outputResolveTable(output)
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(output)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputResolveTable(output *resolveOutput) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("🧩 Patch set for %s", output.Requested)
	t.AppendHeader(table.Row{"#", "Patch", "Role"})

	for i, patchPath := range output.Patches {
		role := "extension"
		if i == 0 {
			role = "base"
		}
		t.AppendRow(table.Row{i + 1, patchPath, role})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	if output.FellBack {
		fmt.Printf("\nNo patch set for %s, fell back to %s\n", output.Requested, output.Resolved)
	}
	fmt.Println()
	return nil
}
