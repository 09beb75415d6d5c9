package actions

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mxcd/patchforge/internal/patch"
)

// printConflictReport renders the rejected hunks of a failed patch
// application, including the divergence between the expected context and
// the actual file content where it could be computed.
func printConflictReport(report *patch.ConflictReport) {
	if report == nil || len(report.Hunks) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("✗ Rejected hunks in %s", report.Patch)
	t.AppendHeader(table.Row{"File", "Hunk", "Lines"})

	for _, hunk := range report.Hunks {
		t.AppendRow(table.Row{
			hunk.File,
			hunk.Header,
			len(hunk.Lines),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Println()

	for _, hunk := range report.Hunks {
		if hunk.Divergence == "" {
			continue
		}
		fmt.Printf("%s %s\n", hunk.File, hunk.Header)
		fmt.Println(strings.TrimRight(hunk.Divergence, "\n"))
		fmt.Println()
	}
}
