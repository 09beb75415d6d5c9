package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const workflowsDir = ".github/workflows"

// DisableWorkflows renames every workflow file in the working tree to a
// .disabled suffix so the upstream CI does not run against the patched
// fork. It returns the number of workflows disabled and is a no-op when
// the tree carries no workflow directory.
func DisableWorkflows(dir string) (int, error) {
	workflows := filepath.Join(dir, filepath.FromSlash(workflowsDir))

	entries, err := os.ReadDir(workflows)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	disabled := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}

		oldPath := filepath.Join(workflows, name)
		newPath := oldPath + ".disabled"
		if err := os.Rename(oldPath, newPath); err != nil {
			return disabled, fmt.Errorf("failed to disable workflow %s: %w", name, err)
		}
		disabled++
	}

	if disabled > 0 {
		log.Info().Int("workflows", disabled).Msg("Disabled upstream CI workflows")
	}
	return disabled, nil
}

// RestoreWorkflows undoes DisableWorkflows: every .disabled workflow file
// is renamed back to its original name. A file whose original name is
// already taken is left alone. Returns the number of workflows restored.
func RestoreWorkflows(dir string) (int, error) {
	workflows := filepath.Join(dir, filepath.FromSlash(workflowsDir))

	entries, err := os.ReadDir(workflows)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	restored := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".disabled") {
			continue
		}

		original := strings.TrimSuffix(name, ".disabled")
		if _, err := os.Stat(filepath.Join(workflows, original)); err == nil {
			continue
		}
		if err := os.Rename(filepath.Join(workflows, name), filepath.Join(workflows, original)); err != nil {
			return restored, fmt.Errorf("failed to restore workflow %s: %w", name, err)
		}
		restored++
	}

	if restored > 0 {
		log.Debug().Int("workflows", restored).Msg("Restored disabled CI workflows")
	}
	return restored, nil
}
