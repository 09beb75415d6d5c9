package patch

import (
	"sort"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// RejectedHunk is one hunk that applied by no strategy.
type RejectedHunk struct {
	// File is the target path within the working tree.
	File string
	// Header is the hunk header line.
	Header string
	// Lines are the raw hunk body lines, with their +/-/space prefixes.
	Lines []string
	// Divergence describes where the hunk's expected context and the actual
	// file content drift apart. Empty when the target region could not be read.
	Divergence string
}

// ConflictReport collects the rejected hunks of a failed patch application.
// It is a value, not files on disk; the caller decides whether to
// materialize reject fragments.
type ConflictReport struct {
	Patch string
	Hunks []RejectedHunk
}

// Files returns the sorted set of files with rejected hunks.
func (r *ConflictReport) Files() []string {
	seen := make(map[string]bool)
	var files []string
	for _, hunk := range r.Hunks {
		if !seen[hunk.File] {
			seen[hunk.File] = true
			files = append(files, hunk.File)
		}
	}
	sort.Strings(files)
	return files
}

// ExpectedOld reconstructs the pre-patch text the hunk expects at its
// target location (context plus removed lines).
func (h *RejectedHunk) ExpectedOld() string {
	var old []string
	for _, line := range h.Lines {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "\\") {
			continue
		}
		if len(line) > 0 {
			old = append(old, line[1:])
		} else {
			old = append(old, "")
		}
	}
	return strings.Join(old, "\n")
}

// parseRejectContent parses the contents of one git reject fragment
// (<file>.rej) into hunks targeting the given file.
func parseRejectContent(file string, data []byte) []RejectedHunk {
	var hunks []RejectedHunk
	var current *RejectedHunk

	for _, line := range strings.Split(string(data), "\n") {
		if IsHunkHeader(line) {
			if current != nil {
				hunks = append(hunks, *current)
			}
			current = &RejectedHunk{File: file, Header: line}
			continue
		}
		if current == nil {
			// File headers ("diff a/...", "--- a/...", "+++ b/...") before
			// the first hunk
			continue
		}
		current.Lines = append(current.Lines, line)
	}
	if current != nil {
		// Drop the trailing empty line from the final split
		if n := len(current.Lines); n > 0 && current.Lines[n-1] == "" {
			current.Lines = current.Lines[:n-1]
		}
		hunks = append(hunks, *current)
	}

	return hunks
}

// divergence renders a character-level diff between the text a hunk
// expected and what the file actually contains at that location.
func divergence(expected, actual string) string {
	if expected == actual {
		return ""
	}
	dmp := diffpatch.New()
	diffs := dmp.DiffMain(expected, actual, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

// fileRegion extracts the oldLines-sized window of content starting at
// 1-based line oldStart. Returns "" when the region is out of range.
func fileRegion(content string, oldStart, oldLines int) string {
	if oldStart < 1 {
		return ""
	}
	lines := strings.Split(content, "\n")
	start := oldStart - 1
	if start >= len(lines) {
		return ""
	}
	end := start + oldLines
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
