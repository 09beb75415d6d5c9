package patch

import (
	"bytes"
	"fmt"
	"strings"
)

// Validate structurally verifies a patch file before it is attempted
// against the tree: the file is non-empty, every hunk header parses, and
// every hunk carries exactly the number of body lines its header declares.
// It distinguishes "corrupt patch, regenerate it" from "patch conflicts
// with the tree", which only the applier can decide.
func Validate(f *File) error {
	if len(bytes.TrimSpace(f.Data)) == 0 {
		return &StructuralError{Patch: f.Name, Reason: "patch file is empty"}
	}

	lines := strings.Split(string(f.Data), "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !IsHunkHeader(line) {
			continue
		}

		hunk, err := ParseHunkHeader(line)
		if err != nil {
			return &StructuralError{Patch: f.Name, Line: i + 1, Reason: err.Error()}
		}
		if hunk.OldLines == 0 && hunk.NewLines == 0 {
			return &StructuralError{Patch: f.Name, Line: i + 1, Reason: "dangling hunk: header declares no lines"}
		}

		consumed, err := validateHunkBody(lines, i+1, hunk)
		if err != nil {
			return &StructuralError{Patch: f.Name, Line: i + 1, Reason: err.Error()}
		}
		i += consumed
	}

	return nil
}

// validateHunkBody consumes the body lines of one hunk starting at index
// start and verifies them against the declared ranges. It returns the
// number of lines consumed.
func validateHunkBody(lines []string, start int, hunk *HunkRange) (int, error) {
	oldSeen, newSeen := 0, 0
	i := start

	for oldSeen < hunk.OldLines || newSeen < hunk.NewLines {
		if i >= len(lines) {
			return 0, truncationError(hunk, oldSeen, newSeen)
		}

		line := lines[i]
		switch {
		case IsHunkHeader(line) || strings.HasPrefix(line, "diff "):
			// Next hunk or file section started before this hunk was complete
			return 0, truncationError(hunk, oldSeen, newSeen)
		case strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" marker, counts for neither side
		case strings.HasPrefix(line, "-"):
			oldSeen++
		case strings.HasPrefix(line, "+"):
			newSeen++
		case line == "" && i == len(lines)-1:
			// Trailing newline artifact of the split
			return 0, truncationError(hunk, oldSeen, newSeen)
		default:
			// Context line (leading space, possibly stripped to empty)
			oldSeen++
			newSeen++
		}
		i++
	}

	// Tolerate a trailing no-newline marker belonging to this hunk
	if i < len(lines) && strings.HasPrefix(lines[i], "\\") {
		i++
	}

	return i - start, nil
}

func truncationError(hunk *HunkRange, oldSeen, newSeen int) error {
	return fmt.Errorf("truncated hunk: header declares -%d,%d +%d,%d but only %d old and %d new line(s) present",
		hunk.OldStart, hunk.OldLines, hunk.NewStart, hunk.NewLines, oldSeen, newSeen)
}
