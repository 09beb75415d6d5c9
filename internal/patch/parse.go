package patch

import (
	"fmt"
	"regexp"
	"strconv"
)

// HunkRange is the parsed line-count fields of a hunk header
// `@@ -oldStart,oldLines +newStart,newLines @@`.
type HunkRange struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// A count of 1 may be omitted in hunk headers (`@@ -3 +3 @@`).
var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// IsHunkHeader reports whether the line looks like a hunk header.
func IsHunkHeader(line string) bool {
	return len(line) >= 2 && line[0] == '@' && line[1] == '@'
}

// ParseHunkHeader parses a hunk header line into its ranges.
func ParseHunkHeader(line string) (*HunkRange, error) {
	match := hunkHeaderPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, fmt.Errorf("unparseable hunk header: %q", line)
	}

	r := &HunkRange{OldLines: 1, NewLines: 1}
	r.OldStart, _ = strconv.Atoi(match[1])
	if match[2] != "" {
		r.OldLines, _ = strconv.Atoi(match[2])
	}
	r.NewStart, _ = strconv.Atoi(match[3])
	if match[4] != "" {
		r.NewLines, _ = strconv.Atoi(match[4])
	}
	return r, nil
}
