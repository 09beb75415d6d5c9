package patch

import (
	"fmt"
	"strings"

	"github.com/mxcd/patchforge/internal/configuration"
)

// ResolutionError is returned when no patch set exists for an identity,
// even via the default-identity fallback.
type ResolutionError struct {
	Identity configuration.Identity
	Fallback configuration.Identity
}

func (e *ResolutionError) Error() string {
	if e.Identity == e.Fallback {
		return fmt.Sprintf("no patch set found for %s", e.Identity)
	}
	return fmt.Sprintf("no patch set found for %s (fallback %s also missing)", e.Identity, e.Fallback)
}

// StructuralError is returned when a patch file is malformed and must not
// be attempted against the tree.
type StructuralError struct {
	Patch  string
	Line   int // 1-based line number within the patch file, 0 when file-level
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed patch %s: line %d: %s", e.Patch, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed patch %s: %s", e.Patch, e.Reason)
}

// ConflictError is returned when a patch applies by no strategy. The tree
// has been restored to its pre-attempt state when this error is returned.
type ConflictError struct {
	Patch  string
	Report *ConflictReport
}

func (e *ConflictError) Error() string {
	files := e.Report.Files()
	if len(files) == 0 {
		return fmt.Sprintf("patch %s does not apply by any strategy", e.Patch)
	}
	return fmt.Sprintf("patch %s does not apply: %d hunk(s) rejected in %s",
		e.Patch, len(e.Report.Hunks), strings.Join(files, ", "))
}

// GenerationError indicates an internal inconsistency: the tree reports
// outstanding modifications but the computed diff is empty.
type GenerationError struct {
	Modified []string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("tree reports %d modified path(s) but the generated diff is empty: %s",
		len(e.Modified), strings.Join(e.Modified, ", "))
}
