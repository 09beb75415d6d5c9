package patch

import (
	"github.com/mxcd/patchforge/internal/configuration"
)

// File is one patch file: its name within the patch directory and its raw
// unified-diff content.
type File struct {
	Name string // file name, e.g. "stable.patch" or "stable-0001-metrics.patch"
	Path string // slash-separated path relative to the patch directory
	Data []byte
}

// Set is the ordered sequence of patches for one target identity. The base
// patch is first, extension patches follow in lexical order. A resolved set
// is never empty.
type Set struct {
	// Identity the set was resolved for. When FellBack is true this is the
	// default identity, not the requested one.
	Identity configuration.Identity
	FellBack bool
	Patches  []*File
}

// Base returns the base patch of the set.
func (s *Set) Base() *File {
	return s.Patches[0]
}

// Extensions returns the extension patches in application order.
func (s *Set) Extensions() []*File {
	return s.Patches[1:]
}
