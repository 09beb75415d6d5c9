package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/rs/zerolog/log"
)

// Installer copies overlay trees into the working tree after patches have
// been applied. Destinations are replaced wholesale, never merged, so
// repeated installs produce the same end state.
type Installer struct {
	dir string
}

// NewInstaller creates an installer for the working tree at dir.
func NewInstaller(dir string) *Installer {
	return &Installer{dir: dir}
}

// Install copies every overlay into the tree. A pre-existing destination is
// removed first; only real filesystem errors fail the install.
func (i *Installer) Install(specs []*configuration.OverlaySpec) error {
	for _, spec := range specs {
		if err := i.installOne(spec); err != nil {
			return err
		}
	}
	return nil
}

func (i *Installer) installOne(spec *configuration.OverlaySpec) error {
	source, err := os.Stat(spec.Source)
	if err != nil {
		return fmt.Errorf("overlay source %s: %w", spec.Source, err)
	}
	if !source.IsDir() {
		return fmt.Errorf("overlay source %s is not a directory", spec.Source)
	}

	dest := filepath.Join(i.dir, filepath.FromSlash(spec.Destination))

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to remove existing overlay destination %s: %w", spec.Destination, err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create overlay destination %s: %w", spec.Destination, err)
	}
	if err := os.CopyFS(dest, os.DirFS(spec.Source)); err != nil {
		return fmt.Errorf("failed to copy overlay %s to %s: %w", spec.Source, spec.Destination, err)
	}

	log.Debug().
		Str("source", spec.Source).
		Str("destination", spec.Destination).
		Msg("Installed overlay tree")

	return nil
}
