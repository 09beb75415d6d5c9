package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/rs/zerolog/log"
)

// Injector performs the scripted manifest edits that wire the overlay
// crates into the upstream build: inserting dependency lines under marker
// lines in manifest files. Every injected file belongs to the exclusion
// set, so these edits never leak into generated patches.
type Injector struct {
	dir string
}

// MarkerNotFoundError is returned when an injection's marker line does not
// occur in the target file.
type MarkerNotFoundError struct {
	File   string
	Marker string
}

func (e *MarkerNotFoundError) Error() string {
	return fmt.Sprintf("injection marker %q not found in %s", e.Marker, e.File)
}

// NewInjector creates an injector for the working tree at dir.
func NewInjector(dir string) *Injector {
	return &Injector{dir: dir}
}

// Inject applies every injection. An injection whose line is already
// present is skipped, making repeated runs produce the same file content.
func (i *Injector) Inject(injections []*configuration.Injection) error {
	for _, injection := range injections {
		if err := i.injectOne(injection); err != nil {
			return err
		}
	}
	return nil
}

func (i *Injector) injectOne(injection *configuration.Injection) error {
	path := filepath.Join(i.dir, filepath.FromSlash(injection.File))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", injection.File, err)
	}
	content := string(data)

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == strings.TrimSpace(injection.Line) {
			log.Debug().
				Str("file", injection.File).
				Msg("Injection line already present, skipping")
			return nil
		}
	}

	lines := strings.Split(content, "\n")
	inserted := false
	for idx, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), injection.After) {
			rest := make([]string, len(lines[idx+1:]))
			copy(rest, lines[idx+1:])
			lines = append(lines[:idx+1], injection.Line)
			lines = append(lines, rest...)
			inserted = true
			break
		}
	}
	if !inserted {
		return &MarkerNotFoundError{File: injection.File, Marker: injection.After}
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", injection.File, err)
	}

	log.Debug().
		Str("file", injection.File).
		Str("after", injection.After).
		Msg("Injected manifest line")

	return nil
}
