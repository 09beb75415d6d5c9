package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/mxcd/patchforge/internal/configuration"
	"github.com/rs/zerolog/log"
)

// Resolver locates the ordered patch set for a target identity. Patches
// live under <organization>/<repository>/ in the patch directory: the base
// patch is named exactly after the reference, extension patches follow a
// <reference>-<suffix>.patch convention and apply in lexical order.
//
// When no base patch exists for the requested identity, the resolver falls
// back to the configured default identity's patch set. This is a deliberate
// works-out-of-the-box policy; the fallback is logged so callers know a
// more specific patch was not found.
type Resolver struct {
	fsys            fs.FS
	defaultIdentity configuration.Identity
}

// NewResolver creates a resolver over the given patch-directory filesystem.
func NewResolver(fsys fs.FS, defaultIdentity configuration.Identity) *Resolver {
	return &Resolver{
		fsys:            fsys,
		defaultIdentity: defaultIdentity,
	}
}

// Resolve returns the patch set for the identity, falling back to the
// default identity when no exact match exists. It returns a
// *ResolutionError when neither base patch is present.
func (r *Resolver) Resolve(identity configuration.Identity) (*Set, error) {
	set, err := r.load(identity)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if identity == r.defaultIdentity {
		return nil, &ResolutionError{Identity: identity, Fallback: r.defaultIdentity}
	}

	log.Warn().
		Str("identity", identity.String()).
		Str("fallback", r.defaultIdentity.String()).
		Msg("No patch set for identity, falling back to default")

	set, err = r.load(r.defaultIdentity)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ResolutionError{Identity: identity, Fallback: r.defaultIdentity}
		}
		return nil, err
	}

	set.FellBack = true
	return set, nil
}

// load reads the base patch and its lexically ordered extensions.
func (r *Resolver) load(identity configuration.Identity) (*Set, error) {
	basePath := identity.BasePatchPath()

	baseData, err := fs.ReadFile(r.fsys, basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read base patch %s: %w", basePath, err)
	}

	set := &Set{
		Identity: identity,
		Patches: []*File{{
			Name: path.Base(basePath),
			Path: basePath,
			Data: baseData,
		}},
	}

	extensions, err := r.listExtensions(identity)
	if err != nil {
		return nil, err
	}

	for _, name := range extensions {
		extPath := path.Join(identity.Organization, identity.Repository, name)
		data, err := fs.ReadFile(r.fsys, extPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read extension patch %s: %w", extPath, err)
		}
		set.Patches = append(set.Patches, &File{
			Name: name,
			Path: extPath,
			Data: data,
		})
	}

	log.Debug().
		Str("identity", identity.String()).
		Int("patches", len(set.Patches)).
		Msg("Resolved patch set")

	return set, nil
}

// listExtensions returns the identity's extension patch names in lexical
// order. Ordering is explicit here, not an accident of directory listing.
func (r *Resolver) listExtensions(identity configuration.Identity) ([]string, error) {
	dir := path.Join(identity.Organization, identity.Repository)
	entries, err := fs.ReadDir(r.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list patch directory %s: %w", dir, err)
	}

	prefix := identity.Reference + "-"
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".patch") {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}
