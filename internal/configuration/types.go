package configuration

import (
	"fmt"
	"path"
	"strings"
)

type Config struct {
	Upstream         *Upstream      `yaml:"upstream"`
	WorkingDirectory string         `yaml:"workingDirectory"`
	PatchDirectory   string         `yaml:"patchDirectory"`
	DefaultIdentity  *Identity      `yaml:"defaultIdentity,omitempty"`
	Overlays         []*OverlaySpec `yaml:"overlays,omitempty"`
	Exclusions       *Exclusions    `yaml:"exclusions,omitempty"`
	Injections       []*Injection   `yaml:"injections,omitempty"`
	Build            *BuildConfig   `yaml:"build,omitempty"`
	DisableWorkflows bool           `yaml:"disableWorkflows,omitempty"`
	Auth             *AuthConfig    `yaml:"auth,omitempty"`
}

// Identity addresses one upstream project and version. Patch sets are
// stored under <organization>/<repository>/<reference>.patch.
type Identity struct {
	Organization string `yaml:"organization"`
	Repository   string `yaml:"repository"`
	Reference    string `yaml:"reference"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%s@%s", i.Organization, i.Repository, i.Reference)
}

// BasePatchPath returns the slash-separated path of the identity's base
// patch, relative to the patch directory.
func (i Identity) BasePatchPath() string {
	return path.Join(i.Organization, i.Repository, i.Reference+".patch")
}

type Upstream struct {
	Identity `yaml:",inline"`
	URL      string `yaml:"url,omitempty"`
}

// CloneURL returns the configured URL, defaulting to the GitHub URL
// derived from the identity.
func (u *Upstream) CloneURL() string {
	if u.URL != "" {
		return u.URL
	}
	return fmt.Sprintf("https://github.com/%s/%s", u.Organization, u.Repository)
}

// OverlaySpec describes one file tree copied wholesale into the working
// tree. Overlays are never part of a generated patch.
type OverlaySpec struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// Exclusions lists the working-tree paths mutated by the build pipeline
// itself rather than by patches.
type Exclusions struct {
	Lockfile         string   `yaml:"lockfile,omitempty"`
	ManagedManifests []string `yaml:"managedManifests,omitempty"`
}

// Injection describes one idempotent manifest edit: insert Line after the
// first line whose trimmed content starts with After.
type Injection struct {
	File  string `yaml:"file"`
	After string `yaml:"after"`
	Line  string `yaml:"line"`
}

type BuildConfig struct {
	Command []string `yaml:"command"`
}

type AuthConfig struct {
	SSHKeyFile string `yaml:"sshKeyFile,omitempty"`
	HTTPSToken string `yaml:"httpsToken,omitempty"`
}

// ExclusionSet is the full set of paths that must never appear in a
// generated patch: overlay destinations, the lockfile and the
// script-managed manifests.
type ExclusionSet struct {
	Overlays         []string
	Lockfile         string
	ManagedManifests []string
}

// ExclusionSet assembles the exclusion set from the configuration.
func (c *Config) ExclusionSet() *ExclusionSet {
	set := &ExclusionSet{}
	for _, overlay := range c.Overlays {
		set.Overlays = append(set.Overlays, overlay.Destination)
	}
	if c.Exclusions != nil {
		set.Lockfile = c.Exclusions.Lockfile
		set.ManagedManifests = append(set.ManagedManifests, c.Exclusions.ManagedManifests...)
	}
	return set
}

// Paths returns every excluded path. Overlay entries are tree roots, the
// rest are single files.
func (e *ExclusionSet) Paths() []string {
	paths := make([]string, 0, len(e.Overlays)+len(e.ManagedManifests)+1)
	paths = append(paths, e.Overlays...)
	if e.Lockfile != "" {
		paths = append(paths, e.Lockfile)
	}
	paths = append(paths, e.ManagedManifests...)
	return paths
}

// Contains reports whether the given slash-separated relative path is
// covered by the exclusion set, either exactly or as a descendant of an
// overlay tree.
func (e *ExclusionSet) Contains(relPath string) bool {
	relPath = path.Clean(relPath)
	if e.Lockfile != "" && relPath == e.Lockfile {
		return true
	}
	for _, manifest := range e.ManagedManifests {
		if relPath == manifest {
			return true
		}
	}
	for _, overlay := range e.Overlays {
		if relPath == overlay || strings.HasPrefix(relPath, overlay+"/") {
			return true
		}
	}
	return false
}
