package patch

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/mxcd/patchforge/internal/configuration"
)

func TestResolve(t *testing.T) {
	defaultIdentity := configuration.Identity{
		Organization: "sigp",
		Repository:   "lighthouse",
		Reference:    "stable",
	}

	fsys := fstest.MapFS{
		"sigp/lighthouse/stable.patch":              {Data: []byte("base patch\n")},
		"sigp/lighthouse/stable-0002-metrics.patch": {Data: []byte("ext 2\n")},
		"sigp/lighthouse/stable-0001-init.patch":    {Data: []byte("ext 1\n")},
		"sigp/lighthouse/v5.1.0.patch":              {Data: []byte("tagged base\n")},
		// Not extensions of "stable": different reference, wrong suffix
		"sigp/lighthouse/v5.1.0-0001-x.patch": {Data: []byte("other ref ext\n")},
		"sigp/lighthouse/stable-notes.txt":    {Data: []byte("not a patch\n")},
	}

	resolver := NewResolver(fsys, defaultIdentity)

	t.Run("exact match with lexically ordered extensions", func(t *testing.T) {
		set, err := resolver.Resolve(defaultIdentity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if set.FellBack {
			t.Error("expected no fallback for exact match")
		}
		if len(set.Patches) != 3 {
			t.Fatalf("expected 3 patches, got %d", len(set.Patches))
		}
		if set.Base().Name != "stable.patch" {
			t.Errorf("expected base 'stable.patch', got '%s'", set.Base().Name)
		}
		if set.Patches[1].Name != "stable-0001-init.patch" {
			t.Errorf("expected first extension 'stable-0001-init.patch', got '%s'", set.Patches[1].Name)
		}
		if set.Patches[2].Name != "stable-0002-metrics.patch" {
			t.Errorf("expected second extension 'stable-0002-metrics.patch', got '%s'", set.Patches[2].Name)
		}
	})

	t.Run("tagged reference excludes other references' extensions", func(t *testing.T) {
		identity := defaultIdentity
		identity.Reference = "v5.1.0"
		set, err := resolver.Resolve(identity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(set.Patches) != 2 {
			t.Fatalf("expected base + 1 extension, got %d patches", len(set.Patches))
		}
		if set.Patches[1].Name != "v5.1.0-0001-x.patch" {
			t.Errorf("unexpected extension '%s'", set.Patches[1].Name)
		}
	})

	t.Run("missing reference falls back to default identity", func(t *testing.T) {
		identity := configuration.Identity{
			Organization: "someorg",
			Repository:   "somefork",
			Reference:    "experimental",
		}
		set, err := resolver.Resolve(identity)
		if err != nil {
			t.Fatalf("expected fallback, got error: %v", err)
		}
		if !set.FellBack {
			t.Error("expected FellBack to be set")
		}
		if set.Identity != defaultIdentity {
			t.Errorf("expected set identity to be the default, got %s", set.Identity)
		}
		if string(set.Base().Data) != "base patch\n" {
			t.Error("expected default identity's base patch content")
		}
	})

	t.Run("neither exact nor fallback present", func(t *testing.T) {
		emptyResolver := NewResolver(fstest.MapFS{}, defaultIdentity)
		identity := configuration.Identity{
			Organization: "someorg",
			Repository:   "somefork",
			Reference:    "experimental",
		}
		_, err := emptyResolver.Resolve(identity)
		if err == nil {
			t.Fatal("expected resolution error")
		}

		var resolutionErr *ResolutionError
		if !errors.As(err, &resolutionErr) {
			t.Fatalf("expected *ResolutionError, got %T", err)
		}
		if resolutionErr.Identity != identity {
			t.Errorf("expected requested identity in error, got %s", resolutionErr.Identity)
		}
		if resolutionErr.Fallback != defaultIdentity {
			t.Errorf("expected fallback identity in error, got %s", resolutionErr.Fallback)
		}
	})

	t.Run("default identity itself missing", func(t *testing.T) {
		emptyResolver := NewResolver(fstest.MapFS{}, defaultIdentity)
		_, err := emptyResolver.Resolve(defaultIdentity)

		var resolutionErr *ResolutionError
		if !errors.As(err, &resolutionErr) {
			t.Fatalf("expected *ResolutionError, got %T", err)
		}
	})
}
