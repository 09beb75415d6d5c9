package patch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mxcd/patchforge/internal/git"
)

// fakeGit is a scriptable git.Client. Method behavior defaults to success
// and can be overridden per test via the function fields; every call is
// recorded for order assertions.
type fakeGit struct {
	dir   string
	calls []string

	applyCheckFn        func(patch []byte) error
	applyCheckReverseFn func(patch []byte) error
	applyFn             func(patch []byte) error
	applyThreeWayFn     func(patch []byte) error
	applyRejectFn       func(patch []byte) error
	statusFn            func() ([]git.StatusEntry, error)
	diffFn              func() (string, error)
	isTrackedFn         func(path string) (bool, error)

	revertedPaths [][]string
	appliedData   [][]byte
}

func (f *fakeGit) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGit) called(call string) bool {
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeGit) EnsureCheckout(ctx context.Context, url, ref, destDir string) (string, error) {
	f.record("EnsureCheckout")
	return "deadbeef", nil
}

func (f *fakeGit) IsClean(ctx context.Context, dir string) (bool, error) {
	f.record("IsClean")
	entries, err := f.Status(ctx, dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func (f *fakeGit) Status(ctx context.Context, dir string) ([]git.StatusEntry, error) {
	f.record("Status")
	if f.statusFn != nil {
		return f.statusFn()
	}
	return nil, nil
}

func (f *fakeGit) ResetHard(ctx context.Context, dir string) error {
	f.record("ResetHard")
	return nil
}

// CleanUntracked mimics real cleanup of partial-application artifacts by
// deleting reject fragments under the tree.
func (f *fakeGit) CleanUntracked(ctx context.Context, dir string) error {
	f.record("CleanUntracked")
	if f.dir == "" {
		return nil
	}
	return filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".rej") {
			return os.Remove(path)
		}
		return nil
	})
}

func (f *fakeGit) ApplyCheck(ctx context.Context, dir string, patch []byte) error {
	f.record("ApplyCheck")
	if f.applyCheckFn != nil {
		return f.applyCheckFn(patch)
	}
	return nil
}

func (f *fakeGit) ApplyCheckReverse(ctx context.Context, dir string, patch []byte) error {
	f.record("ApplyCheckReverse")
	if f.applyCheckReverseFn != nil {
		return f.applyCheckReverseFn(patch)
	}
	return nil
}

func (f *fakeGit) Apply(ctx context.Context, dir string, patch []byte) error {
	f.record("Apply")
	f.appliedData = append(f.appliedData, patch)
	if f.applyFn != nil {
		return f.applyFn(patch)
	}
	return nil
}

func (f *fakeGit) ApplyThreeWay(ctx context.Context, dir string, patch []byte) error {
	f.record("ApplyThreeWay")
	if f.applyThreeWayFn != nil {
		return f.applyThreeWayFn(patch)
	}
	return nil
}

func (f *fakeGit) ApplyReject(ctx context.Context, dir string, patch []byte) error {
	f.record("ApplyReject")
	if f.applyRejectFn != nil {
		return f.applyRejectFn(patch)
	}
	return nil
}

func (f *fakeGit) Diff(ctx context.Context, dir string) (string, error) {
	f.record("Diff")
	if f.diffFn != nil {
		return f.diffFn()
	}
	return "", nil
}

func (f *fakeGit) RevertPaths(ctx context.Context, dir string, paths ...string) error {
	f.record("RevertPaths")
	f.revertedPaths = append(f.revertedPaths, paths)
	return nil
}

func (f *fakeGit) IsTracked(ctx context.Context, dir, path string) (bool, error) {
	f.record("IsTracked")
	if f.isTrackedFn != nil {
		return f.isTrackedFn(path)
	}
	return true, nil
}

var _ git.Client = (*fakeGit)(nil)
