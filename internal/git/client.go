package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Client provides the version-control operations the patch pipeline needs:
// acquiring a checkout, querying tree state, applying patches and reverting
// paths to their committed content.
type Client interface {
	// EnsureCheckout clones or updates a repository to the specified ref and
	// returns the resulting commit hash.
	EnsureCheckout(ctx context.Context, url, ref, destDir string) (string, error)

	// IsClean reports whether the working tree has no uncommitted changes
	// and no untracked files.
	IsClean(ctx context.Context, dir string) (bool, error)

	// Status returns the porcelain status entries of the working tree.
	Status(ctx context.Context, dir string) ([]StatusEntry, error)

	// ResetHard discards all tracked modifications.
	ResetHard(ctx context.Context, dir string) error

	// CleanUntracked removes untracked files and directories.
	CleanUntracked(ctx context.Context, dir string) error

	// ApplyCheck dry-runs a forward patch application.
	ApplyCheck(ctx context.Context, dir string, patch []byte) error

	// ApplyCheckReverse dry-runs undoing a patch against the current tree.
	ApplyCheckReverse(ctx context.Context, dir string, patch []byte) error

	// Apply applies a patch to the working tree.
	Apply(ctx context.Context, dir string, patch []byte) error

	// ApplyThreeWay applies a patch using each hunk's recorded blob as merge
	// base instead of strict positional matching.
	ApplyThreeWay(ctx context.Context, dir string, patch []byte) error

	// ApplyReject applies whatever hunks fit and writes .rej fragments for
	// the rest. Returns an error when any hunk was rejected.
	ApplyReject(ctx context.Context, dir string, patch []byte) error

	// Diff returns the unified diff of all outstanding modifications,
	// including untracked files.
	Diff(ctx context.Context, dir string) (string, error)

	// RevertPaths restores the given paths to their committed content.
	RevertPaths(ctx context.Context, dir string, paths ...string) error

	// IsTracked reports whether the path is known to the repository.
	IsTracked(ctx context.Context, dir, path string) (bool, error)
}

// StatusEntry is one line of porcelain status output.
type StatusEntry struct {
	Code string // two-character porcelain status code, e.g. " M", "??"
	Path string
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	sshKeyFile string
	httpsToken string
}

// NewShellClient creates a git client. sshKeyFile and httpsToken are optional
// credentials for network operations.
func NewShellClient(sshKeyFile, httpsToken string) *ShellClient {
	return &ShellClient{
		sshKeyFile: sshKeyFile,
		httpsToken: httpsToken,
	}
}

// EnsureCheckout clones or fetches and checks out the specified ref
func (c *ShellClient) EnsureCheckout(ctx context.Context, url, ref, destDir string) (string, error) {
	gitDir := filepath.Join(destDir, ".git")
	exists := false
	if _, err := os.Stat(gitDir); err == nil {
		exists = true
	}

	if !exists {
		if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
			return "", fmt.Errorf("failed to create parent directory: %w", err)
		}

		log.Info().Str("url", url).Str("dir", destDir).Msg("Cloning upstream repository")
		cmd := exec.CommandContext(ctx, "git", "clone", "--no-checkout", url, destDir)
		c.configureAuth(cmd, url)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git clone failed: %w", err)
		}
	} else {
		log.Debug().Str("dir", destDir).Msg("Fetching upstream updates")
		cmd := exec.CommandContext(ctx, "git", "-C", destDir, "fetch", "origin")
		c.configureAuth(cmd, url)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git fetch failed: %w", err)
		}
	}

	// Try a direct checkout first (local branches, tags, commit hashes),
	// then fall back to the remote branch.
	cmd := exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "-f", ref)
	if err := runCommand(cmd); err != nil {
		cmd = exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "-f", "origin/"+ref)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git checkout failed for ref %q (tried both direct and remote): %w", ref, err)
		}
	}

	// After a fetch the local branch may be stale; reset to the remote
	// tracking branch. No-op for fresh clones, ignored for tags/hashes.
	if exists {
		resetCmd := exec.CommandContext(ctx, "git", "-C", destDir, "reset", "--hard", "origin/"+ref)
		_ = runCommand(resetCmd)
	}

	output, err := exec.CommandContext(ctx, "git", "-C", destDir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// IsClean reports whether the working tree has no outstanding changes
func (c *ShellClient) IsClean(ctx context.Context, dir string) (bool, error) {
	entries, err := c.Status(ctx, dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Status returns the parsed porcelain status of the working tree
func (c *ShellClient) Status(ctx context.Context, dir string) ([]StatusEntry, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parseStatus(string(output)), nil
}

// parseStatus parses porcelain status output into entries
func parseStatus(output string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		// Rename entries read "old -> new"; keep the new path
		if idx := strings.Index(path, " -> "); idx != -1 {
			path = path[idx+4:]
		}
		entries = append(entries, StatusEntry{
			Code: line[:2],
			Path: strings.Trim(path, `"`),
		})
	}
	return entries
}

// ResetHard discards all tracked modifications in the working tree
func (c *ShellClient) ResetHard(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "reset", "--hard")
	if err := runCommand(cmd); err != nil {
		return fmt.Errorf("git reset --hard failed: %w", err)
	}
	return nil
}

// CleanUntracked removes untracked files and directories from the tree
func (c *ShellClient) CleanUntracked(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "clean", "-fd")
	if err := runCommand(cmd); err != nil {
		return fmt.Errorf("git clean failed: %w", err)
	}
	return nil
}

// ApplyCheck dry-runs a forward patch application
func (c *ShellClient) ApplyCheck(ctx context.Context, dir string, patch []byte) error {
	return c.apply(ctx, dir, patch, "--check")
}

// ApplyCheckReverse dry-runs a reverse patch application
func (c *ShellClient) ApplyCheckReverse(ctx context.Context, dir string, patch []byte) error {
	return c.apply(ctx, dir, patch, "--reverse", "--check")
}

// Apply applies a patch to the working tree
func (c *ShellClient) Apply(ctx context.Context, dir string, patch []byte) error {
	return c.apply(ctx, dir, patch)
}

// ApplyThreeWay applies a patch with three-way merge fallback
func (c *ShellClient) ApplyThreeWay(ctx context.Context, dir string, patch []byte) error {
	return c.apply(ctx, dir, patch, "--3way")
}

// ApplyReject applies applicable hunks and writes .rej files for the rest
func (c *ShellClient) ApplyReject(ctx context.Context, dir string, patch []byte) error {
	return c.apply(ctx, dir, patch, "--reject")
}

// apply feeds the patch to git apply on stdin with the given mode flags
func (c *ShellClient) apply(ctx context.Context, dir string, patch []byte, flags ...string) error {
	args := append([]string{"-C", dir, "apply"}, flags...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Stdin = bytes.NewReader(patch)
	if err := runCommand(cmd); err != nil {
		return fmt.Errorf("git apply %s failed: %w", strings.Join(flags, " "), err)
	}
	return nil
}

// Diff returns the unified diff of all outstanding modifications. Untracked
// files are registered with intent-to-add so they appear in the diff; the
// index is restored afterwards.
func (c *ShellClient) Diff(ctx context.Context, dir string) (string, error) {
	addCmd := exec.CommandContext(ctx, "git", "-C", dir, "add", "--intent-to-add", ".")
	if err := runCommand(addCmd); err != nil {
		return "", fmt.Errorf("git add --intent-to-add failed: %w", err)
	}

	diffCmd := exec.CommandContext(ctx, "git", "-C", dir, "diff")
	output, diffErr := diffCmd.Output()

	resetCmd := exec.CommandContext(ctx, "git", "-C", dir, "reset", "-q")
	if err := runCommand(resetCmd); err != nil {
		return "", fmt.Errorf("git reset failed after diff: %w", err)
	}

	if diffErr != nil {
		return "", fmt.Errorf("git diff failed: %w", diffErr)
	}
	return string(output), nil
}

// RevertPaths restores the given paths to their committed content
func (c *ShellClient) RevertPaths(ctx context.Context, dir string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"-C", dir, "checkout", "--"}, paths...)
	cmd := exec.CommandContext(ctx, "git", args...)
	if err := runCommand(cmd); err != nil {
		return fmt.Errorf("git checkout -- failed: %w", err)
	}
	return nil
}

// IsTracked reports whether the path is known to the repository
func (c *ShellClient) IsTracked(ctx context.Context, dir, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "ls-files", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git ls-files failed: %w", err)
	}
	return len(bytes.TrimSpace(output)) > 0, nil
}

// configureAuth sets up authentication for network git operations
func (c *ShellClient) configureAuth(cmd *exec.Cmd, url string) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	if c.sshKeyFile != "" && (strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")) {
		// The key path is shell-quoted to survive embedding in GIT_SSH_COMMAND.
		sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=accept-new -F /dev/null", shellQuote(c.sshKeyFile))
		cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCmd)
		return
	}

	if c.httpsToken != "" && strings.HasPrefix(url, "https://") {
		// Pass the token via environment variable and a credential helper
		// that reads it, keeping the token out of the command line.
		cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")
		cmd.Env = append(cmd.Env, "PATCHFORGE_GIT_TOKEN="+c.httpsToken)
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$PATCHFORGE_GIT_TOKEN"; }; f`,
		)
	}
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before the subcommand (e.g. "clone", "fetch").
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// runCommand executes a command and returns an error with combined output on failure
func runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
