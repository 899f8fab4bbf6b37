// Package gitcmd is a thin wrapper over the git command line that yields
// structured records (commits with per-file stats, blame lines, branches,
// tags). It performs no aggregation; the repo package reshapes these
// records into analysis tables.
package gitcmd

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes git with the given arguments in a working directory.
// The seam exists so analytics can be tested against canned output.
type Runner interface {
	// Run returns git's stdout.
	Run(dir string, args ...string) ([]byte, error)
	// RunCombined returns stdout and stderr interleaved, for commands
	// like fetch that report over stderr.
	RunCombined(dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the real git binary.
type ExecRunner struct{}

// Run executes git and returns its stdout. On failure the captured stderr
// is folded into the error.
func (ExecRunner) Run(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// RunCombined executes git and returns stdout and stderr together.
func (ExecRunner) RunCombined(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// FileChange is one file's stats within a commit.
type FileChange struct {
	Filename   string
	Insertions int
	Deletions  int
	Binary     bool
}

// Commit is one commit record with per-file change stats.
type Commit struct {
	Hash      string
	Author    string
	Committer string
	Timestamp time.Time
	Message   string
	Files     []FileChange
}

// BlameLine attributes one line of a file at some revision.
type BlameLine struct {
	CommitHash    string
	Committer     string
	CommitterTime time.Time
}

// FetchResult reports the outcome of a remote fetch.
type FetchResult struct {
	RemoteExists     bool
	ChangesAvailable bool
	Output           string
}

// Client binds a Runner to one repository's working directory.
type Client struct {
	dir    string
	runner Runner
}

// New creates a Client using the real git binary.
func New(dir string) *Client {
	return &Client{dir: dir, runner: ExecRunner{}}
}

// NewWithRunner creates a Client with an explicit runner.
func NewWithRunner(dir string, runner Runner) *Client {
	return &Client{dir: dir, runner: runner}
}

// Dir returns the repository's working directory.
func (c *Client) Dir() string {
	return c.dir
}

// RevParse resolves a revision to a full hash.
func (c *Client) RevParse(rev string) (string, error) {
	out, err := c.runner.Run(c.dir, "rev-parse", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DefaultBranch returns the branch HEAD points at.
func (c *Client) DefaultBranch() (string, error) {
	out, err := c.runner.Run(c.dir, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IsBare reports whether the repository has no working tree.
func (c *Client) IsBare() (bool, error) {
	out, err := c.runner.Run(c.dir, "rev-parse", "--is-bare-repository")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

// HasBranch reports whether a local branch exists.
func (c *Client) HasBranch(branch string) (bool, error) {
	branches, err := c.Branches()
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b == branch {
			return true, nil
		}
	}
	return false, nil
}

// Branches lists local branch names.
func (c *Client) Branches() ([]string, error) {
	return c.refNames("refs/heads")
}

// Tags lists tag names.
func (c *Client) Tags() ([]string, error) {
	return c.refNames("refs/tags")
}

func (c *Client) refNames(prefix string) ([]string, error) {
	out, err := c.runner.Run(c.dir, "for-each-ref", "--format=%(refname:short)", prefix)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Remotes lists configured remote names.
func (c *Client) Remotes() ([]string, error) {
	out, err := c.runner.Run(c.dir, "remote")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ListFiles returns the paths tracked at rev.
func (c *Client) ListFiles(rev string) ([]string, error) {
	out, err := c.runner.Run(c.dir, "ls-tree", "-r", "--name-only", rev)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Log returns commits reachable from rev, newest first, with per-file
// numstat records. limit <= 0 means no limit.
func (c *Client) Log(rev string, limit int) ([]Commit, error) {
	args := []string{"log", "--numstat", "--date=unix", "--pretty=format:" + logFormat}
	if limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", limit))
	}
	args = append(args, rev)

	out, err := c.runner.Run(c.dir, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

// Blame attributes every line of path at rev.
func (c *Client) Blame(rev, path string) ([]BlameLine, error) {
	out, err := c.runner.Run(c.dir, "blame", "--line-porcelain", rev, "--", path)
	if err != nil {
		return nil, err
	}
	return parseBlame(out)
}

// Fetch runs a non-destructive fetch against the first configured remote.
// A repository with no remotes is a successful no-op.
func (c *Client) Fetch(dryRun bool) (*FetchResult, error) {
	remotes, err := c.Remotes()
	if err != nil {
		return nil, err
	}
	if len(remotes) == 0 {
		return &FetchResult{RemoteExists: false}, nil
	}

	args := []string{"fetch"}
	if dryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, remotes[0])

	out, err := c.runner.RunCombined(c.dir, args...)
	if err != nil {
		return &FetchResult{RemoteExists: true, Output: string(out)}, err
	}
	// Fetch reports ref updates on stderr; silence means up to date.
	return &FetchResult{
		RemoteExists:     true,
		ChangesAvailable: strings.TrimSpace(string(out)) != "",
		Output:           string(out),
	}, nil
}

func splitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
