package manifest

import (
	"fmt"
	"os/exec"
	"strings"
)

// gitRepo is a dependency checkout under .slotvm/deps.
type gitRepo struct {
	dir string
}

// git runs a git subcommand in the checkout and returns its trimmed
// standard output. Failures carry git's own message.
func (g gitRepo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	log.Debugf("git %s (in %s)", strings.Join(args, " "), g.dir)
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s in %s: %s: %w", args[0], g.dir, msg, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// cloneRepo clones url into dest.
func cloneRepo(url, dest string) (gitRepo, error) {
	cmd := exec.Command("git", "clone", "--quiet", url, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return gitRepo{}, fmt.Errorf("git clone %s: %s: %w", url, strings.TrimSpace(string(out)), err)
	}
	return gitRepo{dir: dest}, nil
}

func (g gitRepo) fetch() error {
	_, err := g.git("fetch", "--quiet", "--all", "--tags")
	return err
}

// checkout moves the working copy to ref, a tag, branch or commit.
func (g gitRepo) checkout(ref string) error {
	_, err := g.git("checkout", "--quiet", ref)
	return err
}

// head returns the commit hash of HEAD.
func (g gitRepo) head() (string, error) {
	return g.git("rev-parse", "HEAD")
}

// resolve returns the commit a ref names, or "" when the checkout does
// not know it.
func (g gitRepo) resolve(ref string) string {
	commit, err := g.git("rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return ""
	}
	return commit
}

// clean reports whether the working copy has no uncommitted changes.
func (g gitRepo) clean() (bool, error) {
	out, err := g.git("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// origin returns the URL of the origin remote.
func (g gitRepo) origin() (string, error) {
	return g.git("remote", "get-url", "origin")
}
