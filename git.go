package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// isGitURL checks if the source argument looks like a Git repository URL,
// so a remote asset library can be processed without cloning it by hand.
func isGitURL(input string) bool {
	return strings.HasSuffix(input, ".git") ||
		strings.HasPrefix(input, "git@")
}

// cloneGitRepo clones a Git repository URL into a temporary directory and
// returns its path. The caller removes the directory after the run.
func cloneGitRepo(url string) (string, error) {
	tempDir, err := os.MkdirTemp("", "meshgrid-git-")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Cloning '%s' into '%s'...\n", url, tempDir)

	_, err = git.PlainClone(tempDir, false, &git.CloneOptions{
		URL:           url,
		Progress:      os.Stderr,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
	})
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to clone repository '%s': %w", url, err)
	}
	return tempDir, nil
}
