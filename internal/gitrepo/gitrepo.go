// Package gitrepo resolves the repository topology around a working-tree
// path: the owning working copy, the real .git directory behind worktree
// indirection, and the lfs-relevant parts of the repository config.
package gitrepo

import (
	"os"
	"path/filepath"
	"strings"

	"lfspull/internal/errors"
)

// Repo describes where a pulled file lives: the working copy that
// contains it and the main repository's real .git directory, with any
// worktree indirection already resolved.
type Repo struct {
	WorkRoot string
	GitDir   string
}

// Locate canonicalizes path and walks its strict ancestors, nearest
// first, returning the first directory that contains a .git entry.
func Locate(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.DirectoryTraversal, "could not determine absolute path of "+path, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrap(errors.DirectoryTraversal, "could not canonicalize "+path, err)
	}

	dir := filepath.Dir(canonical)
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New(errors.DirectoryTraversal, "could not find .git in any parent path of "+path)
}

// Resolve locates the repository owning path and follows a worktree's
// .git file to the main repository.
func Resolve(path string) (*Repo, error) {
	root, err := Locate(path)
	if err != nil {
		return nil, err
	}
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return nil, err
	}
	return &Repo{WorkRoot: root, GitDir: gitDir}, nil
}

func resolveGitDir(root string) (string, error) {
	gitPath := filepath.Join(root, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return "", errors.Wrap(errors.DirectoryTraversal, "could not find .git file or folder in directory structure", err)
	}
	if info.IsDir() {
		return gitPath, nil
	}

	// A .git file marks a worktree; its content names a path inside the
	// main repository.
	raw, err := os.ReadFile(gitPath)
	if err != nil {
		return "", errors.FileIO(gitPath, err)
	}
	target := ""
	for _, part := range strings.Split(string(raw), ":") {
		if strings.Contains(part, ".git") {
			target = strings.TrimSpace(part)
			break
		}
	}
	if target == "" {
		return "", errors.New(errors.DirectoryTraversal, "could not resolve main repository from worktree file "+gitPath)
	}

	mainRoot, err := Locate(target)
	if err != nil {
		return "", errors.Wrap(errors.DirectoryTraversal, "found worktree, but could not resolve main repository root", err)
	}
	return filepath.Join(mainRoot, ".git"), nil
}
