// Package pathutil confines files written on behalf of remote callers to
// known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrOutsideAllowed indicates a path that resolves outside every allowed directory.
var ErrOutsideAllowed = errors.New("outside allowed directories")

// ErrExtension indicates a file extension that is not accepted.
var ErrExtension = errors.New("file extension not allowed")

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/project/out/run.csv" becomes ".../out/run.csv".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ResolveOutput returns the absolute, symlink-resolved form of path after
// checking that it lies within one of allowedDirs. A relative path is taken
// relative to the first allowed directory.
func ResolveOutput(path string, allowedDirs []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path validation failed: path is empty")
	}
	if len(allowedDirs) == 0 {
		return "", fmt.Errorf("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(allowedDirs[0], path)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// The file itself may not exist yet; resolve symlinks on its parent so a
	// linked directory cannot point outside the allowed tree.
	resolvedDir, err := resolveExistingParent(filepath.Dir(absPath))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolvedPath := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, allowed := range allowedDirs {
		allowedAbs, err := filepath.Abs(filepath.Clean(allowed))
		if err != nil {
			continue
		}
		allowedResolved, err := resolveExistingParent(allowedAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolvedPath, allowedResolved) {
			return resolvedPath, nil
		}
	}

	return "", fmt.Errorf("path validation failed: %q is %w", RedactPath(absPath), ErrOutsideAllowed)
}

// CheckExtension reports an error unless path ends in one of exts
// (compared case-insensitively, with the leading dot).
func CheckExtension(path string, exts ...string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if slices.ContainsFunc(exts, func(e string) bool { return strings.ToLower(e) == ext }) {
		return nil
	}
	return fmt.Errorf("%w: %q (want one of %s)", ErrExtension, ext, strings.Join(exts, ", "))
}

// resolveExistingParent walks up to the deepest existing ancestor of dir,
// resolves its symlinks, then re-appends the missing tail.
func resolveExistingParent(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar"
	prefix := base + string(os.PathSeparator)
	return strings.HasPrefix(path, prefix)
}

// DefaultOutputDirs returns the directories remote callers may write to:
// the project root and ~/.macrosim/exports.
func DefaultOutputDirs(projectRoot string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{
		projectRoot,
		filepath.Join(homeDir, ".macrosim", "exports"),
	}, nil
}
