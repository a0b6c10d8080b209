// Package security confines file access to a configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator checks that paths stay inside a root directory
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator for root. The directory does not have
// to exist yet.
func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory
func (v *PathValidator) Root() string {
	return v.root
}

// ValidatePath checks that path is inside the root
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if !v.IsPathWithinDirectory(abs) {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// Resolve maps a relative path or slash-separated object key to an absolute
// path inside the root. Absolute paths are validated as given.
func (v *PathValidator) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, filepath.FromSlash(path))
	}
	if err := v.ValidatePath(path); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

// IsPathWithinDirectory reports whether an absolute path is the root or
// below it. Symlinks are resolved for whichever of the two exist, so a link
// inside the root pointing outside it is rejected.
func (v *PathValidator) IsPathWithinDirectory(path string) bool {
	cleanPath := filepath.Clean(path)
	if !within(cleanPath, v.root) {
		return false
	}

	realDir := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realDir = resolved
	}
	realPath := cleanPath
	if resolved, err := evalExisting(cleanPath); err == nil {
		realPath = resolved
	}
	return within(realPath, realDir) || within(realPath, v.root)
}

// evalExisting resolves symlinks in the longest existing prefix of path
func evalExisting(path string) (string, error) {
	var rest []string
	cur := path
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	withSep := dir
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	return strings.HasPrefix(path, withSep)
}
