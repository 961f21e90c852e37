package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoMatch is returned by GlobResolver when a pattern matches no file.
var ErrNoMatch = errors.New("no files match")

// Resolver expands a path pattern into an ordered set of canonical paths.
// Patterns handed to a Resolver are already absolute or remote.
type Resolver interface {
	Resolve(pattern string) ([]string, error)
}

// GlobResolver resolves local glob patterns on the file system. Remote URLs
// such as s3://bucket/*.csv are passed through for the engine to expand.
type GlobResolver struct{}

// Resolve implements Resolver.
func (GlobResolver) Resolve(pattern string) ([]string, error) {
	if IsRemote(pattern) {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		p, err := Canonical(m)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, pattern)
	}
	sort.Strings(out)
	return out, nil
}

// Canonical returns the absolute, symlink-free form of path.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// IsRemote reports whether p is a URL rather than a local path.
func IsRemote(p string) bool {
	return strings.Contains(p, "://")
}

// locate resolves p against dir unless it is absolute or remote.
func locate(dir, p string) string {
	if IsRemote(p) || filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}
