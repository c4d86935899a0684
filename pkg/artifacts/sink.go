// Package artifacts writes generated bindings to an output location: a
// local directory, an S3 bucket or a GCS bucket.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/permissionlessweb/bs-accounts/pkg/canonicalize"
)

// ErrNotFound is returned by Get for a path that was never written.
var ErrNotFound = errors.New("artifacts: not found")

// Sink persists generated files addressed by slash-separated paths
// relative to the sink root. Implementations are safe for concurrent use
// on distinct paths.
type Sink interface {
	// Put writes data at path and returns its content hash.
	Put(ctx context.Context, path string, data []byte) (string, error)
	// Get reads the file at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// Exists reports whether path has been written.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// Location renders path the way users address it (file path or URL).
	Location(path string) string
}

// contentHash is the identifier Put returns.
func contentHash(data []byte) string {
	return canonicalize.FingerprintPrefix + canonicalize.HashBytes(data)
}

// cleanPath rejects paths that would leave the sink root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("artifacts: empty path")
	}
	if strings.Contains(p, "\\") || path.IsAbs(p) {
		return "", fmt.Errorf("artifacts: path %q must be relative and slash-separated", p)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("artifacts: path %q escapes the output root", p)
	}
	return c, nil
}

// FileSink writes under a local directory.
type FileSink struct {
	baseDir string
}

// NewFileSink creates baseDir if needed.
func NewFileSink(baseDir string) (*FileSink, error) {
	//nolint:gosec // G301: generated sources are meant to be readable
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure output dir: %w", err)
	}
	return &FileSink{baseDir: baseDir}, nil
}

// Put writes atomically through a temporary file in the target directory.
// Unchanged content is left in place so file times survive regeneration.
func (s *FileSink) Put(ctx context.Context, p string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	hash := contentHash(data)
	target := filepath.Join(s.baseDir, filepath.FromSlash(rel))

	if existing, err := os.ReadFile(target); err == nil && contentHash(existing) == hash { //nolint:gosec // path is cleaned
		return hash, nil
	}

	dir := filepath.Dir(target)
	//nolint:gosec // G301: generated sources are meant to be readable
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", rel, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	//nolint:gosec // G302: generated sources are meant to be readable
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to commit %s: %w", rel, err)
	}
	return hash, nil
}

func (s *FileSink) Get(ctx context.Context, p string) ([]byte, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(rel))) //nolint:gosec // path is cleaned
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, err
	}
	return data, nil
}

func (s *FileSink) Exists(ctx context.Context, p string) (bool, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(s.baseDir, filepath.FromSlash(rel)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileSink) Delete(ctx context.Context, p string) error {
	rel, err := cleanPath(p)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", rel, err)
	}
	return nil
}

func (s *FileSink) Location(p string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(p))
}
