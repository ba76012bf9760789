// Package scriptwriter writes a generated script folder to disk.
package scriptwriter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	udiff "github.com/aymanbagabas/go-udiff"

	"github.com/unkn0wn-root/devwebgen/internal/bundle"
)

type Options struct {
	Overwrite bool
}

// WriteBundle writes every file under dir. Without Overwrite nothing is
// written when any target already exists, so a folder is never left half
// replaced.
func WriteBundle(ctx context.Context, dir string, files []bundle.File, opts Options) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("writer: destination directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("writer: create directory: %w", err)
	}

	if !opts.Overwrite {
		var existing []string
		for _, f := range files {
			if _, err := os.Stat(filepath.Join(dir, f.Name)); err == nil {
				existing = append(existing, f.Name)
			}
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("writer: %s already contains %s", dir, strings.Join(existing, ", "))
		}
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		dst := filepath.Join(dir, f.Name)
		if err := writeFile(dst, f.Content); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func writeFile(dst string, content []byte) error {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".devwebgen-*.tmp")
	if err != nil {
		return fmt.Errorf("writer: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writer: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writer: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writer: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("writer: rename temp file: %w", err)
	}
	return nil
}

// Diff returns a unified diff from the file already at dir/name to content.
// A missing file diffs against empty text; identical content yields "".
func Diff(dir, name string, content []byte) (string, error) {
	path := filepath.Join(dir, name)
	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("writer: read %s: %w", path, err)
	}
	if string(current) == string(content) {
		return "", nil
	}
	return udiff.Unified("a/"+name, "b/"+name, string(current), string(content)), nil
}
