package statement

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type localDisk struct {
	root string
}

func newLocalDisk(root string) *localDisk {
	if root == "" {
		root = "storage/statements"
	}
	if !filepath.IsAbs(root) {
		cwd, _ := os.Getwd()
		root = filepath.Join(cwd, root)
	}
	return &localDisk{root: root}
}

func (d *localDisk) abs(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(path))
}

func (d *localDisk) Put(_ context.Context, path string, content []byte, _ string) error {
	full := d.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("statement/local: mkdir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("statement/local: write %s: %w", path, err)
	}
	return nil
}

func (d *localDisk) URL(path string) string {
	return "file://" + d.abs(path)
}
