package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/treemerge/pkg/config"
	"github.com/odvcencio/treemerge/pkg/worktree"
)

// Init creates a new repository at path. It creates the .treemerge/
// directory structure: HEAD, config.toml, objects/ and hooks/. cfg may be
// nil for the default configuration. Returns an error if a .treemerge/
// directory already exists.
func Init(path string, cfg *config.Config) (*Repo, error) {
	metaDir := filepath.Join(path, worktree.MetaDirName)

	// Fail if .treemerge/ already exists.
	if _, err := os.Stat(metaDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", metaDir)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	// Create directory structure.
	dirs := []string{
		filepath.Join(metaDir, "objects"),
		filepath.Join(metaDir, "hooks"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := cfg.Save(filepath.Join(metaDir, config.FileName)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	// Nothing is checked out yet.
	if err := os.WriteFile(filepath.Join(metaDir, "HEAD"), nil, 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return openAt(path, metaDir)
}

// Open searches upward from path for a .treemerge/ directory and opens the
// repository. Returns an error if no .treemerge/ directory is found.
func Open(path string) (*Repo, error) {
	// Resolve to absolute path for consistent traversal.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		metaDir := filepath.Join(cur, worktree.MetaDirName)
		info, err := os.Stat(metaDir)
		if err == nil && info.IsDir() {
			r, err := openAt(cur, metaDir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding .treemerge/.
			return nil, fmt.Errorf("open: not a treemerge repository (or any parent up to /)")
		}
		cur = parent
	}
}
