// Package worktree keeps a directory of files and its index in step with
// tree objects.
package worktree

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/treemerge/pkg/index"
	"github.com/odvcencio/treemerge/pkg/object"
)

// Worktree is a checked-out directory backed by an object database.
type Worktree struct {
	Root      string
	DB        object.Database
	Trees     object.TreeStore // nil reads trees straight from DB
	IndexPath string
	Logger    *slog.Logger
	Jobs      int // parallel file writes; 0 means GOMAXPROCS

	index *index.Index
}

// Open loads the index at indexPath (missing => empty) for the worktree at
// root.
func Open(root string, db object.Database, indexPath string) (*Worktree, error) {
	ix, err := index.Load(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Worktree{Root: root, DB: db, IndexPath: indexPath, index: ix}, nil
}

// Index returns the in-memory index.
func (w *Worktree) Index() *index.Index {
	if w.index == nil {
		w.index = index.New()
	}
	return w.index
}

// FlushIndex writes the index to IndexPath.
func (w *Worktree) FlushIndex() error {
	return w.Index().Save(w.IndexPath)
}

// Snapshot records the current files as tree objects.
func (w *Worktree) Snapshot(excludes []string) (object.Hash, error) {
	return Snapshot(w.DB, w.Root, excludes)
}

func (w *Worktree) trees() object.TreeStore {
	if w.Trees != nil {
		return w.Trees
	}
	return object.Trees{DB: w.DB}
}

func (w *Worktree) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *Worktree) abs(p string) string {
	return filepath.Join(w.Root, filepath.FromSlash(p))
}

// Checkout moves the working files from prev to next. Files tracked by prev
// or by the index that next does not contain are removed; files whose mode
// or content differ, or that are missing on disk, are written. The index is
// rebuilt with stage-0 entries and directory tree ids for next.
//
// Local modifications to tracked files are overwritten.
func (w *Worktree) Checkout(prev, next object.Hash) error {
	trees := w.trees()
	prevFiles, _, err := Flatten(trees, prev)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	nextFiles, nextDirs, err := Flatten(trees, next)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	nextByPath := make(map[string]File, len(nextFiles))
	for _, f := range nextFiles {
		nextByPath[f.Path] = f
	}
	prevByPath := make(map[string]File, len(prevFiles))
	tracked := make(map[string]struct{}, len(prevFiles))
	for _, f := range prevFiles {
		prevByPath[f.Path] = f
		tracked[f.Path] = struct{}{}
	}
	for _, e := range w.Index().Entries {
		tracked[e.Path] = struct{}{}
	}

	removed := 0
	for p := range tracked {
		if _, keep := nextByPath[p]; keep {
			continue
		}
		abs := w.abs(p)
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("checkout: remove %q: %w", p, err)
		}
		w.removeEmptyParents(filepath.Dir(abs))
		removed++
	}

	var toWrite []File
	for _, f := range nextFiles {
		if old, ok := prevByPath[f.Path]; ok && old == f && w.present(f) {
			continue
		}
		toWrite = append(toWrite, f)
	}

	var g errgroup.Group
	g.SetLimit(w.jobs())
	for _, f := range toWrite {
		f := f
		g.Go(func() error { return w.writeFile(f) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	ix := index.New()
	for _, f := range nextFiles {
		e := &index.Entry{Path: f.Path, Mode: f.Mode, Hash: f.Hash}
		if info, err := os.Lstat(w.abs(f.Path)); err == nil && f.Mode != object.ModeGitlink {
			e.Size = info.Size()
			e.ModTime = info.ModTime().Unix()
		}
		ix.Append(e)
	}
	ix.Sort()
	for dir, h := range nextDirs {
		ix.SetTree(dir, h)
	}
	w.index = ix

	w.logger().Debug("checkout",
		"from", prev.Short(), "to", next.Short(),
		"removed", removed, "written", len(toWrite), "files", len(nextFiles))
	return nil
}

func (w *Worktree) jobs() int {
	if w.Jobs > 0 {
		return w.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

func (w *Worktree) present(f File) bool {
	info, err := os.Lstat(w.abs(f.Path))
	if err != nil {
		return false
	}
	if f.Mode == object.ModeGitlink {
		return info.IsDir()
	}
	mode, ok := modeFromFileInfo(info)
	return ok && mode == f.Mode
}

func (w *Worktree) writeFile(f File) error {
	abs := w.abs(f.Path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", filepath.Dir(f.Path), err)
	}

	if f.Mode == object.ModeGitlink {
		// Submodule contents are not ours to write; keep an empty directory.
		if info, err := os.Lstat(abs); err == nil && !info.IsDir() {
			if err := os.Remove(abs); err != nil {
				return fmt.Errorf("remove %q: %w", f.Path, err)
			}
		}
		return os.MkdirAll(abs, 0o755)
	}

	blob, err := object.ReadBlob(w.DB, f.Hash)
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", f.Path, err)
	}
	// Never write through an existing symlink.
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %q: %w", f.Path, err)
	}
	if f.Mode == object.ModeSymlink {
		if err := os.Symlink(filepath.FromSlash(string(blob.Data)), abs); err != nil {
			return fmt.Errorf("symlink %q: %w", f.Path, err)
		}
		return nil
	}
	if err := os.WriteFile(abs, blob.Data, filePermFromMode(f.Mode)); err != nil {
		return fmt.Errorf("write %q: %w", f.Path, err)
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the worktree root.
func (w *Worktree) removeEmptyParents(dir string) {
	root := filepath.Clean(w.Root)
	for {
		if dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
