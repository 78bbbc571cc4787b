package worktree

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/odvcencio/treemerge/pkg/object"
)

// MetaDirName is the repository metadata directory at the worktree root.
// Snapshot never descends into it.
const MetaDirName = ".treemerge"

// File is one non-directory entry of a flattened tree.
type File struct {
	Path string
	Mode object.FileMode
	Hash object.Hash
}

// Flatten lists every non-directory entry reachable from h, in path order,
// and the tree id of every directory keyed by its path ("" for the root).
// A null h is the empty tree.
func Flatten(trees object.TreeStore, h object.Hash) ([]File, map[string]object.Hash, error) {
	dirs := make(map[string]object.Hash)
	if h.IsNull() {
		return nil, dirs, nil
	}
	var files []File
	if err := flattenDir(trees, h, "", &files, dirs); err != nil {
		return nil, nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, dirs, nil
}

func flattenDir(trees object.TreeStore, h object.Hash, prefix string, files *[]File, dirs map[string]object.Hash) error {
	tr, err := trees.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten %q: %w", prefix, err)
	}
	dirs[prefix] = h
	for _, e := range tr.Entries {
		p := e.Name
		if prefix != "" {
			p = path.Join(prefix, e.Name)
		}
		if e.IsDir() {
			if err := flattenDir(trees, e.Hash, p, files, dirs); err != nil {
				return err
			}
			continue
		}
		*files = append(*files, File{Path: p, Mode: e.Mode, Hash: e.Hash})
	}
	return nil
}

// Snapshot hashes the files under root into blobs and tree objects and
// returns the root tree id. Paths matching any of the doublestar excludes
// are skipped, as is the metadata directory. Empty directories are not
// recorded.
func Snapshot(db object.Database, root string, excludes []string) (object.Hash, error) {
	for _, pat := range excludes {
		if !doublestar.ValidatePattern(pat) {
			return "", fmt.Errorf("snapshot: bad exclude pattern %q", pat)
		}
	}
	h, _, err := snapshotDir(db, root, "", excludes)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return h, nil
}

func excluded(rel string, excludes []string) bool {
	for _, pat := range excludes {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func snapshotDir(db object.Database, root, rel string, excludes []string) (object.Hash, bool, error) {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", false, err
	}

	var tr object.TreeObj
	for _, de := range entries {
		name := de.Name()
		if rel == "" && name == MetaDirName {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		if excluded(childRel, excludes) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(childRel))

		if de.IsDir() {
			h, nonEmpty, err := snapshotDir(db, root, childRel, excludes)
			if err != nil {
				return "", false, err
			}
			if nonEmpty {
				tr.Entries = append(tr.Entries, object.TreeEntry{Name: name, Mode: object.ModeDir, Hash: h})
			}
			continue
		}

		info, err := os.Lstat(abs)
		if err != nil {
			return "", false, err
		}
		mode, ok := modeFromFileInfo(info)
		if !ok {
			continue
		}
		var data []byte
		if mode == object.ModeSymlink {
			target, err := os.Readlink(abs)
			if err != nil {
				return "", false, err
			}
			data = []byte(filepath.ToSlash(target))
		} else if data, err = os.ReadFile(abs); err != nil {
			return "", false, err
		}
		h, err := object.WriteBlob(db, &object.Blob{Data: data})
		if err != nil {
			return "", false, fmt.Errorf("%s: %w", childRel, err)
		}
		tr.Entries = append(tr.Entries, object.TreeEntry{Name: name, Mode: mode, Hash: h})
	}

	if len(tr.Entries) == 0 && rel != "" {
		return "", false, nil
	}
	h, err := object.WriteTree(db, &tr)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", rel, err)
	}
	return h, len(tr.Entries) > 0, nil
}
