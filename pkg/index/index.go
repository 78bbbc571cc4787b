// Package index implements the working index: the list of tracked paths,
// each at stage 0 when merged or at stages 1..3 (base, side1, side2) while
// a conflict is pending.
package index

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/odvcencio/treemerge/pkg/object"
)

// ErrLocked is returned by Save when another writer holds the index lock.
var ErrLocked = errors.New("index is locked")

// Entry is one index entry.
type Entry struct {
	Path    string          `json:"path"`
	Stage   int             `json:"stage,omitempty"`
	Mode    object.FileMode `json:"mode"`
	Hash    object.Hash     `json:"hash"`
	Size    int64           `json:"size,omitempty"`
	ModTime int64           `json:"mod_time,omitempty"`

	remove bool
}

// Index holds entries sorted by (path, stage) plus cached tree ids for
// directories whose contents are unchanged since the last checkout. The
// root directory is keyed by "".
type Index struct {
	Entries []*Entry               `json:"entries"`
	Trees   map[string]object.Hash `json:"trees,omitempty"`
}

// New returns an empty index.
func New() *Index {
	return &Index{Trees: make(map[string]object.Hash)}
}

func entryLess(a, b *Entry) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Stage < b.Stage
}

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.Entries) }

// Pos returns the position of the stage-0 entry for p among the first
// limit entries, or -1.
func (ix *Index) Pos(p string, limit int) int {
	limit = min(limit, len(ix.Entries))
	i := sort.Search(limit, func(i int) bool { return ix.Entries[i].Path >= p })
	if i < limit && ix.Entries[i].Path == p && ix.Entries[i].Stage == 0 {
		return i
	}
	return -1
}

// Find returns the entry for p at stage.
func (ix *Index) Find(p string, stage int) (*Entry, bool) {
	i := sort.Search(len(ix.Entries), func(i int) bool {
		return !entryLess(ix.Entries[i], &Entry{Path: p, Stage: stage})
	})
	if i < len(ix.Entries) && ix.Entries[i].Path == p && ix.Entries[i].Stage == stage {
		return ix.Entries[i], true
	}
	return nil, false
}

// MarkRemove flags entry i for removal by RemoveMarked.
func (ix *Index) MarkRemove(i int) {
	ix.Entries[i].remove = true
}

// Append adds e at the end without keeping the index ordered. Call Sort
// after a batch of appends.
func (ix *Index) Append(e *Entry) {
	ix.Entries = append(ix.Entries, e)
	ix.InvalidatePath(e.Path)
}

// RemoveMarked drops every entry flagged by MarkRemove and returns how many
// were removed.
func (ix *Index) RemoveMarked() int {
	kept := ix.Entries[:0]
	removed := 0
	for _, e := range ix.Entries {
		if e.remove {
			ix.InvalidatePath(e.Path)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(ix.Entries[len(kept):])
	ix.Entries = kept
	return removed
}

// Sort restores (path, stage) order.
func (ix *Index) Sort() {
	sort.SliceStable(ix.Entries, func(i, j int) bool {
		return entryLess(ix.Entries[i], ix.Entries[j])
	})
}

// Unmerged returns the paths that have entries above stage 0, in order.
func (ix *Index) Unmerged() []string {
	var out []string
	for _, e := range ix.Entries {
		if e.Stage == 0 {
			continue
		}
		if n := len(out); n == 0 || out[n-1] != e.Path {
			out = append(out, e.Path)
		}
	}
	return out
}

// SetTree records the tree id of directory dir.
func (ix *Index) SetTree(dir string, h object.Hash) {
	if ix.Trees == nil {
		ix.Trees = make(map[string]object.Hash)
	}
	ix.Trees[dir] = h
}

// Tree returns the cached tree id of dir.
func (ix *Index) Tree(dir string) (object.Hash, bool) {
	h, ok := ix.Trees[dir]
	return h, ok
}

// InvalidatePath drops the cached tree of every directory containing p.
func (ix *Index) InvalidatePath(p string) {
	if len(ix.Trees) == 0 {
		return
	}
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		if dir == "." {
			delete(ix.Trees, "")
			return
		}
		delete(ix.Trees, dir)
	}
}

// Load reads the index at p. A missing file yields an empty index.
func Load(p string) (*Index, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	ix := New()
	if err := json.Unmarshal(data, ix); err != nil {
		return nil, fmt.Errorf("read index: unmarshal: %w", err)
	}
	if ix.Trees == nil {
		ix.Trees = make(map[string]object.Hash)
	}
	for _, e := range ix.Entries {
		if e.Stage < 0 || e.Stage > 3 {
			return nil, fmt.Errorf("read index: %s: bad stage %d", e.Path, e.Stage)
		}
	}
	if !sort.SliceIsSorted(ix.Entries, func(i, j int) bool {
		return entryLess(ix.Entries[i], ix.Entries[j])
	}) {
		ix.Sort()
	}
	return ix, nil
}

// Save atomically writes ix to p while holding p.lock. It fails with
// ErrLocked if another writer holds the lock.
func (ix *Index) Save(p string) error {
	lk := flock.New(p + ".lock")
	locked, err := lk.TryLock()
	if err != nil {
		return fmt.Errorf("write index: lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("write index: %w", ErrLocked)
	}
	defer func() {
		lk.Unlock()
		os.Remove(lk.Path())
	}()

	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}
