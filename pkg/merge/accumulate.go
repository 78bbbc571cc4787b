package merge

import (
	"github.com/odvcencio/treemerge/pkg/object"
)

type version struct {
	name string
	info int
}

type dirFrame struct {
	dir    DirID
	offset int
}

// accumulator turns resolved records, visited children before parents,
// into tree objects. versions holds the pending entries of every open
// directory; frames records where each open directory's entries start.
type accumulator struct {
	table    *PathTable
	trees    object.TreeStore
	versions []version
	frames   []dirFrame
	last     DirID
	started  bool
	written  int
}

func newAccumulator(table *PathTable, trees object.TreeStore) *accumulator {
	return &accumulator{table: table, trees: trees}
}

// enter is called with the directory of each record before it is recorded.
// Leaving a directory writes its tree and records it in its parent.
func (a *accumulator) enter(next DirID) error {
	if a.started && next == a.last {
		return nil
	}
	dirs := &a.table.dirs
	if !a.started || dirs.within(next, a.last) {
		a.started = true
		a.last = next
		a.frames = append(a.frames, dirFrame{dir: next, offset: len(a.versions)})
		return nil
	}

	lastPath := dirs.name(a.last)
	dirIdx, ok := a.table.byPath[lastPath]
	if !ok {
		return invariantf("directory %q has no record", lastPath)
	}
	if len(a.frames) == 0 || a.frames[len(a.frames)-1].dir != a.last {
		return invariantf("directory %q is not the innermost open directory", lastPath)
	}
	dirInfo := a.table.at(dirIdx)
	offset := a.frames[len(a.frames)-1].offset

	wrote := false
	if offset == len(a.versions) {
		// Every child was deleted.
		dirInfo.IsNull = true
	} else {
		h, err := a.writeTree(offset)
		if err != nil {
			return err
		}
		dirInfo.Result = VersionInfo{Mode: object.ModeDir, Hash: h}
		wrote = true
	}

	a.frames = a.frames[:len(a.frames)-1]
	a.versions = a.versions[:offset]
	if len(a.frames) == 0 || a.frames[len(a.frames)-1].dir != next {
		a.frames = append(a.frames, dirFrame{dir: next, offset: len(a.versions)})
	}
	if wrote {
		a.versions = append(a.versions, version{name: dirInfo.Basename(), info: dirIdx})
	}
	a.last = next
	return nil
}

// record adds a resolved record to the entries of its directory.
func (a *accumulator) record(idx int) {
	info := a.table.at(idx)
	if info.IsNull {
		return
	}
	if info.Conflict != nil && !info.Clean && info.Conflict.FileMask == 0 {
		// Directory placeholder; enter writes it when its children are done.
		return
	}
	a.versions = append(a.versions, version{name: info.Basename(), info: idx})
}

func (a *accumulator) writeTree(offset int) (object.Hash, error) {
	pending := a.versions[offset:]
	entries := make([]object.TreeEntry, len(pending))
	for i, v := range pending {
		res := a.table.at(v.info).Result
		entries[i] = object.TreeEntry{Name: v.name, Mode: res.Mode, Hash: res.Hash}
	}
	object.SortEntries(entries)
	h, err := a.trees.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", err
	}
	a.written++
	return h, nil
}

// finish writes the root tree once every record has been seen.
func (a *accumulator) finish() (object.Hash, error) {
	if len(a.frames) != 1 || a.frames[0].offset != 0 || a.frames[0].dir != RootDir {
		return "", invariantf("%d directories still open after processing", len(a.frames))
	}
	return a.writeTree(0)
}
