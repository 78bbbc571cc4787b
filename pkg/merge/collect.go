package merge

import (
	"slices"
	"strings"

	"github.com/odvcencio/treemerge/pkg/object"
)

// collector walks the base and both sides in lockstep and fills the path
// table. Subtrees that are identical on all three sides are recorded as
// resolved and never descended into.
type collector struct {
	trees object.TreeStore
	table *PathTable
}

func (c *collector) collect(base, side1, side2 object.Hash) error {
	var roots [3]*object.TreeObj
	for i, h := range [3]object.Hash{base, side1, side2} {
		tr, err := c.readTree(h, "")
		if err != nil {
			return err
		}
		roots[i] = tr
	}
	return c.walk(RootDir, "", roots)
}

func (c *collector) readTree(h object.Hash, path string) (*object.TreeObj, error) {
	if h.IsNull() {
		return &object.TreeObj{}, nil
	}
	tr, err := c.trees.ReadTree(h)
	if err != nil {
		return nil, &TreeReadError{Hash: h, Path: path, Err: err}
	}
	return tr, nil
}

// byName returns the entries of tr ordered by plain name. Canonical tree
// order sorts a directory "foo" after "foo.c" while a file "foo" sorts
// before it, so the three listings are re-sorted before zipping.
func byName(tr *object.TreeObj) []object.TreeEntry {
	if tr == nil {
		return nil
	}
	cmp := func(a, b object.TreeEntry) int { return strings.Compare(a.Name, b.Name) }
	if slices.IsSortedFunc(tr.Entries, cmp) {
		return tr.Entries
	}
	entries := slices.Clone(tr.Entries)
	slices.SortFunc(entries, cmp)
	return entries
}

func (c *collector) walk(dir DirID, dirPath string, trees [3]*object.TreeObj) error {
	var lists [3][]object.TreeEntry
	for i, tr := range trees {
		lists[i] = byName(tr)
	}

	var pos [3]int
	for {
		name, ok := "", false
		for i := range lists {
			if pos[i] < len(lists[i]) {
				if n := lists[i][pos[i]].Name; !ok || n < name {
					name, ok = n, true
				}
			}
		}
		if !ok {
			return nil
		}

		var names [3]*object.TreeEntry
		var mask, dirMask Mask
		for i := range lists {
			if pos[i] < len(lists[i]) && lists[i][pos[i]].Name == name {
				e := &lists[i][pos[i]]
				names[i] = e
				mask |= maskOf(Stage(i))
				if e.IsDir() {
					dirMask |= maskOf(Stage(i))
				}
				pos[i]++
			}
		}
		if err := c.visit(dir, dirPath, name, names, mask, dirMask); err != nil {
			return err
		}
	}
}

func (c *collector) visit(dir DirID, dirPath, name string, names [3]*object.TreeEntry, mask, dirMask Mask) error {
	fileMask := mask &^ dirMask

	var stages [3]VersionInfo
	for i, e := range names {
		if e != nil {
			stages[i] = VersionInfo{Mode: e.Mode, Hash: e.Hash}
		}
	}
	same := func(a, b Stage) bool {
		return mask.Has(a) && mask.Has(b) && stages[a] == stages[b]
	}
	side1MatchesBase := same(Base, Side1)
	side2MatchesBase := same(Base, Side2)
	sidesMatch := same(Side1, Side2)

	match := MatchNone
	switch {
	case side1MatchesBase && side2MatchesBase:
		match = MatchAll
	case side1MatchesBase:
		match = MatchBaseSide1
	case side2MatchesBase:
		match = MatchBaseSide2
	case sidesMatch:
		match = MatchSides
	}

	fullPath, offset := name, 0
	if dirPath != "" {
		fullPath = dirPath + "/" + name
		offset = len(dirPath) + 1
	}

	if match == MatchAll {
		// Nobody changed this path; take the base version without descending.
		_, err := c.table.add(PathInfo{
			Path: fullPath,
			MergedInfo: MergedInfo{
				Result:         stages[Base],
				Clean:          true,
				BasenameOffset: offset,
				Dir:            dir,
			},
		})
		return err
	}

	ci := &ConflictInfo{
		Stages:     stages,
		Pathnames:  [3]string{fullPath, fullPath, fullPath},
		FileMask:   fileMask,
		DirMask:    dirMask,
		Match:      match,
		DFConflict: fileMask != 0 && dirMask != 0,
	}
	if dirMask != 0 && ci.Match.Mask()&fileMask != ci.Match.Mask() {
		// Only file versions take part in the match from here on.
		ci.Match = MatchNone
	}
	if _, err := c.table.add(PathInfo{
		Path:       fullPath,
		MergedInfo: MergedInfo{BasenameOffset: offset, Dir: dir},
		Conflict:   ci,
	}); err != nil {
		return err
	}
	if dirMask == 0 {
		return nil
	}

	var sub [3]*object.TreeObj
	for i := range sub {
		s := Stage(i)
		switch {
		case s == Side1 && side1MatchesBase:
			sub[i] = sub[Base]
		case s == Side2 && side2MatchesBase:
			sub[i] = sub[Base]
		case s == Side2 && sidesMatch:
			sub[i] = sub[Side1]
		case dirMask.Has(s):
			tr, err := c.readTree(stages[i].Hash, fullPath)
			if err != nil {
				return err
			}
			sub[i] = tr
		}
	}
	return c.walk(c.table.dirs.intern(fullPath), fullPath, sub)
}
