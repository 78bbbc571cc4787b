package merge

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/odvcencio/treemerge/pkg/object"
)

// Stage indexes the three inputs of a merge.
type Stage int

const (
	Base Stage = iota
	Side1
	Side2
)

func (s Stage) String() string {
	switch s {
	case Base:
		return "base"
	case Side1:
		return "side1"
	case Side2:
		return "side2"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Mask is a 3-bit set of stages; bit i is Stage i.
type Mask uint8

func maskOf(s Stage) Mask { return 1 << uint(s) }

// Has reports whether stage s is in m.
func (m Mask) Has(s Stage) bool { return m&maskOf(s) != 0 }

// Match records which stages of a path hold identical versions.
type Match int

const (
	MatchNone      Match = iota
	MatchBaseSide1       // side1 unchanged from base
	MatchBaseSide2       // side2 unchanged from base
	MatchSides           // both sides made the same change
	MatchAll             // nobody changed anything
)

// Mask returns the stages covered by m.
func (m Match) Mask() Mask {
	switch m {
	case MatchBaseSide1:
		return maskOf(Base) | maskOf(Side1)
	case MatchBaseSide2:
		return maskOf(Base) | maskOf(Side2)
	case MatchSides:
		return maskOf(Side1) | maskOf(Side2)
	case MatchAll:
		return maskOf(Base) | maskOf(Side1) | maskOf(Side2)
	}
	return 0
}

func (m Match) String() string {
	switch m {
	case MatchNone:
		return "None"
	case MatchBaseSide1:
		return "BaseSide1"
	case MatchBaseSide2:
		return "BaseSide2"
	case MatchSides:
		return "Sides"
	case MatchAll:
		return "All"
	}
	return fmt.Sprintf("Match(%d)", int(m))
}

// VersionInfo is one version of a path: its mode and object id. The zero
// value is "absent".
type VersionInfo struct {
	Mode object.FileMode
	Hash object.Hash
}

// IsNull reports whether v is the absent version.
func (v VersionInfo) IsNull() bool { return v.Mode == 0 && v.Hash.IsNull() }

// DirID is an interned directory path. RootDir is the empty path.
type DirID uint32

const RootDir DirID = 0

type dirTable struct {
	names []string
	ids   map[string]DirID
}

func newDirTable() dirTable {
	return dirTable{names: []string{""}, ids: map[string]DirID{"": RootDir}}
}

func (d *dirTable) intern(path string) DirID {
	if id, ok := d.ids[path]; ok {
		return id
	}
	id := DirID(len(d.names))
	d.names = append(d.names, path)
	d.ids[path] = id
	return id
}

func (d *dirTable) name(id DirID) string { return d.names[id] }

// within reports whether dir is ancestor or lies below it.
func (d *dirTable) within(dir, ancestor DirID) bool {
	if ancestor == RootDir || dir == ancestor {
		return true
	}
	return strings.HasPrefix(d.names[dir], d.names[ancestor]+"/")
}

// MergedInfo is the resolution of a path.
type MergedInfo struct {
	Result         VersionInfo
	IsNull         bool // the path is absent from the result
	Clean          bool
	BasenameOffset int
	Dir            DirID
}

// ConflictInfo carries the three input versions of a path that could not
// be resolved during collection.
type ConflictInfo struct {
	Stages       [3]VersionInfo
	Pathnames    [3]string
	FileMask     Mask // stages holding a non-directory
	DirMask      Mask // stages holding a directory
	Match        Match
	DFConflict   bool
	PathConflict bool
}

// PathInfo is one Path Table record. A nil Conflict means the path was
// resolved while collecting; otherwise the record still carries its stages.
type PathInfo struct {
	Path string
	MergedInfo
	Conflict *ConflictInfo
}

// Basename returns the last component of the path.
func (p *PathInfo) Basename() string { return p.Path[p.BasenameOffset:] }

// PathTable maps every visited path to its merge record. Records live in
// an arena owned by the table; unmerged paths are tracked separately.
type PathTable struct {
	infos    []PathInfo
	byPath   map[string]int
	dirs     dirTable
	unmerged mapset.Set[string]
}

func newPathTable() *PathTable {
	return &PathTable{
		byPath:   make(map[string]int),
		dirs:     newDirTable(),
		unmerged: mapset.NewThreadUnsafeSet[string](),
	}
}

func (t *PathTable) add(info PathInfo) (int, error) {
	if _, dup := t.byPath[info.Path]; dup {
		return 0, invariantf("path %q collected twice", info.Path)
	}
	idx := len(t.infos)
	t.infos = append(t.infos, info)
	t.byPath[info.Path] = idx
	return idx, nil
}

func (t *PathTable) at(idx int) *PathInfo { return &t.infos[idx] }

// Len returns the number of recorded paths.
func (t *PathTable) Len() int { return len(t.infos) }

// Lookup returns the record for path. The pointer stays valid until the
// table is released.
func (t *PathTable) Lookup(path string) (*PathInfo, bool) {
	idx, ok := t.byPath[path]
	if !ok {
		return nil, false
	}
	return &t.infos[idx], true
}

// IsUnmerged reports whether path ended up conflicted.
func (t *PathTable) IsUnmerged(path string) bool { return t.unmerged.Contains(path) }

// Unmerged returns the conflicted paths in byte order.
func (t *PathTable) Unmerged() []string {
	paths := t.unmerged.ToSlice()
	sort.Strings(paths)
	return paths
}

func (t *PathTable) markUnmerged(path string) { t.unmerged.Add(path) }

// processingOrder returns record indexes sorted so that each directory
// comes right before its own contents.
func (t *PathTable) processingOrder() []int {
	order := make([]int, len(t.infos))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return dfPathCompare(t.infos[order[i]].Path, t.infos[order[j]].Path) < 0
	})
	return order
}

// dfPathCompare orders paths as if every one of them named a directory, then
// puts shorter names first: "foo.c" < "foo" < "foo/bar".
func dfPathCompare(a, b string) int {
	n := min(len(a), len(b))
	if c := strings.Compare(a[:n], b[:n]); c != 0 {
		return c
	}
	c1, c2 := dirByte(a, n), dirByte(b, n)
	if c1 != c2 {
		return int(c1) - int(c2)
	}
	return len(a) - len(b)
}

func dirByte(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return '/'
}
